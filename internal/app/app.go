// Package app はアプリケーションの起動と依存関係のワイヤリングを行う。
package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/hitoshi/prodscout/internal/analysis"
	"github.com/hitoshi/prodscout/internal/catalog"
	"github.com/hitoshi/prodscout/internal/config"
	"github.com/hitoshi/prodscout/internal/database"
	"github.com/hitoshi/prodscout/internal/extractor"
	"github.com/hitoshi/prodscout/internal/fetcher"
	"github.com/hitoshi/prodscout/internal/handler"
	"github.com/hitoshi/prodscout/internal/history"
	"github.com/hitoshi/prodscout/internal/logger"
	"github.com/hitoshi/prodscout/internal/metrics"
	"github.com/hitoshi/prodscout/internal/middleware"
	"github.com/hitoshi/prodscout/internal/repository"
	"github.com/hitoshi/prodscout/internal/scrape"
	"github.com/hitoshi/prodscout/internal/security"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("source_base_url", cfg.SourceBaseURL),
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandScrape:
		return runScrape(cfg, args[1:])
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// pipeline は取り込みパイプラインの依存一式。
type pipeline struct {
	scrapeService  scrape.Service
	historyService history.Service
	productRepo    *repository.PostgresProductRepo
	collector      *metrics.Collector
	registry       *prometheus.Registry
}

// buildPipeline は取り込みパイプラインの全依存関係をワイヤリングする。
// 一覧ページと詳細ページで遅延区間の異なる2つのフェッチャーを構成する。
func buildPipeline(cfg *config.Config, db *sql.DB) *pipeline {
	log := slog.Default()

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// リポジトリ
	productRepo := repository.NewPostgresProductRepo(db)
	categoryRepo := repository.NewPostgresCategoryRepo(db)
	historyRepo := repository.NewPostgresQueryHistoryRepo(db)

	// セキュリティ
	ssrfGuard := security.NewSSRFGuard()
	sanitizer := security.NewTextSanitizer()

	// フェッチャー（SSRFガード付きHTTPクライアントを共有）
	safeClient := ssrfGuard.NewSafeClient(cfg.FetchTimeout, cfg.FetchMaxSize)
	listingFetcher := fetcher.NewClient(safeClient, log, collector, fetcher.Config{
		SourceBaseURL: cfg.SourceBaseURL,
		DelayMin:      cfg.ListingDelayMin,
		DelayMax:      cfg.ListingDelayMax,
		MaxBodySize:   cfg.FetchMaxSize,
	})
	detailFetcher := fetcher.NewClient(safeClient, log, collector, fetcher.Config{
		SourceBaseURL: cfg.SourceBaseURL,
		DelayMin:      cfg.DetailDelayMin,
		DelayMax:      cfg.DetailDelayMax,
		MaxBodySize:   cfg.FetchMaxSize,
	})

	// サービス
	writer := catalog.NewService(productRepo, categoryRepo, sanitizer, collector, log)
	historyService := history.NewService(historyRepo, productRepo, collector, log, cfg.QueryHistoryKeep)
	scrapeService := scrape.NewService(
		listingFetcher, detailFetcher,
		extractor.NewListingExtractor(log, cfg.SourceBaseURL, cfg.MaxItemsPerPage),
		extractor.NewDetailExtractor(log),
		ssrfGuard, writer, historyService, log, cfg.SourceBaseURL,
	)

	return &pipeline{
		scrapeService:  scrapeService,
		historyService: historyService,
		productRepo:    productRepo,
		collector:      collector,
		registry:       registry,
	}
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. パイプラインのワイヤリング
	p := buildPipeline(cfg, db)

	// 3. AIインサイトクライアント
	insightClient := analysis.NewInsightClient(
		&http.Client{Timeout: 30 * time.Second},
		slog.Default(), cfg.GeminiAPIKey, cfg.GeminiModel,
	)
	if !insightClient.Enabled() {
		slog.Info("AI insight disabled: GEMINI_API_KEY is not set")
	}

	// 4. ルーターの構築
	rateLimiterCfg := middleware.DefaultRateLimiterConfig()
	if cfg.RateLimitGeneral > 0 {
		rateLimiterCfg.GeneralRate = rate.Limit(float64(cfg.RateLimitGeneral) / 60.0)
		rateLimiterCfg.GeneralBurst = cfg.RateLimitGeneral
	}
	if cfg.RateLimitScrape > 0 {
		rateLimiterCfg.ScrapeRate = rate.Limit(float64(cfg.RateLimitScrape) / 60.0)
		rateLimiterCfg.ScrapeBurst = cfg.RateLimitScrape
	}
	rateLimiter := middleware.NewRateLimiter(rateLimiterCfg)
	defer rateLimiter.Stop()

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:            slog.Default(),
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		ScrapeService:     p.scrapeService,
		HistoryService:    p.historyService,
		Products:          p.productRepo,
		Insight:           insightClient,
		DB:                db,
		MetricsGatherer:   p.registry,
	})

	// 5. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second, // スクレイプ起動は対象サイトへの遅延込みで長時間かかる
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runScrape はキーワード取り込みを1回実行して終了する。
// 残りの引数を空白で連結したものを検索キーワードとして扱う。
func runScrape(cfg *config.Config, args []string) error {
	keyword := strings.TrimSpace(strings.Join(args, " "))
	if keyword == "" {
		return fmt.Errorf("scrape command requires a search keyword")
	}

	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	p := buildPipeline(cfg, db)

	// SIGINT/SIGTERMで実行中の取り込みを中断できるようにする
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	slog.Info("one-shot scrape starting", slog.String("keyword", keyword))

	result, err := p.scrapeService.Ingest(ctx, keyword, scrape.Options{
		FetchDetails: true,
		MaxProducts:  cfg.MaxProductsPerSearch,
	})
	if err != nil {
		return fmt.Errorf("scrape failed: %w", err)
	}

	slog.Info("one-shot scrape completed",
		slog.String("run_id", result.RunID),
		slog.Bool("from_cache", result.FromCache),
		slog.Int("products", len(result.Products)),
		slog.Int("created", result.Created),
		slog.Int("updated", result.Updated),
		slog.Int("failed", result.Failed),
	)
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
