package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/prodscout/internal/metrics"
	"github.com/hitoshi/prodscout/internal/middleware"
)

// DBPinger はヘルスチェック用のDB疎通確認インターフェース。
type DBPinger interface {
	PingContext(ctx context.Context) error
}

// HistoryInterface は履歴系ハンドラーが必要とするサービスインターフェースの集約。
type HistoryInterface interface {
	BatchFinderInterface
	HistoryServiceInterface
	KeywordLookupInterface
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter

	// サービス
	ScrapeService  ScrapeServiceInterface
	HistoryService HistoryInterface
	Products       ProductReaderInterface
	Insight        InsightGeneratorInterface

	// 運用
	DB              DBPinger
	MetricsGatherer prometheus.Gatherer
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → Logging → RateLimit(General)
//
// /health と /metrics はレート制限の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))

	scrapeHandler := NewScrapeHandler(deps.ScrapeService, deps.HistoryService)
	productHandler := NewProductHandler(deps.Products)
	historyHandler := NewHistoryHandler(deps.HistoryService, deps.HistoryService)
	analysisHandler := NewAnalysisHandler(deps.HistoryService, deps.Insight)

	// --- 運用エンドポイント（レート制限の外） ---

	r.Get("/health", newHealthHandler(deps.DB))
	if deps.MetricsGatherer != nil {
		r.Handle("/metrics", metrics.Handler(deps.MetricsGatherer))
	}

	// --- APIエンドポイント ---

	r.Group(func(r chi.Router) {
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// スクレイプ起動（起動専用レート制限を追加）
		r.Route("/api/scrape", func(r chi.Router) {
			r.With(deps.RateLimiter.ScrapeMiddleware()).Post("/", scrapeHandler.TriggerScrape)
			r.Get("/status/{run_id}", scrapeHandler.GetStatus)
		})

		// 商品参照
		r.Route("/api/products", func(r chi.Router) {
			r.Get("/", productHandler.ListProducts)
			r.Get("/stats", productHandler.GetStats)
			r.Get("/{id}", productHandler.GetProduct)
		})

		// 実行履歴
		r.Route("/api/history", func(r chi.Router) {
			r.Get("/", historyHandler.ListHistory)
			r.Get("/products", historyHandler.ListProductsForKeyword)
		})

		// 分析
		r.Route("/api/analysis", func(r chi.Router) {
			r.Get("/price-trend", analysisHandler.GetPriceTrend)
			r.Get("/competition", analysisHandler.GetCompetition)
			r.Post("/insight", analysisHandler.GenerateInsight)
		})
	})

	return r
}

// newHealthHandler はDB疎通を確認するヘルスチェックハンドラーを返す。
func newHealthHandler(db DBPinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := "ok"
		statusCode := http.StatusOK

		if db != nil {
			if err := db.PingContext(r.Context()); err != nil {
				status = "unavailable"
				statusCode = http.StatusServiceUnavailable
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)
		json.NewEncoder(w).Encode(map[string]string{"status": status})
	}
}
