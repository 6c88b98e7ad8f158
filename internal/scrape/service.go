// Package scrape はキーワード検索から商品保存までの取り込みパイプラインを
// 編成する。1回の取り込みは 検索ページ取得 → 商品抽出 →（任意で）詳細ページ
// 取得と統合 → カタログUPSERT → 履歴記録 → 保持ウィンドウ維持 の順に進む。
package scrape

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"

	"github.com/hitoshi/prodscout/internal/catalog"
	"github.com/hitoshi/prodscout/internal/extractor"
	"github.com/hitoshi/prodscout/internal/history"
	"github.com/hitoshi/prodscout/internal/model"
)

// DefaultMaxProducts は1回の取り込みで保存する商品数のデフォルト上限。
const DefaultMaxProducts = 20

// Fetcher はページ取得のインターフェース。取得失敗時はnilを返す（ソフト失敗）。
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) *goquery.Document
}

// URLValidator は詳細ページURLの安全性検証インターフェース。
type URLValidator interface {
	ValidateURL(rawURL string) error
}

// Options は取り込み実行のオプション。
type Options struct {
	// FetchDetails は各商品の詳細ページも取得するかどうか。
	FetchDetails bool
	// MaxProducts は保存する商品数の上限。0以下の場合はDefaultMaxProductsが適用される。
	MaxProducts int
}

// Result は取り込み実行の結果。
type Result struct {
	RunID     string
	Keyword   string
	FromCache bool
	Products  []*model.Product
	Created   int
	Updated   int
	Failed    int
}

// Service は取り込みパイプラインのインターフェースを定義する。
type Service interface {
	// Ingest はキーワードで検索し、抽出した商品をカタログへ取り込む。
	// 同一キーワードの実行履歴が存在する場合はスクレイプを行わず、
	// 前回の結果をそのまま返す（キャッシュショートカット）。
	Ingest(ctx context.Context, keyword string, opts Options) (*Result, error)
}

// service はServiceの実装。
type service struct {
	listingFetcher   Fetcher
	detailFetcher    Fetcher
	listingExtractor extractor.ListingExtractorService
	detailExtractor  extractor.DetailExtractorService
	validator        URLValidator
	writer           catalog.BulkUpsertService
	history          history.Service
	logger           *slog.Logger
	baseURL          string
}

// NewService はServiceの新しいインスタンスを生成する。
// listingFetcherとdetailFetcherは遅延区間の異なる別インスタンスを渡す。
func NewService(
	listingFetcher Fetcher,
	detailFetcher Fetcher,
	listingExtractor extractor.ListingExtractorService,
	detailExtractor extractor.DetailExtractorService,
	validator URLValidator,
	writer catalog.BulkUpsertService,
	historyService history.Service,
	logger *slog.Logger,
	baseURL string,
) *service {
	return &service{
		listingFetcher:   listingFetcher,
		detailFetcher:    detailFetcher,
		listingExtractor: listingExtractor,
		detailExtractor:  detailExtractor,
		validator:        validator,
		writer:           writer,
		history:          historyService,
		logger:           logger,
		baseURL:          strings.TrimSuffix(baseURL, "/"),
	}
}

// Ingest はキーワードで検索し、抽出した商品をカタログへ取り込む。
func (s *service) Ingest(ctx context.Context, keyword string, opts Options) (*Result, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return nil, model.NewKeywordEmptyError()
	}

	// キャッシュショートカット: 同一キーワードの履歴があれば再スクレイプしない
	cached, cachedProducts, err := s.history.LookupByKeyword(ctx, keyword)
	if err != nil {
		return nil, fmt.Errorf("実行履歴の照会に失敗しました: %w", err)
	}
	if cached != nil {
		s.logger.Info("キャッシュされた実行結果を返します",
			slog.String("query_keyword", keyword),
			slog.String("run_id", cached.RunID),
			slog.Int("product_count", len(cachedProducts)),
		)
		return &Result{
			RunID:     cached.RunID,
			Keyword:   keyword,
			FromCache: true,
			Products:  cachedProducts,
		}, nil
	}

	runID := NewRunID()
	result := &Result{RunID: runID, Keyword: keyword}

	searchURL := s.SearchURL(keyword)
	s.logger.Info("取り込みを開始します",
		slog.String("query_keyword", keyword),
		slog.String("run_id", runID),
		slog.String("search_url", searchURL),
	)

	doc := s.listingFetcher.Fetch(ctx, searchURL)
	if doc == nil {
		s.logger.Warn("検索ページの取得に失敗しました",
			slog.String("query_keyword", keyword),
			slog.String("run_id", runID),
		)
		return result, nil
	}

	extracted := s.listingExtractor.Extract(doc)

	maxProducts := opts.MaxProducts
	if maxProducts <= 0 {
		maxProducts = DefaultMaxProducts
	}
	if len(extracted) > maxProducts {
		extracted = extracted[:maxProducts]
	}

	// 上限適用後に詳細取得する。切り捨てる商品の詳細ページは取得しない。
	if opts.FetchDetails {
		extracted = s.enrichWithDetails(ctx, extracted)
	}

	if len(extracted) == 0 {
		s.logger.Warn("商品が抽出できませんでした",
			slog.String("query_keyword", keyword),
			slog.String("run_id", runID),
		)
		return result, nil
	}

	sourceURL := s.baseURL + "/"
	upsert, err := s.writer.UpsertBatch(ctx, extracted, sourceURL, runID)
	if err != nil {
		return nil, model.NewWriteFailedError(err.Error())
	}
	result.Created = upsert.Created
	result.Updated = upsert.Updated
	result.Failed = upsert.Failed

	if _, err := s.history.RecordBatch(ctx, keyword, runID, upsert.Processed()); err != nil {
		return nil, fmt.Errorf("実行履歴の記録に失敗しました: %w", err)
	}

	// 保持ウィンドウの維持。失敗しても取り込み自体は成功として扱う。
	if _, err := s.history.EvictExcess(ctx); err != nil {
		s.logger.Error("保持ウィンドウの維持に失敗しました",
			slog.String("run_id", runID),
			slog.String("error", err.Error()),
		)
	}

	products, err := s.history.ProductsForRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("取り込み結果の取得に失敗しました: %w", err)
	}
	result.Products = products

	s.logger.Info("取り込みが完了しました",
		slog.String("query_keyword", keyword),
		slog.String("run_id", runID),
		slog.Int("created", result.Created),
		slog.Int("updated", result.Updated),
		slog.Int("failed", result.Failed),
	)

	return result, nil
}

// enrichWithDetails は各商品の詳細ページを取得し、抽出結果を統合する。
// 詳細ページの取得・検証失敗は検索結果由来の情報だけで処理を継続する。
func (s *service) enrichWithDetails(ctx context.Context, extracted []*model.ExtractedProduct) []*model.ExtractedProduct {
	enriched := make([]*model.ExtractedProduct, 0, len(extracted))
	for _, ep := range extracted {
		if ep.ProductURL == "" {
			enriched = append(enriched, ep)
			continue
		}
		if err := s.validator.ValidateURL(ep.ProductURL); err != nil {
			s.logger.Warn("詳細ページURLの検証に失敗しました",
				slog.String("product_url", ep.ProductURL),
				slog.String("error", err.Error()),
			)
			enriched = append(enriched, ep)
			continue
		}

		doc := s.detailFetcher.Fetch(ctx, ep.ProductURL)
		if doc == nil {
			enriched = append(enriched, ep)
			continue
		}

		detail := s.detailExtractor.Extract(doc)
		enriched = append(enriched, extractor.Merge(ep, detail))
	}
	return enriched
}

// SearchURL はキーワードから検索ページのURLを構築する。
// 空白は"+"に置換される。
func (s *service) SearchURL(keyword string) string {
	return s.baseURL + "/s?k=" + strings.ReplaceAll(keyword, " ", "+")
}

// NewRunID は取り込み実行の識別子を生成する。
// 形式: scrape-<ランダム8桁hex>-<YYYYMMDDHHMMSS>
func NewRunID() string {
	id := uuid.New()
	return fmt.Sprintf("scrape-%x-%s", id[:4], time.Now().Format("20060102150405"))
}
