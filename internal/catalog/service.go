// Package catalog は抽出済み商品のカタログへの書き込みを提供する。
// 書き込みは (productUrl, name) をキーとした冪等なUPSERTであり、
// 1レコードの失敗がバッチ全体を中断させることはない。
package catalog

import (
	"context"
	"log/slog"
	"strings"

	"github.com/hitoshi/prodscout/internal/fingerprint"
	"github.com/hitoshi/prodscout/internal/model"
	"github.com/hitoshi/prodscout/internal/repository"
	"github.com/hitoshi/prodscout/internal/security"
)

// categoryPathSeparator はカテゴリパスの区切り文字。
const categoryPathSeparator = ">"

// maxCategoriesPerProduct は1商品に紐付ける分類の最大階層数。
const maxCategoriesPerProduct = 3

// defaultCategoryName は分類が特定できない商品に付与するフォールバック分類。
const defaultCategoryName = "General"

// MetricsRecorder はカタログ書き込みのメトリクス記録インターフェース。
type MetricsRecorder interface {
	RecordProductUpserted(operation string)
}

// UpsertResult はバッチ書き込みの結果集計。
type UpsertResult struct {
	// Created は新規作成された商品数。
	Created int
	// Updated は上書き更新された商品数。
	Updated int
	// Failed は書き込みに失敗した商品数。
	Failed int
}

// Processed は書き込みに成功した商品数を返す。
func (r UpsertResult) Processed() int {
	return r.Created + r.Updated
}

// BulkUpsertService は抽出済み商品のバッチ書き込みインターフェースを定義する。
type BulkUpsertService interface {
	// UpsertBatch は抽出済み商品を1件ずつカタログへUPSERTする。
	// 各レコードは独立に処理され、1件の失敗は残りの処理を妨げない。
	UpsertBatch(ctx context.Context, extracted []*model.ExtractedProduct, sourceURL, runID string) (UpsertResult, error)
}

// service はBulkUpsertServiceの実装。
type service struct {
	products   repository.ProductRepository
	categories repository.CategoryRepository
	sanitizer  security.TextSanitizerService
	metrics    MetricsRecorder
	logger     *slog.Logger
}

// NewService はBulkUpsertServiceの新しいインスタンスを生成する。
func NewService(
	products repository.ProductRepository,
	categories repository.CategoryRepository,
	sanitizer security.TextSanitizerService,
	metrics MetricsRecorder,
	logger *slog.Logger,
) *service {
	return &service{
		products:   products,
		categories: categories,
		sanitizer:  sanitizer,
		metrics:    metrics,
		logger:     logger,
	}
}

// UpsertBatch は抽出済み商品を1件ずつカタログへUPSERTする。
// コンテキストのキャンセルのみがバッチを中断させる。個別レコードの
// 書き込み失敗はログとメトリクスに記録した上で処理を継続する。
func (s *service) UpsertBatch(ctx context.Context, extracted []*model.ExtractedProduct, sourceURL, runID string) (UpsertResult, error) {
	var result UpsertResult

	for _, ep := range extracted {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if ep == nil || ep.Name == "" {
			continue
		}

		created, err := s.upsertOne(ctx, ep, sourceURL, runID)
		if err != nil {
			result.Failed++
			s.logger.Error("商品の書き込みに失敗しました",
				slog.String("product_name", ep.Name),
				slog.String("run_id", runID),
				slog.String("error", err.Error()),
			)
			continue
		}
		if created {
			result.Created++
			s.metrics.RecordProductUpserted("create")
		} else {
			result.Updated++
			s.metrics.RecordProductUpserted("update")
		}
	}

	s.logger.Info("バッチ書き込みが完了しました",
		slog.String("run_id", runID),
		slog.Int("created", result.Created),
		slog.Int("updated", result.Updated),
		slog.Int("failed", result.Failed),
	)

	return result, nil
}

// upsertOne は1件の商品をUPSERTする。新規作成の場合はtrueを返す。
// フィンガープリントはサニタイズ後の値から計算する。保存された行の
// フィールドからコンテンツハッシュを常に再現できるようにするため。
func (s *service) upsertOne(ctx context.Context, ep *model.ExtractedProduct, sourceURL, runID string) (bool, error) {
	cleaned := s.sanitizeExtracted(ep)
	contentHash := fingerprint.Hash(cleaned, sourceURL)
	product := s.buildProduct(cleaned, sourceURL, runID, contentHash)

	existing, err := s.products.FindByURLAndName(ctx, product.ProductURL, product.Name)
	if err != nil {
		return false, err
	}

	created := existing == nil
	if created {
		// 新規商品は常にdraft状態で作成する
		product.Status = model.ProductStatusDraft
		if err := s.products.Create(ctx, product); err != nil {
			return false, err
		}
	} else {
		// 既存商品はIDとcreated_at、公開状態を維持したまま内容を上書きする
		product.ID = existing.ID
		product.Status = existing.Status
		product.CreatedAt = existing.CreatedAt
		if err := s.products.Update(ctx, product); err != nil {
			return false, err
		}
	}

	if err := s.linkCategories(ctx, product); err != nil {
		// 分類の紐付け失敗は商品本体の書き込み成功を取り消さない
		s.logger.Warn("分類の紐付けに失敗しました",
			slog.Int64("product_id", product.ID),
			slog.String("error", err.Error()),
		)
	}

	return created, nil
}

// sanitizeExtracted は自由テキストフィールドをサニタイズしたコピーを返す。
// フィンガープリント計算より前に呼ぶこと。
func (s *service) sanitizeExtracted(ep *model.ExtractedProduct) *model.ExtractedProduct {
	cleaned := *ep
	cleaned.Name = s.sanitizer.Sanitize(ep.Name)
	cleaned.Description = s.sanitizer.Sanitize(ep.Description)

	about := make([]string, 0, len(ep.AboutThisItem))
	for _, item := range ep.AboutThisItem {
		if c := s.sanitizer.Sanitize(item); c != "" {
			about = append(about, c)
		}
	}
	if len(about) == 0 {
		about = nil
	}
	cleaned.AboutThisItem = about

	return &cleaned
}

// buildProduct はサニタイズ済みの抽出レコードから永続化用の商品レコードを構築する。
func (s *service) buildProduct(ep *model.ExtractedProduct, sourceURL, runID, contentHash string) *model.Product {
	return &model.Product{
		Name:              ep.Name,
		Price:             ep.Price,
		Rating:            ep.Rating,
		ReviewCountText:   ep.ReviewCountText,
		ReviewCount:       ep.ReviewCount,
		ImageURL:          ep.ImageURL,
		ProductURL:        ep.ProductURL,
		Description:       ep.Description,
		SourceURL:         sourceURL,
		ContentHash:       contentHash,
		CategoryPath:      ep.CategoryPath,
		BoughtInPastMonth: ep.BoughtInPastMonth,
		ProductDetails:    ep.ProductDetails,
		AboutThisItem:     ep.AboutThisItem,
		ColorOptions:      ep.ColorOptions,
		SizeOptions:       ep.SizeOptions,
		Platform:          ep.Platform,
		RunID:             runID,
		Categories:        SplitCategoryPath(ep.CategoryPath),
	}
}

// linkCategories はカテゴリパスの各階層を分類として登録し、商品に紐付ける。
func (s *service) linkCategories(ctx context.Context, product *model.Product) error {
	for _, name := range product.Categories {
		category, err := s.categories.UpsertByName(ctx, name)
		if err != nil {
			return err
		}
		if err := s.categories.LinkProduct(ctx, product.ID, category.ID); err != nil {
			return err
		}
	}
	return nil
}

// SplitCategoryPath はカテゴリパスを階層ごとの分類名に分割する。
// "Home"に相当する階層は除外し、先頭3階層までを採用する。
// 分類が1つも得られない場合はフォールバック分類を返す。
func SplitCategoryPath(path string) []string {
	categories := make([]string, 0, maxCategoriesPerProduct)
	for _, part := range strings.Split(path, categoryPathSeparator) {
		if len(categories) >= maxCategoriesPerProduct {
			break
		}
		trimmed := strings.TrimSpace(part)
		if trimmed == "" || strings.ToLower(trimmed) == "home" {
			continue
		}
		categories = append(categories, trimmed)
	}
	if len(categories) == 0 {
		return []string{defaultCategoryName}
	}
	return categories
}
