// Package history はクエリ実行履歴の管理と保持ウィンドウの維持を提供する。
// 履歴は直近のバッチを新しい順に一定件数だけ保持し、ウィンドウから外れた
// バッチはそのバッチで書き込まれた商品ごと破棄される。
package history

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/prodscout/internal/model"
	"github.com/hitoshi/prodscout/internal/repository"
)

// DefaultKeep は保持するバッチ数のデフォルト値。
const DefaultKeep = 5

// MetricsRecorder は履歴管理のメトリクス記録インターフェース。
type MetricsRecorder interface {
	RecordBatchEvicted()
}

// Service はクエリ実行履歴の管理インターフェースを定義する。
type Service interface {
	// LookupByKeyword はキーワードに完全一致する最新バッチとその商品を返す。
	// 照合は大文字小文字を区別する。該当バッチがない場合は(nil, nil, nil)を返す。
	LookupByKeyword(ctx context.Context, keyword string) (*model.QueryBatch, []*model.Product, error)

	// RecordBatch は取り込み実行のバッチレコードを作成する。
	RecordBatch(ctx context.Context, keyword, runID string, productCount int) (*model.QueryBatch, error)

	// EvictExcess は保持ウィンドウから外れたバッチを破棄し、破棄件数を返す。
	// 破棄は古いバッチから順に、商品→バッチレコードの順で行う。
	EvictExcess(ctx context.Context) (int, error)

	// ListBatches はバッチ一覧を新しい順に返す。
	ListBatches(ctx context.Context, limit int) ([]*model.QueryBatch, error)

	// FindBatch は実行IDでバッチを検索する。見つからない場合はnilを返す。
	FindBatch(ctx context.Context, runID string) (*model.QueryBatch, error)

	// ProductsForRun は指定の取り込み実行で書き込まれた商品一覧を返す。
	ProductsForRun(ctx context.Context, runID string) ([]*model.Product, error)
}

// service はServiceの実装。
type service struct {
	batches  repository.QueryHistoryRepository
	products repository.ProductRepository
	metrics  MetricsRecorder
	logger   *slog.Logger
	keep     int
}

// NewService はServiceの新しいインスタンスを生成する。
// keepが0以下の場合はDefaultKeepが適用される。
func NewService(
	batches repository.QueryHistoryRepository,
	products repository.ProductRepository,
	metrics MetricsRecorder,
	logger *slog.Logger,
	keep int,
) *service {
	if keep <= 0 {
		keep = DefaultKeep
	}
	return &service{
		batches:  batches,
		products: products,
		metrics:  metrics,
		logger:   logger,
		keep:     keep,
	}
}

// LookupByKeyword はキーワードに完全一致する最新バッチとその商品を返す。
func (s *service) LookupByKeyword(ctx context.Context, keyword string) (*model.QueryBatch, []*model.Product, error) {
	batch, err := s.batches.FindLatestByKeyword(ctx, keyword)
	if err != nil {
		return nil, nil, fmt.Errorf("キーワードによるバッチの検索に失敗しました: %w", err)
	}
	if batch == nil {
		return nil, nil, nil
	}

	products, err := s.products.ListByRunID(ctx, batch.RunID)
	if err != nil {
		return nil, nil, fmt.Errorf("バッチの商品一覧の取得に失敗しました: %w", err)
	}
	return batch, products, nil
}

// RecordBatch は取り込み実行のバッチレコードを作成する。
func (s *service) RecordBatch(ctx context.Context, keyword, runID string, productCount int) (*model.QueryBatch, error) {
	batch := &model.QueryBatch{
		QueryKeyword: keyword,
		RunID:        runID,
		ProductCount: productCount,
	}
	if err := s.batches.Create(ctx, batch); err != nil {
		return nil, fmt.Errorf("バッチレコードの作成に失敗しました: %w", err)
	}

	s.logger.Info("バッチレコードを作成しました",
		slog.String("query_keyword", keyword),
		slog.String("run_id", runID),
		slog.Int("product_count", productCount),
	)
	return batch, nil
}

// EvictExcess は保持ウィンドウから外れたバッチを破棄し、破棄件数を返す。
// 各バッチについて商品を先に削除し、その後バッチレコードを削除する。
// この順序により、途中で失敗してもバッチレコードが残り再試行可能になる。
func (s *service) EvictExcess(ctx context.Context) (int, error) {
	evictable, err := s.batches.ListEvictable(ctx, s.keep)
	if err != nil {
		return 0, fmt.Errorf("破棄対象バッチの取得に失敗しました: %w", err)
	}

	evicted := 0
	for _, batch := range evictable {
		deleted, err := s.products.DeleteByRunID(ctx, batch.RunID)
		if err != nil {
			return evicted, fmt.Errorf("バッチ商品の削除に失敗しました: %w", err)
		}
		if err := s.batches.DeleteByID(ctx, batch.ID); err != nil {
			return evicted, fmt.Errorf("バッチレコードの削除に失敗しました: %w", err)
		}

		evicted++
		s.metrics.RecordBatchEvicted()
		s.logger.Info("保持ウィンドウ外のバッチを破棄しました",
			slog.String("query_keyword", batch.QueryKeyword),
			slog.String("run_id", batch.RunID),
			slog.Int64("products_deleted", deleted),
		)
	}

	return evicted, nil
}

// ListBatches はバッチ一覧を新しい順に返す。
func (s *service) ListBatches(ctx context.Context, limit int) ([]*model.QueryBatch, error) {
	batches, err := s.batches.List(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("バッチ一覧の取得に失敗しました: %w", err)
	}
	return batches, nil
}

// FindBatch は実行IDでバッチを検索する。見つからない場合はnilを返す。
func (s *service) FindBatch(ctx context.Context, runID string) (*model.QueryBatch, error) {
	batch, err := s.batches.FindByRunID(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("実行IDによるバッチの検索に失敗しました: %w", err)
	}
	return batch, nil
}

// ProductsForRun は指定の取り込み実行で書き込まれた商品一覧を返す。
func (s *service) ProductsForRun(ctx context.Context, runID string) ([]*model.Product, error) {
	products, err := s.products.ListByRunID(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("実行IDによる商品一覧の取得に失敗しました: %w", err)
	}
	return products, nil
}
