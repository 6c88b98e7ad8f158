// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/prodscout/internal/model"
)

// ProductFilter は商品一覧取得の絞り込み条件。
type ProductFilter struct {
	// Keyword は商品名に対する部分一致条件（大文字小文字無視）。空の場合は条件なし。
	Keyword string
	// Status は公開状態の一致条件。空の場合は条件なし。
	Status model.ProductStatus
	// RunID は取り込み実行IDの一致条件。空の場合は条件なし。
	RunID string
	// Limit は最大取得件数。0以下の場合はデフォルト値が適用される。
	Limit int
	// Offset は取得開始位置。
	Offset int
}

// ProductStats は商品テーブル全体の集計値。
type ProductStats struct {
	TotalProducts int
	DraftCount    int
	ActiveCount   int
	AverageRating float64
	RunCount      int
}

// ProductRepository は商品データの永続化インターフェース。
// 商品の同一性は (product_url, name) の組で判定される。
type ProductRepository interface {
	// FindByID は指定IDの商品を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.Product, error)

	// FindByContentHashPrefix はコンテンツハッシュの前方一致で商品を検索する。
	// 公開商品IDからの逆引きに使用する。見つからない場合はnilを返す。
	FindByContentHashPrefix(ctx context.Context, prefix string) (*model.Product, error)

	// FindByURLAndName は商品URLと商品名の組で商品を検索する。
	// UPSERT時の同一性判定に使用する。見つからない場合はnilを返す。
	FindByURLAndName(ctx context.Context, productURL, name string) (*model.Product, error)

	// Create は新規商品を作成する。
	// 採番されたIDとDB側のタイムスタンプをproductに書き戻す。
	Create(ctx context.Context, product *model.Product) error

	// Update は既存商品を上書き更新する。created_atは変更しない。
	Update(ctx context.Context, product *model.Product) error

	// List は絞り込み条件に一致する商品一覧をcreated_at降順で取得する。
	List(ctx context.Context, filter ProductFilter) ([]*model.Product, error)

	// ListByRunID は指定の取り込み実行で書き込まれた商品一覧を取得する。
	ListByRunID(ctx context.Context, runID string) ([]*model.Product, error)

	// DeleteByRunID は指定の取り込み実行で書き込まれた商品を全て削除し、削除件数を返す。
	// 関連するproduct_categoriesはCASCADE削除される。
	DeleteByRunID(ctx context.Context, runID string) (int64, error)

	// Stats は商品テーブル全体の集計値を返す。
	Stats(ctx context.Context) (*ProductStats, error)
}

// CategoryRepository は分類データの永続化インターフェース。
// 分類は名前でユニークであり、一度作成されたら削除されない。
type CategoryRepository interface {
	// UpsertByName は名前で分類を冪等に作成する。
	// 既存の場合はupdated_atのみ更新し、既存レコードを返す。
	UpsertByName(ctx context.Context, name string) (*model.Category, error)

	// LinkProduct は商品と分類の対応を冪等に作成する。
	LinkProduct(ctx context.Context, productID, categoryID int64) error

	// ListByProductID は商品に紐付く分類の一覧を返す。
	ListByProductID(ctx context.Context, productID int64) ([]*model.Category, error)
}

// QueryHistoryRepository はクエリ実行履歴の永続化インターフェース。
type QueryHistoryRepository interface {
	// Create はバッチレコードを作成する。採番されたIDとcreated_atをbatchに書き戻す。
	Create(ctx context.Context, batch *model.QueryBatch) error

	// FindLatestByKeyword はキーワードに完全一致する最新のバッチを返す。
	// 照合は大文字小文字を区別する。見つからない場合はnilを返す。
	FindLatestByKeyword(ctx context.Context, keyword string) (*model.QueryBatch, error)

	// FindByRunID は実行IDでバッチを検索する。見つからない場合はnilを返す。
	FindByRunID(ctx context.Context, runID string) (*model.QueryBatch, error)

	// List はバッチ一覧をcreated_at降順で取得する。
	List(ctx context.Context, limit int) ([]*model.QueryBatch, error)

	// ListEvictable は保持ウィンドウ（新しい順にkeep件）から外れたバッチを
	// 古い順に返す。
	ListEvictable(ctx context.Context, keep int) ([]*model.QueryBatch, error)

	// DeleteByID は指定IDのバッチレコードを削除する。
	DeleteByID(ctx context.Context, id int64) error
}
