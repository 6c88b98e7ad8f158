package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/prodscout/internal/model"
)

// PostgresCategoryRepo はPostgreSQLを使用した分類リポジトリ。
type PostgresCategoryRepo struct {
	db *sql.DB
}

// NewPostgresCategoryRepo はPostgresCategoryRepoを生成する。
func NewPostgresCategoryRepo(db *sql.DB) *PostgresCategoryRepo {
	return &PostgresCategoryRepo{db: db}
}

// UpsertByName は名前で分類を冪等に作成する。
// 既存の場合はupdated_atのみ更新し、既存レコードを返す。
func (r *PostgresCategoryRepo) UpsertByName(ctx context.Context, name string) (*model.Category, error) {
	category := &model.Category{}
	var sourceURL sql.NullString

	err := r.db.QueryRowContext(ctx,
		`INSERT INTO categories (name)
		 VALUES ($1)
		 ON CONFLICT (name) DO UPDATE SET updated_at = now()
		 RETURNING id, name, source_url, created_at, updated_at`,
		name,
	).Scan(&category.ID, &category.Name, &sourceURL, &category.CreatedAt, &category.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("分類のUPSERTに失敗しました: %w", err)
	}

	category.SourceURL = nullStringValue(sourceURL)
	return category, nil
}

// LinkProduct は商品と分類の対応を冪等に作成する。
func (r *PostgresCategoryRepo) LinkProduct(ctx context.Context, productID, categoryID int64) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO product_categories (product_id, category_id)
		 VALUES ($1, $2)
		 ON CONFLICT (product_id, category_id) DO NOTHING`,
		productID, categoryID,
	)
	if err != nil {
		return fmt.Errorf("商品と分類の紐付けに失敗しました: %w", err)
	}
	return nil
}

// ListByProductID は商品に紐付く分類の一覧を返す。
func (r *PostgresCategoryRepo) ListByProductID(ctx context.Context, productID int64) ([]*model.Category, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT c.id, c.name, c.source_url, c.created_at, c.updated_at
		 FROM categories c
		 JOIN product_categories pc ON pc.category_id = c.id
		 WHERE pc.product_id = $1
		 ORDER BY pc.id`,
		productID,
	)
	if err != nil {
		return nil, fmt.Errorf("商品の分類一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var categories []*model.Category
	for rows.Next() {
		category := &model.Category{}
		var sourceURL sql.NullString
		if err := rows.Scan(&category.ID, &category.Name, &sourceURL,
			&category.CreatedAt, &category.UpdatedAt); err != nil {
			return nil, fmt.Errorf("分類行の読み取りに失敗しました: %w", err)
		}
		category.SourceURL = nullStringValue(sourceURL)
		categories = append(categories, category)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("分類一覧の走査に失敗しました: %w", err)
	}

	return categories, nil
}

// compile-time interface check
var _ CategoryRepository = (*PostgresCategoryRepo)(nil)
