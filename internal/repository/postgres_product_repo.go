package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/hitoshi/prodscout/internal/model"
)

// defaultListLimit は一覧取得のデフォルト最大件数。
const defaultListLimit = 50

// productColumns は商品行のSELECT対象カラム。スキャン順序と一致させること。
const productColumns = `id, name, price, rating, review_count_text, review_count,
       image_url, product_url, description, source_url, content_hash,
       category_path, bought_in_past_month, product_details, about_this_item,
       color_options, size_options, platform, status, run_id, created_at, updated_at`

// PostgresProductRepo はPostgreSQLを使用した商品リポジトリ。
type PostgresProductRepo struct {
	db *sql.DB
}

// NewPostgresProductRepo はPostgresProductRepoを生成する。
func NewPostgresProductRepo(db *sql.DB) *PostgresProductRepo {
	return &PostgresProductRepo{db: db}
}

// FindByID は指定IDの商品を取得する。見つからない場合はnilを返す。
func (r *PostgresProductRepo) FindByID(ctx context.Context, id int64) (*model.Product, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = $1`, id)

	product, err := scanProduct(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("商品の取得に失敗しました: %w", err)
	}
	return product, nil
}

// FindByContentHashPrefix はコンテンツハッシュの前方一致で商品を検索する。
// APIの公開商品ID（ハッシュの先頭12文字）からの逆引きに使用する。
// 見つからない場合はnilを返す。
func (r *PostgresProductRepo) FindByContentHashPrefix(ctx context.Context, prefix string) (*model.Product, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE content_hash LIKE $1 || '%' LIMIT 1`,
		prefix)

	product, err := scanProduct(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("コンテンツハッシュによる検索に失敗しました: %w", err)
	}
	return product, nil
}

// FindByURLAndName は商品URLと商品名の組で商品を検索する。見つからない場合はnilを返す。
// product_urlは空文字列も識別子の一部として照合する（URLなし商品同士は同一視される）。
func (r *PostgresProductRepo) FindByURLAndName(ctx context.Context, productURL, name string) (*model.Product, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+productColumns+` FROM products
		 WHERE product_url IS NOT DISTINCT FROM $1 AND name = $2`,
		productURL, name)

	product, err := scanProduct(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("商品URLと商品名による検索に失敗しました: %w", err)
	}
	return product, nil
}

// Create は新規商品を作成する。採番されたIDとDB側のタイムスタンプをproductに書き戻す。
func (r *PostgresProductRepo) Create(ctx context.Context, product *model.Product) error {
	details, err := marshalJSONB(product.ProductDetails, len(product.ProductDetails) == 0)
	if err != nil {
		return fmt.Errorf("商品詳細のエンコードに失敗しました: %w", err)
	}
	about, err := marshalJSONB(product.AboutThisItem, len(product.AboutThisItem) == 0)
	if err != nil {
		return fmt.Errorf("箇条書きのエンコードに失敗しました: %w", err)
	}
	colors, err := marshalJSONB(product.ColorOptions, len(product.ColorOptions) == 0)
	if err != nil {
		return fmt.Errorf("カラー選択肢のエンコードに失敗しました: %w", err)
	}
	sizes, err := marshalJSONB(product.SizeOptions, len(product.SizeOptions) == 0)
	if err != nil {
		return fmt.Errorf("サイズ選択肢のエンコードに失敗しました: %w", err)
	}

	err = r.db.QueryRowContext(ctx,
		`INSERT INTO products (name, price, rating, review_count_text, review_count,
		                       image_url, product_url, description, source_url, content_hash,
		                       category_path, bought_in_past_month, product_details,
		                       about_this_item, color_options, size_options,
		                       platform, status, run_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
		         $11, $12, $13, $14, $15, $16, $17, $18, $19)
		 RETURNING id, created_at, updated_at`,
		product.Name, nullString(product.Price), product.Rating,
		nullString(product.ReviewCountText), product.ReviewCount,
		// product_urlは格納識別子のためNULLにせず空文字列のまま格納する
		nullString(product.ImageURL), product.ProductURL,
		nullString(product.Description), nullString(product.SourceURL),
		nullString(product.ContentHash), nullString(product.CategoryPath),
		nullString(product.BoughtInPastMonth), details, about, colors, sizes,
		nullString(product.Platform), string(product.Status), nullString(product.RunID),
	).Scan(&product.ID, &product.CreatedAt, &product.UpdatedAt)
	if err != nil {
		return fmt.Errorf("商品の作成に失敗しました: %w", err)
	}
	return nil
}

// Update は既存商品を上書き更新する。created_atは変更しない。
func (r *PostgresProductRepo) Update(ctx context.Context, product *model.Product) error {
	details, err := marshalJSONB(product.ProductDetails, len(product.ProductDetails) == 0)
	if err != nil {
		return fmt.Errorf("商品詳細のエンコードに失敗しました: %w", err)
	}
	about, err := marshalJSONB(product.AboutThisItem, len(product.AboutThisItem) == 0)
	if err != nil {
		return fmt.Errorf("箇条書きのエンコードに失敗しました: %w", err)
	}
	colors, err := marshalJSONB(product.ColorOptions, len(product.ColorOptions) == 0)
	if err != nil {
		return fmt.Errorf("カラー選択肢のエンコードに失敗しました: %w", err)
	}
	sizes, err := marshalJSONB(product.SizeOptions, len(product.SizeOptions) == 0)
	if err != nil {
		return fmt.Errorf("サイズ選択肢のエンコードに失敗しました: %w", err)
	}

	err = r.db.QueryRowContext(ctx,
		`UPDATE products SET
		    name = $2, price = $3, rating = $4, review_count_text = $5,
		    review_count = $6, image_url = $7, description = $8,
		    source_url = $9, content_hash = $10, category_path = $11,
		    bought_in_past_month = $12, product_details = $13, about_this_item = $14,
		    color_options = $15, size_options = $16, platform = $17,
		    run_id = $18, updated_at = now()
		 WHERE id = $1
		 RETURNING updated_at`,
		product.ID, product.Name, nullString(product.Price), product.Rating,
		nullString(product.ReviewCountText), product.ReviewCount,
		nullString(product.ImageURL), nullString(product.Description),
		nullString(product.SourceURL), nullString(product.ContentHash),
		nullString(product.CategoryPath), nullString(product.BoughtInPastMonth),
		details, about, colors, sizes, nullString(product.Platform),
		nullString(product.RunID),
	).Scan(&product.UpdatedAt)
	if err != nil {
		return fmt.Errorf("商品の更新に失敗しました: %w", err)
	}
	return nil
}

// List は絞り込み条件に一致する商品一覧をcreated_at降順で取得する。
func (r *PostgresProductRepo) List(ctx context.Context, filter ProductFilter) ([]*model.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE 1=1`
	args := []interface{}{}
	argIndex := 1

	if filter.Keyword != "" {
		query += fmt.Sprintf(" AND name ILIKE $%d", argIndex)
		args = append(args, "%"+filter.Keyword+"%")
		argIndex++
	}
	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIndex)
		args = append(args, string(filter.Status))
		argIndex++
	}
	if filter.RunID != "" {
		query += fmt.Sprintf(" AND run_id = $%d", argIndex)
		args = append(args, filter.RunID)
		argIndex++
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", argIndex, argIndex+1)
	args = append(args, limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("商品一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	return scanProducts(rows)
}

// ListByRunID は指定の取り込み実行で書き込まれた商品一覧を取得する。
func (r *PostgresProductRepo) ListByRunID(ctx context.Context, runID string) ([]*model.Product, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE run_id = $1 ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("実行IDによる商品一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	return scanProducts(rows)
}

// DeleteByRunID は指定の取り込み実行で書き込まれた商品を全て削除し、削除件数を返す。
func (r *PostgresProductRepo) DeleteByRunID(ctx context.Context, runID string) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM products WHERE run_id = $1`, runID)
	if err != nil {
		return 0, fmt.Errorf("実行IDによる商品の削除に失敗しました: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("削除件数の取得に失敗しました: %w", err)
	}
	return deleted, nil
}

// Stats は商品テーブル全体の集計値を返す。
func (r *PostgresProductRepo) Stats(ctx context.Context) (*ProductStats, error) {
	stats := &ProductStats{}
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*),
		        COUNT(*) FILTER (WHERE status = 'draft'),
		        COUNT(*) FILTER (WHERE status = 'active'),
		        COALESCE(AVG(rating) FILTER (WHERE rating > 0), 0),
		        COUNT(DISTINCT run_id)
		 FROM products`,
	).Scan(&stats.TotalProducts, &stats.DraftCount, &stats.ActiveCount,
		&stats.AverageRating, &stats.RunCount)
	if err != nil {
		return nil, fmt.Errorf("商品集計の取得に失敗しました: %w", err)
	}
	return stats, nil
}

// rowScanner は単一行・複数行のスキャンを共通化するためのインターフェース。
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanProduct は商品行を1件スキャンする。
func scanProduct(row rowScanner) (*model.Product, error) {
	product := &model.Product{}
	var price, reviewCountText, imageURL, productURL, description sql.NullString
	var sourceURL, contentHash, categoryPath, bought, platform, runID sql.NullString
	var rating sql.NullFloat64
	var reviewCount sql.NullInt64
	var details, about, colors, sizes []byte

	err := row.Scan(
		&product.ID, &product.Name, &price, &rating, &reviewCountText, &reviewCount,
		&imageURL, &productURL, &description, &sourceURL, &contentHash,
		&categoryPath, &bought, &details, &about, &colors, &sizes,
		&platform, &product.Status, &runID, &product.CreatedAt, &product.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	product.Price = nullStringValue(price)
	product.ReviewCountText = nullStringValue(reviewCountText)
	product.ImageURL = nullStringValue(imageURL)
	product.ProductURL = nullStringValue(productURL)
	product.Description = nullStringValue(description)
	product.SourceURL = nullStringValue(sourceURL)
	product.ContentHash = nullStringValue(contentHash)
	product.CategoryPath = nullStringValue(categoryPath)
	product.BoughtInPastMonth = nullStringValue(bought)
	product.Platform = nullStringValue(platform)
	product.RunID = nullStringValue(runID)
	if rating.Valid {
		product.Rating = rating.Float64
	}
	if reviewCount.Valid {
		product.ReviewCount = int(reviewCount.Int64)
	}

	if err := unmarshalJSONB(details, &product.ProductDetails); err != nil {
		return nil, fmt.Errorf("商品詳細のデコードに失敗しました: %w", err)
	}
	if err := unmarshalJSONB(about, &product.AboutThisItem); err != nil {
		return nil, fmt.Errorf("箇条書きのデコードに失敗しました: %w", err)
	}
	if err := unmarshalJSONB(colors, &product.ColorOptions); err != nil {
		return nil, fmt.Errorf("カラー選択肢のデコードに失敗しました: %w", err)
	}
	if err := unmarshalJSONB(sizes, &product.SizeOptions); err != nil {
		return nil, fmt.Errorf("サイズ選択肢のデコードに失敗しました: %w", err)
	}

	return product, nil
}

// scanProducts は商品行を複数件スキャンする。
func scanProducts(rows *sql.Rows) ([]*model.Product, error) {
	var products []*model.Product
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("商品行の読み取りに失敗しました: %w", err)
		}
		products = append(products, product)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("商品一覧の走査に失敗しました: %w", err)
	}
	return products, nil
}

// nullString は空文字列をNULLに変換する。
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// nullStringValue はNullStringから値を取り出す。NULLの場合は空文字列を返す。
func nullStringValue(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// marshalJSONB は値をJSONB格納用にエンコードする。emptyの場合はNULLとして格納する。
func marshalJSONB(v interface{}, empty bool) (interface{}, error) {
	if empty {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return data, nil
}

// unmarshalJSONB はJSONBカラムの値をデコードする。NULLの場合は何もしない。
func unmarshalJSONB(data []byte, v interface{}) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}

// compile-time interface check
var _ ProductRepository = (*PostgresProductRepo)(nil)
