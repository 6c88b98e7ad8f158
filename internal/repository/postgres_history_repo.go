package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/prodscout/internal/model"
)

// PostgresQueryHistoryRepo はPostgreSQLを使用したクエリ実行履歴リポジトリ。
type PostgresQueryHistoryRepo struct {
	db *sql.DB
}

// NewPostgresQueryHistoryRepo はPostgresQueryHistoryRepoを生成する。
func NewPostgresQueryHistoryRepo(db *sql.DB) *PostgresQueryHistoryRepo {
	return &PostgresQueryHistoryRepo{db: db}
}

// Create はバッチレコードを作成する。採番されたIDとcreated_atをbatchに書き戻す。
func (r *PostgresQueryHistoryRepo) Create(ctx context.Context, batch *model.QueryBatch) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO query_history (query_keyword, run_id, product_count)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at`,
		batch.QueryKeyword, batch.RunID, batch.ProductCount,
	).Scan(&batch.ID, &batch.CreatedAt)
	if err != nil {
		return fmt.Errorf("バッチレコードの作成に失敗しました: %w", err)
	}
	return nil
}

// FindLatestByKeyword はキーワードに完全一致する最新のバッチを返す。
// 照合は大文字小文字を区別する。見つからない場合はnilを返す。
func (r *PostgresQueryHistoryRepo) FindLatestByKeyword(ctx context.Context, keyword string) (*model.QueryBatch, error) {
	batch := &model.QueryBatch{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, query_keyword, run_id, product_count, created_at
		 FROM query_history
		 WHERE query_keyword = $1
		 ORDER BY created_at DESC
		 LIMIT 1`,
		keyword,
	).Scan(&batch.ID, &batch.QueryKeyword, &batch.RunID, &batch.ProductCount, &batch.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("キーワードによるバッチの検索に失敗しました: %w", err)
	}
	return batch, nil
}

// FindByRunID は実行IDでバッチを検索する。見つからない場合はnilを返す。
func (r *PostgresQueryHistoryRepo) FindByRunID(ctx context.Context, runID string) (*model.QueryBatch, error) {
	batch := &model.QueryBatch{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, query_keyword, run_id, product_count, created_at
		 FROM query_history
		 WHERE run_id = $1`,
		runID,
	).Scan(&batch.ID, &batch.QueryKeyword, &batch.RunID, &batch.ProductCount, &batch.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("実行IDによるバッチの検索に失敗しました: %w", err)
	}
	return batch, nil
}

// List はバッチ一覧をcreated_at降順で取得する。
func (r *PostgresQueryHistoryRepo) List(ctx context.Context, limit int) ([]*model.QueryBatch, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, query_keyword, run_id, product_count, created_at
		 FROM query_history
		 ORDER BY created_at DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("バッチ一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	return scanBatches(rows)
}

// ListEvictable は保持ウィンドウ（新しい順にkeep件）から外れたバッチを古い順に返す。
func (r *PostgresQueryHistoryRepo) ListEvictable(ctx context.Context, keep int) ([]*model.QueryBatch, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, query_keyword, run_id, product_count, created_at
		 FROM query_history
		 ORDER BY created_at DESC
		 OFFSET $1`,
		keep,
	)
	if err != nil {
		return nil, fmt.Errorf("破棄対象バッチの取得に失敗しました: %w", err)
	}
	defer rows.Close()

	batches, err := scanBatches(rows)
	if err != nil {
		return nil, err
	}

	// 破棄処理は古いバッチから行うため逆順に並べ替える
	for i, j := 0, len(batches)-1; i < j; i, j = i+1, j-1 {
		batches[i], batches[j] = batches[j], batches[i]
	}
	return batches, nil
}

// DeleteByID は指定IDのバッチレコードを削除する。
func (r *PostgresQueryHistoryRepo) DeleteByID(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM query_history WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("バッチレコードの削除に失敗しました: %w", err)
	}
	return nil
}

// scanBatches はバッチ行を複数件スキャンする。
func scanBatches(rows *sql.Rows) ([]*model.QueryBatch, error) {
	var batches []*model.QueryBatch
	for rows.Next() {
		batch := &model.QueryBatch{}
		if err := rows.Scan(&batch.ID, &batch.QueryKeyword, &batch.RunID,
			&batch.ProductCount, &batch.CreatedAt); err != nil {
			return nil, fmt.Errorf("バッチ行の読み取りに失敗しました: %w", err)
		}
		batches = append(batches, batch)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("バッチ一覧の走査に失敗しました: %w", err)
	}
	return batches, nil
}

// compile-time interface check
var _ QueryHistoryRepository = (*PostgresQueryHistoryRepo)(nil)
