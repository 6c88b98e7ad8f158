package model

import "time"

// Category は商品の分類を表す。nameはユニークで、一度作成されたら削除されない
// （保持ウィンドウによる削除の対象外）。
type Category struct {
	ID        int64
	Name      string
	SourceURL string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// QueryBatch は1回の取り込み実行のメタデータを表す。
// キャッシュショートカットで既存バッチが返された場合は新しいバッチを作成しない。
type QueryBatch struct {
	ID           int64
	QueryKeyword string
	RunID        string
	ProductCount int
	CreatedAt    time.Time
}
