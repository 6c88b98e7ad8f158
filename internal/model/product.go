// Package model はドメインモデルを定義する。
package model

import "time"

// PlatformAmazon は本スクレイパーが対象とするプラットフォーム識別子。
const PlatformAmazon = "amazon"

// ProductStatus は商品の公開状態を表す。
type ProductStatus string

const (
	// ProductStatusDraft は取り込み直後の下書き状態。パイプラインは常にこの状態で書き込む。
	ProductStatusDraft ProductStatus = "draft"
	// ProductStatusActive は公開状態。管理操作によってのみ遷移する（draft → active の一方向）。
	ProductStatusActive ProductStatus = "active"
)

// ColorOption は詳細ページから抽出したカラーバリエーションを表す。
type ColorOption struct {
	Name  string `json:"color_name"`
	Price string `json:"color_price,omitempty"`
}

// ExtractedProduct は抽出直後の未保存の商品候補を表す。
// name以外のフィールドはすべて任意。抽出器が検出できなかったフィールドはゼロ値のまま残る。
type ExtractedProduct struct {
	Name             string
	Price            string
	Rating           float64
	ReviewCountText  string
	ReviewCount      int
	ImageURL         string
	ProductURL       string
	Description      string
	CategoryPath     string
	BoughtInPastMonth string
	ProductDetails   map[string]string
	AboutThisItem    []string
	ColorOptions     []ColorOption
	SizeOptions      []string
	Platform         string
}

// Product は永続化された正規商品レコードを表す。
// 保存上の同一性は (ProductURL, Name) の組で決まり、ContentHashとは独立している。
type Product struct {
	ID                int64
	Name              string
	Price             string
	Rating            float64
	ReviewCountText   string
	ReviewCount       int
	ImageURL          string
	ProductURL        string
	Description       string
	SourceURL         string
	ContentHash       string
	CategoryPath      string
	BoughtInPastMonth string
	ProductDetails    map[string]string
	AboutThisItem     []string
	ColorOptions      []ColorOption
	SizeOptions       []string
	Platform          string
	Status            ProductStatus
	RunID             string
	Categories        []string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}
