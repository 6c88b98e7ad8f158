package extractor

import "github.com/hitoshi/prodscout/internal/model"

// Merge は検索結果ページ由来のレコードに詳細ページ由来の部分レコードを統合する。
// 詳細ページで抽出できたフィールドが検索結果側の値を上書きする。
// ただし商品URLは常に検索結果側の値を保持する（詳細ページのリダイレクトで
// 正規URLが失われるのを防ぐ）。詳細側がゼロ値のフィールドは上書きしない。
func Merge(base, detail *model.ExtractedProduct) *model.ExtractedProduct {
	if base == nil {
		return detail
	}
	if detail == nil {
		return base
	}

	merged := *base

	if detail.Name != "" {
		merged.Name = detail.Name
	}
	if detail.Price != "" {
		merged.Price = detail.Price
	}
	if detail.Rating != 0 {
		merged.Rating = detail.Rating
	}
	if detail.ReviewCountText != "" {
		merged.ReviewCountText = detail.ReviewCountText
		merged.ReviewCount = detail.ReviewCount
	}
	if detail.ImageURL != "" {
		merged.ImageURL = detail.ImageURL
	}
	if detail.Description != "" {
		merged.Description = detail.Description
	}
	if detail.CategoryPath != "" {
		merged.CategoryPath = detail.CategoryPath
	}
	if detail.BoughtInPastMonth != "" {
		merged.BoughtInPastMonth = detail.BoughtInPastMonth
	}
	if len(detail.ProductDetails) > 0 {
		merged.ProductDetails = detail.ProductDetails
	}
	if len(detail.AboutThisItem) > 0 {
		merged.AboutThisItem = detail.AboutThisItem
	}
	if len(detail.ColorOptions) > 0 {
		merged.ColorOptions = detail.ColorOptions
	}
	if len(detail.SizeOptions) > 0 {
		merged.SizeOptions = detail.SizeOptions
	}

	// 商品URLは検索結果側を常に維持する
	merged.ProductURL = base.ProductURL

	return &merged
}
