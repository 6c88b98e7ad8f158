package analysis

import (
	"fmt"

	"github.com/hitoshi/prodscout/internal/catalog"
	"github.com/hitoshi/prodscout/internal/fingerprint"
	"github.com/hitoshi/prodscout/internal/model"
)

// ProductResponse はフロントエンド向けの商品表現。
// 数値化した価格と算出済みの利益率・競争度を含む。
type ProductResponse struct {
	ID                string              `json:"id"`
	Title             string              `json:"title"`
	Platform          string              `json:"platform"`
	Price             float64             `json:"price"`
	FormattedPrice    string              `json:"formattedPrice"`
	MarginRate        float64             `json:"marginRate"`
	CompetitionScore  float64             `json:"competitionScore"`
	CompetitionLevel  CompetitionLevel    `json:"competitionLevel"`
	Category          string              `json:"category"`
	ImageURL          string              `json:"imageUrl,omitempty"`
	Description       string              `json:"description,omitempty"`
	Rating            float64             `json:"rating,omitempty"`
	ReviewCount       int                 `json:"reviewCount,omitempty"`
	ProductURL        string              `json:"productUrl,omitempty"`
	CategoryPath      string              `json:"categoryPath,omitempty"`
	BoughtInPastMonth string              `json:"boughtInPastMonth,omitempty"`
	Status            string              `json:"status"`
	RunID             string              `json:"runId,omitempty"`
	Tags              []string            `json:"tags"`
	ProductDetails    map[string]string   `json:"productDetails,omitempty"`
	AboutThisItem     []string            `json:"aboutThisItem,omitempty"`
	ColorOptions      []model.ColorOption `json:"colorOptions,omitempty"`
	SizeOptions       []string            `json:"sizeOptions,omitempty"`
}

// ToProductResponse は商品レコードをフロントエンド向け表現に変換する。
func ToProductResponse(p *model.Product) ProductResponse {
	price := ParsePrice(p.Price)

	reviewCount := p.ReviewCount
	if reviewCount == 0 {
		reviewCount = ParseReviewCount(p.ReviewCountText)
	}

	score := CompetitionScore(reviewCount, p.Rating)

	categories := p.Categories
	if len(categories) == 0 {
		categories = catalog.SplitCategoryPath(p.CategoryPath)
	}
	category := categories[0]

	formattedPrice := p.Price
	if formattedPrice == "" {
		formattedPrice = fmt.Sprintf("$%.2f", price)
	}

	id := fmt.Sprintf("prod-%d", p.ID)
	if p.ContentHash != "" {
		id = fingerprint.ProductID(p.ContentHash)
	}

	return ProductResponse{
		ID:                id,
		Title:             p.Name,
		Platform:          platformOrDefault(p.Platform),
		Price:             price,
		FormattedPrice:    formattedPrice,
		MarginRate:        MarginRate(price),
		CompetitionScore:  score,
		CompetitionLevel:  LevelForScore(score),
		Category:          category,
		ImageURL:          p.ImageURL,
		Description:       p.Description,
		Rating:            p.Rating,
		ReviewCount:       reviewCount,
		ProductURL:        p.ProductURL,
		CategoryPath:      p.CategoryPath,
		BoughtInPastMonth: p.BoughtInPastMonth,
		Status:            string(p.Status),
		RunID:             p.RunID,
		Tags:              []string{},
		ProductDetails:    p.ProductDetails,
		AboutThisItem:     p.AboutThisItem,
		ColorOptions:      p.ColorOptions,
		SizeOptions:       p.SizeOptions,
	}
}

// ToProductResponses は商品レコードの一覧を一括変換する。
func ToProductResponses(products []*model.Product) []ProductResponse {
	responses := make([]ProductResponse, 0, len(products))
	for _, p := range products {
		responses = append(responses, ToProductResponse(p))
	}
	return responses
}

func platformOrDefault(platform string) string {
	if platform == "" {
		return model.PlatformAmazon
	}
	return platform
}
