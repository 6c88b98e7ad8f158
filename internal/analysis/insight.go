package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/prodscout/internal/model"
)

const (
	// defaultInsightEndpoint はGemini APIのエンドポイント。
	defaultInsightEndpoint = "https://generativelanguage.googleapis.com/v1beta/models"
	// maxSummaryProducts はAIに渡す商品サマリーの最大件数。
	maxSummaryProducts = 20
)

// InsightClient は外部AI（Gemini API）によるインサイト生成クライアント。
// APIキーが未設定の場合、生成機能は無効として扱われる。
type InsightClient struct {
	httpClient *http.Client
	logger     *slog.Logger
	apiKey     string
	modelName  string
	endpoint   string // テスト用にエンドポイントを差し替え可能
}

// NewInsightClient はInsightClientの新しいインスタンスを生成する。
func NewInsightClient(httpClient *http.Client, logger *slog.Logger, apiKey, modelName string) *InsightClient {
	return &InsightClient{
		httpClient: httpClient,
		logger:     logger,
		apiKey:     apiKey,
		modelName:  modelName,
		endpoint:   defaultInsightEndpoint,
	}
}

// Enabled はインサイト生成機能が利用可能かを返す。
func (c *InsightClient) Enabled() bool {
	return c.apiKey != ""
}

// geminiRequest はGemini APIのリクエストボディ。
type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

// geminiResponse はGemini APIのレスポンスボディ。
type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

// GenerateInsight は商品データのサマリーを外部AIに渡し、市場インサイトの
// テキストを生成する。APIキー未設定時はINSIGHT_UNAVAILABLEエラーを返す。
func (c *InsightClient) GenerateInsight(ctx context.Context, products []*model.Product, focus string) (string, error) {
	if !c.Enabled() {
		return "", model.NewInsightUnavailableError()
	}

	prompt := buildInsightPrompt(products, focus)

	reqBody, err := json.Marshal(geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: prompt}}}},
	})
	if err != nil {
		return "", fmt.Errorf("リクエストボディの構築に失敗しました: %w", err)
	}

	reqURL := fmt.Sprintf("%s/%s:generateContent?key=%s", c.endpoint, c.modelName, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(reqBody))
	if err != nil {
		return "", fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Gemini APIの呼び出しに失敗しました",
			slog.String("error", err.Error()),
		)
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("Gemini APIがエラーステータスを返しました",
			slog.Int("http_status", resp.StatusCode),
		)
		return "", fmt.Errorf("Gemini APIがステータス %d を返しました", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}

	var result geminiResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}
	if len(result.Candidates) == 0 || len(result.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("Gemini APIのレスポンスに生成結果が含まれていません")
	}

	return result.Candidates[0].Content.Parts[0].Text, nil
}

// buildInsightPrompt は商品一覧からAI分析用のプロンプトを構築する。
func buildInsightPrompt(products []*model.Product, focus string) string {
	var sb strings.Builder

	sb.WriteString("You are an e-commerce market analyst. ")
	sb.WriteString("Analyze the following scraped product data and provide actionable insights")
	if focus != "" {
		sb.WriteString(" with a focus on ")
		sb.WriteString(focus)
	}
	sb.WriteString(".\n\n")
	sb.WriteString(BuildProductSummary(products))

	return sb.String()
}

// BuildProductSummary は商品一覧の統計サマリーテキストを構築する。
// 価格・評価・レビュー数の統計と分類の内訳を含む。
func BuildProductSummary(products []*model.Product) string {
	if len(products) == 0 {
		return "No products available for analysis."
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Total products: %d\n", len(products))

	var prices, ratings []float64
	var reviewCounts []int
	categoryCounts := make(map[string]int)

	for _, p := range products {
		if price := ParsePrice(p.Price); price > 0 {
			prices = append(prices, price)
		}
		if p.Rating > 0 {
			ratings = append(ratings, p.Rating)
		}
		reviewCount := p.ReviewCount
		if reviewCount == 0 {
			reviewCount = ParseReviewCount(p.ReviewCountText)
		}
		if reviewCount > 0 {
			reviewCounts = append(reviewCounts, reviewCount)
		}
		for _, c := range p.Categories {
			categoryCounts[c]++
		}
	}

	if len(prices) > 0 {
		minPrice, maxPrice, total := prices[0], prices[0], 0.0
		for _, v := range prices {
			total += v
			if v < minPrice {
				minPrice = v
			}
			if v > maxPrice {
				maxPrice = v
			}
		}
		fmt.Fprintf(&sb, "\nPrice Analysis:\n")
		fmt.Fprintf(&sb, "  - Average: $%.2f\n", total/float64(len(prices)))
		fmt.Fprintf(&sb, "  - Range: $%.2f - $%.2f\n", minPrice, maxPrice)
		fmt.Fprintf(&sb, "  - Products with price: %d/%d\n", len(prices), len(products))
	}

	if len(ratings) > 0 {
		total := 0.0
		for _, v := range ratings {
			total += v
		}
		fmt.Fprintf(&sb, "\nRating Analysis:\n")
		fmt.Fprintf(&sb, "  - Average rating: %.2f/5.0\n", total/float64(len(ratings)))
		fmt.Fprintf(&sb, "  - Products with rating: %d/%d\n", len(ratings), len(products))
	}

	if len(reviewCounts) > 0 {
		total, maxReviews := 0, reviewCounts[0]
		for _, v := range reviewCounts {
			total += v
			if v > maxReviews {
				maxReviews = v
			}
		}
		fmt.Fprintf(&sb, "\nReview Count Analysis:\n")
		fmt.Fprintf(&sb, "  - Average reviews: %d\n", total/len(reviewCounts))
		fmt.Fprintf(&sb, "  - Max reviews: %d\n", maxReviews)
	}

	if len(categoryCounts) > 0 {
		fmt.Fprintf(&sb, "\nCategory Analysis:\n")
		fmt.Fprintf(&sb, "  - Total categories: %d\n", len(categoryCounts))
	}

	// 商品個別の行は上限件数まで
	fmt.Fprintf(&sb, "\nProducts:\n")
	for i, p := range products {
		if i >= maxSummaryProducts {
			break
		}
		fmt.Fprintf(&sb, "  - %s (price=%s rating=%.1f reviews=%s)\n",
			p.Name, p.Price, p.Rating, p.ReviewCountText)
	}

	return sb.String()
}
