package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/hitoshi/prodscout/internal/analysis"
	"github.com/hitoshi/prodscout/internal/middleware"
	"github.com/hitoshi/prodscout/internal/model"
)

// KeywordLookupInterface はキーワードから最新バッチの商品を引くインターフェース。
type KeywordLookupInterface interface {
	LookupByKeyword(ctx context.Context, keyword string) (*model.QueryBatch, []*model.Product, error)
}

// InsightGeneratorInterface は外部AIによるインサイト生成インターフェース。
type InsightGeneratorInterface interface {
	GenerateInsight(ctx context.Context, products []*model.Product, focus string) (string, error)
}

// AnalysisHandler は分析APIのHTTPハンドラー。
type AnalysisHandler struct {
	lookup  KeywordLookupInterface
	insight InsightGeneratorInterface
}

// NewAnalysisHandler はAnalysisHandlerを生成する。
func NewAnalysisHandler(lookup KeywordLookupInterface, insight InsightGeneratorInterface) *AnalysisHandler {
	return &AnalysisHandler{lookup: lookup, insight: insight}
}

// competitionEntry は商品ごとの競争度。
type competitionEntry struct {
	ID               string                    `json:"id"`
	Title            string                    `json:"title"`
	CompetitionScore float64                   `json:"competition_score"`
	CompetitionLevel analysis.CompetitionLevel `json:"competition_level"`
	ReviewCount      int                       `json:"review_count"`
	Rating           float64                   `json:"rating"`
}

// competitionResponse は競争度分析のレスポンス。
type competitionResponse struct {
	Keyword      string             `json:"keyword"`
	RunID        string             `json:"run_id"`
	AverageScore float64            `json:"average_score"`
	Distribution map[string]int     `json:"distribution"`
	Products     []competitionEntry `json:"products"`
}

// priceTrendResponse は価格トレンド分析のレスポンス。
type priceTrendResponse struct {
	Keyword string `json:"keyword"`
	RunID   string `json:"run_id"`
	analysis.PriceTrend
}

// insightRequest はAIインサイト生成リクエストのボディ。
type insightRequest struct {
	Keyword string `json:"keyword"`
	Focus   string `json:"focus"`
}

// insightResponse はAIインサイト生成のレスポンス。
type insightResponse struct {
	Keyword      string `json:"keyword"`
	RunID        string `json:"run_id"`
	Insight      string `json:"insight"`
	ProductCount int    `json:"product_count"`
}

// GetPriceTrend はキーワードの最新バッチに対する価格トレンド分析を返す。
// GET /api/analysis/price-trend?keyword=xxx
func (h *AnalysisHandler) GetPriceTrend(w http.ResponseWriter, r *http.Request) {
	batch, products, ok := h.lookupBatch(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(priceTrendResponse{
		Keyword:    batch.QueryKeyword,
		RunID:      batch.RunID,
		PriceTrend: analysis.AnalyzePriceTrend(products),
	})
}

// GetCompetition はキーワードの最新バッチに対する競争度分析を返す。
// GET /api/analysis/competition?keyword=xxx
func (h *AnalysisHandler) GetCompetition(w http.ResponseWriter, r *http.Request) {
	batch, products, ok := h.lookupBatch(w, r)
	if !ok {
		return
	}

	entries := make([]competitionEntry, 0, len(products))
	distribution := map[string]int{
		string(analysis.CompetitionLow):    0,
		string(analysis.CompetitionMedium): 0,
		string(analysis.CompetitionHigh):   0,
	}

	total := 0.0
	for _, p := range products {
		resp := analysis.ToProductResponse(p)
		entries = append(entries, competitionEntry{
			ID:               resp.ID,
			Title:            resp.Title,
			CompetitionScore: resp.CompetitionScore,
			CompetitionLevel: resp.CompetitionLevel,
			ReviewCount:      resp.ReviewCount,
			Rating:           resp.Rating,
		})
		distribution[string(resp.CompetitionLevel)]++
		total += resp.CompetitionScore
	}

	average := 0.0
	if len(entries) > 0 {
		average = total / float64(len(entries))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(competitionResponse{
		Keyword:      batch.QueryKeyword,
		RunID:        batch.RunID,
		AverageScore: average,
		Distribution: distribution,
		Products:     entries,
	})
}

// GenerateInsight はキーワードの最新バッチに対するAIインサイトを生成する。
// POST /api/analysis/insight
func (h *AnalysisHandler) GenerateInsight(w http.ResponseWriter, r *http.Request) {
	var req insightRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidRequestError(err.Error()))
		return
	}
	if req.Keyword == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewKeywordEmptyError())
		return
	}

	batch, products, err := h.lookup.LookupByKeyword(r.Context(), req.Keyword)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if batch == nil {
		middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewBatchNotFoundError(req.Keyword))
		return
	}

	insight, err := h.insight.GenerateInsight(r.Context(), products, req.Focus)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(insightResponse{
		Keyword:      batch.QueryKeyword,
		RunID:        batch.RunID,
		Insight:      insight,
		ProductCount: len(products),
	})
}

// lookupBatch はkeywordクエリパラメータから最新バッチを解決する。
// バッチが見つからない場合はエラーレスポンスを書き込み、falseを返す。
func (h *AnalysisHandler) lookupBatch(w http.ResponseWriter, r *http.Request) (*model.QueryBatch, []*model.Product, bool) {
	keyword := r.URL.Query().Get("keyword")
	if keyword == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewKeywordEmptyError())
		return nil, nil, false
	}

	batch, products, err := h.lookup.LookupByKeyword(r.Context(), keyword)
	if err != nil {
		handleServiceError(w, err)
		return nil, nil, false
	}
	if batch == nil {
		middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewBatchNotFoundError(keyword))
		return nil, nil, false
	}
	return batch, products, true
}
