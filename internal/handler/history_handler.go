package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/hitoshi/prodscout/internal/analysis"
	"github.com/hitoshi/prodscout/internal/middleware"
	"github.com/hitoshi/prodscout/internal/model"
)

// defaultHistoryLimit は履歴一覧の1回の取得件数（デフォルト）。
const defaultHistoryLimit = 20

// HistoryServiceInterface は履歴ハンドラーが必要とするサービスインターフェース。
type HistoryServiceInterface interface {
	ListBatches(ctx context.Context, limit int) ([]*model.QueryBatch, error)
}

// HistoryHandler はクエリ実行履歴参照のHTTPハンドラー。
type HistoryHandler struct {
	history HistoryServiceInterface
	lookup  KeywordLookupInterface
}

// NewHistoryHandler はHistoryHandlerを生成する。
func NewHistoryHandler(history HistoryServiceInterface, lookup KeywordLookupInterface) *HistoryHandler {
	return &HistoryHandler{history: history, lookup: lookup}
}

// batchResponse はクエリバッチのレスポンス。
type batchResponse struct {
	RunID        string    `json:"run_id"`
	QueryKeyword string    `json:"query_keyword"`
	ProductCount int       `json:"product_count"`
	CreatedAt    time.Time `json:"created_at"`
}

// historyListResponse は履歴一覧のレスポンス。
type historyListResponse struct {
	Batches []batchResponse `json:"batches"`
	Count   int             `json:"count"`
}

// ListHistory はクエリ実行履歴の一覧を新しい順で取得する。
// GET /api/history?limit=20
func (h *HistoryHandler) ListHistory(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
		limit = v
	}

	batches, err := h.history.ListBatches(r.Context(), limit)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	responses := make([]batchResponse, 0, len(batches))
	for _, b := range batches {
		responses = append(responses, batchResponse{
			RunID:        b.RunID,
			QueryKeyword: b.QueryKeyword,
			ProductCount: b.ProductCount,
			CreatedAt:    b.CreatedAt,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(historyListResponse{
		Batches: responses,
		Count:   len(responses),
	})
}

// historyProductsResponse はキーワード別の保存済み商品一覧のレスポンス。
type historyProductsResponse struct {
	Keyword  string                     `json:"keyword"`
	RunID    string                     `json:"run_id"`
	Products []analysis.ProductResponse `json:"products"`
	Count    int                        `json:"count"`
}

// ListProductsForKeyword はキーワードの最新バッチに保存された商品一覧を返す。
// GET /api/history/products?keyword=xxx
func (h *HistoryHandler) ListProductsForKeyword(w http.ResponseWriter, r *http.Request) {
	keyword := r.URL.Query().Get("keyword")
	if keyword == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewKeywordEmptyError())
		return
	}

	batch, products, err := h.lookup.LookupByKeyword(r.Context(), keyword)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if batch == nil {
		middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewBatchNotFoundError(keyword))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(historyProductsResponse{
		Keyword:  batch.QueryKeyword,
		RunID:    batch.RunID,
		Products: analysis.ToProductResponses(products),
		Count:    len(products),
	})
}
