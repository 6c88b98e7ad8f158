// Package handler はHTTP APIのハンドラーとルーティングを提供する。
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/prodscout/internal/middleware"
	"github.com/hitoshi/prodscout/internal/model"
	"github.com/hitoshi/prodscout/internal/scrape"
)

// maxSearchTerms は1リクエストで受け付ける検索キーワードの上限数。
const maxSearchTerms = 5

// ScrapeServiceInterface はスクレイプハンドラーが必要とするサービスインターフェース。
type ScrapeServiceInterface interface {
	Ingest(ctx context.Context, keyword string, opts scrape.Options) (*scrape.Result, error)
}

// BatchFinderInterface は実行履歴の参照インターフェース。
type BatchFinderInterface interface {
	FindBatch(ctx context.Context, runID string) (*model.QueryBatch, error)
	ProductsForRun(ctx context.Context, runID string) ([]*model.Product, error)
}

// ScrapeHandler はスクレイプ起動と実行状況参照のHTTPハンドラー。
type ScrapeHandler struct {
	service ScrapeServiceInterface
	history BatchFinderInterface
}

// NewScrapeHandler はScrapeHandlerを生成する。
func NewScrapeHandler(service ScrapeServiceInterface, history BatchFinderInterface) *ScrapeHandler {
	return &ScrapeHandler{service: service, history: history}
}

// scrapeRequest はスクレイプ起動リクエストのボディ。
type scrapeRequest struct {
	SearchTerms  []string `json:"search_terms"`
	FetchDetails bool     `json:"fetch_details"`
	MaxProducts  int      `json:"max_products"`
}

// scrapeResponse はスクレイプ起動のレスポンス。
type scrapeResponse struct {
	RunID        string `json:"run_id"`
	Keyword      string `json:"keyword"`
	FromCache    bool   `json:"from_cache"`
	ProductCount int    `json:"product_count"`
	Created      int    `json:"created"`
	Updated      int    `json:"updated"`
	Failed       int    `json:"failed"`
}

// batchStatusResponse は実行状況参照のレスポンス。
type batchStatusResponse struct {
	RunID        string    `json:"run_id"`
	QueryKeyword string    `json:"query_keyword"`
	ProductCount int       `json:"product_count"`
	StoredCount  int       `json:"stored_count"`
	CreatedAt    time.Time `json:"created_at"`
}

// TriggerScrape はキーワード検索の取り込みを起動する。
// POST /api/scrape
//
// search_termsは最大5件まで受け付けるが、取り込みは先頭のキーワードに
// 対してのみ実行される。
func (h *ScrapeHandler) TriggerScrape(w http.ResponseWriter, r *http.Request) {
	var req scrapeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidRequestError(err.Error()))
		return
	}

	if len(req.SearchTerms) == 0 {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewKeywordEmptyError())
		return
	}
	if len(req.SearchTerms) > maxSearchTerms {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidRequestError("search_termsは最大5件までです"))
		return
	}

	result, err := h.service.Ingest(r.Context(), req.SearchTerms[0], scrape.Options{
		FetchDetails: req.FetchDetails,
		MaxProducts:  req.MaxProducts,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(scrapeResponse{
		RunID:        result.RunID,
		Keyword:      result.Keyword,
		FromCache:    result.FromCache,
		ProductCount: len(result.Products),
		Created:      result.Created,
		Updated:      result.Updated,
		Failed:       result.Failed,
	})
}

// GetStatus は取り込み実行の状況を取得する。
// GET /api/scrape/status/:run_id
func (h *ScrapeHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "run_id")

	batch, err := h.history.FindBatch(r.Context(), runID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if batch == nil {
		middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewBatchNotFoundError(runID))
		return
	}

	products, err := h.history.ProductsForRun(r.Context(), runID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(batchStatusResponse{
		RunID:        batch.RunID,
		QueryKeyword: batch.QueryKeyword,
		ProductCount: batch.ProductCount,
		StoredCount:  len(products),
		CreatedAt:    batch.CreatedAt,
	})
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		middleware.WriteErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeInvalidRequest, model.ErrCodeKeywordEmpty:
		return http.StatusBadRequest
	case model.ErrCodeProductNotFound, model.ErrCodeBatchNotFound:
		return http.StatusNotFound
	case model.ErrCodeScrapeFailed:
		return http.StatusBadGateway
	case model.ErrCodeWriteFailed:
		return http.StatusInternalServerError
	case model.ErrCodeInsightUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
