package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/prodscout/internal/analysis"
	"github.com/hitoshi/prodscout/internal/middleware"
	"github.com/hitoshi/prodscout/internal/model"
	"github.com/hitoshi/prodscout/internal/repository"
)

// defaultProductsPerPage は商品一覧の1回の取得件数（デフォルト）。
const defaultProductsPerPage = 50

// publicIDPrefix はAPIの公開商品IDの接頭辞。
const publicIDPrefix = "prod-"

// ProductReaderInterface は商品ハンドラーが必要とするリポジトリインターフェース。
type ProductReaderInterface interface {
	FindByID(ctx context.Context, id int64) (*model.Product, error)
	FindByContentHashPrefix(ctx context.Context, prefix string) (*model.Product, error)
	List(ctx context.Context, filter repository.ProductFilter) ([]*model.Product, error)
	Stats(ctx context.Context) (*repository.ProductStats, error)
}

// ProductHandler は商品参照のHTTPハンドラー。
type ProductHandler struct {
	products ProductReaderInterface
}

// NewProductHandler はProductHandlerを生成する。
func NewProductHandler(products ProductReaderInterface) *ProductHandler {
	return &ProductHandler{products: products}
}

// productListResponse は商品一覧のレスポンス。
type productListResponse struct {
	Products []analysis.ProductResponse `json:"products"`
	Count    int                        `json:"count"`
}

// productStatsResponse は商品統計のレスポンス。
type productStatsResponse struct {
	TotalProducts int     `json:"total_products"`
	DraftCount    int     `json:"draft_count"`
	ActiveCount   int     `json:"active_count"`
	AverageRating float64 `json:"average_rating"`
	RunCount      int     `json:"run_count"`
}

// ListProducts は商品一覧をフィルタ付きで取得する。
// GET /api/products?keyword=xxx&status=draft|active&run_id=xxx&limit=50&offset=0
func (h *ProductHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := repository.ProductFilter{
		Keyword: q.Get("keyword"),
		Status:  model.ProductStatus(q.Get("status")),
		RunID:   q.Get("run_id"),
		Limit:   defaultProductsPerPage,
	}
	if limit, err := strconv.Atoi(q.Get("limit")); err == nil && limit > 0 {
		filter.Limit = limit
	}
	if offset, err := strconv.Atoi(q.Get("offset")); err == nil && offset > 0 {
		filter.Offset = offset
	}

	products, err := h.products.List(r.Context(), filter)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	responses := analysis.ToProductResponses(products)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(productListResponse{
		Products: responses,
		Count:    len(responses),
	})
}

// GetProduct は商品詳細を取得する。
// GET /api/products/:id
//
// IDは公開商品ID（prod-xxxx）とDB採番IDの両方を受け付ける。
func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	product, err := h.findProduct(r.Context(), id)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if product == nil {
		middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewProductNotFoundError(id))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(analysis.ToProductResponse(product))
}

// GetStats は商品テーブル全体の統計を取得する。
// GET /api/products/stats
func (h *ProductHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.products.Stats(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(productStatsResponse{
		TotalProducts: stats.TotalProducts,
		DraftCount:    stats.DraftCount,
		ActiveCount:   stats.ActiveCount,
		AverageRating: stats.AverageRating,
		RunCount:      stats.RunCount,
	})
}

// findProduct は公開商品IDまたはDB採番IDで商品を検索する。
func (h *ProductHandler) findProduct(ctx context.Context, id string) (*model.Product, error) {
	if hashPrefix, ok := strings.CutPrefix(id, publicIDPrefix); ok {
		// 公開ID（ハッシュ接頭辞）でなければDB採番IDとして扱う
		if numericID, err := strconv.ParseInt(hashPrefix, 10, 64); err == nil {
			return h.products.FindByID(ctx, numericID)
		}
		return h.products.FindByContentHashPrefix(ctx, hashPrefix)
	}

	numericID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return nil, nil
	}
	return h.products.FindByID(ctx, numericID)
}
