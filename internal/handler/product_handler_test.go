package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/prodscout/internal/analysis"
	"github.com/hitoshi/prodscout/internal/model"
	"github.com/hitoshi/prodscout/internal/repository"
)

// mockProductReader はProductReaderInterfaceのテスト用モック。
type mockProductReader struct {
	byID       map[int64]*model.Product
	byHash     map[string]*model.Product
	listFn     func(filter repository.ProductFilter) ([]*model.Product, error)
	stats      *repository.ProductStats
	lastFilter repository.ProductFilter
}

func newMockProductReader() *mockProductReader {
	return &mockProductReader{
		byID:   make(map[int64]*model.Product),
		byHash: make(map[string]*model.Product),
	}
}

func (m *mockProductReader) FindByID(ctx context.Context, id int64) (*model.Product, error) {
	return m.byID[id], nil
}

func (m *mockProductReader) FindByContentHashPrefix(ctx context.Context, prefix string) (*model.Product, error) {
	for hash, p := range m.byHash {
		if strings.HasPrefix(hash, prefix) {
			return p, nil
		}
	}
	return nil, nil
}

func (m *mockProductReader) List(ctx context.Context, filter repository.ProductFilter) ([]*model.Product, error) {
	m.lastFilter = filter
	if m.listFn != nil {
		return m.listFn(filter)
	}
	return nil, nil
}

func (m *mockProductReader) Stats(ctx context.Context) (*repository.ProductStats, error) {
	return m.stats, nil
}

func newProductRouter(h *ProductHandler) http.Handler {
	r := chi.NewRouter()
	r.Get("/api/products", h.ListProducts)
	r.Get("/api/products/stats", h.GetStats)
	r.Get("/api/products/{id}", h.GetProduct)
	return r
}

func TestListProducts_AppliesFilter(t *testing.T) {
	reader := newMockProductReader()
	reader.listFn = func(filter repository.ProductFilter) ([]*model.Product, error) {
		return []*model.Product{
			{ID: 1, Name: "Wireless Earbuds", Price: "$24.99"},
		}, nil
	}

	router := newProductRouter(NewProductHandler(reader))

	req := httptest.NewRequest(http.MethodGet,
		"/api/products?keyword=earbuds&status=draft&limit=10&offset=5", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
	if reader.lastFilter.Keyword != "earbuds" {
		t.Errorf("keyword = %q, want earbuds", reader.lastFilter.Keyword)
	}
	if reader.lastFilter.Status != model.ProductStatusDraft {
		t.Errorf("status = %q, want draft", reader.lastFilter.Status)
	}
	if reader.lastFilter.Limit != 10 || reader.lastFilter.Offset != 5 {
		t.Errorf("limit/offset = %d/%d, want 10/5", reader.lastFilter.Limit, reader.lastFilter.Offset)
	}

	var resp productListResponse
	if err := json.NewDecoder(w.Result().Body).Decode(&resp); err != nil {
		t.Fatalf("レスポンスのパースに失敗しました: %v", err)
	}
	if resp.Count != 1 || len(resp.Products) != 1 {
		t.Errorf("商品一覧が返されるべきです: %+v", resp)
	}
	if resp.Products[0].Title != "Wireless Earbuds" {
		t.Errorf("商品名が異なります: %q", resp.Products[0].Title)
	}
}

func TestGetProduct_ByPublicID(t *testing.T) {
	reader := newMockProductReader()
	reader.byHash["abcdef0123456789"] = &model.Product{
		ID:          1,
		Name:        "Hashed Product",
		ContentHash: "abcdef0123456789",
	}

	router := newProductRouter(NewProductHandler(reader))

	req := httptest.NewRequest(http.MethodGet, "/api/products/prod-abcdef012345", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}

	var resp analysis.ProductResponse
	if err := json.NewDecoder(w.Result().Body).Decode(&resp); err != nil {
		t.Fatalf("レスポンスのパースに失敗しました: %v", err)
	}
	if resp.Title != "Hashed Product" {
		t.Errorf("商品名が異なります: %q", resp.Title)
	}
}

func TestGetProduct_ByNumericID(t *testing.T) {
	reader := newMockProductReader()
	reader.byID[42] = &model.Product{ID: 42, Name: "Numeric Product"}

	router := newProductRouter(NewProductHandler(reader))

	req := httptest.NewRequest(http.MethodGet, "/api/products/42", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
}

func TestGetProduct_NotFound(t *testing.T) {
	router := newProductRouter(NewProductHandler(newMockProductReader()))

	for _, id := range []string{"999", "prod-ffffffffffff", "not-an-id"} {
		req := httptest.NewRequest(http.MethodGet, "/api/products/"+id, nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Result().StatusCode != http.StatusNotFound {
			t.Errorf("id=%q: status = %d, want %d", id, w.Result().StatusCode, http.StatusNotFound)
		}
		var body map[string]string
		json.NewDecoder(w.Result().Body).Decode(&body)
		if body["code"] != model.ErrCodeProductNotFound {
			t.Errorf("id=%q: code = %q, want %q", id, body["code"], model.ErrCodeProductNotFound)
		}
	}
}

func TestGetStats(t *testing.T) {
	reader := newMockProductReader()
	reader.stats = &repository.ProductStats{
		TotalProducts: 12,
		DraftCount:    10,
		ActiveCount:   2,
		AverageRating: 4.3,
		RunCount:      3,
	}

	router := newProductRouter(NewProductHandler(reader))

	req := httptest.NewRequest(http.MethodGet, "/api/products/stats", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}

	var resp productStatsResponse
	if err := json.NewDecoder(w.Result().Body).Decode(&resp); err != nil {
		t.Fatalf("レスポンスのパースに失敗しました: %v", err)
	}
	if resp.TotalProducts != 12 || resp.DraftCount != 10 || resp.RunCount != 3 {
		t.Errorf("統計値が異なります: %+v", resp)
	}
}
