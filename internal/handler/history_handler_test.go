package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
)

func newHistoryRouter(h *HistoryHandler) http.Handler {
	r := chi.NewRouter()
	r.Get("/api/history", h.ListHistory)
	r.Get("/api/history/products", h.ListProductsForKeyword)
	return r
}

func TestListHistory(t *testing.T) {
	hist := seededHistory()
	router := newHistoryRouter(NewHistoryHandler(hist, hist))

	req := httptest.NewRequest(http.MethodGet, "/api/history", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}

	var resp historyListResponse
	if err := json.NewDecoder(w.Result().Body).Decode(&resp); err != nil {
		t.Fatalf("レスポンスのパースに失敗しました: %v", err)
	}
	if resp.Count != 1 || len(resp.Batches) != 1 {
		t.Fatalf("バッチ件数が異なります: %+v", resp)
	}
	if resp.Batches[0].QueryKeyword != "earbuds" {
		t.Errorf("QueryKeyword = %q, want %q", resp.Batches[0].QueryKeyword, "earbuds")
	}
}

func TestListProductsForKeyword(t *testing.T) {
	hist := seededHistory()
	router := newHistoryRouter(NewHistoryHandler(hist, hist))

	req := httptest.NewRequest(http.MethodGet, "/api/history/products?keyword=earbuds", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}

	var resp historyProductsResponse
	if err := json.NewDecoder(w.Result().Body).Decode(&resp); err != nil {
		t.Fatalf("レスポンスのパースに失敗しました: %v", err)
	}
	if resp.Keyword != "earbuds" || resp.RunID != "scrape-cafebabe-20260801000000" {
		t.Errorf("バッチ情報が異なります: %+v", resp)
	}
	if resp.Count != 2 || len(resp.Products) != 2 {
		t.Errorf("商品件数が異なります: count=%d products=%d", resp.Count, len(resp.Products))
	}
}

func TestListProductsForKeyword_Validation(t *testing.T) {
	hist := newMockHistoryService()
	router := newHistoryRouter(NewHistoryHandler(hist, hist))

	// keyword未指定は400
	req := httptest.NewRequest(http.MethodGet, "/api/history/products", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Result().StatusCode != http.StatusBadRequest {
		t.Errorf("keyword未指定: status = %d, want %d", w.Result().StatusCode, http.StatusBadRequest)
	}

	// 履歴のないキーワードは404
	req = httptest.NewRequest(http.MethodGet, "/api/history/products?keyword=unknown", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Result().StatusCode != http.StatusNotFound {
		t.Errorf("履歴なし: status = %d, want %d", w.Result().StatusCode, http.StatusNotFound)
	}
}
