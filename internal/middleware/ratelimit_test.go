package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func limitedHandler(mw func(next http.Handler) http.Handler, callCount *int) http.Handler {
	return mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*callCount++
		w.WriteHeader(http.StatusOK)
	}))
}

func requestFrom(addr string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/test", nil)
	req.RemoteAddr = addr
	return req
}

func TestRateLimitMiddleware_AllowsRequestsWithinLimit(t *testing.T) {
	cfg := RateLimiterConfig{
		GeneralRate:     2, // 2 req/sec
		GeneralBurst:    5, // バースト5
		ScrapeRate:      1,
		ScrapeBurst:     10,
		CleanupInterval: 1 * time.Minute,
	}

	rl := NewRateLimiter(cfg)
	defer rl.Stop()

	handlerCallCount := 0
	handler := limitedHandler(rl.GeneralMiddleware(), &handlerCallCount)

	// バースト内の5リクエストは全て通る
	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, requestFrom("192.0.2.1:1234"))

		if w.Result().StatusCode != http.StatusOK {
			t.Errorf("request %d: status = %d, want %d", i, w.Result().StatusCode, http.StatusOK)
		}
	}

	if handlerCallCount != 5 {
		t.Errorf("handler call count = %d, want 5", handlerCallCount)
	}
}

func TestRateLimitMiddleware_Returns429WhenLimitExceeded(t *testing.T) {
	cfg := RateLimiterConfig{
		GeneralRate:     1,
		GeneralBurst:    2, // バースト2
		ScrapeRate:      1,
		ScrapeBurst:     10,
		CleanupInterval: 1 * time.Minute,
	}

	rl := NewRateLimiter(cfg)
	defer rl.Stop()

	handlerCallCount := 0
	handler := limitedHandler(rl.GeneralMiddleware(), &handlerCallCount)

	// バースト分（2回）は通る
	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, requestFrom("192.0.2.2:1234"))
		if w.Result().StatusCode != http.StatusOK {
			t.Fatalf("request %d: status = %d, want %d", i, w.Result().StatusCode, http.StatusOK)
		}
	}

	// 3回目は429になる
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, requestFrom("192.0.2.2:1234"))

	resp := w.Result()
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusTooManyRequests)
	}
	if resp.Header.Get("Retry-After") == "" {
		t.Error("Retry-Afterヘッダーが設定されるべきです")
	}

	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("レスポンスボディのパースに失敗しました: %v", err)
	}
	if body["code"] != "rate_limit_exceeded" {
		t.Errorf("エラーコードが異なります: %q", body["code"])
	}
}

// TestRateLimitMiddleware_PerClientIsolation はクライアントIPごとに
// 独立したリミッターが使われることを検証する。
func TestRateLimitMiddleware_PerClientIsolation(t *testing.T) {
	cfg := RateLimiterConfig{
		GeneralRate:     1,
		GeneralBurst:    1,
		ScrapeRate:      1,
		ScrapeBurst:     1,
		CleanupInterval: 1 * time.Minute,
	}

	rl := NewRateLimiter(cfg)
	defer rl.Stop()

	handlerCallCount := 0
	handler := limitedHandler(rl.GeneralMiddleware(), &handlerCallCount)

	w1 := httptest.NewRecorder()
	handler.ServeHTTP(w1, requestFrom("192.0.2.10:1234"))
	w2 := httptest.NewRecorder()
	handler.ServeHTTP(w2, requestFrom("192.0.2.11:1234"))

	if w1.Result().StatusCode != http.StatusOK || w2.Result().StatusCode != http.StatusOK {
		t.Error("別IPのリクエストは互いに影響しないべきです")
	}
	if rl.GeneralLimiterCount() != 2 {
		t.Errorf("リミッターのエントリ数が異なります: got %d", rl.GeneralLimiterCount())
	}
}

// TestScrapeMiddleware_IndependentFromGeneral はスクレイプ起動の制限が
// API全般の制限と独立であることを検証する。
func TestScrapeMiddleware_IndependentFromGeneral(t *testing.T) {
	cfg := RateLimiterConfig{
		GeneralRate:     1,
		GeneralBurst:    10,
		ScrapeRate:      1,
		ScrapeBurst:     1,
		CleanupInterval: 1 * time.Minute,
	}

	rl := NewRateLimiter(cfg)
	defer rl.Stop()

	generalCount, scrapeCount := 0, 0
	general := limitedHandler(rl.GeneralMiddleware(), &generalCount)
	scrape := limitedHandler(rl.ScrapeMiddleware(), &scrapeCount)

	// スクレイプのバースト1を使い切る
	w := httptest.NewRecorder()
	scrape.ServeHTTP(w, requestFrom("192.0.2.20:1234"))
	w = httptest.NewRecorder()
	scrape.ServeHTTP(w, requestFrom("192.0.2.20:1234"))
	if w.Result().StatusCode != http.StatusTooManyRequests {
		t.Errorf("スクレイプの2回目は429になるべきです: got %d", w.Result().StatusCode)
	}

	// API全般のリミッターは影響を受けない
	w = httptest.NewRecorder()
	general.ServeHTTP(w, requestFrom("192.0.2.20:1234"))
	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("API全般のリクエストは通るべきです: got %d", w.Result().StatusCode)
	}
}

func TestClientIP(t *testing.T) {
	req := requestFrom("192.0.2.5:4567")
	if got := clientIP(req); got != "192.0.2.5" {
		t.Errorf("clientIP = %q, want 192.0.2.5", got)
	}

	req.Header.Set("X-Forwarded-For", "203.0.113.9, 192.0.2.5")
	if got := clientIP(req); got != "203.0.113.9" {
		t.Errorf("X-Forwarded-For の先頭が使われるべきです: got %q", got)
	}
}
