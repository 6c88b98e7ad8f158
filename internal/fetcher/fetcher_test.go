package fetcher

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

// stubMetrics はMetricsRecorderのテスト用スタブ。
type stubMetrics struct {
	successCount   int
	failureCount   int
	failureReasons []string
	challengeCount int
	statusCodes    []int
}

func (m *stubMetrics) RecordFetchSuccess() { m.successCount++ }
func (m *stubMetrics) RecordFetchFailure(reason string) {
	m.failureCount++
	m.failureReasons = append(m.failureReasons, reason)
}
func (m *stubMetrics) RecordChallengeDetected()           { m.challengeCount++ }
func (m *stubMetrics) RecordHTTPStatus(statusCode int)    { m.statusCodes = append(m.statusCodes, statusCode) }
func (m *stubMetrics) RecordFetchLatency(d time.Duration) {}

func newTestClient(metrics *stubMetrics) *Client {
	logger := slog.New(slog.NewJSONHandler(discardWriter{}, nil))
	return NewClient(http.DefaultClient, logger, metrics, Config{
		SourceBaseURL: "https://www.amazon.com",
		DelayMin:      0,
		DelayMax:      0,
		MaxBodySize:   1 << 20,
	})
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

// TestFetch_Success は正常なHTMLページが取得・パースされることを検証する。
func TestFetch_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><body><h1 id="title">Product Page</h1></body></html>`))
	}))
	defer server.Close()

	metrics := &stubMetrics{}
	client := newTestClient(metrics)

	doc := client.Fetch(context.Background(), server.URL)
	if doc == nil {
		t.Fatal("正常なページ取得でnilが返されました")
	}
	if got := doc.Find("#title").Text(); got != "Product Page" {
		t.Errorf("取得したドキュメントの内容が異なります: got %q", got)
	}
	if metrics.successCount != 1 {
		t.Errorf("成功カウントが期待値と異なります: got %d, want 1", metrics.successCount)
	}
}

// TestFetch_RotatesUserAgent はUser-Agentがプール内の値であることを検証する。
func TestFetch_RotatesUserAgent(t *testing.T) {
	var seenUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenUA = r.Header.Get("User-Agent")
		w.Write([]byte("<html></html>"))
	}))
	defer server.Close()

	client := newTestClient(&stubMetrics{})

	if doc := client.Fetch(context.Background(), server.URL); doc == nil {
		t.Fatal("ページ取得に失敗しました")
	}

	found := false
	for _, ua := range userAgentPool {
		if seenUA == ua {
			found = true
			break
		}
	}
	if !found {
		t.Errorf("User-Agentがプール外の値でした: %q", seenUA)
	}
}

// syncMetrics は並行アクセスに安全なMetricsRecorderのテスト用スタブ。
type syncMetrics struct {
	mu           sync.Mutex
	successCount int
	failureCount int
}

func (m *syncMetrics) RecordFetchSuccess() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.successCount++
}
func (m *syncMetrics) RecordFetchFailure(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failureCount++
}
func (m *syncMetrics) RecordChallengeDetected()           {}
func (m *syncMetrics) RecordHTTPStatus(statusCode int)    {}
func (m *syncMetrics) RecordFetchLatency(d time.Duration) {}

// TestFetch_ConcurrentRequests は1つのClientを複数ゴルーチンで共有しても
// 安全に取得できることを検証する。-race付きで実行すること。
func TestFetch_ConcurrentRequests(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body><p>ok</p></body></html>"))
	}))
	defer server.Close()

	metrics := &syncMetrics{}
	logger := slog.New(slog.NewJSONHandler(discardWriter{}, nil))
	client := NewClient(http.DefaultClient, logger, metrics, Config{
		SourceBaseURL: "https://www.amazon.com",
		MaxBodySize:   1 << 20,
	})

	const workers = 50
	var wg sync.WaitGroup
	failures := make(chan int, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if doc := client.Fetch(context.Background(), server.URL); doc == nil {
				failures <- 1
			}
		}()
	}
	wg.Wait()
	close(failures)

	if n := len(failures); n > 0 {
		t.Errorf("並行フェッチで%d件の取得が失敗しました", n)
	}
	metrics.mu.Lock()
	defer metrics.mu.Unlock()
	if metrics.successCount != workers {
		t.Errorf("成功カウントが期待値と異なります: got %d, want %d", metrics.successCount, workers)
	}
}

// TestFetch_SetsRefererForSourceHost はソースホストへのリクエストにRefererが
// 付与されることを検証する。
func TestFetch_SetsRefererForSourceHost(t *testing.T) {
	var seenReferer string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenReferer = r.Header.Get("Referer")
		w.Write([]byte("<html></html>"))
	}))
	defer server.Close()

	client := newTestClient(&stubMetrics{})

	// テストサーバーのURLはソースホストを含まないためRefererは付かない
	client.Fetch(context.Background(), server.URL)
	if seenReferer != "" {
		t.Errorf("ソースホスト以外へのリクエストにRefererが付与されました: %q", seenReferer)
	}
}

// TestFetch_NonSuccessStatus は非2xxステータスでnilが返されることを検証する。
func TestFetch_NonSuccessStatus(t *testing.T) {
	statuses := []int{http.StatusNotFound, http.StatusServiceUnavailable, http.StatusForbidden}
	for _, status := range statuses {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))

		metrics := &stubMetrics{}
		client := newTestClient(metrics)

		if doc := client.Fetch(context.Background(), server.URL); doc != nil {
			t.Errorf("ステータス%dでnilが返されるべきです", status)
		}
		if metrics.failureCount != 1 {
			t.Errorf("ステータス%dで失敗カウントが記録されるべきです", status)
		}
		server.Close()
	}
}

// TestFetch_ChallengeDetection はチャレンジページへのリダイレクトが
// 検出されてnilが返されることを検証する。
func TestFetch_ChallengeDetection(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/start", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/errors/validateCaptcha", http.StatusFound)
	})
	mux.HandleFunc("/errors/validateCaptcha", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>are you a robot?</html>"))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	metrics := &stubMetrics{}
	client := newTestClient(metrics)

	if doc := client.Fetch(context.Background(), server.URL+"/start"); doc != nil {
		t.Error("チャレンジページ検出時はnilが返されるべきです")
	}
	if metrics.challengeCount != 1 {
		t.Errorf("チャレンジ検出カウントが期待値と異なります: got %d, want 1", metrics.challengeCount)
	}
}

// TestFetch_NetworkError は接続エラーでnilが返されることを検証する。
func TestFetch_NetworkError(t *testing.T) {
	metrics := &stubMetrics{}
	client := newTestClient(metrics)

	// 到達不能なアドレス
	if doc := client.Fetch(context.Background(), "http://127.0.0.1:1/unreachable"); doc != nil {
		t.Error("接続エラー時はnilが返されるべきです")
	}
	if metrics.failureCount != 1 {
		t.Errorf("失敗カウントが期待値と異なります: got %d, want 1", metrics.failureCount)
	}
}

// TestFetch_ContextCancelled はキャンセル済みコンテキストでnilが返されることを検証する。
func TestFetch_ContextCancelled(t *testing.T) {
	client := newTestClient(&stubMetrics{})
	client.config.DelayMin = 50 * time.Millisecond
	client.config.DelayMax = 50 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if doc := client.Fetch(ctx, "http://example.com/"); doc != nil {
		t.Error("キャンセル済みコンテキストではnilが返されるべきです")
	}
}

// TestIsChallengeURL はチャレンジURL判定のヒューリスティックを検証する。
func TestIsChallengeURL(t *testing.T) {
	cases := []struct {
		url  string
		want bool
	}{
		{"https://www.amazon.com/s?k=shirt", false},
		{"https://www.amazon.com/errors/validateCaptcha", true},
		{"https://www.amazon.com/robot-check", true},
		{"https://www.amazon.com/CAPTCHA/verify", true},
		{"https://www.amazon.com/dp/B00TEST", false},
	}
	for _, tc := range cases {
		if got := isChallengeURL(tc.url); got != tc.want {
			t.Errorf("isChallengeURL(%q) = %v, want %v", tc.url, got, tc.want)
		}
	}
}

// TestSleepBeforeRequest_UniformInterval は遅延が設定区間内に収まることを検証する。
func TestSleepBeforeRequest_UniformInterval(t *testing.T) {
	client := newTestClient(&stubMetrics{})
	client.config.DelayMin = 10 * time.Millisecond
	client.config.DelayMax = 30 * time.Millisecond

	start := time.Now()
	if !client.sleepBeforeRequest(context.Background()) {
		t.Fatal("sleepBeforeRequest が false を返しました")
	}
	elapsed := time.Since(start)

	if elapsed < 10*time.Millisecond {
		t.Errorf("遅延が下限より短い: %v", elapsed)
	}
	// タイマー精度の余裕を持たせた上限チェック
	if elapsed > 200*time.Millisecond {
		t.Errorf("遅延が上限より大幅に長い: %v", elapsed)
	}
}

// TestUserAgentPool_Contents はUAプールが複数ブラウザを含むことを検証する。
func TestUserAgentPool_Contents(t *testing.T) {
	if len(userAgentPool) != 5 {
		t.Fatalf("UAプールのサイズが期待値と異なります: got %d, want 5", len(userAgentPool))
	}
	hasChrome, hasFirefox := false, false
	for _, ua := range userAgentPool {
		if strings.Contains(ua, "Chrome") {
			hasChrome = true
		}
		if strings.Contains(ua, "Firefox") {
			hasFirefox = true
		}
	}
	if !hasChrome || !hasFirefox {
		t.Error("UAプールは複数のブラウザ系列を含むべきです")
	}
}
