// Package fetcher はレート制限とアンチボット回避ポリシー下でのページ取得を提供する。
// すべてのリクエストの前にランダム遅延を挟み、呼び出しごとにUser-Agentを
// ローテーションする。タイムアウト・接続エラー・非2xx・チャレンジページ検出は
// すべてソフト失敗（nil返却）として扱い、リトライは一切行わない。
package fetcher

import (
	"context"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// userAgentPool はローテーション対象のUser-Agent文字列の固定プール。
var userAgentPool = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:109.0) Gecko/20100101 Firefox/121.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15",
}

// challengeKeywords はアンチボットチャレンジページを示すURLキーワード。
// リダイレクト後のレスポンスURLに対してヒューリスティックに照合する。
var challengeKeywords = []string{"captcha", "robot"}

// defaultHeaders は全リクエストに付与する固定ヘッダー。
var defaultHeaders = map[string]string{
	"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,image/apng,*/*;q=0.8",
	"Accept-Language":           "en-US,en;q=0.9,zh-TW;q=0.8,zh;q=0.7",
	"Connection":                "keep-alive",
	"Upgrade-Insecure-Requests": "1",
	"Sec-Fetch-Dest":            "document",
	"Sec-Fetch-Mode":            "navigate",
	"Sec-Fetch-Site":            "none",
	"Cache-Control":             "max-age=0",
}

// MetricsRecorder はフェッチ結果のメトリクス記録インターフェース。
type MetricsRecorder interface {
	RecordFetchSuccess()
	RecordFetchFailure(reason string)
	RecordChallengeDetected()
	RecordHTTPStatus(statusCode int)
	RecordFetchLatency(duration time.Duration)
}

// Config はClientの動作設定を保持する。
type Config struct {
	// SourceBaseURL はスクレイプ対象サイトのベースURL（例: "https://www.amazon.com"）。
	// Refererヘッダーの付与判定とリファラー値に使用する。
	SourceBaseURL string
	// DelayMin/DelayMax はリクエスト前のランダム遅延区間。
	// 一覧ページは3〜8秒、詳細ページは2〜4秒を想定している。
	DelayMin time.Duration
	DelayMax time.Duration
	// MaxBodySize はレスポンスボディの最大読み取りサイズ。
	MaxBodySize int64
}

// Client はレート制限付きのページ取得クライアント。
// ヘッダーはリクエストごとに構築するため、1つのClientを複数ゴルーチンで
// 共有しても安全。乱数状態はインスタンススコープで、mutexで保護される。
type Client struct {
	httpClient  *http.Client
	logger      *slog.Logger
	metrics     MetricsRecorder
	config      Config
	sourceHost  string
	baseHeaders map[string]string

	mu  sync.Mutex
	rng *rand.Rand
}

// NewClient はClientの新しいインスタンスを生成する。
// httpClientにはsecurity.SSRFGuardService.NewSafeClientで生成した
// クライアントを渡すことを想定している。
func NewClient(httpClient *http.Client, logger *slog.Logger, metrics MetricsRecorder, config Config) *Client {
	sourceHost := ""
	if parsed, err := url.Parse(config.SourceBaseURL); err == nil {
		sourceHost = strings.TrimPrefix(parsed.Hostname(), "www.")
	}

	headers := make(map[string]string, len(defaultHeaders))
	for k, v := range defaultHeaders {
		headers[k] = v
	}

	return &Client{
		httpClient:  httpClient,
		logger:      logger,
		metrics:     metrics,
		config:      config,
		sourceHost:  sourceHost,
		baseHeaders: headers,
		rng:         rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), uint64(time.Now().UnixNano()>>1))),
	}
}

// Fetch は指定URLのページを取得し、パース済みドキュメントを返す。
// タイムアウト・接続エラー・非2xxステータス・チャレンジページ検出時はnilを返す
// （ソフト失敗）。エラーは返さず、内部でのリトライも行わない。
// 呼び出し前に毎回ランダム遅延を挟み、User-Agentをローテーションする。
func (c *Client) Fetch(ctx context.Context, rawURL string) *goquery.Document {
	start := time.Now()

	// リクエスト前のランダム遅延（唯一のレート制限機構）
	if !c.sleepBeforeRequest(ctx) {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		c.logger.Warn("リクエストの作成に失敗しました",
			slog.String("url", rawURL),
			slog.String("error", err.Error()),
		)
		c.metrics.RecordFetchFailure("bad_request")
		return nil
	}

	// ヘッダーはリクエストスコープで構築する。共有状態には書き込まない。
	for k, v := range c.baseHeaders {
		req.Header.Set(k, v)
	}
	req.Header.Set("User-Agent", c.pickUserAgent())
	if c.sourceHost != "" && strings.Contains(rawURL, c.sourceHost) {
		req.Header.Set("Referer", c.config.SourceBaseURL+"/")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("ページ取得に失敗しました",
			slog.String("url", rawURL),
			slog.String("error", err.Error()),
		)
		c.metrics.RecordFetchFailure("network")
		return nil
	}
	defer resp.Body.Close()

	c.metrics.RecordHTTPStatus(resp.StatusCode)

	// リダイレクト後のURLからチャレンジページを検出した場合はパースせずに打ち切る
	if isChallengeURL(resp.Request.URL.String()) {
		c.logger.Warn("アンチボットチャレンジを検出したためスキップします",
			slog.String("url", rawURL),
			slog.String("resolved_url", resp.Request.URL.String()),
		)
		c.metrics.RecordChallengeDetected()
		return nil
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn("非2xxステータスのためスキップします",
			slog.String("url", rawURL),
			slog.Int("http_status", resp.StatusCode),
		)
		c.metrics.RecordFetchFailure("http_status")
		return nil
	}

	body := io.LimitReader(resp.Body, c.config.MaxBodySize)
	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		c.logger.Warn("ドキュメントのパースに失敗しました",
			slog.String("url", rawURL),
			slog.String("error", err.Error()),
		)
		c.metrics.RecordFetchFailure("parse")
		return nil
	}

	duration := time.Since(start)
	c.metrics.RecordFetchSuccess()
	c.metrics.RecordFetchLatency(duration)

	c.logger.Info("ページ取得が完了しました",
		slog.String("url", rawURL),
		slog.Int("http_status", resp.StatusCode),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return doc
}

// pickUserAgent はプールからUser-Agentをランダムに選択する。
func (c *Client) pickUserAgent() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return userAgentPool[c.rng.IntN(len(userAgentPool))]
}

// randomFactor は[0,1)の一様乱数を返す。
func (c *Client) randomFactor() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rng.Float64()
}

// sleepBeforeRequest は設定区間から一様に引いたランダム遅延を挟む。
// コンテキストがキャンセルされた場合はfalseを返す。
func (c *Client) sleepBeforeRequest(ctx context.Context) bool {
	delay := c.config.DelayMin
	if c.config.DelayMax > c.config.DelayMin {
		delay += time.Duration(c.randomFactor() * float64(c.config.DelayMax-c.config.DelayMin))
	}
	if delay <= 0 {
		return ctx.Err() == nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// isChallengeURL はURLがアンチボットチャレンジページを指すかをヒューリスティックに判定する。
func isChallengeURL(rawURL string) bool {
	lower := strings.ToLower(rawURL)
	for _, keyword := range challengeKeywords {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return false
}
