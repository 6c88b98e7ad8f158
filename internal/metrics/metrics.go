// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector はPrometheusメトリクスを収集する実装。
// フェッチャー・カタログ書き込み・履歴管理の各レコーダーを兼ねる。
type Collector struct {
	fetchSuccess      prometheus.Counter
	fetchFail         *prometheus.CounterVec
	challengeDetected prometheus.Counter
	httpStatus        *prometheus.CounterVec
	fetchLatency      prometheus.Histogram
	productsUpserted  *prometheus.CounterVec
	batchesEvicted    prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		fetchSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "prodscout_fetch_success_total",
			Help: "ページフェッチ成功の合計数",
		}),
		fetchFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "prodscout_fetch_fail_total",
			Help: "ページフェッチ失敗の理由別合計数",
		}, []string{"reason"}),
		challengeDetected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "prodscout_challenge_detected_total",
			Help: "ボット検知チャレンジページの検出数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "prodscout_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		fetchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "prodscout_fetch_latency_seconds",
			Help:    "ページフェッチのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		productsUpserted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "prodscout_products_upserted_total",
			Help: "アップサートされた商品の操作別合計数",
		}, []string{"operation"}),
		batchesEvicted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "prodscout_batches_evicted_total",
			Help: "保持ウィンドウ超過で削除されたクエリバッチの合計数",
		}),
	}

	reg.MustRegister(
		c.fetchSuccess,
		c.fetchFail,
		c.challengeDetected,
		c.httpStatus,
		c.fetchLatency,
		c.productsUpserted,
		c.batchesEvicted,
	)

	return c
}

// RecordFetchSuccess はフェッチ成功を記録する。
func (c *Collector) RecordFetchSuccess() {
	c.fetchSuccess.Inc()
}

// RecordFetchFailure はフェッチ失敗を理由付きで記録する。
func (c *Collector) RecordFetchFailure(reason string) {
	c.fetchFail.WithLabelValues(reason).Inc()
}

// RecordChallengeDetected はボット検知チャレンジの検出を記録する。
func (c *Collector) RecordChallengeDetected() {
	c.challengeDetected.Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordFetchLatency はフェッチのレイテンシを記録する。
func (c *Collector) RecordFetchLatency(duration time.Duration) {
	c.fetchLatency.Observe(duration.Seconds())
}

// RecordProductUpserted は商品のアップサートを操作種別付きで記録する。
func (c *Collector) RecordProductUpserted(operation string) {
	c.productsUpserted.WithLabelValues(operation).Inc()
}

// RecordBatchEvicted はクエリバッチの削除を記録する。
func (c *Collector) RecordBatchEvicted() {
	c.batchesEvicted.Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
