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
// 取得ワーカー、要約処理、レポート生成から利用する。
type Collector struct {
	fetchSuccess       prometheus.Counter
	fetchFail          *prometheus.CounterVec
	httpStatus         *prometheus.CounterVec
	fetchLatency       prometheus.Histogram
	articlesCreated    prometheus.Counter
	classificationFail prometheus.Counter
	llmFallback        *prometheus.CounterVec
	reportGenerated    prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		fetchSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "execdash_source_fetch_success_total",
			Help: "ソース取得成功の合計数",
		}),
		fetchFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "execdash_source_fetch_fail_total",
			Help: "ソース取得失敗の合計数",
		}, []string{"source_type"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "execdash_fetch_http_status_total",
			Help: "取得時のHTTPステータスコード別レスポンス数",
		}, []string{"status_code"}),
		fetchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "execdash_fetch_latency_seconds",
			Help:    "ソース取得処理全体のレイテンシ（秒）",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}),
		articlesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "execdash_articles_created_total",
			Help: "新規作成された記事の合計数",
		}),
		classificationFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "execdash_classification_fail_total",
			Help: "記事分類に失敗した合計数",
		}),
		llmFallback: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "execdash_llm_fallback_total",
			Help: "要約生成で固定文言にフォールバックした回数",
		}, []string{"site"}),
		reportGenerated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "execdash_report_generated_total",
			Help: "週次レポート生成の合計数",
		}),
	}

	reg.MustRegister(
		c.fetchSuccess,
		c.fetchFail,
		c.httpStatus,
		c.fetchLatency,
		c.articlesCreated,
		c.classificationFail,
		c.llmFallback,
		c.reportGenerated,
	)

	return c
}

// RecordFetchSuccess はソース取得成功を記録する。
func (c *Collector) RecordFetchSuccess() {
	c.fetchSuccess.Inc()
}

// RecordFetchFailure はソース取得失敗を種別ごとに記録する。
func (c *Collector) RecordFetchFailure(sourceType string) {
	c.fetchFail.WithLabelValues(sourceType).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordFetchLatency はソース取得のレイテンシを記録する。
func (c *Collector) RecordFetchLatency(duration time.Duration) {
	c.fetchLatency.Observe(duration.Seconds())
}

// RecordArticleCreated は記事の新規作成を記録する。
func (c *Collector) RecordArticleCreated() {
	c.articlesCreated.Inc()
}

// RecordClassificationFailure は分類失敗を記録する。
func (c *Collector) RecordClassificationFailure() {
	c.classificationFail.Inc()
}

// RecordLLMFallback は要約生成のフォールバックを記録する。
func (c *Collector) RecordLLMFallback(site string) {
	c.llmFallback.WithLabelValues(site).Inc()
}

// RecordReportGenerated はレポート生成を記録する。
func (c *Collector) RecordReportGenerated() {
	c.reportGenerated.Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
