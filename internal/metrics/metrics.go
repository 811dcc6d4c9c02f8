// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector はPrometheusメトリクスを収集する実装。
// フェッチジョブとメールジョブのハンドラーから利用する。
type Collector struct {
	fetchSuccess     prometheus.Counter
	fetchFail        prometheus.Counter
	fetchLatency     prometheus.Histogram
	emailsSent       *prometheus.CounterVec
	emailsSuppressed prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		fetchSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cronpost_fetch_success_total",
			Help: "エンドポイントフェッチ成功の合計数",
		}),
		fetchFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cronpost_fetch_fail_total",
			Help: "エンドポイントフェッチ失敗の合計数",
		}),
		fetchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cronpost_fetch_latency_seconds",
			Help:    "エンドポイントフェッチのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		emailsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cronpost_emails_sent_total",
			Help: "送信された通知メールの種別ごとの合計数",
		}, []string{"email_type"}),
		emailsSuppressed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cronpost_emails_suppressed_total",
			Help: "抑制された通知メールの合計数",
		}),
	}

	reg.MustRegister(
		c.fetchSuccess,
		c.fetchFail,
		c.fetchLatency,
		c.emailsSent,
		c.emailsSuppressed,
	)

	return c
}

// RecordFetchSuccess はフェッチ成功を記録する。
func (c *Collector) RecordFetchSuccess() {
	c.fetchSuccess.Inc()
}

// RecordFetchFailure はフェッチ失敗を記録する。
func (c *Collector) RecordFetchFailure(reason string) {
	c.fetchFail.Inc()
}

// RecordFetchLatency はフェッチのレイテンシを記録する。
func (c *Collector) RecordFetchLatency(duration time.Duration) {
	c.fetchLatency.Observe(duration.Seconds())
}

// RecordEmailSent は通知メールの送信を記録する。
func (c *Collector) RecordEmailSent(emailType string) {
	c.emailsSent.WithLabelValues(emailType).Inc()
}

// RecordEmailSuppressed は通知メールの抑制を記録する。
func (c *Collector) RecordEmailSuppressed(reason string) {
	c.emailsSuppressed.Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
