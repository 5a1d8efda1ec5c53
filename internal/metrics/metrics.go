// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder は上流呼び出し・カテゴリ取得・認証のメトリクス記録インターフェース。
// jikanクライアント、categoryローダー、sessionサービスから利用する。
type Recorder interface {
	RecordUpstreamRequest(endpoint string, statusCode int, duration time.Duration)
	RecordUpstreamRetry(endpoint string)
	RecordCategoryFallback()
	RecordAuthAttempt(action, result string)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	upstreamRequests *prometheus.CounterVec
	upstreamLatency  *prometheus.HistogramVec
	upstreamRetries  *prometheus.CounterVec
	categoryFallback prometheus.Counter
	authAttempts     *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		upstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "minnego_upstream_requests_total",
			Help: "上流APIへのリクエスト数（エンドポイント・ステータス別）",
		}, []string{"endpoint", "status"}),
		upstreamLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "minnego_upstream_latency_seconds",
			Help:    "上流APIのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
		upstreamRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "minnego_upstream_retries_total",
			Help: "上流APIへのリトライ回数",
		}, []string{"endpoint"}),
		categoryFallback: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "minnego_category_fallback_total",
			Help: "カテゴリ取得で静的フォールバックを返した回数",
		}),
		authAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "minnego_auth_attempts_total",
			Help: "ログイン・サインアップの試行数（結果別）",
		}, []string{"action", "result"}),
	}

	reg.MustRegister(
		c.upstreamRequests,
		c.upstreamLatency,
		c.upstreamRetries,
		c.categoryFallback,
		c.authAttempts,
	)

	return c
}

// RecordUpstreamRequest は上流APIへのリクエスト結果を記録する。
// statusCodeが0の場合は通信エラーとして"error"ラベルで記録する。
func (c *Collector) RecordUpstreamRequest(endpoint string, statusCode int, duration time.Duration) {
	status := "error"
	if statusCode > 0 {
		status = strconv.Itoa(statusCode)
	}
	c.upstreamRequests.WithLabelValues(endpoint, status).Inc()
	c.upstreamLatency.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// RecordUpstreamRetry は上流APIへのリトライを記録する。
func (c *Collector) RecordUpstreamRetry(endpoint string) {
	c.upstreamRetries.WithLabelValues(endpoint).Inc()
}

// RecordCategoryFallback はカテゴリのフォールバック使用を記録する。
func (c *Collector) RecordCategoryFallback() {
	c.categoryFallback.Inc()
}

// RecordAuthAttempt は認証の試行を記録する。
func (c *Collector) RecordAuthAttempt(action, result string) {
	c.authAttempts.WithLabelValues(action, result).Inc()
}

// Nop は何も記録しないRecorder。メトリクス不要なCLIやテストで使う。
type Nop struct{}

func (Nop) RecordUpstreamRequest(string, int, time.Duration) {}
func (Nop) RecordUpstreamRetry(string)                       {}
func (Nop) RecordCategoryFallback()                          {}
func (Nop) RecordAuthAttempt(string, string)                 {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

var (
	_ Recorder = (*Collector)(nil)
	_ Recorder = Nop{}
)
