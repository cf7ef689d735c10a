// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// サービス層とHTTPミドルウェアから利用する。
type MetricsCollector interface {
	RecordSignup(outcome string)
	RecordSignin(method, outcome string)
	RecordAccountCreated(source string)
	RecordAccountDeleted()
	RecordProfileUpdate(outcome string)
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	signups         *prometheus.CounterVec
	signins         *prometheus.CounterVec
	accountsCreated *prometheus.CounterVec
	accountsDeleted prometheus.Counter
	profileUpdates  *prometheus.CounterVec
	httpStatus      *prometheus.CounterVec
	requestLatency  prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		signups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "userauth_signup_total",
			Help: "結果別のサインアップ数",
		}, []string{"outcome"}),
		signins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "userauth_signin_total",
			Help: "方式と結果別のサインイン数",
		}, []string{"method", "outcome"}),
		accountsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "userauth_accounts_created_total",
			Help: "作成経路別のアカウント作成数",
		}, []string{"source"}),
		accountsDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "userauth_accounts_deleted_total",
			Help: "退会したアカウントの合計数",
		}),
		profileUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "userauth_profile_update_total",
			Help: "結果別のプロフィール更新数",
		}, []string{"outcome"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "userauth_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "userauth_request_latency_seconds",
			Help:    "HTTPリクエストのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.signups,
		c.signins,
		c.accountsCreated,
		c.accountsDeleted,
		c.profileUpdates,
		c.httpStatus,
		c.requestLatency,
	)

	return c
}

// RecordSignup はサインアップの結果を記録する。
func (c *Collector) RecordSignup(outcome string) {
	c.signups.WithLabelValues(outcome).Inc()
}

// RecordSignin はサインインの方式と結果を記録する。
func (c *Collector) RecordSignin(method, outcome string) {
	c.signins.WithLabelValues(method, outcome).Inc()
}

// RecordAccountCreated はアカウント作成を記録する。
func (c *Collector) RecordAccountCreated(source string) {
	c.accountsCreated.WithLabelValues(source).Inc()
}

// RecordAccountDeleted は退会を記録する。
func (c *Collector) RecordAccountDeleted() {
	c.accountsDeleted.Inc()
}

// RecordProfileUpdate はプロフィール更新の結果を記録する。
func (c *Collector) RecordProfileUpdate(outcome string) {
	c.profileUpdates.WithLabelValues(outcome).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はリクエストのレイテンシを記録する。
func (c *Collector) RecordRequestLatency(duration time.Duration) {
	c.requestLatency.Observe(duration.Seconds())
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// compile-time interface check
var _ MetricsCollector = (*Collector)(nil)
