// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hitoshi/foodmark/internal/model"
)

const (
	resultSuccess = "success"
	resultFailure = "failure"
)

// Collector はPrometheusメトリクスを収集する。
// membership.Recorderを実装し、個人リストのゲートウェイ呼び出しを記録する。
type Collector struct {
	reg prometheus.Registerer

	gatewayOps     *prometheus.CounterVec
	gatewayLatency *prometheus.HistogramVec
	loads          *prometheus.CounterVec
	httpStatus     *prometheus.CounterVec
	httpLatency    prometheus.Histogram
	cleanupDeleted *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		reg: reg,
		gatewayOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "foodmark_gateway_operations_total",
			Help: "個人リストのゲートウェイ操作数（リスト・操作・結果別）",
		}, []string{"list", "op", "result"}),
		gatewayLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "foodmark_gateway_latency_seconds",
			Help:    "個人リストのゲートウェイ操作のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"list", "op"}),
		loads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "foodmark_membership_loads_total",
			Help: "個人リストの読み込み回数（結果別）",
		}, []string{"result"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "foodmark_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		httpLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "foodmark_http_request_duration_seconds",
			Help:    "HTTPリクエストの処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		cleanupDeleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "foodmark_cleanup_deleted_total",
			Help: "クリーンアップで削除した行数（対象別）",
		}, []string{"target"}),
	}

	reg.MustRegister(
		c.gatewayOps,
		c.gatewayLatency,
		c.loads,
		c.httpStatus,
		c.httpLatency,
		c.cleanupDeleted,
	)

	return c
}

// ObserveGateway はゲートウェイ呼び出し1回の結果とレイテンシを記録する。
func (c *Collector) ObserveGateway(list model.ListKind, op string, err error, elapsed time.Duration) {
	c.gatewayOps.WithLabelValues(string(list), op, result(err)).Inc()
	c.gatewayLatency.WithLabelValues(string(list), op).Observe(elapsed.Seconds())
}

// ObserveLoad は3リストの読み込み1回の結果を記録する。
func (c *Collector) ObserveLoad(err error) {
	c.loads.WithLabelValues(result(err)).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordCleanup はクリーンアップで削除した行数を記録する。
func (c *Collector) RecordCleanup(target string, deleted int64) {
	c.cleanupDeleted.WithLabelValues(target).Add(float64(deleted))
}

// TrackActiveStores は保持中の個人リスト数をゲージとして公開する。
func (c *Collector) TrackActiveStores(count func() int) {
	c.reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "foodmark_membership_active_stores",
		Help: "メモリ上に保持しているユーザーごとの個人リスト数",
	}, func() float64 { return float64(count()) }))
}

// Instrument はレスポンスのステータスコードと処理時間を記録するミドルウェアを返す。
func (c *Collector) Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		c.RecordHTTPStatus(rec.status)
		c.httpLatency.Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (r *statusRecorder) WriteHeader(code int) {
	if !r.wroteHeader {
		r.status = code
		r.wroteHeader = true
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func result(err error) string {
	if err != nil {
		return resultFailure
	}
	return resultSuccess
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
