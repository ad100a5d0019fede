// Package metrics は評価クライアントのPrometheusメトリクスを提供します。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Option はRecorderの設定を変更します。
type Option func(*Recorder)

// WithNamespace はすべてのメトリクスの名前空間を設定します。
func WithNamespace(namespace string) Option {
	return func(r *Recorder) {
		if namespace != "" {
			r.namespace = namespace
		}
	}
}

// WithHistogramBuckets は所要時間のヒストグラムのバケットを設定します。
func WithHistogramBuckets(buckets []float64) Option {
	return func(r *Recorder) {
		if len(buckets) > 0 {
			r.buckets = buckets
		}
	}
}

// WithRegistry はメトリクスの登録先を設定します。
func WithRegistry(registry *prometheus.Registry) Option {
	return func(r *Recorder) {
		if registry != nil {
			r.registry = registry
		}
	}
}

// Recorder は送信の件数・所要時間・同時実行数を記録します。usecase.Recorderを実装します。
type Recorder struct {
	namespace string
	buckets   []float64
	registry  *prometheus.Registry

	submissions *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	inFlight    prometheus.Gauge
}

// NewRecorder はRecorderを生成します。既定ではGoランタイムとプロセスのメトリクスも含む専用レジストリを使います。
func NewRecorder(opts ...Option) *Recorder {
	r := &Recorder{
		namespace: "deck_evaluator",
		// 解析は数十秒かかるため、待機上限の2分までを覆うバケットにする
		buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 30, 45, 60, 90, 120},
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.registry == nil {
		r.registry = prometheus.NewRegistry()
		r.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	auto := promauto.With(r.registry)
	r.submissions = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: r.namespace,
		Name:      "submissions_total",
		Help:      "Total number of finished submissions by outcome",
	}, []string{"outcome"})
	r.duration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: r.namespace,
		Name:      "submission_duration_seconds",
		Help:      "Time from upload start to the final response",
		Buckets:   r.buckets,
	}, []string{"outcome"})
	r.inFlight = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: r.namespace,
		Name:      "submissions_in_flight",
		Help:      "Number of submissions currently waiting for the evaluation endpoint",
	})
	return r
}

// SubmissionStarted は送信開始を記録します。
func (r *Recorder) SubmissionStarted() {
	r.inFlight.Inc()
}

// SubmissionFinished は送信の終了を結果の分類ごとに記録します。
func (r *Recorder) SubmissionFinished(outcome string, elapsed time.Duration) {
	r.inFlight.Dec()
	r.submissions.WithLabelValues(outcome).Inc()
	r.duration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

// Registry はメトリクスの登録先を返します。
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler は /metrics 用のHTTPハンドラーを返します。
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
