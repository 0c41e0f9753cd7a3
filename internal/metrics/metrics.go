// Package metrics exposes Prometheus instruments for the remote client and the sync controllers.
// A nil *Recorder is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "parceldesk"

// Sync cycle results.
const (
	ResultFresh     = "fresh"
	ResultFetched   = "fetched"
	ResultDegraded  = "degraded"
	ResultError     = "error"
	ResultDiscarded = "discarded"
)

type Recorder struct {
	reg *prometheus.Registry

	apiCalls    *prometheus.CounterVec
	apiDuration *prometheus.HistogramVec
	queueWait   prometheus.Histogram
	syncCycles  *prometheus.CounterVec
}

func New() *Recorder {
	r := &Recorder{
		reg: prometheus.NewRegistry(),
		apiCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_calls_total",
			Help:      "Remote tracking API calls by operation and outcome.",
		}, []string{"op", "outcome"}),
		apiDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "api_call_duration_seconds",
			Help:      "Remote tracking API call latency.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"op"}),
		queueWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "queue_wait_seconds",
			Help:      "Time a request spent in the rate-limited queue before starting.",
			Buckets:   []float64{0, 0.35, 0.7, 1.05, 2, 5, 10, 30},
		}),
		syncCycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_cycles_total",
			Help:      "Sync cycles by controller and result.",
		}, []string{"controller", "result"}),
	}
	r.reg.MustRegister(
		r.apiCalls, r.apiDuration, r.queueWait, r.syncCycles,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

func (r *Recorder) ObserveAPICall(op, outcome string, d time.Duration) {
	if r == nil {
		return
	}
	r.apiCalls.WithLabelValues(op, outcome).Inc()
	r.apiDuration.WithLabelValues(op).Observe(d.Seconds())
}

func (r *Recorder) ObserveQueueWait(d time.Duration) {
	if r == nil {
		return
	}
	r.queueWait.Observe(d.Seconds())
}

func (r *Recorder) SyncCycle(controller, result string) {
	if r == nil {
		return
	}
	r.syncCycles.WithLabelValues(controller, result).Inc()
}

func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.reg
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}
