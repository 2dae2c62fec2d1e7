package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"agritrace/internal/ports"
)

// Prometheus records service metrics on its own registry so tests can
// build as many as they like.
type Prometheus struct {
	registry       *prometheus.Registry
	transitions    *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
	relayPublished prometheus.Counter
}

var _ ports.MetricsRecorder = (*Prometheus)(nil)

func NewPrometheus() *Prometheus {
	registry := prometheus.NewRegistry()
	p := &Prometheus{
		registry: registry,
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agritrace_lot_transitions_total",
			Help: "Lot lifecycle writes by target status and outcome.",
		}, []string{"status", "result"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "agritrace_http_request_duration_seconds",
			Help:    "HTTP request latency by route pattern.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method", "code"}),
		relayPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "agritrace_relay_published_total",
			Help: "Outbox events published by the relay.",
		}),
	}
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		p.transitions,
		p.httpDuration,
		p.relayPublished,
	)
	return p
}

func (p *Prometheus) ObserveTransition(status string, result string) {
	p.transitions.WithLabelValues(status, result).Inc()
}

func (p *Prometheus) ObserveHTTP(route string, method string, code int, elapsed time.Duration) {
	p.httpDuration.WithLabelValues(route, method, strconv.Itoa(code)).Observe(elapsed.Seconds())
}

func (p *Prometheus) ObserveRelayPublished(n int) {
	if n > 0 {
		p.relayPublished.Add(float64(n))
	}
}

func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{Registry: p.registry})
}
