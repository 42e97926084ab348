package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "league"

// Metrics holds the collectors of the officiating engine. A nil *Metrics is
// valid and records nothing, which keeps service tests free of registries.
type Metrics struct {
	actions          *prometheus.CounterVec
	broadcasts       *prometheus.CounterVec
	rosterRejections *prometheus.CounterVec
	aiEvaluation     prometheus.Histogram
	requests         *prometheus.CounterVec
	registry         *prometheus.Registry
}

func New(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "officiating_actions_total",
			Help:      "Officiating operations by action and outcome.",
		}, []string{"action", "outcome"}),
		broadcasts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcasts_total",
			Help:      "Published broadcast events by event name and result.",
		}, []string{"event", "result"}),
		rosterRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "roster_rejections_total",
			Help:      "Rejected roster mutations by reason.",
		}, []string{"reason"}),
		aiEvaluation: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ai_evaluation_seconds",
			Help:      "Wall time of automated submission evaluation.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by status code and method.",
		}, []string{"code", "method"}),
		registry: registry,
	}
	registry.MustRegister(m.actions, m.broadcasts, m.rosterRejections, m.aiEvaluation, m.requests)
	return m
}

// Action records the outcome of one officiating operation.
func (m *Metrics) Action(action string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.actions.WithLabelValues(action, outcome).Inc()
}

func (m *Metrics) Broadcast(event string, err error) {
	if m == nil {
		return
	}
	result := "published"
	if err != nil {
		result = "failed"
	}
	m.broadcasts.WithLabelValues(event, result).Inc()
}

func (m *Metrics) RosterRejected(reason string) {
	if m == nil {
		return
	}
	m.rosterRejections.WithLabelValues(reason).Inc()
}

func (m *Metrics) AIEvaluation(d time.Duration) {
	if m == nil {
		return
	}
	m.aiEvaluation.Observe(d.Seconds())
}

// Instrument counts requests served by next.
func (m *Metrics) Instrument(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return promhttp.InstrumentHandlerCounter(m.requests, next)
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
