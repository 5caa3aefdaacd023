package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jsamuelsen/taskctx-service/internal/domain"
)

const metricsNamespace = "taskcontext"

// TaskContextMetrics records task context lifecycle events as Prometheus
// collectors. It implements ports.TaskContextObserver.
type TaskContextMetrics struct {
	created  *prometheus.CounterVec
	rejected *prometheus.CounterVec
	active   *prometheus.GaugeVec
	lifetime *prometheus.HistogramVec
}

// NewTaskContextMetrics creates the collectors and registers them with reg.
// A nil reg uses prometheus.DefaultRegisterer.
func NewTaskContextMetrics(reg prometheus.Registerer) (*TaskContextMetrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &TaskContextMetrics{
		created: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "created_total",
			Help:      "Task contexts created, by task type.",
		}, []string{"type"}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "rejected_total",
			Help:      "Task context creations rejected, by task type and reason.",
		}, []string{"type", "reason"}),
		active: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "active",
			Help:      "Task contexts currently active, by task type.",
		}, []string{"type"}),
		lifetime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "lifetime_seconds",
			Help:      "Time between create and zap of a task context.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}, []string{"type"}),
	}

	for _, c := range []prometheus.Collector{m.created, m.rejected, m.active, m.lifetime} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// TaskContextCreated implements ports.TaskContextObserver.
func (m *TaskContextMetrics) TaskContextCreated(t domain.TaskType) {
	m.created.WithLabelValues(t.String()).Inc()
	m.active.WithLabelValues(t.String()).Inc()
}

// TaskContextRejected implements ports.TaskContextObserver.
func (m *TaskContextMetrics) TaskContextRejected(t domain.TaskType, reason string) {
	m.rejected.WithLabelValues(t.String(), reason).Inc()
}

// TaskContextReleased implements ports.TaskContextObserver.
func (m *TaskContextMetrics) TaskContextReleased(t domain.TaskType, lifetime time.Duration) {
	m.active.WithLabelValues(t.String()).Dec()
	m.lifetime.WithLabelValues(t.String()).Observe(lifetime.Seconds())
}

// MetricsHandler serves the collectors gathered by g in the Prometheus text
// format. A nil g uses prometheus.DefaultGatherer.
func MetricsHandler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		g = prometheus.DefaultGatherer
	}

	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
