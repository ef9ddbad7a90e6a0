package monitoring

import (
	"time"

	"streamgate/internal/core/domain"
	"streamgate/pkg/circuitbreaker"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusCollector implements ports.Metrics on a Prometheus registry.
type PrometheusCollector struct {
	provisionsTotal   *prometheus.CounterVec
	provisionDuration *prometheus.HistogramVec

	reconcileDeleted prometheus.Counter
	reconcileSkipped prometheus.Counter
	reconcileFailed  prometheus.Counter

	webhookEvents *prometheus.CounterVec

	circuitBreakerState *prometheus.GaugeVec
}

// NewPrometheusCollector registers the metrics on reg. Pass
// prometheus.DefaultRegisterer in production and a fresh registry in tests.
func NewPrometheusCollector(reg prometheus.Registerer) *PrometheusCollector {
	factory := promauto.With(reg)

	return &PrometheusCollector{
		provisionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "streamgate_provisions_total",
			Help: "Provision attempts by input mode and outcome",
		}, []string{"mode", "outcome"}),

		provisionDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "streamgate_provision_duration_seconds",
			Help:    "End-to-end provision latency including reconcile",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"mode"}),

		reconcileDeleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "streamgate_reconcile_deleted_total",
			Help: "Ingresses and rooms deleted by reconcile sweeps",
		}),

		reconcileSkipped: factory.NewCounter(prometheus.CounterOpts{
			Name: "streamgate_reconcile_skipped_total",
			Help: "Listed resources skipped by the ownership check",
		}),

		reconcileFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "streamgate_reconcile_failed_total",
			Help: "Deletions that failed during reconcile sweeps",
		}),

		webhookEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "streamgate_webhook_events_total",
			Help: "Provider webhook deliveries by event kind and outcome",
		}, []string{"kind", "outcome"}),

		circuitBreakerState: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "streamgate_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
		}, []string{"name"}),
	}
}

func (p *PrometheusCollector) RecordProvision(mode domain.InputMode, outcome string, duration time.Duration) {
	p.provisionsTotal.WithLabelValues(string(mode), outcome).Inc()
	p.provisionDuration.WithLabelValues(string(mode)).Observe(duration.Seconds())
}

func (p *PrometheusCollector) RecordReconcile(deleted, skipped, failed int) {
	p.reconcileDeleted.Add(float64(deleted))
	p.reconcileSkipped.Add(float64(skipped))
	p.reconcileFailed.Add(float64(failed))
}

func (p *PrometheusCollector) RecordWebhook(kind domain.EventKind, outcome string) {
	if kind == "" {
		kind = "unknown"
	}
	p.webhookEvents.WithLabelValues(string(kind), outcome).Inc()
}

func (p *PrometheusCollector) SetCircuitBreakerState(name string, state circuitbreaker.State) {
	p.circuitBreakerState.WithLabelValues(name).Set(float64(state))
}
