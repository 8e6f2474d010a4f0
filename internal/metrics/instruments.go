// internal/metrics/instruments.go
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Instruments owns the service's Prometheus registry and every collector
// registered on it. Each instance is independent so tests never share
// series.
type Instruments struct {
	registry *prometheus.Registry

	ErrorsTotal     *prometheus.CounterVec
	BreakerState    *prometheus.GaugeVec
	ProbeDuration   *prometheus.HistogramVec
	AlertsFired     *prometheus.CounterVec
	RecoveriesTotal *prometheus.CounterVec
	OverallHealth   prometheus.Gauge
}

// NewInstruments creates a private registry with all collectors attached.
func NewInstruments() *Instruments {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Instruments{
		registry: registry,
		ErrorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sentinel",
			Name:      "errors_total",
			Help:      "Classified errors by type and severity.",
		}, []string{"type", "severity"}),
		BreakerState: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "sentinel",
			Name:      "breaker_state",
			Help:      "Circuit breaker state per operation (0 closed, 1 open, 2 half-open).",
		}, []string{"operation"}),
		ProbeDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "sentinel",
			Name:      "probe_duration_seconds",
			Help:      "Health probe execution time.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"component", "check"}),
		AlertsFired: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sentinel",
			Name:      "alerts_fired_total",
			Help:      "Alerts fired by severity.",
		}, []string{"severity"}),
		RecoveriesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sentinel",
			Name:      "recoveries_total",
			Help:      "Recovery strategy executions by outcome.",
		}, []string{"strategy", "outcome"}),
		OverallHealth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "sentinel",
			Name:      "overall_health",
			Help:      "Latest overall health (0 unhealthy, 0.5 degraded, 1 healthy).",
		}),
	}
}

// HealthScore maps a health status string onto the gauge scale.
func HealthScore(status string) float64 {
	switch status {
	case "healthy":
		return 1
	case "degraded":
		return 0.5
	case "unknown":
		return 0.25
	default:
		return 0
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (i *Instruments) Handler() http.Handler {
	return promhttp.HandlerFor(i.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for additional collectors.
func (i *Instruments) Registry() *prometheus.Registry {
	return i.registry
}
