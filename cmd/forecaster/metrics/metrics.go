// Package metrics provides Prometheus metrics instrumentation for the
// forecasting service.
//
// It exposes operational metrics about pipeline performance: the duration of
// each stage (preprocess, features, train, forecast), the size and total of
// the most recent forecast, and error tracking. All metrics are exposed via
// the /metrics HTTP endpoint for Prometheus scraping.
//
// Metrics exposed:
//   - inventoryai_stage_seconds: Histogram of stage duration, labeled by stage
//   - inventoryai_forecast_horizon_days: Gauge of the last forecast's length
//   - inventoryai_forecast_total_demand: Gauge of the last forecast's summed demand
//   - inventoryai_alerts_active: Gauge of alerts raised by the last forecast
//   - inventoryai_errors_total: Counter of errors by component and reason
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the forecasting service.
type Metrics struct {
	StageSeconds        *prometheus.HistogramVec
	ForecastHorizonDays prometheus.Gauge
	ForecastTotalDemand prometheus.Gauge
	AlertsActive        prometheus.Gauge
	ErrorsTotal         *prometheus.CounterVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		StageSeconds: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "inventoryai_stage_seconds",
			Help:    "Time spent running a pipeline stage",
			Buckets: prometheus.DefBuckets, // Default buckets: .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10
		}, []string{"stage"}),

		ForecastHorizonDays: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "inventoryai_forecast_horizon_days",
			Help: "Number of days in the most recent forecast",
		}),

		ForecastTotalDemand: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "inventoryai_forecast_total_demand",
			Help: "Summed predicted demand of the most recent forecast",
		}),

		AlertsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "inventoryai_alerts_active",
			Help: "Alerts raised by the most recent forecast",
		}),

		ErrorsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "inventoryai_errors_total",
			Help: "Total number of errors by component and reason",
		}, []string{"component", "reason"}),
	}
}

// RecordStage records the time spent in a pipeline stage.
func (m *Metrics) RecordStage(stage string, seconds float64) {
	m.StageSeconds.WithLabelValues(stage).Observe(seconds)
}

// SetForecast records the shape of the latest forecast.
func (m *Metrics) SetForecast(horizonDays int, totalDemand float64) {
	m.ForecastHorizonDays.Set(float64(horizonDays))
	m.ForecastTotalDemand.Set(totalDemand)
}

// SetAlerts records the number of active alerts.
func (m *Metrics) SetAlerts(count int) {
	m.AlertsActive.Set(float64(count))
}

// RecordError increments the error counter.
func (m *Metrics) RecordError(component, reason string) {
	m.ErrorsTotal.WithLabelValues(component, reason).Inc()
}
