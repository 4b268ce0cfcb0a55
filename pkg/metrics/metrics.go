// Package metrics exposes pipeline outcomes as Prometheus metrics.
package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/operator-framework/cost-guard/pkg/alert"
)

const prometheusMetricNamespace = "cost_guard"

var (
	metricLabels   = []string{"metric"}
	resourceLabels = []string{"metric", "resource"}
	checkLabels    = []string{"check"}
)

// Recorder implements alert.Recorder on a private Prometheus registry.
type Recorder struct {
	registry *prometheus.Registry

	evaluationsTotal       *prometheus.CounterVec
	sourceFailuresTotal    *prometheus.CounterVec
	alertsTotal            *prometheus.CounterVec
	deliveryFailuresTotal  *prometheus.CounterVec
	observedValue          *prometheus.GaugeVec
	overage                *prometheus.GaugeVec
	checkRunsTotal         *prometheus.CounterVec
	checkFailuresTotal     *prometheus.CounterVec
	checkDurationHistogram *prometheus.HistogramVec
	checkLastRunTimestamp  *prometheus.GaugeVec
}

var _ alert.Recorder = (*Recorder)(nil)

func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		evaluationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: prometheusMetricNamespace,
				Name:      "evaluations_total",
				Help:      "Observations evaluated against a threshold rule.",
			},
			metricLabels,
		),
		sourceFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: prometheusMetricNamespace,
				Name:      "source_failures_total",
				Help:      "Metric source calls that failed to produce an observation.",
			},
			metricLabels,
		),
		alertsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: prometheusMetricNamespace,
				Name:      "alerts_total",
				Help:      "Alerts rendered, by severity.",
			},
			[]string{"metric", "severity"},
		),
		deliveryFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: prometheusMetricNamespace,
				Name:      "delivery_failures_total",
				Help:      "Reports a notification sink failed to deliver.",
			},
			metricLabels,
		),
		observedValue: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: prometheusMetricNamespace,
				Name:      "observed_value",
				Help:      "Most recent observed value of a metric for a resource.",
			},
			resourceLabels,
		),
		overage: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: prometheusMetricNamespace,
				Name:      "overage",
				Help:      "Amount the most recent alert exceeded its threshold by.",
			},
			resourceLabels,
		),
		checkRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: prometheusMetricNamespace,
				Name:      "check_runs_total",
				Help:      "Check runs started.",
			},
			checkLabels,
		),
		checkFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: prometheusMetricNamespace,
				Name:      "check_failures_total",
				Help:      "Check runs that failed.",
			},
			checkLabels,
		),
		checkDurationHistogram: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: prometheusMetricNamespace,
				Name:      "check_duration_seconds",
				Help:      "Duration of a check run.",
				Buckets:   []float64{0.5, 1, 5, 15, 60, 300},
			},
			checkLabels,
		),
		checkLastRunTimestamp: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: prometheusMetricNamespace,
				Name:      "check_last_run_timestamp_seconds",
				Help:      "Unix time the check last completed successfully.",
			},
			checkLabels,
		),
	}
	r.registry.MustRegister(
		r.evaluationsTotal,
		r.sourceFailuresTotal,
		r.alertsTotal,
		r.deliveryFailuresTotal,
		r.observedValue,
		r.overage,
		r.checkRunsTotal,
		r.checkFailuresTotal,
		r.checkDurationHistogram,
		r.checkLastRunTimestamp,
	)
	return r
}

func (r *Recorder) SourceFailed(rule alert.ThresholdRule) {
	r.sourceFailuresTotal.WithLabelValues(rule.MetricName).Inc()
}

func (r *Recorder) Evaluated(obs alert.Observation, triggered bool) {
	r.evaluationsTotal.WithLabelValues(obs.MetricName).Inc()
	r.observedValue.WithLabelValues(obs.MetricName, obs.ResourceID).Set(obs.Value)
	if !triggered {
		r.overage.WithLabelValues(obs.MetricName, obs.ResourceID).Set(0)
	}
}

func (r *Recorder) Alerted(report alert.Report) {
	r.alertsTotal.WithLabelValues(report.MetricName, string(report.Severity)).Inc()
	r.overage.WithLabelValues(report.MetricName, report.ResourceID).Set(report.Overage)
}

func (r *Recorder) DeliveryFailed(report alert.Report) {
	r.deliveryFailuresTotal.WithLabelValues(report.MetricName).Inc()
}

// ObserveCheck records a completed run of check which started at start.
func (r *Recorder) ObserveCheck(check string, start time.Time, err error) {
	end := time.Now()
	r.checkRunsTotal.WithLabelValues(check).Inc()
	r.checkDurationHistogram.WithLabelValues(check).Observe(end.Sub(start).Seconds())
	if err != nil {
		r.checkFailuresTotal.WithLabelValues(check).Inc()
		return
	}
	r.checkLastRunTimestamp.WithLabelValues(check).Set(float64(end.Unix()))
}

// Handler serves the recorded metrics in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// WriteTextfile writes the recorded metrics to path for the node_exporter
// textfile collector. The file is replaced atomically.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("could not write metrics to '%s': %v", path, err)
	}
	return nil
}
