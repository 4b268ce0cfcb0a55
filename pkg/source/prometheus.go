package source

import (
	"bytes"
	"context"
	"fmt"
	"text/template"
	"time"

	"github.com/Masterminds/sprig"
	"github.com/prometheus/client_golang/api"
	v1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/common/model"
	log "github.com/sirupsen/logrus"

	"github.com/operator-framework/cost-guard/pkg/alert"
	cgaws "github.com/operator-framework/cost-guard/pkg/aws"
)

// DefaultCPUQuery reports the node_exporter CPU busy percentage of an
// instance scraped through EC2 service discovery.
const DefaultCPUQuery = `100 - (avg(rate(node_cpu_seconds_total{mode="idle",instance_id="{{ .InstanceID }}"}[5m])) * 100)`

// Queryer is the part of the Prometheus HTTP API used for instant queries.
type Queryer interface {
	Query(ctx context.Context, query string, ts time.Time, opts ...v1.Option) (model.Value, v1.Warnings, error)
}

// NewPrometheusAPI connects to the Prometheus server at address.
func NewPrometheusAPI(address string) (v1.API, error) {
	client, err := api.NewClient(api.Config{Address: address})
	if err != nil {
		return nil, fmt.Errorf("can't connect to prometheus: %v", err)
	}
	return v1.NewAPI(client), nil
}

// QueryContext is the data available to Prometheus query templates.
type QueryContext struct {
	InstanceID string
	Name       string
	Type       string
}

// RenderQuery executes the query template for instance.
func RenderQuery(queryTmpl string, instance cgaws.Instance) (string, error) {
	tmpl, err := template.New("prometheus-query").Funcs(sprig.TxtFuncMap()).Option("missingkey=error").Parse(queryTmpl)
	if err != nil {
		return "", fmt.Errorf("invalid prometheus query template: %v", err)
	}
	var buf bytes.Buffer
	err = tmpl.Execute(&buf, QueryContext{
		InstanceID: instance.ID,
		Name:       instance.Name,
		Type:       instance.Type,
	})
	if err != nil {
		return "", fmt.Errorf("unable to render prometheus query for %s: %v", instance.ID, err)
	}
	return buf.String(), nil
}

// PrometheusSource observes the value of an instant PromQL query. The first
// sample of a vector result, or a scalar result, is used.
type PrometheusSource struct {
	api        Queryer
	query      string
	resourceID string
	metricName string
	unit       string
	labels     map[string]string
	logger     log.FieldLogger
	now        func() time.Time
}

// NewPrometheusSource observes query as metricName for resourceID.
func NewPrometheusSource(logger log.FieldLogger, queryer Queryer, query, resourceID, metricName, unit string, labels map[string]string) *PrometheusSource {
	return &PrometheusSource{
		api:        queryer,
		query:      query,
		resourceID: resourceID,
		metricName: metricName,
		unit:       unit,
		labels:     labels,
		logger:     logger.WithFields(log.Fields{"component": "prometheus-source", "resource": resourceID}),
		now:        time.Now,
	}
}

// NewPrometheusCPUSource renders queryTmpl for instance and observes it as
// CPU utilization.
func NewPrometheusCPUSource(logger log.FieldLogger, queryer Queryer, queryTmpl string, instance cgaws.Instance) (*PrometheusSource, error) {
	query, err := RenderQuery(queryTmpl, instance)
	if err != nil {
		return nil, err
	}
	return NewPrometheusSource(logger, queryer, query, instance.ID, CPUUtilizationMetric, PercentUnit, instance.Labels()), nil
}

// WithClock replaces the clock used for the query evaluation time.
func (s *PrometheusSource) WithClock(now func() time.Time) *PrometheusSource {
	s.now = now
	return s
}

func (s *PrometheusSource) Observe(ctx context.Context) (alert.Observation, error) {
	ts := s.now().UTC()
	val, warnings, err := s.api.Query(ctx, s.query, ts)
	if err != nil {
		return alert.Observation{}, fmt.Errorf("failed to perform Prometheus query: %v", err)
	}
	for _, w := range warnings {
		s.logger.Warnf("prometheus query warning: %s", w)
	}

	var (
		value      float64
		observedAt time.Time
	)
	switch v := val.(type) {
	case model.Vector:
		if len(v) == 0 {
			return alert.Observation{}, fmt.Errorf("prometheus query returned no samples for %s", s.resourceID)
		}
		if len(v) > 1 {
			s.logger.Debugf("query returned %d samples, using the first", len(v))
		}
		value = float64(v[0].Value)
		observedAt = v[0].Timestamp.Time().UTC()
	case *model.Scalar:
		value = float64(v.Value)
		observedAt = v.Timestamp.Time().UTC()
	case nil:
		return alert.Observation{}, fmt.Errorf("prometheus query returned no result for %s", s.resourceID)
	default:
		return alert.Observation{}, fmt.Errorf("expected a vector or scalar in response to query, got a %v", val.Type())
	}

	return alert.Observation{
		ResourceID: s.resourceID,
		MetricName: s.metricName,
		Value:      value,
		Unit:       s.unit,
		ObservedAt: observedAt,
		Labels:     s.labels,
	}, nil
}
