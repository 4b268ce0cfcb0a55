package alert

import (
	"context"
	"fmt"
	"time"
)

// Comparison is the operator a ThresholdRule applies between an observed
// value and its limit.
type Comparison string

const (
	GreaterThan  Comparison = "greater_than"
	GreaterEqual Comparison = "greater_equal"
)

// Holds reports whether value satisfies the comparison against limit.
func (c Comparison) Holds(value, limit float64) bool {
	switch c {
	case GreaterThan:
		return value > limit
	case GreaterEqual:
		return value >= limit
	default:
		panic(fmt.Sprintf("unknown comparison %q", string(c)))
	}
}

// Valid reports whether c is a known comparison.
func (c Comparison) Valid() bool {
	return c == GreaterThan || c == GreaterEqual
}

// ParseComparison converts a user supplied string into a Comparison.
func ParseComparison(s string) (Comparison, error) {
	c := Comparison(s)
	if !c.Valid() {
		return "", fmt.Errorf("invalid comparison %q, must be one of %s, %s", s, GreaterThan, GreaterEqual)
	}
	return c, nil
}

// Observation is a single timestamped metric reading for a resource.
// Observations are passed by value and must not be modified once created.
type Observation struct {
	ResourceID string
	MetricName string
	Value      float64
	// Unit is used for display only, eg. "USD" or "%".
	Unit       string
	ObservedAt time.Time
	// Labels carry descriptive metadata about the resource (name, type, ...).
	Labels map[string]string
}

// ThresholdRule defines when an alert should fire for a metric.
type ThresholdRule struct {
	MetricName string
	Limit      float64
	Comparison Comparison
	// Runbook optionally points at troubleshooting instructions.
	Runbook string
}

// Validate checks the rule is usable by Evaluate.
func (r ThresholdRule) Validate() error {
	if r.MetricName == "" {
		return fmt.Errorf("threshold rule must have a metric name")
	}
	if !r.Comparison.Valid() {
		return fmt.Errorf("threshold rule for %s has invalid comparison %q", r.MetricName, string(r.Comparison))
	}
	return nil
}

// Alert is produced when an Observation breaches its ThresholdRule.
type Alert struct {
	Observation Observation
	Rule        ThresholdRule
	// Overage is Observation.Value - Rule.Limit and is never negative.
	Overage float64
}

// Source supplies an Observation for a named resource.
type Source interface {
	Observe(ctx context.Context) (Observation, error)
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func(ctx context.Context) (Observation, error)

func (f SourceFunc) Observe(ctx context.Context) (Observation, error) {
	return f(ctx)
}

// Sink delivers rendered reports.
type Sink interface {
	Send(ctx context.Context, report Report) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, report Report) error

func (f SinkFunc) Send(ctx context.Context, report Report) error {
	return f(ctx, report)
}
