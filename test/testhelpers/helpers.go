package testhelpers

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/operator-framework/cost-guard/pkg/alert"
	"github.com/operator-framework/cost-guard/pkg/aws"
)

// TestTime is a fixed timestamp so rendered reports are stable.
var TestTime = time.Date(2026, time.October, 19, 12, 30, 0, 0, time.UTC)

func NewObservation(metricName, resourceID string, value float64) alert.Observation {
	return alert.Observation{
		ResourceID: resourceID,
		MetricName: metricName,
		Value:      value,
		ObservedAt: TestTime,
	}
}

func NewRule(metricName string, limit float64, comparison alert.Comparison) alert.ThresholdRule {
	return alert.ThresholdRule{
		MetricName: metricName,
		Limit:      limit,
		Comparison: comparison,
	}
}

func NewInstance(id, name, state string) aws.Instance {
	return aws.Instance{
		ID:         id,
		Name:       name,
		State:      state,
		Type:       "t3.micro",
		LaunchTime: TestTime.Add(-24 * time.Hour),
		PrivateIP:  "10.0.0.10",
		PublicIP:   aws.NotAvailable,
	}
}

// StaticSource always returns obs.
func StaticSource(obs alert.Observation) alert.Source {
	return alert.SourceFunc(func(context.Context) (alert.Observation, error) {
		return obs, nil
	})
}

// FailingSource always fails with err, or a generic error when err is nil.
func FailingSource(err error) alert.Source {
	if err == nil {
		err = errors.New("source failed")
	}
	return alert.SourceFunc(func(context.Context) (alert.Observation, error) {
		return alert.Observation{}, err
	})
}

// RecordingSink collects every report it is sent and returns Err.
type RecordingSink struct {
	mu      sync.Mutex
	Reports []alert.Report
	Err     error
}

func (s *RecordingSink) Send(_ context.Context, report alert.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Reports = append(s.Reports, report)
	return s.Err
}

func (s *RecordingSink) Sent() []alert.Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]alert.Report, len(s.Reports))
	copy(out, s.Reports)
	return out
}
