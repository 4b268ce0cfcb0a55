package check

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/operator-framework/cost-guard/pkg/alert"
	"github.com/operator-framework/cost-guard/pkg/aws"
	"github.com/operator-framework/cost-guard/test/testhelpers"
)

func newRunner() *Runner {
	logger, _ := test.NewNullLogger()
	return NewRunner(logger, alert.NewPipeline(logger, nil, nil))
}

func staticCPU(values map[string]float64) SourceFactory {
	return func(instance aws.Instance) (alert.Source, error) {
		value, ok := values[instance.ID]
		if !ok {
			return testhelpers.FailingSource(errors.New("no datapoints")), nil
		}
		return testhelpers.StaticSource(testhelpers.NewObservation("cpu_utilization", instance.ID, value)), nil
	}
}

func TestCost(t *testing.T) {
	rule := testhelpers.NewRule("monthly_unblended_cost", 100, alert.GreaterThan)

	tests := map[string]struct {
		value            float64
		expectAlert      bool
		expectedSeverity alert.Severity
	}{
		"within budget": {
			value: 80,
		},
		"at the limit": {
			value: 100,
		},
		"informational overage": {
			value:            110,
			expectAlert:      true,
			expectedSeverity: alert.SeverityInformational,
		},
		"critical overage": {
			value:            150,
			expectAlert:      true,
			expectedSeverity: alert.SeverityCritical,
		},
	}

	for testName, tt := range tests {
		testName := testName
		tt := tt
		t.Run(testName, func(t *testing.T) {
			obs := testhelpers.NewObservation("monthly_unblended_cost", "account:2026-10", tt.value)
			result, err := newRunner().Cost(context.Background(), testhelpers.StaticSource(obs), rule)
			require.NoError(t, err)
			assert.Equal(t, obs, result.Observation)
			if !tt.expectAlert {
				assert.Nil(t, result.Alert)
				assert.Empty(t, result.Reports)
				return
			}
			require.NotNil(t, result.Alert)
			require.Len(t, result.Reports, 1)
			assert.Equal(t, tt.expectedSeverity, result.Severity)
			assert.Equal(t, tt.expectedSeverity, result.Reports[0].Severity)
		})
	}
}

func TestCostSourceUnavailable(t *testing.T) {
	rule := testhelpers.NewRule("monthly_unblended_cost", 100, alert.GreaterThan)
	_, err := newRunner().Cost(context.Background(), testhelpers.FailingSource(nil), rule)
	require.Error(t, err)
	assert.True(t, errors.Is(err, alert.ErrSourceUnavailable))
}

func TestCPU(t *testing.T) {
	rule := testhelpers.NewRule("cpu_utilization", 80, alert.GreaterThan)
	instances := []aws.Instance{
		testhelpers.NewInstance("i-001", "web-1", "running"),
		testhelpers.NewInstance("i-002", "web-2", "running"),
		testhelpers.NewInstance("i-003", "batch", "running"),
		testhelpers.NewInstance("i-004", "db", "running"),
	}
	values := map[string]float64{"i-001": 85, "i-002": 35, "i-003": 97.5}

	results, err := newRunner().CPU(context.Background(), instances, staticCPU(values), rule, 2)
	require.NoError(t, err)
	require.Len(t, results, 4)

	for i, res := range results {
		assert.Equal(t, instances[i].ID, res.Instance.ID, "results keep instance order")
	}
	assert.Equal(t, StatusHigh, results[0].Status())
	assert.Equal(t, StatusNormal, results[1].Status())
	assert.Equal(t, StatusHigh, results[2].Status())
	assert.Equal(t, StatusNoData, results[3].Status())
	assert.True(t, errors.Is(results[3].Err, alert.ErrSourceUnavailable))

	reports := Reports(results)
	require.Len(t, reports, 2)
	assert.Equal(t, "i-003", reports[0].ResourceID, "largest overage first")
	assert.Equal(t, "i-001", reports[1].ResourceID)
}

func TestCPUNoInstances(t *testing.T) {
	rule := testhelpers.NewRule("cpu_utilization", 80, alert.GreaterThan)
	results, err := newRunner().CPU(context.Background(), nil, staticCPU(nil), rule, 4)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestCPUAllInstancesFail(t *testing.T) {
	rule := testhelpers.NewRule("cpu_utilization", 80, alert.GreaterThan)
	instances := []aws.Instance{
		testhelpers.NewInstance("i-001", "web-1", "running"),
		testhelpers.NewInstance("i-002", "web-2", "running"),
	}
	factory := func(instance aws.Instance) (alert.Source, error) {
		if instance.ID == "i-001" {
			return nil, errors.New("invalid query template")
		}
		return testhelpers.FailingSource(nil), nil
	}

	results, err := newRunner().CPU(context.Background(), instances, factory, rule, 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoCPUData))
	require.Len(t, results, 2)
	assert.True(t, errors.Is(results[0].Err, alert.ErrSourceUnavailable))
}

func TestCPUConcurrencyLimit(t *testing.T) {
	rule := testhelpers.NewRule("cpu_utilization", 80, alert.GreaterThan)
	var instances []aws.Instance
	for _, id := range []string{"i-1", "i-2", "i-3", "i-4", "i-5", "i-6"} {
		instances = append(instances, testhelpers.NewInstance(id, id, "running"))
	}

	var running, maxRunning int32
	factory := func(instance aws.Instance) (alert.Source, error) {
		return alert.SourceFunc(func(context.Context) (alert.Observation, error) {
			n := atomic.AddInt32(&running, 1)
			defer atomic.AddInt32(&running, -1)
			for {
				peak := atomic.LoadInt32(&maxRunning)
				if n <= peak || atomic.CompareAndSwapInt32(&maxRunning, peak, n) {
					break
				}
			}
			return testhelpers.NewObservation("cpu_utilization", instance.ID, 10), nil
		}), nil
	}

	_, err := newRunner().CPU(context.Background(), instances, factory, rule, 2)
	require.NoError(t, err)
	assert.True(t, atomic.LoadInt32(&maxRunning) <= 2)
}

func TestCPUCancelled(t *testing.T) {
	rule := testhelpers.NewRule("cpu_utilization", 80, alert.GreaterThan)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newRunner().CPU(ctx, []aws.Instance{testhelpers.NewInstance("i-1", "a", "running")}, staticCPU(map[string]float64{"i-1": 10}), rule, 1)
	assert.Error(t, err)
}

func TestNotify(t *testing.T) {
	rule := testhelpers.NewRule("monthly_unblended_cost", 100, alert.GreaterThan)
	runner := newRunner()
	obs := testhelpers.NewObservation("monthly_unblended_cost", "account:2026-10", 120)

	result, err := runner.Cost(context.Background(), testhelpers.StaticSource(obs), rule)
	require.NoError(t, err)

	target := &testhelpers.RecordingSink{}
	runner.Notify(context.Background(), target, result.Reports...)
	require.Len(t, target.Sent(), 1)
	assert.Equal(t, result.Reports[0], target.Sent()[0])

	failing := &testhelpers.RecordingSink{Err: errors.New("unreachable")}
	runner.Notify(context.Background(), failing, result.Reports...)
	assert.Len(t, failing.Sent(), 1, "delivery failures are swallowed")
}
