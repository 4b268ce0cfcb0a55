package alert_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/operator-framework/cost-guard/pkg/alert"
	"github.com/operator-framework/cost-guard/test/testhelpers"
)

const testMetric = "monthly_unblended_cost"

func TestEvaluate(t *testing.T) {
	tests := map[string]struct {
		value           float64
		limit           float64
		comparison      alert.Comparison
		expectAlert     bool
		expectedOverage float64
	}{
		"value below limit does not trigger greater_than": {
			value:      42.5,
			limit:      100,
			comparison: alert.GreaterThan,
		},
		"value below limit does not trigger greater_equal": {
			value:      99.99,
			limit:      100,
			comparison: alert.GreaterEqual,
		},
		"value equal to limit does not trigger greater_than": {
			value:      100,
			limit:      100,
			comparison: alert.GreaterThan,
		},
		"value equal to limit triggers greater_equal with zero overage": {
			value:           100,
			limit:           100,
			comparison:      alert.GreaterEqual,
			expectAlert:     true,
			expectedOverage: 0,
		},
		"month to date spend over budget": {
			value:           127.45,
			limit:           100.0,
			comparison:      alert.GreaterThan,
			expectAlert:     true,
			expectedOverage: 27.45,
		},
		"cpu over limit": {
			value:           87.64,
			limit:           80.0,
			comparison:      alert.GreaterThan,
			expectAlert:     true,
			expectedOverage: 7.64,
		},
		"negative limit": {
			value:           -1,
			limit:           -5,
			comparison:      alert.GreaterThan,
			expectAlert:     true,
			expectedOverage: 4,
		},
	}

	for testName, tt := range tests {
		testName := testName
		tt := tt
		t.Run(testName, func(t *testing.T) {
			obs := testhelpers.NewObservation(testMetric, "account:2026-10", tt.value)
			rule := testhelpers.NewRule(testMetric, tt.limit, tt.comparison)

			a := alert.Evaluate(obs, rule)
			if !tt.expectAlert {
				assert.Nil(t, a, "expected no alert")
				return
			}
			testhelpers.AssertAlert(t, a, tt.expectedOverage)
			assert.Equal(t, obs, a.Observation)
			assert.Equal(t, rule, a.Rule)
		})
	}
}

func TestEvaluateIsDeterministic(t *testing.T) {
	obs := testhelpers.NewObservation(testMetric, "account:2026-10", 150)
	rule := testhelpers.NewRule(testMetric, 100, alert.GreaterThan)

	first := alert.Evaluate(obs, rule)
	second := alert.Evaluate(obs, rule)
	assert.Equal(t, first, second)
}

func TestEvaluateMetricMismatchPanics(t *testing.T) {
	obs := testhelpers.NewObservation("cpu_utilization", "i-0abc", 90)
	rule := testhelpers.NewRule(testMetric, 80, alert.GreaterThan)

	assert.Panics(t, func() {
		alert.Evaluate(obs, rule)
	})
}

func TestParseComparison(t *testing.T) {
	c, err := alert.ParseComparison("greater_equal")
	assert.NoError(t, err)
	assert.Equal(t, alert.GreaterEqual, c)

	_, err = alert.ParseComparison("less_than")
	assert.Error(t, err)
}

func TestThresholdRuleValidate(t *testing.T) {
	assert.NoError(t, testhelpers.NewRule(testMetric, 100, alert.GreaterThan).Validate())
	assert.Error(t, testhelpers.NewRule("", 100, alert.GreaterThan).Validate(), "metric name is required")
	assert.Error(t, testhelpers.NewRule(testMetric, 100, alert.Comparison("equal")).Validate(), "comparison must be known")
}
