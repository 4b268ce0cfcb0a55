package alert

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func newTestAlert(value, limit float64) Alert {
	return Alert{
		Observation: Observation{MetricName: "cpu_utilization", ResourceID: "i-0abc", Value: value},
		Rule:        ThresholdRule{MetricName: "cpu_utilization", Limit: limit, Comparison: GreaterThan},
		Overage:     value - limit,
	}
}

func TestSeverityBandsClassify(t *testing.T) {
	custom := SeverityBands{
		{Label: "low", MinOverageRatio: 0},
		{Label: "medium", MinOverageRatio: 0.05},
		{Label: "high", MinOverageRatio: 0.5},
	}

	tests := map[string]struct {
		bands    SeverityBands
		alert    Alert
		expected Severity
	}{
		"overage below 20% of limit is informational": {
			bands:    DefaultSeverityBands(),
			alert:    newTestAlert(87.64, 80),
			expected: SeverityInformational,
		},
		"overage above 20% of limit is critical": {
			bands:    DefaultSeverityBands(),
			alert:    newTestAlert(127.45, 100),
			expected: SeverityCritical,
		},
		"overage exactly at the band boundary takes the band": {
			bands:    DefaultSeverityBands(),
			alert:    newTestAlert(120, 100),
			expected: SeverityCritical,
		},
		"zero limit with positive overage is the highest band": {
			bands:    DefaultSeverityBands(),
			alert:    newTestAlert(0.01, 0),
			expected: SeverityCritical,
		},
		"custom bands pick the middle band": {
			bands:    custom,
			alert:    newTestAlert(87.64, 80),
			expected: "medium",
		},
		"custom bands pick the top band": {
			bands:    custom,
			alert:    newTestAlert(200, 100),
			expected: "high",
		},
		"empty bands fall back to informational": {
			alert:    newTestAlert(200, 100),
			expected: SeverityInformational,
		},
	}

	for testName, tt := range tests {
		testName := testName
		tt := tt
		t.Run(testName, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.bands.Classify(tt.alert))
		})
	}
}

func TestOverageRatio(t *testing.T) {
	assert.InDelta(t, 0.2745, OverageRatio(newTestAlert(127.45, 100)), 0.0001)
	assert.Equal(t, 0.0, OverageRatio(newTestAlert(0, 0)))
	assert.True(t, math.IsInf(OverageRatio(newTestAlert(1, 0)), 1))
}

func TestSeverityBandsValidate(t *testing.T) {
	assert.NoError(t, DefaultSeverityBands().Validate())
	assert.Error(t, SeverityBands{}.Validate(), "empty bands are invalid")
	assert.Error(t, SeverityBands{{Label: "a", MinOverageRatio: 0.1}}.Validate(), "first band must start at 0")
	assert.Error(t, SeverityBands{
		{Label: "a", MinOverageRatio: 0},
		{Label: "b", MinOverageRatio: 0.5},
		{Label: "c", MinOverageRatio: 0.5},
	}.Validate(), "ratios must be strictly ascending")
}
