package testhelpers

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/operator-framework/cost-guard/pkg/alert"
)

const reportComparisonDelta = 0.0001

// AssertAlert checks an alert was produced with the expected overage,
// allowing for floating point error.
func AssertAlert(t *testing.T, a *alert.Alert, expectedOverage float64) {
	t.Helper()
	if !assert.NotNil(t, a, "expected an alert") {
		return
	}
	assert.InDelta(t, expectedOverage, a.Overage, reportComparisonDelta, "unexpected overage")
	assert.GreaterOrEqual(t, a.Overage, 0.0, "overage must never be negative")
}

// AssertReportsEqual compares reports field by field, numeric fields within
// a small delta.
func AssertReportsEqual(t *testing.T, expected, actual alert.Report) {
	t.Helper()
	assert.Equal(t, expected.Subject, actual.Subject, "subject")
	assert.Equal(t, expected.Body, actual.Body, "body")
	assert.Equal(t, expected.Severity, actual.Severity, "severity")
	assert.Equal(t, expected.ResourceID, actual.ResourceID, "resource id")
	assert.Equal(t, expected.MetricName, actual.MetricName, "metric name")
	assert.InDelta(t, expected.Value, actual.Value, reportComparisonDelta, "value")
	assert.InDelta(t, expected.Limit, actual.Limit, reportComparisonDelta, "limit")
	assert.InDelta(t, expected.Overage, actual.Overage, reportComparisonDelta, "overage")
	assert.True(t, expected.ObservedAt.Equal(actual.ObservedAt), "observed at: expected %s, got %s", expected.ObservedAt, actual.ObservedAt)
}
