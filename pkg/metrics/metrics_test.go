package metrics

import (
	"context"
	"errors"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/operator-framework/cost-guard/pkg/alert"
	"github.com/operator-framework/cost-guard/test/testhelpers"
)

func scrape(t *testing.T, r *Recorder) string {
	srv := httptest.NewServer(r.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := ioutil.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

func TestRecorderWithPipeline(t *testing.T) {
	logger, _ := test.NewNullLogger()
	recorder := NewRecorder()
	pipeline := alert.NewPipeline(logger, nil, recorder)
	rule := testhelpers.NewRule("cpu_utilization", 80, alert.GreaterThan)
	ctx := context.Background()

	_, a, err := pipeline.Run(ctx, testhelpers.StaticSource(testhelpers.NewObservation("cpu_utilization", "i-1", 92.5)), rule, &testhelpers.RecordingSink{Err: errors.New("down")})
	require.NoError(t, err)
	require.NotNil(t, a)

	_, a, err = pipeline.Run(ctx, testhelpers.StaticSource(testhelpers.NewObservation("cpu_utilization", "i-2", 40)), rule, nil)
	require.NoError(t, err)
	require.Nil(t, a)

	_, _, err = pipeline.Run(ctx, testhelpers.FailingSource(nil), rule, nil)
	require.Error(t, err)

	body := scrape(t, recorder)
	assert.Contains(t, body, `cost_guard_evaluations_total{metric="cpu_utilization"} 2`)
	assert.Contains(t, body, `cost_guard_source_failures_total{metric="cpu_utilization"} 1`)
	assert.Contains(t, body, `cost_guard_alerts_total{metric="cpu_utilization",severity="informational"} 1`)
	assert.Contains(t, body, `cost_guard_delivery_failures_total{metric="cpu_utilization"} 1`)
	assert.Contains(t, body, `cost_guard_observed_value{metric="cpu_utilization",resource="i-1"} 92.5`)
	assert.Contains(t, body, `cost_guard_observed_value{metric="cpu_utilization",resource="i-2"} 40`)
	assert.Contains(t, body, `cost_guard_overage{metric="cpu_utilization",resource="i-1"} 12.5`)
	assert.Contains(t, body, `cost_guard_overage{metric="cpu_utilization",resource="i-2"} 0`)
}

func TestObserveCheck(t *testing.T) {
	recorder := NewRecorder()
	recorder.ObserveCheck("cost", time.Now().Add(-2*time.Second), nil)
	recorder.ObserveCheck("cpu", time.Now(), errors.New("inventory failed"))

	body := scrape(t, recorder)
	assert.Contains(t, body, `cost_guard_check_runs_total{check="cost"} 1`)
	assert.Contains(t, body, `cost_guard_check_runs_total{check="cpu"} 1`)
	assert.Contains(t, body, `cost_guard_check_failures_total{check="cpu"} 1`)
	assert.Contains(t, body, `cost_guard_check_duration_seconds_count{check="cost"} 1`)
	assert.Contains(t, body, `cost_guard_check_last_run_timestamp_seconds{check="cost"}`)
	assert.NotContains(t, body, `cost_guard_check_last_run_timestamp_seconds{check="cpu"}`)
}

func TestWriteTextfile(t *testing.T) {
	recorder := NewRecorder()
	recorder.SourceFailed(testhelpers.NewRule("monthly_unblended_cost", 100, alert.GreaterThan))

	path := filepath.Join(t.TempDir(), "cost_guard.prom")
	require.NoError(t, recorder.WriteTextfile(path))

	data, err := ioutil.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `cost_guard_source_failures_total{metric="monthly_unblended_cost"} 1`)

	err = recorder.WriteTextfile(filepath.Join(t.TempDir(), "missing", "cost_guard.prom"))
	assert.Error(t, err)
}
