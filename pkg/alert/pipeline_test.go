package alert_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/operator-framework/cost-guard/pkg/alert"
	mockalert "github.com/operator-framework/cost-guard/pkg/alert/mock"
	"github.com/operator-framework/cost-guard/test/testhelpers"
)

type countingRecorder struct {
	mu             sync.Mutex
	sourceFailures int
	evaluations    int
	triggered      int
	alerts         int
	deliveryFails  int
}

func (r *countingRecorder) SourceFailed(alert.ThresholdRule) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sourceFailures++
}

func (r *countingRecorder) Evaluated(_ alert.Observation, triggered bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evaluations++
	if triggered {
		r.triggered++
	}
}

func (r *countingRecorder) Alerted(alert.Report) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts++
}

func (r *countingRecorder) DeliveryFailed(alert.Report) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deliveryFails++
}

func newTestPipeline(recorder alert.Recorder) (*alert.Pipeline, *test.Hook) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	return alert.NewPipeline(logger, nil, recorder), hook
}

func TestPipelineRunTriggers(t *testing.T) {
	recorder := &countingRecorder{}
	pipeline, _ := newTestPipeline(recorder)
	sink := &testhelpers.RecordingSink{}

	obs := testhelpers.NewObservation(testMetric, "account:2026-10", 127.45)
	rule := testhelpers.NewRule(testMetric, 100, alert.GreaterThan)

	gotObs, a, err := pipeline.Run(context.Background(), testhelpers.StaticSource(obs), rule, sink)
	require.NoError(t, err)
	assert.Equal(t, obs, gotObs)
	testhelpers.AssertAlert(t, a, 27.45)

	sent := sink.Sent()
	require.Len(t, sent, 1, "triggered alerts are dispatched once")
	assert.Equal(t, "account:2026-10", sent[0].ResourceID)
	assert.Equal(t, alert.SeverityCritical, sent[0].Severity)

	assert.Equal(t, 1, recorder.evaluations)
	assert.Equal(t, 1, recorder.triggered)
	assert.Equal(t, 1, recorder.alerts)
	assert.Equal(t, 0, recorder.deliveryFails)
}

func TestPipelineRunWithinLimit(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	obs := testhelpers.NewObservation(testMetric, "account:2026-10", 42)
	source := mockalert.NewMockSource(ctrl)
	source.EXPECT().Observe(gomock.Any()).Return(obs, nil).Times(1)
	sink := mockalert.NewMockSink(ctrl)
	sink.EXPECT().Send(gomock.Any(), gomock.Any()).Times(0)

	pipeline, _ := newTestPipeline(nil)
	gotObs, a, err := pipeline.Run(context.Background(), source, testhelpers.NewRule(testMetric, 100, alert.GreaterThan), sink)
	require.NoError(t, err)
	assert.Equal(t, obs, gotObs)
	assert.Nil(t, a)
}

func TestPipelineRunSourceUnavailable(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	credErr := errors.New("NoCredentialProviders: no valid providers in chain")
	source := mockalert.NewMockSource(ctrl)
	source.EXPECT().Observe(gomock.Any()).Return(alert.Observation{}, credErr).Times(1)
	sink := mockalert.NewMockSink(ctrl)
	sink.EXPECT().Send(gomock.Any(), gomock.Any()).Times(0)

	recorder := &countingRecorder{}
	pipeline, _ := newTestPipeline(recorder)
	obs, a, err := pipeline.Run(context.Background(), source, testhelpers.NewRule(testMetric, 100, alert.GreaterThan), sink)
	require.Error(t, err)
	assert.True(t, errors.Is(err, alert.ErrSourceUnavailable), "expected a SourceUnavailable error, got %v", err)
	assert.True(t, errors.Is(err, credErr), "the source error is preserved")
	assert.Nil(t, a)
	assert.Equal(t, alert.Observation{}, obs)
	assert.Equal(t, 1, recorder.sourceFailures)
	assert.Equal(t, 0, recorder.evaluations, "no evaluation happens when the source fails")
}

func TestPipelineRunSinkFailureIsSwallowed(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	obs := testhelpers.NewObservation("cpu_utilization", "i-0abc", 87.64)
	sink := mockalert.NewMockSink(ctrl)
	sink.EXPECT().Send(gomock.Any(), gomock.Any()).Return(errors.New("sns: throttled")).Times(1)

	recorder := &countingRecorder{}
	pipeline, hook := newTestPipeline(recorder)
	gotObs, a, err := pipeline.Run(context.Background(), testhelpers.StaticSource(obs), testhelpers.NewRule("cpu_utilization", 80, alert.GreaterThan), sink)
	require.NoError(t, err, "sink failures never abort the run")
	assert.Equal(t, obs, gotObs)
	testhelpers.AssertAlert(t, a, 7.64)
	assert.Equal(t, 1, recorder.deliveryFails)

	var logged bool
	for _, entry := range hook.AllEntries() {
		if entry.Level != logrus.WarnLevel {
			continue
		}
		if err, ok := entry.Data[logrus.ErrorKey].(error); ok && errors.Is(err, alert.ErrSinkDeliveryFailed) {
			logged = true
		}
	}
	assert.True(t, logged, "expected the delivery failure to be logged as SinkDeliveryFailed")
}

func TestPipelineRunNilSink(t *testing.T) {
	pipeline, _ := newTestPipeline(nil)
	obs := testhelpers.NewObservation(testMetric, "account:2026-10", 500)
	_, a, err := pipeline.Run(context.Background(), testhelpers.StaticSource(obs), testhelpers.NewRule(testMetric, 100, alert.GreaterThan), nil)
	require.NoError(t, err)
	testhelpers.AssertAlert(t, a, 400)
}

func TestPipelineRunsAreIndependent(t *testing.T) {
	pipeline, _ := newTestPipeline(&countingRecorder{})
	rule := testhelpers.NewRule("cpu_utilization", 80, alert.GreaterThan)

	values := []float64{10, 95, 80, 81.5, 60}
	alerts := make([]*alert.Alert, len(values))
	var wg sync.WaitGroup
	for i, v := range values {
		wg.Add(1)
		go func(i int, v float64) {
			defer wg.Done()
			obs := testhelpers.NewObservation("cpu_utilization", "i-test", v)
			_, a, err := pipeline.Run(context.Background(), testhelpers.StaticSource(obs), rule, &testhelpers.RecordingSink{})
			assert.NoError(t, err)
			alerts[i] = a
		}(i, v)
	}
	wg.Wait()

	assert.Nil(t, alerts[0])
	testhelpers.AssertAlert(t, alerts[1], 15)
	assert.Nil(t, alerts[2])
	testhelpers.AssertAlert(t, alerts[3], 1.5)
	assert.Nil(t, alerts[4])
}

func TestUnavailableDoesNotDoubleWrap(t *testing.T) {
	err := alert.Unavailable(errors.New("boom"))
	assert.Equal(t, err, alert.Unavailable(err))
	assert.Nil(t, alert.Unavailable(nil))
}
