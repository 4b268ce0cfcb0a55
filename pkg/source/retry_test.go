package source

import (
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/operator-framework/cost-guard/pkg/alert"
	"github.com/operator-framework/cost-guard/test/testhelpers"
)

func flakySource(failures int, obs alert.Observation) (alert.Source, *int) {
	calls := 0
	return alert.SourceFunc(func(context.Context) (alert.Observation, error) {
		calls++
		if calls <= failures {
			return alert.Observation{}, errors.New("temporarily unavailable")
		}
		return obs, nil
	}), &calls
}

func TestWithRetry(t *testing.T) {
	obs := testhelpers.NewObservation("cpu_utilization", "i-1", 50)

	tests := map[string]struct {
		failures      int
		attempts      uint
		expectedCalls int
		expectErr     bool
	}{
		"succeeds first time": {
			failures:      0,
			attempts:      3,
			expectedCalls: 1,
		},
		"succeeds after retries": {
			failures:      2,
			attempts:      3,
			expectedCalls: 3,
		},
		"gives up after attempts": {
			failures:      5,
			attempts:      3,
			expectedCalls: 3,
			expectErr:     true,
		},
		"single attempt is not retried": {
			failures:      1,
			attempts:      1,
			expectedCalls: 1,
			expectErr:     true,
		},
	}

	for testName, tt := range tests {
		testName := testName
		tt := tt
		t.Run(testName, func(t *testing.T) {
			logger, _ := test.NewNullLogger()
			src, calls := flakySource(tt.failures, obs)

			got, err := WithRetry(logger, src, tt.attempts, 0).Observe(context.Background())
			assert.Equal(t, tt.expectedCalls, *calls)
			if tt.expectErr {
				require.Error(t, err)
				assert.Equal(t, "temporarily unavailable", err.Error(), "only the last error is returned")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, obs, got)
		})
	}
}
