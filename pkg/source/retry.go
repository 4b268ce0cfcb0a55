package source

import (
	"context"
	"time"

	"github.com/avast/retry-go/v4"
	log "github.com/sirupsen/logrus"

	"github.com/operator-framework/cost-guard/pkg/alert"
)

// WithRetry calls source up to attempts times, waiting delay between calls,
// until it produces an Observation. Attempts below two return source as is.
// The last error is returned when every attempt fails.
func WithRetry(logger log.FieldLogger, source alert.Source, attempts uint, delay time.Duration) alert.Source {
	if attempts < 2 {
		return source
	}
	logger = logger.WithField("component", "retry")
	return alert.SourceFunc(func(ctx context.Context) (alert.Observation, error) {
		return retry.DoWithData(
			func() (alert.Observation, error) {
				return source.Observe(ctx)
			},
			retry.Context(ctx),
			retry.Attempts(attempts),
			retry.Delay(delay),
			retry.DelayType(retry.FixedDelay),
			retry.LastErrorOnly(true),
			retry.OnRetry(func(n uint, err error) {
				logger.WithError(err).Warnf("metric source attempt %d/%d failed", n+1, attempts)
			}),
		)
	})
}
