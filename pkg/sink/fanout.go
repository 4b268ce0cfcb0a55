package sink

import (
	"context"
	"errors"

	"github.com/operator-framework/cost-guard/pkg/alert"
)

// Fanout sends every report to each of its sinks in order. A failing sink
// does not stop delivery to the others; all errors are returned joined.
type Fanout []alert.Sink

func (f Fanout) Send(ctx context.Context, report alert.Report) error {
	var errs []error
	for _, s := range f {
		if s == nil {
			continue
		}
		if err := s.Send(ctx, report); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
