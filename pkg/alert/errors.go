package alert

import (
	"errors"
	"fmt"
)

var (
	// ErrSourceUnavailable is matched by errors returned from Pipeline.Run
	// when the metric source could not produce an Observation.
	ErrSourceUnavailable = errors.New("metric source unavailable")

	// ErrSinkDeliveryFailed is matched by errors a sink returned while
	// delivering a report. These never leave Pipeline.Dispatch.
	ErrSinkDeliveryFailed = errors.New("notification sink delivery failed")
)

// SourceUnavailableError wraps the reason a metric source failed.
type SourceUnavailableError struct {
	Err error
}

// Unavailable wraps err as a SourceUnavailableError unless it already is one.
func Unavailable(err error) error {
	if err == nil {
		return nil
	}
	var sue *SourceUnavailableError
	if errors.As(err, &sue) {
		return err
	}
	return &SourceUnavailableError{Err: err}
}

func (e *SourceUnavailableError) Error() string {
	return fmt.Sprintf("%s: %v", ErrSourceUnavailable, e.Err)
}

func (e *SourceUnavailableError) Unwrap() error { return e.Err }

func (e *SourceUnavailableError) Is(target error) bool {
	return target == ErrSourceUnavailable
}

// SinkDeliveryError wraps the reason a sink could not deliver a report.
type SinkDeliveryError struct {
	ResourceID string
	Err        error
}

func (e *SinkDeliveryError) Error() string {
	return fmt.Sprintf("%s for %s: %v", ErrSinkDeliveryFailed, e.ResourceID, e.Err)
}

func (e *SinkDeliveryError) Unwrap() error { return e.Err }

func (e *SinkDeliveryError) Is(target error) bool {
	return target == ErrSinkDeliveryFailed
}
