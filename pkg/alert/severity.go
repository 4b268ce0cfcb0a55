package alert

import (
	"fmt"
	"math"
)

// Severity is the label of the band an alert's overage falls into.
type Severity string

const (
	SeverityInformational Severity = "informational"
	SeverityCritical      Severity = "critical"
)

// SeverityBand assigns Label to alerts whose overage, as a fraction of the
// rule's limit, is at least MinOverageRatio.
type SeverityBand struct {
	Label           Severity `yaml:"label" validate:"required"`
	MinOverageRatio float64  `yaml:"minOverageRatio" validate:"gte=0"`
}

// SeverityBands are ordered by ascending MinOverageRatio.
type SeverityBands []SeverityBand

// DefaultSeverityBands reports overages below 20% of the limit as
// informational and everything else as critical.
func DefaultSeverityBands() SeverityBands {
	return SeverityBands{
		{Label: SeverityInformational, MinOverageRatio: 0},
		{Label: SeverityCritical, MinOverageRatio: 0.20},
	}
}

// Validate requires at least one band, a first band starting at zero and
// strictly ascending ratios.
func (b SeverityBands) Validate() error {
	if len(b) == 0 {
		return fmt.Errorf("at least one severity band is required")
	}
	if b[0].MinOverageRatio != 0 {
		return fmt.Errorf("the first severity band (%s) must start at 0, got %v", b[0].Label, b[0].MinOverageRatio)
	}
	for i := 1; i < len(b); i++ {
		if b[i].MinOverageRatio <= b[i-1].MinOverageRatio {
			return fmt.Errorf("severity band %s must have a larger minOverageRatio than %s", b[i].Label, b[i-1].Label)
		}
	}
	return nil
}

// OverageRatio is the overage relative to the magnitude of the limit. A zero
// limit with a positive overage is treated as infinitely large.
func OverageRatio(a Alert) float64 {
	limit := math.Abs(a.Rule.Limit)
	if limit == 0 {
		if a.Overage > 0 {
			return math.Inf(1)
		}
		return 0
	}
	return a.Overage / limit
}

// Classify returns the label of the highest band the alert reaches.
func (b SeverityBands) Classify(a Alert) Severity {
	if len(b) == 0 {
		return SeverityInformational
	}
	ratio := OverageRatio(a)
	label := b[0].Label
	for _, band := range b {
		if ratio >= band.MinOverageRatio {
			label = band.Label
		}
	}
	return label
}
