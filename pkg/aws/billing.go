package aws

import (
	"fmt"
	"time"
)

const (
	// BillingDateFormat is the layout of dates accepted by the Cost Explorer API.
	BillingDateFormat = "2006-01-02"

	// BillingMonthFormat identifies a billing period in resource ids.
	BillingMonthFormat = "2006-01"
)

// BillingPeriod is a half open range of days [Start, End).
type BillingPeriod struct {
	Start time.Time
	End   time.Time
}

// CurrentMonth returns the billing period of the calendar month containing
// now: the first day of the month until the first day of the next month.
// Cost Explorer treats the end date as exclusive.
func CurrentMonth(now time.Time) BillingPeriod {
	now = now.UTC()
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	return BillingPeriod{
		Start: start,
		End:   start.AddDate(0, 1, 0),
	}
}

// StartDate is the period start in BillingDateFormat.
func (p BillingPeriod) StartDate() string {
	return p.Start.Format(BillingDateFormat)
}

// EndDate is the exclusive period end in BillingDateFormat.
func (p BillingPeriod) EndDate() string {
	return p.End.Format(BillingDateFormat)
}

// Month names the period, eg. 2026-10.
func (p BillingPeriod) Month() string {
	return p.Start.Format(BillingMonthFormat)
}

func (p BillingPeriod) String() string {
	return fmt.Sprintf("%s to %s", p.StartDate(), p.EndDate())
}
