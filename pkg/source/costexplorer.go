// Package source implements alert.Source for the metrics cost-guard checks.
package source

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/costexplorer"
	"github.com/aws/aws-sdk-go/service/costexplorer/costexploreriface"
	log "github.com/sirupsen/logrus"

	"github.com/operator-framework/cost-guard/pkg/alert"
	cgaws "github.com/operator-framework/cost-guard/pkg/aws"
)

const (
	MonthlyCostMetric = "monthly_unblended_cost"
	CostUnit          = "USD"

	costMetricName  = "UnblendedCost"
	costGranularity = costexplorer.GranularityMonthly
)

// CostSource observes the unblended cost of the account for the calendar
// month containing the current time.
type CostSource struct {
	client costexploreriface.CostExplorerAPI
	logger log.FieldLogger
	now    func() time.Time
}

func NewCostSource(logger log.FieldLogger, client costexploreriface.CostExplorerAPI) *CostSource {
	return &CostSource{
		client: client,
		logger: logger.WithField("component", "cost-source"),
		now:    time.Now,
	}
}

// WithClock replaces the clock used to select the billing period.
func (s *CostSource) WithClock(now func() time.Time) *CostSource {
	s.now = now
	return s
}

func (s *CostSource) Observe(ctx context.Context) (alert.Observation, error) {
	now := s.now().UTC()
	period := cgaws.CurrentMonth(now)
	s.logger.Debugf("querying Cost Explorer for %s", period)

	out, err := s.client.GetCostAndUsageWithContext(ctx, &costexplorer.GetCostAndUsageInput{
		TimePeriod: &costexplorer.DateInterval{
			Start: aws.String(period.StartDate()),
			End:   aws.String(period.EndDate()),
		},
		Granularity: aws.String(costGranularity),
		Metrics:     []*string{aws.String(costMetricName)},
	})
	if err != nil {
		return alert.Observation{}, fmt.Errorf("could not get cost and usage for %s: %w", period, err)
	}

	total, err := sumUnblendedCost(out)
	if err != nil {
		return alert.Observation{}, fmt.Errorf("invalid cost and usage response for %s: %w", period, err)
	}

	return alert.Observation{
		ResourceID: "account:" + period.Month(),
		MetricName: MonthlyCostMetric,
		Value:      total,
		Unit:       CostUnit,
		ObservedAt: now,
		Labels: map[string]string{
			"Period": period.String(),
		},
	}, nil
}

func sumUnblendedCost(out *costexplorer.GetCostAndUsageOutput) (float64, error) {
	if out == nil || len(out.ResultsByTime) == 0 {
		return 0, fmt.Errorf("no cost data returned")
	}
	var total float64
	for i, result := range out.ResultsByTime {
		metric, ok := result.Total[costMetricName]
		if !ok || metric == nil {
			return 0, fmt.Errorf("result %d has no %s total", i, costMetricName)
		}
		amount, err := strconv.ParseFloat(aws.StringValue(metric.Amount), 64)
		if err != nil {
			return 0, fmt.Errorf("could not parse amount %q: %v", aws.StringValue(metric.Amount), err)
		}
		total += amount
	}
	return total, nil
}
