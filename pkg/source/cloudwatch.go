package source

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/cloudwatch"
	"github.com/aws/aws-sdk-go/service/cloudwatch/cloudwatchiface"
	log "github.com/sirupsen/logrus"

	"github.com/operator-framework/cost-guard/pkg/alert"
	cgaws "github.com/operator-framework/cost-guard/pkg/aws"
)

const (
	CPUUtilizationMetric = "cpu_utilization"
	PercentUnit          = "%"

	ec2Namespace          = "AWS/EC2"
	cpuUtilizationName    = "CPUUtilization"
	instanceIDDimension   = "InstanceId"
	cpuStatisticsPeriod   = 300
	cpuStatisticsLookback = 10 * time.Minute
)

// CloudWatchCPUSource observes the average CPU utilization of one EC2
// instance over the last ten minutes.
type CloudWatchCPUSource struct {
	client   cloudwatchiface.CloudWatchAPI
	instance cgaws.Instance
	logger   log.FieldLogger
	now      func() time.Time
}

func NewCloudWatchCPUSource(logger log.FieldLogger, client cloudwatchiface.CloudWatchAPI, instance cgaws.Instance) *CloudWatchCPUSource {
	return &CloudWatchCPUSource{
		client:   client,
		instance: instance,
		logger:   logger.WithFields(log.Fields{"component": "cloudwatch-source", "instance": instance.ID}),
		now:      time.Now,
	}
}

// WithClock replaces the clock used to compute the statistics window.
func (s *CloudWatchCPUSource) WithClock(now func() time.Time) *CloudWatchCPUSource {
	s.now = now
	return s
}

func (s *CloudWatchCPUSource) Observe(ctx context.Context) (alert.Observation, error) {
	end := s.now().UTC()
	start := end.Add(-cpuStatisticsLookback)

	out, err := s.client.GetMetricStatisticsWithContext(ctx, &cloudwatch.GetMetricStatisticsInput{
		Namespace:  aws.String(ec2Namespace),
		MetricName: aws.String(cpuUtilizationName),
		Dimensions: []*cloudwatch.Dimension{
			{Name: aws.String(instanceIDDimension), Value: aws.String(s.instance.ID)},
		},
		StartTime:  aws.Time(start),
		EndTime:    aws.Time(end),
		Period:     aws.Int64(cpuStatisticsPeriod),
		Statistics: []*string{aws.String(cloudwatch.StatisticAverage)},
	})
	if err != nil {
		return alert.Observation{}, fmt.Errorf("could not get CPU statistics for %s: %w", s.instance.ID, err)
	}

	latest := latestDatapoint(out.Datapoints)
	if latest == nil {
		return alert.Observation{}, fmt.Errorf("no CPU datapoints for %s between %s and %s", s.instance.ID, start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	s.logger.Debugf("%d datapoints, latest at %s", len(out.Datapoints), aws.TimeValue(latest.Timestamp))

	return cpuObservation(s.instance, aws.Float64Value(latest.Average), aws.TimeValue(latest.Timestamp)), nil
}

func latestDatapoint(datapoints []*cloudwatch.Datapoint) *cloudwatch.Datapoint {
	var latest *cloudwatch.Datapoint
	for _, dp := range datapoints {
		if dp == nil || dp.Average == nil {
			continue
		}
		if latest == nil || aws.TimeValue(dp.Timestamp).After(aws.TimeValue(latest.Timestamp)) {
			latest = dp
		}
	}
	return latest
}

func cpuObservation(instance cgaws.Instance, value float64, observedAt time.Time) alert.Observation {
	return alert.Observation{
		ResourceID: instance.ID,
		MetricName: CPUUtilizationMetric,
		Value:      value,
		Unit:       PercentUnit,
		ObservedAt: observedAt,
		Labels:     instance.Labels(),
	}
}
