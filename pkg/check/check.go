// Package check runs the cost and CPU checks on top of the alert pipeline.
package check

import (
	"context"
	"errors"
	"fmt"
	"sort"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/operator-framework/cost-guard/pkg/alert"
	"github.com/operator-framework/cost-guard/pkg/aws"
	"github.com/operator-framework/cost-guard/pkg/sink"
)

const (
	CostCheck = "cost"
	CPUCheck  = "cpu"

	StatusHigh   = "HIGH CPU"
	StatusNormal = "Normal"
	StatusNoData = "NO DATA"
)

// ErrNoCPUData is returned when no running instance produced an observation.
var ErrNoCPUData = errors.New("no CPU data could be collected for any running instance")

// CostResult is the outcome of a cost check.
type CostResult struct {
	Observation alert.Observation
	Alert       *alert.Alert
	Severity    alert.Severity
	// Reports holds the rendered report when the rule triggered. It has not
	// been delivered yet; see Runner.Notify.
	Reports []alert.Report
}

// CPUResult is the outcome of checking a single instance.
type CPUResult struct {
	Instance    aws.Instance
	Observation alert.Observation
	Alert       *alert.Alert
	Report      *alert.Report
	// Err is set when no observation could be made.
	Err error
}

// SourceFactory creates the CPU metric source for an instance.
type SourceFactory func(instance aws.Instance) (alert.Source, error)

// Runner runs checks. Reports are queued during a run and delivered by
// Notify so callers can present results first.
type Runner struct {
	logger   log.FieldLogger
	pipeline *alert.Pipeline
}

func NewRunner(logger log.FieldLogger, pipeline *alert.Pipeline) *Runner {
	return &Runner{
		logger:   logger.WithField("component", "check"),
		pipeline: pipeline,
	}
}

// Cost observes source once and evaluates it against rule.
func (r *Runner) Cost(ctx context.Context, source alert.Source, rule alert.ThresholdRule) (CostResult, error) {
	queue := &sink.Queue{}
	obs, a, err := r.pipeline.Run(ctx, source, rule, queue)
	if err != nil {
		return CostResult{}, err
	}
	result := CostResult{
		Observation: obs,
		Alert:       a,
		Reports:     queue.Drain(),
	}
	if a != nil {
		result.Severity = r.pipeline.Renderer().Severity(*a)
	}
	return result, nil
}

// CPU checks every instance concurrently, at most concurrency at a time.
// Results are returned in the order of instances. An instance whose source
// fails is reported with Err set; the check only fails when every instance
// failed.
func (r *Runner) CPU(ctx context.Context, instances []aws.Instance, newSource SourceFactory, rule alert.ThresholdRule, concurrency int) ([]CPUResult, error) {
	results := make([]CPUResult, len(instances))
	if len(instances) == 0 {
		return results, nil
	}
	if concurrency < 1 {
		concurrency = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, instance := range instances {
		i, instance := i, instance
		g.Go(func() error {
			results[i] = r.checkInstance(gctx, instance, newSource, rule)
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	failed := 0
	for _, res := range results {
		if res.Err != nil {
			failed++
		}
	}
	if failed == len(results) {
		return results, fmt.Errorf("%w: %v", ErrNoCPUData, results[0].Err)
	}
	return results, nil
}

func (r *Runner) checkInstance(ctx context.Context, instance aws.Instance, newSource SourceFactory, rule alert.ThresholdRule) CPUResult {
	result := CPUResult{Instance: instance}
	logger := r.logger.WithField("instance", instance.ID)

	source, err := newSource(instance)
	if err != nil {
		result.Err = alert.Unavailable(err)
		logger.WithError(err).Warn("unable to create CPU metric source")
		return result
	}

	queue := &sink.Queue{}
	obs, a, err := r.pipeline.Run(ctx, source, rule, queue)
	if err != nil {
		result.Err = err
		logger.WithError(err).Warn("no CPU data for instance")
		return result
	}
	result.Observation = obs
	result.Alert = a
	if reports := queue.Drain(); len(reports) > 0 {
		result.Report = &reports[0]
	}
	return result
}

// Status is the table status of the result.
func (r CPUResult) Status() string {
	switch {
	case r.Err != nil:
		return StatusNoData
	case r.Alert != nil:
		return StatusHigh
	default:
		return StatusNormal
	}
}

// Reports collects the rendered reports of results, the largest overage
// first.
func Reports(results []CPUResult) []alert.Report {
	var reports []alert.Report
	for _, res := range SortByOverage(results) {
		if res.Report != nil {
			reports = append(reports, *res.Report)
		}
	}
	return reports
}

// SortByOverage orders results by descending alert overage. Results without
// an alert keep their relative order after every alerting result.
func SortByOverage(results []CPUResult) []CPUResult {
	sorted := make([]CPUResult, len(results))
	copy(sorted, results)
	sort.SliceStable(sorted, func(i, j int) bool {
		return overage(sorted[i]) > overage(sorted[j])
	})
	return sorted
}

func overage(r CPUResult) float64 {
	if r.Alert == nil {
		return -1
	}
	return r.Alert.Overage
}

// Notify delivers reports to target. Delivery failures are logged and do not
// fail the check.
func (r *Runner) Notify(ctx context.Context, target alert.Sink, reports ...alert.Report) {
	for _, report := range reports {
		r.pipeline.Dispatch(ctx, report, target)
	}
}
