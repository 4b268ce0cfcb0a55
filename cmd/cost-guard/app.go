package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go/service/cloudwatch/cloudwatchiface"
	"github.com/aws/aws-sdk-go/service/costexplorer/costexploreriface"
	"github.com/aws/aws-sdk-go/service/ec2/ec2iface"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/aws/aws-sdk-go/service/sns/snsiface"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/operator-framework/cost-guard/pkg/alert"
	"github.com/operator-framework/cost-guard/pkg/aws"
	"github.com/operator-framework/cost-guard/pkg/check"
	"github.com/operator-framework/cost-guard/pkg/config"
	"github.com/operator-framework/cost-guard/pkg/console"
	"github.com/operator-framework/cost-guard/pkg/metrics"
	"github.com/operator-framework/cost-guard/pkg/sink"
	"github.com/operator-framework/cost-guard/pkg/source"
	"github.com/operator-framework/cost-guard/pkg/watch"
)

const (
	costCheckName = "Cost Guard"
	cpuCheckName  = "CPU Monitor"

	costBanner = "AWS Cost Guard - FinOps Monitoring"
	cpuBanner  = "AWS EC2 CPU Monitor"

	sourceRetryDelay = 2 * time.Second
)

// errCheckFailed marks errors already reported on the console.
var errCheckFailed = errors.New("check failed")

// awsClients creates the AWS service clients used by the checks.
type awsClients interface {
	Region() string
	EC2() ec2iface.EC2API
	CloudWatch() cloudwatchiface.CloudWatchAPI
	CostExplorer() costexploreriface.CostExplorerAPI
	SNS() snsiface.SNSAPI
	S3(region string) s3iface.S3API
}

type app struct {
	logger   log.FieldLogger
	cfg      *config.Config
	clients  awsClients
	printer  *console.Printer
	runner   *check.Runner
	recorder *metrics.Recorder
	now      func() time.Time

	metricsTextfile string
	consoleMu       sync.Mutex

	newPrometheus func(address string) (source.Queryer, error)
	connectNATS   func(url string) (sink.MsgPublisher, func(), error)
}

func newApp(logger log.FieldLogger, cfg *config.Config, clients awsClients, out io.Writer, noColor bool, metricsTextfile string) (*app, error) {
	renderer, err := cfg.Report.Renderer()
	if err != nil {
		return nil, err
	}
	recorder := metrics.NewRecorder()
	return &app{
		logger:          logger,
		cfg:             cfg,
		clients:         clients,
		printer:         console.NewPrinter(out, noColor),
		runner:          check.NewRunner(logger, alert.NewPipeline(logger, renderer, recorder)),
		recorder:        recorder,
		now:             time.Now,
		metricsTextfile: metricsTextfile,
		newPrometheus: func(address string) (source.Queryer, error) {
			return source.NewPrometheusAPI(address)
		},
		connectNATS: func(url string) (sink.MsgPublisher, func(), error) {
			conn, err := sink.ConnectNATS(url)
			if err != nil {
				return nil, nil, err
			}
			return conn, func() { sink.CloseNATS(conn) }, nil
		},
	}, nil
}

// oneShot runs check once and records its outcome.
func (a *app) oneShot(ctx context.Context, name string, run func(context.Context) error) error {
	start := a.now()
	err := run(ctx)
	a.ObserveCheck(metricsCheckName(name), start, err)
	return err
}

// ObserveCheck records a completed check and refreshes the metrics textfile.
func (a *app) ObserveCheck(name string, start time.Time, err error) {
	a.recorder.ObserveCheck(name, start, err)
	if a.metricsTextfile == "" {
		return
	}
	if werr := a.recorder.WriteTextfile(a.metricsTextfile); werr != nil {
		a.logger.WithError(werr).Warnf("unable to write metrics to %s", a.metricsTextfile)
	}
}

func metricsCheckName(name string) string {
	if name == cpuCheckName {
		return check.CPUCheck
	}
	return check.CostCheck
}

// failed prints the console failure line for err and marks it as reported.
func (a *app) failed(name string, err error) error {
	a.printer.Failure(name, aws.DescribeError(err))
	a.logger.WithError(err).Debugf("%s failed", name)
	return fmt.Errorf("%w: %s: %v", errCheckFailed, name, err)
}

func (a *app) runCost(ctx context.Context) error {
	a.printer.Banner(costBanner, console.CostWidth)

	rule, err := a.cfg.Cost.Rule(source.MonthlyCostMetric)
	if err != nil {
		return a.failed(costCheckName, err)
	}

	a.printer.FetchingCosts(aws.CurrentMonth(a.now()))
	costSource := source.NewCostSource(a.logger, a.clients.CostExplorer()).WithClock(a.now)
	result, err := a.runner.Cost(ctx, source.WithRetry(a.logger, costSource, a.cfg.Cost.SourceRetries, sourceRetryDelay), rule)
	if err != nil {
		return a.failed(costCheckName, err)
	}
	a.printer.CostSummary(result.Observation, rule, result.Alert, result.Severity)
	if len(result.Reports) == 0 {
		return nil
	}

	targets, closeSinks, err := a.sinks(!a.cfg.Notify.Publish)
	if err != nil {
		return a.failed(costCheckName, err)
	}
	defer closeSinks()
	a.runner.Notify(ctx, targets, result.Reports...)
	return nil
}

func (a *app) runCPU(ctx context.Context) error {
	a.printer.Banner(cpuBanner, console.CPUWidth)

	rule, err := a.cfg.CPU.Rule(source.CPUUtilizationMetric)
	if err != nil {
		return a.failed(cpuCheckName, err)
	}

	a.printer.ScanningInstances(a.clients.Region())
	instances, err := aws.ListInstances(ctx, a.clients.EC2())
	if err != nil {
		return a.failed(cpuCheckName, err)
	}
	running := aws.Running(instances)
	a.printer.InstanceCounts(len(instances), len(running))

	newSource, err := a.cpuSourceFactory()
	if err != nil {
		return a.failed(cpuCheckName, err)
	}
	results, err := a.runner.CPU(ctx, running, newSource, rule, a.cfg.CPU.Concurrency)
	if results != nil {
		a.printer.InstanceTable(results)
	}
	if err != nil {
		return a.failed(cpuCheckName, err)
	}
	a.printer.AlertReports(results, rule.Runbook)

	reports := check.Reports(results)
	if len(reports) == 0 {
		return nil
	}
	targets, closeSinks, err := a.sinks(false)
	if err != nil {
		return a.failed(cpuCheckName, err)
	}
	defer closeSinks()
	if len(targets) > 0 {
		a.runner.Notify(ctx, targets, reports...)
	}
	return nil
}

// cpuSourceFactory creates the configured CPU source for each instance.
func (a *app) cpuSourceFactory() (check.SourceFactory, error) {
	cpu := a.cfg.CPU
	var newSource func(instance aws.Instance) (alert.Source, error)

	switch cpu.Source {
	case config.CPUSourceSimulated:
		newSource = func(instance aws.Instance) (alert.Source, error) {
			return source.NewSimulatedCPUSource(instance).WithClock(a.now), nil
		}
	case config.CPUSourceCloudWatch:
		client := a.clients.CloudWatch()
		newSource = func(instance aws.Instance) (alert.Source, error) {
			return source.NewCloudWatchCPUSource(a.logger, client, instance).WithClock(a.now), nil
		}
	case config.CPUSourcePrometheus:
		queryer, err := a.newPrometheus(cpu.PrometheusURL)
		if err != nil {
			return nil, err
		}
		query := cpu.PrometheusQuery
		if query == "" {
			query = source.DefaultCPUQuery
		}
		newSource = func(instance aws.Instance) (alert.Source, error) {
			src, err := source.NewPrometheusCPUSource(a.logger, queryer, query, instance)
			if err != nil {
				return nil, err
			}
			return src.WithClock(a.now), nil
		}
	default:
		return nil, fmt.Errorf("unknown CPU source %q", cpu.Source)
	}

	return func(instance aws.Instance) (alert.Source, error) {
		src, err := newSource(instance)
		if err != nil {
			return nil, err
		}
		return source.WithRetry(a.logger, src, cpu.SourceRetries, sourceRetryDelay), nil
	}, nil
}

// sinks builds the configured delivery targets. The simulated SNS
// notification is printed when simulate is true. The returned func releases
// connections opened for delivery.
func (a *app) sinks(simulate bool) (sink.Fanout, func(), error) {
	notify := a.cfg.Notify
	var targets sink.Fanout
	closeSinks := func() {}

	if simulate {
		targets = append(targets, sink.NewConsoleSink(a.printer.Writer(), notify.SNSTopicARN))
	}
	if notify.Publish {
		targets = append(targets, sink.NewSNSSink(a.logger, a.clients.SNS(), notify.SNSTopicARN))
	}
	if notify.Archive != "" {
		store, err := sink.OpenStore(notify.Archive, func() s3iface.S3API { return a.clients.S3("") })
		if err != nil {
			return nil, nil, err
		}
		targets = append(targets, sink.NewStoreSink(store))
	}
	if notify.NATSURL != "" {
		conn, closeConn, err := a.connectNATS(notify.NATSURL)
		if err != nil {
			return nil, nil, err
		}
		closeSinks = closeConn
		targets = append(targets, sink.NewNATSSink(conn, notify.NATSSubject))
	}
	return targets, closeSinks, nil
}

// exclusive keeps the console output of concurrently scheduled checks from
// interleaving.
func (a *app) exclusive(run watch.JobFunc) watch.JobFunc {
	return func(ctx context.Context) error {
		a.consoleMu.Lock()
		defer a.consoleMu.Unlock()
		return run(ctx)
	}
}

// watch runs both checks on their schedules and serves the API until ctx is
// cancelled.
func (a *app) watch(ctx context.Context) error {
	scheduler := watch.NewScheduler(a.logger, a)
	if err := scheduler.Add(check.CostCheck, a.cfg.Watch.CostSchedule, a.exclusive(a.runCost)); err != nil {
		return err
	}
	if err := scheduler.Add(check.CPUCheck, a.cfg.Watch.CPUSchedule, a.exclusive(a.runCPU)); err != nil {
		return err
	}
	router := watch.NewRouter(a.logger, scheduler, a.recorder.Handler())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return scheduler.Run(gctx)
	})
	g.Go(func() error {
		return watch.Serve(gctx, a.logger, a.cfg.Watch.Listen, router)
	})
	return g.Wait()
}
