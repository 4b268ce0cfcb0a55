package main

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/operator-framework/cost-guard/pkg/config"
)

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	logLevel        string
	logFormat       string
	configPath      string
	region          string
	profile         string
	envFile         string
	metricsTextfile string
	noColor         bool
}

func (o *globalOptions) addFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.logLevel, "log-level", "info", "log level")
	fs.StringVar(&o.logFormat, "log-format", "text", "log format, text or json")
	fs.StringVar(&o.configPath, "config", "", "path to a YAML rules file; built in defaults are used when empty")
	fs.StringVar(&o.region, "region", "us-east-1", "AWS region scanned for EC2 instances")
	fs.StringVar(&o.profile, "profile", "", "named AWS profile from the shared credentials file")
	fs.StringVar(&o.envFile, "env-file", "", "dotenv file to load before reading COST_GUARD_* variables; .env is used when present")
	fs.StringVar(&o.metricsTextfile, "metrics-textfile", "", "if set, Prometheus metrics are written to this file after every check")
	fs.BoolVar(&o.noColor, "no-color", false, "disable coloured output")
}

// configOverride copies the flags a user set explicitly into cfg.
type configOverride func(fs *pflag.FlagSet, cfg *config.Config)

// ruleOptions configure the threshold rule of a single check.
type ruleOptions struct {
	threshold     float64
	comparison    string
	runbook       string
	sourceRetries uint
}

func (o *ruleOptions) addFlags(fs *pflag.FlagSet, defaultThreshold float64) {
	fs.Float64Var(&o.threshold, "threshold", defaultThreshold, "alert when the observed value exceeds this limit")
	fs.StringVar(&o.comparison, "comparison", "greater_than", "greater_than or greater_equal")
	fs.StringVar(&o.runbook, "runbook", "", "runbook referenced in alert reports")
	fs.UintVar(&o.sourceRetries, "source-retries", 1, "number of attempts made to read the metric source")
}

func (o *ruleOptions) apply(fs *pflag.FlagSet, rule *config.RuleConfig, retries *uint) {
	if fs.Changed("threshold") {
		rule.Threshold = o.threshold
	}
	if fs.Changed("comparison") {
		rule.Comparison = o.comparison
	}
	if fs.Changed("runbook") {
		rule.Runbook = o.runbook
	}
	if fs.Changed("source-retries") {
		*retries = o.sourceRetries
	}
}

// notifyOptions select where alert reports are delivered.
type notifyOptions struct {
	snsTopicARN string
	publish     bool
	archive     string
	natsURL     string
	natsSubject string
}

func (o *notifyOptions) addFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.snsTopicARN, "sns-topic-arn", config.DefaultSNSTopicARN, "SNS topic alerts are sent to")
	fs.BoolVar(&o.publish, "publish", false, "publish alerts to SNS instead of printing the notification")
	fs.StringVar(&o.archive, "archive", "", "file:// or s3://bucket/prefix URL reports are archived under")
	fs.StringVar(&o.natsURL, "nats-url", "", "if set, reports are also published to this NATS server")
	fs.StringVar(&o.natsSubject, "nats-subject", "cost-guard.alerts", "NATS subject reports are published on")
}

func (o *notifyOptions) apply(fs *pflag.FlagSet, cfg *config.Config) {
	if fs.Changed("sns-topic-arn") {
		cfg.Notify.SNSTopicARN = o.snsTopicARN
	}
	if fs.Changed("publish") {
		cfg.Notify.Publish = o.publish
	}
	if fs.Changed("archive") {
		cfg.Notify.Archive = o.archive
	}
	if fs.Changed("nats-url") {
		cfg.Notify.NATSURL = o.natsURL
	}
	if fs.Changed("nats-subject") {
		cfg.Notify.NATSSubject = o.natsSubject
	}
}

type costOptions struct {
	rule   ruleOptions
	notify notifyOptions
}

func (o *costOptions) addFlags(fs *pflag.FlagSet) {
	o.rule.addFlags(fs, 100)
	o.notify.addFlags(fs)
}

func (o *costOptions) apply(fs *pflag.FlagSet, cfg *config.Config) {
	o.rule.apply(fs, &cfg.Cost.RuleConfig, &cfg.Cost.SourceRetries)
	o.notify.apply(fs, cfg)
}

type cpuOptions struct {
	rule            ruleOptions
	notify          notifyOptions
	source          string
	prometheusURL   string
	prometheusQuery string
	concurrency     int
}

func (o *cpuOptions) addFlags(fs *pflag.FlagSet) {
	o.rule.addFlags(fs, 80)
	o.notify.addFlags(fs)
	fs.StringVar(&o.source, "cpu-source", config.CPUSourceSimulated, fmt.Sprintf("where CPU utilization is read from: %s, %s or %s", config.CPUSourceSimulated, config.CPUSourceCloudWatch, config.CPUSourcePrometheus))
	fs.StringVar(&o.prometheusURL, "prometheus-url", "", "Prometheus server queried when --cpu-source=prometheus")
	fs.StringVar(&o.prometheusQuery, "prometheus-query", "", "PromQL template for an instance's CPU percentage, eg. {{ .InstanceID }} is replaced by the instance id")
	fs.IntVar(&o.concurrency, "concurrency", 4, "number of instances checked in parallel")
}

func (o *cpuOptions) apply(fs *pflag.FlagSet, cfg *config.Config) {
	o.rule.apply(fs, &cfg.CPU.RuleConfig, &cfg.CPU.SourceRetries)
	o.notify.apply(fs, cfg)
	if fs.Changed("cpu-source") {
		cfg.CPU.Source = o.source
	}
	if fs.Changed("prometheus-url") {
		cfg.CPU.PrometheusURL = o.prometheusURL
	}
	if fs.Changed("prometheus-query") {
		cfg.CPU.PrometheusQuery = o.prometheusQuery
	}
	if fs.Changed("concurrency") {
		cfg.CPU.Concurrency = o.concurrency
	}
}

type watchOptions struct {
	notify       notifyOptions
	costSchedule string
	cpuSchedule  string
	listen       string
}

func (o *watchOptions) addFlags(fs *pflag.FlagSet) {
	o.notify.addFlags(fs)
	fs.StringVar(&o.costSchedule, "cost-schedule", "@every 1h", "cron schedule of the cost check")
	fs.StringVar(&o.cpuSchedule, "cpu-schedule", "@every 1h", "cron schedule of the CPU check")
	fs.StringVar(&o.listen, "listen", ":8080", "address the health, metrics and check API is served on")
}

func (o *watchOptions) apply(fs *pflag.FlagSet, cfg *config.Config) {
	o.notify.apply(fs, cfg)
	if fs.Changed("cost-schedule") {
		cfg.Watch.CostSchedule = o.costSchedule
	}
	if fs.Changed("cpu-schedule") {
		cfg.Watch.CPUSchedule = o.cpuSchedule
	}
	if fs.Changed("listen") {
		cfg.Watch.Listen = o.listen
	}
}
