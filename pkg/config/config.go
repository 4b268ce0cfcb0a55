// Package config loads the cost-guard rules file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron"
	"gopkg.in/yaml.v3"

	"github.com/operator-framework/cost-guard/pkg/alert"
)

const (
	CPUSourceSimulated  = "simulated"
	CPUSourceCloudWatch = "cloudwatch"
	CPUSourcePrometheus = "prometheus"

	DefaultSNSTopicARN = "arn:aws:sns:us-east-1:123456789012:cost-alerts"
	DefaultCPURunbook  = "docs/SOP-High-CPU-Troubleshooting.md"
)

// Config is the content of the rules file. Every field has a usable
// default so an empty file, or no file at all, is valid.
type Config struct {
	Cost   CostConfig   `yaml:"cost"`
	CPU    CPUConfig    `yaml:"cpu"`
	Notify NotifyConfig `yaml:"notify"`
	Report ReportConfig `yaml:"report"`
	Watch  WatchConfig  `yaml:"watch"`
}

// RuleConfig describes a threshold rule.
type RuleConfig struct {
	Threshold  float64 `yaml:"threshold" validate:"gte=0"`
	Comparison string  `yaml:"comparison" default:"greater_than" validate:"oneof=greater_than greater_equal"`
	Runbook    string  `yaml:"runbook"`
}

// Rule converts the configuration into a rule for metricName.
func (r RuleConfig) Rule(metricName string) (alert.ThresholdRule, error) {
	comparison, err := alert.ParseComparison(r.Comparison)
	if err != nil {
		return alert.ThresholdRule{}, err
	}
	rule := alert.ThresholdRule{
		MetricName: metricName,
		Limit:      r.Threshold,
		Comparison: comparison,
		Runbook:    r.Runbook,
	}
	return rule, rule.Validate()
}

type CostConfig struct {
	RuleConfig `yaml:",inline"`
	// SourceRetries is the number of Cost Explorer attempts per run.
	SourceRetries uint `yaml:"sourceRetries" default:"1" validate:"gte=1,lte=10"`
}

type CPUConfig struct {
	RuleConfig      `yaml:",inline"`
	Source          string `yaml:"source" default:"simulated" validate:"oneof=simulated cloudwatch prometheus"`
	PrometheusURL   string `yaml:"prometheusURL" validate:"omitempty,url"`
	PrometheusQuery string `yaml:"prometheusQuery"`
	Concurrency     int    `yaml:"concurrency" default:"4" validate:"gte=1,lte=64"`
	SourceRetries   uint   `yaml:"sourceRetries" default:"1" validate:"gte=1,lte=10"`
}

type NotifyConfig struct {
	SNSTopicARN string `yaml:"snsTopicARN" default:"arn:aws:sns:us-east-1:123456789012:cost-alerts" validate:"required"`
	// Publish sends reports to SNS instead of printing the notification.
	Publish bool `yaml:"publish"`
	// Archive is a file:// or s3:// URL reports are archived under.
	Archive     string `yaml:"archive" validate:"omitempty,url"`
	NATSURL     string `yaml:"natsURL" validate:"omitempty,url"`
	NATSSubject string `yaml:"natsSubject" default:"cost-guard.alerts"`
}

type ReportConfig struct {
	SeverityBands   alert.SeverityBands `yaml:"severityBands" validate:"dive"`
	SubjectTemplate string              `yaml:"subjectTemplate"`
	BodyTemplate    string              `yaml:"bodyTemplate"`
}

// Renderer builds the report renderer. Missing bands select
// alert.DefaultSeverityBands.
func (r ReportConfig) Renderer() (*alert.Renderer, error) {
	bands := r.SeverityBands
	if len(bands) == 0 {
		bands = alert.DefaultSeverityBands()
	}
	return alert.NewRenderer(bands, r.SubjectTemplate, r.BodyTemplate)
}

type WatchConfig struct {
	CostSchedule string `yaml:"costSchedule" default:"@every 1h" validate:"omitempty,cronspec"`
	CPUSchedule  string `yaml:"cpuSchedule" default:"@every 1h" validate:"omitempty,cronspec"`
	Listen       string `yaml:"listen" default:":8080" validate:"required,hostname_port"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		panic(fmt.Sprintf("invalid configuration defaults: %v", err))
	}
	cfg.CPU.Threshold = 80
	cfg.CPU.Runbook = DefaultCPURunbook
	cfg.Cost.Threshold = 100
	return cfg
}

// Load reads the configuration at path. An empty path returns Default().
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read config file '%s': %v", path, err)
	}
	cfg, err := Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("invalid config file '%s': %v", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML configuration from r. ${VAR} references are expanded
// from the environment, unknown keys are rejected and defaults are applied
// to fields left unset.
func Parse(r io.Reader) (*Config, error) {
	data, err := ioutil.ReadAll(r)
	if err != nil {
		return nil, err
	}
	cfg := Default()

	dec := yaml.NewDecoder(strings.NewReader(os.ExpandEnv(string(data))))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("could not decode YAML: %v", err)
	}
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("could not set defaults: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints, severity band ordering and report
// templates.
func (c *Config) Validate() error {
	if err := newValidator().Struct(c); err != nil {
		return describeValidationError(err)
	}
	if c.CPU.Source == CPUSourcePrometheus && c.CPU.PrometheusURL == "" {
		return fmt.Errorf("invalid configuration: cpu.prometheusURL is required when cpu.source is %s", CPUSourcePrometheus)
	}
	if len(c.Report.SeverityBands) > 0 {
		if err := c.Report.SeverityBands.Validate(); err != nil {
			return fmt.Errorf("report.severityBands: %v", err)
		}
	}
	if _, err := c.Report.Renderer(); err != nil {
		return fmt.Errorf("report: %v", err)
	}
	return nil
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("cronspec", func(fl validator.FieldLevel) bool {
		sched, err := cron.ParseStandard(fl.Field().String())
		return err == nil && !sched.Next(time.Now()).IsZero()
	})
	return v
}

func describeValidationError(err error) error {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return err
	}
	failedFields := make([]string, 0, len(errs))
	for _, fe := range errs {
		tag := fe.Tag()
		if fe.Param() != "" {
			tag += "=" + fe.Param()
		}
		failedFields = append(failedFields, fmt.Sprintf("%s: %s", fe.Namespace(), tag))
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(failedFields, ", "))
}
