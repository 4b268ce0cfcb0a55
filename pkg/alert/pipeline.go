package alert

import (
	"context"

	log "github.com/sirupsen/logrus"
)

// Recorder is notified about pipeline outcomes. Implementations must be safe
// for concurrent use.
type Recorder interface {
	SourceFailed(rule ThresholdRule)
	Evaluated(obs Observation, triggered bool)
	Alerted(report Report)
	DeliveryFailed(report Report)
}

// Pipeline fetches an observation, evaluates it against a rule and, when the
// rule triggers, renders and dispatches a report.
//
// A Pipeline holds no per-run state, so Run may be called concurrently.
type Pipeline struct {
	logger   log.FieldLogger
	renderer *Renderer
	recorder Recorder
}

// NewPipeline creates a Pipeline. A nil renderer selects the default renderer
// and recorder may be nil.
func NewPipeline(logger log.FieldLogger, renderer *Renderer, recorder Recorder) *Pipeline {
	if renderer == nil {
		renderer = MustNewDefaultRenderer()
	}
	return &Pipeline{
		logger:   logger.WithField("component", "pipeline"),
		renderer: renderer,
		recorder: recorder,
	}
}

// Renderer returns the renderer used for triggered alerts.
func (p *Pipeline) Renderer() *Renderer {
	return p.renderer
}

// Run calls source once and evaluates the result against rule. When the rule
// triggers the alert is rendered and sent to sink.
//
// If the source fails the returned error matches ErrSourceUnavailable and
// neither evaluation nor notification happen. Sink failures are logged and
// never returned.
func (p *Pipeline) Run(ctx context.Context, source Source, rule ThresholdRule, sink Sink) (Observation, *Alert, error) {
	logger := p.logger.WithField("metric", rule.MetricName)

	obs, err := source.Observe(ctx)
	if err != nil {
		if p.recorder != nil {
			p.recorder.SourceFailed(rule)
		}
		return Observation{}, nil, Unavailable(err)
	}
	logger = logger.WithField("resource", obs.ResourceID)

	a := Evaluate(obs, rule)
	if p.recorder != nil {
		p.recorder.Evaluated(obs, a != nil)
	}
	if a == nil {
		logger.Debugf("observed %.2f, within limit %.2f", obs.Value, rule.Limit)
		return obs, nil, nil
	}

	report, err := p.renderer.Render(*a)
	if err != nil {
		logger.WithError(err).Error("unable to render alert report, skipping notification")
		return obs, a, nil
	}
	logger.WithField("severity", report.Severity).Infof("observed %.2f exceeds limit %.2f by %.2f", obs.Value, rule.Limit, a.Overage)
	if p.recorder != nil {
		p.recorder.Alerted(report)
	}

	p.Dispatch(ctx, report, sink)
	return obs, a, nil
}

// Dispatch sends report to sink without tracking delivery. A failure is
// logged as a SinkDeliveryError and swallowed.
func (p *Pipeline) Dispatch(ctx context.Context, report Report, sink Sink) {
	if sink == nil {
		return
	}
	if err := sink.Send(ctx, report); err != nil {
		deliveryErr := &SinkDeliveryError{ResourceID: report.ResourceID, Err: err}
		p.logger.WithError(deliveryErr).WithField("resource", report.ResourceID).Warn("unable to deliver alert report")
		if p.recorder != nil {
			p.recorder.DeliveryFailed(report)
		}
	}
}
