package alert

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/Masterminds/sprig"
)

const (
	DefaultSubjectTemplate = `{{ .Severity | upper }}: {{ .Alert.Rule.MetricName }} threshold exceeded on {{ .Alert.Observation.ResourceID }}`

	DefaultBodyTemplate = `{{ printf "%-15s" "Resource:" }}{{ .Alert.Observation.ResourceID }}
{{ printf "%-15s" "Metric:" }}{{ .Alert.Rule.MetricName }}
{{ printf "%-15s" "Observed:" }}{{ printf "%.2f" .Alert.Observation.Value }}{{ with .Alert.Observation.Unit }} {{ . }}{{ end }}
{{ printf "%-15s" "Threshold:" }}{{ printf "%.2f" .Alert.Rule.Limit }}{{ with .Alert.Observation.Unit }} {{ . }}{{ end }} ({{ .Alert.Rule.Comparison }})
{{ printf "%-15s" "Overage:" }}{{ printf "%.2f" .Alert.Overage }}{{ with .Alert.Observation.Unit }} {{ . }}{{ end }}
{{ printf "%-15s" "Severity:" }}{{ .Severity }}
{{- if not .Alert.Observation.ObservedAt.IsZero }}
{{ printf "%-15s" "Observed At:" }}{{ .Alert.Observation.ObservedAt.UTC.Format "2006-01-02 15:04:05 UTC" }}
{{- end }}
{{- range $key, $value := .Alert.Observation.Labels }}
{{ printf "%-15s" (print $key ":") }}{{ $value }}
{{- end }}
{{- with .Alert.Rule.Runbook }}
{{ printf "%-15s" "Refer to:" }}{{ . }}
{{- end }}
`
)

// Report is the formatted, human readable rendition of an Alert.
type Report struct {
	Subject    string    `json:"subject"`
	Body       string    `json:"body"`
	Severity   Severity  `json:"severity"`
	ResourceID string    `json:"resourceId"`
	MetricName string    `json:"metricName"`
	Value      float64   `json:"value"`
	Limit      float64   `json:"limit"`
	Overage    float64   `json:"overage"`
	ObservedAt time.Time `json:"observedAt"`
}

// ReportTemplateContext is the data passed to report templates.
type ReportTemplateContext struct {
	Alert Alert
	// Severity is the band label as a plain string so it can be piped into
	// string template functions.
	Severity string
	// OverageRatio is Overage relative to the limit, see OverageRatio.
	OverageRatio float64
}

// Renderer turns Alerts into Reports. It is safe for concurrent use.
type Renderer struct {
	bands   SeverityBands
	subject *template.Template
	body    *template.Template
}

// NewRenderer parses the subject and body templates. Empty templates select
// DefaultSubjectTemplate and DefaultBodyTemplate.
func NewRenderer(bands SeverityBands, subjectTmpl, bodyTmpl string) (*Renderer, error) {
	if err := bands.Validate(); err != nil {
		return nil, err
	}
	if subjectTmpl == "" {
		subjectTmpl = DefaultSubjectTemplate
	}
	if bodyTmpl == "" {
		bodyTmpl = DefaultBodyTemplate
	}
	subject, err := newReportTemplate("report-subject", subjectTmpl)
	if err != nil {
		return nil, err
	}
	body, err := newReportTemplate("report-body", bodyTmpl)
	if err != nil {
		return nil, err
	}
	return &Renderer{
		bands:   bands,
		subject: subject,
		body:    body,
	}, nil
}

// MustNewDefaultRenderer returns a Renderer with the default bands and templates.
func MustNewDefaultRenderer() *Renderer {
	r, err := NewRenderer(DefaultSeverityBands(), "", "")
	if err != nil {
		panic(err)
	}
	return r
}

func newReportTemplate(name, text string) (*template.Template, error) {
	tmpl, err := template.New(name).Option("missingkey=error").Funcs(sprig.TxtFuncMap()).Parse(text)
	if err != nil {
		return nil, fmt.Errorf("error parsing %s template: %v", name, err)
	}
	return tmpl, nil
}

// Severity classifies a using the renderer's bands.
func (r *Renderer) Severity(a Alert) Severity {
	return r.bands.Classify(a)
}

// Render produces the Report for a. The output only depends on a and the
// renderer's configuration.
func (r *Renderer) Render(a Alert) (Report, error) {
	severity := r.bands.Classify(a)
	tmplCtx := ReportTemplateContext{
		Alert:        a,
		Severity:     string(severity),
		OverageRatio: OverageRatio(a),
	}

	subject, err := renderTemplate(r.subject, tmplCtx)
	if err != nil {
		return Report{}, err
	}
	body, err := renderTemplate(r.body, tmplCtx)
	if err != nil {
		return Report{}, err
	}

	return Report{
		Subject:    strings.TrimSpace(subject),
		Body:       body,
		Severity:   severity,
		ResourceID: a.Observation.ResourceID,
		MetricName: a.Rule.MetricName,
		Value:      a.Observation.Value,
		Limit:      a.Rule.Limit,
		Overage:    a.Overage,
		ObservedAt: a.Observation.ObservedAt,
	}, nil
}

func renderTemplate(tmpl *template.Template, tmplCtx ReportTemplateContext) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, tmplCtx); err != nil {
		return "", fmt.Errorf("error executing %s template: %v", tmpl.Name(), err)
	}
	return buf.String(), nil
}
