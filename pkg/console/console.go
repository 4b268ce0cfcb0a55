// Package console prints check results for people running cost-guard from a
// terminal.
package console

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/samber/lo"

	"github.com/operator-framework/cost-guard/pkg/alert"
	"github.com/operator-framework/cost-guard/pkg/aws"
	"github.com/operator-framework/cost-guard/pkg/check"
)

const (
	CostWidth = 60
	CPUWidth  = 80
)

// Printer writes check output to a terminal. It is not safe for concurrent
// use.
type Printer struct {
	out io.Writer

	title   *color.Color
	alarm   *color.Color
	ok      *color.Color
	warning *color.Color
}

// NewPrinter creates a Printer. Colour is used only when noColor is false
// and stdout is a terminal.
func NewPrinter(out io.Writer, noColor bool) *Printer {
	p := &Printer{
		out:     out,
		title:   color.New(color.Bold),
		alarm:   color.New(color.FgRed, color.Bold),
		ok:      color.New(color.FgGreen),
		warning: color.New(color.FgYellow),
	}
	if noColor {
		for _, c := range []*color.Color{p.title, p.alarm, p.ok, p.warning} {
			c.DisableColor()
		}
	}
	return p
}

// Writer returns the writer output is printed to.
func (p *Printer) Writer() io.Writer {
	return p.out
}

// Banner prints title underlined to width.
func (p *Printer) Banner(title string, width int) {
	p.title.Fprintln(p.out, title)
	fmt.Fprintln(p.out, strings.Repeat("=", width))
	fmt.Fprintln(p.out)
}

// Rule prints a horizontal line of width.
func (p *Printer) Rule(ch string, width int) {
	fmt.Fprintln(p.out, strings.Repeat(ch, width))
}

// Failure reports that check could not complete.
func (p *Printer) Failure(check string, reason string) {
	fmt.Fprintln(p.out)
	p.alarm.Fprintf(p.out, "%s execution failed: %s\n", check, reason)
}

// FetchingCosts announces the Cost Explorer query for period.
func (p *Printer) FetchingCosts(period aws.BillingPeriod) {
	fmt.Fprintf(p.out, "Fetching AWS costs from %s to %s...\n", period.StartDate(), period.EndDate())
}

// ScanningInstances announces the EC2 inventory of region.
func (p *Printer) ScanningInstances(region string) {
	fmt.Fprintf(p.out, "Scanning EC2 instances in region: %s...\n", region)
}

// CostSummary prints the observed monthly spend against rule and, when a is
// not nil, the alert block.
func (p *Printer) CostSummary(obs alert.Observation, rule alert.ThresholdRule, a *alert.Alert, severity alert.Severity) {
	fmt.Fprintf(p.out, "Current Month AWS Spending: $%.2f\n", obs.Value)
	fmt.Fprintf(p.out, "Alert Threshold: $%.2f\n", rule.Limit)

	if a == nil {
		p.ok.Fprintf(p.out, "Spending is within budget. $%.2f remaining before alert.\n", rule.Limit-obs.Value)
		fmt.Fprintln(p.out)
		return
	}

	fmt.Fprintln(p.out)
	p.Rule("=", CostWidth)
	p.alarm.Fprintln(p.out, "COST ALERT TRIGGERED!")
	p.Rule("=", CostWidth)
	fmt.Fprintf(p.out, "Current Month Spending: $%.2f\n", obs.Value)
	fmt.Fprintf(p.out, "Alert Threshold: $%.2f\n", rule.Limit)
	fmt.Fprintf(p.out, "Overage: $%.2f\n", a.Overage)
	fmt.Fprintf(p.out, "Severity: %s\n", severity)
	fmt.Fprintln(p.out)
}

// InstanceCounts prints how many instances were found and how many of them
// are running.
func (p *Printer) InstanceCounts(total, running int) {
	fmt.Fprintf(p.out, "Found %d total instances\n", total)
	fmt.Fprintf(p.out, "%d instances in '%s' state\n", running, aws.StateRunning)
	fmt.Fprintln(p.out)
}

// InstanceTable prints one row per checked instance.
func (p *Printer) InstanceTable(results []check.CPUResult) {
	fmt.Fprintln(p.out, "Checking CPU usage for running instances...")
	p.Rule("=", CPUWidth)
	if len(results) == 0 {
		fmt.Fprintln(p.out, "No running instances found.")
		fmt.Fprintln(p.out)
		return
	}

	p.title.Fprintf(p.out, "%-20s %-25s %-10s %-15s\n", "Instance ID", "Name", "CPU %", "Status")
	p.Rule("-", CPUWidth)
	for _, r := range results {
		cpu := "-"
		if r.Err == nil {
			cpu = fmt.Sprintf("%.2f", r.Observation.Value)
		}
		status := r.Status()
		row := fmt.Sprintf("%-20s %-25s %-10s ", r.Instance.ID, r.Instance.Name, cpu)
		fmt.Fprint(p.out, row)
		switch status {
		case check.StatusHigh:
			p.alarm.Fprintf(p.out, "%-15s", status)
		case check.StatusNoData:
			p.warning.Fprintf(p.out, "%-15s", status)
		default:
			p.ok.Fprintf(p.out, "%-15s", status)
		}
		fmt.Fprintln(p.out)
	}
	p.Rule("=", CPUWidth)
	fmt.Fprintln(p.out)
}

// AlertReports prints the rendered report of every alerting instance, the
// largest overage first.
func (p *Printer) AlertReports(results []check.CPUResult, runbook string) {
	alerting := check.SortByOverage(lo.Filter(results, func(r check.CPUResult, _ int) bool {
		return r.Report != nil
	}))
	if len(alerting) == 0 {
		p.ok.Fprintln(p.out, "All instances are operating within normal CPU parameters.")
		fmt.Fprintln(p.out)
		return
	}

	fmt.Fprintln(p.out)
	p.Rule("=", CPUWidth)
	p.alarm.Fprintln(p.out, "HIGH CPU ALERT - INSTANCES REQUIRING ATTENTION")
	p.Rule("=", CPUWidth)
	for _, r := range alerting {
		fmt.Fprintln(p.out)
		p.title.Fprintln(p.out, r.Report.Subject)
		fmt.Fprint(p.out, r.Report.Body)
		p.Rule("-", CPUWidth)
	}
	if runbook != "" {
		fmt.Fprintln(p.out)
		fmt.Fprintf(p.out, "Recommendation: Follow %s for diagnostic steps.\n", runbook)
	}
	p.Rule("=", CPUWidth)
	fmt.Fprintln(p.out)
}
