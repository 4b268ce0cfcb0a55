package alert

import "fmt"

// Evaluate compares obs against rule and returns an Alert when the rule's
// comparison holds, otherwise nil.
//
// The caller must pass a rule for the observation's metric; a mismatch is a
// programming error and panics.
func Evaluate(obs Observation, rule ThresholdRule) *Alert {
	if obs.MetricName != rule.MetricName {
		panic(fmt.Sprintf("observation metric %q evaluated against rule for %q", obs.MetricName, rule.MetricName))
	}
	if !rule.Comparison.Holds(obs.Value, rule.Limit) {
		return nil
	}
	overage := obs.Value - rule.Limit
	if overage < 0 {
		overage = 0
	}
	return &Alert{
		Observation: obs,
		Rule:        rule,
		Overage:     overage,
	}
}
