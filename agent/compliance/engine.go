package compliance

import (
	contractx "github.com/tanpawarit/autoblog/agent/contract"
)

// Evaluate checks text against every rule in rules. It is pure: the same
// inputs always give the same verdict. A verdict fails iff at least one block
// rule matches, or the rule set itself is unusable.
func Evaluate(text string, rules RuleSet) contractx.Verdict {
	if err := rules.Err(); err != nil {
		return contractx.Verdict{
			Passed:      false,
			RuleVersion: rules.Version,
			Violations: []contractx.Violation{{
				RuleID:   DocumentRuleID,
				Category: contractx.CategoryCompliance,
				Severity: contractx.SeverityBlock,
				Reason:   err.Error(),
			}},
		}
	}

	verdict := contractx.Verdict{Passed: true, RuleVersion: rules.Version}
	for _, r := range rules.rules {
		for _, loc := range r.expr.FindAll(text) {
			start, end := loc[0], loc[1]
			verdict.Violations = append(verdict.Violations, contractx.Violation{
				RuleID:      r.ID,
				Category:    r.Category,
				Severity:    r.Severity,
				Regulation:  r.Regulation,
				Match:       text[start:end],
				Start:       start,
				End:         end,
				Reason:      r.Reason,
				Replacement: r.Replacement,
			})
			if r.Severity == contractx.SeverityBlock {
				verdict.Passed = false
			}
		}
	}
	return verdict
}
