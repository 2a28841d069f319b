package reviewer

import (
	compliancex "github.com/tanpawarit/autoblog/agent/compliance"
	contractx "github.com/tanpawarit/autoblog/agent/contract"
)

var _ contractx.Reviewer = (*Reviewer)(nil)

// Reviewer runs the compliance rules, then the tone rules, over a draft's
// title, body, FAQ block, excerpt and meta description. It never calls a
// model.
type Reviewer struct {
	compliance compliancex.RuleSet
	tone       compliancex.RuleSet
	all        compliancex.RuleSet
}

func New(rules compliancex.RuleSet) *Reviewer {
	return &Reviewer{
		compliance: rules.Subset(contractx.CategoryCompliance),
		tone:       rules.Subset(contractx.CategoryTone),
		all:        rules,
	}
}

func (r *Reviewer) Review(d contractx.Draft) contractx.Verdict {
	text := d.ReviewText()
	if r.all.Err() != nil {
		return compliancex.Evaluate(text, r.all)
	}
	return contractx.MergeVerdicts(
		compliancex.Evaluate(text, r.compliance),
		compliancex.Evaluate(text, r.tone),
	)
}
