package maintenance

import (
	"context"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/autoblog/agent/contract"
)

// AuditPost runs every check against post. A check that fails is logged and
// skipped; the others still run.
func AuditPost(ctx context.Context, post contractx.Post, env Env) []contractx.MaintenanceFinding {
	body := parseBody(post.Body)
	logger := log.Ctx(ctx).With().Int64("post_id", post.ID).Logger()

	var findings []contractx.MaintenanceFinding
	for _, c := range checks {
		if ctx.Err() != nil {
			return findings
		}
		found, err := c.run(post, body, env)
		if err != nil {
			logger.Warn().Err(err).Str("check", string(c.category)).Msg("maintenance check skipped")
			continue
		}
		findings = append(findings, found...)
	}
	return findings
}

// Plan is the outcome of merging a post's findings into one body.
type Plan struct {
	Body    string
	Applied []contractx.MaintenanceFinding
	Dropped []contractx.MaintenanceFinding
}

func (p Plan) Changed() bool { return len(p.Applied) > 0 }

// ApplyFindings merges findings into body. Findings are taken in category
// precedence (compliance, tone, fact_check, internal_link); a finding is
// dropped when it overlaps an accepted one, or shares a sentence with an
// accepted finding of a stronger category.
func ApplyFindings(raw string, findings []contractx.MaintenanceFinding) Plan {
	body := parseBody(raw)

	ordered := make([]contractx.MaintenanceFinding, len(findings))
	copy(ordered, findings)
	sort.SliceStable(ordered, func(i, j int) bool {
		pi, pj := ordered[i].Category.Precedence(), ordered[j].Category.Precedence()
		if pi != pj {
			return pi < pj
		}
		return ordered[i].Start < ordered[j].Start
	})

	plan := Plan{Body: raw}
	for _, f := range ordered {
		if f.Start < 0 || f.End > len(raw) || f.Start >= f.End || raw[f.Start:f.End] != f.Original {
			plan.Dropped = append(plan.Dropped, f)
			continue
		}
		if conflicts(body, f, plan.Applied) {
			plan.Dropped = append(plan.Dropped, f)
			continue
		}
		plan.Applied = append(plan.Applied, f)
	}
	if len(plan.Applied) == 0 {
		return plan
	}

	edits := make([]contractx.MaintenanceFinding, len(plan.Applied))
	copy(edits, plan.Applied)
	sort.Slice(edits, func(i, j int) bool { return edits[i].Start > edits[j].Start })

	var b strings.Builder
	b.Grow(len(raw))
	out := raw
	for _, e := range edits {
		b.Reset()
		b.WriteString(out[:e.Start])
		b.WriteString(e.Correction)
		b.WriteString(out[e.End:])
		out = b.String()
	}
	plan.Body = out
	return plan
}

func conflicts(body htmlBody, f contractx.MaintenanceFinding, accepted []contractx.MaintenanceFinding) bool {
	fs := span{f.Start, f.End}
	first, last := body.sentence(f.Start), body.sentence(f.End-1)
	for _, a := range accepted {
		if fs.overlaps(span{a.Start, a.End}) {
			return true
		}
		if a.Category.Precedence() == f.Category.Precedence() {
			continue
		}
		aFirst, aLast := body.sentence(a.Start), body.sentence(a.End-1)
		if first <= aLast && aFirst <= last {
			return true
		}
	}
	return false
}
