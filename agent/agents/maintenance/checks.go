package maintenance

import (
	"fmt"
	"html"
	"regexp"
	"sort"
	"strconv"
	"strings"

	compliancex "github.com/tanpawarit/autoblog/agent/compliance"
	contractx "github.com/tanpawarit/autoblog/agent/contract"
)

// buddhistEraOffset converts a Buddhist Era year to Gregorian.
const buddhistEraOffset = 543

// Env is what a post is audited against.
type Env struct {
	Rules         compliancex.RuleSet
	Posts         []contractx.Post
	LinkThreshold int
}

type check struct {
	category contractx.FindingCategory
	run      func(post contractx.Post, body htmlBody, env Env) ([]contractx.MaintenanceFinding, error)
}

var checks = []check{
	{contractx.FindingFactCheck, checkFacts},
	{contractx.FindingInternalLink, checkInternalLinks},
	{contractx.FindingCompliance, checkCompliance},
	{contractx.FindingTone, checkTone},
}

func factPattern(anchors []string) (*regexp.Regexp, error) {
	cleaned := make([]string, 0, len(anchors))
	for _, a := range anchors {
		a = strings.TrimSpace(a)
		if a != "" {
			cleaned = append(cleaned, a)
		}
	}
	if len(cleaned) == 0 {
		return nil, nil
	}
	// longest first so "last updated" wins over "updated"
	sort.SliceStable(cleaned, func(i, j int) bool { return len(cleaned[i]) > len(cleaned[j]) })
	alts := make([]string, len(cleaned))
	for i, a := range cleaned {
		alts[i] = strings.Join(strings.Fields(regexp.QuoteMeta(a)), `\s+`)
	}
	return regexp.Compile(`(?i)(?:^|[^\p{L}\p{M}\p{N}_])(?:` + strings.Join(alts, "|") + `)[\s:,]*(\d{4})`)
}

// checkFacts flags anchored year claims older than the rule set's current year.
func checkFacts(post contractx.Post, body htmlBody, env Env) ([]contractx.MaintenanceFinding, error) {
	if err := env.Rules.Err(); err != nil {
		return nil, err
	}
	current := env.Rules.CurrentYear
	if current <= 0 {
		return nil, nil
	}
	re, err := factPattern(env.Rules.FactAnchors)
	if err != nil {
		return nil, fmt.Errorf("compile fact anchors: %w", err)
	}
	if re == nil {
		return nil, nil
	}

	var out []contractx.MaintenanceFinding
	for _, loc := range re.FindAllStringSubmatchIndex(body.raw, -1) {
		start, end := loc[2], loc[3]
		if body.inMarkup(start, end) || followedByDigit(body.raw, end) {
			continue
		}
		year, err := strconv.Atoi(body.raw[start:end])
		if err != nil {
			continue
		}
		want := current
		if year > 2400 {
			want = current + buddhistEraOffset
		}
		if year >= want {
			continue
		}
		out = append(out, contractx.MaintenanceFinding{
			PostID:     post.ID,
			Category:   contractx.FindingFactCheck,
			Original:   body.raw[start:end],
			Correction: strconv.Itoa(want),
			Start:      start,
			End:        end,
			Reason:     fmt.Sprintf("dated claim %d is older than %d", year, want),
		})
	}
	return out, nil
}

func followedByDigit(s string, i int) bool {
	return i < len(s) && s[i] >= '0' && s[i] <= '9'
}

// checkInternalLinks proposes links to other posts when a post has fewer
// links than the threshold.
func checkInternalLinks(post contractx.Post, body htmlBody, env Env) ([]contractx.MaintenanceFinding, error) {
	threshold := env.LinkThreshold
	if threshold <= 0 {
		return nil, nil
	}
	have, err := countLinks(body.raw)
	if err != nil {
		return nil, fmt.Errorf("count links: %w", err)
	}
	need := threshold - have
	if need <= 0 {
		return nil, nil
	}

	lower := strings.ToLower(body.raw)
	var (
		out   []contractx.MaintenanceFinding
		taken []span
	)
	for _, other := range env.Posts {
		if len(out) >= need {
			break
		}
		if other.ID == post.ID || strings.TrimSpace(other.Link) == "" || strings.Contains(body.raw, other.Link) {
			continue
		}
		for _, kw := range linkTerms(other) {
			s, ok := findUnlinked(body, lower, strings.ToLower(kw), taken)
			if !ok {
				continue
			}
			original := body.raw[s.start:s.end]
			out = append(out, contractx.MaintenanceFinding{
				PostID:     post.ID,
				Category:   contractx.FindingInternalLink,
				Original:   original,
				Correction: fmt.Sprintf(`<a href="%s">%s</a>`, html.EscapeString(other.Link), original),
				Start:      s.start,
				End:        s.end,
				Reason:     fmt.Sprintf("link to post %d", other.ID),
			})
			taken = append(taken, s)
			break
		}
	}
	return out, nil
}

func linkTerms(p contractx.Post) []string {
	terms := make([]string, 0, len(p.Keywords)+1)
	for _, kw := range p.Keywords {
		if kw = strings.TrimSpace(kw); kw != "" {
			terms = append(terms, kw)
		}
	}
	if len(terms) == 0 && strings.TrimSpace(p.Title) != "" {
		terms = append(terms, strings.TrimSpace(p.Title))
	}
	return terms
}

// findUnlinked finds the first occurrence of term in body text that sits
// outside tags, existing links and already proposed spans.
func findUnlinked(body htmlBody, lower, term string, taken []span) (span, bool) {
	if term == "" || len(lower) != len(body.raw) {
		return span{}, false
	}
	from := 0
	for from < len(lower) {
		i := strings.Index(lower[from:], term)
		if i < 0 {
			return span{}, false
		}
		s := span{from + i, from + i + len(term)}
		from = s.end
		if body.inMarkup(s.start, s.end) || body.inAnchor(s.start, s.end) || overlapsAny(taken, s) {
			continue
		}
		return s, true
	}
	return span{}, false
}

func checkCompliance(post contractx.Post, body htmlBody, env Env) ([]contractx.MaintenanceFinding, error) {
	if err := env.Rules.Err(); err != nil {
		return nil, err
	}
	verdict := compliancex.Evaluate(body.raw, env.Rules.Subset(contractx.CategoryCompliance))
	return violationFindings(post, body, contractx.FindingCompliance, verdict.Blocking()), nil
}

func checkTone(post contractx.Post, body htmlBody, env Env) ([]contractx.MaintenanceFinding, error) {
	if err := env.Rules.Err(); err != nil {
		return nil, err
	}
	verdict := compliancex.Evaluate(body.raw, env.Rules.Subset(contractx.CategoryTone))
	var picked []contractx.Violation
	for _, v := range verdict.Violations {
		if v.Severity == contractx.SeverityBlock || v.Replacement != "" {
			picked = append(picked, v)
		}
	}
	return violationFindings(post, body, contractx.FindingTone, picked), nil
}

func violationFindings(post contractx.Post, body htmlBody, cat contractx.FindingCategory, vs []contractx.Violation) []contractx.MaintenanceFinding {
	var out []contractx.MaintenanceFinding
	for _, v := range vs {
		if body.inMarkup(v.Start, v.End) {
			continue
		}
		reason := v.Reason
		if v.Regulation != "" {
			reason = strings.TrimSpace(reason + " (" + v.Regulation + ")")
		}
		out = append(out, contractx.MaintenanceFinding{
			PostID:     post.ID,
			Category:   cat,
			RuleID:     v.RuleID,
			Original:   v.Match,
			Correction: v.Replacement,
			Start:      v.Start,
			End:        v.End,
			Reason:     reason,
		})
	}
	return out
}
