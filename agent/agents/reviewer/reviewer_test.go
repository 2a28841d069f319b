package reviewer

import (
	"testing"

	compliancex "github.com/tanpawarit/autoblog/agent/compliance"
	contractx "github.com/tanpawarit/autoblog/agent/contract"
)

const rulesDoc = `
version: "r1"
rules:
  - id: best
    kind: superlative
    category: tone
    severity: warn
    terms: ["best"]
  - id: cure-claim
    kind: keyword
    category: compliance
    severity: block
    terms: ["cures cancer"]
  - id: buy-now
    kind: phrase
    category: tone
    severity: block
    terms: ["buy now"]
`

func newReviewer(t *testing.T) *Reviewer {
	t.Helper()
	rules, err := compliancex.Parse([]byte(rulesDoc))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	return New(rules)
}

func TestReviewOrdersComplianceBeforeTone(t *testing.T) {
	t.Parallel()

	v := newReviewer(t).Review(contractx.Draft{
		Title: "The best serum",
		Body:  "<p>It cures cancer. Buy now!</p>",
	})
	if v.Passed {
		t.Fatal("expected verdict to fail")
	}
	if len(v.Violations) != 3 {
		t.Fatalf("violations = %#v, want 3", v.Violations)
	}
	if v.Violations[0].Category != contractx.CategoryCompliance {
		t.Fatalf("first violation category = %s, want compliance", v.Violations[0].Category)
	}
	if v.RuleVersion != "r1" {
		t.Fatalf("rule version = %q", v.RuleVersion)
	}
}

func TestReviewToneBlockFails(t *testing.T) {
	t.Parallel()

	v := newReviewer(t).Review(contractx.Draft{Title: "Skin basics", Body: "Buy now while stocks last"})
	if v.Passed {
		t.Fatal("expected tone block to fail the verdict")
	}
}

func TestReviewWarnOnlyPasses(t *testing.T) {
	t.Parallel()

	v := newReviewer(t).Review(contractx.Draft{Title: "Our best routine", Body: "Gentle habits for skin."})
	if !v.Passed {
		t.Fatalf("expected pass, got %#v", v)
	}
	if len(v.Warnings()) != 1 {
		t.Fatalf("warnings = %#v, want 1", v.Warnings())
	}
}

func TestReviewMalformedRulesFailOnce(t *testing.T) {
	t.Parallel()

	rules, _ := compliancex.Parse([]byte("rules: []"))
	v := New(rules).Review(contractx.Draft{Title: "fine", Body: "fine"})
	if v.Passed {
		t.Fatal("expected fail-closed verdict")
	}
	if len(v.Violations) != 1 || v.Violations[0].RuleID != compliancex.DocumentRuleID {
		t.Fatalf("unexpected violations %#v", v.Violations)
	}
}

func TestReviewCoversFAQSchema(t *testing.T) {
	t.Parallel()

	v := newReviewer(t).Review(contractx.Draft{
		Title:         "Vitamin C basics",
		Body:          "<p>Learn about vitamin C.</p>",
		FAQSchemaHTML: `<script type="application/ld+json">{"acceptedAnswer":{"text":"It cures cancer."}}</script>`,
	})
	if v.Passed {
		t.Fatal("expected a blocked claim in the FAQ block to fail the draft")
	}
	if len(v.Blocking()) != 1 || v.Blocking()[0].RuleID != "cure-claim" {
		t.Fatalf("blocking = %#v", v.Blocking())
	}
}
