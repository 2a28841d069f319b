package compliance

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	contractx "github.com/tanpawarit/autoblog/agent/contract"
	"gopkg.in/yaml.v3"
)

var (
	ErrRulesNotLoaded = errors.New("rule document not loaded")
	ErrMalformedRules = errors.New("rule document is malformed")
)

// DocumentRuleID is the rule id of the synthetic violation reported when the
// rule document is missing or malformed.
const DocumentRuleID = "rule_document"

type Rule struct {
	ID          string                 `yaml:"id"`
	Kind        Kind                   `yaml:"kind"`
	Category    contractx.RuleCategory `yaml:"category"`
	Severity    contractx.Severity     `yaml:"severity"`
	Regulation  string                 `yaml:"regulation"`
	Terms       []string               `yaml:"terms"`
	Pattern     string                 `yaml:"pattern"`
	Replacement string                 `yaml:"replacement"`
	Reason      string                 `yaml:"reason"`

	expr Expr
}

type document struct {
	Version     string   `yaml:"version"`
	CurrentYear int      `yaml:"current_year"`
	FactAnchors []string `yaml:"fact_anchors"`
	Allowed     []string `yaml:"allowed_claims"`
	Rules       []Rule   `yaml:"rules"`
}

// RuleSet is an immutable, compiled rule document. A RuleSet that failed to
// load still evaluates, and always fails.
type RuleSet struct {
	Version     string
	CurrentYear int
	FactAnchors []string
	Allowed     []string

	rules  []Rule
	err    error
	loaded bool
}

// Load reads and compiles the rule document at path. The returned RuleSet is
// always usable; when err is non-nil it fails every evaluation.
func Load(path string) (RuleSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return failed(fmt.Errorf("%w: open %s: %v", ErrRulesNotLoaded, path, err))
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return failed(fmt.Errorf("%w: read %s: %v", ErrRulesNotLoaded, path, err))
	}
	return Parse(data)
}

// Parse compiles a YAML or JSON rule document.
func Parse(data []byte) (RuleSet, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return failed(fmt.Errorf("%w: empty document", ErrMalformedRules))
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var doc document
	if err := dec.Decode(&doc); err != nil {
		return failed(fmt.Errorf("%w: decode: %v", ErrMalformedRules, err))
	}
	if len(doc.Rules) == 0 {
		return failed(fmt.Errorf("%w: no rules", ErrMalformedRules))
	}

	seen := make(map[string]struct{}, len(doc.Rules))
	rules := make([]Rule, 0, len(doc.Rules))
	for i, r := range doc.Rules {
		r.ID = strings.TrimSpace(r.ID)
		if r.ID == "" {
			return failed(fmt.Errorf("%w: rule #%d has no id", ErrMalformedRules, i))
		}
		if _, dup := seen[r.ID]; dup {
			return failed(fmt.Errorf("%w: duplicate rule id %q", ErrMalformedRules, r.ID))
		}
		seen[r.ID] = struct{}{}

		if r.Category == "" {
			r.Category = contractx.CategoryCompliance
		}
		if r.Category != contractx.CategoryCompliance && r.Category != contractx.CategoryTone {
			return failed(fmt.Errorf("%w: rule %q has unknown category %q", ErrMalformedRules, r.ID, r.Category))
		}
		if r.Severity != contractx.SeverityBlock && r.Severity != contractx.SeverityWarn {
			return failed(fmt.Errorf("%w: rule %q has unknown severity %q", ErrMalformedRules, r.ID, r.Severity))
		}

		compiled, err := compile(r)
		if err != nil {
			return failed(fmt.Errorf("%w: rule %q: %v", ErrMalformedRules, r.ID, err))
		}
		rules = append(rules, compiled)
	}

	return RuleSet{
		Version:     strings.TrimSpace(doc.Version),
		CurrentYear: doc.CurrentYear,
		FactAnchors: cleanAnchors(doc.FactAnchors),
		Allowed:     cleanAnchors(doc.Allowed),
		rules:       rules,
		loaded:      true,
	}, nil
}

func failed(err error) (RuleSet, error) {
	return RuleSet{err: err, loaded: true}, err
}

func cleanAnchors(in []string) []string {
	out := make([]string, 0, len(in))
	for _, a := range in {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, a)
		}
	}
	return out
}

// Err reports why the rule set fails closed, or nil when it is healthy.
func (rs RuleSet) Err() error {
	if !rs.loaded {
		return ErrRulesNotLoaded
	}
	return rs.err
}

func (rs RuleSet) Rules() []Rule {
	return append([]Rule(nil), rs.rules...)
}

// Subset returns the rules of one category. The document status carries over.
func (rs RuleSet) Subset(category contractx.RuleCategory) RuleSet {
	out := rs
	out.rules = make([]Rule, 0, len(rs.rules))
	for _, r := range rs.rules {
		if r.Category == category {
			out.rules = append(out.rules, r)
		}
	}
	return out
}

// Lookup returns the rule with id.
func (rs RuleSet) Lookup(id string) (Rule, bool) {
	for _, r := range rs.rules {
		if r.ID == id {
			return r, true
		}
	}
	return Rule{}, false
}

// BlockedTerms lists up to limit literal terms of block rules, for prompting.
func (rs RuleSet) BlockedTerms(limit int) []string {
	out := make([]string, 0, limit)
	for _, r := range rs.rules {
		if r.Severity != contractx.SeverityBlock {
			continue
		}
		for _, t := range r.Terms {
			if len(out) >= limit {
				return out
			}
			out = append(out, t)
		}
	}
	return out
}
