package contract

import (
	"fmt"
	"strings"
	"time"
)

type AgentType string

const (
	AgentTypeResearcher AgentType = "researcher"
	AgentTypeGenerator  AgentType = "generator"
	AgentTypeAnalyst    AgentType = "analyst"
)

type ProductSource string

const (
	ProductSourceCSV  ProductSource = "csv"
	ProductSourceText ProductSource = "text"
)

type Product struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Keywords    []string      `json:"keywords,omitempty"`
	Source      ProductSource `json:"source"`
}

type Citation struct {
	Source    string `json:"source"`
	Claim     string `json:"claim"`
	Reference string `json:"reference,omitempty"`
}

// ResearchBundle is the output of citation lookup. An empty bundle is valid.
type ResearchBundle struct {
	ProductID string     `json:"product_id"`
	Citations []Citation `json:"citations"`
	Topics    []string   `json:"topics,omitempty"`
	Summary   string     `json:"summary,omitempty"`
}

func (b ResearchBundle) Empty() bool {
	return len(b.Citations) == 0
}

// FeedItem is one entry of a competitor feed.
type FeedItem struct {
	Source      string    `json:"source"`
	Title       string    `json:"title"`
	Link        string    `json:"link,omitempty"`
	Summary     string    `json:"summary,omitempty"`
	PublishedAt time.Time `json:"published_at,omitempty"`
}

// ContentGap is a topic competitors cover that the blog does not.
type ContentGap struct {
	ProposedTitle string   `json:"proposed_title"`
	Angle         string   `json:"angle,omitempty"`
	Keywords      []string `json:"keywords,omitempty"`
	Reference     string   `json:"competitor_reference,omitempty"`
}

// ContentRatio is the educational/promotional split requested from the generator.
type ContentRatio struct {
	Educational int `json:"educational"`
	Promotional int `json:"promotional"`
}

var DefaultRatio = ContentRatio{Educational: 80, Promotional: 20}

type Draft struct {
	ProductID       string       `json:"product_id"`
	Title           string       `json:"title"`
	Body            string       `json:"body"`
	Excerpt         string       `json:"excerpt,omitempty"`
	Slug            string       `json:"slug,omitempty"`
	SEOKeyphrase    string       `json:"seo_keyphrase,omitempty"`
	MetaDescription string       `json:"meta_description,omitempty"`
	Tags            []string     `json:"tags,omitempty"`
	FAQSchemaHTML   string       `json:"faq_schema_html,omitempty"`
	Ratio           ContentRatio `json:"ratio"`
	Revision        int          `json:"revision"`
}

// Content is the post body as published: the article followed by the FAQ
// schema block, when there is one.
func (d Draft) Content() string {
	faq := strings.TrimSpace(d.FAQSchemaHTML)
	if faq == "" {
		return d.Body
	}
	return d.Body + "\n\n" + faq
}

// ReviewText is the text the reviewer evaluates. It covers everything that
// gets published, the FAQ block included.
func (d Draft) ReviewText() string {
	parts := make([]string, 0, 5)
	for _, s := range []string{d.Title, d.Body, d.FAQSchemaHTML, d.Excerpt, d.MetaDescription} {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "\n\n")
}

type Severity string

const (
	SeverityBlock Severity = "block"
	SeverityWarn  Severity = "warn"
)

type RuleCategory string

const (
	CategoryCompliance RuleCategory = "compliance"
	CategoryTone       RuleCategory = "tone"
)

type Violation struct {
	RuleID      string       `json:"rule_id"`
	Category    RuleCategory `json:"category"`
	Severity    Severity     `json:"severity"`
	Regulation  string       `json:"regulation,omitempty"`
	Match       string       `json:"match"`
	Start       int          `json:"start"`
	End         int          `json:"end"`
	Reason      string       `json:"reason,omitempty"`
	Replacement string       `json:"replacement,omitempty"`
}

func (v Violation) String() string {
	return fmt.Sprintf("%s[%s] %q", v.RuleID, v.Severity, v.Match)
}

type Verdict struct {
	Passed      bool        `json:"passed"`
	RuleVersion string      `json:"rule_version,omitempty"`
	Violations  []Violation `json:"violations,omitempty"`
}

func (v Verdict) Blocking() []Violation {
	return v.filter(SeverityBlock)
}

func (v Verdict) Warnings() []Violation {
	return v.filter(SeverityWarn)
}

func (v Verdict) filter(sev Severity) []Violation {
	out := make([]Violation, 0, len(v.Violations))
	for _, vio := range v.Violations {
		if vio.Severity == sev {
			out = append(out, vio)
		}
	}
	return out
}

// MergeVerdicts combines verdicts in order. The result passes only if all pass.
func MergeVerdicts(verdicts ...Verdict) Verdict {
	out := Verdict{Passed: true}
	for _, v := range verdicts {
		if !v.Passed {
			out.Passed = false
		}
		if out.RuleVersion == "" {
			out.RuleVersion = v.RuleVersion
		}
		out.Violations = append(out.Violations, v.Violations...)
	}
	return out
}

type PostStatus string

const PostStatusFuture PostStatus = "future"

// ScheduledArticle is an approved draft with a publish time. Build it with
// NewScheduledArticle.
type ScheduledArticle struct {
	Draft     Draft      `json:"draft"`
	Verdict   Verdict    `json:"verdict"`
	PublishAt time.Time  `json:"publish_at"`
	Status    PostStatus `json:"status"`
}

// Publish times must fall within this window after the moment of scheduling.
const (
	MinPublishOffset = 10 * time.Minute
	MaxPublishOffset = 120 * time.Minute
)

// NewScheduledArticle pairs an approved draft with publishAt, which must lie
// in [now+MinPublishOffset, now+MaxPublishOffset].
func NewScheduledArticle(d Draft, v Verdict, now, publishAt time.Time) (ScheduledArticle, error) {
	if !v.Passed {
		return ScheduledArticle{}, fmt.Errorf("%w: product=%s revision=%d", ErrUnverifiedDraft, d.ProductID, d.Revision)
	}
	if publishAt.IsZero() {
		return ScheduledArticle{}, fmt.Errorf("%w: publish time is zero", ErrInvalidSchedule)
	}
	if offset := publishAt.Sub(now); offset < MinPublishOffset || offset > MaxPublishOffset {
		return ScheduledArticle{}, fmt.Errorf("%w: offset %s outside [%s, %s]",
			ErrInvalidSchedule, offset, MinPublishOffset, MaxPublishOffset)
	}
	return ScheduledArticle{
		Draft:     d,
		Verdict:   v,
		PublishAt: publishAt,
		Status:    PostStatusFuture,
	}, nil
}

// Post is a published post. Body holds the stored markup (block comments and
// shortcodes intact) when the source can provide it.
type Post struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	Link        string    `json:"link"`
	Keywords    []string  `json:"keywords,omitempty"`
	PublishedAt time.Time `json:"published_at"`
}

type PostUpdate struct {
	PostID int64             `json:"post_id"`
	Body   string            `json:"body"`
	Meta   map[string]string `json:"meta,omitempty"`
}

type FindingCategory string

const (
	FindingCompliance   FindingCategory = "compliance"
	FindingTone         FindingCategory = "tone"
	FindingFactCheck    FindingCategory = "fact_check"
	FindingInternalLink FindingCategory = "internal_link"
)

// Precedence orders categories when findings conflict. Lower wins.
func (c FindingCategory) Precedence() int {
	switch c {
	case FindingCompliance:
		return 0
	case FindingTone:
		return 1
	case FindingFactCheck:
		return 2
	case FindingInternalLink:
		return 3
	default:
		return 4
	}
}

type MaintenanceFinding struct {
	PostID     int64           `json:"post_id"`
	Category   FindingCategory `json:"category"`
	RuleID     string          `json:"rule_id,omitempty"`
	Original   string          `json:"original"`
	Correction string          `json:"correction"`
	Start      int             `json:"start"`
	End        int             `json:"end"`
	Reason     string          `json:"reason,omitempty"`
}

type CycleOutcome string

const (
	OutcomeApproved  CycleOutcome = "approved"
	OutcomeRejected  CycleOutcome = "rejected"
	OutcomePublished CycleOutcome = "published"
)

type CycleResult struct {
	CycleID   string         `json:"cycle_id"`
	Outcome   CycleOutcome   `json:"outcome"`
	Product   Product        `json:"product"`
	Draft     Draft          `json:"draft"`
	Verdict   Verdict        `json:"verdict"`
	Research  ResearchBundle `json:"research"`
	PublishAt time.Time      `json:"publish_at,omitempty"`
	PostID    int64          `json:"post_id,omitempty"`
	DryRun    bool           `json:"dry_run"`
	Topic     *ContentGap    `json:"topic,omitempty"`
}
