package contract

import (
	"context"
	"time"
)

type CitationLookup interface {
	Lookup(ctx context.Context, product Product) (ResearchBundle, error)
}

type GenerateRequest struct {
	Product  Product        `json:"product"`
	Research ResearchBundle `json:"research"`
	Ratio    ContentRatio   `json:"ratio"`
	Previous *Draft         `json:"previous,omitempty"`
	Feedback []Violation    `json:"feedback,omitempty"`
	Avoid    []string       `json:"avoid,omitempty"`
	Allowed  []string       `json:"allowed,omitempty"`
	CTA      string         `json:"cta,omitempty"`
	Topic    *ContentGap    `json:"topic,omitempty"`
}

type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (Draft, error)
}

// GapAnalyzer compares the blog's own titles with competitor feed items and
// ranks the topics the blog is missing, best first.
type GapAnalyzer interface {
	Analyze(ctx context.Context, own []string, competitor []FeedItem) ([]ContentGap, error)
}

type FeedFetcher interface {
	Fetch(ctx context.Context, feedURL string) ([]FeedItem, error)
}

type Reviewer interface {
	Review(d Draft) Verdict
}

type Registry interface {
	Researcher() CitationLookup
	Generator() Generator
}

type Publisher interface {
	Publish(ctx context.Context, article ScheduledArticle) (int64, error)
	Update(ctx context.Context, update PostUpdate) error
}

type PostSource interface {
	ListPosts(ctx context.Context, limit int) ([]Post, error)
}

type ProductCatalog interface {
	SelectProduct(ctx context.Context) (Product, error)
	Find(ctx context.Context, query string) (Product, error)
}

type Scheduler interface {
	Schedule(now time.Time) time.Time
}
