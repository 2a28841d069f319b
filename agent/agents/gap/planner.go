package gap

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/autoblog/agent/contract"
	"golang.org/x/sync/errgroup"
)

var (
	ErrMissingDep = errors.New("gap planner dependency is missing")
	// ErrNoGap means the analysis ran but proposed nothing usable.
	ErrNoGap = errors.New("no content gap found")
	// ErrNoCompetitorItems means every feed failed or came back empty.
	ErrNoCompetitorItems = errors.New("no competitor articles")
)

type Config struct {
	Feeds     []string `envconfig:"FEEDS" default:"https://feeds.feedburner.com/ThaiSkincareNews,https://www.cosmeticsdesign-asia.com/rss/feed/645163,https://www.vogue.co.th/beauty/rss"`
	OwnTitles int      `split_words:"true" default:"50"`
	Workers   int      `default:"4"`
}

// Plan is the outcome of one content gap analysis.
type Plan struct {
	Gaps        []contractx.ContentGap `json:"gaps"`
	OwnTitles   int                    `json:"own_titles"`
	Competitor  int                    `json:"competitor_items"`
	FailedFeeds []string               `json:"failed_feeds,omitempty"`
}

// Best returns the top ranked gap.
func (p Plan) Best() (contractx.ContentGap, bool) {
	if len(p.Gaps) == 0 {
		return contractx.ContentGap{}, false
	}
	return p.Gaps[0], true
}

// Planner finds topics that competitor feeds cover and the blog does not.
type Planner struct {
	posts    contractx.PostSource
	feeds    contractx.FeedFetcher
	analyzer contractx.GapAnalyzer
	cfg      Config
}

func New(posts contractx.PostSource, feeds contractx.FeedFetcher, analyzer contractx.GapAnalyzer, cfg Config) (*Planner, error) {
	switch {
	case posts == nil:
		return nil, fmt.Errorf("%w: post source", ErrMissingDep)
	case feeds == nil:
		return nil, fmt.Errorf("%w: feed fetcher", ErrMissingDep)
	case analyzer == nil:
		return nil, fmt.Errorf("%w: gap analyzer", ErrMissingDep)
	}
	if cfg.OwnTitles <= 0 {
		cfg.OwnTitles = 50
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return &Planner{posts: posts, feeds: feeds, analyzer: analyzer, cfg: cfg}, nil
}

// Plan reads the blog's recent titles and the competitor feeds, then asks the
// analyzer for gaps. A failed feed is skipped; the plan fails only when no
// competitor article is left. A failed post listing degrades to an empty
// title list.
func (p *Planner) Plan(ctx context.Context) (Plan, error) {
	logger := log.Ctx(ctx)

	own := p.ownTitles(ctx)
	items, failed, err := p.fetchAll(ctx)
	plan := Plan{OwnTitles: len(own), Competitor: len(items), FailedFeeds: failed}
	if err != nil {
		return plan, err
	}
	if len(items) == 0 {
		return plan, fmt.Errorf("%w: %d feed(s) failed", ErrNoCompetitorItems, len(failed))
	}

	gaps, err := p.analyzer.Analyze(ctx, own, items)
	if err != nil {
		return plan, fmt.Errorf("analyze gaps: %w", err)
	}
	if len(gaps) == 0 {
		return plan, ErrNoGap
	}
	plan.Gaps = gaps
	logger.Info().Int("own_titles", plan.OwnTitles).Int("competitor_items", plan.Competitor).
		Int("gaps", len(gaps)).Str("topic", gaps[0].ProposedTitle).Msg("content gap analysis finished")
	return plan, nil
}

func (p *Planner) ownTitles(ctx context.Context) []string {
	posts, err := p.posts.ListPosts(ctx, p.cfg.OwnTitles)
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("own posts unavailable, analysing without them")
		return nil
	}
	titles := make([]string, 0, len(posts))
	for _, post := range posts {
		if t := strings.TrimSpace(post.Title); t != "" {
			titles = append(titles, t)
		}
	}
	return titles
}

// fetchAll reads the feeds on a bounded pool. Items keep feed order and
// repeated titles are dropped.
func (p *Planner) fetchAll(ctx context.Context) ([]contractx.FeedItem, []string, error) {
	perFeed := make([][]contractx.FeedItem, len(p.cfg.Feeds))
	var (
		mu     sync.Mutex
		failed []string
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Workers)
	for i, url := range p.cfg.Feeds {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			items, err := p.feeds.Fetch(gctx, url)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				log.Ctx(ctx).Warn().Err(err).Str("feed", url).Msg("competitor feed skipped")
				mu.Lock()
				failed = append(failed, url)
				mu.Unlock()
				return nil
			}
			perFeed[i] = items
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, failed, err
	}

	seen := make(map[string]struct{})
	var out []contractx.FeedItem
	for _, items := range perFeed {
		for _, it := range items {
			key := strings.ToLower(strings.TrimSpace(it.Title))
			if key == "" {
				continue
			}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, it)
		}
	}
	return out, failed, nil
}
