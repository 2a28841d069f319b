package maintenance

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	compliancex "github.com/tanpawarit/autoblog/agent/compliance"
	contractx "github.com/tanpawarit/autoblog/agent/contract"
	"golang.org/x/sync/errgroup"
)

var ErrMissingDep = errors.New("maintenance dependency is missing")

type Config struct {
	Limit         int  `default:"20"`
	Workers       int  `default:"4"`
	LinkThreshold int  `split_words:"true" default:"2"`
	DryRun        bool `split_words:"true"`
}

// PostReport is what happened to one post.
type PostReport struct {
	PostID  int64                          `json:"post_id"`
	Title   string                         `json:"title"`
	Applied []contractx.MaintenanceFinding `json:"applied,omitempty"`
	Dropped []contractx.MaintenanceFinding `json:"dropped,omitempty"`
	Updated bool                           `json:"updated"`
	Err     string                         `json:"error,omitempty"`
}

type Report struct {
	DryRun  bool         `json:"dry_run"`
	Audited int          `json:"audited"`
	Updated int          `json:"updated"`
	Failed  int          `json:"failed"`
	Posts   []PostReport `json:"posts"`
}

// Service audits recently published posts and pushes corrections back
// through the publisher. It only ever updates post content.
type Service struct {
	source    contractx.PostSource
	publisher contractx.Publisher
	rules     compliancex.RuleSet
	cfg       Config
}

func New(source contractx.PostSource, publisher contractx.Publisher, rules compliancex.RuleSet, cfg Config) (*Service, error) {
	if source == nil {
		return nil, fmt.Errorf("%w: post source", ErrMissingDep)
	}
	if publisher == nil && !cfg.DryRun {
		return nil, fmt.Errorf("%w: publisher", ErrMissingDep)
	}
	if cfg.Limit <= 0 {
		cfg.Limit = 20
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return &Service{source: source, publisher: publisher, rules: rules, cfg: cfg}, nil
}

// Run audits up to Limit recent posts on a bounded pool of workers. Per-post
// update failures are reported and joined into the returned error; they do
// not stop the other posts.
func (s *Service) Run(ctx context.Context) (Report, error) {
	logger := log.Ctx(ctx)

	posts, err := s.source.ListPosts(ctx, s.cfg.Limit)
	if err != nil {
		return Report{DryRun: s.cfg.DryRun}, fmt.Errorf("list posts: %w", err)
	}
	logger.Info().Int("posts", len(posts)).Bool("dry_run", s.cfg.DryRun).Msg("maintenance cycle started")

	env := Env{Rules: s.rules, Posts: posts, LinkThreshold: s.cfg.LinkThreshold}
	reports := make([]PostReport, len(posts))

	var (
		mu   sync.Mutex
		errs []error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers)
	for i, post := range posts {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rep, err := s.maintain(gctx, post, env)
			reports[i] = rep
			if err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Report{DryRun: s.cfg.DryRun, Posts: reports}, err
	}

	report := Report{DryRun: s.cfg.DryRun, Audited: len(posts), Posts: reports}
	for _, r := range reports {
		if r.Updated {
			report.Updated++
		}
		if r.Err != "" {
			report.Failed++
		}
	}
	logger.Info().Int("audited", report.Audited).Int("updated", report.Updated).Int("failed", report.Failed).Msg("maintenance cycle finished")
	return report, errors.Join(errs...)
}

func (s *Service) maintain(ctx context.Context, post contractx.Post, env Env) (PostReport, error) {
	rep := PostReport{PostID: post.ID, Title: post.Title}

	findings := AuditPost(ctx, post, env)
	if len(findings) == 0 {
		return rep, nil
	}

	plan := ApplyFindings(post.Body, findings)
	rep.Applied, rep.Dropped = plan.Applied, plan.Dropped
	if !plan.Changed() || plan.Body == post.Body {
		return rep, nil
	}

	logger := log.Ctx(ctx).With().Int64("post_id", post.ID).Logger()
	if s.cfg.DryRun {
		logger.Info().Int("findings", len(plan.Applied)).Msg("dry run, post not updated")
		return rep, nil
	}

	if err := s.publisher.Update(ctx, contractx.PostUpdate{PostID: post.ID, Body: plan.Body}); err != nil {
		rep.Err = err.Error()
		logger.Error().Err(err).Msg("post update failed")
		return rep, fmt.Errorf("update post %d: %w", post.ID, err)
	}
	rep.Updated = true
	logger.Info().Int("applied", len(plan.Applied)).Int("dropped", len(plan.Dropped)).Msg("post updated")
	return rep, nil
}
