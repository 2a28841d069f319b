package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/compose"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/autoblog/agent/contract"
	historyx "github.com/tanpawarit/autoblog/agent/history"
	nodex "github.com/tanpawarit/autoblog/agent/nodes"
	retryx "github.com/tanpawarit/autoblog/pkg/retry"
)

var (
	ErrInvalidCycle = nodex.ErrInvalidCycle
	ErrMissingDep   = errors.New("orchestrator dependency is missing")
)

// Deps are the collaborators a publish cycle runs against.
type Deps struct {
	Catalog   contractx.ProductCatalog
	Models    contractx.Registry
	Reviewer  contractx.Reviewer
	Scheduler contractx.Scheduler
	Publisher contractx.Publisher
	// History is optional. Without it the once-a-day guard is off.
	History historyx.Store
}

type Config struct {
	MaxRevisions   int           `split_words:"true" default:"2"`
	PublishTimeout time.Duration `split_words:"true" default:"60s"`
	Timezone       string        `default:"Asia/Bangkok"`
	Avoid          []string
	Allowed        []string
	CTA            string `envconfig:"CTA"`

	Retry    retryx.Policy  `ignored:"true"`
	Location *time.Location `ignored:"true"`
}

// RunOptions tweak a single cycle.
type RunOptions struct {
	DryRun  bool
	Force   bool
	Product string
	// Topic, when set, steers the article toward a content gap.
	Topic *contractx.ContentGap
}

type Orchestrator struct {
	catalog   contractx.ProductCatalog
	models    contractx.Registry
	reviewer  contractx.Reviewer
	scheduler contractx.Scheduler
	publisher contractx.Publisher
	history   historyx.Store

	cfg   Config
	hints nodex.Hints

	graphRunner compose.Runnable[nodex.GraphInput, nodex.GraphOutput]

	now   func() time.Time
	newID func() string
}

type Option func(*Orchestrator)

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

func WithIDGenerator(fn func() string) Option {
	return func(o *Orchestrator) {
		if fn != nil {
			o.newID = fn
		}
	}
}

func New(deps Deps, cfg Config, opts ...Option) (*Orchestrator, error) {
	switch {
	case deps.Catalog == nil:
		return nil, fmt.Errorf("%w: product catalog", ErrMissingDep)
	case deps.Models == nil:
		return nil, fmt.Errorf("%w: model registry", ErrMissingDep)
	case deps.Reviewer == nil:
		return nil, fmt.Errorf("%w: reviewer", ErrMissingDep)
	case deps.Scheduler == nil:
		return nil, fmt.Errorf("%w: scheduler", ErrMissingDep)
	case deps.Publisher == nil:
		return nil, fmt.Errorf("%w: publisher", ErrMissingDep)
	}

	if cfg.MaxRevisions < 0 {
		return nil, fmt.Errorf("%w: max revisions must not be negative", contractx.ErrValidation)
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = retryx.DefaultPolicy
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
		if tz := strings.TrimSpace(cfg.Timezone); tz != "" {
			loc, err := time.LoadLocation(tz)
			if err != nil {
				return nil, fmt.Errorf("%w: timezone %q: %v", contractx.ErrValidation, tz, err)
			}
			cfg.Location = loc
		}
	}

	o := &Orchestrator{
		catalog:   deps.Catalog,
		models:    deps.Models,
		reviewer:  deps.Reviewer,
		scheduler: deps.Scheduler,
		publisher: deps.Publisher,
		history:   deps.History,
		cfg:       cfg,
		hints: nodex.Hints{
			Ratio:   contractx.DefaultRatio,
			Avoid:   cfg.Avoid,
			Allowed: cfg.Allowed,
			CTA:     cfg.CTA,
		},
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(o)
	}

	graphRunner, err := o.compilePublishCycleGraph(context.Background())
	if err != nil {
		return nil, err
	}
	o.graphRunner = graphRunner

	return o, nil
}

// RunCycle runs one publish cycle end to end. A draft that never passes
// review comes back as a *contract.CycleError wrapping ErrComplianceFailure,
// together with the partial result.
func (o *Orchestrator) RunCycle(ctx context.Context, opts RunOptions) (contractx.CycleResult, error) {
	cycleID := o.newID()
	logger := log.Ctx(ctx).With().Str("cycle_id", cycleID).Logger()
	ctx = logger.WithContext(ctx)

	logger.Info().Bool("dry_run", opts.DryRun).Str("product", opts.Product).Msg("publish cycle started")

	out, err := o.graphRunner.Invoke(ctx, nodex.GraphInput{
		CycleID:      cycleID,
		ProductQuery: opts.Product,
		DryRun:       opts.DryRun,
		Force:        opts.Force,
		Topic:        opts.Topic,
	})
	if err != nil {
		if !errors.Is(err, contractx.ErrAlreadyPublished) {
			logger.Error().Err(err).Msg("publish cycle failed")
		}
		return contractx.CycleResult{CycleID: cycleID}, err
	}

	res := out.Result
	if res.Outcome == contractx.OutcomeRejected {
		draft := res.Draft
		return res, &contractx.CycleError{
			CycleID: cycleID,
			Stage:   nodex.NodeReview,
			Verdict: res.Verdict,
			Draft:   &draft,
			Err: fmt.Errorf("%w: %d blocking violation(s) after %d revision(s)",
				contractx.ErrComplianceFailure, len(res.Verdict.Blocking()), res.Draft.Revision),
		}
	}

	logger.Info().Str("outcome", string(res.Outcome)).Int64("post_id", res.PostID).Msg("publish cycle finished")
	return res, nil
}
