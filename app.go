package main

import (
	"context"
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tanpawarit/autoblog/agent/agents/gap"
	"github.com/tanpawarit/autoblog/agent/agents/maintenance"
	"github.com/tanpawarit/autoblog/agent/agents/orchestrator"
	reviewerx "github.com/tanpawarit/autoblog/agent/agents/reviewer"
	"github.com/tanpawarit/autoblog/agent/agents/writer"
	catalogx "github.com/tanpawarit/autoblog/agent/catalog"
	compliancex "github.com/tanpawarit/autoblog/agent/compliance"
	contractx "github.com/tanpawarit/autoblog/agent/contract"
	historyx "github.com/tanpawarit/autoblog/agent/history"
	llmx "github.com/tanpawarit/autoblog/agent/llm"
	schedulex "github.com/tanpawarit/autoblog/agent/schedule"
	configx "github.com/tanpawarit/autoblog/pkg/config"
	feedx "github.com/tanpawarit/autoblog/pkg/feed"
	retryx "github.com/tanpawarit/autoblog/pkg/retry"
	wordpressx "github.com/tanpawarit/autoblog/pkg/wordpress"
)

type AppConfig struct {
	ProductsCSV string `envconfig:"PRODUCTS_CSV" default:"products.csv"`
	ProductsDir string `envconfig:"PRODUCTS_DIR" default:"Products Data"`
	RulesPath   string `envconfig:"RULES_PATH" default:"config/compliance_rules.yaml"`
	// Seed fixes product selection and scheduling when non-zero.
	Seed uint64 `default:"0"`
	// AvoidTerms caps how many blocked terms are handed to the generator.
	AvoidTerms int `split_words:"true" default:"20"`
}

func (c AppConfig) rng() *rand.Rand {
	if c.Seed != 0 {
		return rand.New(rand.NewPCG(c.Seed, c.Seed^0x9e3779b97f4a7c15))
	}
	return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
}

func loadRules(path string) compliancex.RuleSet {
	rules, err := compliancex.Load(path)
	if err != nil {
		// Evaluate fails closed on an unloaded rule set; every draft is rejected.
		log.Error().Err(err).Str("path", path).Msg("compliance rules not loaded")
	}
	return rules
}

func openHistory(ctx context.Context) (historyx.Store, error) {
	cfg, err := configx.New[historyx.Config]("HISTORY")
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.Driver) == historyx.DriverUpstash {
		redisCfg, err := configx.New[historyx.UpstashRedisConfig]("UPSTASH_REDIS")
		if err != nil {
			return nil, err
		}
		return historyx.NewUpstashRedisStore(*redisCfg)
	}
	return historyx.OpenBun(ctx, *cfg)
}

func newWordPress() (*wordpressx.Client, error) {
	wpCfg, err := configx.New[wordpressx.Config]("WP")
	if err != nil {
		return nil, err
	}
	policy, err := configx.New[retryx.Policy]("RETRY")
	if err != nil {
		return nil, err
	}
	return wordpressx.NewClient(*wpCfg, wordpressx.WithRetryPolicy(*policy))
}

// pipeline holds everything a publish cycle needs. Close releases the
// history store.
type pipeline struct {
	orchestrator *orchestrator.Orchestrator
	models       *writer.Registry
	rules        compliancex.RuleSet
	blog         *wordpressx.Client
	history      historyx.Store
}

func (p *pipeline) Close() {
	if p.history != nil {
		if err := p.history.Close(); err != nil {
			log.Warn().Err(err).Msg("close history store")
		}
	}
}

// refusingPublisher stands in for WordPress in verify mode.
type refusingPublisher struct{}

func (refusingPublisher) Publish(context.Context, contractx.ScheduledArticle) (int64, error) {
	return 0, fmt.Errorf("%w: publishing is disabled in verify mode", contractx.ErrValidation)
}

func (refusingPublisher) Update(context.Context, contractx.PostUpdate) error {
	return fmt.Errorf("%w: publishing is disabled in verify mode", contractx.ErrValidation)
}

func buildPipeline(ctx context.Context, verifyOnly bool) (*pipeline, error) {
	appCfg, err := configx.New[AppConfig]("AUTOBLOG")
	if err != nil {
		return nil, err
	}
	llmCfg, err := configx.New[llmx.Config]("LLM")
	if err != nil {
		return nil, err
	}
	schedCfg, err := configx.New[schedulex.Config]("SCHEDULE")
	if err != nil {
		return nil, err
	}
	cycleCfg, err := configx.New[orchestrator.Config]("CYCLE")
	if err != nil {
		return nil, err
	}
	policy, err := configx.New[retryx.Policy]("RETRY")
	if err != nil {
		return nil, err
	}

	rng := appCfg.rng()
	catalog, err := catalogx.New(
		catalogx.NewCSVSource(appCfg.ProductsCSV),
		catalogx.NewTextDirSource(appCfg.ProductsDir),
		catalogx.WithRand(rng),
	)
	if err != nil {
		return nil, err
	}
	scheduler, err := schedulex.New(*schedCfg, rng)
	if err != nil {
		return nil, err
	}
	models, err := writer.NewRegistry(ctx, *llmCfg)
	if err != nil {
		return nil, err
	}

	rules := loadRules(appCfg.RulesPath)
	cycleCfg.Retry = *policy
	cycleCfg.Avoid = mergeTerms(cycleCfg.Avoid, rules.BlockedTerms(appCfg.AvoidTerms))
	cycleCfg.Allowed = mergeTerms(cycleCfg.Allowed, rules.Allowed)

	p := &pipeline{rules: rules, models: models}
	deps := orchestrator.Deps{
		Catalog:   catalog,
		Models:    models,
		Reviewer:  reviewerx.New(rules),
		Scheduler: scheduler,
		Publisher: refusingPublisher{},
	}
	if !verifyOnly {
		blog, err := newWordPress()
		if err != nil {
			return nil, err
		}
		history, err := openHistory(ctx)
		if err != nil {
			return nil, err
		}
		p.blog, p.history = blog, history
		deps.Publisher, deps.History = blog, history
	}

	o, err := orchestrator.New(deps, *cycleCfg)
	if err != nil {
		p.Close()
		return nil, err
	}
	p.orchestrator = o
	return p, nil
}

func buildMaintenance(blog *wordpressx.Client, rules compliancex.RuleSet, dryRun bool, limit int) (*maintenance.Service, error) {
	cfg, err := configx.New[maintenance.Config]("MAINTENANCE")
	if err != nil {
		return nil, err
	}
	cfg.DryRun = cfg.DryRun || dryRun
	if limit > 0 {
		cfg.Limit = limit
	}
	return maintenance.New(blog, blog, rules, *cfg)
}

// buildPlanner wires the content gap planner onto the pipeline's blog and
// analyst model. feeds overrides GAP_FEEDS when set.
func buildPlanner(p *pipeline, feeds []string) (*gap.Planner, error) {
	cfg, err := configx.New[gap.Config]("GAP")
	if err != nil {
		return nil, err
	}
	if len(feeds) > 0 {
		cfg.Feeds = feeds
	}
	policy, err := configx.New[retryx.Policy]("RETRY")
	if err != nil {
		return nil, err
	}
	reader := feedx.NewReader(feedx.WithRetryPolicy(*policy))
	return gap.New(p.blog, reader, p.models.Analyst(), *cfg)
}

func mergeTerms(a, b []string) []string {
	out := make([]string, 0, len(a)+len(b))
	for _, t := range slices.Concat(a, b) {
		t = strings.TrimSpace(t)
		if t != "" && !slices.Contains(out, t) {
			out = append(out, t)
		}
	}
	return out
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
