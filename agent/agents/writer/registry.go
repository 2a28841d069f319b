package writer

import (
	"context"
	"fmt"

	contractx "github.com/tanpawarit/autoblog/agent/contract"
	llmx "github.com/tanpawarit/autoblog/agent/llm"
	promptx "github.com/tanpawarit/autoblog/agent/prompt"
)

var _ contractx.Registry = (*Registry)(nil)

// Registry holds the model-backed agents. With a fallback model configured
// each agent retries a failed call on that model.
type Registry struct {
	researcher contractx.CitationLookup
	generator  contractx.Generator
	analyst    contractx.GapAnalyzer
}

func (r *Registry) Researcher() contractx.CitationLookup {
	return r.researcher
}

func (r *Registry) Generator() contractx.Generator {
	return r.generator
}

func (r *Registry) Analyst() contractx.GapAnalyzer {
	return r.analyst
}

func NewRegistry(ctx context.Context, cfg llmx.Config) (*Registry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	primary, err := buildAgents(ctx, cfg)
	if err != nil {
		return nil, err
	}
	fallbackCfg, ok := cfg.Fallback()
	if !ok {
		return primary, nil
	}
	secondary, err := buildAgents(ctx, fallbackCfg)
	if err != nil {
		return nil, fmt.Errorf("fallback model %s: %w", fallbackCfg.Model, err)
	}
	return withFallbackAgents(primary, secondary), nil
}

func withFallbackAgents(primary, secondary *Registry) *Registry {
	return &Registry{
		researcher: fallbackLookup{primary: primary.researcher, secondary: secondary.researcher},
		generator:  fallbackGenerator{primary: primary.generator, secondary: secondary.generator},
		analyst:    fallbackAnalyst{primary: primary.analyst, secondary: secondary.analyst},
	}
}

func buildAgents(ctx context.Context, cfg llmx.Config) (*Registry, error) {
	prompts := promptx.LoadPromptSet()

	researchModel, err := cfg.BuilderFor(contractx.AgentTypeResearcher).New(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: create researcher model: %v", contractx.ErrModelInvoke, err)
	}
	generatorModel, err := cfg.BuilderFor(contractx.AgentTypeGenerator).New(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: create generator model: %v", contractx.ErrModelInvoke, err)
	}
	analystModel, err := cfg.BuilderFor(contractx.AgentTypeAnalyst).New(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: create analyst model: %v", contractx.ErrModelInvoke, err)
	}

	researcher, err := newResearcher(ctx, researchModel, prompts.Researcher)
	if err != nil {
		return nil, err
	}
	generator, err := newGenerator(ctx, generatorModel, prompts.Generator)
	if err != nil {
		return nil, err
	}
	analyst, err := newAnalyst(ctx, analystModel, prompts.Analyst)
	if err != nil {
		return nil, err
	}

	return &Registry{
		researcher: researcher,
		generator:  generator,
		analyst:    analyst,
	}, nil
}
