package writer

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/autoblog/agent/contract"
)

// withFallback runs primary and, when it fails on the model side, secondary.
// Validation errors and cancellation are returned as they are.
func withFallback[T any](ctx context.Context, op string, primary, secondary func(context.Context) (T, error)) (T, error) {
	v, err := primary(ctx)
	if err == nil || secondary == nil || ctx.Err() != nil || !errors.Is(err, contractx.ErrModelInvoke) {
		return v, err
	}
	log.Ctx(ctx).Warn().Err(err).Str("op", op).Msg("primary model failed, trying fallback model")

	v, ferr := secondary(ctx)
	if ferr != nil {
		return v, errors.Join(err, ferr)
	}
	return v, nil
}

type fallbackLookup struct {
	primary, secondary contractx.CitationLookup
}

func (f fallbackLookup) Lookup(ctx context.Context, p contractx.Product) (contractx.ResearchBundle, error) {
	return withFallback(ctx, "research",
		func(ctx context.Context) (contractx.ResearchBundle, error) { return f.primary.Lookup(ctx, p) },
		func(ctx context.Context) (contractx.ResearchBundle, error) { return f.secondary.Lookup(ctx, p) },
	)
}

type fallbackGenerator struct {
	primary, secondary contractx.Generator
}

func (f fallbackGenerator) Generate(ctx context.Context, req contractx.GenerateRequest) (contractx.Draft, error) {
	return withFallback(ctx, "generate",
		func(ctx context.Context) (contractx.Draft, error) { return f.primary.Generate(ctx, req) },
		func(ctx context.Context) (contractx.Draft, error) { return f.secondary.Generate(ctx, req) },
	)
}

type fallbackAnalyst struct {
	primary, secondary contractx.GapAnalyzer
}

func (f fallbackAnalyst) Analyze(ctx context.Context, own []string, items []contractx.FeedItem) ([]contractx.ContentGap, error) {
	return withFallback(ctx, "analyze",
		func(ctx context.Context) ([]contractx.ContentGap, error) { return f.primary.Analyze(ctx, own, items) },
		func(ctx context.Context) ([]contractx.ContentGap, error) { return f.secondary.Analyze(ctx, own, items) },
	)
}
