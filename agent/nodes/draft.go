package orchestratornode

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/autoblog/agent/contract"
	retryx "github.com/tanpawarit/autoblog/pkg/retry"
)

// Hints are the generation inputs that come from configuration rather than
// from the cycle.
type Hints struct {
	Ratio   contractx.ContentRatio
	Avoid   []string
	Allowed []string
	CTA     string
}

func Draft(
	ctx context.Context,
	in *GraphState,
	gen contractx.Generator,
	policy retryx.Policy,
	hints Hints,
) (*GraphState, error) {
	if in == nil {
		return nil, ErrNilState
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	draft, err := generate(ctx, gen, policy, buildRequest(in, hints, nil, nil))
	if err != nil {
		return nil, err
	}
	draft.Revision = 0

	in.Draft = draft
	log.Ctx(ctx).Info().Str("title", draft.Title).Msg("draft generated")
	return in, nil
}

func buildRequest(in *GraphState, hints Hints, prev *contractx.Draft, feedback []contractx.Violation) contractx.GenerateRequest {
	ratio := hints.Ratio
	if ratio == (contractx.ContentRatio{}) {
		ratio = contractx.DefaultRatio
	}
	return contractx.GenerateRequest{
		Product:  in.Product,
		Research: in.Research,
		Ratio:    ratio,
		Previous: prev,
		Feedback: feedback,
		Avoid:    hints.Avoid,
		Allowed:  hints.Allowed,
		CTA:      hints.CTA,
		Topic:    in.Topic,
	}
}

func generate(
	ctx context.Context,
	gen contractx.Generator,
	policy retryx.Policy,
	req contractx.GenerateRequest,
) (contractx.Draft, error) {
	draft, err := retryx.Do(ctx, policy, "generator.generate", func(ctx context.Context) (contractx.Draft, error) {
		return gen.Generate(ctx, req)
	})
	if err != nil {
		return contractx.Draft{}, fmt.Errorf("generate draft for %s: %w", req.Product.ID, err)
	}
	if draft.ProductID == "" {
		draft.ProductID = req.Product.ID
	}
	if draft.Ratio == (contractx.ContentRatio{}) {
		draft.Ratio = req.Ratio
	}
	return draft, nil
}
