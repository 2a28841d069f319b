package orchestratornode

import (
	"context"

	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/autoblog/agent/contract"
	retryx "github.com/tanpawarit/autoblog/pkg/retry"
)

// Research looks up citations for the selected product. Any failure other
// than cancellation degrades to an empty bundle.
func Research(
	ctx context.Context,
	in *GraphState,
	lookup contractx.CitationLookup,
	policy retryx.Policy,
) (*GraphState, error) {
	if in == nil {
		return nil, ErrNilState
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	bundle, err := retryx.Do(ctx, policy, "research.lookup", func(ctx context.Context) (contractx.ResearchBundle, error) {
		return lookup.Lookup(ctx, in.Product)
	})
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("product_id", in.Product.ID).Msg("citation lookup failed, continuing without research")
		bundle = contractx.ResearchBundle{}
	}
	bundle.ProductID = in.Product.ID

	in.Research = bundle
	log.Ctx(ctx).Debug().Int("citations", len(bundle.Citations)).Msg("research done")
	return in, nil
}
