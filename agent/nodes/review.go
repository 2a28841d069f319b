package orchestratornode

import (
	"context"

	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/autoblog/agent/contract"
	retryx "github.com/tanpawarit/autoblog/pkg/retry"
)

// Review runs the bounded review loop: review, and while the verdict fails
// and revisions remain, regenerate with the violations as feedback. It ends
// with Outcome set to approved or rejected.
func Review(
	ctx context.Context,
	in *GraphState,
	reviewer contractx.Reviewer,
	gen contractx.Generator,
	policy retryx.Policy,
	hints Hints,
	maxRevisions int,
) (*GraphState, error) {
	if in == nil {
		return nil, ErrNilState
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		in.Verdict = reviewer.Review(in.Draft)
		logger := log.Ctx(ctx).With().Int("revision", in.Draft.Revision).Int("violations", len(in.Verdict.Violations)).Logger()

		if in.Verdict.Passed {
			in.Outcome = contractx.OutcomeApproved
			logger.Info().Int("warnings", len(in.Verdict.Warnings())).Msg("draft approved")
			return in, nil
		}
		if !shouldRevise(in.Draft, in.Verdict, maxRevisions) {
			in.Outcome = contractx.OutcomeRejected
			logger.Warn().Msg("draft rejected, revisions exhausted")
			return in, nil
		}

		logger.Info().Msg("draft failed review, revising")
		prev := in.Draft
		next, err := generate(ctx, gen, policy, buildRequest(in, hints, &prev, in.Verdict.Violations))
		if err != nil {
			return nil, err
		}
		next.ProductID = prev.ProductID
		next.Revision = prev.Revision + 1
		in.Draft = next
	}
}
