package orchestratornode

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/autoblog/agent/contract"
	historyx "github.com/tanpawarit/autoblog/agent/history"
)

// Publish hands the scheduled article to the gateway and records it. Once the
// call starts it is not cancelled with the cycle, only bounded by timeout, so
// a post that went live is always recorded.
func Publish(
	ctx context.Context,
	in *GraphState,
	publisher contractx.Publisher,
	history historyx.Store,
	timeout time.Duration,
) (GraphOutput, error) {
	if in == nil {
		return GraphOutput{}, ErrNilState
	}
	if in.DryRun {
		log.Ctx(ctx).Info().Msg("dry run, not publishing")
		return finalize(in, contractx.OutcomeApproved), nil
	}
	if err := ctx.Err(); err != nil {
		return GraphOutput{}, err
	}

	pctx := context.WithoutCancel(ctx)
	if timeout > 0 {
		var cancel context.CancelFunc
		pctx, cancel = context.WithTimeout(pctx, timeout)
		defer cancel()
	}

	postID, err := publisher.Publish(pctx, in.Article)
	if err != nil {
		return GraphOutput{}, err
	}
	in.PostID = postID

	if history != nil {
		entry := historyx.Entry{
			CycleID:     in.CycleID,
			ProductID:   in.Product.ID,
			PostID:      postID,
			Title:       in.Draft.Title,
			Day:         in.Day,
			PublishAt:   in.Article.PublishAt,
			PublishedAt: in.Now,
		}
		if err := history.Record(pctx, entry); err != nil {
			log.Ctx(ctx).Error().Err(err).Int64("post_id", postID).Msg("post published but history write failed")
		}
	}

	log.Ctx(ctx).Info().Int64("post_id", postID).Time("publish_at", in.Article.PublishAt).Msg("article published")
	return finalize(in, contractx.OutcomePublished), nil
}
