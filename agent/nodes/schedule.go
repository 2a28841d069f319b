package orchestratornode

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/autoblog/agent/contract"
)

func Schedule(
	ctx context.Context,
	in *GraphState,
	scheduler contractx.Scheduler,
	nowFn func() time.Time,
) (*GraphState, error) {
	if in == nil {
		return nil, ErrNilState
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Offsets count from now, not from the cycle start in in.Now.
	now := nowFn().UTC()
	article, err := contractx.NewScheduledArticle(in.Draft, in.Verdict, now, scheduler.Schedule(now))
	if err != nil {
		return nil, err
	}
	in.Article = article
	log.Ctx(ctx).Info().Time("publish_at", article.PublishAt).Msg("article scheduled")
	return in, nil
}
