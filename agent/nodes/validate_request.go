package orchestratornode

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/autoblog/agent/contract"
	historyx "github.com/tanpawarit/autoblog/agent/history"
)

var (
	ErrInvalidCycle = errors.New("cycle id is empty")
	ErrNilState     = errors.New("graph state is nil")
)

type GraphInput struct {
	CycleID      string
	ProductQuery string
	DryRun       bool
	Force        bool
	Topic        *contractx.ContentGap
}

type GraphOutput struct {
	Result contractx.CycleResult
}

// GraphState is the explicit state threaded through a publish cycle.
type GraphState struct {
	CycleID      string
	Now          time.Time
	Day          string
	DryRun       bool
	ProductQuery string
	Topic        *contractx.ContentGap

	Product  contractx.Product
	Research contractx.ResearchBundle
	Draft    contractx.Draft
	Verdict  contractx.Verdict
	Outcome  contractx.CycleOutcome

	Article contractx.ScheduledArticle
	PostID  int64
}

// ValidateRequest starts a cycle. Unless the run is a dry run or forced, it
// refuses to start when history shows a publish for the same day.
func ValidateRequest(
	ctx context.Context,
	in GraphInput,
	nowFn func() time.Time,
	loc *time.Location,
	history historyx.Store,
) (*GraphState, error) {
	cycleID := strings.TrimSpace(in.CycleID)
	if cycleID == "" {
		return nil, ErrInvalidCycle
	}

	now := nowFn().UTC()
	st := &GraphState{
		CycleID:      cycleID,
		Now:          now,
		Day:          historyx.Day(now, loc),
		DryRun:       in.DryRun,
		ProductQuery: strings.TrimSpace(in.ProductQuery),
		Topic:        in.Topic,
	}

	if in.DryRun || in.Force || history == nil {
		return st, nil
	}

	published, last, err := historyx.PublishedOn(ctx, history, st.Day)
	if err != nil {
		return nil, fmt.Errorf("read publish history: %w", err)
	}
	if published {
		log.Ctx(ctx).Info().Str("day", st.Day).Int64("post_id", last.PostID).Msg("already published today, skipping cycle")
		return nil, fmt.Errorf("%w: day=%s post_id=%d", contractx.ErrAlreadyPublished, st.Day, last.PostID)
	}
	return st, nil
}
