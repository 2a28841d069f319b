package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/autoblog/agent/contract"
)

type Policy struct {
	MaxAttempts     int           `split_words:"true" default:"3"`
	InitialInterval time.Duration `split_words:"true" default:"1s"`
	MaxInterval     time.Duration `split_words:"true" default:"20s"`
	AttemptTimeout  time.Duration `split_words:"true" default:"90s"`

	// Transient overrides the retry classifier. Defaults to contract.IsTransient.
	Transient func(error) bool `ignored:"true"`
}

var DefaultPolicy = Policy{
	MaxAttempts:     3,
	InitialInterval: time.Second,
	MaxInterval:     20 * time.Second,
	AttemptTimeout:  90 * time.Second,
}

func (p Policy) normalized() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}
	if p.InitialInterval <= 0 {
		p.InitialInterval = DefaultPolicy.InitialInterval
	}
	if p.MaxInterval < p.InitialInterval {
		p.MaxInterval = p.InitialInterval
	}
	if p.Transient == nil {
		p.Transient = contractx.IsTransient
	}
	return p
}

// Do runs fn until it succeeds, fails permanently, or runs out of attempts.
// Each attempt gets its own timeout when AttemptTimeout is set. Attempt
// timeouts and transient errors are retried with exponential backoff.
func Do[T any](ctx context.Context, p Policy, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	p = p.normalized()

	attempt := 0
	operation := func() (T, error) {
		attempt++
		actx := ctx
		if p.AttemptTimeout > 0 {
			var cancel context.CancelFunc
			actx, cancel = context.WithTimeout(ctx, p.AttemptTimeout)
			defer cancel()
		}

		v, err := fn(actx)
		if err == nil {
			return v, nil
		}
		if ctx.Err() != nil {
			return v, backoff.Permanent(err)
		}
		if errors.Is(err, context.DeadlineExceeded) || p.Transient(err) {
			return v, err
		}
		return v, backoff.Permanent(err)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialInterval
	b.MaxInterval = p.MaxInterval
	b.MaxElapsedTime = 0

	notify := func(err error, wait time.Duration) {
		log.Ctx(ctx).Warn().Err(err).Str("op", op).Int("attempt", attempt).Dur("retry_in", wait).Msg("transient failure, retrying")
	}

	return backoff.RetryNotifyWithData(
		operation,
		backoff.WithContext(backoff.WithMaxRetries(b, uint64(p.MaxAttempts-1)), ctx),
		notify,
	)
}

// Run is Do for operations without a result.
func Run(ctx context.Context, p Policy, op string, fn func(ctx context.Context) error) error {
	_, err := Do(ctx, p, op, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}
