package schedule

import (
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	contractx "github.com/tanpawarit/autoblog/agent/contract"
)

const (
	MinOffsetMinutes = int(contractx.MinPublishOffset / time.Minute)
	MaxOffsetMinutes = int(contractx.MaxPublishOffset / time.Minute)
)

var _ contractx.Scheduler = (*Scheduler)(nil)

type Config struct {
	MinOffsetMinutes int `split_words:"true" default:"10"`
	MaxOffsetMinutes int `split_words:"true" default:"120"`
}

// Scheduler picks a publish time a random whole number of minutes after now,
// within [min, max] inclusive.
type Scheduler struct {
	min int
	max int

	mu  sync.Mutex
	rng *rand.Rand
}

// New validates the offsets against the allowed 10..120 minute window. A nil
// rng uses a time-seeded source.
func New(cfg Config, rng *rand.Rand) (*Scheduler, error) {
	if cfg.MinOffsetMinutes < MinOffsetMinutes || cfg.MaxOffsetMinutes > MaxOffsetMinutes || cfg.MinOffsetMinutes > cfg.MaxOffsetMinutes {
		return nil, fmt.Errorf("%w: offsets [%d,%d] must lie within [%d,%d]",
			contractx.ErrInvalidSchedule, cfg.MinOffsetMinutes, cfg.MaxOffsetMinutes, MinOffsetMinutes, MaxOffsetMinutes)
	}
	if rng == nil {
		seed := uint64(time.Now().UnixNano())
		rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	}
	return &Scheduler{min: cfg.MinOffsetMinutes, max: cfg.MaxOffsetMinutes, rng: rng}, nil
}

func Default(rng *rand.Rand) *Scheduler {
	s, _ := New(Config{MinOffsetMinutes: MinOffsetMinutes, MaxOffsetMinutes: MaxOffsetMinutes}, rng)
	return s
}

func (s *Scheduler) Schedule(now time.Time) time.Time {
	s.mu.Lock()
	offset := s.min + s.rng.IntN(s.max-s.min+1)
	s.mu.Unlock()
	return now.Add(time.Duration(offset) * time.Minute)
}
