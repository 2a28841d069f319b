package history

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	ErrNoHistory    = errors.New("no publish history")
	ErrInvalidEntry = errors.New("history entry is invalid")
)

// Entry records one successful publish.
type Entry struct {
	CycleID     string    `json:"cycle_id"`
	ProductID   string    `json:"product_id"`
	PostID      int64     `json:"post_id"`
	Title       string    `json:"title"`
	Day         string    `json:"day"`
	PublishAt   time.Time `json:"publish_at"`
	PublishedAt time.Time `json:"published_at"`
}

func (e Entry) Validate() error {
	if strings.TrimSpace(e.CycleID) == "" {
		return errors.Join(ErrInvalidEntry, errors.New("cycle id is empty"))
	}
	if e.PostID <= 0 {
		return errors.Join(ErrInvalidEntry, errors.New("post id is missing"))
	}
	if _, err := time.Parse(DayLayout, e.Day); err != nil {
		return errors.Join(ErrInvalidEntry, err)
	}
	return nil
}

// Store is the persistence contract for publish history.
type Store interface {
	Record(ctx context.Context, e Entry) error
	LastPublished(ctx context.Context) (Entry, error)
	Close() error
}

const DayLayout = "2006-01-02"

// Day formats t as a calendar day in loc.
func Day(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(DayLayout)
}

// PublishedOn reports whether the last recorded publish happened on day.
func PublishedOn(ctx context.Context, s Store, day string) (bool, Entry, error) {
	last, err := s.LastPublished(ctx)
	if errors.Is(err, ErrNoHistory) {
		return false, Entry{}, nil
	}
	if err != nil {
		return false, Entry{}, err
	}
	return last.Day == day, last, nil
}
