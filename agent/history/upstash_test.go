package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

type fakeRedis struct {
	mu       sync.Mutex
	data     map[string]string
	commands [][]any
}

func (f *fakeRedis) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var cmd []any
		if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
			t.Errorf("decode command: %v", err)
			return
		}

		f.mu.Lock()
		defer f.mu.Unlock()
		f.commands = append(f.commands, cmd)
		switch cmd[0] {
		case "SET":
			f.data[cmd[1].(string)] = cmd[2].(string)
			fmt.Fprint(w, `{"result":"OK"}`)
		case "GET":
			v, ok := f.data[cmd[1].(string)]
			if !ok {
				fmt.Fprint(w, `{"result":null}`)
				return
			}
			encoded, _ := json.Marshal(v)
			fmt.Fprintf(w, `{"result":%s}`, encoded)
		default:
			fmt.Fprint(w, `{"error":"unknown command"}`)
		}
	}
}

func newUpstashTestStore(t *testing.T, opts ...StoreOption) (*UpstashRedisStore, *fakeRedis) {
	t.Helper()

	fake := &fakeRedis{data: map[string]string{}}
	server := httptest.NewServer(fake.handler(t))
	t.Cleanup(server.Close)

	store, err := NewUpstashRedisStore(
		UpstashRedisConfig{URL: server.URL, Token: "token"},
		append([]StoreOption{WithHTTPClient(server.Client())}, opts...)...,
	)
	if err != nil {
		t.Fatalf("NewUpstashRedisStore() error = %v", err)
	}
	return store, fake
}

func TestUpstashStoreRoundTrip(t *testing.T) {
	t.Parallel()

	store, fake := newUpstashTestStore(t, WithKeyPrefix("test:"))

	if _, err := store.LastPublished(context.Background()); !errors.Is(err, ErrNoHistory) {
		t.Fatalf("LastPublished() error = %v, want ErrNoHistory", err)
	}

	entry := Entry{
		CycleID:     "c-1",
		ProductID:   "csv:SerumA",
		PostID:      42,
		Day:         "2026-03-01",
		PublishAt:   time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		PublishedAt: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	if err := store.Record(context.Background(), entry); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	got, err := store.LastPublished(context.Background())
	if err != nil {
		t.Fatalf("LastPublished() error = %v", err)
	}
	if got.PostID != 42 || got.Day != "2026-03-01" {
		t.Fatalf("unexpected entry %#v", got)
	}

	last := fake.commands[len(fake.commands)-2]
	if last[1] != "test:day:2026-03-01" || last[3] != "EX" {
		t.Fatalf("unexpected day marker command %#v", last)
	}
}

func TestUpstashStoreRejectsInvalidEntry(t *testing.T) {
	t.Parallel()

	store, fake := newUpstashTestStore(t)
	err := store.Record(context.Background(), Entry{CycleID: "c", Day: "2026-03-01"})
	if !errors.Is(err, ErrInvalidEntry) {
		t.Fatalf("Record() error = %v, want ErrInvalidEntry", err)
	}
	if len(fake.commands) != 0 {
		t.Fatalf("expected no commands, got %#v", fake.commands)
	}
}

func TestUpstashStoreNoTTL(t *testing.T) {
	t.Parallel()

	store, fake := newUpstashTestStore(t, WithTTL(0))
	err := store.Record(context.Background(), Entry{CycleID: "c", PostID: 1, Day: "2026-03-01"})
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if got := fake.commands[len(fake.commands)-1]; len(got) != 3 {
		t.Fatalf("expected SET without EX, got %#v", got)
	}
}

func TestTTLSecondsRoundsUp(t *testing.T) {
	t.Parallel()

	if got := ttlSeconds(1500 * time.Millisecond); got != 2 {
		t.Fatalf("ttlSeconds() = %d, want 2", got)
	}
	if got := ttlSeconds(0); got != 1 {
		t.Fatalf("ttlSeconds() = %d, want 1", got)
	}
}
