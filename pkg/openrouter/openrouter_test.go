package openrouter

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	contractx "github.com/tanpawarit/autoblog/agent/contract"
)

func TestClassifyError(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name      string
		err       error
		transient bool
	}{
		{name: "rate limit", err: errors.New("error, status code: 429, message: rate limited"), transient: true},
		{name: "server", err: errors.New("error, status code: 503, message: overloaded"), transient: true},
		{name: "deadline", err: fmt.Errorf("invoke: %w", context.DeadlineExceeded), transient: true},
		{name: "auth", err: errors.New("error, status code: 401, message: invalid key"), transient: false},
		{name: "canceled", err: context.Canceled, transient: false},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			err := ClassifyError("llm", "generate", tc.err)
			if !errors.Is(err, contractx.ErrExternalService) {
				t.Fatalf("ClassifyError() = %v, want ErrExternalService", err)
			}
			if got := contractx.IsTransient(err); got != tc.transient {
				t.Fatalf("IsTransient() = %v, want %v", got, tc.transient)
			}
		})
	}

	if ClassifyError("llm", "x", nil) != nil {
		t.Fatal("ClassifyError(nil) should be nil")
	}
}

func TestVerifyKey(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"error":{"message":"bad key"}}`)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"object":"list","data":[{"id":"google/gemini-2.5-flash","object":"model","created":0,"owned_by":"google"}]}`)
	}))
	t.Cleanup(server.Close)

	client := NewClient(Config{BaseURL: server.URL, APIKey: "sk-test"})
	found, err := VerifyKey(context.Background(), client, "google/gemini-2.5-flash")
	if err != nil {
		t.Fatalf("VerifyKey() error = %v", err)
	}
	if !found {
		t.Fatal("expected configured model to be found")
	}

	bad := NewClient(Config{BaseURL: server.URL, APIKey: "sk-wrong"})
	if _, err := VerifyKey(context.Background(), bad, "x"); !errors.Is(err, contractx.ErrExternalService) {
		t.Fatalf("VerifyKey() error = %v, want ErrExternalService", err)
	}

	if _, err := VerifyKey(context.Background(), NewClient(Config{}), "x"); !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("VerifyKey() error = %v, want ErrValidation", err)
	}
}
