package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/cloudwego/eino/schema"
	contractx "github.com/tanpawarit/autoblog/agent/contract"
)

func newTestModel(t *testing.T, handler http.HandlerFunc) *ChatModel {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := anthropicsdk.NewClient(
		option.WithAPIKey("test-key"),
		option.WithBaseURL(server.URL),
		option.WithMaxRetries(0),
	)
	return NewChatModel(&client, Config{Model: "claude-sonnet-4-5", MaxTokens: 256, Temperature: 0.2})
}

func TestGenerateSendsSystemAndUserBlocks(t *testing.T) {
	t.Parallel()

	var got map[string]any
	m := newTestModel(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"msg_1","type":"message","role":"assistant","model":"claude-sonnet-4-5",
			"content":[{"type":"text","text":"{\"title\":\"ok\"}"}],
			"stop_reason":"end_turn","usage":{"input_tokens":1,"output_tokens":1}}`)
	})

	out, err := m.Generate(context.Background(), []*schema.Message{
		schema.SystemMessage("you write articles"),
		schema.UserMessage("write one"),
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if out.Role != schema.Assistant || out.Content != `{"title":"ok"}` {
		t.Fatalf("unexpected message %#v", out)
	}
	if got["model"] != "claude-sonnet-4-5" {
		t.Fatalf("model = %v", got["model"])
	}
	system, _ := got["system"].([]any)
	if len(system) != 1 {
		t.Fatalf("system blocks = %#v", got["system"])
	}
	msgs, _ := got["messages"].([]any)
	if len(msgs) != 1 {
		t.Fatalf("messages = %#v", got["messages"])
	}
}

func TestGenerateClassifiesRateLimit(t *testing.T) {
	t.Parallel()

	m := newTestModel(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"type":"error","error":{"type":"rate_limit_error","message":"slow down"}}`)
	})

	_, err := m.Generate(context.Background(), []*schema.Message{schema.UserMessage("hi")})
	if !errors.Is(err, contractx.ErrExternalService) {
		t.Fatalf("Generate() error = %v, want ErrExternalService", err)
	}
	if !contractx.IsTransient(err) {
		t.Fatalf("Generate() error = %v, want transient", err)
	}
}

func TestGenerateRequiresUserMessage(t *testing.T) {
	t.Parallel()

	m := newTestModel(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("server should not be called")
	})
	_, err := m.Generate(context.Background(), []*schema.Message{schema.SystemMessage("only system")})
	if !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("Generate() error = %v, want ErrValidation", err)
	}
}

func TestVerifyKeyRejectedKey(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`)
	}))
	t.Cleanup(server.Close)

	err := VerifyKey(context.Background(), Config{APIKey: "bad", BaseURL: server.URL, Model: "claude-sonnet-4-5"})
	var ext *contractx.ExternalError
	if !errors.As(err, &ext) || ext.Status != http.StatusUnauthorized || ext.Transient {
		t.Fatalf("VerifyKey() error = %v, want permanent 401", err)
	}
}

func TestVerifyKeyRequiresKey(t *testing.T) {
	t.Parallel()

	if err := VerifyKey(context.Background(), Config{}); !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("VerifyKey() error = %v, want ErrValidation", err)
	}
}
