package anthropic

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	contractx "github.com/tanpawarit/autoblog/agent/contract"
)

const serviceName = "anthropic"

type Config struct {
	APIKey      string        `envconfig:"API_KEY" split_words:"true"`
	BaseURL     string        `envconfig:"BASE_URL" split_words:"true"`
	Model       string        `envconfig:"MODEL" split_words:"true" default:"claude-sonnet-4-5"`
	MaxTokens   int           `envconfig:"MAX_TOKENS" split_words:"true" default:"4000"`
	Temperature float32       `envconfig:"TEMPERATURE" split_words:"true" default:"0.7"`
	Timeout     time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"90s"`
}

// New builds an eino chat model backed by the Anthropic Messages API.
func (c *Config) New(ctx context.Context) (model.ToolCallingChatModel, error) {
	if strings.TrimSpace(c.APIKey) == "" {
		return nil, fmt.Errorf("%w: anthropic api key is required", contractx.ErrValidation)
	}
	opts := []option.RequestOption{option.WithAPIKey(strings.TrimSpace(c.APIKey))}
	if base := strings.TrimRight(strings.TrimSpace(c.BaseURL), "/"); base != "" {
		opts = append(opts, option.WithBaseURL(base))
	}
	if c.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(c.Timeout))
	}
	client := anthropicsdk.NewClient(opts...)
	return NewChatModel(&client, *c), nil
}

// ChatModel adapts the Anthropic client to eino's chat model interface.
type ChatModel struct {
	client *anthropicsdk.Client
	cfg    Config
}

var _ model.ToolCallingChatModel = (*ChatModel)(nil)

func NewChatModel(client *anthropicsdk.Client, cfg Config) *ChatModel {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 4000
	}
	return &ChatModel{client: client, cfg: cfg}
}

func (m *ChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	temperature := m.cfg.Temperature
	maxTokens := m.cfg.MaxTokens
	modelName := m.cfg.Model
	common := model.GetCommonOptions(&model.Options{
		Temperature: &temperature,
		MaxTokens:   &maxTokens,
		Model:       &modelName,
	}, opts...)

	params := anthropicsdk.MessageNewParams{
		Model:     anthropicsdk.Model(*common.Model),
		MaxTokens: int64(*common.MaxTokens),
	}
	if common.Temperature != nil {
		params.Temperature = anthropicsdk.Float(float64(*common.Temperature))
	}

	for _, msg := range input {
		if msg == nil || strings.TrimSpace(msg.Content) == "" {
			continue
		}
		switch msg.Role {
		case schema.System:
			params.System = append(params.System, anthropicsdk.TextBlockParam{Text: msg.Content})
		case schema.Assistant:
			params.Messages = append(params.Messages, anthropicsdk.NewAssistantMessage(anthropicsdk.NewTextBlock(msg.Content)))
		default:
			params.Messages = append(params.Messages, anthropicsdk.NewUserMessage(anthropicsdk.NewTextBlock(msg.Content)))
		}
	}
	if len(params.Messages) == 0 {
		return nil, fmt.Errorf("%w: no user message to send", contractx.ErrValidation)
	}

	resp, err := m.client.Messages.New(ctx, params)
	if err != nil {
		return nil, classify(err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.AsText().Text)
		}
	}
	return schema.AssistantMessage(text.String(), nil), nil
}

func (m *ChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func (m *ChatModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	if len(tools) > 0 {
		return nil, errors.New("anthropic chat model: tool calling is not supported")
	}
	return m, nil
}

func classify(err error) error {
	out := &contractx.ExternalError{Service: serviceName, Op: "messages.new", Err: err}
	var apiErr *anthropicsdk.Error
	switch {
	case errors.As(err, &apiErr):
		out.Status = apiErr.StatusCode
		out.Transient = apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= http.StatusInternalServerError
	case errors.Is(err, context.DeadlineExceeded):
		out.Transient = true
	}
	return out
}

// VerifyKey sends a one-token request to confirm the key and model are
// accepted.
func VerifyKey(ctx context.Context, cfg Config) error {
	cfg.MaxTokens = 1
	m, err := cfg.New(ctx)
	if err != nil {
		return err
	}
	_, err = m.Generate(ctx, []*schema.Message{schema.UserMessage("ping")})
	return err
}
