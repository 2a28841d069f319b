package llm

import (
	"fmt"
	"strings"
	"time"

	contractx "github.com/tanpawarit/autoblog/agent/contract"
	anthropicx "github.com/tanpawarit/autoblog/pkg/anthropic"
	openrouterx "github.com/tanpawarit/autoblog/pkg/openrouter"
)

const (
	ProviderOpenRouter = "openrouter"
	ProviderAnthropic  = "anthropic"
)

type Config struct {
	Provider           string        `envconfig:"PROVIDER" split_words:"true" default:"openrouter"`
	BaseURL            string        `envconfig:"BASE_URL" split_words:"true" default:"https://openrouter.ai/api/v1"`
	APIKey             string        `envconfig:"API_KEY" split_words:"true" required:"true"`
	Model              string        `envconfig:"MODEL" split_words:"true" required:"true"`
	MaxCompletionToken int           `envconfig:"MAX_COMPLETION_TOKEN" split_words:"true" default:"4000"`
	Temperature        float32       `envconfig:"TEMPERATURE" split_words:"true" default:"0.7"`
	Timeout            time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"90s"`
	SiteURL            string        `envconfig:"SITE_URL" split_words:"true"`
	SiteName           string        `envconfig:"SITE_NAME" split_words:"true"`

	ResearcherModel       string  `envconfig:"RESEARCHER_MODEL" split_words:"true"`
	GeneratorModel        string  `envconfig:"GENERATOR_MODEL" split_words:"true"`
	ResearcherTemperature float32 `envconfig:"RESEARCHER_TEMPERATURE" split_words:"true" default:"0.2"`
	GeneratorTemperature  float32 `envconfig:"GENERATOR_TEMPERATURE" split_words:"true" default:"-1"`

	// FallbackModel serves every agent when its own model fails.
	FallbackModel string `envconfig:"FALLBACK_MODEL" split_words:"true"`
}

func (c Config) Validate() error {
	switch strings.TrimSpace(c.Provider) {
	case "", ProviderOpenRouter, ProviderAnthropic:
	default:
		return fmt.Errorf("%w: unknown llm provider %q", contractx.ErrValidation, c.Provider)
	}
	if strings.TrimSpace(c.APIKey) == "" {
		return fmt.Errorf("%w: llm api key is required", contractx.ErrValidation)
	}
	if strings.TrimSpace(c.Model) == "" {
		return fmt.Errorf("%w: default model is required", contractx.ErrValidation)
	}
	return nil
}

func (c Config) modelFor(agentType contractx.AgentType) (string, float32) {
	modelName := strings.TrimSpace(c.Model)
	temp := c.Temperature

	switch agentType {
	case contractx.AgentTypeResearcher, contractx.AgentTypeAnalyst:
		if v := strings.TrimSpace(c.ResearcherModel); v != "" {
			modelName = v
		}
		if c.ResearcherTemperature >= 0 {
			temp = c.ResearcherTemperature
		}
	case contractx.AgentTypeGenerator:
		if v := strings.TrimSpace(c.GeneratorModel); v != "" {
			modelName = v
		}
		if c.GeneratorTemperature >= 0 {
			temp = c.GeneratorTemperature
		}
	}
	return modelName, temp
}

// Fallback returns the configuration that runs every agent on the fallback
// model. ok is false when no distinct fallback model is set.
func (c Config) Fallback() (fallback Config, ok bool) {
	name := strings.TrimSpace(c.FallbackModel)
	if name == "" || name == strings.TrimSpace(c.Model) {
		return Config{}, false
	}
	fallback = c
	fallback.Model = name
	fallback.ResearcherModel = ""
	fallback.GeneratorModel = ""
	fallback.FallbackModel = ""
	return fallback, true
}

func (c Config) OpenRouterFor(agentType contractx.AgentType) openrouterx.Config {
	modelName, temp := c.modelFor(agentType)
	maxCompletionToken := c.MaxCompletionToken
	return openrouterx.Config{
		BaseURL:            strings.TrimSpace(c.BaseURL),
		APIKey:             strings.TrimSpace(c.APIKey),
		Model:              modelName,
		MaxCompletionToken: &maxCompletionToken,
		Temperature:        temp,
		Timeout:            c.Timeout,
		SiteURL:            strings.TrimSpace(c.SiteURL),
		SiteName:           strings.TrimSpace(c.SiteName),
	}
}

func (c Config) AnthropicFor(agentType contractx.AgentType) anthropicx.Config {
	modelName, temp := c.modelFor(agentType)
	base := strings.TrimSpace(c.BaseURL)
	if strings.Contains(base, "openrouter.ai") {
		base = ""
	}
	return anthropicx.Config{
		APIKey:      strings.TrimSpace(c.APIKey),
		BaseURL:     base,
		Model:       modelName,
		MaxTokens:   c.MaxCompletionToken,
		Temperature: temp,
		Timeout:     c.Timeout,
	}
}

// BuilderFor returns the chat model builder for agentType on the configured
// provider.
func (c Config) BuilderFor(agentType contractx.AgentType) openrouterx.LLMBuilder {
	if strings.TrimSpace(c.Provider) == ProviderAnthropic {
		cfg := c.AnthropicFor(agentType)
		return &cfg
	}
	cfg := c.OpenRouterFor(agentType)
	return &cfg
}
