package llm

import (
	"errors"
	"testing"

	contractx "github.com/tanpawarit/autoblog/agent/contract"
	anthropicx "github.com/tanpawarit/autoblog/pkg/anthropic"
	openrouterx "github.com/tanpawarit/autoblog/pkg/openrouter"
)

func TestValidate(t *testing.T) {
	t.Parallel()

	if err := (Config{APIKey: "k", Model: "m"}).Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if err := (Config{Model: "m"}).Validate(); !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("Validate() error = %v, want ErrValidation", err)
	}
	if err := (Config{Provider: "bard", APIKey: "k", Model: "m"}).Validate(); !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("Validate() error = %v, want ErrValidation", err)
	}
}

func TestOpenRouterForAppliesAgentOverrides(t *testing.T) {
	t.Parallel()

	cfg := Config{
		APIKey:                "k",
		Model:                 "default-model",
		Temperature:           0.7,
		MaxCompletionToken:    1000,
		ResearcherModel:       "research-model",
		ResearcherTemperature: 0.1,
		GeneratorTemperature:  -1,
	}

	research := cfg.OpenRouterFor(contractx.AgentTypeResearcher)
	if research.Model != "research-model" || research.Temperature != 0.1 {
		t.Fatalf("unexpected researcher config %+v", research)
	}
	gen := cfg.OpenRouterFor(contractx.AgentTypeGenerator)
	if gen.Model != "default-model" || gen.Temperature != 0.7 {
		t.Fatalf("unexpected generator config %+v", gen)
	}
	if gen.MaxCompletionToken == nil || *gen.MaxCompletionToken != 1000 {
		t.Fatalf("unexpected max tokens %v", gen.MaxCompletionToken)
	}
}

func TestBuilderForPicksProvider(t *testing.T) {
	t.Parallel()

	base := Config{APIKey: "k", Model: "m", BaseURL: "https://openrouter.ai/api/v1"}
	if _, ok := base.BuilderFor(contractx.AgentTypeGenerator).(*openrouterx.Config); !ok {
		t.Fatal("expected openrouter builder by default")
	}

	base.Provider = ProviderAnthropic
	b, ok := base.BuilderFor(contractx.AgentTypeGenerator).(*anthropicx.Config)
	if !ok {
		t.Fatal("expected anthropic builder")
	}
	if b.BaseURL != "" {
		t.Fatalf("openrouter base url leaked into anthropic config: %q", b.BaseURL)
	}
}

func TestFallbackUsesOneModelForAllAgents(t *testing.T) {
	t.Parallel()

	cfg := Config{APIKey: "k", Model: "primary", GeneratorModel: "writer-model", FallbackModel: "backup"}
	fb, ok := cfg.Fallback()
	if !ok {
		t.Fatal("Fallback() ok = false, want true")
	}
	for _, agent := range []contractx.AgentType{contractx.AgentTypeResearcher, contractx.AgentTypeGenerator, contractx.AgentTypeAnalyst} {
		if got := fb.OpenRouterFor(agent).Model; got != "backup" {
			t.Fatalf("fallback %s model = %q, want backup", agent, got)
		}
	}

	if _, ok := (Config{Model: "same", FallbackModel: "same"}).Fallback(); ok {
		t.Fatal("fallback equal to the primary model should be ignored")
	}
	if _, ok := (Config{Model: "m"}).Fallback(); ok {
		t.Fatal("missing fallback model should be ignored")
	}
}
