package writer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	contractx "github.com/tanpawarit/autoblog/agent/contract"
	openrouterx "github.com/tanpawarit/autoblog/pkg/openrouter"
)

var _ contractx.CitationLookup = (*researcherImpl)(nil)

type researcherImpl struct {
	runner compose.Runnable[map[string]any, researchLLMOutput]
}

type researchLLMOutput struct {
	TrendingTopics []string            `json:"trending_topics"`
	References     []researchReference `json:"scientific_references"`
	KeyTakeaways   string              `json:"key_takeaways"`
}

type researchReference struct {
	Fact      string `json:"fact"`
	Source    string `json:"source"`
	Reference string `json:"reference,omitempty"`
}

func newResearcher(ctx context.Context, chatModel einomodel.BaseChatModel, systemPrompt string) (*researcherImpl, error) {
	if strings.TrimSpace(systemPrompt) == "" {
		return nil, fmt.Errorf("%w: researcher", contractx.ErrPromptMissing)
	}
	runner, err := compileResearchGraph(ctx, chatModel, systemPrompt)
	if err != nil {
		return nil, fmt.Errorf("%w: compile research graph: %v", contractx.ErrModelInvoke, err)
	}
	return &researcherImpl{runner: runner}, nil
}

// Lookup asks the model for citable facts about the product's ingredients.
// Citations missing a claim or a source are dropped.
func (r *researcherImpl) Lookup(ctx context.Context, product contractx.Product) (contractx.ResearchBundle, error) {
	if strings.TrimSpace(product.Name) == "" {
		return contractx.ResearchBundle{}, fmt.Errorf("%w: product name is required", contractx.ErrValidation)
	}

	inputBytes, err := json.Marshal(map[string]any{
		"name":        product.Name,
		"description": product.Description,
		"keywords":    product.Keywords,
	})
	if err != nil {
		return contractx.ResearchBundle{}, fmt.Errorf("%w: marshal research payload: %v", contractx.ErrValidation, err)
	}

	out, err := r.runner.Invoke(ctx, map[string]any{
		"input": string(inputBytes),
	})
	if err != nil {
		return contractx.ResearchBundle{}, fmt.Errorf("%w: research invoke: %w", contractx.ErrModelInvoke, openrouterx.ClassifyError("llm", "research", err))
	}

	bundle := contractx.ResearchBundle{
		ProductID: product.ID,
		Citations: make([]contractx.Citation, 0, len(out.References)),
		Summary:   strings.TrimSpace(out.KeyTakeaways),
	}
	for _, ref := range out.References {
		claim, source := strings.TrimSpace(ref.Fact), strings.TrimSpace(ref.Source)
		if claim == "" || source == "" {
			continue
		}
		bundle.Citations = append(bundle.Citations, contractx.Citation{
			Source:    source,
			Claim:     claim,
			Reference: strings.TrimSpace(ref.Reference),
		})
	}
	for _, topic := range out.TrendingTopics {
		if topic = strings.TrimSpace(topic); topic != "" {
			bundle.Topics = append(bundle.Topics, topic)
		}
	}
	return bundle, nil
}
