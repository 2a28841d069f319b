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

// maxAnalystItems bounds the competitor list sent to the model.
const maxAnalystItems = 60

var _ contractx.GapAnalyzer = (*analystImpl)(nil)

type analystImpl struct {
	runner compose.Runnable[map[string]any, analystLLMOutput]
}

type analystLLMOutput struct {
	ContentGaps []contractx.ContentGap `json:"content_gaps"`
}

func newAnalyst(ctx context.Context, chatModel einomodel.BaseChatModel, systemPrompt string) (*analystImpl, error) {
	if strings.TrimSpace(systemPrompt) == "" {
		return nil, fmt.Errorf("%w: analyst", contractx.ErrPromptMissing)
	}
	runner, err := compileStructuredLLMGraph[analystLLMOutput](ctx, chatModel, systemPrompt, "writer.analyst_graph")
	if err != nil {
		return nil, fmt.Errorf("%w: compile analyst graph: %v", contractx.ErrModelInvoke, err)
	}
	return &analystImpl{runner: runner}, nil
}

// Analyze asks the model which competitor topics the blog has not covered.
// Gaps without a proposed title are dropped.
func (a *analystImpl) Analyze(ctx context.Context, own []string, competitor []contractx.FeedItem) ([]contractx.ContentGap, error) {
	if len(competitor) == 0 {
		return nil, fmt.Errorf("%w: no competitor articles to compare", contractx.ErrValidation)
	}
	if len(competitor) > maxAnalystItems {
		competitor = competitor[:maxAnalystItems]
	}

	articles := make([]map[string]string, 0, len(competitor))
	for _, it := range competitor {
		articles = append(articles, map[string]string{
			"source":  it.Source,
			"title":   it.Title,
			"summary": truncateRunes(it.Summary, 300),
		})
	}
	inputBytes, err := json.Marshal(map[string]any{
		"own_titles":          own,
		"competitor_articles": articles,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: marshal analyst payload: %v", contractx.ErrValidation, err)
	}

	out, err := a.runner.Invoke(ctx, map[string]any{"input": string(inputBytes)})
	if err != nil {
		return nil, fmt.Errorf("%w: analyst invoke: %w", contractx.ErrModelInvoke, openrouterx.ClassifyError("llm", "analyze", err))
	}

	gaps := make([]contractx.ContentGap, 0, len(out.ContentGaps))
	for _, g := range out.ContentGaps {
		g.ProposedTitle = strings.TrimSpace(g.ProposedTitle)
		if g.ProposedTitle == "" {
			continue
		}
		g.Angle = strings.TrimSpace(g.Angle)
		g.Reference = strings.TrimSpace(g.Reference)
		gaps = append(gaps, g)
	}
	return gaps, nil
}
