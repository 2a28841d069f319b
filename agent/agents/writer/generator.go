package writer

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	contractx "github.com/tanpawarit/autoblog/agent/contract"
	openrouterx "github.com/tanpawarit/autoblog/pkg/openrouter"
)

const maxMetaDescriptionRunes = 156

var _ contractx.Generator = (*generatorImpl)(nil)

type generatorImpl struct {
	runner compose.Runnable[map[string]any, generatorLLMOutput]
}

type generatorLLMOutput struct {
	Title           string   `json:"title"`
	ContentHTML     string   `json:"content_html"`
	Excerpt         string   `json:"excerpt,omitempty"`
	Slug            string   `json:"slug,omitempty"`
	SEOKeyphrase    string   `json:"seo_keyphrase,omitempty"`
	MetaDescription string   `json:"meta_description,omitempty"`
	Tags            []string `json:"tags,omitempty"`
	FAQSchemaHTML   string   `json:"faq_schema_html,omitempty"`
}

func newGenerator(ctx context.Context, chatModel einomodel.BaseChatModel, systemPrompt string) (*generatorImpl, error) {
	if strings.TrimSpace(systemPrompt) == "" {
		return nil, fmt.Errorf("%w: generator", contractx.ErrPromptMissing)
	}
	runner, err := compileGeneratorGraph(ctx, chatModel, systemPrompt)
	if err != nil {
		return nil, fmt.Errorf("%w: compile generator graph: %v", contractx.ErrModelInvoke, err)
	}
	return &generatorImpl{runner: runner}, nil
}

func (g *generatorImpl) Generate(ctx context.Context, req contractx.GenerateRequest) (contractx.Draft, error) {
	if strings.TrimSpace(req.Product.Name) == "" {
		return contractx.Draft{}, fmt.Errorf("%w: product name is required", contractx.ErrValidation)
	}
	ratio := req.Ratio
	if ratio.Educational+ratio.Promotional != 100 {
		ratio = contractx.DefaultRatio
	}

	payload := map[string]any{
		"product": map[string]any{
			"name":        req.Product.Name,
			"description": req.Product.Description,
			"keywords":    req.Product.Keywords,
		},
		"research": req.Research,
		"ratio":    ratio,
		"avoid":    req.Avoid,
		"allowed":  req.Allowed,
		"cta":      req.CTA,
	}
	if req.Topic != nil {
		payload["topic"] = req.Topic
	}
	if req.Previous != nil {
		payload["previous"] = map[string]any{
			"title":           req.Previous.Title,
			"content_html":    req.Previous.Body,
			"faq_schema_html": req.Previous.FAQSchemaHTML,
		}
		payload["feedback"] = summarizeFeedback(req.Feedback)
	}

	inputBytes, err := json.Marshal(payload)
	if err != nil {
		return contractx.Draft{}, fmt.Errorf("%w: marshal generator payload: %v", contractx.ErrValidation, err)
	}

	out, err := g.runner.Invoke(ctx, map[string]any{
		"input": string(inputBytes),
	})
	if err != nil {
		return contractx.Draft{}, fmt.Errorf("%w: generator invoke: %w", contractx.ErrModelInvoke, openrouterx.ClassifyError("llm", "generate", err))
	}

	title := strings.TrimSpace(out.Title)
	body := strings.TrimSpace(out.ContentHTML)
	if title == "" || body == "" {
		return contractx.Draft{}, fmt.Errorf("%w: draft needs title and content_html", contractx.ErrSchemaViolation)
	}

	draft := contractx.Draft{
		ProductID:       req.Product.ID,
		Title:           title,
		Body:            body,
		Excerpt:         strings.TrimSpace(out.Excerpt),
		Slug:            Slugify(out.Slug),
		SEOKeyphrase:    strings.TrimSpace(out.SEOKeyphrase),
		MetaDescription: truncateRunes(strings.TrimSpace(out.MetaDescription), maxMetaDescriptionRunes),
		Tags:            out.Tags,
		FAQSchemaHTML:   strings.TrimSpace(out.FAQSchemaHTML),
		Ratio:           ratio,
	}
	if draft.Slug == "" {
		draft.Slug = Slugify(title)
	}
	if draft.SEOKeyphrase == "" && len(req.Product.Keywords) > 0 {
		draft.SEOKeyphrase = req.Product.Keywords[0]
	}
	if req.Previous != nil {
		draft.Revision = req.Previous.Revision
	}
	return draft, nil
}

func summarizeFeedback(violations []contractx.Violation) []map[string]any {
	out := make([]map[string]any, 0, len(violations))
	for _, v := range violations {
		out = append(out, map[string]any{
			"rule":       v.RuleID,
			"severity":   v.Severity,
			"match":      v.Match,
			"regulation": v.Regulation,
			"reason":     v.Reason,
		})
	}
	return out
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify returns an ASCII URL slug. Titles without ASCII letters give "",
// which leaves slug generation to WordPress.
func Slugify(s string) string {
	s = nonSlug.ReplaceAllString(strings.ToLower(strings.TrimSpace(s)), "-")
	s = strings.Trim(s, "-")
	if len(s) > 80 {
		s = strings.TrimRight(s[:80], "-")
	}
	return s
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
