package prompt

import (
	_ "embed"
	"strings"
)

var (
	//go:embed template/researcher.txt
	researcherRaw string

	//go:embed template/generator.txt
	generatorRaw string

	//go:embed template/analyst.txt
	analystRaw string
)

// PromptSet holds the system prompts of the writing agents. Prompts are
// f-string templates, so literal braces are doubled.
type PromptSet struct {
	Researcher string
	Generator  string
	Analyst    string
}

func LoadPromptSet() PromptSet {
	return PromptSet{
		Researcher: strings.TrimSpace(researcherRaw),
		Generator:  strings.TrimSpace(generatorRaw),
		Analyst:    strings.TrimSpace(analystRaw),
	}
}
