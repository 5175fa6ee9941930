package steps

import (
	"context"
	"fmt"

	"github.com/quarrylabs/quarry/core"
	"github.com/quarrylabs/quarry/flow"
)

// OptWordCount caps the requested answer length; 0 leaves it to the model.
const OptWordCount = "word_count"

const answerTemplate = `Answer the following query based on the reference content below.
{{.length_instruction}}If the reference content does not cover the query, say so
explicitly instead of inventing an answer.

Query:
{{.prompt}}

Reference content:
{{.context}}
`

// GenerateAnswer writes one piece of prose for a prompt, grounded in the
// retrieved context. It is used both for the final chat answer and for
// individual sections of a planned article.
type GenerateAnswer struct{}

func (s *GenerateAnswer) Name() string { return "generate_answer" }

func (s *GenerateAnswer) Description() string {
	return "Generate an answer for the query from the retrieved context."
}

func (s *GenerateAnswer) Options() []flow.OptionItem {
	return []flow.OptionItem{
		{
			Name:        OptWordCount,
			Type:        flow.OptionInt,
			Default:     "0",
			Description: "Approximate word budget for the answer; 0 means no limit.",
			Explicit:    true,
		},
	}
}

func (s *GenerateAnswer) DependsOn() []string { return nil }

// Run answers prompt from the given search results. When prompt is empty
// the original query content is answered. Empty context is tolerated: the
// model is told no reference content was found.
func (s *GenerateAnswer) Run(ctx context.Context, exec *flow.ExecInfo, prompt string, results []*core.SearchResult) (string, error) {
	if exec.Caller == nil {
		return "", fmt.Errorf("%w: no inference caller configured", core.ErrUnexpectedCase)
	}
	if prompt == "" {
		prompt = exec.Query.QueryContent
	}

	contextBlock := RenderContext(results)
	if contextBlock == "" {
		contextBlock = "No relevant reference content was found in the knowledge base."
	}

	var lengthInstruction string
	if words := exec.Options.Int(OptWordCount); words > 0 {
		lengthInstruction = fmt.Sprintf("Keep the answer to roughly %d words. ", words)
	}

	userPrompt, err := flow.RenderPrompt("answer", answerTemplate, map[string]any{
		"length_instruction": lengthInstruction,
		"prompt":             prompt,
		"context":            contextBlock,
	})
	if err != nil {
		return "", err
	}

	exec.Logger.Info("generating answer", "prompt", prompt, "chunks", len(results))

	answer, err := exec.Caller.Call(ctx,
		"You are a helpful assistant that answers queries based on the provided reference content.",
		userPrompt)
	if err != nil {
		return "", err
	}
	return answer, nil
}
