package flows

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/quarrylabs/quarry/core"
	"github.com/quarrylabs/quarry/flow"
	"github.com/quarrylabs/quarry/flow/steps"
)

// ResearchFlow searches the web for the query, plans a topic outline
// from the ingested content, and writes one section per topic.
type ResearchFlow struct {
	search   *steps.SearchToDocSource
	retrieve *steps.RetrieveContext
	plan     *steps.PlanTopic
	answer   *steps.GenerateAnswer
}

// NewResearchFlow returns the research flow.
func NewResearchFlow() *ResearchFlow {
	return &ResearchFlow{
		search:   &steps.SearchToDocSource{},
		retrieve: &steps.RetrieveContext{},
		plan:     &steps.PlanTopic{},
		answer:   &steps.GenerateAnswer{},
	}
}

func (f *ResearchFlow) Name() string { return "research" }

func (f *ResearchFlow) Description() string {
	return "Search the web, plan a topic outline, and write a sectioned research article."
}

func (f *ResearchFlow) Options() []flow.OptionItem { return nil }

func (f *ResearchFlow) DependsOn() []string {
	return []string{f.search.Name(), f.retrieve.Name(), f.plan.Name(), f.answer.Name()}
}

func (f *ResearchFlow) ArticleType() string { return "research_report" }

func (f *ResearchFlow) Execute(ctx context.Context, exec *flow.ExecInfo) (*core.ChatQueryResultCreate, error) {
	if _, err := f.search.Run(ctx, exec, ""); err != nil {
		return nil, err
	}

	planContext, err := f.retrieve.Run(ctx, exec, "")
	if err != nil {
		return nil, err
	}

	topics, err := f.plan.Run(ctx, exec, steps.RenderContext(planContext))
	if err != nil {
		return nil, err
	}

	sections := make([]core.ResultSection, 0, len(topics.Topics))
	for _, topic := range topics.Topics {
		// Each section gets its own retrieval scoped to the topic prompt.
		results, err := f.retrieve.Run(ctx, exec, topic.Prompt)
		if err != nil {
			return nil, err
		}
		content, err := f.answer.Run(ctx, exec, topic.Prompt, results)
		if err != nil {
			return nil, err
		}
		sections = append(sections, core.ResultSection{Title: topic.Title, Content: content})
	}

	return &core.ChatQueryResultCreate{
		ChatID:      exec.Query.ChatID,
		QueryID:     exec.Query.QueryID,
		FlowType:    f.Name(),
		ArticleType: f.ArticleType(),
		Content:     renderArticle(exec.Query.QueryContent, sections),
		Sections:    sections,
		CreatedAt:   time.Now(),
	}, nil
}

// renderArticle flattens the sections into one markdown document.
func renderArticle(title string, sections []core.ResultSection) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n", title)
	for _, s := range sections {
		fmt.Fprintf(&b, "\n## %s\n\n%s\n", s.Title, s.Content)
	}
	return b.String()
}
