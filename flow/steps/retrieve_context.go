package steps

import (
	"context"
	"fmt"
	"strings"

	"github.com/quarrylabs/quarry/core"
	"github.com/quarrylabs/quarry/flow"
)

// OptTopK bounds how many document chunks a retrieval returns.
const OptTopK = "top_k"

// RetrieveContext fetches the document chunks most similar to a query
// from the knowledge base. An empty result set is not an error: upstream
// ingestion may have produced partial results, and downstream steps are
// expected to cope with missing context.
type RetrieveContext struct{}

func (s *RetrieveContext) Name() string { return "retrieve_context" }

func (s *RetrieveContext) Description() string {
	return "Retrieve the document chunks most relevant to the query from the knowledge base."
}

func (s *RetrieveContext) Options() []flow.OptionItem {
	return []flow.OptionItem{
		{
			Name:        OptTopK,
			Type:        flow.OptionInt,
			Default:     "5",
			Description: "Maximum number of document chunks to retrieve as context.",
			Explicit:    true,
		},
	}
}

func (s *RetrieveContext) DependsOn() []string { return nil }

// Run searches the knowledge base for chunks similar to query. When query
// is empty the original query content is used.
func (s *RetrieveContext) Run(ctx context.Context, exec *flow.ExecInfo, query string) ([]*core.SearchResult, error) {
	if exec.Searcher == nil {
		return nil, fmt.Errorf("%w: no searcher configured", core.ErrUnexpectedCase)
	}
	if query == "" {
		query = exec.Query.QueryContent
	}

	topK := exec.Options.Int(OptTopK)
	if topK <= 0 {
		topK = 5
	}

	results, err := exec.Searcher.FindSimilar(ctx, exec.KB.ID, query, topK)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		exec.Logger.Warn("no relevant chunks found in the knowledge base", "query", query)
		return nil, nil
	}

	exec.Logger.Info("retrieved context for query", "query", query, "chunks", len(results))
	return results, nil
}

// RenderContext flattens search results into a numbered reference block
// suitable for inclusion in a prompt.
func RenderContext(results []*core.SearchResult) string {
	var b strings.Builder
	for i, r := range results {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[%d] %s", i+1, strings.TrimSpace(r.Document.Content))
	}
	return b.String()
}
