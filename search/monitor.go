package search

import "github.com/quarrylabs/quarry/core"

// SearchMonitor provides hooks to observe the search process.
// Implement this interface to track intermediate steps and results.
type SearchMonitor interface {
	Start(query string)
	AfterVectorSearch(matches []*core.SearchResult)
	VerbatimHit(document *core.Document)
	Finish(results []*core.SearchResult)
}

// noopMonitor is a no-op implementation of SearchMonitor
type noopMonitor struct{}

var _ SearchMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string)                           {}
func (n *noopMonitor) AfterVectorSearch(_ []*core.SearchResult) {}
func (n *noopMonitor) VerbatimHit(_ *core.Document)             {}
func (n *noopMonitor) Finish(_ []*core.SearchResult)            {}
