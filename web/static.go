package web

import (
	"context"
	"sync"
)

// StaticRetriever is a test double that serves a fixed result set,
// optionally keyed by query.
type StaticRetriever struct {
	mu       sync.Mutex
	results  []Result
	byQuery  map[string][]Result
	queries  []string
	failWith error
}

// NewStaticRetriever creates a retriever returning the given results for
// every query.
func NewStaticRetriever(results ...Result) *StaticRetriever {
	return &StaticRetriever{
		results: results,
		byQuery: make(map[string][]Result),
	}
}

// SetResults sets the results returned for a specific query.
func (s *StaticRetriever) SetResults(query string, results ...Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byQuery[query] = results
}

// FailWith makes every subsequent Search return err.
func (s *StaticRetriever) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failWith = err
}

// Queries returns the queries seen so far, in call order.
func (s *StaticRetriever) Queries() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.queries))
	copy(out, s.queries)
	return out
}

// Search returns the configured results for the query.
func (s *StaticRetriever) Search(ctx context.Context, query string, maxResults int) ([]Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.queries = append(s.queries, query)
	if s.failWith != nil {
		return nil, s.failWith
	}

	results, ok := s.byQuery[query]
	if !ok {
		results = s.results
	}
	if maxResults > 0 && len(results) > maxResults {
		results = results[:maxResults]
	}
	return results, nil
}
