// Copyright 2025 Quarry Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package web

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

// searchScheme is the URI scheme identifying search-backed sources.
const searchScheme = "search"

// Result is a single search hit.
type Result struct {
	URL     string
	Title   string
	Snippet string
}

// Retriever runs a web search and returns result pages.
// Implementations must be thread-safe for concurrent use.
type Retriever interface {
	// Search runs the query and returns up to maxResults hits.
	Search(ctx context.Context, query string, maxResults int) ([]Result, error)
}

// Registry maps retriever names to implementations.
type Registry struct {
	mu         sync.RWMutex
	retrievers map[string]Retriever
}

// NewRegistry creates an empty retriever registry.
func NewRegistry() *Registry {
	return &Registry{retrievers: make(map[string]Retriever)}
}

// Register adds a retriever under the given name, replacing any existing
// entry.
func (r *Registry) Register(name string, retriever Retriever) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.retrievers[name] = retriever
}

// Get returns the retriever registered under name.
func (r *Registry) Get(name string) (Retriever, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	retriever, ok := r.retrievers[name]
	if !ok {
		return nil, fmt.Errorf("no retriever registered for %q", name)
	}
	return retriever, nil
}

// SearchURI identifies a search-backed document source. The timestamp
// makes repeated searches for the same query distinct sources.
// MaxResults and DaysLimit are per-source search bounds; zero means
// "use the engine default".
type SearchURI struct {
	Retriever  string
	Query      string
	MaxResults int
	DaysLimit  int
	Timestamp  time.Time
}

// String renders the URI in the canonical
// search://<retriever>?q=<query>&date_range=<days>&max_results=<n>&ts=<millis>
// form. Zero-valued bounds and timestamps are omitted.
func (u *SearchURI) String() string {
	values := url.Values{}
	values.Set("q", u.Query)
	if u.DaysLimit > 0 {
		values.Set("date_range", strconv.Itoa(u.DaysLimit))
	}
	if u.MaxResults > 0 {
		values.Set("max_results", strconv.Itoa(u.MaxResults))
	}
	if !u.Timestamp.IsZero() {
		values.Set("ts", strconv.FormatInt(u.Timestamp.UnixMilli(), 10))
	}
	return fmt.Sprintf("%s://%s?%s", searchScheme, u.Retriever, values.Encode())
}

// BuildSearchURI renders a plain query-and-timestamp search URI.
func BuildSearchURI(retriever, query string, ts time.Time) string {
	uri := SearchURI{Retriever: retriever, Query: query, Timestamp: ts}
	return uri.String()
}

// ParseSearchURI parses a search://<retriever>?q=...&ts=... URI.
func ParseSearchURI(raw string) (*SearchURI, error) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid search URI %q: %w", raw, err)
	}
	if parsed.Scheme != searchScheme {
		return nil, fmt.Errorf("invalid search URI %q: scheme must be %q", raw, searchScheme)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("invalid search URI %q: missing retriever name", raw)
	}

	query := strings.TrimSpace(parsed.Query().Get("q"))
	if query == "" {
		return nil, fmt.Errorf("invalid search URI %q: missing query", raw)
	}

	uri := &SearchURI{
		Retriever: parsed.Host,
		Query:     query,
	}
	if limit := parsed.Query().Get("max_results"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid search URI %q: bad max_results %q", raw, limit)
		}
		uri.MaxResults = n
	}
	if days := parsed.Query().Get("date_range"); days != "" {
		n, err := strconv.Atoi(days)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid search URI %q: bad date_range %q", raw, days)
		}
		uri.DaysLimit = n
	}
	if tsRaw := parsed.Query().Get("ts"); tsRaw != "" {
		millis, err := strconv.ParseInt(tsRaw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid search URI %q: bad timestamp: %w", raw, err)
		}
		uri.Timestamp = time.UnixMilli(millis)
	}
	return uri, nil
}

// IsSearchURI reports whether raw uses the search scheme.
func IsSearchURI(raw string) bool {
	return strings.HasPrefix(raw, searchScheme+"://")
}
