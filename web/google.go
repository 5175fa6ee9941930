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
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const googleEndpoint = "https://www.googleapis.com/customsearch/v1"

// The API returns at most 10 results per request.
const googlePageSize = 10

// GoogleRetriever implements Retriever against the Google Programmable
// Search JSON API.
type GoogleRetriever struct {
	apiKey   string
	engineID string
	endpoint string
	client   *http.Client
}

// GoogleOption configures a GoogleRetriever.
type GoogleOption func(*GoogleRetriever)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) GoogleOption {
	return func(g *GoogleRetriever) {
		g.client = client
	}
}

// WithEndpoint overrides the API endpoint, used by tests.
func WithEndpoint(endpoint string) GoogleOption {
	return func(g *GoogleRetriever) {
		g.endpoint = endpoint
	}
}

// NewGoogleRetriever creates a retriever for the Google Programmable
// Search JSON API. Both the API key and the search engine ID are required.
func NewGoogleRetriever(apiKey, engineID string, opts ...GoogleOption) (*GoogleRetriever, error) {
	if apiKey == "" {
		return nil, errors.New("google retriever: API key required")
	}
	if engineID == "" {
		return nil, errors.New("google retriever: search engine ID required")
	}

	g := &GoogleRetriever{
		apiKey:   apiKey,
		engineID: engineID,
		endpoint: googleEndpoint,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

type googleResponse struct {
	Items []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
	} `json:"items"`
}

// Search runs the query and returns up to maxResults hits.
func (g *GoogleRetriever) Search(ctx context.Context, query string, maxResults int) ([]Result, error) {
	if maxResults <= 0 {
		maxResults = googlePageSize
	}

	var results []Result
	for start := 1; len(results) < maxResults; start += googlePageSize {
		page, err := g.fetchPage(ctx, query, start)
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			break
		}
		results = append(results, page...)
	}

	if len(results) > maxResults {
		results = results[:maxResults]
	}
	return results, nil
}

func (g *GoogleRetriever) fetchPage(ctx context.Context, query string, start int) ([]Result, error) {
	values := url.Values{}
	values.Set("key", g.apiKey)
	values.Set("cx", g.engineID)
	values.Set("q", query)
	values.Set("start", strconv.Itoa(start))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.endpoint+"?"+values.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("google search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("google search returned status %d", resp.StatusCode)
	}

	var payload googleResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("google search response decode failed: %w", err)
	}

	results := make([]Result, 0, len(payload.Items))
	for _, item := range payload.Items {
		results = append(results, Result{
			URL:     item.Link,
			Title:   item.Title,
			Snippet: item.Snippet,
		})
	}
	return results, nil
}
