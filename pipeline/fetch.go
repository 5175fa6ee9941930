package pipeline

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// maxFetchBytes caps how much of a page is read, guarding against
// pathological responses.
const maxFetchBytes = 16 << 20

const userAgent = "quarry/1.0 (+https://github.com/quarrylabs/quarry)"

// Fetcher downloads raw content for URL and local-file sources.
type Fetcher struct {
	client *http.Client
}

// NewFetcher creates a fetcher with the given HTTP client. A nil client
// gets a default with a 30 second timeout.
func NewFetcher(client *http.Client) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Fetcher{client: client}
}

// Fetch downloads the content behind uri. http(s) URIs are fetched over
// the network; file: URIs and bare paths are read from disk.
func (f *Fetcher) Fetch(ctx context.Context, uri string) (string, error) {
	if strings.HasPrefix(uri, "http://") || strings.HasPrefix(uri, "https://") {
		return f.fetchHTTP(ctx, uri)
	}
	return fetchLocal(uri)
}

func (f *Fetcher) fetchHTTP(ctx context.Context, uri string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch %s: status %d", uri, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes))
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", uri, err)
	}
	return string(body), nil
}

func fetchLocal(uri string) (string, error) {
	path := strings.TrimPrefix(uri, "file://")
	body, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(body), nil
}
