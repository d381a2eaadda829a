package catalog

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// maxFeedBytes bounds the conjunction feed body to keep a misbehaving
// upstream from consuming unbounded memory.
const maxFeedBytes = 50 * 1024 * 1024

// Fetcher retrieves the conjunction feed from a remote source.
type Fetcher struct {
	sourceURL  string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewFetcher creates a Fetcher for the given feed URL.
func NewFetcher(sourceURL string, logger *slog.Logger) *Fetcher {
	return &Fetcher{
		sourceURL: sourceURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

// SourceURL returns the configured feed URL.
func (f *Fetcher) SourceURL() string {
	return f.sourceURL
}

// Fetch retrieves and parses the conjunction feed. A network or parse
// failure is returned to the caller, which records it as a per-feed
// error state; the previous snapshot keeps serving.
func (f *Fetcher) Fetch(ctx context.Context) ([]Conjunction, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.sourceURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching conjunction feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code %d from %s", resp.StatusCode, f.sourceURL)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	if len(body) > maxFeedBytes {
		return nil, fmt.Errorf("conjunction feed exceeds %d byte limit", maxFeedBytes)
	}

	return Parse(bytes.NewReader(body), f.logger)
}
