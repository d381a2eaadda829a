package czml

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// maxFeedBytes bounds the trajectory feed body.
const maxFeedBytes = 100 * 1024 * 1024

// Fetcher retrieves a CZML trajectory document from a remote source.
type Fetcher struct {
	sourceURL  string
	httpClient *http.Client
}

// NewFetcher creates a Fetcher for the given feed URL.
func NewFetcher(sourceURL string) *Fetcher {
	return &Fetcher{
		sourceURL: sourceURL,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// SourceURL returns the configured feed URL.
func (f *Fetcher) SourceURL() string {
	return f.sourceURL
}

// Packets fetches and parses the trajectory document.
func (f *Fetcher) Packets(ctx context.Context) ([]Packet, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.sourceURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching trajectory feed: %w", err)
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
		return nil, fmt.Errorf("trajectory feed exceeds %d byte limit", maxFeedBytes)
	}

	return Parse(bytes.NewReader(body))
}
