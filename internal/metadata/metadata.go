// Package metadata serves descriptive facts about the reference body the
// view is anchored on. The facts are cosmetic: when the upstream source
// is unreachable the built-in defaults are served instead of failing.
package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// ReferenceBody describes the anchor object shown in the info panel.
type ReferenceBody struct {
	Name             string  `json:"name"`
	CatalogNumber    int     `json:"catalog_number"`
	CrewCount        int     `json:"crew_count"`
	OrbitalPeriodMin float64 `json:"orbital_period_min"`
	InclinationDeg   float64 `json:"inclination_deg"`
	AltitudeKm       float64 `json:"altitude_km"`
	FetchedLive      bool    `json:"fetched_live"`
}

// DefaultReference returns the built-in ISS facts.
func DefaultReference() ReferenceBody {
	return ReferenceBody{
		Name:             "ISS (ZARYA)",
		CatalogNumber:    25544,
		CrewCount:        7,
		OrbitalPeriodMin: 92.9,
		InclinationDeg:   51.6,
		AltitudeKm:       420,
	}
}

// Provider serves reference body facts, optionally refreshed from an
// upstream JSON source.
type Provider struct {
	sourceURL  string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewProvider creates a Provider. An empty sourceURL disables live
// fetching; Reference then always returns the defaults.
func NewProvider(sourceURL string, logger *slog.Logger) *Provider {
	return &Provider{
		sourceURL: sourceURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// Reference returns the reference body facts. Any fetch failure degrades
// to the defaults with a warning; this endpoint never errors.
func (p *Provider) Reference(ctx context.Context) ReferenceBody {
	if p.sourceURL == "" {
		return DefaultReference()
	}

	body, err := p.fetch(ctx)
	if err != nil {
		p.logger.Warn("reference metadata fetch failed, serving defaults",
			"url", p.sourceURL,
			"error", err)
		return DefaultReference()
	}
	body.FetchedLive = true
	return body
}

func (p *Provider) fetch(ctx context.Context) (ReferenceBody, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.sourceURL, nil)
	if err != nil {
		return ReferenceBody{}, err
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return ReferenceBody{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ReferenceBody{}, fmt.Errorf("unexpected status code %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return ReferenceBody{}, err
	}

	body := DefaultReference()
	if err := json.Unmarshal(data, &body); err != nil {
		return ReferenceBody{}, fmt.Errorf("decoding metadata: %w", err)
	}
	if body.Name == "" || body.CatalogNumber <= 0 {
		return ReferenceBody{}, fmt.Errorf("metadata missing name or catalog number")
	}
	return body, nil
}
