// Package scrape orchestrates an ingestion run: fetch raw records from each
// source adapter, push them through ingestion and matching, and keep run
// bookkeeping. Only one run may be in flight at a time.
package scrape

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"nightfeed.app/nightfeed/internal/domain"
)

// RawRecord is one raw payload as delivered by a source adapter. The shape is
// validated against the payload schema at the ingestion boundary, not here.
type RawRecord map[string]any

// Adapter is one upstream listing source. Fetch returns every record the
// source currently exposes; the orchestrator owns pacing between sources.
type Adapter interface {
	Source() string
	Fetch(ctx context.Context) ([]RawRecord, error)
}

// Coordinates as returned by the geocoder.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Geocoder resolves an address to coordinates. A nil result means the
// address could not be resolved; callers proceed without coordinates.
type Geocoder interface {
	Geocode(ctx context.Context, address, city, country string) *Coordinates
}

// HTTPGeocoder calls a forward-geocoding endpoint that accepts
// ?address=&city=&country= and answers {"latitude": .., "longitude": ..}.
type HTTPGeocoder struct {
	baseURL string
	client  *http.Client
	logger  zerolog.Logger
}

func NewHTTPGeocoder(baseURL string, logger zerolog.Logger) *HTTPGeocoder {
	return &HTTPGeocoder{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
		logger:  logger,
	}
}

// Geocode never propagates a failure: geocoding is best-effort and a venue
// without coordinates is still a valid venue.
func (g *HTTPGeocoder) Geocode(ctx context.Context, address, city, country string) *Coordinates {
	if g == nil || g.baseURL == "" {
		return nil
	}
	coords, err := g.geocode(ctx, address, city, country)
	if err != nil {
		g.logger.Warn().
			Err(domain.ExternalServiceError{Service: "geocoder", Err: err}).
			Str("city", city).
			Msg("geocoding failed; proceeding without coordinates")
		return nil
	}
	return coords
}

func (g *HTTPGeocoder) geocode(ctx context.Context, address, city, country string) (*Coordinates, error) {
	query := url.Values{}
	query.Set("address", address)
	query.Set("city", city)
	query.Set("country", country)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build geocode request: %w", err)
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call geocoder: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return nil, fmt.Errorf("read geocoder response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geocoder responded %d", resp.StatusCode)
	}
	if len(bytes.TrimSpace(body)) == 0 || bytes.Equal(bytes.TrimSpace(body), []byte("null")) {
		return nil, nil
	}

	var coords Coordinates
	if err := json.Unmarshal(body, &coords); err != nil {
		return nil, fmt.Errorf("decode geocoder response: %w", err)
	}
	return &coords, nil
}
