package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"dinesafe/internal/bootstrap/config"
	"dinesafe/internal/errs"
	"dinesafe/internal/infrastructure/httpx"
	"dinesafe/internal/ports"
)

// NominatimProvider resolves free-text addresses against a Nominatim-style
// search endpoint. Memoization and rate limiting live in the sync engine's
// geocoder, not here.
type NominatimProvider struct {
	baseURL   string
	userAgent string
	client    *http.Client
}

var _ ports.GeocodeProvider = (*NominatimProvider)(nil)

func NewNominatimProvider(cfg config.GeocoderConfig) *NominatimProvider {
	timeout := cfg.Timeout()
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &NominatimProvider{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		userAgent: cfg.UserAgent,
		client:    httpx.NewClient(timeout),
	}
}

type nominatimResult struct {
	Lat string `json:"lat"`
	Lon string `json:"lon"`
}

func (p *NominatimProvider) Lookup(ctx context.Context, address string) (*ports.Coordinates, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}

	address = strings.TrimSpace(address)
	if address == "" {
		return nil, nil
	}

	q := url.Values{}
	q.Set("format", "json")
	q.Set("limit", "1")
	q.Set("q", address)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/search?"+q.Encode(), nil)
	if err != nil {
		return nil, errs.Wrap(err, "build geocode request")
	}
	if p.userAgent != "" {
		req.Header.Set("User-Agent", p.userAgent)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, errs.Wrap(err, "geocode request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geocoder returned status %d", resp.StatusCode)
	}

	var results []nominatimResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, errs.Wrap(err, "decode geocode response")
	}
	if len(results) == 0 {
		return nil, nil
	}

	lat, err := strconv.ParseFloat(results[0].Lat, 64)
	if err != nil {
		return nil, errs.Wrap(err, "parse latitude")
	}
	lon, err := strconv.ParseFloat(results[0].Lon, 64)
	if err != nil {
		return nil, errs.Wrap(err, "parse longitude")
	}

	return &ports.Coordinates{Latitude: lat, Longitude: lon}, nil
}
