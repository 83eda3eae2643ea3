// Package geo exposes the geolocation capability consumed by click
// recording. Lookups are best-effort: failures surface as an error the
// caller maps to empty fields, never as a failed click.
package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/jack/golang-shortlink-service/internal/config"
)

// Location holds the derived geography of an IP. Zero values mean unknown.
type Location struct {
	Country string
	Region  string
	City    string
}

type Resolver interface {
	Lookup(ctx context.Context, ip string) (Location, error)
}

// NoopResolver resolves nothing; used when geolocation is disabled.
type NoopResolver struct{}

func (NoopResolver) Lookup(context.Context, string) (Location, error) {
	return Location{}, nil
}

// HTTPResolver queries an ip-api style JSON endpoint:
// GET {endpoint}/{ip} -> {"country":..., "regionName":..., "city":...}.
type HTTPResolver struct {
	endpoint string
	client   *http.Client
}

func NewHTTPResolver(cfg *config.GeoConfig) *HTTPResolver {
	return &HTTPResolver{
		endpoint: cfg.Endpoint,
		client:   &http.Client{Timeout: cfg.Timeout},
	}
}

func (r *HTTPResolver) Lookup(ctx context.Context, ip string) (Location, error) {
	if ip == "" {
		return Location{}, nil
	}

	reqURL := r.endpoint + "/" + url.PathEscape(ip)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return Location{}, fmt.Errorf("failed to build geo request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return Location{}, fmt.Errorf("geo lookup failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Location{}, fmt.Errorf("geo lookup returned status %d", resp.StatusCode)
	}

	var body struct {
		Country string `json:"country"`
		Region  string `json:"regionName"`
		City    string `json:"city"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Location{}, fmt.Errorf("failed to decode geo response: %w", err)
	}

	return Location{Country: body.Country, Region: body.Region, City: body.City}, nil
}

// NewResolver picks the concrete resolver for the configuration.
func NewResolver(cfg *config.GeoConfig) Resolver {
	if !cfg.Enabled {
		return NoopResolver{}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 500 * time.Millisecond
	}
	return NewHTTPResolver(cfg)
}
