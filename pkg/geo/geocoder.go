package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	defaultNominatimURL = "https://nominatim.openstreetmap.org"
	geocodeUserAgent    = "bloodlink/1.0"

	geocodeTimeout    = 10 * time.Second
	geocodeRetries    = 2
	geocodeRetryDelay = time.Second
)

// Geocoder resolves free-text addresses to coordinates through the
// Nominatim search API. The zero value is not usable; call NewGeocoder.
type Geocoder struct {
	baseURL    string
	httpClient *http.Client
	retries    int
	retryDelay time.Duration
	sleep      func(time.Duration)
}

// GeocoderOption customizes a Geocoder.
type GeocoderOption func(*Geocoder)

// WithBaseURL points the geocoder at an alternate Nominatim endpoint.
func WithBaseURL(baseURL string) GeocoderOption {
	return func(g *Geocoder) {
		g.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(client *http.Client) GeocoderOption {
	return func(g *Geocoder) {
		g.httpClient = client
	}
}

// WithRetryDelay overrides the fixed sleep between attempts.
func WithRetryDelay(d time.Duration) GeocoderOption {
	return func(g *Geocoder) {
		g.retryDelay = d
	}
}

// NewGeocoder builds a Nominatim-backed geocoder with a bounded request
// timeout and fixed retry policy.
func NewGeocoder(opts ...GeocoderOption) *Geocoder {
	g := &Geocoder{
		baseURL:    defaultNominatimURL,
		httpClient: &http.Client{Timeout: geocodeTimeout},
		retries:    geocodeRetries,
		retryDelay: geocodeRetryDelay,
		sleep:      time.Sleep,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

type nominatimResult struct {
	Lat string `json:"lat"`
	Lon string `json:"lon"`
}

// Geocode resolves an address to a point, accepting the service's top
// match. An empty address returns no result without a network call.
// Transient service failures (5xx, transport errors) are retried up to
// two more times with a fixed delay; everything else, including retry
// exhaustion and an empty result set, degrades to "no result". Geocode
// never returns an error to the caller.
func (g *Geocoder) Geocode(ctx context.Context, address string) (Point, bool) {
	address = strings.TrimSpace(address)
	if address == "" {
		return Point{}, false
	}

	for attempt := 0; ; attempt++ {
		point, ok, transient := g.lookup(ctx, address)
		if !transient {
			return point, ok
		}
		if attempt >= g.retries {
			slog.Warn("geocode attempts exhausted", "address", address)
			return Point{}, false
		}
		g.sleep(g.retryDelay)
	}
}

// lookup performs a single Nominatim query. The third return reports
// whether the failure is worth retrying.
func (g *Geocoder) lookup(ctx context.Context, address string) (Point, bool, bool) {
	q := url.Values{}
	q.Set("q", address)
	q.Set("format", "json")
	q.Set("limit", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/search?"+q.Encode(), nil)
	if err != nil {
		return Point{}, false, false
	}
	req.Header.Set("User-Agent", geocodeUserAgent)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return Point{}, false, false
		}
		return Point{}, false, true
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return Point{}, false, true
	}
	if resp.StatusCode != http.StatusOK {
		return Point{}, false, false
	}

	var results []nominatimResult
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&results); err != nil {
		return Point{}, false, false
	}
	if len(results) == 0 {
		return Point{}, false, false
	}
	point, err := parseResult(results[0])
	if err != nil {
		return Point{}, false, false
	}
	return point, true, false
}

func parseResult(r nominatimResult) (Point, error) {
	lat, err := strconv.ParseFloat(r.Lat, 64)
	if err != nil {
		return Point{}, fmt.Errorf("parse lat: %w", err)
	}
	lon, err := strconv.ParseFloat(r.Lon, 64)
	if err != nil {
		return Point{}, fmt.Errorf("parse lon: %w", err)
	}
	return Point{Latitude: lat, Longitude: lon}, nil
}
