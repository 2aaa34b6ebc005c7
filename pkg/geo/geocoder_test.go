package geo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func newTestGeocoder(t *testing.T, handler http.Handler) (*Geocoder, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	g := NewGeocoder(
		WithBaseURL(srv.URL),
		WithHTTPClient(srv.Client()),
		WithRetryDelay(time.Millisecond),
	)
	return g, srv
}

func TestGeocodeEmptyAddressSkipsNetwork(t *testing.T) {
	var calls int32
	g, _ := newTestGeocoder(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))

	if _, ok := g.Geocode(context.Background(), "   "); ok {
		t.Fatalf("empty address must not resolve")
	}
	if got := atomic.LoadInt32(&calls); got != 0 {
		t.Fatalf("expected no network calls for empty address, got %d", got)
	}
}

func TestGeocodeReturnsTopMatch(t *testing.T) {
	g, _ := newTestGeocoder(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("q"); got != "Dhaka" {
			t.Errorf("unexpected query %q", got)
		}
		w.Write([]byte(`[{"lat":"23.8103","lon":"90.4125"},{"lat":"0","lon":"0"}]`))
	}))

	point, ok := g.Geocode(context.Background(), "Dhaka")
	if !ok {
		t.Fatalf("expected a result")
	}
	if point.Latitude != 23.8103 || point.Longitude != 90.4125 {
		t.Fatalf("unexpected point: %+v", point)
	}
}

func TestGeocodeNoResult(t *testing.T) {
	g, _ := newTestGeocoder(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))

	if _, ok := g.Geocode(context.Background(), "nowhere at all"); ok {
		t.Fatalf("expected no result for empty response")
	}
}

func TestGeocodeRetriesTransientFailures(t *testing.T) {
	var calls int32
	g, _ := newTestGeocoder(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`[{"lat":"1.5","lon":"2.5"}]`))
	}))

	point, ok := g.Geocode(context.Background(), "retry town")
	if !ok {
		t.Fatalf("expected third attempt to succeed")
	}
	if point.Latitude != 1.5 || point.Longitude != 2.5 {
		t.Fatalf("unexpected point: %+v", point)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}
}

func TestGeocodeGivesUpAfterRetryBudget(t *testing.T) {
	var calls int32
	g, _ := newTestGeocoder(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))

	if _, ok := g.Geocode(context.Background(), "flaky city"); ok {
		t.Fatalf("expected exhaustion to degrade to no result")
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Fatalf("expected 3 attempts total, got %d", got)
	}
}

func TestGeocodeNonTransientErrorIsNotRetried(t *testing.T) {
	var calls int32
	g, _ := newTestGeocoder(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))

	if _, ok := g.Geocode(context.Background(), "blocked"); ok {
		t.Fatalf("expected no result")
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("4xx must not be retried, got %d attempts", got)
	}
}
