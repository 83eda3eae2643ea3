package geo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jack/golang-shortlink-service/internal/config"
)

func TestHTTPResolverLookup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/203.0.113.9" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"country":"Brazil","regionName":"Sao Paulo","city":"Campinas"}`))
	}))
	defer srv.Close()

	r := NewHTTPResolver(&config.GeoConfig{Endpoint: srv.URL, Timeout: time.Second})

	loc, err := r.Lookup(context.Background(), "203.0.113.9")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if loc.Country != "Brazil" || loc.Region != "Sao Paulo" || loc.City != "Campinas" {
		t.Errorf("Lookup() = %+v", loc)
	}
}

func TestHTTPResolverNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	r := NewHTTPResolver(&config.GeoConfig{Endpoint: srv.URL, Timeout: time.Second})

	if _, err := r.Lookup(context.Background(), "203.0.113.9"); err == nil {
		t.Error("expected error for non-200 response")
	}
}

func TestHTTPResolverEmptyIP(t *testing.T) {
	r := NewHTTPResolver(&config.GeoConfig{Endpoint: "http://unused", Timeout: time.Second})

	loc, err := r.Lookup(context.Background(), "")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if loc != (Location{}) {
		t.Errorf("Lookup(\"\") = %+v, want zero Location", loc)
	}
}

func TestNewResolverDisabled(t *testing.T) {
	r := NewResolver(&config.GeoConfig{Enabled: false})
	if _, ok := r.(NoopResolver); !ok {
		t.Errorf("NewResolver(disabled) = %T, want NoopResolver", r)
	}
}
