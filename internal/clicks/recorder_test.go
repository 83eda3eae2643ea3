package clicks

import (
	"context"
	"errors"
	"testing"

	"github.com/jack/golang-shortlink-service/internal/geo"
	"github.com/jack/golang-shortlink-service/internal/model"
)

type mockEventStore struct {
	insertFunc  func(ctx context.Context, event *model.ClickEvent) error
	touchFunc   func(ctx context.Context, id int64) error
	events      []*model.ClickEvent
	touchedIDs  []int64
	insertCalls int
}

func (m *mockEventStore) InsertClickEvent(ctx context.Context, event *model.ClickEvent) error {
	m.insertCalls++
	m.events = append(m.events, event)
	if m.insertFunc != nil {
		return m.insertFunc(ctx, event)
	}
	return nil
}

func (m *mockEventStore) TouchLastAccessed(ctx context.Context, id int64) error {
	m.touchedIDs = append(m.touchedIDs, id)
	if m.touchFunc != nil {
		return m.touchFunc(ctx, id)
	}
	return nil
}

type mockCounter struct {
	incrFunc func(ctx context.Context, code string) error
	codes    []string
}

func (m *mockCounter) IncrementPendingClicks(ctx context.Context, code string) error {
	m.codes = append(m.codes, code)
	if m.incrFunc != nil {
		return m.incrFunc(ctx, code)
	}
	return nil
}

type mockGeo struct {
	lookupFunc func(ctx context.Context, ip string) (geo.Location, error)
}

func (m *mockGeo) Lookup(ctx context.Context, ip string) (geo.Location, error) {
	if m.lookupFunc != nil {
		return m.lookupFunc(ctx, ip)
	}
	return geo.Location{}, nil
}

func humanContext() model.RequestContext {
	return model.RequestContext{
		IPAddress: "203.0.113.7",
		UserAgent: "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) Mobile/15E148",
		Referer:   "https://example.org/page",
	}
}

func TestRecord(t *testing.T) {
	t.Run("persists a fully classified event", func(t *testing.T) {
		store := &mockEventStore{}
		counter := &mockCounter{}
		g := &mockGeo{
			lookupFunc: func(ctx context.Context, ip string) (geo.Location, error) {
				return geo.Location{Country: "Germany", Region: "Berlin", City: "Berlin"}, nil
			},
		}
		r := NewRecorder(store, counter, g, newTestClassifier(), false)

		r.Record(context.Background(), 42, "abc123", humanContext())

		if store.insertCalls != 1 {
			t.Fatalf("insert called %d times, want 1", store.insertCalls)
		}
		event := store.events[0]
		if event.LinkID != 42 {
			t.Errorf("event.LinkID = %d, want 42", event.LinkID)
		}
		if event.Country != "Germany" || event.City != "Berlin" {
			t.Errorf("event geo = %q/%q, want Germany/Berlin", event.Country, event.City)
		}
		if event.DeviceType != model.DeviceMobile {
			t.Errorf("event.DeviceType = %q, want mobile", event.DeviceType)
		}
		if event.IsBot {
			t.Error("event.IsBot = true for a human user agent")
		}
		if event.ClickedAt.IsZero() {
			t.Error("event.ClickedAt not set")
		}
		if len(counter.codes) != 1 || counter.codes[0] != "abc123" {
			t.Errorf("counter codes = %v, want [abc123]", counter.codes)
		}
		if len(store.touchedIDs) != 1 || store.touchedIDs[0] != 42 {
			t.Errorf("touched ids = %v, want [42]", store.touchedIDs)
		}
	})

	t.Run("bot click is recorded with is_bot set", func(t *testing.T) {
		store := &mockEventStore{}
		counter := &mockCounter{}
		r := NewRecorder(store, counter, &mockGeo{}, newTestClassifier(), false)

		rc := humanContext()
		rc.UserAgent = "Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)"
		r.Record(context.Background(), 7, "botcode", rc)

		if store.insertCalls != 1 {
			t.Fatalf("insert called %d times, want 1", store.insertCalls)
		}
		if !store.events[0].IsBot {
			t.Error("event.IsBot = false for a known bot user agent")
		}
	})

	t.Run("bot click does not bump the counter by default", func(t *testing.T) {
		store := &mockEventStore{}
		counter := &mockCounter{}
		r := NewRecorder(store, counter, &mockGeo{}, newTestClassifier(), false)

		rc := humanContext()
		rc.UserAgent = "curl/8.4.0"
		r.Record(context.Background(), 7, "botcode", rc)

		if len(counter.codes) != 0 {
			t.Errorf("counter codes = %v, want none for bot click", counter.codes)
		}
	})

	t.Run("bot click bumps the counter when counting bots", func(t *testing.T) {
		store := &mockEventStore{}
		counter := &mockCounter{}
		r := NewRecorder(store, counter, &mockGeo{}, newTestClassifier(), true)

		rc := humanContext()
		rc.UserAgent = "curl/8.4.0"
		r.Record(context.Background(), 7, "botcode", rc)

		if len(counter.codes) != 1 {
			t.Errorf("counter codes = %v, want one entry", counter.codes)
		}
	})

	t.Run("geo failure leaves geography empty but still records", func(t *testing.T) {
		store := &mockEventStore{}
		counter := &mockCounter{}
		g := &mockGeo{
			lookupFunc: func(ctx context.Context, ip string) (geo.Location, error) {
				return geo.Location{}, errors.New("lookup timeout")
			},
		}
		r := NewRecorder(store, counter, g, newTestClassifier(), false)

		r.Record(context.Background(), 42, "abc123", humanContext())

		if store.insertCalls != 1 {
			t.Fatalf("insert called %d times, want 1", store.insertCalls)
		}
		event := store.events[0]
		if event.Country != "" || event.Region != "" || event.City != "" {
			t.Errorf("event geo = %q/%q/%q, want empty", event.Country, event.Region, event.City)
		}
	})

	t.Run("persistence failure is swallowed", func(t *testing.T) {
		store := &mockEventStore{
			insertFunc: func(ctx context.Context, event *model.ClickEvent) error {
				return errors.New("db down")
			},
		}
		counter := &mockCounter{}
		r := NewRecorder(store, counter, &mockGeo{}, newTestClassifier(), false)

		// Must not panic or propagate; the redirect already happened.
		r.Record(context.Background(), 42, "abc123", humanContext())

		if len(counter.codes) != 1 {
			t.Errorf("counter not bumped after insert failure, codes = %v", counter.codes)
		}
	})
}
