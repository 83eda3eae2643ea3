// Package clicks turns raw request context into persisted ClickEvents.
// Recording is best-effort by contract: nothing here may fail or delay the
// redirect the click came from.
package clicks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/jack/golang-shortlink-service/internal/geo"
	"github.com/jack/golang-shortlink-service/internal/model"
)

// EventStore persists click events and the analytics side of the link row.
type EventStore interface {
	InsertClickEvent(ctx context.Context, event *model.ClickEvent) error
	TouchLastAccessed(ctx context.Context, id int64) error
}

// Counter accumulates click counts off the write-heavy path; the sync
// scheduler flushes them to the store later.
type Counter interface {
	IncrementPendingClicks(ctx context.Context, code string) error
}

type Recorder struct {
	store      EventStore
	counter    Counter
	geo        geo.Resolver
	classifier *Classifier
	countBots  bool
}

func NewRecorder(store EventStore, counter Counter, geoResolver geo.Resolver, classifier *Classifier, countBots bool) *Recorder {
	return &Recorder{
		store:      store,
		counter:    counter,
		geo:        geoResolver,
		classifier: classifier,
		countBots:  countBots,
	}
}

// Record builds and persists one ClickEvent. Bot clicks are always recorded
// with is_bot=true so no data is silently dropped; whether they count toward
// click_count is configuration. Every failure is logged and swallowed.
func (r *Recorder) Record(ctx context.Context, linkID int64, code string, rc model.RequestContext) {
	isBot := r.classifier.IsBot(rc.UserAgent)

	event := &model.ClickEvent{
		ID:         uuid.New(),
		LinkID:     linkID,
		IPAddress:  rc.IPAddress,
		UserAgent:  rc.UserAgent,
		Referer:    rc.Referer,
		DeviceType: r.classifier.DeviceType(rc.UserAgent),
		Browser:    r.classifier.Browser(rc.UserAgent),
		OS:         r.classifier.OS(rc.UserAgent),
		IsBot:      isBot,
		// Recording time, not request time: async delay must not skew the
		// timestamp semantics.
		ClickedAt: time.Now().UTC(),
	}

	loc, err := r.geo.Lookup(ctx, rc.IPAddress)
	if err != nil {
		log.Debug().Err(err).Str("ip", rc.IPAddress).Msg("geo lookup failed")
	} else {
		event.Country = loc.Country
		event.Region = loc.Region
		event.City = loc.City
	}

	if err := r.store.InsertClickEvent(ctx, event); err != nil {
		log.Error().Err(err).Int64("link_id", linkID).Msg("failed to record click")
	}

	if err := r.store.TouchLastAccessed(ctx, linkID); err != nil {
		log.Error().Err(err).Int64("link_id", linkID).Msg("failed to touch last accessed")
	}

	if !isBot || r.countBots {
		if err := r.counter.IncrementPendingClicks(ctx, code); err != nil {
			log.Error().Err(err).Str("code", code).Msg("failed to increment pending clicks")
		}
	}
}

// IsBot exposes bot classification to the resolver for the redirect policy.
func (r *Recorder) IsBot(userAgent string) bool {
	return r.classifier.IsBot(userAgent)
}
