// Package resolver decides what happens when someone hits a short code:
// redirect, not found, gone, password gate, rate limit or metadata preview.
// It owns the read-through caching policy and dispatches click recording off
// the response path.
package resolver

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/jack/golang-shortlink-service/internal/background"
	"github.com/jack/golang-shortlink-service/internal/model"
	"github.com/jack/golang-shortlink-service/internal/ratelimit"
	"github.com/jack/golang-shortlink-service/internal/repository"
)

// Status is the terminal outcome of one resolution. Outcomes are mutually
// exclusive; exactly one applies per request.
type Status int

const (
	StatusRedirect Status = iota
	StatusNotFound
	StatusGone
	StatusPasswordRequired
	StatusRateLimited
	StatusPreview
)

func (s Status) String() string {
	switch s {
	case StatusRedirect:
		return "redirect"
	case StatusNotFound:
		return "not_found"
	case StatusGone:
		return "gone"
	case StatusPasswordRequired:
		return "password_required"
	case StatusRateLimited:
		return "rate_limited"
	case StatusPreview:
		return "preview"
	default:
		return "unknown"
	}
}

// Resolution is the typed outcome handed to the HTTP layer. Link is set for
// Redirect and Preview only.
type Resolution struct {
	Status Status
	Link   *model.ShortLink
}

// Store is the authoritative short-link lookup. A missing code must surface
// as repository.ErrLinkNotFound; any other error is infrastructure failure
// and propagates.
type Store interface {
	GetLinkByCode(ctx context.Context, code string) (*model.ShortLink, error)
}

// Cache is the read-through resolution cache. GetLink returns
// (nil, true, nil) for a tombstone and (nil, false, nil) for a miss.
type Cache interface {
	GetLink(ctx context.Context, code string) (*model.ShortLink, bool, error)
	SetLink(ctx context.Context, link *model.ShortLink) error
	SetTombstone(ctx context.Context, code string) error
}

// Limiter guards redirect attempts per code and client. Its failures are
// treated as fail-open.
type Limiter interface {
	CheckAndIncrement(ctx context.Context, key string) (ratelimit.Result, error)
}

// Recorder captures click analytics. Record runs on the background scheduler,
// never on the response path.
type Recorder interface {
	Record(ctx context.Context, linkID int64, code string, rc model.RequestContext)
	IsBot(userAgent string) bool
}

type Resolver struct {
	store        Store
	cache        Cache
	limiter      Limiter
	recorder     Recorder
	scheduler    background.Scheduler
	cacheTimeout time.Duration
	redirectBots bool
}

type Options struct {
	CacheTimeout time.Duration
	RedirectBots bool
}

func New(store Store, cache Cache, limiter Limiter, recorder Recorder, scheduler background.Scheduler, opts Options) *Resolver {
	if opts.CacheTimeout <= 0 {
		opts.CacheTimeout = 50 * time.Millisecond
	}
	return &Resolver{
		store:        store,
		cache:        cache,
		limiter:      limiter,
		recorder:     recorder,
		scheduler:    scheduler,
		cacheTimeout: opts.CacheTimeout,
		redirectBots: opts.RedirectBots,
	}
}

// Resolve runs the resolution state machine for one request. The returned
// error is infrastructure failure on the authoritative read path only; it is
// never a stand-in for NotFound.
func (r *Resolver) Resolve(ctx context.Context, code string, rc model.RequestContext) (Resolution, error) {
	if res, ok := r.checkRate(ctx, code, rc); !ok {
		return res, nil
	}

	link, outcome, err := r.lookup(ctx, code)
	if err != nil {
		return Resolution{}, err
	}
	if outcome != nil {
		return *outcome, nil
	}

	if !link.IsResolvable() {
		return Resolution{Status: StatusGone}, nil
	}

	if rc.Preview {
		return Resolution{Status: StatusPreview, Link: link}, nil
	}

	if link.HasPassword() {
		if rc.Password == "" {
			return Resolution{Status: StatusPasswordRequired}, nil
		}
		if bcrypt.CompareHashAndPassword([]byte(*link.PasswordHash), []byte(rc.Password)) != nil {
			log.Warn().Str("code", code).Str("client", rc.ClientKey).
				Msg("password verification failed for gated link")
			return Resolution{Status: StatusPasswordRequired}, nil
		}
	}

	r.scheduleRecord(link.ID, code, rc)

	// Bot requests are recorded either way; whether they get the redirect is
	// policy. Denied bots see NotFound so crawlers learn nothing.
	if !r.redirectBots && r.recorder.IsBot(rc.UserAgent) {
		return Resolution{Status: StatusNotFound}, nil
	}

	return Resolution{Status: StatusRedirect, Link: link}, nil
}

// checkRate applies the per-code, per-client quota. Limiter errors fail open:
// redirect availability beats strict quota enforcement.
func (r *Resolver) checkRate(ctx context.Context, code string, rc model.RequestContext) (Resolution, bool) {
	result, err := r.limiter.CheckAndIncrement(ctx, "redirect:"+code+":"+rc.ClientKey)
	if err != nil {
		log.Error().Err(err).Str("code", code).Msg("rate limiter unavailable, failing open")
		return Resolution{}, true
	}
	if result.Exceeded {
		return Resolution{Status: StatusRateLimited}, false
	}
	return Resolution{}, true
}

// lookup reads through the cache to the store, repopulating opportunistically.
// Cache failures of any kind degrade to a miss; only store failures escape.
func (r *Resolver) lookup(ctx context.Context, code string) (*model.ShortLink, *Resolution, error) {
	cacheCtx, cancel := context.WithTimeout(ctx, r.cacheTimeout)
	link, tombstone, err := r.cache.GetLink(cacheCtx, code)
	cancel()
	if err != nil {
		log.Warn().Err(err).Str("code", code).Msg("cache read failed, treating as miss")
		link, tombstone = nil, false
	}

	if tombstone {
		return nil, &Resolution{Status: StatusNotFound}, nil
	}
	if link != nil {
		return link, nil, nil
	}

	link, err = r.store.GetLinkByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrLinkNotFound) {
			r.putTombstone(ctx, code)
			return nil, &Resolution{Status: StatusNotFound}, nil
		}
		return nil, nil, err
	}

	r.putLink(ctx, link)
	return link, nil, nil
}

func (r *Resolver) putLink(ctx context.Context, link *model.ShortLink) {
	cacheCtx, cancel := context.WithTimeout(ctx, r.cacheTimeout)
	defer cancel()
	if err := r.cache.SetLink(cacheCtx, link); err != nil {
		log.Warn().Err(err).Str("code", link.ShortCode).Msg("cache write failed")
	}
}

func (r *Resolver) putTombstone(ctx context.Context, code string) {
	cacheCtx, cancel := context.WithTimeout(ctx, r.cacheTimeout)
	defer cancel()
	if err := r.cache.SetTombstone(cacheCtx, code); err != nil {
		log.Warn().Err(err).Str("code", code).Msg("tombstone write failed")
	}
}

// scheduleRecord hands the click to the background scheduler. The recorder's
// latency and failures are invisible to the redirect by construction.
func (r *Resolver) scheduleRecord(linkID int64, code string, rc model.RequestContext) {
	r.scheduler.Submit("record-click", func(ctx context.Context) {
		r.recorder.Record(ctx, linkID, code, rc)
	})
}
