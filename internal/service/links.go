// Package service implements the write path for short links: creation,
// typed-patch updates, deletion and stats. Every mutation invalidates the
// resolution cache before it is acknowledged to the caller.
package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/jack/golang-shortlink-service/internal/config"
	"github.com/jack/golang-shortlink-service/internal/model"
)

const (
	maxURLLength         = 2048
	maxTitleLength       = 255
	maxDescriptionLength = 1024
)

var (
	ErrInvalidURL    = errors.New("invalid url")
	ErrInvalidExpiry = errors.New("invalid expiry")
	ErrValidation    = errors.New("validation failed")
	ErrEmptyPatch    = errors.New("patch changes nothing")
)

// LinkStore is the durable side of the write path.
type LinkStore interface {
	CreateLink(ctx context.Context, link *model.ShortLink) (*model.ShortLink, error)
	GetLinkByID(ctx context.Context, id, ownerID int64) (*model.ShortLink, error)
	GetLinkByCode(ctx context.Context, code string) (*model.ShortLink, error)
	UpdateLink(ctx context.Context, id, ownerID int64, patch *model.LinkPatch) (*model.ShortLink, error)
	DeleteLink(ctx context.Context, id, ownerID int64) error
}

// LinkCache is the slice of the resolution cache the write path touches:
// warming after create and invalidating on every mutation. The write path
// never writes tombstones.
type LinkCache interface {
	SetLink(ctx context.Context, link *model.ShortLink) error
	InvalidateLink(ctx context.Context, code string) error
}

// PendingCounter exposes unflushed click counts for stats reads.
type PendingCounter interface {
	GetPendingClicks(ctx context.Context, code string) (int64, error)
}

// CodeGenerator produces a unique short code or validates a custom alias.
type CodeGenerator interface {
	Generate(ctx context.Context, customAlias string) (string, error)
}

type LinkService struct {
	store   LinkStore
	cache   LinkCache
	counter PendingCounter
	codegen CodeGenerator
	baseURL string
}

func NewLinkService(store LinkStore, cache LinkCache, counter PendingCounter, gen CodeGenerator, cfg *config.Config) *LinkService {
	return &LinkService{
		store:   store,
		cache:   cache,
		counter: counter,
		codegen: gen,
		baseURL: cfg.App.BaseURL,
	}
}

// CreateLink validates the request, reserves a code and persists the link.
// ownerID is nil for anonymous links.
func (s *LinkService) CreateLink(ctx context.Context, req *model.CreateLinkRequest, ownerID *int64) (*model.CreateLinkResponse, error) {
	if err := validateURL(req.URL); err != nil {
		return nil, err
	}
	if len(req.Title) > maxTitleLength {
		return nil, fmt.Errorf("%w: title too long (max %d)", ErrValidation, maxTitleLength)
	}
	if len(req.Description) > maxDescriptionLength {
		return nil, fmt.Errorf("%w: description too long (max %d)", ErrValidation, maxDescriptionLength)
	}

	expiresAt, err := parseExpiry(req.ExpiresAt, req.ExpiresIn)
	if err != nil {
		return nil, err
	}

	var passwordHash *string
	if req.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
		h := string(hash)
		passwordHash = &h
	}

	code, err := s.codegen.Generate(ctx, req.CustomAlias)
	if err != nil {
		return nil, err
	}

	link := &model.ShortLink{
		ShortCode:    code,
		OriginalURL:  req.URL,
		Title:        req.Title,
		Description:  req.Description,
		OwnerID:      ownerID,
		PasswordHash: passwordHash,
		IsPublic:     req.IsPublic,
		ExpiresAt:    expiresAt,
	}
	if req.CustomAlias != "" {
		alias := req.CustomAlias
		link.CustomAlias = &alias
	}

	created, err := s.store.CreateLink(ctx, link)
	if err != nil {
		return nil, err
	}

	// Warm the cache so the first resolution skips the store. Best-effort.
	if err := s.cache.SetLink(ctx, created); err != nil {
		log.Warn().Err(err).Str("code", created.ShortCode).Msg("cache warm failed after create")
	}

	resp := &model.CreateLinkResponse{
		ID:          created.ID,
		ShortCode:   created.ShortCode,
		ShortURL:    s.baseURL + "/" + created.ShortCode,
		OriginalURL: created.OriginalURL,
	}
	if created.ExpiresAt != nil {
		resp.ExpiresAt = created.ExpiresAt.Format(time.RFC3339)
	}

	return resp, nil
}

// UpdateLink applies a typed patch for the owner and invalidates the cached
// entry before acknowledging.
func (s *LinkService) UpdateLink(ctx context.Context, id, ownerID int64, patch *model.LinkPatch) (*model.ShortLink, error) {
	if patch.IsZero() {
		return nil, ErrEmptyPatch
	}
	if patch.Title != nil && len(*patch.Title) > maxTitleLength {
		return nil, fmt.Errorf("%w: title too long (max %d)", ErrValidation, maxTitleLength)
	}
	if patch.Description != nil && len(*patch.Description) > maxDescriptionLength {
		return nil, fmt.Errorf("%w: description too long (max %d)", ErrValidation, maxDescriptionLength)
	}
	if patch.ExpiresAt != nil {
		if patch.ClearExpiry {
			return nil, fmt.Errorf("%w: cannot set and clear expiry together", ErrInvalidExpiry)
		}
		if !patch.ExpiresAt.After(time.Now()) {
			return nil, fmt.Errorf("%w: expiry must be in the future", ErrInvalidExpiry)
		}
	}

	updated, err := s.store.UpdateLink(ctx, id, ownerID, patch)
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, updated.ShortCode)

	return updated, nil
}

// DeleteLink removes the link and invalidates the cached entry before
// acknowledging. The code becomes reusable by future creations.
func (s *LinkService) DeleteLink(ctx context.Context, id, ownerID int64) error {
	link, err := s.store.GetLinkByID(ctx, id, ownerID)
	if err != nil {
		return err
	}

	if err := s.store.DeleteLink(ctx, id, ownerID); err != nil {
		return err
	}

	s.invalidate(ctx, link.ShortCode)

	return nil
}

// GetStats merges the persisted click count with clicks still pending in the
// counter so readings are near real-time.
func (s *LinkService) GetStats(ctx context.Context, code string) (*model.LinkStatsResponse, error) {
	link, err := s.store.GetLinkByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	pending, err := s.counter.GetPendingClicks(ctx, link.ShortCode)
	if err != nil {
		log.Warn().Err(err).Str("code", code).Msg("failed to read pending clicks")
		pending = 0
	}

	resp := &model.LinkStatsResponse{
		ShortCode:    link.ShortCode,
		OriginalURL:  link.OriginalURL,
		Title:        link.Title,
		ClickCount:   link.ClickCount + pending,
		CreatedAt:    link.CreatedAt,
		LastAccessed: link.LastAccessed,
		IsActive:     link.IsActive,
	}
	if link.ExpiresAt != nil {
		resp.ExpiresAt = link.ExpiresAt.Format(time.RFC3339)
	}

	return resp, nil
}

// invalidate drops the cached entry. A failure here only widens the
// staleness window to the cache TTL, so it is logged, not propagated.
func (s *LinkService) invalidate(ctx context.Context, code string) {
	if err := s.cache.InvalidateLink(ctx, code); err != nil {
		log.Error().Err(err).Str("code", code).Msg("cache invalidation failed")
	}
}

func validateURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("%w: url cannot be empty", ErrInvalidURL)
	}
	if len(rawURL) > maxURLLength {
		return fmt.Errorf("%w: url too long (max %d characters)", ErrInvalidURL, maxURLLength)
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: malformed url", ErrInvalidURL)
	}
	switch strings.ToLower(parsed.Scheme) {
	case "http", "https":
	default:
		return fmt.Errorf("%w: scheme must be http or https", ErrInvalidURL)
	}
	if parsed.Host == "" {
		return fmt.Errorf("%w: url must include host", ErrInvalidURL)
	}

	return nil
}

// parseExpiry accepts an absolute RFC3339 timestamp or a relative duration.
// Durations accept a day suffix ("7d") on top of time.ParseDuration units.
func parseExpiry(expiresAt, expiresIn string) (*time.Time, error) {
	if expiresAt != "" && expiresIn != "" {
		return nil, fmt.Errorf("%w: provide expires_at or expires_in, not both", ErrInvalidExpiry)
	}

	if expiresAt != "" {
		t, err := time.Parse(time.RFC3339, expiresAt)
		if err != nil {
			return nil, fmt.Errorf("%w: expires_at must be RFC3339", ErrInvalidExpiry)
		}
		if !t.After(time.Now()) {
			return nil, fmt.Errorf("%w: expiry must be in the future", ErrInvalidExpiry)
		}
		return &t, nil
	}

	if expiresIn != "" {
		d, err := parseDuration(expiresIn)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidExpiry, err)
		}
		if d <= 0 {
			return nil, fmt.Errorf("%w: expires_in must be positive", ErrInvalidExpiry)
		}
		t := time.Now().Add(d)
		return &t, nil
	}

	return nil, nil
}

func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("empty duration")
	}

	// time.ParseDuration stops at hours; "7d" is common enough to support.
	if strings.HasSuffix(s, "d") {
		var days int
		if _, err := fmt.Sscanf(s[:len(s)-1], "%d", &days); err != nil {
			return 0, err
		}
		return time.Duration(days) * 24 * time.Hour, nil
	}

	return time.ParseDuration(s)
}
