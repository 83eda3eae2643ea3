package model

import (
	"time"
)

// ShortLink is the canonical short code to URL mapping.
type ShortLink struct {
	ID           int64      `json:"id"`
	ShortCode    string     `json:"short_code"`
	CustomAlias  *string    `json:"custom_alias,omitempty"`
	OriginalURL  string     `json:"original_url"`
	Title        string     `json:"title,omitempty"`
	Description  string     `json:"description,omitempty"`
	OwnerID      *int64     `json:"owner_id,omitempty"`
	PasswordHash *string    `json:"-"`
	IsActive     bool       `json:"is_active"`
	IsPublic     bool       `json:"is_public"`
	ClickCount   int64      `json:"click_count"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	LastAccessed *time.Time `json:"last_accessed_at,omitempty"`
}

// IsExpired reports whether the link's expiry has passed.
func (l *ShortLink) IsExpired() bool {
	if l.ExpiresAt == nil {
		return false
	}
	return !time.Now().Before(*l.ExpiresAt)
}

// IsResolvable reports whether the link may still serve redirects.
func (l *ShortLink) IsResolvable() bool {
	return l.IsActive && !l.IsExpired()
}

// HasPassword reports whether a credential gates this link.
func (l *ShortLink) HasPassword() bool {
	return l.PasswordHash != nil && *l.PasswordHash != ""
}

// LinkPatch is a typed partial update for a ShortLink. Nil fields are left
// untouched; ClearExpiry removes an existing expiry.
type LinkPatch struct {
	Title       *string    `json:"title,omitempty"`
	Description *string    `json:"description,omitempty"`
	IsActive    *bool      `json:"is_active,omitempty"`
	IsPublic    *bool      `json:"is_public,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	ClearExpiry bool       `json:"clear_expiry,omitempty"`
}

// IsZero reports whether the patch changes nothing.
func (p *LinkPatch) IsZero() bool {
	return p.Title == nil && p.Description == nil && p.IsActive == nil &&
		p.IsPublic == nil && p.ExpiresAt == nil && !p.ClearExpiry
}

// CreateLinkRequest is the body for POST /api/v1/links.
type CreateLinkRequest struct {
	URL         string `json:"url" binding:"required"`
	CustomAlias string `json:"custom_alias,omitempty"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Password    string `json:"password,omitempty"`
	IsPublic    bool   `json:"is_public,omitempty"`
	ExpiresAt   string `json:"expires_at,omitempty"` // RFC3339
	ExpiresIn   string `json:"expires_in,omitempty"` // e.g. "24h", "7d"
}

// CreateLinkResponse is returned after creating a short link.
type CreateLinkResponse struct {
	ID          int64  `json:"id"`
	ShortCode   string `json:"short_code"`
	ShortURL    string `json:"short_url"`
	OriginalURL string `json:"original_url"`
	ExpiresAt   string `json:"expires_at,omitempty"`
}

// LinkStatsResponse merges persisted and pending click counts.
type LinkStatsResponse struct {
	ShortCode    string     `json:"short_code"`
	OriginalURL  string     `json:"original_url"`
	Title        string     `json:"title,omitempty"`
	ClickCount   int64      `json:"click_count"`
	CreatedAt    time.Time  `json:"created_at"`
	LastAccessed *time.Time `json:"last_accessed_at,omitempty"`
	ExpiresAt    string     `json:"expires_at,omitempty"`
	IsActive     bool       `json:"is_active"`
}
