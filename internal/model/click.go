package model

import (
	"time"

	"github.com/google/uuid"
)

// Device classification buckets. Unknown is reserved for user agents the
// token lists say nothing about; in practice classification defaults to
// desktop when no signal is present.
const (
	DeviceDesktop = "desktop"
	DeviceMobile  = "mobile"
	DeviceTablet  = "tablet"
	DeviceTV      = "tv"
	DeviceUnknown = "unknown"
)

// ClickEvent is an append-only analytics record for one resolution.
type ClickEvent struct {
	ID         uuid.UUID `json:"id"`
	LinkID     int64     `json:"link_id"`
	IPAddress  string    `json:"ip_address"`
	UserAgent  string    `json:"user_agent"`
	Referer    string    `json:"referer"`
	Country    string    `json:"country,omitempty"`
	Region     string    `json:"region,omitempty"`
	City       string    `json:"city,omitempty"`
	DeviceType string    `json:"device_type"`
	Browser    string    `json:"browser,omitempty"`
	OS         string    `json:"os,omitempty"`
	IsBot      bool      `json:"is_bot"`
	ClickedAt  time.Time `json:"clicked_at"`
}

// RequestContext is the slice of an inbound request the resolver and the
// click recorder care about. The HTTP layer builds it; the core never touches
// gin directly.
type RequestContext struct {
	IPAddress string
	UserAgent string
	Referer   string
	// ClientKey identifies the caller for rate limiting, normally the client IP.
	ClientKey string
	// Password is the credential supplied for password-gated links, if any.
	Password string
	// Preview requests metadata only: no redirect, no click recorded.
	Preview bool
}
