package model

import (
	"testing"
	"time"
)

func TestIsResolvable(t *testing.T) {
	future := time.Now().Add(time.Hour)
	past := time.Now().Add(-time.Hour)

	tests := []struct {
		name string
		link ShortLink
		want bool
	}{
		{"active without expiry", ShortLink{IsActive: true}, true},
		{"active with future expiry", ShortLink{IsActive: true, ExpiresAt: &future}, true},
		{"active but expired", ShortLink{IsActive: true, ExpiresAt: &past}, false},
		{"inactive", ShortLink{IsActive: false}, false},
		{"inactive and expired", ShortLink{IsActive: false, ExpiresAt: &past}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.link.IsResolvable(); got != tt.want {
				t.Errorf("IsResolvable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHasPassword(t *testing.T) {
	hash := "$2a$10$abcdefghijklmnopqrstuv"
	empty := ""

	tests := []struct {
		name string
		link ShortLink
		want bool
	}{
		{"no hash", ShortLink{}, false},
		{"empty hash", ShortLink{PasswordHash: &empty}, false},
		{"hash set", ShortLink{PasswordHash: &hash}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.link.HasPassword(); got != tt.want {
				t.Errorf("HasPassword() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLinkPatchIsZero(t *testing.T) {
	title := "t"

	tests := []struct {
		name  string
		patch LinkPatch
		want  bool
	}{
		{"empty", LinkPatch{}, true},
		{"title set", LinkPatch{Title: &title}, false},
		{"clear expiry", LinkPatch{ClearExpiry: true}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.patch.IsZero(); got != tt.want {
				t.Errorf("IsZero() = %v, want %v", got, tt.want)
			}
		})
	}
}
