// Package codegen produces unique short codes and validates custom aliases.
// The store's unique constraint remains the authority; the generator only
// probes optimistically to keep retries cheap.
package codegen

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
)

const codeAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

const (
	MinCodeLength     = 3
	MaxCodeLength     = 50
	DefaultCodeLength = 6
	DefaultMaxRetries = 5
)

var (
	ErrInvalidAlias = errors.New("invalid alias")
	ErrAliasTaken   = errors.New("alias already taken")
	ErrGenExhausted = errors.New("short code generation exhausted")
)

// UniquenessChecker reports whether a candidate code is already occupied by
// any existing short_code or custom_alias.
type UniquenessChecker interface {
	CodeInUse(ctx context.Context, code string) (bool, error)
}

type Generator struct {
	checker    UniquenessChecker
	length     int
	maxRetries int
}

func NewGenerator(checker UniquenessChecker, length, maxRetries int) *Generator {
	if length < MinCodeLength || length > MaxCodeLength {
		length = DefaultCodeLength
	}
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	return &Generator{checker: checker, length: length, maxRetries: maxRetries}
}

// Generate returns a code that was unoccupied at probe time. With a custom
// alias it validates and probes once; otherwise it draws random codes with a
// bounded retry. Exhausting the retries signals a systemic problem, not bad
// luck.
func (g *Generator) Generate(ctx context.Context, customAlias string) (string, error) {
	if customAlias != "" {
		if err := ValidateAlias(customAlias); err != nil {
			return "", err
		}
		taken, err := g.checker.CodeInUse(ctx, customAlias)
		if err != nil {
			return "", fmt.Errorf("failed to check alias: %w", err)
		}
		if taken {
			return "", ErrAliasTaken
		}
		return customAlias, nil
	}

	for i := 0; i < g.maxRetries; i++ {
		code, err := randomCode(g.length)
		if err != nil {
			return "", fmt.Errorf("failed to draw random code: %w", err)
		}
		taken, err := g.checker.CodeInUse(ctx, code)
		if err != nil {
			return "", fmt.Errorf("failed to check code: %w", err)
		}
		if !taken {
			return code, nil
		}
	}

	return "", ErrGenExhausted
}

// ValidateAlias enforces the code charset and length rules shared by
// generated codes and custom aliases.
func ValidateAlias(alias string) error {
	if len(alias) < MinCodeLength {
		return fmt.Errorf("%w: too short (minimum %d characters)", ErrInvalidAlias, MinCodeLength)
	}
	if len(alias) > MaxCodeLength {
		return fmt.Errorf("%w: too long (maximum %d characters)", ErrInvalidAlias, MaxCodeLength)
	}
	for _, c := range alias {
		if !isCodeChar(c) {
			return fmt.Errorf("%w: only alphanumeric, dash and underscore allowed", ErrInvalidAlias)
		}
	}
	return nil
}

func isCodeChar(c rune) bool {
	switch {
	case c >= 'a' && c <= 'z':
		return true
	case c >= 'A' && c <= 'Z':
		return true
	case c >= '0' && c <= '9':
		return true
	case c == '-' || c == '_':
		return true
	default:
		return false
	}
}

func randomCode(length int) (string, error) {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	for i := range b {
		b[i] = codeAlphabet[int(b[i])%len(codeAlphabet)]
	}
	return string(b), nil
}
