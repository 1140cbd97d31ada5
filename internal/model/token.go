package model

import (
	"fmt"
	"time"
)

// RefreshSession models a row in `refresh_sessions`. Only the SHA-256 hash
// of the opaque token is stored. A session is usable iff IsActive and
// ExpiresAt is in the future; both conditions are required.
type RefreshSession struct {
	ID        uint64    // refresh_sessions.id
	AccountID uint64    // refresh_sessions.account_id
	TokenHash string    // refresh_sessions.token_hash
	IsActive  bool      // refresh_sessions.is_active
	ExpiresAt time.Time // refresh_sessions.expires_at
	CreatedAt time.Time // refresh_sessions.created_at
}

// Usable reports whether the session may still mint access tokens at now.
func (s RefreshSession) Usable(now time.Time) bool {
	return s.IsActive && now.Before(s.ExpiresAt)
}

// TokenKind selects which single-use token table a row lives in. The set is
// closed; both kinds share one shape and one consumption routine.
type TokenKind int

const (
	EmailVerification TokenKind = iota + 1
	PasswordReset
)

// Table returns the backing table for the kind.
func (k TokenKind) Table() (string, error) {
	switch k {
	case EmailVerification:
		return "email_verification_tokens", nil
	case PasswordReset:
		return "password_reset_tokens", nil
	}
	return "", fmt.Errorf("unknown token kind %d", int(k))
}

func (k TokenKind) String() string {
	switch k {
	case EmailVerification:
		return "email_verification"
	case PasswordReset:
		return "password_reset"
	}
	return "unknown"
}

// SingleUseToken models a row in one of the single-use token tables.
type SingleUseToken struct {
	ID         uint64
	AccountID  uint64
	TokenHash  string
	IsActive   bool
	IsVerified bool
	ExpiresAt  time.Time
	CreatedAt  time.Time
}
