package utils // package utils provides helper functions for token creation and hashing

import (
	"crypto/rand"   // secure random number generation
	"crypto/sha256" // SHA‑256 hashing for stored opaque tokens
	"encoding/hex"  // hex encoding and decoding functions
	"errors"
	"fmt"
	"strconv"
	"time" // time utilities for generating expirations

	"github.com/golang-jwt/jwt/v5" // JWT library for creating signed tokens

	"github.com/iliyamo/account-authority/internal/model"
)

const (
	// RefreshTokenBytes is the entropy of a refresh token (128 hex chars).
	RefreshTokenBytes = 64
	// SingleUseTokenBytes is the entropy of verification and reset tokens.
	SingleUseTokenBytes = 32
)

// ErrInvalidToken is returned for any access token that fails signature,
// algorithm, issuer or expiry checks. Callers never learn which check failed.
var ErrInvalidToken = errors.New("invalid token")

// ErrMissingSecret is returned when an issuer is built without a secret.
var ErrMissingSecret = errors.New("jwt secret is not configured")

// AccessToken represents a signed JWT access token along with its expiry.
type AccessToken struct {
	Token string    // the serialized JWT string
	Exp   time.Time // the UTC expiration time
}

// OpaqueToken is a random credential returned to the client once. Only
// Hash is persisted.
type OpaqueToken struct {
	Raw  string    // value handed to the client
	Hash string    // SHA‑256 hex digest stored in the database
	Exp  time.Time // UTC expiration time
}

// accessClaims is the JWT payload: registered claims plus identity fields.
type accessClaims struct {
	AccountID uint64 `json:"account_id"`
	Email     string `json:"email"`
	RoleID    uint8  `json:"role_id"`
	Role      string `json:"role"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies HS256 access tokens. It holds no mutable
// state and is safe for concurrent use.
type TokenIssuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer builds an issuer. An empty secret is a configuration error.
func NewTokenIssuer(secret, issuer string, ttl time.Duration) (*TokenIssuer, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &TokenIssuer{secret: []byte(secret), issuer: issuer, ttl: ttl, now: time.Now}, nil
}

// WithClock returns a copy of the issuer that reads time from fn.
func (t *TokenIssuer) WithClock(fn func() time.Time) *TokenIssuer {
	cp := *t
	cp.now = fn
	return &cp
}

// TTL is the lifetime of tokens produced by Sign.
func (t *TokenIssuer) TTL() time.Duration { return t.ttl }

// Sign builds and signs an access token for the given identity. IssuedAt
// and ExpiresAt on the input are ignored and recomputed.
func (t *TokenIssuer) Sign(c model.AccessClaims) (AccessToken, error) {
	if c.AccountID == 0 {
		return AccessToken{}, errors.New("account id is required")
	}
	now := t.now().UTC()
	exp := now.Add(t.ttl)
	claims := accessClaims{
		AccountID: c.AccountID,
		Email:     c.Email,
		RoleID:    c.RoleID,
		Role:      string(c.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.issuer,
			Subject:   strconv.FormatUint(c.AccountID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return AccessToken{}, fmt.Errorf("sign access token: %w", err)
	}
	return AccessToken{Token: signed, Exp: exp}, nil
}

// Verify checks signature, algorithm, issuer and expiry and returns the
// embedded identity.
func (t *TokenIssuer) Verify(raw string) (*model.AccessClaims, error) {
	if raw == "" {
		return nil, ErrInvalidToken
	}
	var claims accessClaims
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(t.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(t.now),
	)
	tok, err := parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	})
	if err != nil || !tok.Valid {
		return nil, ErrInvalidToken
	}
	if claims.IssuedAt == nil || claims.ExpiresAt == nil {
		return nil, ErrInvalidToken
	}
	if claims.AccountID == 0 || claims.Subject != strconv.FormatUint(claims.AccountID, 10) {
		return nil, ErrInvalidToken
	}
	role, ok := model.ParseRoleName(claims.Role)
	if !ok {
		return nil, ErrInvalidToken
	}
	return &model.AccessClaims{
		AccountID: claims.AccountID,
		Email:     claims.Email,
		RoleID:    claims.RoleID,
		Role:      role,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// NewOpaqueToken returns a cryptographically secure random token of n bytes
// (hex encoded), its storage hash and an expiry ttl from now.
func NewOpaqueToken(n int, ttl time.Duration) (OpaqueToken, error) {
	raw, err := randomHex(n)
	if err != nil {
		return OpaqueToken{}, err
	}
	return OpaqueToken{
		Raw:  raw,
		Hash: HashToken(raw),
		Exp:  time.Now().UTC().Add(ttl),
	}, nil
}

// HashToken returns the SHA‑256 hash of a raw opaque token as a hex string.
// Storing only the hash prevents a leaked table from yielding usable tokens.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// randomHex returns a hex‑encoded string generated from n bytes of
// cryptographically secure random data.
func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
