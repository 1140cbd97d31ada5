package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/account-authority/internal/database"
	"github.com/iliyamo/account-authority/internal/obs"
	"github.com/iliyamo/account-authority/internal/repository"
	"github.com/iliyamo/account-authority/internal/utils"
)

// TokenPair is what a new session hands back to the client.
type TokenPair struct {
	AccountID        uint64
	Email            string
	AccessToken      utils.AccessToken
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// Sessions issues, refreshes and revokes refresh sessions. Refresh tokens
// are not rotated: one token keeps minting access tokens until it is
// revoked or expires.
type Sessions struct {
	db         *sql.DB
	tokens     *utils.TokenIssuer
	hasher     utils.PasswordHasher
	refreshTTL time.Duration
	now        func() time.Time
	log        *zap.Logger
}

func NewSessions(db *sql.DB, tokens *utils.TokenIssuer, hasher utils.PasswordHasher, refreshTTL time.Duration, log *zap.Logger) *Sessions {
	if log == nil {
		log = zap.NewNop()
	}
	return &Sessions{db: db, tokens: tokens, hasher: hasher, refreshTTL: refreshTTL, now: time.Now, log: log}
}

// IssueTx creates a session for accountID on q, which is normally the
// caller's open transaction. Nothing is committed here.
func (s *Sessions) IssueTx(ctx context.Context, q database.Querier, accountID uint64) (TokenPair, error) {
	claims, err := repository.NewAccountRepo(q).Claims(ctx, accountID)
	if err != nil {
		return TokenPair{}, internal(err)
	}
	access, err := s.tokens.Sign(claims)
	if err != nil {
		return TokenPair{}, internal(err)
	}
	refresh, err := utils.NewOpaqueToken(utils.RefreshTokenBytes, s.refreshTTL)
	if err != nil {
		return TokenPair{}, internal(err)
	}
	if _, err := repository.NewSessionRepo(q).Create(ctx, accountID, refresh.Hash, refresh.Exp); err != nil {
		return TokenPair{}, internal(err)
	}
	obs.SessionsIssued.Inc()
	return TokenPair{
		AccountID:        accountID,
		Email:            claims.Email,
		AccessToken:      access,
		RefreshToken:     refresh.Raw,
		RefreshExpiresAt: refresh.Exp,
	}, nil
}

// Issue creates a session in its own transaction.
func (s *Sessions) Issue(ctx context.Context, accountID uint64) (TokenPair, error) {
	var pair TokenPair
	err := database.WithTx(ctx, s.db, func(tx *database.Tx) error {
		var err error
		pair, err = s.IssueTx(ctx, tx, accountID)
		return err
	})
	if err != nil {
		return TokenPair{}, internal(err)
	}
	return pair, nil
}

// Login checks credentials against an active account and opens a new
// session. Unknown email, inactive account and wrong password are
// indistinguishable to the caller.
func (s *Sessions) Login(ctx context.Context, email, password string) (pair TokenPair, err error) {
	defer func() { obs.Logins.WithLabelValues(obs.Outcome(err)).Inc() }()

	if err := validateEmail(email); err != nil {
		return TokenPair{}, err
	}
	if password == "" {
		return TokenPair{}, badRequest("password is required", nil)
	}
	acct, err := repository.NewAccountRepo(s.db).FindByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return TokenPair{}, unauthorized(msgInvalidCredentials)
	}
	if err != nil {
		return TokenPair{}, internal(err)
	}
	if !acct.IsActive || !s.hasher.Verify(password, acct.PasswordHash) {
		return TokenPair{}, unauthorized(msgInvalidCredentials)
	}
	return s.Issue(ctx, acct.ID)
}

// Refresh mints a new access token from an active, unexpired refresh token
// whose account is still active. The refresh token itself is unchanged.
func (s *Sessions) Refresh(ctx context.Context, raw string) (tok utils.AccessToken, err error) {
	defer func() { obs.Refreshes.WithLabelValues(obs.Outcome(err)).Inc() }()

	if raw == "" {
		return utils.AccessToken{}, unauthorized(msgInvalidToken)
	}
	sess, err := repository.NewSessionRepo(s.db).FindActive(ctx, utils.HashToken(raw), s.now())
	if errors.Is(err, repository.ErrNotFound) {
		return utils.AccessToken{}, unauthorized(msgInvalidToken)
	}
	if err != nil {
		return utils.AccessToken{}, internal(err)
	}
	claims, err := repository.NewAccountRepo(s.db).Claims(ctx, sess.AccountID)
	if errors.Is(err, repository.ErrNotFound) {
		return utils.AccessToken{}, unauthorized(msgInvalidToken)
	}
	if err != nil {
		return utils.AccessToken{}, internal(err)
	}
	tok, err = s.tokens.Sign(claims)
	if err != nil {
		return utils.AccessToken{}, internal(err)
	}
	return tok, nil
}

// Revoke deactivates a refresh token with a single conditional update.
// Unknown, already revoked and expired tokens all fail Unauthorized.
func (s *Sessions) Revoke(ctx context.Context, raw string) (err error) {
	defer func() { obs.Revocations.WithLabelValues(obs.Outcome(err)).Inc() }()

	if raw == "" {
		return unauthorized(msgInvalidToken)
	}
	err = repository.NewSessionRepo(s.db).Deactivate(ctx, utils.HashToken(raw), s.now())
	if errors.Is(err, repository.ErrNotFound) {
		return unauthorized(msgInvalidToken)
	}
	if err != nil {
		return internal(err)
	}
	return nil
}
