package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/account-authority/internal/database"
	"github.com/iliyamo/account-authority/internal/model"
)

// SessionRepo persists refresh sessions. Rows are keyed by the SHA-256 hash
// of the opaque token; a new login inserts a new row rather than renewing
// an old one.
type SessionRepo struct{ Q database.Querier }

func NewSessionRepo(q database.Querier) *SessionRepo { return &SessionRepo{Q: q} }

// Create inserts an active refresh session row.
func (r *SessionRepo) Create(ctx context.Context, accountID uint64, tokenHash string, exp time.Time) (uint64, error) {
	res, err := r.Q.ExecContext(ctx,
		"INSERT INTO refresh_sessions (account_id, token_hash, is_active, expires_at) VALUES (?,?,1,?)",
		accountID, tokenHash, exp.UTC())
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// FindActive returns the session for tokenHash if it is active and
// unexpired at now. Unknown, revoked and expired all yield ErrNotFound.
func (r *SessionRepo) FindActive(ctx context.Context, tokenHash string, now time.Time) (model.RefreshSession, error) {
	var s model.RefreshSession
	err := r.Q.QueryRowContext(ctx,
		`SELECT id, account_id, token_hash, is_active, expires_at, created_at
		   FROM refresh_sessions
		  WHERE token_hash = ? AND is_active = 1 AND expires_at > ?
		  LIMIT 1`,
		tokenHash, now.UTC()).Scan(&s.ID, &s.AccountID, &s.TokenHash, &s.IsActive, &s.ExpiresAt, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.RefreshSession{}, ErrNotFound
	}
	if err != nil {
		return model.RefreshSession{}, err
	}
	if !s.Usable(now) {
		return model.RefreshSession{}, ErrNotFound
	}
	return s, nil
}

// Deactivate marks the session for tokenHash inactive in a single
// conditional update. A token that is unknown, already inactive or expired
// matches no row and yields ErrNotFound.
func (r *SessionRepo) Deactivate(ctx context.Context, tokenHash string, now time.Time) error {
	res, err := r.Q.ExecContext(ctx,
		"UPDATE refresh_sessions SET is_active = 0 WHERE token_hash = ? AND is_active = 1 AND expires_at > ?",
		tokenHash, now.UTC())
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
