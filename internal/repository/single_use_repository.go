package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/account-authority/internal/database"
	"github.com/iliyamo/account-authority/internal/model"
)

// SingleUseRepo reads and writes one of the single-use token tables. The
// table is chosen from a closed TokenKind, never from caller text.
type SingleUseRepo struct {
	Q     database.Querier
	table string
}

// NewSingleUseRepo binds a repository to the table backing kind.
func NewSingleUseRepo(q database.Querier, kind model.TokenKind) (*SingleUseRepo, error) {
	table, err := kind.Table()
	if err != nil {
		return nil, err
	}
	return &SingleUseRepo{Q: q, table: table}, nil
}

// Create inserts an active, unverified token row for accountID.
func (r *SingleUseRepo) Create(ctx context.Context, accountID uint64, tokenHash string, exp time.Time) error {
	_, err := r.Q.ExecContext(ctx,
		"INSERT INTO "+r.table+" (account_id, token_hash, is_active, is_verified, expires_at) VALUES (?,?,1,0,?)",
		accountID, tokenHash, exp.UTC())
	return err
}

// FindActiveForUpdate locks and returns the active, unexpired row for
// tokenHash. Concurrent consumers of the same token serialize on the lock,
// so only one of them sees the row before it is deleted.
func (r *SingleUseRepo) FindActiveForUpdate(ctx context.Context, tokenHash string, now time.Time) (model.SingleUseToken, error) {
	var t model.SingleUseToken
	err := r.Q.QueryRowContext(ctx,
		"SELECT id, account_id, token_hash, is_active, is_verified, expires_at, created_at FROM "+r.table+
			" WHERE token_hash = ? AND is_active = 1 AND expires_at > ? LIMIT 1 FOR UPDATE",
		tokenHash, now.UTC()).Scan(&t.ID, &t.AccountID, &t.TokenHash, &t.IsActive, &t.IsVerified, &t.ExpiresAt, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.SingleUseToken{}, ErrNotFound
	}
	if err != nil {
		return model.SingleUseToken{}, err
	}
	return t, nil
}

// MarkVerified sets is_verified on every row owned by accountID.
func (r *SingleUseRepo) MarkVerified(ctx context.Context, accountID uint64) error {
	_, err := r.Q.ExecContext(ctx, "UPDATE "+r.table+" SET is_verified = 1 WHERE account_id = ?", accountID)
	return err
}

// DeleteForAccount removes every row owned by accountID, including
// still-active sibling tokens issued for the same purpose.
func (r *SingleUseRepo) DeleteForAccount(ctx context.Context, accountID uint64) (int64, error) {
	res, err := r.Q.ExecContext(ctx, "DELETE FROM "+r.table+" WHERE account_id = ?", accountID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
