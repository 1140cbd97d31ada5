package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/account-authority/internal/database"
	"github.com/iliyamo/account-authority/internal/model"
)

// mysqlDuplicateEntry is the server error number for unique key violations.
const mysqlDuplicateEntry = 1062

const accountColumns = "id, role_id, name, email, password_hash, dob, address, is_active, is_verified, created_at, updated_at"

type AccountRepo struct{ Q database.Querier }

func NewAccountRepo(q database.Querier) *AccountRepo { return &AccountRepo{Q: q} }

// NormalizeEmail is the canonical form stored in accounts.email.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Create inserts an active, unverified account and returns its ID. A
// duplicate email surfaces as ErrEmailExists whichever concurrent insert
// lost the race.
func (r *AccountRepo) Create(ctx context.Context, roleID uint8, a model.NewAccount, passwordHash string) (uint64, error) {
	res, err := r.Q.ExecContext(ctx,
		`INSERT INTO accounts (role_id, name, email, password_hash, dob, address, is_active, is_verified)
		 VALUES (?,?,?,?,?,?,1,0)`,
		roleID, strings.TrimSpace(a.Name), NormalizeEmail(a.Email), passwordHash, a.DOB, strings.TrimSpace(a.Address))
	if err != nil {
		if isDuplicate(err) {
			return 0, ErrEmailExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// FindByEmail fetches an account by case-insensitive email, active or not.
func (r *AccountRepo) FindByEmail(ctx context.Context, email string) (model.Account, error) {
	return r.scanOne(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE email = ? LIMIT 1",
		NormalizeEmail(email))
}

// FindByID fetches an account by id, active or not.
func (r *AccountRepo) FindByID(ctx context.Context, id uint64) (model.Account, error) {
	return r.scanOne(ctx, "SELECT "+accountColumns+" FROM accounts WHERE id = ? LIMIT 1", id)
}

// Claims loads the identity embedded in access tokens for an active account.
func (r *AccountRepo) Claims(ctx context.Context, id uint64) (model.AccessClaims, error) {
	var (
		c    model.AccessClaims
		role string
	)
	err := r.Q.QueryRowContext(ctx,
		`SELECT a.id, a.email, r.id, r.name
		   FROM accounts a
		   JOIN roles r ON r.id = a.role_id
		  WHERE a.id = ? AND a.is_active = 1
		  LIMIT 1`, id).Scan(&c.AccountID, &c.Email, &c.RoleID, &role)
	if errors.Is(err, sql.ErrNoRows) {
		return model.AccessClaims{}, ErrNotFound
	}
	if err != nil {
		return model.AccessClaims{}, err
	}
	c.Role = model.RoleName(role)
	return c, nil
}

// MarkVerified flips is_verified for an active account.
func (r *AccountRepo) MarkVerified(ctx context.Context, id uint64) error {
	return r.execOne(ctx, "UPDATE accounts SET is_verified = 1 WHERE id = ? AND is_active = 1", id)
}

// UpdatePassword stores a new password hash for an active account.
func (r *AccountRepo) UpdatePassword(ctx context.Context, id uint64, passwordHash string) error {
	return r.execOne(ctx, "UPDATE accounts SET password_hash = ? WHERE id = ? AND is_active = 1", passwordHash, id)
}

// UpdateProfile changes the descriptive fields of an active account.
func (r *AccountRepo) UpdateProfile(ctx context.Context, id uint64, name string, dob time.Time, address string) error {
	return r.execOne(ctx,
		"UPDATE accounts SET name = ?, dob = ?, address = ? WHERE id = ? AND is_active = 1",
		strings.TrimSpace(name), dob, strings.TrimSpace(address), id)
}

// Deactivate soft-deletes an account. Deactivating an inactive or unknown
// account returns ErrNotFound.
func (r *AccountRepo) Deactivate(ctx context.Context, id uint64) error {
	return r.execOne(ctx, "UPDATE accounts SET is_active = 0 WHERE id = ? AND is_active = 1", id)
}

func (r *AccountRepo) scanOne(ctx context.Context, query string, args ...any) (model.Account, error) {
	var a model.Account
	err := r.Q.QueryRowContext(ctx, query, args...).Scan(
		&a.ID, &a.RoleID, &a.Name, &a.Email, &a.PasswordHash, &a.DOB, &a.Address,
		&a.IsActive, &a.IsVerified, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Account{}, ErrNotFound
	}
	return a, err
}

// execOne runs an UPDATE that must match exactly one row. The DSN sets
// clientFoundRows, so unchanged-but-matched rows still count.
func (r *AccountRepo) execOne(ctx context.Context, query string, args ...any) error {
	res, err := r.Q.ExecContext(ctx, query, args...)
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

func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}
