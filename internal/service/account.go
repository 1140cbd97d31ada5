package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/account-authority/internal/model"
	"github.com/iliyamo/account-authority/internal/repository"
)

// Accounts serves reads and plain profile edits. Callers act on their own
// account; staff roles may act on any account.
type Accounts struct {
	db  *sql.DB
	log *zap.Logger
}

func NewAccounts(db *sql.DB, log *zap.Logger) *Accounts {
	if log == nil {
		log = zap.NewNop()
	}
	return &Accounts{db: db, log: log}
}

// Profile is the editable part of an account.
type Profile struct {
	Name    string
	DOB     time.Time
	Address string
}

func authorize(actor model.AccessClaims, id uint64) error {
	if actor.AccountID == id || actor.Role.IsStaff() {
		return nil
	}
	return &Error{Kind: KindForbidden, Message: "forbidden"}
}

// authorizeChange extends authorize for writes: staff may only change
// accounts whose role they could assign.
func (a *Accounts) authorizeChange(ctx context.Context, actor model.AccessClaims, id uint64) error {
	if err := authorize(actor, id); err != nil {
		return err
	}
	if actor.AccountID == id || actor.Role == model.RoleSystemAdmin {
		return nil
	}
	target, err := repository.NewAccountRepo(a.db).Claims(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return notFound("account not found")
	}
	if err != nil {
		return internal(err)
	}
	if !CanAssign(actor.Role, target.Role) {
		return &Error{Kind: KindForbidden, Message: "forbidden"}
	}
	return nil
}

// Get returns account id. Inactive accounts are visible to staff only.
func (a *Accounts) Get(ctx context.Context, actor model.AccessClaims, id uint64) (model.Account, error) {
	if err := authorize(actor, id); err != nil {
		return model.Account{}, err
	}
	acct, err := repository.NewAccountRepo(a.db).FindByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) || (err == nil && !acct.IsActive && !actor.Role.IsStaff()) {
		return model.Account{}, notFound("account not found")
	}
	if err != nil {
		return model.Account{}, internal(err)
	}
	return acct, nil
}

// UpdateProfile replaces name, date of birth and address.
func (a *Accounts) UpdateProfile(ctx context.Context, actor model.AccessClaims, id uint64, p Profile) error {
	if err := a.authorizeChange(ctx, actor, id); err != nil {
		return err
	}
	p.Name = strings.TrimSpace(p.Name)
	p.Address = strings.TrimSpace(p.Address)
	if err := validation.ValidateStruct(&p,
		validation.Field(&p.Name, validation.Required, validation.Length(1, 120)),
		validation.Field(&p.DOB, validation.Required),
		validation.Field(&p.Address, validation.Required, validation.Length(1, 255)),
	); err != nil {
		return badRequest("invalid profile", err)
	}
	err := repository.NewAccountRepo(a.db).UpdateProfile(ctx, id, p.Name, p.DOB, p.Address)
	if errors.Is(err, repository.ErrNotFound) {
		return notFound("account not found")
	}
	return internal(err)
}

// Deactivate soft-deletes account id. Its refresh sessions stop working
// because refresh only serves active accounts.
func (a *Accounts) Deactivate(ctx context.Context, actor model.AccessClaims, id uint64) error {
	if err := a.authorizeChange(ctx, actor, id); err != nil {
		return err
	}
	err := repository.NewAccountRepo(a.db).Deactivate(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return notFound("account not found")
	}
	if err != nil {
		return internal(err)
	}
	a.log.Info("account deactivated", zap.Uint64("account_id", id), zap.Uint64("by", actor.AccountID))
	return nil
}

// CanAssign reports whether actor may provision an account with role.
// Only SYSTEMADMIN may create another SYSTEMADMIN.
func CanAssign(actor model.RoleName, role model.RoleName) bool {
	if !actor.IsStaff() {
		return false
	}
	return role != model.RoleSystemAdmin || actor == model.RoleSystemAdmin
}
