package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/iliyamo/account-authority/internal/cache"
	"github.com/iliyamo/account-authority/internal/database"
	"github.com/iliyamo/account-authority/internal/model"
	"github.com/iliyamo/account-authority/internal/obs"
	"github.com/iliyamo/account-authority/internal/repository"
	"github.com/iliyamo/account-authority/internal/utils"
)

// Provisioned is the outcome of a successful CreateAccount.
type Provisioned struct {
	TokenPair
	Role model.RoleName
}

// Provisioner creates accounts atomically with their role, first
// verification token and first session.
type Provisioner struct {
	db       *sql.DB
	roles    *cache.Roles
	hasher   utils.PasswordHasher
	sessions *Sessions
	verifier *Verifier
	log      *zap.Logger
}

func NewProvisioner(db *sql.DB, roles *cache.Roles, hasher utils.PasswordHasher, sessions *Sessions, verifier *Verifier, log *zap.Logger) *Provisioner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Provisioner{db: db, roles: roles, hasher: hasher, sessions: sessions, verifier: verifier, log: log}
}

// CreateAccount provisions candidate with role in one READ COMMITTED
// transaction. Either the account, its verification token and its refresh
// session all exist afterwards or none do. The verification email is sent
// only after commit and its failure does not affect the result.
func (p *Provisioner) CreateAccount(ctx context.Context, candidate model.NewAccount, role model.RoleName) (out Provisioned, err error) {
	defer func() { obs.Provisioned.WithLabelValues(obs.Outcome(err)).Inc() }()

	candidate = normalizeCandidate(candidate)
	if err := validateCandidate(candidate); err != nil {
		return Provisioned{}, err
	}
	role, ok := model.ParseRoleName(string(role))
	if !ok {
		return Provisioned{}, badRequest("unknown role", nil)
	}

	err = database.WithTx(ctx, p.db, func(tx *database.Tx) error {
		accounts := repository.NewAccountRepo(tx)

		_, err := accounts.FindByEmail(ctx, candidate.Email)
		if err == nil {
			return conflict(msgAccountExists)
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return err
		}

		r, err := p.roles.Resolve(ctx, role, repository.NewRoleRepo(tx).FindByName)
		if err != nil {
			// Seeded reference data; absence is a deployment fault.
			return fmt.Errorf("resolve role %s: %w", role, err)
		}

		digest, err := p.hasher.Hash(candidate.Password)
		if err != nil {
			return err
		}

		id, err := accounts.Create(ctx, r.ID, candidate, digest)
		if errors.Is(err, repository.ErrEmailExists) {
			return conflict(msgAccountExists)
		}
		if err != nil {
			return err
		}

		vt, err := p.verifier.IssueTx(ctx, tx, model.EmailVerification, id)
		if err != nil {
			return err
		}
		email := repository.NormalizeEmail(candidate.Email)
		tx.OnCommit(func() { p.verifier.dispatch(ctx, model.EmailVerification, email, vt.Raw) })

		pair, err := p.sessions.IssueTx(ctx, tx, id)
		if err != nil {
			return err
		}
		out = Provisioned{TokenPair: pair, Role: r.Name}
		return nil
	})
	if err != nil {
		return Provisioned{}, internal(err)
	}
	p.log.Info("account provisioned",
		zap.Uint64("account_id", out.AccountID), zap.String("role", string(out.Role)))
	return out, nil
}
