package service

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/account-authority/internal/database"
	"github.com/iliyamo/account-authority/internal/model"
	"github.com/iliyamo/account-authority/internal/obs"
	"github.com/iliyamo/account-authority/internal/repository"
	"github.com/iliyamo/account-authority/internal/utils"
)

// DefaultMailTimeout bounds a single email hand-off.
const DefaultMailTimeout = 5 * time.Second

// Verifier issues and consumes single-use tokens. Both kinds go through
// the same consumption routine; only the backing table differs.
type Verifier struct {
	db          *sql.DB
	hasher      utils.PasswordHasher
	mailer      Mailer
	verifyTTL   time.Duration
	resetTTL    time.Duration
	mailTimeout time.Duration
	now         func() time.Time
	log         *zap.Logger

	inflight sync.WaitGroup
}

func NewVerifier(db *sql.DB, hasher utils.PasswordHasher, mailer Mailer, verifyTTL, resetTTL time.Duration, log *zap.Logger) *Verifier {
	if log == nil {
		log = zap.NewNop()
	}
	if mailer == nil {
		mailer = LogMailer{Log: log}
	}
	return &Verifier{
		db:          db,
		hasher:      hasher,
		mailer:      mailer,
		verifyTTL:   verifyTTL,
		resetTTL:    resetTTL,
		mailTimeout: DefaultMailTimeout,
		now:         time.Now,
		log:         log,
	}
}

// Wait blocks until every queued email hand-off has finished.
func (v *Verifier) Wait() { v.inflight.Wait() }

// ConsumeTx validates raw against the kind's table on q and, when it is
// active and unexpired, marks the owner's rows verified and deletes them
// all. It returns the owning account id. Any failure to find a usable
// row is Unauthorized with a generic message.
func (v *Verifier) ConsumeTx(ctx context.Context, q database.Querier, kind model.TokenKind, raw string) (accountID uint64, err error) {
	defer func() { obs.TokensConsumed.WithLabelValues(kind.String(), obs.Outcome(err)).Inc() }()

	repo, err := repository.NewSingleUseRepo(q, kind)
	if err != nil {
		return 0, internal(err)
	}
	if raw == "" {
		return 0, unauthorized(msgInvalidToken)
	}
	tok, err := repo.FindActiveForUpdate(ctx, utils.HashToken(raw), v.now())
	if errors.Is(err, repository.ErrNotFound) {
		return 0, unauthorized(msgInvalidToken)
	}
	if err != nil {
		return 0, internal(err)
	}
	if err := repo.MarkVerified(ctx, tok.AccountID); err != nil {
		return 0, internal(err)
	}
	if _, err := repo.DeleteForAccount(ctx, tok.AccountID); err != nil {
		return 0, internal(err)
	}
	return tok.AccountID, nil
}

// Consume runs ConsumeTx in its own transaction.
func (v *Verifier) Consume(ctx context.Context, kind model.TokenKind, raw string) (uint64, error) {
	var id uint64
	err := database.WithTx(ctx, v.db, func(tx *database.Tx) error {
		var err error
		id, err = v.ConsumeTx(ctx, tx, kind, raw)
		return err
	})
	if err != nil {
		return 0, internal(err)
	}
	return id, nil
}

// VerifyEmail consumes a verification token and marks its account
// verified in the same transaction.
func (v *Verifier) VerifyEmail(ctx context.Context, raw string) (uint64, error) {
	var id uint64
	err := database.WithTx(ctx, v.db, func(tx *database.Tx) error {
		var err error
		if id, err = v.ConsumeTx(ctx, tx, model.EmailVerification, raw); err != nil {
			return err
		}
		return accountGone(repository.NewAccountRepo(tx).MarkVerified(ctx, id))
	})
	if err != nil {
		return 0, internal(err)
	}
	v.log.Info("email verified", zap.Uint64("account_id", id))
	return id, nil
}

// ResetPassword consumes a reset token and stores the new password digest
// in the same transaction.
func (v *Verifier) ResetPassword(ctx context.Context, raw, newPassword string) error {
	if err := validatePassword(newPassword); err != nil {
		return err
	}
	digest, err := v.hasher.Hash(newPassword)
	if err != nil {
		return internal(err)
	}
	var id uint64
	err = database.WithTx(ctx, v.db, func(tx *database.Tx) error {
		var err error
		if id, err = v.ConsumeTx(ctx, tx, model.PasswordReset, raw); err != nil {
			return err
		}
		return accountGone(repository.NewAccountRepo(tx).UpdatePassword(ctx, id, digest))
	})
	if err != nil {
		return internal(err)
	}
	v.log.Info("password reset", zap.Uint64("account_id", id))
	return nil
}

// InitiatePasswordReset stores a reset token for the account behind email
// and queues the email for after commit. Unknown emails fail NotFound
// without writing anything.
func (v *Verifier) InitiatePasswordReset(ctx context.Context, email string) error {
	if err := validateEmail(email); err != nil {
		return err
	}
	err := database.WithTx(ctx, v.db, func(tx *database.Tx) error {
		acct, err := repository.NewAccountRepo(tx).FindByEmail(ctx, email)
		if errors.Is(err, repository.ErrNotFound) || (err == nil && !acct.IsActive) {
			return notFound("account not found")
		}
		if err != nil {
			return err
		}
		tok, err := v.IssueTx(ctx, tx, model.PasswordReset, acct.ID)
		if err != nil {
			return err
		}
		tx.OnCommit(func() { v.dispatch(ctx, model.PasswordReset, acct.Email, tok.Raw) })
		return nil
	})
	return internal(err)
}

// ResendVerification issues a fresh verification token for an active,
// unverified account. Earlier tokens stay valid until one is consumed.
func (v *Verifier) ResendVerification(ctx context.Context, email string) error {
	if err := validateEmail(email); err != nil {
		return err
	}
	err := database.WithTx(ctx, v.db, func(tx *database.Tx) error {
		acct, err := repository.NewAccountRepo(tx).FindByEmail(ctx, email)
		if errors.Is(err, repository.ErrNotFound) || (err == nil && !acct.IsActive) {
			return notFound("account not found")
		}
		if err != nil {
			return err
		}
		if acct.IsVerified {
			return conflict("account already verified")
		}
		tok, err := v.IssueTx(ctx, tx, model.EmailVerification, acct.ID)
		if err != nil {
			return err
		}
		tx.OnCommit(func() { v.dispatch(ctx, model.EmailVerification, acct.Email, tok.Raw) })
		return nil
	})
	return internal(err)
}

// IssueTx inserts a new single-use token of kind for accountID on q.
func (v *Verifier) IssueTx(ctx context.Context, q database.Querier, kind model.TokenKind, accountID uint64) (utils.OpaqueToken, error) {
	repo, err := repository.NewSingleUseRepo(q, kind)
	if err != nil {
		return utils.OpaqueToken{}, err
	}
	ttl := v.verifyTTL
	if kind == model.PasswordReset {
		ttl = v.resetTTL
	}
	tok, err := utils.NewOpaqueToken(utils.SingleUseTokenBytes, ttl)
	if err != nil {
		return utils.OpaqueToken{}, err
	}
	if err := repo.Create(ctx, accountID, tok.Hash, tok.Exp); err != nil {
		return utils.OpaqueToken{}, err
	}
	return tok, nil
}

// dispatch hands a token to the mailer on its own goroutine, bounded by
// mailTimeout and detached from the request. It runs after commit, so
// failures are logged and counted but never reach the caller.
func (v *Verifier) dispatch(ctx context.Context, kind model.TokenKind, email, raw string) {
	v.inflight.Add(1)
	go func() {
		defer v.inflight.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), v.mailTimeout)
		defer cancel()

		var err error
		switch kind {
		case model.EmailVerification:
			err = v.mailer.SendVerification(ctx, email, raw)
		case model.PasswordReset:
			err = v.mailer.SendPasswordReset(ctx, email, raw)
		}
		if err != nil {
			obs.EmailDispatchFailures.WithLabelValues(kind.String()).Inc()
			v.log.Warn("email dispatch failed",
				zap.String("kind", kind.String()), zap.String("email", email), zap.Error(err))
		}
	}()
}

// accountGone maps a vanished or deactivated owner to the same generic
// token failure as a bad token.
func accountGone(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return unauthorized(msgInvalidToken)
	}
	return err
}
