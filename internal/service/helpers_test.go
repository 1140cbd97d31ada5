package service

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/account-authority/internal/utils"
)

// plainHasher keeps tests fast; bcrypt has its own tests in utils.
type plainHasher struct{}

func (plainHasher) Hash(p string) (string, error) { return "h:" + p, nil }
func (plainHasher) Verify(p, h string) bool       { return h == "h:"+p }

type sentMail struct {
	Kind  string
	Email string
	Token string
}

// fakeMailer records hand-offs. Sent waits for in-flight dispatches first.
type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
	wait func()
}

func (m *fakeMailer) record(kind, email, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{kind, email, token})
	return m.err
}

func (m *fakeMailer) SendVerification(_ context.Context, email, token string) error {
	return m.record("verification", email, token)
}

func (m *fakeMailer) SendPasswordReset(_ context.Context, email, token string) error {
	return m.record("reset", email, token)
}

func (m *fakeMailer) Sent() []sentMail {
	if m.wait != nil {
		m.wait()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentMail(nil), m.sent...)
}

// capture is a sqlmock argument matcher that records the value it sees.
type capture struct{ v string }

func (c *capture) Match(v driver.Value) bool {
	s, ok := v.(string)
	c.v = s
	return ok
}

type fixture struct {
	db       *sql.DB
	mock     sqlmock.Sqlmock
	tokens   *utils.TokenIssuer
	mailer   *fakeMailer
	sessions *Sessions
	verifier *Verifier
	prov     *Provisioner
	accounts *Accounts
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	tokens, err := utils.NewTokenIssuer("test-secret", "authority-test", time.Hour)
	require.NoError(t, err)

	f := &fixture{db: db, mock: mock, tokens: tokens, mailer: &fakeMailer{}}
	f.sessions = NewSessions(db, tokens, plainHasher{}, 7*24*time.Hour, nil)
	f.verifier = NewVerifier(db, plainHasher{}, f.mailer, 24*time.Hour, 24*time.Hour, nil)
	f.mailer.wait = f.verifier.Wait
	f.prov = NewProvisioner(db, nil, plainHasher{}, f.sessions, f.verifier, nil)
	f.accounts = NewAccounts(db, nil)
	return f
}

var accountCols = strings.Split("id,role_id,name,email,password_hash,dob,address,is_active,is_verified,created_at,updated_at", ",")

func accountRow(id uint64, email string, active, verified bool) *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows(accountCols).AddRow(
		id, 4, "Alice", email, "h:correct horse", time.Date(1990, 1, 2, 0, 0, 0, 0, time.UTC),
		"1 Main St", active, verified, now, now)
}

func claimsRow(id uint64, email string, roleID uint8, role string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "email", "role_id", "name"}).AddRow(id, email, roleID, role)
}

func singleUseRow(accountID uint64, hash string) *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows([]string{"id", "account_id", "token_hash", "is_active", "is_verified", "expires_at", "created_at"}).
		AddRow(1, accountID, hash, true, false, now.Add(time.Hour), now)
}

func sessionRow(accountID uint64, hash string) *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows([]string{"id", "account_id", "token_hash", "is_active", "expires_at", "created_at"}).
		AddRow(3, accountID, hash, true, now.Add(24*time.Hour), now)
}

var errStore = errors.New("store unavailable")
