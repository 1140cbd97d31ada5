package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/account-authority/internal/model"
	"github.com/iliyamo/account-authority/internal/service"
	"github.com/iliyamo/account-authority/internal/utils"
)

type fakeProvisioner struct {
	gotRole model.RoleName
	gotCand model.NewAccount
	err     error
}

func (f *fakeProvisioner) CreateAccount(_ context.Context, cand model.NewAccount, role model.RoleName) (service.Provisioned, error) {
	f.gotRole, f.gotCand = role, cand
	if f.err != nil {
		return service.Provisioned{}, f.err
	}
	return service.Provisioned{
		TokenPair: service.TokenPair{
			AccountID:    42,
			Email:        strings.ToLower(cand.Email),
			AccessToken:  utils.AccessToken{Token: "access", Exp: time.Now().Add(time.Hour)},
			RefreshToken: "refresh",
		},
		Role: role,
	}, nil
}

type fakeSessions struct {
	refreshErr error
	revokeErr  error
}

func (f *fakeSessions) Login(context.Context, string, string) (service.TokenPair, error) {
	return service.TokenPair{}, &service.Error{Kind: service.KindUnauthorized, Message: "invalid credentials"}
}

func (f *fakeSessions) Refresh(_ context.Context, raw string) (utils.AccessToken, error) {
	if f.refreshErr != nil {
		return utils.AccessToken{}, f.refreshErr
	}
	return utils.AccessToken{Token: "new-access-for-" + raw}, nil
}

func (f *fakeSessions) Revoke(context.Context, string) error { return f.revokeErr }

type fakeTokens struct{ resetErr error }

func (f *fakeTokens) VerifyEmail(context.Context, string) (uint64, error) { return 42, nil }
func (f *fakeTokens) ResendVerification(context.Context, string) error     { return nil }
func (f *fakeTokens) InitiatePasswordReset(context.Context, string) error  { return f.resetErr }
func (f *fakeTokens) ResetPassword(context.Context, string, string) error  { return nil }

func call(h echo.HandlerFunc, method, body string, setup ...func(echo.Context)) *httptest.ResponseRecorder {
	e := echo.New()
	req := httptest.NewRequest(method, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	for _, fn := range setup {
		fn(c)
	}
	_ = h(c)
	return rec
}

func TestRegisterCreatesCustomer(t *testing.T) {
	prov := &fakeProvisioner{}
	h := NewAuthHandler(prov, &fakeSessions{}, &fakeTokens{}, nil)

	rec := call(h.Register, http.MethodPost,
		`{"name":"Alice","email":"Alice@example.com","password":"pw","dob":"1990-01-02","address":"1 Main St"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, model.RoleCustomer, prov.gotRole)
	assert.Equal(t, time.Date(1990, 1, 2, 0, 0, 0, 0, time.UTC), prov.gotCand.DOB)

	var body authResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, uint64(42), body.Account.ID)
	assert.Equal(t, "refresh", body.Refresh.Token)
}

func TestRegisterRejectsBadInputBeforeService(t *testing.T) {
	prov := &fakeProvisioner{}
	h := NewAuthHandler(prov, &fakeSessions{}, &fakeTokens{}, nil)

	for _, body := range []string{
		`{`,
		`{"name":"A","email":"nope","password":"pw","dob":"1990-01-02","address":"x"}`,
		`{"name":"A","email":"a@b.co","password":"pw","dob":"02/01/1990","address":"x"}`,
		`{"email":"a@b.co","password":"pw","dob":"1990-01-02","address":"x"}`,
	} {
		rec := call(h.Register, http.MethodPost, body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
	assert.Empty(t, prov.gotRole, "service must not be called")
}

func TestServiceErrorsMapToStatus(t *testing.T) {
	cases := map[service.Kind]int{
		service.KindBadRequest:   http.StatusBadRequest,
		service.KindUnauthorized: http.StatusUnauthorized,
		service.KindForbidden:    http.StatusForbidden,
		service.KindConflict:     http.StatusConflict,
		service.KindNotFound:     http.StatusNotFound,
		service.KindInternal:     http.StatusInternalServerError,
	}
	for kind, status := range cases {
		assert.Equal(t, status, StatusOf(&service.Error{Kind: kind}), kind.String())
	}
	assert.Equal(t, http.StatusInternalServerError, StatusOf(errors.New("raw")))
}

func TestRegisterConflictMessage(t *testing.T) {
	prov := &fakeProvisioner{err: &service.Error{Kind: service.KindConflict, Message: "account already exists"}}
	h := NewAuthHandler(prov, &fakeSessions{}, &fakeTokens{}, nil)

	rec := call(h.Register, http.MethodPost,
		`{"name":"Alice","email":"alice@example.com","password":"pw","dob":"1990-01-02","address":"1 Main St"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.JSONEq(t, `{"error":"account already exists"}`, rec.Body.String())
}

func TestInternalErrorsDoNotLeakCause(t *testing.T) {
	sessions := &fakeSessions{refreshErr: &service.Error{Kind: service.KindInternal, Message: "internal error", Err: errors.New("dial tcp 10.0.0.3:3306")}}
	h := NewAuthHandler(&fakeProvisioner{}, sessions, &fakeTokens{}, nil)

	rec := call(h.Refresh, http.MethodPost, `{"refresh_token":"abc"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "10.0.0.3")
}

func TestRefreshAndRevoke(t *testing.T) {
	sessions := &fakeSessions{}
	h := NewAuthHandler(&fakeProvisioner{}, sessions, &fakeTokens{}, nil)

	rec := call(h.Refresh, http.MethodPost, `{"refresh_token":" abc "}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "new-access-for-abc")

	assert.Equal(t, http.StatusBadRequest, call(h.Refresh, http.MethodPost, `{}`).Code)
	assert.Equal(t, http.StatusNoContent, call(h.Revoke, http.MethodPost, `{"refresh_token":"abc"}`).Code)

	sessions.revokeErr = &service.Error{Kind: service.KindUnauthorized, Message: "invalid or expired token"}
	assert.Equal(t, http.StatusUnauthorized, call(h.Revoke, http.MethodPost, `{"refresh_token":"abc"}`).Code)
}

func TestPasswordResetRequestUnknownEmailIs404(t *testing.T) {
	tokens := &fakeTokens{resetErr: &service.Error{Kind: service.KindNotFound, Message: "account not found"}}
	h := NewAuthHandler(&fakeProvisioner{}, &fakeSessions{}, tokens, nil)

	rec := call(h.RequestPasswordReset, http.MethodPost, `{"email":"bob@example.com"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLoginFailureIs401(t *testing.T) {
	h := NewAuthHandler(&fakeProvisioner{}, &fakeSessions{}, &fakeTokens{}, nil)
	rec := call(h.Login, http.MethodPost, `{"email":"a@b.co","password":"x"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"invalid credentials"}`, rec.Body.String())
}
