package handler

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/account-authority/internal/middleware"
	"github.com/iliyamo/account-authority/internal/model"
	"github.com/iliyamo/account-authority/internal/service"
	"github.com/iliyamo/account-authority/internal/utils"
)

type fakeAccounts struct {
	gotID      uint64
	gotProfile service.Profile
}

func (f *fakeAccounts) Get(_ context.Context, _ model.AccessClaims, id uint64) (model.Account, error) {
	f.gotID = id
	return model.Account{ID: id, Email: "alice@example.com", DOB: time.Date(1990, 1, 2, 0, 0, 0, 0, time.UTC), IsActive: true}, nil
}

func (f *fakeAccounts) UpdateProfile(_ context.Context, _ model.AccessClaims, id uint64, p service.Profile) error {
	f.gotID, f.gotProfile = id, p
	return nil
}

func (f *fakeAccounts) Deactivate(_ context.Context, actor model.AccessClaims, id uint64) error {
	if actor.AccountID != id && !actor.Role.IsStaff() {
		return &service.Error{Kind: service.KindForbidden, Message: "forbidden"}
	}
	return nil
}

// authed routes the request through the real JWTAuth gate with a token
// signed for role.
func authed(t *testing.T, role model.RoleName, method, path, body string, register func(e *echo.Echo, mw echo.MiddlewareFunc)) (int, string) {
	t.Helper()
	iss, err := utils.NewTokenIssuer("handler-secret", "authority-test", time.Hour)
	require.NoError(t, err)
	tok, err := iss.Sign(model.AccessClaims{AccountID: 42, Email: "alice@example.com", RoleID: 4, Role: role})
	require.NoError(t, err)

	e := echo.New()
	register(e, middleware.JWTAuth(iss))

	req := newJSONRequest(method, path, body)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+tok.Token)
	rec := serve(e, req)
	return rec.Code, rec.Body.String()
}

func TestMeReturnsCallerAccount(t *testing.T) {
	accts := &fakeAccounts{}
	h := NewUserHandler(accts, &fakeProvisioner{}, nil)

	code, body := authed(t, model.RoleCustomer, http.MethodGet, "/v1/me", "", func(e *echo.Echo, mw echo.MiddlewareFunc) {
		e.GET("/v1/me", h.Me, mw)
	})
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, uint64(42), accts.gotID)
	assert.Contains(t, body, `"dob":"1990-01-02"`)
}

func TestUpdateParsesDOB(t *testing.T) {
	accts := &fakeAccounts{}
	h := NewUserHandler(accts, &fakeProvisioner{}, nil)

	code, _ := authed(t, model.RoleCustomer, http.MethodPut, "/v1/users/42",
		`{"name":"Alice B","dob":"1991-03-04","address":"2 Side St"}`,
		func(e *echo.Echo, mw echo.MiddlewareFunc) { e.PUT("/v1/users/:id", h.Update, mw) })
	require.Equal(t, http.StatusNoContent, code)
	assert.Equal(t, time.Date(1991, 3, 4, 0, 0, 0, 0, time.UTC), accts.gotProfile.DOB)
}

func TestDeleteOtherAccountForbiddenForCustomer(t *testing.T) {
	h := NewUserHandler(&fakeAccounts{}, &fakeProvisioner{}, nil)
	code, _ := authed(t, model.RoleCustomer, http.MethodDelete, "/v1/users/7", "",
		func(e *echo.Echo, mw echo.MiddlewareFunc) { e.DELETE("/v1/users/:id", h.Delete, mw) })
	assert.Equal(t, http.StatusForbidden, code)
}

func TestGetRejectsBadID(t *testing.T) {
	h := NewUserHandler(&fakeAccounts{}, &fakeProvisioner{}, nil)
	code, _ := authed(t, model.RoleAdmin, http.MethodGet, "/v1/users/abc", "",
		func(e *echo.Echo, mw echo.MiddlewareFunc) { e.GET("/v1/users/:id", h.Get, mw) })
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestCreateStaffAccountRoleRules(t *testing.T) {
	body := func(role string) string {
		return `{"name":"Eve","email":"eve@example.com","password":"pw","dob":"1985-05-05","address":"HQ","role":"` + role + `"}`
	}
	register := func(h *UserHandler) func(e *echo.Echo, mw echo.MiddlewareFunc) {
		return func(e *echo.Echo, mw echo.MiddlewareFunc) {
			e.POST("/v1/admin/accounts", h.CreateStaffAccount, mw,
				middleware.RequireAnyRole(model.RoleSystemAdmin, model.RoleAdmin))
		}
	}

	prov := &fakeProvisioner{}
	code, _ := authed(t, model.RoleAdmin, http.MethodPost, "/v1/admin/accounts", body("employee"), register(NewUserHandler(&fakeAccounts{}, prov, nil)))
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, model.RoleEmployee, prov.gotRole)

	prov = &fakeProvisioner{}
	code, _ = authed(t, model.RoleAdmin, http.MethodPost, "/v1/admin/accounts", body("SYSTEMADMIN"), register(NewUserHandler(&fakeAccounts{}, prov, nil)))
	assert.Equal(t, http.StatusForbidden, code)
	assert.Empty(t, prov.gotRole)

	code, _ = authed(t, model.RoleCustomer, http.MethodPost, "/v1/admin/accounts", body("EMPLOYEE"), register(NewUserHandler(&fakeAccounts{}, prov, nil)))
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = authed(t, model.RoleSystemAdmin, http.MethodPost, "/v1/admin/accounts", body("OWNER"), register(NewUserHandler(&fakeAccounts{}, prov, nil)))
	assert.Equal(t, http.StatusBadRequest, code)
}
