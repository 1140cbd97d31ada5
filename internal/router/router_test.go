package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"

	"github.com/iliyamo/account-authority/internal/handler"
	"github.com/iliyamo/account-authority/internal/model"
)

type okPinger struct{}

func (okPinger) PingContext(context.Context) error { return nil }

type rejectAll struct{}

func (rejectAll) Verify(string) (*model.AccessClaims, error) { return nil, assert.AnError }

func TestProtectedRoutesRequireBearer(t *testing.T) {
	e := echo.New()
	RegisterRoutes(e, okPinger{})
	RegisterAccounts(e, handler.NewUserHandler(nil, nil, nil), rejectAll{})

	for _, r := range []struct{ method, path string }{
		{http.MethodGet, "/v1/me"},
		{http.MethodGet, "/v1/users/1"},
		{http.MethodPut, "/v1/users/1"},
		{http.MethodDelete, "/v1/users/1"},
		{http.MethodPost, "/v1/admin/accounts"},
	} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(r.method, r.path, nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code, r.path)
	}

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
