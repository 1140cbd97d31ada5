package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/account-authority/internal/handler"
	"github.com/iliyamo/account-authority/internal/middleware"
	"github.com/iliyamo/account-authority/internal/model"
	"github.com/iliyamo/account-authority/internal/obs"
)

// RegisterRoutes registers unauthenticated operational endpoints.
func RegisterRoutes(e *echo.Echo, db handler.Pinger) {
	e.GET("/healthz", handler.Health(db))
	e.GET("/metrics", echo.WrapHandler(obs.Handler()))
}

// RegisterAuth registers the token lifecycle endpoints. None of them take
// an access token; the credential travels in the body.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	g.POST("/revoke", a.Revoke)
	g.POST("/verify-email", a.VerifyEmail)
	g.POST("/resend-verification", a.ResendVerification)
	g.POST("/password-reset/request", a.RequestPasswordReset)
	g.POST("/password-reset/confirm", a.ConfirmPasswordReset)
}

// RegisterAccounts registers endpoints that need a verified identity.
// Ownership of :id is enforced by the account service; /v1/admin is
// limited to staff roles by the guard.
func RegisterAccounts(e *echo.Echo, u *handler.UserHandler, v middleware.TokenVerifier) {
	auth := e.Group("/v1", middleware.JWTAuth(v))
	auth.GET("/me", u.Me)
	auth.GET("/users/:id", u.Get)
	auth.PUT("/users/:id", u.Update)
	auth.DELETE("/users/:id", u.Delete)

	admin := auth.Group("/admin", middleware.RequireAnyRole(model.RoleSystemAdmin, model.RoleAdmin))
	admin.POST("/accounts", u.CreateStaffAccount)
}
