package middleware

// identity.go exposes the claims resolved by JWTAuth to handlers.

import (
	"context"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/account-authority/internal/model"
)

const claimsKey = "claims"

type claimsCtxKey struct{}

// ClaimsFrom returns the verified identity attached by JWTAuth.
func ClaimsFrom(c echo.Context) (*model.AccessClaims, bool) {
	cl, ok := c.Get(claimsKey).(*model.AccessClaims)
	return cl, ok && cl != nil
}

// ClaimsFromContext is ClaimsFrom for code that only has the request
// context.
func ClaimsFromContext(ctx context.Context) (*model.AccessClaims, bool) {
	cl, ok := ctx.Value(claimsCtxKey{}).(*model.AccessClaims)
	return cl, ok && cl != nil
}
