package middleware // HTTP middleware shared by the route groups

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/account-authority/internal/model"
	"github.com/iliyamo/account-authority/internal/obs"
)

// TokenVerifier checks a raw access token and returns its identity.
// *utils.TokenIssuer satisfies it.
type TokenVerifier interface {
	Verify(raw string) (*model.AccessClaims, error)
}

// JWTAuth is the authentication gate. A missing or malformed bearer header
// is 401; a token that fails verification (bad signature, wrong algorithm,
// expired, foreign issuer) is 403. Either way the request stops here and
// next is never called. On success the claims are stored on the echo
// context and on the request context.
func JWTAuth(v TokenVerifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, ok := bearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
			if !ok {
				obs.GuardRejections.WithLabelValues("authentication").Inc()
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			claims, err := v.Verify(raw)
			if err != nil {
				obs.GuardRejections.WithLabelValues("authentication").Inc()
				return c.JSON(http.StatusForbidden, echo.Map{"error": "invalid token"})
			}

			c.Set(claimsKey, claims)
			req := c.Request()
			c.SetRequest(req.WithContext(context.WithValue(req.Context(), claimsCtxKey{}, claims)))
			return next(c)
		}
	}
}

// bearerToken extracts the token from an "Authorization: Bearer <token>"
// header. The scheme is case-insensitive; the token must be a single
// non-empty field.
func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	if token == "" || strings.ContainsAny(token, " \t") {
		return "", false
	}
	return token, true
}
