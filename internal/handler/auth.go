package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/account-authority/internal/model"
	"github.com/iliyamo/account-authority/internal/service"
	"github.com/iliyamo/account-authority/internal/utils"
)

const (
	dobLayout      = "2006-01-02"
	requestTimeout = 5 * time.Second
)

// Provisioning creates accounts.
type Provisioning interface {
	CreateAccount(ctx context.Context, candidate model.NewAccount, role model.RoleName) (service.Provisioned, error)
}

// SessionService issues, refreshes and revokes sessions.
type SessionService interface {
	Login(ctx context.Context, email, password string) (service.TokenPair, error)
	Refresh(ctx context.Context, raw string) (utils.AccessToken, error)
	Revoke(ctx context.Context, raw string) error
}

// TokenService handles the single-use token flows.
type TokenService interface {
	VerifyEmail(ctx context.Context, raw string) (uint64, error)
	ResendVerification(ctx context.Context, email string) error
	InitiatePasswordReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, raw, newPassword string) error
}

// AuthHandler serves /v1/auth.
type AuthHandler struct {
	Provisioner Provisioning
	Sessions    SessionService
	Tokens      TokenService
	Log         *zap.Logger
}

func NewAuthHandler(p Provisioning, s SessionService, t TokenService, log *zap.Logger) *AuthHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthHandler{Provisioner: p, Sessions: s, Tokens: t, Log: log}
}

// ----- DTOs -----

type registerReq struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	DOB      string `json:"dob"` // YYYY-MM-DD
	Address  string `json:"address"`
}

func (r registerReq) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required),
		validation.Field(&r.Email, validation.Required, is.EmailFormat),
		validation.Field(&r.Password, validation.Required),
		validation.Field(&r.DOB, validation.Required, validation.Date(dobLayout)),
		validation.Field(&r.Address, validation.Required),
	)
}

func (r registerReq) candidate() model.NewAccount {
	dob, _ := time.Parse(dobLayout, strings.TrimSpace(r.DOB))
	return model.NewAccount{Name: r.Name, Email: r.Email, Password: r.Password, DOB: dob, Address: r.Address}
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r loginReq) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.EmailFormat),
		validation.Field(&r.Password, validation.Required),
	)
}

type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenReq struct {
	Token string `json:"token"`
}

type emailReq struct {
	Email string `json:"email"`
}

func (r emailReq) Validate() error {
	return validation.ValidateStruct(&r, validation.Field(&r.Email, validation.Required, is.EmailFormat))
}

type resetConfirmReq struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

func (r resetConfirmReq) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Token, validation.Required),
		validation.Field(&r.Password, validation.Required),
	)
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}
type accountPart struct {
	ID    uint64 `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role,omitempty"`
}
type authResp struct {
	Account accountPart `json:"account"`
	Access  tokenPart   `json:"access"`
	Refresh tokenPart   `json:"refresh"`
}

func pairResp(p service.TokenPair, role model.RoleName) authResp {
	return authResp{
		Account: accountPart{ID: p.AccountID, Email: p.Email, Role: string(role)},
		Access:  tokenPart{Token: p.AccessToken.Token, Expires: p.AccessToken.Exp},
		Refresh: tokenPart{Token: p.RefreshToken, Expires: p.RefreshExpiresAt},
	}
}

// bindValid binds the body into dst and runs its ozzo rules. Failures are
// written as 400 and reported through ok=false.
func bindValid(c echo.Context, dst validation.Validatable) (ok bool, err error) {
	if err := c.Bind(dst); err != nil {
		return false, c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := dst.Validate(); err != nil {
		return false, c.JSON(http.StatusBadRequest, echo.Map{"error": "validation failed", "fields": err})
	}
	return true, nil
}

// Register creates a CUSTOMER account and returns its first session.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	out, err := h.Provisioner.CreateAccount(ctx, req.candidate(), model.RoleCustomer)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, pairResp(out.TokenPair, out.Role))
}

// Login verifies credentials and opens a new session.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	pair, err := h.Sessions.Login(ctx, req.Email, req.Password)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, pairResp(pair, ""))
}

// Refresh returns a new access token. The refresh token is not rotated.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "refresh_token required"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	access, err := h.Sessions.Refresh(ctx, strings.TrimSpace(req.RefreshToken))
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"access": tokenPart{Token: access.Token, Expires: access.Exp}})
}

// Revoke deactivates a refresh token.
func (h *AuthHandler) Revoke(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "refresh_token required"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	if err := h.Sessions.Revoke(ctx, strings.TrimSpace(req.RefreshToken)); err != nil {
		return writeError(c, h.Log, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// VerifyEmail consumes an email verification token.
func (h *AuthHandler) VerifyEmail(c echo.Context) error {
	var req tokenReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Token) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "token required"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	id, err := h.Tokens.VerifyEmail(ctx, strings.TrimSpace(req.Token))
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"account_id": id, "verified": true})
}

// ResendVerification issues a new verification token for an unverified account.
func (h *AuthHandler) ResendVerification(c echo.Context) error {
	var req emailReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	if err := h.Tokens.ResendVerification(ctx, req.Email); err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusAccepted, echo.Map{"message": "verification email queued"})
}

// RequestPasswordReset starts the forgot-password flow.
func (h *AuthHandler) RequestPasswordReset(c echo.Context) error {
	var req emailReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	if err := h.Tokens.InitiatePasswordReset(ctx, req.Email); err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusAccepted, echo.Map{"message": "password reset email queued"})
}

// ConfirmPasswordReset consumes a reset token and sets the new password.
func (h *AuthHandler) ConfirmPasswordReset(c echo.Context) error {
	var req resetConfirmReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	if err := h.Tokens.ResetPassword(ctx, strings.TrimSpace(req.Token), req.Password); err != nil {
		return writeError(c, h.Log, err)
	}
	return c.NoContent(http.StatusNoContent)
}
