package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/account-authority/internal/middleware"
	"github.com/iliyamo/account-authority/internal/model"
	"github.com/iliyamo/account-authority/internal/service"
)

// AccountService reads and edits accounts on behalf of an authenticated actor.
type AccountService interface {
	Get(ctx context.Context, actor model.AccessClaims, id uint64) (model.Account, error)
	UpdateProfile(ctx context.Context, actor model.AccessClaims, id uint64, p service.Profile) error
	Deactivate(ctx context.Context, actor model.AccessClaims, id uint64) error
}

// UserHandler serves /v1/me, /v1/users and /v1/admin. Every route sits
// behind JWTAuth.
type UserHandler struct {
	Accounts    AccountService
	Provisioner Provisioning
	Log         *zap.Logger
}

func NewUserHandler(a AccountService, p Provisioning, log *zap.Logger) *UserHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &UserHandler{Accounts: a, Provisioner: p, Log: log}
}

type accountResp struct {
	ID         uint64    `json:"id"`
	RoleID     uint8     `json:"role_id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	DOB        string    `json:"dob"`
	Address    string    `json:"address"`
	IsActive   bool      `json:"is_active"`
	IsVerified bool      `json:"is_verified"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func toAccountResp(a model.Account) accountResp {
	return accountResp{
		ID: a.ID, RoleID: a.RoleID, Name: a.Name, Email: a.Email,
		DOB: a.DOB.Format(dobLayout), Address: a.Address,
		IsActive: a.IsActive, IsVerified: a.IsVerified,
		CreatedAt: a.CreatedAt, UpdatedAt: a.UpdatedAt,
	}
}

type profileReq struct {
	Name    string `json:"name"`
	DOB     string `json:"dob"`
	Address string `json:"address"`
}

func (r profileReq) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required),
		validation.Field(&r.DOB, validation.Required, validation.Date(dobLayout)),
		validation.Field(&r.Address, validation.Required),
	)
}

type staffAccountReq struct {
	registerReq
	Role string `json:"role"`
}

func (r staffAccountReq) Validate() error {
	if err := r.registerReq.Validate(); err != nil {
		return err
	}
	return validation.ValidateStruct(&r,
		validation.Field(&r.Role, validation.Required, validation.By(func(v interface{}) error {
			if _, ok := model.ParseRoleName(v.(string)); !ok {
				return validation.NewError("validation_role", "must be a known role")
			}
			return nil
		})),
	)
}

func actor(c echo.Context) (model.AccessClaims, bool) {
	cl, ok := middleware.ClaimsFrom(c)
	if !ok {
		return model.AccessClaims{}, false
	}
	return *cl, true
}

func pathID(c echo.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	return id, err == nil && id > 0
}

// Me returns the caller's own account.
func (h *UserHandler) Me(c echo.Context) error {
	who, ok := actor(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	return h.get(c, who, who.AccountID)
}

// Get returns account :id.
func (h *UserHandler) Get(c echo.Context) error {
	who, ok := actor(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := pathID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	return h.get(c, who, id)
}

func (h *UserHandler) get(c echo.Context, who model.AccessClaims, id uint64) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	acct, err := h.Accounts.Get(ctx, who, id)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, toAccountResp(acct))
}

// Update replaces the profile fields of account :id.
func (h *UserHandler) Update(c echo.Context) error {
	who, ok := actor(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := pathID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var req profileReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	dob, _ := time.Parse(dobLayout, strings.TrimSpace(req.DOB))

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	if err := h.Accounts.UpdateProfile(ctx, who, id, service.Profile{Name: req.Name, DOB: dob, Address: req.Address}); err != nil {
		return writeError(c, h.Log, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Delete soft-deletes account :id.
func (h *UserHandler) Delete(c echo.Context) error {
	who, ok := actor(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := pathID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	if err := h.Accounts.Deactivate(ctx, who, id); err != nil {
		return writeError(c, h.Log, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// CreateStaffAccount provisions an account with an explicit role. The
// route is limited to staff; only SYSTEMADMIN may mint another SYSTEMADMIN.
func (h *UserHandler) CreateStaffAccount(c echo.Context) error {
	who, ok := actor(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req staffAccountReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	role, _ := model.ParseRoleName(req.Role)
	if !service.CanAssign(who.Role, role) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	out, err := h.Provisioner.CreateAccount(ctx, req.candidate(), role)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	h.Log.Info("staff provisioned account",
		zap.Uint64("account_id", out.AccountID), zap.String("role", string(out.Role)), zap.Uint64("by", who.AccountID))
	return c.JSON(http.StatusCreated, pairResp(out.TokenPair, out.Role))
}
