package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/screening-reservation/internal/config"
	"github.com/iliyamo/screening-reservation/internal/model"
	"github.com/iliyamo/screening-reservation/internal/repository"
	"github.com/iliyamo/screening-reservation/internal/service"
	"github.com/iliyamo/screening-reservation/internal/utils"
)

// UserStore is implemented by repository.UserRepo and repository.MemoryUsers.
type UserStore interface {
	Create(ctx context.Context, email, password, role string, cost int) (uint64, error)
	GetByEmail(ctx context.Context, email string) (model.User, error)
	GetByID(ctx context.Context, id uint64) (model.User, error)
}

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Cfg   config.Config
	Users UserStore
	Log   *zap.Logger
}

func NewAuthHandler(cfg config.Config, u UserStore, log *zap.Logger) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Users: u, Log: log}
}

// ----- DTOs -----

type credentialsReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userPart struct {
	ID    uint64 `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

type authResp struct {
	User   userPart          `json:"user"`
	Access utils.AccessToken `json:"access"`
}

const minPasswordLen = 8

func (r *credentialsReq) normalize() error {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	if r.Email == "" || r.Password == "" {
		return fmt.Errorf("%w: email and password are required", service.ErrInvalidInput)
	}
	return nil
}

// Register creates a USER account and returns an access token.
// Administrators are provisioned at startup, never through this endpoint.
func (h *AuthHandler) Register(c echo.Context) error {
	var req credentialsReq
	if err := c.Bind(&req); err != nil {
		return writeError(c, h.Log, fmt.Errorf("%w: invalid body", service.ErrInvalidInput))
	}
	if err := req.normalize(); err != nil {
		return writeError(c, h.Log, err)
	}
	if !strings.Contains(req.Email, "@") {
		return writeError(c, h.Log, fmt.Errorf("%w: invalid email", service.ErrInvalidInput))
	}
	if len(req.Password) < minPasswordLen {
		return writeError(c, h.Log, fmt.Errorf("%w: password must have at least %d characters", service.ErrInvalidInput, minPasswordLen))
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	uid, err := h.Users.Create(ctx, req.Email, req.Password, model.RoleUser, h.Cfg.BcryptCost)
	if err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return c.JSON(http.StatusConflict, echo.Map{"kind": "EmailExists", "error": "email already exists"})
		}
		if errors.Is(err, utils.ErrPasswordTooLong) {
			return writeError(c, h.Log, fmt.Errorf("%w: %v", service.ErrInvalidInput, err))
		}
		return writeError(c, h.Log, fmt.Errorf("%w: create user: %v", service.ErrPersistenceFailure, err))
	}
	return h.issue(c, http.StatusCreated, model.User{ID: uid, Email: req.Email, Role: model.RoleUser})
}

// Login verifies the credentials and returns a fresh access token.
func (h *AuthHandler) Login(c echo.Context) error {
	var req credentialsReq
	if err := c.Bind(&req); err != nil {
		return writeError(c, h.Log, fmt.Errorf("%w: invalid body", service.ErrInvalidInput))
	}
	if err := req.normalize(); err != nil {
		return writeError(c, h.Log, err)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, req.Email)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return writeError(c, h.Log, fmt.Errorf("%w: load user: %v", service.ErrPersistenceFailure, err))
	}
	// verify even for unknown emails so both failures take the same time
	if ok := utils.VerifyPassword(u.PasswordHash, req.Password); err != nil || !ok {
		return writeError(c, h.Log, fmt.Errorf("%w: invalid credentials", service.ErrUnauthorized))
	}
	return h.issue(c, http.StatusOK, u)
}

// Me returns the authenticated user's profile.
func (h *AuthHandler) Me(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	u, err := h.Users.GetByID(c.Request().Context(), a.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return writeError(c, h.Log, fmt.Errorf("%w: user %d", service.ErrNotFound, a.UserID))
		}
		return writeError(c, h.Log, fmt.Errorf("%w: load user: %v", service.ErrPersistenceFailure, err))
	}
	return c.JSON(http.StatusOK, userPart{ID: u.ID, Email: u.Email, Role: u.Role})
}

func (h *AuthHandler) issue(c echo.Context, status int, u model.User) error {
	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, u.ID, u.Role, h.Cfg.AccessTTLMin)
	if err != nil {
		return writeError(c, h.Log, fmt.Errorf("issue access token: %w", err))
	}
	return c.JSON(status, authResp{
		User:   userPart{ID: u.ID, Email: u.Email, Role: u.Role},
		Access: access,
	})
}
