package handlers

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"ease_academy_api/internal/apperrors"
	"ease_academy_api/internal/middleware"
	"ease_academy_api/internal/models"
	"ease_academy_api/internal/repository"
)

type AuthHandler struct {
	users  repository.UserRepository
	secret string
	ttl    time.Duration
	log    *zap.Logger
	now    func() time.Time
}

func NewAuthHandler(users repository.UserRepository, secret string, ttl time.Duration, log *zap.Logger) *AuthHandler {
	return &AuthHandler{users: users, secret: secret, ttl: ttl, log: log, now: time.Now}
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      *models.User `json:"user"`
}

// Login checks the credentials and issues a JWT
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	user, err := h.users.FindByEmail(c.Request().Context(), req.Email)
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.Unauthorized("invalid email or password")
	}
	if err != nil {
		return apperrors.Internal(err, "failed to load user")
	}
	if !user.CheckPassword(req.Password) {
		return apperrors.Unauthorized("invalid email or password")
	}
	if !user.IsActive {
		return apperrors.Forbidden("account is deactivated")
	}

	now := h.now()
	token, err := middleware.IssueToken(h.secret, user, h.ttl, now)
	if err != nil {
		return apperrors.Internal(err, "failed to issue token")
	}

	h.log.Info("user logged in", zap.String("user_id", user.ID.Hex()), zap.String("role", string(user.Role)))
	return respond(c, http.StatusOK, "Login successful", loginResponse{
		Token:     token,
		ExpiresAt: now.Add(h.ttl),
		User:      user,
	})
}
