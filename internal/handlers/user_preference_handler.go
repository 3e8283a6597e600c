package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"ease_academy_api/internal/apperrors"
	"ease_academy_api/internal/models"
	"ease_academy_api/internal/tasks"
)

type UserPreferenceHandler struct {
	prefs tasks.PreferenceStore
	log   *zap.Logger
}

func NewUserPreferenceHandler(prefs tasks.PreferenceStore, log *zap.Logger) *UserPreferenceHandler {
	return &UserPreferenceHandler{prefs: prefs, log: log}
}

// GetUserPreference returns the caller's delivery channel, or the default one
func (h *UserPreferenceHandler) GetUserPreference(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	pref, err := h.prefs.Get(c.Request().Context(), actor.UserID.Hex())
	if err != nil {
		return apperrors.Internal(err, "failed to load notification preference")
	}
	return respond(c, http.StatusOK, "Notification preference retrieved", pref)
}

type preferenceRequest struct {
	Channel            string `json:"channel" validate:"required,oneof=push email whatsapp none"`
	WhatsappTargetType string `json:"whatsappTargetType" validate:"omitempty,oneof=personal group"`
	WhatsappGroupID    string `json:"whatsappGroupId" validate:"required_if=WhatsappTargetType group"`
}

// UpdateUserPreference upserts the caller's delivery channel
func (h *UserPreferenceHandler) UpdateUserPreference(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	var req preferenceRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if req.WhatsappTargetType == "" {
		req.WhatsappTargetType = models.WhatsappTargetTypePersonal
	}

	pref, err := h.prefs.Save(c.Request().Context(), models.UserNotifPreference{
		UserID:             actor.UserID.Hex(),
		Channel:            models.NotificationChannel(req.Channel),
		WhatsappTargetType: req.WhatsappTargetType,
		WhatsappGroupID:    req.WhatsappGroupID,
	})
	if err != nil {
		return apperrors.Internal(err, "failed to save notification preference")
	}

	h.log.Info("notification preference updated", zap.String("user_id", actor.UserID.Hex()), zap.String("channel", req.Channel))
	return respond(c, http.StatusOK, "Notification preference saved", pref)
}
