package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"ease_academy_api/internal/apperrors"
	"ease_academy_api/internal/models"
	"ease_academy_api/internal/notify"
)

const maxNotificationPage = 100

type NotificationHandler struct {
	notify *notify.Service
}

func NewNotificationHandler(svc *notify.Service) *NotificationHandler {
	return &NotificationHandler{notify: svc}
}

type listNotificationsQuery struct {
	UnreadOnly bool  `query:"unreadOnly"`
	Limit      int64 `query:"limit"`
}

type notificationList struct {
	Notifications []models.Notification `json:"notifications"`
	UnreadCount   int64                 `json:"unreadCount"`
}

func (h *NotificationHandler) List(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	var q listNotificationsQuery
	if err := bind(c, &q); err != nil {
		return err
	}
	if q.Limit <= 0 || q.Limit > maxNotificationPage {
		q.Limit = 50
	}

	items, unread, err := h.notify.List(c.Request().Context(), actor.UserID, q.UnreadOnly, q.Limit)
	if err != nil {
		return err
	}
	if items == nil {
		items = []models.Notification{}
	}
	return respond(c, http.StatusOK, "Notifications retrieved", notificationList{Notifications: items, UnreadCount: unread})
}

func (h *NotificationHandler) MarkRead(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		return apperrors.InvalidInput("invalid notification id")
	}
	if err := h.notify.MarkRead(c.Request().Context(), actor.UserID, id); err != nil {
		return err
	}
	return respond(c, http.StatusOK, "Notification marked as read", nil)
}

func (h *NotificationHandler) MarkAllRead(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	n, err := h.notify.MarkAllRead(c.Request().Context(), actor.UserID)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "Notifications marked as read", echo.Map{"updated": n})
}
