package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"ease_academy_api/internal/apperrors"
	"ease_academy_api/internal/middleware"
	"ease_academy_api/internal/models"
)

// Response is the envelope of every successful request
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func respond(c echo.Context, code int, message string, data interface{}) error {
	return c.JSON(code, Response{Success: true, Message: message, Data: data})
}

// bind decodes the request into dest and runs the validator
func bind(c echo.Context, dest interface{}) error {
	if err := c.Bind(dest); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body").SetInternal(err)
	}
	return c.Validate(dest)
}

func currentActor(c echo.Context) (models.Actor, error) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		return models.Actor{}, apperrors.Unauthorized("authentication required")
	}
	return actor, nil
}
