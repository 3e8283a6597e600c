package handlers

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"ease_academy_api/internal/apperrors"
	"ease_academy_api/internal/repository"
	"ease_academy_api/internal/services"
)

const (
	defaultQRSize = 256
	maxQRSize     = 1024
)

type StudentHandler struct {
	users repository.UserRepository
}

func NewStudentHandler(users repository.UserRepository) *StudentHandler {
	return &StudentHandler{users: users}
}

// QRCode renders the attendance QR of a student in the admin's branch
func (h *StudentHandler) QRCode(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		return apperrors.InvalidInput("invalid student id")
	}

	size := defaultQRSize
	if raw := c.QueryParam("size"); raw != "" {
		if size, err = strconv.Atoi(raw); err != nil || size < 64 || size > maxQRSize {
			return apperrors.InvalidInput("size must be between 64 and %d", maxQRSize)
		}
	}

	branchID := actor.BranchID
	student, err := h.users.FindStudent(c.Request().Context(), repository.StudentLookup{ID: &id, BranchID: &branchID})
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NotFound("student not found")
	}
	if err != nil {
		return apperrors.Internal(err, "failed to load student")
	}

	png, err := services.StudentQRCode(student, size)
	if err != nil {
		return apperrors.Internal(err, "failed to render QR code")
	}
	return c.Blob(http.StatusOK, "image/png", png)
}
