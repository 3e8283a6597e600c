package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"ease_academy_api/internal/attendance"
)

type AttendanceHandler struct {
	attendance *attendance.Service
}

func NewAttendanceHandler(svc *attendance.Service) *AttendanceHandler {
	return &AttendanceHandler{attendance: svc}
}

// Scan serves the branch admin, teacher and super admin scan routes. The
// service applies the scoping of the caller's role.
func (h *AttendanceHandler) Scan(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	var in attendance.ScanInput
	if err := bind(c, &in); err != nil {
		return err
	}

	res, err := h.attendance.Scan(c.Request().Context(), actor, in)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "Attendance marked successfully", res)
}

func (h *AttendanceHandler) Mark(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	var in attendance.MarkInput
	if err := bind(c, &in); err != nil {
		return err
	}

	doc, err := h.attendance.Mark(c.Request().Context(), actor, in)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "Attendance saved", doc)
}

func (h *AttendanceHandler) List(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	var in attendance.ListInput
	if err := bind(c, &in); err != nil {
		return err
	}

	docs, err := h.attendance.List(c.Request().Context(), actor, in)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "Attendance retrieved", docs)
}

func (h *AttendanceHandler) GetSlot(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	var q attendance.SlotQuery
	if err := bind(c, &q); err != nil {
		return err
	}

	doc, err := h.attendance.Get(c.Request().Context(), actor, q)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "Attendance retrieved", doc)
}
