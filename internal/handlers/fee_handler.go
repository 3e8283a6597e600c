package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"ease_academy_api/internal/fees"
)

// FeeHandler serves the branch admin and parent fee endpoints
type FeeHandler struct {
	fees *fees.Service
}

func NewFeeHandler(svc *fees.Service) *FeeHandler {
	return &FeeHandler{fees: svc}
}

func (h *FeeHandler) GenerateVouchers(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	var in fees.GenerateInput
	if err := bind(c, &in); err != nil {
		return err
	}

	res, err := h.fees.GenerateVouchers(c.Request().Context(), actor, in)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "Fee vouchers generated", res)
}

func (h *FeeHandler) ListVouchers(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	var f fees.ListFilter
	if err := bind(c, &f); err != nil {
		return err
	}

	vouchers, err := h.fees.ListVouchers(c.Request().Context(), actor, f)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "Fee vouchers retrieved", vouchers)
}

func (h *FeeHandler) GetVoucher(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	v, err := h.fees.GetVoucher(c.Request().Context(), actor, c.Param("id"))
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "Fee voucher retrieved", v)
}

func (h *FeeHandler) RecordManualPayment(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	var in fees.ManualPaymentInput
	if err := bind(c, &in); err != nil {
		return err
	}

	res, err := h.fees.RecordManualPayment(c.Request().Context(), actor, c.Param("id"), in)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "Payment recorded successfully", res)
}

func (h *FeeHandler) CancelVoucher(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	var in fees.CancelInput
	if err := bind(c, &in); err != nil {
		return err
	}

	v, err := h.fees.CancelVoucher(c.Request().Context(), actor, c.Param("id"), in)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "Fee voucher cancelled", v)
}

func (h *FeeHandler) ListPending(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	vouchers, err := h.fees.ListPending(c.Request().Context(), actor)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "Pending payments retrieved", vouchers)
}

func (h *FeeHandler) ApprovePayment(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	var in fees.ReviewInput
	if err := bind(c, &in); err != nil {
		return err
	}

	v, err := h.fees.ApprovePayment(c.Request().Context(), actor, in)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "Payment approved successfully", v)
}

func (h *FeeHandler) RejectPayment(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	var in fees.ReviewInput
	if err := bind(c, &in); err != nil {
		return err
	}

	v, err := h.fees.RejectPayment(c.Request().Context(), actor, in)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "Payment rejected", v)
}

func (h *FeeHandler) CreateTemplate(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	var in fees.TemplateInput
	if err := bind(c, &in); err != nil {
		return err
	}

	t, err := h.fees.CreateTemplate(c.Request().Context(), actor, in)
	if err != nil {
		return err
	}
	return respond(c, http.StatusCreated, "Fee template created", t)
}

func (h *FeeHandler) ListTemplates(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	templates, err := h.fees.ListTemplates(c.Request().Context(), actor)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "Fee templates retrieved", templates)
}

// ListChildVouchers is the parent view of one child's vouchers
func (h *FeeHandler) ListChildVouchers(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	vouchers, err := h.fees.ListChildVouchers(c.Request().Context(), actor, c.Param("studentId"))
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "Fee vouchers retrieved", vouchers)
}

func (h *FeeHandler) SubmitPayment(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	var in fees.SubmitPaymentInput
	if err := bind(c, &in); err != nil {
		return err
	}

	v, err := h.fees.SubmitPayment(c.Request().Context(), actor, c.Param("id"), in)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "Payment submitted for approval", v)
}
