package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"ease_academy_api/internal/middleware"
	"ease_academy_api/internal/models"
)

// Handlers groups everything RegisterRoutes mounts
type Handlers struct {
	Auth          *AuthHandler
	Fees          *FeeHandler
	Attendance    *AttendanceHandler
	Students      *StudentHandler
	Notifications *NotificationHandler
	Preferences   *UserPreferenceHandler
}

// RegisterRoutes mounts the JSON API on e. Every group below /api other than
// /api/auth requires a valid token.
func RegisterRoutes(e *echo.Echo, h Handlers, jwtSecret string) {
	e.GET("/health", func(c echo.Context) error {
		return respond(c, http.StatusOK, "ok", nil)
	})

	api := e.Group("/api")
	api.POST("/auth/login", h.Auth.Login)

	authed := api.Group("", middleware.RequireAuth(jwtSecret))

	// Branch admin routes
	admin := authed.Group("/branch-admin", middleware.RequireRole(models.RoleBranchAdmin))
	admin.POST("/fee-vouchers", h.Fees.GenerateVouchers)
	admin.GET("/fee-vouchers", h.Fees.ListVouchers)
	admin.GET("/fee-vouchers/:id", h.Fees.GetVoucher)
	admin.POST("/fee-vouchers/:id/manual-payment", h.Fees.RecordManualPayment)
	admin.POST("/fee-vouchers/:id/cancel", h.Fees.CancelVoucher)
	admin.GET("/pending-fees", h.Fees.ListPending)
	admin.POST("/pending-fees/approve", h.Fees.ApprovePayment)
	admin.POST("/pending-fees/reject", h.Fees.RejectPayment)
	admin.POST("/fee-templates", h.Fees.CreateTemplate)
	admin.GET("/fee-templates", h.Fees.ListTemplates)
	admin.POST("/attendance/scan", h.Attendance.Scan)
	admin.POST("/attendance/mark", h.Attendance.Mark)
	admin.GET("/attendance", h.Attendance.List)
	admin.GET("/attendance/slot", h.Attendance.GetSlot)
	admin.GET("/students/:id/qr", h.Students.QRCode)

	// Teacher and super admin scanning
	authed.POST("/teacher/attendance/scan", h.Attendance.Scan, middleware.RequireRole(models.RoleTeacher))
	authed.POST("/super-admin/attendance/scan", h.Attendance.Scan, middleware.RequireRole(models.RoleSuperAdmin))

	// Parent routes
	parent := authed.Group("/parent", middleware.RequireRole(models.RoleParent))
	parent.GET("/students/:studentId/fee-vouchers", h.Fees.ListChildVouchers)
	parent.POST("/fee-vouchers/:id/submit-payment", h.Fees.SubmitPayment)

	// Any authenticated user
	authed.GET("/notifications", h.Notifications.List)
	authed.POST("/notifications/read-all", h.Notifications.MarkAllRead)
	authed.POST("/notifications/:id/read", h.Notifications.MarkRead)
	authed.GET("/notifications/preferences", h.Preferences.GetUserPreference)
	authed.PUT("/notifications/preferences", h.Preferences.UpdateUserPreference)
}
