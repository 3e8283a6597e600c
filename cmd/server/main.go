package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	_ "time/tzdata"

	"ease_academy_api/internal/app"
	"ease_academy_api/internal/config"
	"ease_academy_api/internal/handlers"
	"ease_academy_api/internal/logger"
	"ease_academy_api/internal/middleware"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log := logger.Must(cfg.Debug)
	defer func() { _ = log.Sync() }()

	if err := cfg.RequireServer(); err != nil {
		log.Fatal("invalid configuration", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal("failed to initialise application", zap.Error(err))
	}
	defer a.Close(context.Background())

	validator := handlers.NewValidator()

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = validator
	e.HTTPErrorHandler = middleware.NewErrorHandler(log, validator.Translator())

	e.Use(middleware.RequestID())
	e.Use(middleware.RequestLogger(log.Named("http")))
	e.Use(echomw.Recover())

	handlers.RegisterRoutes(e, handlers.Handlers{
		Auth:          handlers.NewAuthHandler(a.Users, cfg.JWTSecret, cfg.JWTExpiration, log.Named("auth")),
		Fees:          handlers.NewFeeHandler(a.Fees),
		Attendance:    handlers.NewAttendanceHandler(a.Attendance),
		Students:      handlers.NewStudentHandler(a.Users),
		Notifications: handlers.NewNotificationHandler(a.Notify),
		Preferences:   handlers.NewUserPreferenceHandler(a.Preferences, log.Named("preferences")),
	}, cfg.JWTSecret)

	go func() {
		log.Info("server starting", zap.String("port", cfg.Port))
		if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			log.Fatal("server stopped", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	}
}
