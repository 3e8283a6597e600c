package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"ease_academy_api/internal/app"
	"ease_academy_api/internal/config"
	"ease_academy_api/internal/logger"
	"ease_academy_api/internal/services"
)

func main() {
	channel := flag.String("channel", "whatsapp", "Delivery channel: whatsapp, email or push")
	to := flag.String("to", "", "Phone number, email address or push token (mandatory)")
	title := flag.String("title", "Ease Academy", "Title or email subject")
	msg := flag.String("msg", "Test message from Ease Academy", "Message body")
	flag.Parse()

	if *to == "" {
		fmt.Println("Usage: send_test_notification -channel <whatsapp|email|push> -to <recipient> [-msg <text>]")
		flag.PrintDefaults()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log := logger.Must(cfg.Debug)
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	log.Info("sending test notification", zap.String("channel", *channel), zap.String("to", *to))

	switch strings.ToLower(*channel) {
	case "whatsapp":
		waha := services.NewWahaService(cfg.WahaBaseURL, cfg.WahaAPIKey, cfg.WahaCountryCode)
		err = waha.SendMessage(ctx, *to, *msg)
	case "email":
		err = app.NewEmailSender(cfg).SendEmail(ctx, []string{*to}, *title, *msg)
	case "push":
		var push services.PushSender
		push, err = app.NewPushSender(ctx, cfg)
		if err == nil {
			err = push.SendPush(ctx, []string{*to}, *title, *msg, nil)
		}
	default:
		log.Fatal("unknown channel", zap.String("channel", *channel))
	}

	if err != nil {
		log.Fatal("failed to send", zap.Error(err))
	}
	log.Info("message sent")
}
