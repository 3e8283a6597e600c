package services

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"firebase.google.com/go/v4/messaging"
	expo "github.com/oliveroneill/exponent-server-sdk-golang/sdk"
)

// PushSender delivers a push notification to device tokens
type PushSender interface {
	SendPush(ctx context.Context, tokens []string, title, body string, data map[string]string) error
}

// ExpoPushService talks to the Expo push API used by the mobile apps
type ExpoPushService struct {
	client *expo.PushClient
}

// NewExpoPushService targets host, the SDK appends the push API path.
// An empty host means exp.host.
func NewExpoPushService(host, accessToken string) *ExpoPushService {
	return &ExpoPushService{
		client: expo.NewPushClient(&expo.ClientConfig{
			Host:        host,
			AccessToken: accessToken,
			HTTPClient:  &http.Client{Timeout: 15 * time.Second},
		}),
	}
}

// IsExpoToken reports whether token looks like an Expo push token
func IsExpoToken(token string) bool {
	return strings.HasPrefix(token, "ExponentPushToken[") || strings.HasPrefix(token, "ExpoPushToken[")
}

func (s *ExpoPushService) SendPush(ctx context.Context, tokens []string, title, body string, data map[string]string) error {
	var messages []expo.PushMessage
	for _, token := range tokens {
		if !IsExpoToken(token) {
			continue
		}
		messages = append(messages, expo.PushMessage{
			To:    []expo.ExponentPushToken{expo.ExponentPushToken(token)},
			Title: title,
			Body:  body,
			Data:  data,
			Sound: "default",
		})
	}
	if len(messages) == 0 {
		return fmt.Errorf("no valid expo push tokens")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	responses, err := s.client.PublishMultiple(messages)
	if err != nil {
		return fmt.Errorf("expo push failed: %w", err)
	}

	var failures []string
	for _, ticket := range responses {
		if ticket.ValidateResponse() != nil {
			failures = append(failures, ticket.Message)
		}
	}
	if len(failures) == len(messages) {
		return fmt.Errorf("expo rejected every message: %s", strings.Join(failures, "; "))
	}
	return nil
}

type multicastSender interface {
	SendEachForMulticast(ctx context.Context, message *messaging.MulticastMessage) (*messaging.BatchResponse, error)
}

// FCMPushService sends through Firebase Cloud Messaging
type FCMPushService struct {
	client multicastSender
}

func NewFCMPushService(client *messaging.Client) *FCMPushService {
	return &FCMPushService{client: client}
}

func (s *FCMPushService) SendPush(ctx context.Context, tokens []string, title, body string, data map[string]string) error {
	var fcmTokens []string
	for _, token := range tokens {
		if token != "" && !IsExpoToken(token) {
			fcmTokens = append(fcmTokens, token)
		}
	}
	if len(fcmTokens) == 0 {
		return fmt.Errorf("no valid fcm tokens")
	}

	resp, err := s.client.SendEachForMulticast(ctx, &messaging.MulticastMessage{
		Tokens:       fcmTokens,
		Notification: &messaging.Notification{Title: title, Body: body},
		Data:         data,
	})
	if err != nil {
		return fmt.Errorf("fcm multicast failed: %w", err)
	}
	if resp.SuccessCount == 0 {
		return fmt.Errorf("fcm delivered to none of %d tokens", len(fcmTokens))
	}
	return nil
}
