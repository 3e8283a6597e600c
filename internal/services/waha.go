package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// WahaService sends WhatsApp messages through a WAHA gateway
type WahaService struct {
	baseURL     string
	apiKey      string
	session     string
	countryCode string
	client      *http.Client
	pause       func(ctx context.Context, d time.Duration) error
}

func NewWahaService(baseURL, apiKey, countryCode string) *WahaService {
	if baseURL == "" {
		baseURL = "http://waha:3000"
	}
	return &WahaService{
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		apiKey:      apiKey,
		session:     "default",
		countryCode: countryCode,
		client:      &http.Client{Timeout: 15 * time.Second},
		pause:       sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (s *WahaService) makeRequest(ctx context.Context, endpoint string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+endpoint, bytes.NewBuffer(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-Key", s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(body))
	}

	return nil
}

func (s *WahaService) chatAction(ctx context.Context, endpoint, chatID string) error {
	return s.makeRequest(ctx, endpoint, map[string]string{
		"chatId":  chatID,
		"session": s.session,
	})
}

// NormalizeChatID turns a phone number or chat id into a WAHA chat id.
// Local numbers starting with 0 get countryCode instead of the leading zero.
func NormalizeChatID(chatID, countryCode string) string {
	chatID = strings.TrimSpace(chatID)

	if strings.HasSuffix(chatID, "@g.us") {
		return chatID
	}

	chatID = strings.TrimSuffix(chatID, "@c.us")
	chatID = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "").Replace(chatID)
	chatID = strings.TrimPrefix(chatID, "+")

	if countryCode != "" && strings.HasPrefix(chatID, "0") {
		chatID = countryCode + strings.TrimPrefix(chatID, "0")
	}

	return chatID + "@c.us"
}

// SendMessage sends text the way a person would: seen, typing, then the message
func (s *WahaService) SendMessage(ctx context.Context, chatID, text string) error {
	chatID = NormalizeChatID(chatID, s.countryCode)

	if err := s.chatAction(ctx, "/api/sendSeen", chatID); err != nil {
		return fmt.Errorf("failed to send seen: %w", err)
	}
	if err := s.pause(ctx, 100*time.Millisecond); err != nil {
		return err
	}

	if err := s.chatAction(ctx, "/api/startTyping", chatID); err != nil {
		return fmt.Errorf("failed to start typing: %w", err)
	}
	if err := s.pause(ctx, 150*time.Millisecond); err != nil {
		return err
	}

	if err := s.chatAction(ctx, "/api/stopTyping", chatID); err != nil {
		return fmt.Errorf("failed to stop typing: %w", err)
	}
	if err := s.pause(ctx, 50*time.Millisecond); err != nil {
		return err
	}

	err := s.makeRequest(ctx, "/api/sendText", map[string]string{
		"chatId":  chatID,
		"text":    text,
		"session": s.session,
	})
	if err != nil {
		return fmt.Errorf("failed to send text: %w", err)
	}
	return nil
}
