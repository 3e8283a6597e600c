package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"firebase.google.com/go/v4/messaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpoPushService(t *testing.T) {
	var received []struct {
		To   []string          `json:"to"`
		Data map[string]string `json:"data"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer token-1", r.Header.Get("Authorization"))
		assert.True(t, strings.HasSuffix(r.URL.Path, "/push/send"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		_, _ = w.Write([]byte(`{"data":[{"status":"ok","id":"abc"}]}`))
	}))
	defer srv.Close()

	svc := NewExpoPushService(srv.URL, "token-1")
	err := svc.SendPush(context.Background(),
		[]string{"ExponentPushToken[xyz]", "fcm-token-ignored"},
		"Payment approved", "Your payment of 2000 was approved",
		map[string]string{"voucherId": "v1"},
	)
	require.NoError(t, err)

	require.Len(t, received, 1)
	assert.Equal(t, []string{"ExponentPushToken[xyz]"}, received[0].To)
	assert.Equal(t, "v1", received[0].Data["voucherId"])
}

func TestExpoPushServiceAllTicketsFailed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{"status":"error","message":"DeviceNotRegistered","details":{"error":"DeviceNotRegistered"}}]}`))
	}))
	defer srv.Close()

	svc := NewExpoPushService(srv.URL, "")
	err := svc.SendPush(context.Background(), []string{"ExponentPushToken[gone]"}, "t", "b", nil)
	assert.ErrorContains(t, err, "DeviceNotRegistered")
}

func TestExpoPushServiceNoTokens(t *testing.T) {
	svc := NewExpoPushService("http://unused", "")
	err := svc.SendPush(context.Background(), []string{"plain"}, "t", "b", nil)
	assert.EqualError(t, err, "no valid expo push tokens")
}

func TestExpoPushServiceCancelledContext(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	svc := NewExpoPushService(srv.URL, "")
	err := svc.SendPush(ctx, []string{"ExpoPushToken[abc]"}, "t", "b", nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, calls)
}

type fakeMulticast struct {
	got  *messaging.MulticastMessage
	resp *messaging.BatchResponse
	err  error
}

func (f *fakeMulticast) SendEachForMulticast(_ context.Context, m *messaging.MulticastMessage) (*messaging.BatchResponse, error) {
	f.got = m
	return f.resp, f.err
}

func TestFCMPushService(t *testing.T) {
	fake := &fakeMulticast{resp: &messaging.BatchResponse{SuccessCount: 1}}
	svc := &FCMPushService{client: fake}

	err := svc.SendPush(context.Background(), []string{"ExponentPushToken[skip]", "fcm-1"}, "Title", "Body", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"fcm-1"}, fake.got.Tokens)
	assert.Equal(t, "Title", fake.got.Notification.Title)

	fake.resp = &messaging.BatchResponse{SuccessCount: 0, FailureCount: 1}
	assert.Error(t, svc.SendPush(context.Background(), []string{"fcm-1"}, "t", "b", nil))

	fake.err = errors.New("unavailable")
	assert.ErrorContains(t, svc.SendPush(context.Background(), []string{"fcm-1"}, "t", "b", nil), "unavailable")
}
