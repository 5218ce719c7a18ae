package mailer

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/tinz/tinz-api/internal/errors"
)

func TestNewRelaySender_RequiresURL(t *testing.T) {
	_, err := NewRelaySender(RelayConfig{})
	require.Error(t, err)
}

func TestRelaySender_Send(t *testing.T) {
	var got relayMessage
	var auth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	t.Cleanup(server.Close)

	sender, err := NewRelaySender(RelayConfig{
		RelayURL: server.URL,
		APIKey:   "key-1",
		From:     "no-reply@tinz.app",
	})
	require.NoError(t, err)

	require.NoError(t, sender.Send(context.Background(), "alice@example.com", "Hello", "plain body", "<p>html body</p>"))
	assert.Equal(t, "Bearer key-1", auth)
	assert.Equal(t, relayMessage{
		From:    "no-reply@tinz.app",
		To:      "alice@example.com",
		Subject: "Hello",
		Text:    "plain body",
		HTML:    "<p>html body</p>",
	}, got)
}

func TestRelaySender_SendRelayError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	t.Cleanup(server.Close)

	sender, err := NewRelaySender(RelayConfig{RelayURL: server.URL})
	require.NoError(t, err)

	err = sender.Send(context.Background(), "alice@example.com", "Hello", "body", "")
	require.Error(t, err)
	assert.True(t, apperrors.IsMailDelivery(err))
}

func TestRelaySender_SendUnreachable(t *testing.T) {
	sender, err := NewRelaySender(RelayConfig{RelayURL: "http://127.0.0.1:1"})
	require.NoError(t, err)

	err = sender.Send(context.Background(), "alice@example.com", "Hello", "body", "")
	require.Error(t, err)
	assert.True(t, apperrors.IsMailDelivery(err))
}

func TestLogSender_Send(t *testing.T) {
	sender := NewLogSender(slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.NoError(t, sender.Send(context.Background(), "alice@example.com", "Hello", "body", ""))
}
