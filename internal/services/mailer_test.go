package services

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMailerSkipsWhenUnconfigured(t *testing.T) {
	mailer := NewMailer("", "", "shop@example.com", "", zap.NewNop())

	// Best-effort: unconfigured mail is a silent no-op, not an error.
	assert.NoError(t, mailer.Send("customer@example.com", "Hello", "<p>Hi</p>"))
}

func TestMailerSend(t *testing.T) {
	var got mailMessage
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/emails", r.URL.Path)
		assert.Equal(t, "Bearer key-123", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	mailer := NewMailer(server.URL, "key-123", "shop@example.com", "", zap.NewNop())

	err := mailer.Send("customer@example.com", "Order confirmed", "<p>Thanks!</p>")
	require.NoError(t, err)

	assert.Equal(t, "shop@example.com", got.From)
	assert.Equal(t, "customer@example.com", got.To)
	assert.Equal(t, "Order confirmed", got.Subject)
	assert.Equal(t, "<p>Thanks!</p>", got.HTML)
}

func TestMailerSendSkipsEmptyRecipient(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	mailer := NewMailer(server.URL, "key-123", "shop@example.com", "", zap.NewNop())

	assert.NoError(t, mailer.Send("", "Subject", "<p>body</p>"))
	assert.False(t, called)
}

func TestMailerSendSurfacesAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	mailer := NewMailer(server.URL, "key-123", "shop@example.com", "", zap.NewNop())

	assert.Error(t, mailer.Send("customer@example.com", "Subject", "<p>body</p>"))
}
