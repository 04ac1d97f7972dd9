package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendGridMailerPasswordReset(t *testing.T) {
	var got sendGridMailSendRequest
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	m := NewSendGridMailer("sg-key", "no-reply@planpal.app", "https://planpal.app/")
	m.Endpoint = srv.URL

	require.NoError(t, m.SendPasswordReset(context.Background(), "pat@x.com", "code 1"))

	assert.Equal(t, "Bearer sg-key", auth)
	require.Len(t, got.Personalizations, 1)
	assert.Equal(t, "pat@x.com", got.Personalizations[0].To[0].Email)
	assert.Equal(t, "no-reply@planpal.app", got.From.Email)
	assert.Contains(t, got.Content[0].Value, "https://planpal.app/reset-password?oobCode=code+1")
}

func TestSendGridMailerRejectsNon202(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	m := NewSendGridMailer("bad", "no-reply@planpal.app", "https://planpal.app")
	m.Endpoint = srv.URL

	assert.EqualError(t, m.SendVerification(context.Background(), "pat@x.com", "Pat"), "sendgrid mail send http 401")
}

func TestSendGridMailerRequiresKey(t *testing.T) {
	m := NewSendGridMailer("", "no-reply@planpal.app", "https://planpal.app")
	assert.EqualError(t, m.SendVerification(context.Background(), "pat@x.com", "Pat"), "missing SENDGRID_API_KEY")
}
