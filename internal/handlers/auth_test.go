package handlers

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnshRaj112/planpal-backend/internal/models"
)

func registerBody() models.RegisterRequest {
	return models.RegisterRequest{
		Email:         "Pat@Example.com",
		Password:      "secret1",
		Name:          "Pat",
		Phone:         "555-0100",
		Age:           "29",
		Interests:     "hiking",
		TermsAccepted: true,
	}
}

func TestRegisterCreatesProfileAndSession(t *testing.T) {
	env := newTestEnv(t)

	resp := env.postJSON("/api/auth/register", "", registerBody())
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	body := decode[models.AuthResponse](t, resp)

	assert.NotEmpty(t, body.Token)
	assert.Equal(t, "Pat", body.User.Name)
	assert.Equal(t, "pat@example.com", body.User.Email)

	id, err := env.sessions.Get(context.Background(), body.Token)
	require.NoError(t, err)
	require.NotNil(t, id)
	assert.Equal(t, body.User.ID, id.ID)

	rec, err := env.repo.Find(context.Background(), id.ID)
	require.NoError(t, err)
	assert.Equal(t, "Pat", rec.Name)
	assert.Equal(t, "555-0100", rec.Phone)
	assert.Equal(t, "hiking", rec.Interests)
	assert.False(t, rec.Verified)
	assert.False(t, rec.CreatedAt.IsZero())

	assert.Equal(t, []string{"pat@example.com"}, env.mailer.verifications)
}

func TestRegisterValidation(t *testing.T) {
	env := newTestEnv(t)

	noTerms := registerBody()
	noTerms.TermsAccepted = false
	resp := env.postJSON("/api/auth/register", "", noTerms)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body := decode[models.ErrorResponse](t, resp)
	assert.Equal(t, "Please fill all required fields and accept terms.", body.Error)
	assert.Contains(t, body.Fields, "termsAccepted")

	short := registerBody()
	short.Password = "abc"
	resp = env.postJSON("/api/auth/register", "", short)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Password must be at least 6 characters.", decode[models.ErrorResponse](t, resp).Error)

	badEmail := registerBody()
	badEmail.Email = "not-an-email"
	resp = env.postJSON("/api/auth/register", "", badEmail)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Please enter a valid email address.", decode[models.ErrorResponse](t, resp).Error)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	env := newTestEnv(t)
	require.Equal(t, http.StatusCreated, env.postJSON("/api/auth/register", "", registerBody()).StatusCode)

	resp := env.postJSON("/api/auth/register", "", registerBody())

	require.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "Email already in use.", decode[models.ErrorResponse](t, resp).Error)
}

func TestLoginErrors(t *testing.T) {
	env := newTestEnv(t)
	require.Equal(t, http.StatusCreated, env.postJSON("/api/auth/register", "", registerBody()).StatusCode)

	tests := []struct {
		name     string
		email    string
		password string
		status   int
		message  string
	}{
		{"unknown account", "nobody@example.com", "secret1", http.StatusNotFound, "User account does not exist. Please register."},
		{"wrong password", "pat@example.com", "wrong-one", http.StatusUnauthorized, "Incorrect password. Please try again."},
		{"invalid email", "pat@", "secret1", http.StatusBadRequest, "Please enter a valid email address."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := env.postJSON("/api/auth/login", "", models.LoginRequest{Email: tt.email, Password: tt.password})
			require.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, tt.message, decode[models.ErrorResponse](t, resp).Error)
		})
	}
}

func TestLoginReturnsProfileName(t *testing.T) {
	env := newTestEnv(t)
	require.Equal(t, http.StatusCreated, env.postJSON("/api/auth/register", "", registerBody()).StatusCode)

	resp := env.postJSON("/api/auth/login", "", models.LoginRequest{Email: "pat@example.com", Password: "secret1"})

	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[models.AuthResponse](t, resp)
	assert.NotEmpty(t, body.Token)
	assert.Equal(t, "Pat", body.User.Name)
}

func TestGoogleLoginUnavailable(t *testing.T) {
	env := newTestEnv(t)

	resp := env.postJSON("/api/auth/google", "", models.GoogleLoginRequest{IDToken: "tok"})

	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestForgotPasswordDoesNotRevealAccounts(t *testing.T) {
	env := newTestEnv(t)
	require.Equal(t, http.StatusCreated, env.postJSON("/api/auth/register", "", registerBody()).StatusCode)

	unknown := env.postJSON("/api/auth/forgot-password", "", models.ForgotPasswordRequest{Email: "nobody@example.com"})
	known := env.postJSON("/api/auth/forgot-password", "", models.ForgotPasswordRequest{Email: "pat@example.com"})

	assert.Equal(t, http.StatusOK, unknown.StatusCode)
	assert.Equal(t, http.StatusOK, known.StatusCode)
	assert.Equal(t, decode[models.MessageResponse](t, unknown), decode[models.MessageResponse](t, known))
	assert.Len(t, env.mailer.resets, 1)
	assert.NotEmpty(t, env.mailer.resets["pat@example.com"])
}

func TestResetPassword(t *testing.T) {
	env := newTestEnv(t)
	require.Equal(t, http.StatusCreated, env.postJSON("/api/auth/register", "", registerBody()).StatusCode)
	require.Equal(t, http.StatusOK, env.postJSON("/api/auth/forgot-password", "", models.ForgotPasswordRequest{Email: "pat@example.com"}).StatusCode)
	code := env.mailer.resets["pat@example.com"]

	tests := []struct {
		name    string
		req     models.ResetPasswordRequest
		message string
	}{
		{"missing code", models.ResetPasswordRequest{NewPassword: "newpass", ConfirmPassword: "newpass"}, "Invalid or missing password reset code."},
		{"mismatch", models.ResetPasswordRequest{OOBCode: code, NewPassword: "newpass", ConfirmPassword: "other1"}, "Passwords do not match."},
		{"too short", models.ResetPasswordRequest{OOBCode: code, NewPassword: "abc", ConfirmPassword: "abc"}, "Password must be at least 6 characters."},
		{"unknown code", models.ResetPasswordRequest{OOBCode: "nope", NewPassword: "newpass", ConfirmPassword: "newpass"}, "Invalid or missing password reset code."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := env.postJSON("/api/auth/reset-password", "", tt.req)
			require.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, tt.message, decode[models.ErrorResponse](t, resp).Error)
		})
	}

	resp := env.postJSON("/api/auth/reset-password", "", models.ResetPasswordRequest{OOBCode: code, NewPassword: "newpass", ConfirmPassword: "newpass"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	login := env.postJSON("/api/auth/login", "", models.LoginRequest{Email: "pat@example.com", Password: "newpass"})
	assert.Equal(t, http.StatusOK, login.StatusCode)
}

func TestLogoutEndsSession(t *testing.T) {
	env := newTestEnv(t)
	resp := env.postJSON("/api/auth/register", "", registerBody())
	token := decode[models.AuthResponse](t, resp).Token

	require.Equal(t, http.StatusOK, env.do(http.MethodGet, "/api/me", token, nil, "").StatusCode)
	require.Equal(t, http.StatusOK, env.postJSON("/api/auth/logout", token, struct{}{}).StatusCode)

	assert.Equal(t, http.StatusUnauthorized, env.do(http.MethodGet, "/api/me", token, nil, "").StatusCode)
}

func TestMeFallsBackToIdentity(t *testing.T) {
	env := newTestEnv(t)
	token := env.signIn(identityFor("u-google", "sam.lee@example.com", "", "https://lh3.example/a.png"))

	resp := env.do(http.MethodGet, "/api/me", token, nil, "")

	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[models.ProfileResponse](t, resp)
	assert.Equal(t, "sam.lee", body.User.Name)
	assert.Equal(t, "https://lh3.example/a.png", body.User.AvatarURL)
	assert.Nil(t, body.Profile)
}
