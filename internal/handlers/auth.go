package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/AnshRaj112/planpal-backend/internal/identity"
	"github.com/AnshRaj112/planpal-backend/internal/models"
	"github.com/AnshRaj112/planpal-backend/internal/profile"
	"github.com/AnshRaj112/planpal-backend/internal/services"
	"github.com/AnshRaj112/planpal-backend/internal/session"
	"github.com/AnshRaj112/planpal-backend/pkg/utils"
)

// Register creates an email/password account and its initial profile, then
// signs the caller in.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if !h.decodeJSON(w, r, &req, "Please fill all required fields and accept terms.") {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	acc, err := h.accounts.Register(ctx, req.Email, req.Password, req.Name)
	if err != nil {
		h.writeAccountError(w, err, "Failed to create account")
		return
	}

	now := time.Now().UTC()
	verified := false
	patch := profile.Patch{
		Name:      profile.String(strings.TrimSpace(req.Name)),
		Phone:     profile.String(strings.TrimSpace(req.Phone)),
		Age:       profile.String(strings.TrimSpace(req.Age)),
		Interests: profile.String(strings.TrimSpace(req.Interests)),
		Email:     profile.String(acc.Email),
		Verified:  &verified,
		CreatedAt: &now,
	}
	// The account already exists at this point; a missing profile is filled
	// in by the first save from the profile editor.
	var rec *profile.Record
	if err := h.profiles.Save(ctx, acc.ID.String(), patch); err != nil {
		h.logger.Error("failed to write initial profile", "identity_id", acc.ID, "error", err)
	} else {
		rec = &profile.Record{}
		patch.Apply(rec)
	}

	if err := h.mailer.SendVerification(ctx, acc.Email, strings.TrimSpace(req.Name)); err != nil {
		h.logger.Warn("failed to send verification email", "identity_id", acc.ID, "error", err)
	}

	id := acc.Identity()
	token, err := h.sessions.Create(ctx, id)
	if err != nil {
		h.logger.Error("failed to create session", "identity_id", acc.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to create session")
		return
	}

	h.logger.Info("account registered", "identity_id", acc.ID)
	writeJSON(w, http.StatusCreated, models.AuthResponse{Token: token, User: profile.Effective(id, rec)})
}

// Login signs in with email and password.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if !h.decodeJSON(w, r, &req, "Email and password are required.") {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	acc, err := h.accounts.Authenticate(ctx, req.Email, req.Password)
	if err != nil {
		h.writeAccountError(w, err, "Failed to sign in")
		return
	}
	h.signIn(ctx, w, acc.Identity())
}

// GoogleLogin signs in with a Firebase ID token from Google sign-in.
func (h *Handler) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	if h.google == nil {
		writeError(w, http.StatusServiceUnavailable, "Google sign-in is not available.")
		return
	}
	var req models.GoogleLoginRequest
	if !h.decodeJSON(w, r, &req, "Missing Google ID token.") {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	id, err := h.google.Verify(ctx, req.IDToken)
	if errors.Is(err, services.ErrGoogleSignInUnavailable) {
		writeError(w, http.StatusServiceUnavailable, "Google sign-in is not available.")
		return
	}
	if err != nil {
		h.logger.Warn("google sign-in rejected", "error", err)
		writeError(w, http.StatusUnauthorized, "Google sign-in failed.")
		return
	}
	h.signIn(ctx, w, id)
}

// signIn issues a session for id and responds with the effective user.
func (h *Handler) signIn(ctx context.Context, w http.ResponseWriter, id *identity.Identity) {
	token, err := h.sessions.Create(ctx, id)
	if err != nil {
		h.logger.Error("failed to create session", "identity_id", id.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to create session")
		return
	}

	rec, err := h.profiles.Load(ctx, id.ID)
	if err != nil && !errors.Is(err, profile.ErrNotFound) {
		h.logger.Warn("profile load failed at sign-in", "identity_id", id.ID, "error", err)
	}
	writeJSON(w, http.StatusOK, models.AuthResponse{Token: token, User: profile.Effective(id, rec)})
}

// Logout ends the caller's session. Open views on the same session are told
// the user signed out.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	token := sessionToken(r)
	if token == "" {
		writeJSON(w, http.StatusOK, models.MessageResponse{Message: "Signed out"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	if err := h.sessions.Invalidate(ctx, token); err != nil {
		h.logger.Error("failed to invalidate session", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to sign out")
		return
	}
	writeJSON(w, http.StatusOK, models.MessageResponse{Message: "Signed out"})
}

// ForgotPassword mails a reset code. The response does not reveal whether
// the account exists.
func (h *Handler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req models.ForgotPasswordRequest
	if !h.decodeJSON(w, r, &req, "Please enter your email to reset password.") {
		return
	}
	if err := utils.ValidateEmail(req.Email); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	sent := models.MessageResponse{Message: "Password reset email sent! Please check your inbox."}
	code, acc, err := h.accounts.CreateResetToken(ctx, req.Email)
	if errors.Is(err, services.ErrAccountNotFound) {
		writeJSON(w, http.StatusOK, sent)
		return
	}
	if err != nil {
		h.logger.Error("failed to create reset code", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to send reset email.")
		return
	}
	if err := h.mailer.SendPasswordReset(ctx, acc.Email, code); err != nil {
		h.logger.Error("failed to send reset email", "identity_id", acc.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to send reset email.")
		return
	}
	writeJSON(w, http.StatusOK, sent)
}

// ResetPassword sets a new password using the code from the reset email.
func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req models.ResetPasswordRequest
	if !h.decodeJSON(w, r, &req, "Please fill all required fields.") {
		return
	}
	if strings.TrimSpace(req.OOBCode) == "" {
		writeError(w, http.StatusBadRequest, "Invalid or missing password reset code.")
		return
	}
	if err := utils.ValidatePasswordConfirmation(req.NewPassword, req.ConfirmPassword); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	acc, err := h.accounts.ResetPassword(ctx, req.OOBCode, req.NewPassword)
	if err != nil {
		h.writeAccountError(w, err, "Failed to reset password")
		return
	}
	h.logger.Info("password reset", "identity_id", acc.ID)
	writeJSON(w, http.StatusOK, models.MessageResponse{Message: "Password has been reset successfully!"})
}

// Me returns the caller's effective user and extends the session.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	h.withView(w, r, func(ctx context.Context, _ *view, s session.State) {
		if err := h.sessions.Refresh(ctx, sessionToken(r)); err != nil {
			h.logger.Warn("failed to refresh session", "error", err)
		}
		writeJSON(w, http.StatusOK, models.ProfileResponse{User: s.User, Profile: s.Record, Message: s.Message})
	})
}

func (h *Handler) writeAccountError(w http.ResponseWriter, err error, fallback string) {
	var verr *utils.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{
			Error:  verr.Message,
			Code:   "validation_error",
			Fields: map[string]string{verr.Field: verr.Message},
		})
	case errors.Is(err, services.ErrEmailInUse):
		writeError(w, http.StatusConflict, "Email already in use.")
	case errors.Is(err, services.ErrAccountNotFound):
		writeError(w, http.StatusNotFound, "User account does not exist. Please register.")
	case errors.Is(err, services.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "Incorrect password. Please try again.")
	case errors.Is(err, services.ErrResetCodeInvalid):
		writeError(w, http.StatusBadRequest, "Invalid or missing password reset code.")
	default:
		h.logger.Error(strings.ToLower(fallback), "error", err)
		writeError(w, http.StatusInternalServerError, fallback)
	}
}
