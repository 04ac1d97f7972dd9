package models

import "github.com/AnshRaj112/planpal-backend/internal/profile"

type RegisterRequest struct {
	Email         string `json:"email" validate:"required"`
	Password      string `json:"password" validate:"required"`
	Name          string `json:"name" validate:"required,max=100"`
	Phone         string `json:"phone" validate:"required,max=32"`
	Age           string `json:"age" validate:"required,numeric,max=3"`
	Interests     string `json:"interests" validate:"required,max=500"`
	TermsAccepted bool   `json:"termsAccepted" validate:"required"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// GoogleLoginRequest carries a Firebase ID token from the Google popup flow.
type GoogleLoginRequest struct {
	IDToken string `json:"idToken" validate:"required"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required"`
}

// ResetPasswordRequest completes a reset. OOBCode is the code from the reset email link.
type ResetPasswordRequest struct {
	OOBCode         string `json:"oobCode"`
	NewPassword     string `json:"newPassword" validate:"required"`
	ConfirmPassword string `json:"confirmPassword" validate:"required"`
}

type AuthResponse struct {
	Token string                `json:"token"`
	User  profile.EffectiveUser `json:"user"`
}

type MessageResponse struct {
	Message string `json:"message"`
}
