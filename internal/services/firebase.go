package services

import (
	"context"
	"errors"
	"fmt"

	firebase "firebase.google.com/go/v4"
	fbauth "firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"

	"github.com/AnshRaj112/planpal-backend/internal/identity"
)

// ErrGoogleSignInUnavailable is returned when no Firebase project is configured.
var ErrGoogleSignInUnavailable = errors.New("google sign-in not configured")

// firebaseAuth is the part of the Firebase auth client used here.
type firebaseAuth interface {
	VerifyIDToken(ctx context.Context, idToken string) (*fbauth.Token, error)
	GetUser(ctx context.Context, uid string) (*fbauth.UserRecord, error)
}

// GoogleVerifier turns a Google ID token issued through Firebase into an identity.
type GoogleVerifier struct {
	client firebaseAuth
}

// NewGoogleVerifier initializes the Firebase app. credentialsJSON may be
// empty to use application default credentials.
func NewGoogleVerifier(ctx context.Context, projectID, credentialsJSON string) (*GoogleVerifier, error) {
	if projectID == "" {
		return nil, ErrGoogleSignInUnavailable
	}
	var opts []option.ClientOption
	if credentialsJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(credentialsJSON)))
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Firebase: %w", err)
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Firebase auth: %w", err)
	}
	return &GoogleVerifier{client: client}, nil
}

// Verify checks idToken and returns the identity it names. Missing profile
// claims are filled from the Firebase user record when available.
func (v *GoogleVerifier) Verify(ctx context.Context, idToken string) (*identity.Identity, error) {
	if v == nil || v.client == nil {
		return nil, ErrGoogleSignInUnavailable
	}
	tok, err := v.client.VerifyIDToken(ctx, idToken)
	if err != nil {
		return nil, fmt.Errorf("verify google token: %w", err)
	}

	id := &identity.Identity{
		ID:          tok.UID,
		Email:       claimString(tok.Claims, "email"),
		DisplayName: claimString(tok.Claims, "name"),
		AvatarURL:   claimString(tok.Claims, "picture"),
		Provider:    identity.ProviderGoogle,
	}
	if id.Email == "" || id.DisplayName == "" || id.AvatarURL == "" {
		if u, err := v.client.GetUser(ctx, tok.UID); err == nil && u.UserInfo != nil {
			if id.Email == "" {
				id.Email = u.Email
			}
			if id.DisplayName == "" {
				id.DisplayName = u.DisplayName
			}
			if id.AvatarURL == "" {
				id.AvatarURL = u.PhotoURL
			}
		}
	}
	return id, nil
}

func claimString(claims map[string]interface{}, key string) string {
	s, _ := claims[key].(string)
	return s
}
