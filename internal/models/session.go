package models

import "github.com/AnshRaj112/planpal-backend/internal/profile"

// Session websocket message types.
const (
	SessionMessageState    = "state"
	SessionMessageRedirect = "redirect"
	SessionMessageError    = "error"
	SessionMessageSaved    = "saved"
	SessionMessageAvatar   = "avatar"

	SessionActionSaveProfile  = "save_profile"
	SessionActionUploadAvatar = "upload_avatar"
)

// SessionServerMessage is sent from the server on /ws/session.
type SessionServerMessage struct {
	Type    string                 `json:"type"`
	Status  string                 `json:"status,omitempty"`
	User    *profile.EffectiveUser `json:"user,omitempty"`
	Profile *profile.Record        `json:"profile,omitempty"`
	Message string                 `json:"message,omitempty"`
	To      string                 `json:"to,omitempty"`
	URL     string                 `json:"url,omitempty"`
	Error   string                 `json:"error,omitempty"`
}

// SessionClientMessage is sent by the client on /ws/session. Image is a
// base64 data URL for upload_avatar.
type SessionClientMessage struct {
	Type    string                `json:"type"`
	Profile *ProfileUpdateRequest `json:"profile,omitempty"`
	Image   string                `json:"image,omitempty"`
}
