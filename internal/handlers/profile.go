package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/AnshRaj112/planpal-backend/internal/models"
	"github.com/AnshRaj112/planpal-backend/internal/session"
)

// GetProfile returns the caller's effective user and stored profile.
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	h.withView(w, r, func(_ context.Context, _ *view, s session.State) {
		writeJSON(w, http.StatusOK, models.ProfileResponse{User: s.User, Profile: s.Record, Message: s.Message})
	})
}

// UpdateProfile merges the editable fields into the caller's profile.
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req models.ProfileUpdateRequest
	if !h.decodeJSON(w, r, &req, "Invalid profile data.") {
		return
	}
	patch := req.Patch()
	if patch.IsEmpty() {
		writeError(w, http.StatusBadRequest, "No profile fields provided.")
		return
	}

	h.withView(w, r, func(ctx context.Context, v *view, _ session.State) {
		if err := v.mount.SaveProfile(ctx, patch); err != nil {
			h.writeSaveError(w, err)
			return
		}
		s := v.mount.State()
		writeJSON(w, http.StatusOK, models.ProfileResponse{User: s.User, Profile: s.Record})
	})
}

// UploadAvatar relays the multipart "avatar" file to the caller's avatar
// folder and stores the URL on the profile.
func (h *Handler) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	if h.uploader == nil {
		writeError(w, http.StatusInternalServerError, "image relay not configured")
		return
	}
	if h.maxUpload > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+multipartOverhead)
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusRequestEntityTooLarge, "Image too large")
			return
		}
		writeError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}
	data, err := readFormFile(r, "avatar", h.maxUpload)
	if err != nil || len(data) == 0 {
		writeError(w, http.StatusBadRequest, "No image provided")
		return
	}

	h.withView(w, r, func(ctx context.Context, v *view, _ session.State) {
		url, err := v.mount.SaveAvatar(ctx, data)
		if err != nil {
			if errors.Is(err, session.ErrSignedOut) || errors.Is(err, session.ErrUnmounted) {
				h.writeSaveError(w, err)
				return
			}
			h.writeRelayError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, models.AvatarResponse{URL: url, User: v.mount.State().User})
	})
}

func (h *Handler) writeSaveError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrSignedOut):
		writeError(w, http.StatusUnauthorized, "Unauthorized")
	case errors.Is(err, session.ErrUnmounted):
		writeError(w, http.StatusServiceUnavailable, "Session closed. Please try again.")
	default:
		h.logger.Error("profile save failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to save profile.")
	}
}
