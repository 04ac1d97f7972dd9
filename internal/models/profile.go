package models

import (
	"strings"

	"github.com/AnshRaj112/planpal-backend/internal/profile"
)

// ProfileUpdateRequest holds the editable profile fields. Omitted fields are
// left as stored.
type ProfileUpdateRequest struct {
	Name      *string `json:"name,omitempty" validate:"omitempty,max=100"`
	Phone     *string `json:"phone,omitempty" validate:"omitempty,max=32"`
	Age       *string `json:"age,omitempty" validate:"omitempty,numeric,max=3"`
	Location  *string `json:"location,omitempty" validate:"omitempty,max=200"`
	Interests *string `json:"interests,omitempty" validate:"omitempty,max=500"`
	Bio       *string `json:"bio,omitempty" validate:"omitempty,max=1000"`
}

// Patch converts the request into a profile patch with values trimmed.
func (r ProfileUpdateRequest) Patch() profile.Patch {
	trim := func(v *string) *string {
		if v == nil {
			return nil
		}
		s := strings.TrimSpace(*v)
		return &s
	}
	return profile.Patch{
		Name:      trim(r.Name),
		Phone:     trim(r.Phone),
		Age:       trim(r.Age),
		Location:  trim(r.Location),
		Interests: trim(r.Interests),
		Bio:       trim(r.Bio),
	}
}

type ProfileResponse struct {
	User    profile.EffectiveUser `json:"user"`
	Profile *profile.Record       `json:"profile"`
	Message string                `json:"message,omitempty"`
}

type AvatarResponse struct {
	URL  string                `json:"url"`
	User profile.EffectiveUser `json:"user"`
}

type UploadResponse struct {
	URL string `json:"url"`
}
