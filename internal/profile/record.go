package profile

import (
	"strings"
	"time"

	"github.com/AnshRaj112/planpal-backend/internal/identity"
)

// FallbackName is shown when neither the profile nor the identity carries a usable name.
const FallbackName = "User"

// Record is the persisted, user-editable profile document keyed by identity id.
type Record struct {
	Name      string    `bson:"name,omitempty" json:"name,omitempty"`
	Phone     string    `bson:"phone,omitempty" json:"phone,omitempty"`
	Age       string    `bson:"age,omitempty" json:"age,omitempty"`
	Location  string    `bson:"location,omitempty" json:"location,omitempty"`
	Interests string    `bson:"interests,omitempty" json:"interests,omitempty"`
	Bio       string    `bson:"bio,omitempty" json:"bio,omitempty"`
	Email     string    `bson:"email,omitempty" json:"email,omitempty"`
	AvatarURL string    `bson:"avatar_url,omitempty" json:"avatar_url,omitempty"`
	Verified  bool      `bson:"verified" json:"verified"`
	CreatedAt time.Time `bson:"created_at,omitempty" json:"created_at,omitempty"`
	UpdatedAt time.Time `bson:"updated_at,omitempty" json:"updated_at,omitempty"`
}

// Patch is a partial record. Nil fields are absent and never clear stored values.
type Patch struct {
	Name      *string    `json:"name,omitempty"`
	Phone     *string    `json:"phone,omitempty"`
	Age       *string    `json:"age,omitempty"`
	Location  *string    `json:"location,omitempty"`
	Interests *string    `json:"interests,omitempty"`
	Bio       *string    `json:"bio,omitempty"`
	Email     *string    `json:"email,omitempty"`
	AvatarURL *string    `json:"avatar_url,omitempty"`
	Verified  *bool      `json:"verified,omitempty"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// Fields returns the present keys of p, named as they are stored.
func (p Patch) Fields() map[string]any {
	f := make(map[string]any)
	setString := func(key string, v *string) {
		if v != nil {
			f[key] = *v
		}
	}
	setString("name", p.Name)
	setString("phone", p.Phone)
	setString("age", p.Age)
	setString("location", p.Location)
	setString("interests", p.Interests)
	setString("bio", p.Bio)
	setString("email", p.Email)
	setString("avatar_url", p.AvatarURL)
	if p.Verified != nil {
		f["verified"] = *p.Verified
	}
	if p.CreatedAt != nil {
		f["created_at"] = *p.CreatedAt
	}
	if p.UpdatedAt != nil {
		f["updated_at"] = *p.UpdatedAt
	}
	return f
}

// IsEmpty reports whether p carries no fields at all.
func (p Patch) IsEmpty() bool {
	return len(p.Fields()) == 0
}

// Apply merges the present fields of p into r.
func (p Patch) Apply(r *Record) {
	apply := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	apply(&r.Name, p.Name)
	apply(&r.Phone, p.Phone)
	apply(&r.Age, p.Age)
	apply(&r.Location, p.Location)
	apply(&r.Interests, p.Interests)
	apply(&r.Bio, p.Bio)
	apply(&r.Email, p.Email)
	apply(&r.AvatarURL, p.AvatarURL)
	if p.Verified != nil {
		r.Verified = *p.Verified
	}
	if p.CreatedAt != nil {
		r.CreatedAt = *p.CreatedAt
	}
	if p.UpdatedAt != nil {
		r.UpdatedAt = *p.UpdatedAt
	}
}

// String returns a pointer to s, for building patches.
func String(s string) *string { return &s }

// EffectiveUser is the read-only view merging an identity and its profile record.
type EffectiveUser struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
}

// Effective derives the effective user. Profile fields win over identity
// fields; rec may be nil for users without a stored profile.
func Effective(id *identity.Identity, rec *Record) EffectiveUser {
	var ident identity.Identity
	if id != nil {
		ident = *id
	}
	var r Record
	if rec != nil {
		r = *rec
	}

	email := firstNonBlank(r.Email, ident.Email)
	return EffectiveUser{
		ID:        ident.ID,
		Name:      firstNonBlank(r.Name, ident.DisplayName, identity.LocalPart(email), FallbackName),
		Email:     email,
		AvatarURL: firstNonBlank(r.AvatarURL, ident.AvatarURL),
	}
}

func firstNonBlank(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
