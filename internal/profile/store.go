// Package profile loads and merge-saves profile records and derives the
// effective user shown to the rest of the application.
package profile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrNotFound means no record exists for the identity yet. It is an
	// expected outcome for new users, not a failure.
	ErrNotFound = errors.New("profile not found")
	// ErrNoIdentity is returned when a load or save is attempted without a resolved identity.
	ErrNoIdentity = errors.New("profile: identity id is required")
)

// Repository is the document-store collection holding profile records.
type Repository interface {
	// Find returns ErrNotFound when no record exists for id.
	Find(ctx context.Context, id string) (*Record, error)
	// Merge upserts the present fields of patch, leaving every other stored field untouched.
	Merge(ctx context.Context, id string, patch Patch) error
}

// Store is the profile store adapter.
type Store struct {
	repo Repository
	now  func() time.Time
}

func NewStore(repo Repository) *Store {
	return &Store{repo: repo, now: time.Now}
}

// WithClock returns a copy of s that stamps updates with now.
func (s *Store) WithClock(now func() time.Time) *Store {
	return &Store{repo: s.repo, now: now}
}

// Load returns the record for identityID, or ErrNotFound.
func (s *Store) Load(ctx context.Context, identityID string) (*Record, error) {
	if strings.TrimSpace(identityID) == "" {
		return nil, ErrNoIdentity
	}
	rec, err := s.repo.Find(ctx, identityID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load profile %s: %w", identityID, err)
	}
	return rec, nil
}

// Save merges patch into the stored record and stamps updated_at.
func (s *Store) Save(ctx context.Context, identityID string, patch Patch) error {
	if strings.TrimSpace(identityID) == "" {
		return ErrNoIdentity
	}
	now := s.now().UTC()
	patch.UpdatedAt = &now
	if err := s.repo.Merge(ctx, identityID, patch); err != nil {
		return fmt.Errorf("save profile %s: %w", identityID, err)
	}
	return nil
}
