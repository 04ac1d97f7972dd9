package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/AnshRaj112/planpal-backend/internal/identity"
	"github.com/AnshRaj112/planpal-backend/internal/profile"
	"github.com/AnshRaj112/planpal-backend/internal/relay"
)

// Status is where a mounted view is in resolving its user.
type Status string

const (
	StatusResolving Status = "resolving"
	StatusSignedOut Status = "signed_out"
	StatusLoading   Status = "loading"
	StatusReady     Status = "ready"
)

// LoadFailedMessage is shown when the profile could not be read; the view
// keeps working with the identity's own fields.
const LoadFailedMessage = "Could not load full profile. Try again later."

var (
	ErrUnmounted = errors.New("session: view is unmounted")
	ErrSignedOut = errors.New("session: not signed in")
)

// ProfileStore is the part of profile.Store a mounted view needs.
type ProfileStore interface {
	Load(ctx context.Context, identityID string) (*profile.Record, error)
	Save(ctx context.Context, identityID string, patch profile.Patch) error
}

// Uploader relays image bytes to the image host.
type Uploader interface {
	Upload(ctx context.Context, data []byte, folder string) (relay.Result, error)
}

// State is a snapshot of a mounted view.
type State struct {
	Status   Status
	Identity *identity.Identity
	Record   *profile.Record
	User     profile.EffectiveUser
	Message  string
}

// Settled reports whether the view has finished resolving its user.
func (s State) Settled() bool {
	return s.Status == StatusSignedOut || s.Status == StatusReady
}

// MountConfig wires a Mount.
type MountConfig struct {
	Resolver     *Resolver
	Profiles     ProfileStore
	Uploader     Uploader
	Navigator    Navigator
	LoginRoute   string
	AvatarFolder func(identityID string) string
	Logger       *slog.Logger
	// OnState receives every snapshot while the view is mounted. It is called
	// with the mount's lock held and must not call back into the Mount.
	OnState func(State)
}

// Mount is one view bound to one session: it follows the identity, loads
// the matching profile and discards any work that completes for an identity
// that is no longer current or after Stop.
type Mount struct {
	resolver     *Resolver
	profiles     ProfileStore
	uploader     Uploader
	guard        *Guard
	avatarFolder func(string) string
	onState      func(State)
	logger       *slog.Logger

	mu          sync.Mutex
	started     bool
	mounted     bool
	ctx         context.Context
	unsubscribe func()
	generation  uint64
	cancelLoad  context.CancelFunc
	state       State
	// patches saved while the current load is in flight
	pending []profile.Patch

	inflight sync.WaitGroup
}

func NewMount(cfg MountConfig) *Mount {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	route := cfg.LoginRoute
	if route == "" {
		route = "/login"
	}
	folder := cfg.AvatarFolder
	if folder == nil {
		folder = AvatarFolder
	}
	return &Mount{
		resolver:     cfg.Resolver,
		profiles:     cfg.Profiles,
		uploader:     cfg.Uploader,
		guard:        NewGuard(cfg.Navigator, route),
		avatarFolder: folder,
		onState:      cfg.OnState,
		logger:       logger,
		state:        State{Status: StatusResolving},
	}
}

// AvatarFolder is the image-host folder for an identity's avatars.
func AvatarFolder(identityID string) string {
	return relay.DefaultFolder + "/avatars/" + identityID
}

// Start subscribes to the session identified by token. Calls after the
// first are ignored.
func (m *Mount) Start(ctx context.Context, token string) {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return
	}
	m.started = true
	m.mounted = true
	m.ctx = ctx
	m.mu.Unlock()

	unsubscribe := m.resolver.Subscribe(ctx, token, m.handle)

	m.mu.Lock()
	if !m.mounted {
		m.mu.Unlock()
		unsubscribe()
		return
	}
	m.unsubscribe = unsubscribe
	m.mu.Unlock()
}

// Stop unmounts the view. Loads and uploads still in flight complete as no-ops.
func (m *Mount) Stop() {
	m.mu.Lock()
	if !m.mounted {
		m.mu.Unlock()
		return
	}
	m.mounted = false
	unsubscribe := m.unsubscribe
	cancel := m.cancelLoad
	m.unsubscribe, m.cancelLoad = nil, nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if unsubscribe != nil {
		unsubscribe()
	}
}

// Wait blocks until every profile load started so far has returned.
func (m *Mount) Wait() {
	m.inflight.Wait()
}

// State returns the latest snapshot.
func (m *Mount) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Mount) handle(id *identity.Identity) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.mounted {
		return
	}

	m.generation++
	m.pending = nil
	if m.cancelLoad != nil {
		m.cancelLoad()
		m.cancelLoad = nil
	}

	if id == nil {
		m.publish(State{Status: StatusSignedOut, User: profile.Effective(nil, nil)})
		m.guard.Observe(nil)
		return
	}
	m.guard.Observe(id)
	m.publish(State{Status: StatusLoading, Identity: id, User: profile.Effective(id, nil)})

	ctx, cancel := context.WithCancel(m.ctx)
	m.cancelLoad = cancel
	m.inflight.Add(1)
	go m.load(ctx, cancel, id, m.generation)
}

func (m *Mount) load(ctx context.Context, cancel context.CancelFunc, id *identity.Identity, generation uint64) {
	defer m.inflight.Done()
	defer cancel()

	rec, err := m.profiles.Load(ctx, id.ID)

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.mounted || generation != m.generation {
		return
	}
	m.cancelLoad = nil

	next := State{Status: StatusReady, Identity: id}
	switch {
	case err == nil:
		next.Record = rec
	case errors.Is(err, profile.ErrNotFound):
	default:
		m.logger.Error("profile load failed", "identity_id", id.ID, "error", err)
		next.Message = LoadFailedMessage
	}
	// The load may have read the store before these saves landed.
	if len(m.pending) > 0 {
		merged := profile.Record{}
		if next.Record != nil {
			merged = *next.Record
		}
		for _, patch := range m.pending {
			patch.Apply(&merged)
		}
		next.Record = &merged
		m.pending = nil
	}
	next.User = profile.Effective(id, next.Record)
	m.publish(next)
}

// SaveProfile merges patch into the current identity's profile and updates
// the view. The identity's email is stamped onto the record when known.
func (m *Mount) SaveProfile(ctx context.Context, patch profile.Patch) error {
	id, generation, err := m.current()
	if err != nil {
		return err
	}
	if patch.Email == nil && id.Email != "" {
		patch.Email = profile.String(id.Email)
	}
	if err := m.profiles.Save(ctx, id.ID, patch); err != nil {
		return err
	}
	m.applySaved(generation, patch)
	return nil
}

// SaveAvatar relays data to the identity's avatar folder and records the
// resulting URL. If the view is unmounted or the identity changes while the
// upload is in flight the URL is not written.
func (m *Mount) SaveAvatar(ctx context.Context, data []byte) (string, error) {
	if m.uploader == nil {
		return "", errors.New("session: image relay not configured")
	}
	id, generation, err := m.current()
	if err != nil {
		return "", err
	}

	res, err := m.uploader.Upload(ctx, data, m.avatarFolder(id.ID))
	if err != nil {
		return "", fmt.Errorf("upload avatar: %w", err)
	}

	m.mu.Lock()
	stale := !m.mounted || generation != m.generation
	m.mu.Unlock()
	if stale {
		m.logger.Info("avatar upload finished after identity changed, discarding", "identity_id", id.ID)
		return res.URL, nil
	}

	patch := profile.Patch{AvatarURL: profile.String(res.URL)}
	if err := m.profiles.Save(ctx, id.ID, patch); err != nil {
		return "", err
	}
	m.applySaved(generation, patch)
	return res.URL, nil
}

func (m *Mount) current() (*identity.Identity, uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.mounted {
		return nil, 0, ErrUnmounted
	}
	if m.state.Identity == nil {
		return nil, 0, ErrSignedOut
	}
	return m.state.Identity, m.generation, nil
}

func (m *Mount) applySaved(generation uint64, patch profile.Patch) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.mounted || generation != m.generation {
		return
	}
	var rec profile.Record
	if m.state.Record != nil {
		rec = *m.state.Record
	}
	patch.Apply(&rec)
	if m.state.Status == StatusLoading {
		m.pending = append(m.pending, patch)
	}

	next := m.state
	next.Record = &rec
	next.Message = ""
	next.User = profile.Effective(next.Identity, next.Record)
	m.publish(next)
}

// publish must be called with m.mu held.
func (m *Mount) publish(s State) {
	m.state = s
	if m.onState != nil {
		m.onState(s)
	}
}
