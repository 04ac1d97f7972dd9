package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/AnshRaj112/planpal-backend/internal/identity"
	"github.com/AnshRaj112/planpal-backend/internal/middleware"
	"github.com/AnshRaj112/planpal-backend/internal/profile"
	"github.com/AnshRaj112/planpal-backend/internal/relay"
	"github.com/AnshRaj112/planpal-backend/internal/services"
	"github.com/AnshRaj112/planpal-backend/internal/session"
	"github.com/AnshRaj112/planpal-backend/pkg/utils"
)

const testMaxUpload = 1 << 20

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

// fakeTransport stands in for the image host. Images whose bytes start with
// "bad" are rejected the way the host rejects a corrupt file.
type fakeTransport struct {
	mu      sync.Mutex
	calls   int
	folders []string
}

func (f *fakeTransport) Transmit(_ context.Context, dataURL, folder string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.folders = append(f.folders, folder)

	_, data, err := relay.DecodeDataURL(dataURL)
	if err != nil {
		return "", err
	}
	if bytes.HasPrefix(data, []byte("bad")) {
		return "", &relay.Error{
			Kind:    relay.KindRemoteRejected,
			Status:  http.StatusBadRequest,
			Remote:  "Invalid image file",
			Details: json.RawMessage(`{"http_code":400}`),
		}
	}
	return fmt.Sprintf("https://res.cloudinary.com/demo/%d.png", f.calls), nil
}

func (f *fakeTransport) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeTransport) Folders() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.folders...)
}

type fakeAccounts struct {
	mu       sync.Mutex
	accounts map[string]*services.Account
	password map[string]string
	codes    map[string]string
}

func newFakeAccounts() *fakeAccounts {
	return &fakeAccounts{
		accounts: make(map[string]*services.Account),
		password: make(map[string]string),
		codes:    make(map[string]string),
	}
}

func (f *fakeAccounts) Register(_ context.Context, email, password, name string) (*services.Account, error) {
	email = utils.NormalizeEmail(email)
	if err := utils.ValidateEmail(email); err != nil {
		return nil, err
	}
	if err := utils.ValidatePassword(password); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.accounts[email]; ok {
		return nil, services.ErrEmailInUse
	}
	acc := &services.Account{ID: uuid.New(), Email: email, DisplayName: name, CreatedAt: time.Now()}
	f.accounts[email] = acc
	f.password[email] = password
	return acc, nil
}

func (f *fakeAccounts) Authenticate(_ context.Context, email, password string) (*services.Account, error) {
	email = utils.NormalizeEmail(email)
	if err := utils.ValidateEmail(email); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	acc, ok := f.accounts[email]
	if !ok {
		return nil, services.ErrAccountNotFound
	}
	if f.password[email] != password {
		return nil, services.ErrInvalidCredentials
	}
	return acc, nil
}

func (f *fakeAccounts) CreateResetToken(_ context.Context, email string) (string, *services.Account, error) {
	email = utils.NormalizeEmail(email)
	f.mu.Lock()
	defer f.mu.Unlock()
	acc, ok := f.accounts[email]
	if !ok {
		return "", nil, services.ErrAccountNotFound
	}
	code := uuid.NewString()
	f.codes[code] = email
	return code, acc, nil
}

func (f *fakeAccounts) ResetPassword(_ context.Context, code, password string) (*services.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	email, ok := f.codes[code]
	if !ok {
		return nil, services.ErrResetCodeInvalid
	}
	delete(f.codes, code)
	f.password[email] = password
	return f.accounts[email], nil
}

type fakeMailer struct {
	mu            sync.Mutex
	verifications []string
	resets        map[string]string
}

func (m *fakeMailer) SendVerification(_ context.Context, to, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.verifications = append(m.verifications, to)
	return nil
}

func (m *fakeMailer) SendPasswordReset(_ context.Context, to, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.resets == nil {
		m.resets = make(map[string]string)
	}
	m.resets[to] = code
	return nil
}

// countingProfiles counts loads so views can be checked for not touching
// the profile store.
type countingProfiles struct {
	*profile.Store
	loads atomic.Int32
}

func (c *countingProfiles) Load(ctx context.Context, id string) (*profile.Record, error) {
	c.loads.Add(1)
	return c.Store.Load(ctx, id)
}

type testEnv struct {
	t         *testing.T
	handler   *Handler
	server    *httptest.Server
	sessions  *services.SessionStore
	profiles  *countingProfiles
	repo      *profile.MemoryRepository
	transport *fakeTransport
	accounts  *fakeAccounts
	mailer    *fakeMailer
}

type envOption func(*Options)

func withoutImageHost(o *Options) {
	o.Transport = nil
	o.Uploader = nil
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	events := services.NewLocalAuthEvents()
	sessions := services.NewSessionStore(client, time.Hour, events)
	repo := profile.NewMemoryRepository()
	profiles := &countingProfiles{Store: profile.NewStore(repo)}
	transport := &fakeTransport{}
	uploader := relay.New(transport, testMaxUpload)

	env := &testEnv{
		t:         t,
		sessions:  sessions,
		profiles:  profiles,
		repo:      repo,
		transport: transport,
		accounts:  newFakeAccounts(),
		mailer:    &fakeMailer{},
	}

	o := Options{
		Accounts:   env.accounts,
		Sessions:   sessions,
		Mailer:     env.mailer,
		Resolver:   session.NewResolver(services.NewSessionProvider(sessions, events), discard),
		Profiles:   profiles,
		Uploader:   uploader,
		Transport:  transport,
		Photos:     services.NewTripPhotoService(services.NewMemoryPhotoRepository(), uploader),
		MaxUpload:  testMaxUpload,
		LoginRoute: "/login",
		Logger:     discard,
	}
	for _, opt := range opts {
		opt(&o)
	}
	env.handler = New(o)

	r := chi.NewRouter()
	r.Use(middleware.Session(sessions))
	h := env.handler
	r.Post("/api/upload-image", h.UploadImage)
	r.Post("/api/auth/register", h.Register)
	r.Post("/api/auth/login", h.Login)
	r.Post("/api/auth/google", h.GoogleLogin)
	r.Post("/api/auth/logout", h.Logout)
	r.Post("/api/auth/forgot-password", h.ForgotPassword)
	r.Post("/api/auth/reset-password", h.ResetPassword)
	r.Get("/api/me", h.Me)
	r.Get("/api/profile", h.GetProfile)
	r.Put("/api/profile", h.UpdateProfile)
	r.Post("/api/profile/avatar", h.UploadAvatar)
	r.With(middleware.RequireIdentity).Get("/api/trips/{tripId}/photos", h.ListTripPhotos)
	r.With(middleware.RequireIdentity).Post("/api/trips/{tripId}/photos", h.UploadTripPhotos)
	r.Get("/dashboard", h.Dashboard)
	r.Get("/ws/session", h.SessionWebSocket)

	env.server = httptest.NewServer(r)
	t.Cleanup(env.server.Close)
	return env
}

// signIn creates a session for a fresh identity.
func (e *testEnv) signIn(id *identity.Identity) string {
	e.t.Helper()
	token, err := e.sessions.Create(context.Background(), id)
	require.NoError(e.t, err)
	return token
}

func (e *testEnv) do(method, path, token string, body io.Reader, contentType string) *http.Response {
	e.t.Helper()
	req, err := http.NewRequest(method, e.server.URL+path, body)
	require.NoError(e.t, err)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}}
	resp, err := client.Do(req)
	require.NoError(e.t, err)
	e.t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (e *testEnv) postJSON(path, token string, v any) *http.Response {
	e.t.Helper()
	data, err := json.Marshal(v)
	require.NoError(e.t, err)
	return e.do(http.MethodPost, path, token, bytes.NewReader(data), "application/json")
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

// multipartBody builds a form with one part per file under field.
func multipartBody(t *testing.T, field string, files ...[]byte) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for i, data := range files {
		part, err := mw.CreateFormFile(field, fmt.Sprintf("photo-%d.png", i))
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

var pngBytes = []byte("\x89PNG\r\n\x1a\n" + strings.Repeat("x", 64))

func identityFor(id, email, name, avatar string) *identity.Identity {
	return &identity.Identity{ID: id, Email: email, DisplayName: name, AvatarURL: avatar, Provider: identity.ProviderGoogle}
}
