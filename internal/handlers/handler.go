package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/AnshRaj112/planpal-backend/internal/identity"
	"github.com/AnshRaj112/planpal-backend/internal/middleware"
	"github.com/AnshRaj112/planpal-backend/internal/models"
	"github.com/AnshRaj112/planpal-backend/internal/relay"
	"github.com/AnshRaj112/planpal-backend/internal/services"
	"github.com/AnshRaj112/planpal-backend/internal/session"
)

// requestTimeout bounds the store and provider calls made by one request.
const requestTimeout = 10 * time.Second

// AccountStore keeps email/password accounts and reset codes.
type AccountStore interface {
	Register(ctx context.Context, email, password, displayName string) (*services.Account, error)
	Authenticate(ctx context.Context, email, password string) (*services.Account, error)
	CreateResetToken(ctx context.Context, email string) (string, *services.Account, error)
	ResetPassword(ctx context.Context, token, password string) (*services.Account, error)
}

// SessionManager issues and revokes session tokens.
type SessionManager interface {
	Create(ctx context.Context, id *identity.Identity) (string, error)
	Refresh(ctx context.Context, token string) error
	Invalidate(ctx context.Context, token string) error
}

// GoogleVerifier checks a Firebase ID token from Google sign-in.
type GoogleVerifier interface {
	Verify(ctx context.Context, idToken string) (*identity.Identity, error)
}

// PhotoService stores trip gallery images.
type PhotoService interface {
	Add(ctx context.Context, tripID, uploadedBy string, images [][]byte) ([]services.TripPhoto, error)
	List(ctx context.Context, tripID string) ([]services.TripPhoto, error)
}

// Options wires a Handler. Google, Uploader and Transport may be nil when
// their credentials are not configured.
type Options struct {
	Accounts   AccountStore
	Sessions   SessionManager
	Google     GoogleVerifier
	Mailer     services.Mailer
	Resolver   *session.Resolver
	Profiles   session.ProfileStore
	Uploader   session.Uploader
	Transport  relay.Transport
	Photos     PhotoService
	MaxUpload  int64
	LoginRoute string
	Logger     *slog.Logger
}

// Handler serves the PlanPal HTTP and websocket API.
type Handler struct {
	accounts   AccountStore
	sessions   SessionManager
	google     GoogleVerifier
	mailer     services.Mailer
	resolver   *session.Resolver
	profiles   session.ProfileStore
	uploader   session.Uploader
	transport  relay.Transport
	photos     PhotoService
	maxUpload  int64
	loginRoute string
	logger     *slog.Logger
	validate   *validator.Validate
}

func New(opts Options) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	mailer := opts.Mailer
	if mailer == nil {
		mailer = services.LogMailer{Logger: logger}
	}
	loginRoute := opts.LoginRoute
	if loginRoute == "" {
		loginRoute = "/login"
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &Handler{
		accounts:   opts.Accounts,
		sessions:   opts.Sessions,
		google:     opts.Google,
		mailer:     mailer,
		resolver:   opts.Resolver,
		profiles:   opts.Profiles,
		uploader:   opts.Uploader,
		transport:  opts.Transport,
		photos:     opts.Photos,
		maxUpload:  opts.MaxUpload,
		loginRoute: loginRoute,
		logger:     logger,
		validate:   validate,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, models.ErrorResponse{Error: message})
}

// writeRelayError maps an image relay failure to its response. The remote
// message and details are passed through.
func (h *Handler) writeRelayError(w http.ResponseWriter, err error) {
	if errors.Is(err, relay.ErrNoImage) {
		writeError(w, http.StatusBadRequest, "No image provided")
		return
	}
	var rerr *relay.Error
	if !errors.As(err, &rerr) {
		h.logger.Error("image upload failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Image upload failed")
		return
	}
	if rerr.Kind == relay.KindTooLarge {
		writeError(w, http.StatusRequestEntityTooLarge, "Image too large")
		return
	}
	h.logger.Error("image upload failed", "kind", rerr.Kind.String(), "status", rerr.Status, "remote", rerr.Remote, "error", err)
	writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{
		Error:   rerr.Message(),
		Code:    rerr.Kind.String(),
		Details: rerr.Details,
	})
}

// decodeJSON reads a JSON body into v and runs struct validation. On failure
// it writes the 400 response and returns false.
func (h *Handler) decodeJSON(w http.ResponseWriter, r *http.Request, v any, invalid string) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	if err := h.validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			writeError(w, http.StatusBadRequest, invalid)
			return false
		}
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[fe.Field()] = fieldMessage(fe)
		}
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{
			Error:  invalid,
			Code:   "validation_error",
			Fields: fields,
		})
		return false
	}
	return true
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "max":
		return "Must be at most " + fe.Param() + " characters."
	case "numeric":
		return "Must be a number."
	default:
		return "Invalid value."
	}
}

func sessionToken(r *http.Request) string {
	if tok := middleware.TokenFrom(r.Context()); tok != "" {
		return tok
	}
	return middleware.SessionToken(r)
}

// view is a Mount serving one HTTP request or websocket connection.
type view struct {
	mount      *session.Mount
	changed    chan struct{}
	onNavigate func(route string)

	mu        sync.Mutex
	redirects []string
}

func (v *view) Navigate(route string) {
	v.mu.Lock()
	v.redirects = append(v.redirects, route)
	v.mu.Unlock()
	if v.onNavigate != nil {
		v.onNavigate(route)
	}
}

// Redirects returns the routes the guard has sent the view to.
func (v *view) Redirects() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]string(nil), v.redirects...)
}

// openView mounts a view for token. onState and onNavigate, when set, are
// called with the mount's lock held and must not block.
func (h *Handler) openView(ctx context.Context, token string, onState func(session.State), onNavigate func(string)) *view {
	v := &view{changed: make(chan struct{}, 1), onNavigate: onNavigate}
	v.mount = session.NewMount(session.MountConfig{
		Resolver:   h.resolver,
		Profiles:   h.profiles,
		Uploader:   h.uploader,
		Navigator:  v,
		LoginRoute: h.loginRoute,
		Logger:     h.logger,
		OnState: func(s session.State) {
			select {
			case v.changed <- struct{}{}:
			default:
			}
			if onState != nil {
				onState(s)
			}
		},
	})
	v.mount.Start(ctx, token)
	return v
}

// settle waits until the view has resolved its user.
func (v *view) settle(ctx context.Context) (session.State, error) {
	for {
		if s := v.mount.State(); s.Settled() {
			return s, nil
		}
		select {
		case <-v.changed:
		case <-ctx.Done():
			return session.State{}, ctx.Err()
		}
	}
}

func (v *view) close() {
	v.mount.Stop()
}

// withView mounts a view for the caller's session, waits for it to settle
// and hands it to fn. Signed-out callers get 401.
func (h *Handler) withView(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, v *view, s session.State)) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	v := h.openView(ctx, sessionToken(r), nil, nil)
	defer v.close()

	s, err := v.settle(ctx)
	if err != nil {
		h.logger.Error("session did not resolve", "error", err)
		writeError(w, http.StatusServiceUnavailable, "Session unavailable. Please try again.")
		return
	}
	if s.Status == session.StatusSignedOut {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	fn(ctx, v, s)
}
