package routes

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AnshRaj112/planpal-backend/internal/config"
	"github.com/AnshRaj112/planpal-backend/internal/handlers"
	"github.com/AnshRaj112/planpal-backend/internal/middleware"
)

// Options wires the router. Limiter may be nil, which disables the
// Redis-backed limiter outside production.
type Options struct {
	Config   *config.Config
	Handler  *handlers.Handler
	Sessions middleware.SessionLookup
	Limiter  *middleware.RedisRateLimiter
	Logger   *slog.Logger
}

// NewRouter builds the middleware chain and registers every route.
func NewRouter(opts Options) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(middleware.Logging(opts.Logger))
	r.Use(chimw.Recoverer)
	r.Use(middleware.Metrics)
	r.Use(middleware.CORS(opts.Config.AllowedOrigins))

	// Production: SecurityHeaders → HostCheck → GlobalRateLimit → LoginRateLimit.
	// Elsewhere: Redis-based rate limit only.
	if opts.Config.IsProduction() {
		for _, mw := range middleware.ProductionSecurity(opts.Config.AllowedHost) {
			r.Use(mw)
		}
		r.Use(middleware.LoginRateLimit)
	} else if opts.Limiter != nil {
		r.Use(opts.Limiter.Middleware)
	}

	r.Use(middleware.Session(opts.Sessions))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	SetupRoutes(r, opts.Handler)
	return r
}

func SetupRoutes(r chi.Router, h *handlers.Handler) {
	// Image relay
	r.With(middleware.UploadRateLimit).Post("/api/upload-image", h.UploadImage)

	// Auth
	r.Post("/api/auth/register", h.Register)
	r.Post("/api/auth/login", h.Login)
	r.Post("/api/auth/google", h.GoogleLogin)
	r.Post("/api/auth/logout", h.Logout)
	r.Post("/api/auth/forgot-password", h.ForgotPassword)
	r.Post("/api/auth/reset-password", h.ResetPassword)
	r.Get("/api/me", h.Me)

	// Profile
	r.Get("/api/profile", h.GetProfile)
	r.Put("/api/profile", h.UpdateProfile)
	r.With(middleware.UploadRateLimit).Post("/api/profile/avatar", h.UploadAvatar)

	// Trip gallery
	r.Route("/api/trips/{tripId}/photos", func(r chi.Router) {
		r.Use(middleware.RequireIdentity)
		r.Get("/", h.ListTripPhotos)
		r.With(middleware.UploadRateLimit).Post("/", h.UploadTripPhotos)
	})

	// Views
	r.Get("/dashboard", h.Dashboard)
	r.Get("/ws/session", h.SessionWebSocket)
}
