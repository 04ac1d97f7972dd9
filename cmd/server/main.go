package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/AnshRaj112/planpal-backend/internal/config"
	"github.com/AnshRaj112/planpal-backend/internal/database"
	"github.com/AnshRaj112/planpal-backend/internal/handlers"
	"github.com/AnshRaj112/planpal-backend/internal/middleware"
	"github.com/AnshRaj112/planpal-backend/internal/profile"
	"github.com/AnshRaj112/planpal-backend/internal/relay"
	"github.com/AnshRaj112/planpal-backend/internal/routes"
	"github.com/AnshRaj112/planpal-backend/internal/services"
	"github.com/AnshRaj112/planpal-backend/internal/session"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		logger.Info("No .env file found")
	}

	if err := run(logger); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Connecting to PostgreSQL...")
	db, err := database.ConnectPostgres(ctx, cfg.PostgresURI, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	logger.Info("Connecting to Redis...")
	rdb, err := database.ConnectRedis(ctx, cfg.RedisURI, logger)
	if err != nil {
		return err
	}
	defer rdb.Close()

	// Document store: MongoDB, or in-process maps for local runs.
	var (
		profileRepo profile.Repository
		photoRepo   services.PhotoRepository
	)
	switch cfg.DocumentStore {
	case config.DocumentStoreMemory:
		logger.Warn("Using in-memory document store; profiles and photos are lost on restart")
		profileRepo = profile.NewMemoryRepository()
		photoRepo = services.NewMemoryPhotoRepository()
	default:
		logger.Info("Connecting to MongoDB...")
		client, mdb, err := database.ConnectMongo(ctx, cfg.MongoURI, cfg.MongoDatabase, logger)
		if err != nil {
			return err
		}
		defer database.DisconnectMongo(client)
		profileRepo = services.NewCachedProfileRepository(
			services.NewMongoProfileRepository(mdb.Collection(database.UsersCollection)),
			services.NewCacheService(rdb),
			logger,
		)
		photoRepo = services.NewMongoPhotoRepository(mdb.Collection(database.TripPhotosCollection))
	}

	// Image relay, server half.
	var (
		transport relay.Transport
		uploader  *relay.Relay
	)
	if cfg.CloudinaryConfigured() {
		cld, err := services.NewCloudinaryService(cfg.CloudinaryName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret)
		if err != nil {
			logger.Warn("Failed to initialize Cloudinary; image uploads will not be available", "error", err)
		} else {
			transport = cld
			uploader = relay.New(cld, cfg.MaxUploadBytes())
			logger.Info("Cloudinary service initialized")
		}
	} else {
		logger.Warn("Cloudinary credentials not found; image uploads will not be available")
	}

	var google handlers.GoogleVerifier
	if cfg.FirebaseConfigured() {
		v, err := services.NewGoogleVerifier(ctx, cfg.FirebaseProjectID, cfg.FirebaseCredentials)
		if err != nil {
			logger.Warn("Failed to initialize Firebase; Google sign-in will not be available", "error", err)
		} else {
			google = v
			logger.Info("Firebase auth initialized")
		}
	}

	var mailer services.Mailer = services.LogMailer{Logger: logger}
	if cfg.SendGridAPIKey != "" {
		mailer = services.NewSendGridMailer(cfg.SendGridAPIKey, cfg.MailFrom, cfg.FrontendURL)
		logger.Info("SendGrid mailer configured")
	}

	events := services.NewRedisAuthEvents(rdb, logger)
	events.Start(ctx)
	sessions := services.NewSessionStore(rdb, cfg.SessionTTL, events)
	resolver := session.NewResolver(services.NewSessionProvider(sessions, events), logger)

	var photoUploader services.PhotoUploader
	if uploader != nil {
		photoUploader = uploader
	}
	h := handlers.Options{
		Accounts:   services.NewAccountService(db),
		Sessions:   sessions,
		Google:     google,
		Mailer:     mailer,
		Resolver:   resolver,
		Profiles:   profile.NewStore(profileRepo),
		Transport:  transport,
		Photos:     services.NewTripPhotoService(photoRepo, photoUploader),
		MaxUpload:  cfg.MaxUploadBytes(),
		LoginRoute: cfg.LoginRoute,
		Logger:     logger,
	}
	if uploader != nil {
		h.Uploader = uploader
	}

	router := routes.NewRouter(routes.Options{
		Config:   cfg,
		Handler:  handlers.New(h),
		Sessions: sessions,
		Limiter:  middleware.NewRedisRateLimiter(rdb, logger),
		Logger:   logger,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("PlanPal backend running", "port", cfg.Port, "env", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	select {
	case <-events.Done():
	case <-shutdownCtx.Done():
		logger.Warn("auth event subscriber did not stop in time")
	}
	return nil
}
