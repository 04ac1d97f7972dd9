package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	DocumentStoreMongo  = "mongo"
	DocumentStoreMemory = "memory"
)

type Config struct {
	MongoURI            string
	MongoDatabase       string
	DocumentStore       string // "mongo" or "memory"; memory keeps profiles/photos in-process for local runs
	PostgresURI         string
	RedisURI            string
	Port                string
	FrontendURL         string
	AllowedOrigins      []string // CORS: from ALLOWED_ORIGINS or FRONTEND_URL(s)
	AllowedHost         string   // production Host check, e.g. api.planpal.app
	CloudinaryName      string
	CloudinaryAPIKey    string
	CloudinaryAPISecret string
	FirebaseProjectID   string
	FirebaseCredentials string // raw service-account JSON
	SendGridAPIKey      string
	MailFrom            string
	MaxUploadMB         int64
	UploadFolder        string
	LoginRoute          string
	SessionTTL          time.Duration
	Environment         string // ENV: production, development, etc.
}

func Load() *Config {
	env := strings.ToLower(strings.TrimSpace(getEnv("ENV", "development")))

	allowedOrigins := parseOrigins(getEnv("ALLOWED_ORIGINS", ""))
	if len(allowedOrigins) == 0 {
		for _, u := range []string{getEnv("FRONTEND_URL", "http://localhost:3000"), getEnv("FRONTEND_URL_2", "")} {
			u = strings.TrimSpace(u)
			if u != "" {
				allowedOrigins = append(allowedOrigins, u)
			}
		}
	}

	return &Config{
		MongoURI:            getEnv("MONGODB_URI", getEnv("MONGO_URI", "mongodb://localhost:27017/planpal")),
		MongoDatabase:       getEnv("MONGODB_DATABASE", ""),
		DocumentStore:       strings.ToLower(getEnv("DOCUMENT_STORE", DocumentStoreMongo)),
		PostgresURI:         getEnv("POSTGRES_URI", "postgres://localhost:5432/planpal?sslmode=disable"),
		RedisURI:            getEnv("REDIS_URI", "redis://localhost:6379/0"),
		Environment:         env,
		Port:                getEnv("PORT", "8080"),
		FrontendURL:         getEnv("FRONTEND_URL", "http://localhost:3000"),
		AllowedOrigins:      allowedOrigins,
		AllowedHost:         getEnv("ALLOWED_HOST", ""),
		CloudinaryName:      getEnv("CLOUDINARY_CLOUD_NAME", ""),
		CloudinaryAPIKey:    getEnv("CLOUDINARY_API_KEY", ""),
		CloudinaryAPISecret: getEnv("CLOUDINARY_API_SECRET", ""),
		FirebaseProjectID:   getEnv("FIREBASE_PROJECT_ID", ""),
		FirebaseCredentials: getEnv("FIREBASE_CREDENTIALS_JSON", ""),
		SendGridAPIKey:      getEnv("SENDGRID_API_KEY", ""),
		MailFrom:            getEnv("MAIL_FROM", "no-reply@planpal.app"),
		MaxUploadMB:         getEnvInt64("MAX_UPLOAD_MB", 10),
		UploadFolder:        getEnv("DEFAULT_UPLOAD_FOLDER", "planpal"),
		LoginRoute:          getEnv("LOGIN_ROUTE", "/login"),
		SessionTTL:          getEnvDuration("SESSION_TTL", 7*24*time.Hour),
	}
}

// Validate reports configuration that would make the server unusable.
// Missing image-host or Google sign-in credentials are not fatal; those
// endpoints fail fast at request time instead.
func (c *Config) Validate() error {
	var errs []error
	if c.Port == "" {
		errs = append(errs, errors.New("PORT must not be empty"))
	}
	if c.DocumentStore != DocumentStoreMongo && c.DocumentStore != DocumentStoreMemory {
		errs = append(errs, fmt.Errorf("DOCUMENT_STORE must be %q or %q, got %q", DocumentStoreMongo, DocumentStoreMemory, c.DocumentStore))
	}
	if c.DocumentStore == DocumentStoreMongo && c.MongoURI == "" {
		errs = append(errs, errors.New("MONGODB_URI is required when DOCUMENT_STORE=mongo"))
	}
	if c.PostgresURI == "" {
		errs = append(errs, errors.New("POSTGRES_URI is required"))
	}
	if c.RedisURI == "" {
		errs = append(errs, errors.New("REDIS_URI is required"))
	}
	if c.MaxUploadMB <= 0 {
		errs = append(errs, fmt.Errorf("MAX_UPLOAD_MB must be positive, got %d", c.MaxUploadMB))
	}
	if c.IsProduction() && c.DocumentStore == DocumentStoreMemory {
		errs = append(errs, errors.New("DOCUMENT_STORE=memory is not allowed in production"))
	}
	return errors.Join(errs...)
}

// CloudinaryConfigured reports whether all three image-host credentials are present.
func (c *Config) CloudinaryConfigured() bool {
	return c.CloudinaryName != "" && c.CloudinaryAPIKey != "" && c.CloudinaryAPISecret != ""
}

// FirebaseConfigured reports whether Google sign-in can be verified.
func (c *Config) FirebaseConfigured() bool {
	return c.FirebaseProjectID != ""
}

// MaxUploadBytes is the relay size ceiling in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return c.MaxUploadMB << 20
}

// IsProduction returns true when ENV is set to "production".
func (c *Config) IsProduction() bool {
	return strings.ToLower(strings.TrimSpace(c.Environment)) == "production"
}

func parseOrigins(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil {
		return defaultValue
	}
	return n
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		return defaultValue
	}
	return d
}
