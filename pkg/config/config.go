package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port           string
	DatabaseURL    string
	RedisURL       string
	JWTSecret      string
	AdminKey       string
	AllowedOrigins string
	UploadDir      string
	UploadURL      string
	Production     bool

	// PortalURL is the base URL the interaction client talks to.
	PortalURL string

	CommentMaxLength int
}

// Load reads .env (if present) and then the environment, falling back to
// development defaults.
func Load() *Config {
	for _, path := range []string{".env", "../.env", "../../.env"} {
		if err := godotenv.Load(path); err == nil {
			break
		}
	}

	return &Config{
		Port:             getenv("PORT", "8082"),
		DatabaseURL:      getenv("DATABASE_URL", "postgres://localhost:5432/technobug?sslmode=disable"),
		RedisURL:         getenv("REDIS_URL", "redis://localhost:6379"),
		JWTSecret:        getenv("JWT_SECRET", "dev-secret-key-change-in-production"),
		AdminKey:         getenv("ADMIN_SECRET_KEY", "dev-admin-secret"),
		AllowedOrigins:   getenv("ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:8082"),
		UploadDir:        getenv("UPLOAD_DIR", "uploads"),
		UploadURL:        strings.TrimRight(getenv("UPLOAD_URL", "/uploads"), "/"),
		Production:       os.Getenv("GO_ENV") == "production",
		PortalURL:        strings.TrimRight(getenv("PORTAL_URL", "http://localhost:8082"), "/"),
		CommentMaxLength: getenvInt("COMMENT_MAX_LENGTH", 500),
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}
