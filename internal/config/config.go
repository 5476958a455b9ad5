// Package config reads all runtime settings from the environment, with an
// optional .env file for development. The same binary serves dev, CI, and
// production without recompiling.
package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds every knob the server and the field client read.
type Config struct {
	// Server
	Addr        string // listen address, e.g. ":8080"
	DatabaseURL string // SQLite DSN with pragma parameters
	JWTSecret   string
	UploadDir   string // filesystem root for uploaded photos

	// Completion gate, inclusive: submit and PDF export require at least
	// this percentage of the checklist answered.
	CompletionThreshold int

	// Mail relay. Leaving SMTPHost empty disables sending; the email
	// endpoint then returns the rendered summary for manual delivery.
	SMTPHost string
	SMTPPort int
	SMTPUser string
	SMTPPass string
	SMTPFrom string

	// Field client
	APIBaseURL string // remote API root, e.g. "http://localhost:8080/api"
	ClientDB   string // path of the client's local durable store
}

// Load reads the configuration. A missing .env file is not an error — in
// production everything comes from real environment variables.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Addr: getenv("ADDR", ":8080"),
		DatabaseURL: getenv("DATABASE_URL",
			"storecheck.db?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"),
		JWTSecret:           getenv("JWT_SECRET", "changeme-use-a-real-secret-in-production"),
		UploadDir:           getenv("UPLOAD_DIR", "uploads"),
		CompletionThreshold: getenvInt("COMPLETION_THRESHOLD", 80),
		SMTPHost:            getenv("SMTP_HOST", ""),
		SMTPPort:            getenvInt("SMTP_PORT", 587),
		SMTPUser:            getenv("SMTP_USER", ""),
		SMTPPass:            getenv("SMTP_PASS", ""),
		SMTPFrom:            getenv("SMTP_FROM", "audits@storecheck.local"),
		APIBaseURL:          getenv("API_BASE_URL", "http://localhost:8080/api"),
		ClientDB: getenv("FIELDKIT_DB",
			"fieldkit.db?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"),
	}
}

// getenv returns the named environment variable, or fallback if unset/empty.
func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
