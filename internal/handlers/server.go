// Package handlers contains the HTTP handler logic for the storecheck API.
//
// All handler files share one package so they can use each other's helpers
// without exporting them; files are split by domain (auth, org, checklist,
// visits, photos, reports, email) purely for readability.
//
// The central type is Server: a plain struct holding the shared dependencies
// every handler needs. Dependencies live on the struct, not in globals, so
// each test can build its own Server around its own in-memory database.
package handlers

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"

	"storecheck/internal/mail"
	"storecheck/internal/photostore"
)

// respond writes v as JSON with the given HTTP status code. Content-Type is
// set before WriteHeader because headers flush on the first write.
func respond(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// If the client disconnected mid-write there is nothing useful to do,
	// and logging every dropped connection would be noisy.
	_ = json.NewEncoder(w).Encode(body)
}

// respondError sends a JSON object with a single "error" key. Every error
// message is written for the evaluator in the field: short, and with an
// actionable next step where one exists.
func respondError(w http.ResponseWriter, status int, msg string) {
	respond(w, status, map[string]string{"error": msg})
}

// decode reads and parses a JSON request body into v.
func decode(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}

// Server holds shared dependencies for all handlers.
type Server struct {
	// DB is the SQLite connection pool; database/sql serializes access
	// across the pool's connections and is safe for concurrent use.
	DB *sql.DB
	// Secret is the HMAC key used to sign and verify JWTs.
	Secret string
	// Threshold is the minimum completion percentage (inclusive) for
	// accepting a completed visit or exporting its PDF.
	Threshold int
	// Photos stores uploaded visit evidence.
	Photos *photostore.Store
	// Mailer sends visit summaries. May be a disabled sender when no SMTP
	// relay is configured.
	Mailer mail.Sender
	// Log receives one structured line per notable handler event.
	Log *slog.Logger
}

// logger returns the configured logger or a discard-equivalent default, so
// handlers never have to nil-check.
func (s *Server) logger() *slog.Logger {
	if s.Log != nil {
		return s.Log
	}
	return slog.Default()
}
