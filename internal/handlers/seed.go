package handlers

import (
	"net/http"

	"storecheck/internal/db"
)

// SeedDemo handles POST /api/admin/seed  (admin only)
//
// Loads the built-in checklist template and a small org hierarchy so a fresh
// deployment has something to audit. Seeding is idempotent; calling it twice
// changes nothing.
func (s *Server) SeedDemo(w http.ResponseWriter, r *http.Request) {
	if err := db.Seed(s.DB); err != nil {
		s.logger().Error("seed demo data", "err", err)
		respondError(w, http.StatusInternalServerError, "could not seed demo data")
		return
	}
	respond(w, http.StatusOK, map[string]string{"status": "seeded"})
}

// Health handles GET /api/health — a connectivity probe for field clients.
// A one-byte-cheap query proves the database is reachable, not just the
// listener.
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	if err := s.DB.PingContext(r.Context()); err != nil {
		respondError(w, http.StatusServiceUnavailable, "database unreachable")
		return
	}
	respond(w, http.StatusOK, map[string]string{"status": "ok"})
}
