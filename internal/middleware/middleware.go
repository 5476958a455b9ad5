// Package middleware provides HTTP middleware for the storecheck server.
//
// Middleware here follows the standard wrapping pattern: a function that
// takes the next http.Handler and returns a new one that runs something
// before and/or after it. Chains read outside-in:
// CORS(Authenticate(handler)) runs CORS first, then auth, then the handler.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"storecheck/internal/auth"
)

// contextKey is a private type for context keys in this package, preventing
// collisions with other packages that store values in the request context.
type contextKey string

const (
	// ContextUserID is the key under which the authenticated user's ID is
	// stored after Authenticate runs.
	ContextUserID contextKey = "user_id"
	// ContextRole is the key for the user's role.
	ContextRole contextKey = "role"
)

// Authenticate is a middleware factory configured with the JWT secret.
//
// Flow:
//  1. Read the "Authorization: Bearer <token>" header.
//  2. Parse and validate the JWT.
//  3. Store user_id and role in the request context.
//  4. Call the next handler.
//
// Missing or invalid tokens get a 401 and the chain stops.
func Authenticate(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				http.Error(w, `{"error":"missing or invalid Authorization header"}`, http.StatusUnauthorized)
				return
			}
			tokenStr := strings.TrimPrefix(header, "Bearer ")

			claims, err := auth.ParseToken(tokenStr, secret)
			if err != nil {
				http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), ContextUserID, claims.UserID)
			ctx = context.WithValue(ctx, ContextRole, claims.Role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole returns a middleware that only allows requests whose context
// role matches one of the given roles. Must run after Authenticate.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role, _ := r.Context().Value(ContextRole).(string)
			if !allowed[role] {
				http.Error(w, `{"error":"forbidden"}`, http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// CORS adds permissive CORS headers so the mobile PWA can call the API from
// a different origin. The OPTIONS preflight gets a 204 so the real request
// is allowed to proceed.
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Log writes one structured line per request: method, path, duration.
// Status codes are captured with a thin ResponseWriter wrapper.
func Log(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)
			logger.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", sw.status,
				"duration", time.Since(start),
			)
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// GetUserID retrieves the authenticated user's ID from the context. Returns
// an empty string if Authenticate has not run.
func GetUserID(ctx context.Context) string {
	id, _ := ctx.Value(ContextUserID).(string)
	return id
}

// GetRole retrieves the authenticated user's role from the context.
func GetRole(ctx context.Context) string {
	role, _ := ctx.Value(ContextRole).(string)
	return role
}
