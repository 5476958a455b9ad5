package auth_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"storecheck/internal/auth"
	"storecheck/internal/middleware"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "super-secret-test-key"

func TestGenerateAndParseToken(t *testing.T) {
	token, err := auth.GenerateToken("user-123", "evaluator", testSecret)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	claims, err := auth.ParseToken(token, testSecret)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if claims.UserID != "user-123" || claims.Role != "evaluator" {
		t.Errorf("claims: got %q/%q", claims.UserID, claims.Role)
	}
	// A field session has to outlive a day on the road.
	if claims.ExpiresAt.Before(claims.IssuedAt.Add(24 * time.Hour)) {
		t.Errorf("token expires too soon: %v → %v", claims.IssuedAt, claims.ExpiresAt)
	}
}

// A token minted here must carry the evaluator through the real request
// middleware: Authenticate populates the context, RequireRole reads it.
func TestToken_RoundTripsThroughMiddleware(t *testing.T) {
	token, err := auth.GenerateToken("eva-1", "evaluator", testSecret)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	var gotUser, gotRole string
	handler := middleware.Authenticate(testSecret)(
		middleware.RequireRole("evaluator", "admin")(
			http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotUser = middleware.GetUserID(r.Context())
				gotRole = middleware.GetRole(r.Context())
			})))

	req := httptest.NewRequest(http.MethodGet, "/api/visits", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if gotUser != "eva-1" || gotRole != "evaluator" {
		t.Errorf("context: got user=%q role=%q", gotUser, gotRole)
	}
}

func TestToken_EvaluatorCannotPassAdminGate(t *testing.T) {
	token, err := auth.GenerateToken("eva-1", "evaluator", testSecret)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	handler := middleware.Authenticate(testSecret)(
		middleware.RequireRole("admin")(
			http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Error("handler must not run for an evaluator")
			})))

	req := httptest.NewRequest(http.MethodPost, "/api/admin/seed", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", rec.Code)
	}
}

func TestParseToken_InvalidSecret(t *testing.T) {
	token, err := auth.GenerateToken("user-abc", "admin", testSecret)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if _, err = auth.ParseToken(token, "wrong-secret"); err == nil {
		t.Fatal("expected error for invalid secret, got nil")
	}
}

func TestParseToken_Malformed(t *testing.T) {
	if _, err := auth.ParseToken("not.a.real.token", testSecret); err == nil {
		t.Fatal("expected error for malformed token, got nil")
	}
}

// An unsigned token with the right claims shape must not parse, however it
// is presented — the HMAC method check is what stands between "alg":"none"
// and a free admin session.
func TestParseToken_RejectsUnsignedAlgorithm(t *testing.T) {
	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, auth.Claims{
		UserID: "intruder", Role: "admin",
	})
	token, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	_, parseErr := auth.ParseToken(token, testSecret)
	if parseErr == nil {
		t.Fatal("unsigned token must be rejected")
	}
	if !strings.Contains(parseErr.Error(), "signing method") {
		// jwt/v5 may reject "none" before our keyfunc runs; either path is
		// fine as long as the token never validates.
		t.Logf("rejected upstream of the method guard: %v", parseErr)
	}
}
