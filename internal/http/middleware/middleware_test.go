package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signedAdminToken(t *testing.T, secret string, expiresIn time.Duration) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   "admin-user",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestAdminJWT(t *testing.T) {
	tests := []struct {
		name       string
		secret     string
		authHeader string
		wantStatus int
	}{
		{
			name:       "empty secret disables access",
			secret:     "",
			authHeader: "",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "missing header",
			secret:     "secret",
			authHeader: "",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "wrong scheme",
			secret:     "secret",
			authHeader: "Basic abc123",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "wrong signing key",
			secret:     "secret",
			authHeader: "Bearer %wrong%",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "expired token",
			secret:     "secret",
			authHeader: "Bearer %expired%",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "valid token",
			secret:     "secret",
			authHeader: "Bearer %valid%",
			wantStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header := tt.authHeader
			switch header {
			case "Bearer %wrong%":
				header = "Bearer " + signedAdminToken(t, "not-the-secret", 5*time.Minute)
			case "Bearer %expired%":
				header = "Bearer " + signedAdminToken(t, tt.secret, -5*time.Minute)
			case "Bearer %valid%":
				header = "Bearer " + signedAdminToken(t, tt.secret, 5*time.Minute)
			}

			req := httptest.NewRequest(http.MethodGet, "/admin/audit/events", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			rec := httptest.NewRecorder()

			AdminJWT(tt.secret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if _, ok := AdminClaimsFromContext(r.Context()); !ok {
					t.Fatal("expected admin claims in context")
				}
				w.WriteHeader(http.StatusOK)
			})).ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}
		})
	}
}

func TestRateLimiterAllowsBurstThenRejects(t *testing.T) {
	rl := NewRateLimiter(3)

	for i := 0; i < 3; i++ {
		if !rl.Allow("10.0.0.1") {
			t.Fatalf("request %d should be within the burst", i+1)
		}
	}
	if rl.Allow("10.0.0.1") {
		t.Fatal("request over the burst should be rejected")
	}

	// Other IPs are tracked independently.
	if !rl.Allow("10.0.0.2") {
		t.Fatal("different IP should have its own bucket")
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	mw := RateLimit(1)
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/deidentify", nil)
	req.Header.Set("X-Real-Ip", "203.0.113.7")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("first request: expected 200, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: expected 429, got %d", rec.Code)
	}
}

func TestRequestLoggerPassesThrough(t *testing.T) {
	mw := RequestLogger(nil)
	called := false
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)

	mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusNoContent)
	})).ServeHTTP(rec, req)

	if !called {
		t.Fatal("expected handler to be called")
	}
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
}
