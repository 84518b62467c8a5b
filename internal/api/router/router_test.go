package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openphi/deidentify/internal/audit"
	"github.com/openphi/deidentify/internal/http/handlers"
	"github.com/openphi/deidentify/internal/pipeline"
	"github.com/openphi/deidentify/internal/storage"
)

type noopProcessor struct{}

func (noopProcessor) Process(context.Context, pipeline.Request) (pipeline.Result, error) {
	return pipeline.Result{}, nil
}

type emptyStore struct{}

func (emptyStore) Put(context.Context, string, []byte, string) error { return nil }
func (emptyStore) Get(context.Context, string) ([]byte, error)       { return nil, storage.ErrNotFound }
func (emptyStore) Delete(context.Context, string) error              { return nil }

func testRouter(t *testing.T, cfg *Config) http.Handler {
	t.Helper()
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Deidentify == nil {
		cfg.Deidentify = handlers.NewDeidentifyHandler(handlers.DeidentifyHandlerConfig{
			Processor: noopProcessor{},
			Artifacts: emptyStore{},
		})
	}
	return New(cfg)
}

func TestHealthRoute(t *testing.T) {
	rec := httptest.NewRecorder()
	testRouter(t, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestUnknownRoute(t *testing.T) {
	rec := httptest.NewRecorder()
	testRouter(t, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDownloadRouteWired(t *testing.T) {
	rec := httptest.NewRecorder()
	testRouter(t, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/download/abc", nil))
	// Empty store: the route resolves, the artifact does not exist.
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "not found")
}

func TestMetricsRoute(t *testing.T) {
	metricsHandler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("# metrics"))
	})

	rec := httptest.NewRecorder()
	testRouter(t, &Config{MetricsHandler: metricsHandler}).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "# metrics")
}

func TestCORSPreflight(t *testing.T) {
	r := testRouter(t, &Config{CORSAllowedOrigins: []string{"https://app.example.com"}})

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/dashboard", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", "GET")

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	// Unlisted origins get no CORS headers.
	req = httptest.NewRequest(http.MethodOptions, "/api/v1/dashboard", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	req.Header.Set("Access-Control-Request-Method", "GET")

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestAdminRoutesRequireJWT(t *testing.T) {
	// The audit handler panics on a nil service, so the route group is the
	// subject here: without a secret there is no /admin tree at all.
	rec := httptest.NewRecorder()
	testRouter(t, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/audit/events", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func signToken(t *testing.T, secret string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "admin",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestAdminAuditRoute(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	r := testRouter(t, &Config{
		Audit:          handlers.NewAuditHandler(audit.NewService(db), nil),
		AdminJWTSecret: "s3cret",
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/audit/events", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	mock.ExpectQuery("SELECT id, event_type, file_id").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "event_type", "file_id", "job_id", "filename", "mode", "details", "created_at",
		}))

	req := httptest.NewRequest(http.MethodGet, "/admin/audit/events", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "s3cret"))
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestRateLimitApplied(t *testing.T) {
	r := testRouter(t, &Config{RateLimitPerMinute: 1})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/dashboard", nil)
	req.Header.Set("X-Real-Ip", "203.0.113.9")

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	first := rec.Code

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.NotEqual(t, http.StatusTooManyRequests, first)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	// Health is outside the rate-limited group.
	rec = httptest.NewRecorder()
	healthReq := httptest.NewRequest(http.MethodGet, "/health", nil)
	healthReq.Header.Set("X-Real-Ip", "203.0.113.9")
	r.ServeHTTP(rec, healthReq)
	assert.Equal(t, http.StatusOK, rec.Code)
}
