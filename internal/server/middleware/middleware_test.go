package middleware

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/bondledger/internal/crypto"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func ok() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuth(t *testing.T) {
	h := Auth("secret", "/api/health")(ok())

	cases := []struct {
		name   string
		path   string
		header map[string]string
		want   int
	}{
		{"public", "/api/health", nil, http.StatusOK},
		{"missing", "/api/journal", nil, http.StatusUnauthorized},
		{"wrong", "/api/journal", map[string]string{"X-API-Key": "nope"}, http.StatusUnauthorized},
		{"header", "/api/journal", map[string]string{"X-API-Key": "secret"}, http.StatusOK},
		{"bearer", "/api/journal", map[string]string{"Authorization": "Bearer secret"}, http.StatusOK},
		{"basic", "/api/journal", map[string]string{"Authorization": "Basic secret"}, http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.path, nil)
			for k, v := range tc.header {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tc.want, rec.Code)
		})
	}
}

func TestAuthDisabled(t *testing.T) {
	rec := httptest.NewRecorder()
	Auth("")(ok()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/journal", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAdminAuthRestoresBody(t *testing.T) {
	signer := crypto.NewAdminSigner("k", 0)
	var seen string
	h := AdminAuth(signer)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		seen = string(b)
	}))

	body := `{"amount":5}`
	req := httptest.NewRequest(http.MethodPost, "/api/admin/accounts/a/credit", strings.NewReader(body))
	for k, v := range signer.Headers(http.MethodPost, "/api/admin/accounts/a/credit", []byte(body)) {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, body, seen)
}

func TestAdminAuthRejects(t *testing.T) {
	signer := crypto.NewAdminSigner("k", 0)
	other := crypto.NewAdminSigner("other", 0)

	req := httptest.NewRequest(http.MethodPost, "/api/admin/x", strings.NewReader("{}"))
	for k, v := range other.Headers(http.MethodPost, "/api/admin/x", []byte("{}")) {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	AdminAuth(signer)(ok()).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	AdminAuth(nil)(ok()).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/admin/x", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

type countingLimiter struct {
	keys []string
	err  error
	n    int
}

func (l *countingLimiter) Allow(_ context.Context, key string, limit int, _ time.Duration) (bool, error) {
	if l.err != nil {
		return false, l.err
	}
	l.keys = append(l.keys, key)
	l.n++
	return l.n <= limit, nil
}

func TestRateLimit(t *testing.T) {
	lim := &countingLimiter{}
	h := RateLimit(lim, 2, time.Minute, discard())(ok())

	codes := make([]int, 3)
	for i := range codes {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes[i] = rec.Code
		if rec.Code == http.StatusTooManyRequests {
			assert.Equal(t, "60", rec.Header().Get("Retry-After"))
		}
	}
	assert.Equal(t, []int{200, 200, 429}, codes)
	assert.Equal(t, "api:ip:10.0.0.1", lim.keys[0])
}

func TestRateLimitFailsOpen(t *testing.T) {
	h := RateLimit(&countingLimiter{err: errors.New("redis down")}, 1, time.Second, discard())(ok())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCallerKey(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-For", "1.2.3.4, 5.6.7.8")
	assert.Equal(t, "api:ip:1.2.3.4", callerKey(req))

	req.Header.Set("X-API-Key", "some-long-api-key")
	key := callerKey(req)
	assert.True(t, strings.HasPrefix(key, "api:key:"))
	assert.NotContains(t, key, "some-long")
}

func TestLoggingRequestID(t *testing.T) {
	var ctxID string
	h := Logging(discard())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctxID = RequestID(r.Context())
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NotEmpty(t, ctxID)
	assert.Equal(t, ctxID, rec.Header().Get("X-Request-ID"))
	assert.Equal(t, http.StatusTeapot, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "abc")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "abc", ctxID)
}

func TestCORSPreflight(t *testing.T) {
	h := CORS([]string{"https://App.example/"})(ok())

	req := httptest.NewRequest(http.MethodOptions, "/api/vaults/v1/bonds/1/withdraw", nil)
	req.Header.Set("Origin", "https://app.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://app.example", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), crypto.HeaderOwnerSignature)
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), crypto.HeaderSignature)
	assert.Equal(t, "Origin", rec.Header().Get("Vary"))

	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSSimpleRequests(t *testing.T) {
	h := CORS([]string{"https://app.example"})(ok())

	// Same-origin and non-browser requests pass untouched.
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/journal", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Vary"))

	// A bare OPTIONS is not a preflight and reaches the router.
	req := httptest.NewRequest(http.MethodOptions, "/api/journal", nil)
	req.Header.Set("Origin", "https://app.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/journal", nil)
	req.Header.Set("Origin", "https://other.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	rec = httptest.NewRecorder()
	CORS([]string{"*"})(ok()).ServeHTTP(rec, req)
	assert.Equal(t, "https://other.example", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = httptest.NewRecorder()
	CORS(nil)(ok()).ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
