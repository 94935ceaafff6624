package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Subhashree0011/event-driven-job-platform-sub000/internal/idempotency"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
}

// --- CSRF presence ---

func TestCSRFPresenceBlocksMutationsWithoutToken(t *testing.T) {
	h := CSRFPresence(okHandler())

	for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete} {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(method, "/api/v1/applications", nil))
		assert.Equal(t, http.StatusForbidden, w.Code, method)
	}
}

func TestCSRFPresenceAllowsTokenAndReads(t *testing.T) {
	h := CSRFPresence(okHandler())

	r := httptest.NewRequest(http.MethodPost, "/api/v1/applications", nil)
	r.Header.Set(HeaderCSRFToken, "token-from-gateway")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/jobs", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

// --- request id ---

func TestRequestIDGeneratedWhenAbsent(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFrom(r)
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, w.Header().Get("X-Request-Id"))
}

func TestRequestIDPropagated(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFrom(r)
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Request-Id", "req-777")
	h.ServeHTTP(httptest.NewRecorder(), r)
	assert.Equal(t, "req-777", seen)
}

// --- auth ---

func signToken(t *testing.T, secret, issuer, uid string) string {
	t.Helper()
	claims := Claims{
		UserID: uid,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return tok
}

func TestAuthRequireValidToken(t *testing.T) {
	a := NewAuth("test-secret", "job-platform")

	var uid int64
	h := a.Require(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uid = UserID(r)
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer "+signToken(t, "test-secret", "job-platform", "7"))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(7), uid)
}

func TestAuthRequireRejects(t *testing.T) {
	a := NewAuth("test-secret", "job-platform")
	h := a.Require(okHandler())

	cases := map[string]string{
		"missing header": "",
		"wrong secret":   "Bearer " + signToken(t, "other-secret", "job-platform", "7"),
		"wrong issuer":   "Bearer " + signToken(t, "test-secret", "someone-else", "7"),
		"non-numeric id": "Bearer " + signToken(t, "test-secret", "job-platform", "alice"),
		"zero id":        "Bearer " + signToken(t, "test-secret", "job-platform", "0"),
	}
	for name, header := range cases {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			r.Header.Set("Authorization", header)
		}
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		assert.Equal(t, http.StatusUnauthorized, w.Code, name)
	}
}

func TestAuthRequireRejectsExpired(t *testing.T) {
	a := NewAuth("test-secret", "")
	h := a.Require(okHandler())

	claims := Claims{
		UserID: "7",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-5 * time.Minute)),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer "+tok)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

// --- idempotency key ---

func newIdemMiddleware(t *testing.T) (func(http.Handler) http.Handler, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return IdempotencyKey(idempotency.NewStore(client, time.Hour)), mr
}

func TestIdempotencyKeyReplaysResponse(t *testing.T) {
	mw, _ := newIdemMiddleware(t)

	executions := 0
	h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		executions++
		w.WriteHeader(http.StatusCreated)
		_, _ = fmt.Fprintf(w, `{"id":%d}`, executions)
	}))

	r1 := httptest.NewRequest(http.MethodPost, "/api/v1/applications", nil)
	r1.Header.Set(HeaderIdempotencyKey, "key-1")
	w1 := httptest.NewRecorder()
	h.ServeHTTP(w1, r1)
	require.Equal(t, http.StatusCreated, w1.Code)

	r2 := httptest.NewRequest(http.MethodPost, "/api/v1/applications", nil)
	r2.Header.Set(HeaderIdempotencyKey, "key-1")
	w2 := httptest.NewRecorder()
	h.ServeHTTP(w2, r2)

	assert.Equal(t, 1, executions, "duplicate must not re-execute")
	assert.Equal(t, http.StatusCreated, w2.Code)
	assert.JSONEq(t, w1.Body.String(), w2.Body.String())
}

func TestIdempotencyKeyInFlightConflict(t *testing.T) {
	mw, mr := newIdemMiddleware(t)
	h := mw(okHandler())

	// Simulate the first request's fence without a stored response yet.
	require.NoError(t, mr.Set("idempotency:http:0:key-2", "1"))

	r := httptest.NewRequest(http.MethodPost, "/api/v1/applications", nil)
	r.Header.Set(HeaderIdempotencyKey, "key-2")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	assert.Equal(t, http.StatusConflict, w.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "CONFLICT", body["errorCode"])
}

func TestIdempotencyKeyServerFaultNotMemoized(t *testing.T) {
	mw, _ := newIdemMiddleware(t)

	executions := 0
	h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		executions++
		if executions == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"errorCode":"SERVICE_UNAVAILABLE"}`))
			return
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":1}`))
	}))

	for i, want := range []int{http.StatusServiceUnavailable, http.StatusCreated} {
		r := httptest.NewRequest(http.MethodPost, "/api/v1/applications", nil)
		r.Header.Set(HeaderIdempotencyKey, "key-3")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		assert.Equal(t, want, w.Code, "request %d", i+1)
	}
	assert.Equal(t, 2, executions, "a 5xx frees the key for a retry")
}

func TestIdempotencyKeySkipsGETAndMissingKey(t *testing.T) {
	mw, _ := newIdemMiddleware(t)

	executions := 0
	h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		executions++
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{}`))
	}))

	for i := 0; i < 2; i++ {
		r := httptest.NewRequest(http.MethodGet, "/api/v1/applications", nil)
		r.Header.Set(HeaderIdempotencyKey, "key-4")
		h.ServeHTTP(httptest.NewRecorder(), r)
	}
	for i := 0; i < 2; i++ {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/v1/applications", nil))
	}
	assert.Equal(t, 4, executions)
}

func TestIdempotencyKeyStoreDownFailsOpen(t *testing.T) {
	mw, mr := newIdemMiddleware(t)
	mr.Close()

	executions := 0
	h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		executions++
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{}`))
	}))

	r := httptest.NewRequest(http.MethodPost, "/api/v1/applications", nil)
	r.Header.Set(HeaderIdempotencyKey, "key-5")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, 1, executions)
}
