package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Subhashree0011/event-driven-job-platform-sub000/internal/domain"
)

func do(t *testing.T, err error) (*httptest.ResponseRecorder, ErrorBody) {
	t.Helper()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	Err(w, r, err)

	var body ErrorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w, body
}

func TestErrStatusMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{domain.ErrValidation("bad input"), http.StatusBadRequest, "VALIDATION"},
		{domain.ErrUnauthorized("no token"), http.StatusUnauthorized, "UNAUTHORIZED"},
		{domain.ErrForbidden("not yours"), http.StatusForbidden, "FORBIDDEN"},
		{domain.ErrNotFound("job not found"), http.StatusNotFound, "NOT_FOUND"},
		{domain.ErrConflict("DUPLICATE_APPLICATION"), http.StatusConflict, "CONFLICT"},
		{domain.ErrInvalidTransition("REJECTED -> OFFERED"), http.StatusConflict, "INVALID_STATUS_TRANSITION"},
		{domain.ErrRateLimited("too many", 30), http.StatusTooManyRequests, "RATE_LIMITED"},
		{domain.ErrUnavailable("circuit open"), http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE"},
		{domain.ErrInternal("boom", nil), http.StatusInternalServerError, "INTERNAL"},
	}
	for _, c := range cases {
		w, body := do(t, c.err)
		assert.Equal(t, c.status, w.Code, c.code)
		assert.Equal(t, c.code, body.ErrorCode)
	}
}

func TestErrRateLimitedSetsRetryAfter(t *testing.T) {
	w, body := do(t, domain.ErrRateLimited("slow down", 42))
	assert.Equal(t, "42", w.Header().Get("Retry-After"))
	assert.Equal(t, 42, body.RetryAfterSeconds)
}

func TestErrValidationCarriesFieldErrors(t *testing.T) {
	_, body := do(t, domain.ErrValidationFields("invalid request", map[string]string{"jobId": "required"}))
	assert.Equal(t, "required", body.FieldErrors["jobId"])
}

func TestErrUnknownErrorIsOpaque(t *testing.T) {
	w, body := do(t, errors.New("pq: connection reset by peer"))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "INTERNAL", body.ErrorCode)
	assert.Equal(t, "internal error", body.Message, "internal detail must not leak")
}

func TestErrEchoesRequestID(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Request-Id", "req-123")
	w := httptest.NewRecorder()
	Err(w, r, domain.ErrNotFound("nope"))

	var body ErrorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "req-123", body.RequestID)
}

func TestData(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	Data(w, r, http.StatusCreated, map[string]int{"id": 42})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.JSONEq(t, `{"data":{"id":42}}`, w.Body.String())
}
