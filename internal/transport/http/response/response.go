// Package response owns the JSON envelopes and the error-code to HTTP-status
// mapping. Error codes are stable; clients switch on errorCode, not on the
// message text.
package response

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/render"

	"github.com/Subhashree0011/event-driven-job-platform-sub000/internal/domain"
	"github.com/Subhashree0011/event-driven-job-platform-sub000/internal/logger"
)

// Envelope is the success body: {"data": ...}.
type Envelope struct {
	Data any `json:"data,omitempty"`
}

// ErrorBody carries the machine code, the human message, and the optional
// validation and rate-limit details.
type ErrorBody struct {
	ErrorCode         string            `json:"errorCode"`
	Message           string            `json:"message"`
	FieldErrors       map[string]string `json:"fieldErrors,omitempty"`
	RetryAfterSeconds int               `json:"retryAfterSeconds,omitempty"`
	RequestID         string            `json:"requestId,omitempty"`
}

func Data(w http.ResponseWriter, r *http.Request, status int, payload any) {
	render.Status(r, status)
	render.JSON(w, r, Envelope{Data: payload})
}

// Err maps a typed error to its status and body. Unknown errors become a
// bare INTERNAL; details stay in the logs.
func Err(w http.ResponseWriter, r *http.Request, err error) {
	requestID := RequestIDFromRequest(r)

	var ae *domain.AppError
	if errors.As(err, &ae) {
		if ae.Code == domain.CodeRateLimited && ae.RetryAfterSeconds > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(ae.RetryAfterSeconds))
		}
		render.Status(r, statusFromCode(ae.Code))
		render.JSON(w, r, ErrorBody{
			ErrorCode:         string(ae.Code),
			Message:           ae.Message,
			FieldErrors:       ae.FieldErrors,
			RetryAfterSeconds: ae.RetryAfterSeconds,
			RequestID:         requestID,
		})
		return
	}

	log := logger.WithRequestID(requestID)
	log.Error().Err(err).Msg("unhandled error")
	render.Status(r, http.StatusInternalServerError)
	render.JSON(w, r, ErrorBody{
		ErrorCode: string(domain.CodeInternal),
		Message:   "internal error",
		RequestID: requestID,
	})
}

func statusFromCode(code domain.ErrCode) int {
	switch code {
	case domain.CodeValidation:
		return http.StatusBadRequest
	case domain.CodeUnauthorized:
		return http.StatusUnauthorized
	case domain.CodeForbidden:
		return http.StatusForbidden
	case domain.CodeNotFound:
		return http.StatusNotFound
	case domain.CodeConflict, domain.CodeInvalidTransition:
		return http.StatusConflict
	case domain.CodeRateLimited:
		return http.StatusTooManyRequests
	case domain.CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// RequestIDFromRequest reads the id the request-id middleware stamped.
func RequestIDFromRequest(r *http.Request) string {
	if v := r.Header.Get("X-Request-Id"); v != "" {
		return v
	}
	return r.Header.Get("X-Request-ID")
}
