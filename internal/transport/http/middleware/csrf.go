package middleware

import (
	"net/http"
	"strings"

	"github.com/Subhashree0011/event-driven-job-platform-sub000/internal/domain"
	"github.com/Subhashree0011/event-driven-job-platform-sub000/internal/transport/http/response"
)

const HeaderCSRFToken = "X-CSRF-Token"

// CSRFPresence requires a non-empty CSRF token header on state-changing
// requests. Cryptographic validation happens at the gateway; this layer only
// rejects requests that skipped it entirely.
func CSRFPresence(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
			if strings.TrimSpace(r.Header.Get(HeaderCSRFToken)) == "" {
				response.Err(w, r, domain.ErrForbidden("missing CSRF token"))
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
