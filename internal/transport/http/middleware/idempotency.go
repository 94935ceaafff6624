package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/Subhashree0011/event-driven-job-platform-sub000/internal/idempotency"
	"github.com/Subhashree0011/event-driven-job-platform-sub000/internal/logger"
)

const HeaderIdempotencyKey = "Idempotency-Key"

// storedResponse is what memoize mode persists and replays.
type storedResponse struct {
	Status int             `json:"status"`
	Body   json.RawMessage `json:"body"`
}

type captureWriter struct {
	http.ResponseWriter
	status int
	buf    bytes.Buffer
}

func (w *captureWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *captureWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	w.buf.Write(b)
	return w.ResponseWriter.Write(b)
}

// IdempotencyKey is the memoize mode of the dedup fence for commands: the
// first request with a given key executes and its response is stored; a
// duplicate replays the stored response without re-executing the handler. A
// duplicate arriving before the first response is stored gets 409 so the
// client retries once the original settles.
func IdempotencyKey(store *idempotency.Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := strings.TrimSpace(r.Header.Get(HeaderIdempotencyKey))
			if key == "" || r.Method == http.MethodGet {
				next.ServeHTTP(w, r)
				return
			}

			id := "http:" + strconv.FormatInt(UserID(r), 10) + ":" + key
			log := logger.WithRequestID(RequestIDFrom(r))

			first, stored, err := store.AcquireOrReplay(r.Context(), id)
			if err != nil {
				// Fence store down: execute without memoization.
				log.Warn().Err(err).Msg("idempotency store unavailable, skipping memoize")
				next.ServeHTTP(w, r)
				return
			}
			if !first {
				if stored == nil {
					w.Header().Set("Content-Type", "application/json; charset=utf-8")
					w.WriteHeader(http.StatusConflict)
					_, _ = w.Write([]byte(`{"errorCode":"CONFLICT","message":"request with this idempotency key is in flight"}`))
					return
				}
				var resp storedResponse
				if jsonErr := json.Unmarshal(stored, &resp); jsonErr == nil {
					w.Header().Set("Content-Type", "application/json; charset=utf-8")
					w.WriteHeader(resp.Status)
					_, _ = w.Write(resp.Body)
					return
				}
				log.Warn().Msg("stored idempotent response unreadable, re-executing")
			}

			cw := &captureWriter{ResponseWriter: w}
			next.ServeHTTP(cw, r)

			if cw.status >= 500 {
				// Do not memoize server faults; free the key for a retry.
				if relErr := store.Release(r.Context(), id); relErr != nil {
					log.Warn().Err(relErr).Msg("idempotency release failed")
				}
				return
			}
			raw, marshalErr := json.Marshal(storedResponse{Status: cw.status, Body: cw.buf.Bytes()})
			if marshalErr != nil {
				return
			}
			if storeErr := store.StoreResponse(r.Context(), id, raw); storeErr != nil {
				log.Warn().Err(storeErr).Msg("idempotent response store failed")
			}
		})
	}
}
