package middleware

import (
	"net/http"
	"time"

	apiContext "signalcrm/internal/api/context"
	"signalcrm/internal/engine/usage"
	"signalcrm/internal/platform/auth"
)

// statusWriter remembers the status code so the tracker can record it after
// the handler finishes.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Track records every completed request on the route into the usage
// recorder, attributed to the principal's organization. The endpoint argument
// is the registered path template, so records group by route rather than by
// concrete URL. Unauthenticated requests (no principal yet) are not recorded;
// there is no organization to attribute them to.
func Track(rec *usage.Recorder, endpoint string) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()

			next(sw, r)

			principal, ok := r.Context().Value(apiContext.Principal).(*auth.Principal)
			if !ok {
				return
			}

			rec.Record(usage.NewRecord(
				principal.OrganizationID,
				start,
				r.Method,
				endpoint,
				sw.status,
				time.Since(start).Milliseconds(),
			))
		}
	}
}
