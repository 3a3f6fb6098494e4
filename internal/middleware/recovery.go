package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/dschwartzAI/CoachingAI-sub001/internal/httputil"
)

// Recovery turns handler panics into a 500 problem response. A panic after
// the response has started (an open event stream) is only logged, since a
// second status line cannot be sent.
func Recovery(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tw := &trackingWriter{ResponseWriter: w}
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				logger.Error("panic recovered",
					"error", rec,
					"path", r.URL.Path,
					"method", r.Method,
					"user_id", httputil.GetUserID(r),
					"response_started", tw.started,
					"stack", string(debug.Stack()),
				)
				if !tw.started {
					httputil.RespondError(w, http.StatusInternalServerError, "internal server error")
				}
			}()

			next.ServeHTTP(tw, r)
		})
	}
}

// trackingWriter records whether the response has started. It forwards
// Flush so event streams keep working behind it.
type trackingWriter struct {
	http.ResponseWriter
	started bool
}

func (w *trackingWriter) WriteHeader(status int) {
	w.started = true
	w.ResponseWriter.WriteHeader(status)
}

func (w *trackingWriter) Write(b []byte) (int, error) {
	w.started = true
	return w.ResponseWriter.Write(b)
}

func (w *trackingWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		w.started = true
		f.Flush()
	}
}

func (w *trackingWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }
