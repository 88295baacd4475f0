package middleware

import (
	"net/http"
	"strconv"

	"notesync-server/pkg/metrics"

	"github.com/felixge/httpsnoop"
	"go.uber.org/zap"
)

// LoggerMiddleware logs one line per request and records its latency.
// httpsnoop keeps http.Hijacker available for the WebSocket upgrade.
func LoggerMiddleware(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var userID string
			captured := httpsnoop.CaptureMetricsFn(w, func(w http.ResponseWriter) {
				next.ServeHTTP(w, r.WithContext(withUserSink(r.Context(), &userID)))
			})

			if userID == "" {
				userID = "anonymous"
			}

			metrics.APILatency.
				WithLabelValues(r.Method, strconv.Itoa(captured.Code)).
				Observe(captured.Duration.Seconds())

			log.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("remote_addr", r.RemoteAddr),
				zap.Int("status", captured.Code),
				zap.Int64("bytes", captured.Written),
				zap.Duration("duration", captured.Duration),
				zap.String("user_id", userID),
			)
		})
	}
}
