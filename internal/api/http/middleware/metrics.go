package middleware

import (
	"net/http"
	"time"

	"github.com/flowmesh/dexterity/internal/metrics"
)

// Metrics records every request under endpoint, a fixed route label
func Metrics(m *metrics.APIMetrics, endpoint string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := wrap(w)

			next.ServeHTTP(ww, r)

			m.RecordHTTPRequest(r.Method, endpoint, ww.statusCode, time.Since(start))
		})
	}
}
