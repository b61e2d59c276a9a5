package handlers

import (
	"net/http"
)

// HealthResponse represents a health check response
type HealthResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// HealthCheck handles health check requests
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, HealthResponse{Status: "healthy"})
}

// ReadinessCheck returns a handler reporting whether ready() holds
func ReadinessCheck(ready func() bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ready == nil || !ready() {
			WriteJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "not ready"})
			return
		}
		WriteJSON(w, http.StatusOK, HealthResponse{Status: "ready"})
	}
}
