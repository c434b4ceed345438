package handlers

import (
	"net/http"
	"time"

	"github.com/threadforge/threadforge/internal/session"
)

var startedAt = time.Now()

// HealthHandler reports liveness and the active session count.
func HealthHandler(sm *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status":   "ok",
			"sessions": sm.Count(),
			"uptime":   time.Since(startedAt).Round(time.Second).String(),
		})
	}
}
