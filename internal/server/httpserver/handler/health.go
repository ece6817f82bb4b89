// Package handler provides HTTP request handlers for Sevault.
package handler

import (
	"net/http"
	"time"
)

// handleHealth handles GET /health.
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, r, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// handleReady handles GET /ready. Ready means the element answers and the
// key-info store is reachable; a liveness-only probe belongs on /health.
func (h *Handler) handleReady(w http.ResponseWriter, r *http.Request) {
	if h.cfg.Element != nil && h.cfg.Element.Serial() == "" {
		h.writeJSON(w, r, http.StatusServiceUnavailable, map[string]string{
			"status": "element unavailable",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
		return
	}

	if h.cfg.Engine != nil {
		if _, err := h.cfg.Engine.Stats(r.Context()); err != nil {
			h.writeJSON(w, r, http.StatusServiceUnavailable, map[string]string{
				"status": "storage unavailable",
				"time":   time.Now().UTC().Format(time.RFC3339),
			})
			return
		}
	}

	h.writeJSON(w, r, http.StatusOK, map[string]string{
		"status": "ready",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}
