package gateway

import (
	"net/http"

	"github.com/lumora-edu/mentor-gateway/internal/config"
)

// applyCORS sets the response CORS headers. Recognized origins are echoed
// back; anything else gets the configured default origin, so the header set
// never reflects an arbitrary caller value.
func applyCORS(w http.ResponseWriter, r *http.Request, cfg config.CORSConfig) {
	origin := r.Header.Get("Origin")
	allowed := cfg.DefaultOrigin
	for _, o := range cfg.AllowedOrigins {
		if o == origin {
			allowed = origin
			break
		}
	}
	w.Header().Set("Access-Control-Allow-Origin", allowed)
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
	w.Header().Set("Vary", "Origin")
}

// Preflight answers the CORS preflight for the chat endpoints.
func (h *Handler) Preflight(w http.ResponseWriter, r *http.Request) {
	applyCORS(w, r, h.cfg().CORS)
	w.WriteHeader(http.StatusNoContent)
}
