package rank

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	httperrors "github.com/brainbrawler/game-service/pkg/http/errors"
)

// HTTPHandler exposes the REST endpoint for leaderboard queries.
type HTTPHandler struct {
	svc    *Service
	logger zerolog.Logger
}

// NewHTTPHandler constructs a leaderboard HTTP handler.
func NewHTTPHandler(svc *Service, logger zerolog.Logger) *HTTPHandler {
	return &HTTPHandler{
		svc:    svc,
		logger: logger.With().Str("component", "rank_http").Logger(),
	}
}

// HandleGet responds with the current all-time leaderboard.
// Route: GET /v1/leaderboards?limit=10
func (h *HTTPHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}

	entries, err := h.svc.Top(r.Context(), limit)
	if err != nil {
		h.logger.Warn().Err(err).Msg("leaderboard fetch failed")
		httperrors.RespondInternalError(w, "failed to fetch leaderboard")
		return
	}

	resp := map[string]interface{}{
		"top":         entries,
		"retrievedAt": time.Now().UTC().Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Warn().Err(err).Msg("failed to encode leaderboard response")
	}
}
