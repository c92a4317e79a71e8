package game

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	httperrors "github.com/brainbrawler/game-service/pkg/http/errors"
)

// HTTPHandlers provides the read-only REST view of rooms.
type HTTPHandlers struct {
	engine *Engine
	logger zerolog.Logger
}

// NewHTTPHandlers creates HTTP handlers for room endpoints.
func NewHTTPHandlers(engine *Engine, logger zerolog.Logger) *HTTPHandlers {
	return &HTTPHandlers{
		engine: engine,
		logger: logger.With().Str("component", "game_http").Logger(),
	}
}

// GetRoom handles GET /v1/rooms/{code}.
func (h *HTTPHandlers) GetRoom(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	code := strings.ToUpper(strings.TrimSpace(r.PathValue("code")))
	if len(code) != roomCodeLength {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeValidationFailed, "Invalid room code")
		return
	}

	summary, err := h.engine.RoomSummary(r.Context(), code)
	if err != nil {
		var notFound *NotFoundError
		if errors.As(err, &notFound) {
			httperrors.RespondNotFound(w, httperrors.ErrCodeRoomNotFound, "Room not found")
			return
		}
		h.logger.Error().Err(err).Str("room_code", code).Msg("failed to load room")
		httperrors.RespondInternalError(w, "Failed to load room")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(summary); err != nil {
		h.logger.Warn().Err(err).Msg("failed to encode room response")
	}
}
