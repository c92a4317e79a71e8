package game

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/brainbrawler/game-service/internal/auth"
	"github.com/brainbrawler/game-service/internal/server"
	httperrors "github.com/brainbrawler/game-service/pkg/http/errors"
	"github.com/brainbrawler/game-service/pkg/http/ws"
)

// Handler manages WebSocket connections and routes game commands to the engine.
type Handler struct {
	engine   *Engine
	hub      *ws.Hub
	verifier *auth.Verifier
	logger   zerolog.Logger
}

// NewHandler creates a game WebSocket handler.
func NewHandler(engine *Engine, hub *ws.Hub, verifier *auth.Verifier, logger zerolog.Logger) *Handler {
	return &Handler{
		engine:   engine,
		hub:      hub,
		verifier: verifier,
		logger:   logger,
	}
}

// HandleWebSocket upgrades the HTTP connection and authenticates the user.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		httperrors.RespondUnauthorized(w, httperrors.ErrCodeInvalidToken, "Missing token")
		return
	}

	claims, err := h.verifier.Verify(token)
	if err != nil {
		h.logger.Warn().Err(err).Msg("WebSocket token validation failed")
		httperrors.RespondUnauthorized(w, httperrors.ErrCodeInvalidToken, "Invalid token")
		return
	}

	conn, err := server.WSUpgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	h.HandleConnection(conn, claims.UserID)
}

// HandleConnection processes a new authenticated WebSocket connection and
// blocks until it closes.
func (h *Handler) HandleConnection(conn *websocket.Conn, userID uuid.UUID) {
	wsConn := ws.NewConnection(conn, h.logger)
	h.hub.RegisterConnection(userID, wsConn)

	go wsConn.WritePump()

	wsConn.ReadPump(func(msg ws.Message) error {
		return h.handleMessage(context.Background(), userID, msg)
	})

	h.hub.UnregisterConnection(userID)
}

// handleMessage routes incoming WebSocket commands.
func (h *Handler) handleMessage(ctx context.Context, userID uuid.UUID, msg ws.Message) error {
	switch msg.Type {
	case ws.TypeCreateRoom:
		return h.handleCreateRoom(ctx, userID, msg.Payload)
	case ws.TypeJoinRoom:
		return h.handleJoinRoom(ctx, userID, msg.Payload)
	case ws.TypeStartGame:
		return h.handleStartGame(ctx, userID, msg.Payload)
	case ws.TypeSubmitAnswer:
		return h.handleSubmitAnswer(ctx, userID, msg.Payload)
	case ws.TypeLeaveRoom:
		return h.handleLeaveRoom(ctx, userID, msg.Payload)
	default:
		return h.sendError(userID, httperrors.ErrCodeUnknownMessageType, fmt.Sprintf("Unknown message type: %s", msg.Type))
	}
}

func (h *Handler) handleCreateRoom(ctx context.Context, userID uuid.UUID, payload json.RawMessage) error {
	var req ws.CreateRoomPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return h.sendError(userID, httperrors.ErrCodeInvalidPayload, "Invalid create_room payload")
	}
	if req.QuestionSetID == "" {
		return h.sendError(userID, httperrors.ErrCodeValidationFailed, "question_set_id is required")
	}

	summary, err := h.engine.CreateRoom(ctx, userID, req.QuestionSetID)
	if err != nil {
		return h.sendDomainError(userID, httperrors.ErrCodeRoomCreationFailed, err)
	}

	h.hub.JoinRoom(summary.Code, userID)
	return h.reply(userID, ws.TypeRoomCreated, summary)
}

func (h *Handler) handleJoinRoom(ctx context.Context, userID uuid.UUID, payload json.RawMessage) error {
	var req ws.JoinRoomPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return h.sendError(userID, httperrors.ErrCodeInvalidPayload, "Invalid join_room payload")
	}

	summary, err := h.engine.JoinRoom(ctx, userID, req.RoomCode)
	if err != nil {
		return h.sendDomainError(userID, httperrors.ErrCodeJoinFailed, err)
	}

	h.hub.JoinRoom(summary.Code, userID)
	return h.reply(userID, ws.TypeRoomJoined, summary)
}

func (h *Handler) handleStartGame(ctx context.Context, userID uuid.UUID, payload json.RawMessage) error {
	var req ws.StartGamePayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return h.sendError(userID, httperrors.ErrCodeInvalidPayload, "Invalid start_game payload")
	}

	if err := h.engine.StartGame(ctx, userID, req.RoomCode); err != nil {
		return h.sendDomainError(userID, httperrors.ErrCodeStartFailed, err)
	}
	return h.reply(userID, ws.TypeGameStarted, map[string]string{"room_code": req.RoomCode})
}

func (h *Handler) handleSubmitAnswer(ctx context.Context, userID uuid.UUID, payload json.RawMessage) error {
	var req ws.SubmitAnswerPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return h.sendError(userID, httperrors.ErrCodeInvalidPayload, "Invalid submit_answer payload")
	}

	result, err := h.engine.SubmitAnswer(ctx, userID, req.RoomCode, req.QuestionIndex, req.OptionIndex)
	if err != nil {
		return h.sendDomainError(userID, httperrors.ErrCodeSubmitFailed, err)
	}

	return h.reply(userID, ws.TypeAnswerAck, ws.AnswerAckPayload{
		RoomCode:       req.RoomCode,
		QuestionIndex:  req.QuestionIndex,
		IsCorrect:      result.IsCorrect,
		ResponseTimeMs: result.ResponseTimeMs,
	})
}

func (h *Handler) handleLeaveRoom(ctx context.Context, userID uuid.UUID, payload json.RawMessage) error {
	var req ws.LeaveRoomPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return h.sendError(userID, httperrors.ErrCodeInvalidPayload, "Invalid leave_room payload")
	}

	if err := h.engine.LeaveRoom(ctx, userID, req.RoomCode); err != nil {
		return h.sendDomainError(userID, httperrors.ErrCodeLeaveFailed, err)
	}

	h.hub.LeaveRoom(req.RoomCode, userID)
	return h.reply(userID, ws.TypeRoomLeft, map[string]string{"room_code": req.RoomCode})
}

// sendDomainError maps engine errors onto wire error codes, falling back to the
// caller-supplied code for anything unrecognized.
func (h *Handler) sendDomainError(userID uuid.UUID, fallbackCode string, err error) error {
	var (
		notFound   *NotFoundError
		capacity   *CapacityError
		state      *StateError
		validation *ValidationError
	)

	switch {
	case errors.As(err, &notFound):
		return h.sendError(userID, httperrors.ErrCodeRoomNotFound, err.Error())
	case errors.As(err, &capacity):
		return h.sendError(userID, httperrors.ErrCodeRoomFull, err.Error())
	case errors.As(err, &state):
		return h.sendError(userID, httperrors.ErrCodeInvalidMatchState, err.Error())
	case errors.As(err, &validation):
		return h.sendError(userID, httperrors.ErrCodeValidationFailed, err.Error())
	default:
		h.logger.Error().Err(err).Str("user_id", userID.String()).Msg("command failed")
		return h.sendError(userID, fallbackCode, err.Error())
	}
}

func (h *Handler) reply(userID uuid.UUID, msgType string, payload any) error {
	msg := ws.Message{Type: msgType}
	msg.Payload, _ = json.Marshal(payload)
	return h.hub.SendToUser(userID, msg)
}

func (h *Handler) sendError(userID uuid.UUID, code, message string) error {
	return h.reply(userID, ws.TypeError, ws.ErrorPayload{Code: code, Message: message})
}
