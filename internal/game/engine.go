package game

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/brainbrawler/game-service/internal/game/scoring"
	"github.com/brainbrawler/game-service/internal/rank"
	"github.com/brainbrawler/game-service/pkg/http/ws"
)

// Persistence is the durable-storage collaborator. Every call made by the
// engine after match start is non-fatal to gameplay.
type Persistence interface {
	LoadQuestions(ctx context.Context, questionSetID string) ([]Question, error)
	RecordMatchResult(ctx context.Context, matchID uuid.UUID, results []PlayerResult) error
	UpdateUserAggregate(ctx context.Context, userID uuid.UUID, delta AggregateDelta) error
}

// Broadcaster pushes an event to every subscriber of a room.
type Broadcaster interface {
	Publish(roomCode, event string, payload any) error
}

// EventSink is the optional fire-and-forget side channel for match events.
type EventSink interface {
	Emit(ctx context.Context, roomCode, eventType string, data interface{})
}

// Config groups the gameplay constants.
type Config struct {
	RoomCapacity      int
	TimePerQuestion   time.Duration
	WarmupDelay       time.Duration
	ReviewDelay       time.Duration
	StateTTL          time.Duration
	FinishedRetention time.Duration
	Scoring           scoring.Config
}

// DefaultConfig returns the production gameplay constants.
func DefaultConfig() Config {
	return Config{
		RoomCapacity:      8,
		TimePerQuestion:   15 * time.Second,
		WarmupDelay:       3 * time.Second,
		ReviewDelay:       5 * time.Second,
		StateTTL:          time.Hour,
		FinishedRetention: 30 * time.Second,
		Scoring:           scoring.DefaultConfig(),
	}
}

// EngineOptions carries the optional collaborators.
type EngineOptions struct {
	Rank   *rank.Service
	Events EventSink
	Config Config
}

// Engine orchestrates match lifecycle, scoring, and state transitions. It is
// the only component allowed to mutate match state; all mutations for one room
// are serialized on that room's runtime lock, so command handlers and timer
// callbacks never interleave on the same match.
type Engine struct {
	store     MatchStore
	persist   Persistence
	broadcast Broadcaster
	clock     Clock
	rankSvc   *rank.Service
	events    EventSink
	cfg       Config
	logger    zerolog.Logger

	mu    sync.Mutex
	rooms map[string]*roomRuntime
}

// roomRuntime holds the per-match scheduling state: one lock serializing all
// mutations and at most one armed timer.
type roomRuntime struct {
	mu    sync.Mutex
	timer TimerHandle
}

// arm replaces the pending timer, guaranteeing at most one active deadline per
// match. Must be called with rt.mu held.
func (rt *roomRuntime) arm(clock Clock, d time.Duration, fn func()) {
	if rt.timer != nil {
		rt.timer.Cancel()
	}
	rt.timer = clock.ScheduleOnce(d, fn)
}

func (rt *roomRuntime) cancelTimer() {
	if rt.timer != nil {
		rt.timer.Cancel()
		rt.timer = nil
	}
}

// NewEngine creates a match engine with all dependencies.
func NewEngine(
	store MatchStore,
	persist Persistence,
	broadcast Broadcaster,
	clock Clock,
	opts EngineOptions,
	logger zerolog.Logger,
) *Engine {
	cfg := opts.Config
	if cfg.RoomCapacity == 0 {
		cfg = DefaultConfig()
	}

	return &Engine{
		store:     store,
		persist:   persist,
		broadcast: broadcast,
		clock:     clock,
		rankSvc:   opts.Rank,
		events:    opts.Events,
		cfg:       cfg,
		logger:    logger.With().Str("component", "match_engine").Logger(),
	}
}

const (
	roomCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	roomCodeLength   = 6
	codeGenAttempts  = 10
)

// CreateRoom resolves the question set, generates a room code, and seeds a
// match in the lobby state with the host as first player.
func (e *Engine) CreateRoom(ctx context.Context, hostID uuid.UUID, questionSetID string) (*Summary, error) {
	questions, err := e.persist.LoadQuestions(ctx, questionSetID)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	if len(questions) == 0 {
		return nil, &ValidationError{Reason: "question set is empty"}
	}

	code, err := e.generateRoomCode(ctx)
	if err != nil {
		return nil, err
	}

	now := e.clock.Now()
	m := &Match{
		Code:            code,
		MatchID:         uuid.New(),
		HostID:          hostID,
		Status:          StatusLobby,
		Players:         []uuid.UUID{hostID},
		Questions:       questions,
		Scores:          map[uuid.UUID]int{hostID: 0},
		Answers:         map[int]map[uuid.UUID]AnswerRecord{},
		TimePerQuestion: int(e.cfg.TimePerQuestion / time.Second),
		CreatedAt:       now,
	}

	if err := e.store.Put(ctx, code, m, e.cfg.StateTTL); err != nil {
		return nil, fmt.Errorf("store match: %w", err)
	}

	metricRoomsCreated.Inc()
	metricActiveRooms.Inc()
	if e.events != nil {
		e.events.Emit(ctx, code, "room-created", map[string]interface{}{
			"match_id": m.MatchID.String(),
			"host_id":  hostID.String(),
		})
	}

	e.logger.Info().
		Str("room_code", code).
		Str("host_id", hostID.String()).
		Int("questions", len(questions)).
		Msg("room created")

	return e.summary(m), nil
}

// JoinRoom appends a player to a lobby. Joining twice with the same user is
// idempotent and does not reset the player's score.
func (e *Engine) JoinRoom(ctx context.Context, userID uuid.UUID, code string) (*Summary, error) {
	rt := e.runtimeFor(code)
	rt.mu.Lock()
	defer rt.mu.Unlock()

	m, err := e.store.Get(ctx, code)
	if err != nil {
		e.releaseIfIdle(code, rt)
		return nil, err
	}

	if m.Status != StatusLobby {
		return nil, &StateError{Reason: "match already started"}
	}
	if m.HasPlayer(userID) {
		return e.summary(m), nil
	}
	if len(m.Players) >= e.cfg.RoomCapacity {
		return nil, &CapacityError{Code: code, MaxPlayers: e.cfg.RoomCapacity}
	}

	m.Players = append(m.Players, userID)
	m.Scores[userID] = 0

	if err := e.store.Put(ctx, code, m, e.cfg.StateTTL); err != nil {
		return nil, fmt.Errorf("store match: %w", err)
	}

	e.logger.Info().
		Str("room_code", code).
		Str("user_id", userID.String()).
		Int("player_count", len(m.Players)).
		Msg("player joined room")

	return e.summary(m), nil
}

// StartGame transitions the match to active, announces it, and schedules the
// first question reveal after the warm-up delay. Host only.
func (e *Engine) StartGame(ctx context.Context, hostID uuid.UUID, code string) error {
	rt := e.runtimeFor(code)
	rt.mu.Lock()
	defer rt.mu.Unlock()

	m, err := e.store.Get(ctx, code)
	if err != nil {
		e.releaseIfIdle(code, rt)
		return err
	}

	if m.HostID != hostID {
		return &StateError{Reason: "only the host can start the match"}
	}
	if len(m.Players) < 1 {
		return &StateError{Reason: "need at least 1 player"}
	}
	if m.Status != StatusLobby {
		return &StateError{Reason: "match already started"}
	}

	now := e.clock.Now()
	m.Status = StatusActive
	m.StartedAt = &now
	m.CurrentQuestion = 0

	if err := e.store.Put(ctx, code, m, e.cfg.StateTTL); err != nil {
		return fmt.Errorf("store match: %w", err)
	}

	players := make([]string, 0, len(m.Players))
	for _, p := range m.Players {
		players = append(players, p.String())
	}
	e.publish(code, ws.EventMatchStarting, ws.MatchStartingPayload{
		TotalQuestions: len(m.Questions),
		Players:        players,
	})
	if e.events != nil {
		e.events.Emit(ctx, code, "match-started", map[string]interface{}{
			"match_id": m.MatchID.String(),
			"players":  len(m.Players),
		})
	}
	metricMatchesStarted.Inc()

	e.logger.Info().
		Str("room_code", code).
		Int("players", len(m.Players)).
		Int("questions", len(m.Questions)).
		Msg("match starting")

	rt.arm(e.clock, e.cfg.WarmupDelay, func() { e.onRevealTimer(code, 0) })
	return nil
}

// SubmitAnswer records a player's answer for the active question and returns
// the per-player outcome immediately. It never touches scores: scoring is
// deferred to question end so a late wrong answer and a miss score the same.
func (e *Engine) SubmitAnswer(ctx context.Context, userID uuid.UUID, code string, questionIndex, optionIndex int) (*SubmitResult, error) {
	rt := e.runtimeFor(code)
	rt.mu.Lock()
	defer rt.mu.Unlock()

	m, err := e.store.Get(ctx, code)
	if err != nil {
		e.releaseIfIdle(code, rt)
		return nil, err
	}

	if m.Status != StatusActive {
		return nil, &StateError{Reason: "match is not active"}
	}
	if !m.HasPlayer(userID) {
		return nil, &StateError{Reason: "not a player in this match"}
	}
	if questionIndex != m.CurrentQuestion {
		return nil, &StateError{Reason: "question index mismatch"}
	}
	if _, exists := m.Answers[questionIndex][userID]; exists {
		return nil, &StateError{Reason: "already answered this question"}
	}

	// Response time comes from the server clock only; client timestamps are
	// never consulted.
	now := e.clock.Now()
	responseTimeMs := now.Sub(m.QuestionStartedAt).Milliseconds()
	isCorrect := optionIndex == m.Questions[questionIndex].CorrectOption

	if m.Answers[questionIndex] == nil {
		m.Answers[questionIndex] = make(map[uuid.UUID]AnswerRecord)
	}
	m.Answers[questionIndex][userID] = AnswerRecord{
		OptionIndex:    optionIndex,
		IsCorrect:      isCorrect,
		ResponseTimeMs: responseTimeMs,
		ReceivedAt:     now,
	}

	if err := e.store.Put(ctx, code, m, e.cfg.StateTTL); err != nil {
		return nil, fmt.Errorf("store match: %w", err)
	}

	metricAnswersSubmitted.Inc()
	e.logger.Info().
		Str("room_code", code).
		Str("user_id", userID.String()).
		Int("question_index", questionIndex).
		Bool("correct", isCorrect).
		Int64("response_time_ms", responseTimeMs).
		Msg("answer recorded")

	return &SubmitResult{IsCorrect: isCorrect, ResponseTimeMs: responseTimeMs}, nil
}

// LeaveRoom removes a player. A host leaving the lobby, or the last player
// leaving, tears the room down; the last player leaving an active match ends it.
func (e *Engine) LeaveRoom(ctx context.Context, userID uuid.UUID, code string) error {
	rt := e.runtimeFor(code)
	rt.mu.Lock()
	defer rt.mu.Unlock()

	m, err := e.store.Get(ctx, code)
	if err != nil {
		e.releaseIfIdle(code, rt)
		return err
	}

	if !m.HasPlayer(userID) {
		return &StateError{Reason: "not a player in this match"}
	}
	if m.Status == StatusFinished {
		return nil
	}

	for i, p := range m.Players {
		if p == userID {
			m.Players = append(m.Players[:i], m.Players[i+1:]...)
			break
		}
	}
	delete(m.Scores, userID)

	e.logger.Info().
		Str("room_code", code).
		Str("user_id", userID.String()).
		Int("player_count", len(m.Players)).
		Msg("player left room")

	if m.Status == StatusLobby && (len(m.Players) == 0 || userID == m.HostID) {
		rt.cancelTimer()
		_ = e.store.Delete(ctx, code)
		e.removeRuntime(code)
		metricActiveRooms.Dec()
		return nil
	}
	if m.Status == StatusActive && len(m.Players) == 0 {
		e.endMatchLocked(ctx, rt, m)
		return nil
	}

	if err := e.store.Put(ctx, code, m, e.cfg.StateTTL); err != nil {
		return fmt.Errorf("store match: %w", err)
	}
	return nil
}

// RoomSummary returns the client-facing view of a match for read-only callers.
func (e *Engine) RoomSummary(ctx context.Context, code string) (*Summary, error) {
	m, err := e.store.Get(ctx, code)
	if err != nil {
		return nil, err
	}
	return e.summary(m), nil
}

// endMatchLocked finishes the match exactly once: later calls see the
// finished status and return. Must be called with rt.mu held.
func (e *Engine) endMatchLocked(ctx context.Context, rt *roomRuntime, m *Match) {
	if m.Status == StatusFinished {
		return
	}

	rt.cancelTimer()

	now := e.clock.Now()
	m.Status = StatusFinished
	m.EndedAt = &now

	stats := e.matchStats(m)
	leaderboard := BuildLeaderboard(m)

	if err := e.store.Put(ctx, m.Code, m, e.cfg.StateTTL); err != nil {
		e.logger.Warn().Err(err).Str("room_code", m.Code).Msg("failed to store finished match")
	}

	e.publish(m.Code, ws.EventMatchEnded, buildMatchEnded(leaderboard, stats, m.Scores))

	// Durable writes happen after the broadcast path is prepared: players get
	// final results even when persistence is down.
	e.persistResults(ctx, m, leaderboard)

	if e.events != nil {
		e.events.Emit(ctx, m.Code, "match-ended", map[string]interface{}{
			"match_id":     m.MatchID.String(),
			"duration_ms":  stats.DurationMs,
			"player_count": stats.TotalPlayers,
		})
	}
	metricMatchesFinished.Inc()

	e.logger.Info().
		Str("room_code", m.Code).
		Int("players", stats.TotalPlayers).
		Int64("duration_ms", stats.DurationMs).
		Msg("match ended")

	// Keep final state readable for trailing reads before eviction.
	code := m.Code
	rt.timer = e.clock.ScheduleOnce(e.cfg.FinishedRetention, func() { e.evictRoom(code) })
}

func (e *Engine) persistResults(ctx context.Context, m *Match, leaderboard []LeaderboardEntry) {
	results := make([]PlayerResult, 0, len(leaderboard))
	for _, entry := range leaderboard {
		results = append(results, PlayerResult{
			UserID:         entry.UserID,
			Score:          entry.Score,
			CorrectAnswers: entry.CorrectAnswers,
			TotalQuestions: entry.TotalQuestions,
			Won:            entry.CorrectAnswers*2 > entry.TotalQuestions,
		})
	}

	if err := e.persist.RecordMatchResult(ctx, m.MatchID, results); err != nil {
		e.logger.Warn().Err(err).Str("room_code", m.Code).Msg("failed to record match result")
	}

	for _, res := range results {
		delta := AggregateDelta{
			ScoreDelta: res.Score,
			XPDelta:    xpForMatch(res.CorrectAnswers, res.TotalQuestions, res.Score),
			Won:        res.Won,
		}
		if err := e.persist.UpdateUserAggregate(ctx, res.UserID, delta); err != nil {
			e.logger.Warn().Err(err).Str("user_id", res.UserID.String()).Msg("failed to update user aggregate")
		}

		if e.rankSvc != nil {
			req := rank.RecordRequest{
				UserID:        res.UserID,
				MatchID:       m.MatchID,
				Score:         res.Score,
				CorrectCount:  res.CorrectAnswers,
				QuestionCount: res.TotalQuestions,
				Won:           res.Won,
			}
			if err := e.rankSvc.RecordResult(ctx, req); err != nil {
				e.logger.Warn().Err(err).Str("user_id", res.UserID.String()).Msg("failed to record leaderboard result")
			}
		}
	}
}

// xpForMatch mirrors the profile progression rules: participation base plus
// accuracy and score bonuses. The score term uses floor semantics, so a
// negative total reduces XP.
func xpForMatch(correct, total, score int) int {
	baseXP := 10
	accuracyBonus := int(math.Floor(float64(correct) / float64(total) * 50))
	scoreBonus := int(math.Floor(float64(score) / 100))
	return baseXP + accuracyBonus + scoreBonus
}

func (e *Engine) matchStats(m *Match) MatchStats {
	var durationMs int64
	if m.StartedAt != nil && m.EndedAt != nil {
		durationMs = m.EndedAt.Sub(*m.StartedAt).Milliseconds()
	}

	var sum int
	for _, score := range m.Scores {
		sum += score
	}
	avg := 0.0
	if len(m.Players) > 0 {
		avg = float64(sum) / float64(len(m.Players))
	}

	return MatchStats{
		TotalQuestions: len(m.Questions),
		DurationMs:     durationMs,
		TotalPlayers:   len(m.Players),
		AverageScore:   avg,
	}
}

func (e *Engine) evictRoom(code string) {
	rt := e.runtimeFor(code)
	rt.mu.Lock()
	defer rt.mu.Unlock()

	rt.cancelTimer()
	if err := e.store.Delete(context.Background(), code); err != nil {
		e.logger.Warn().Err(err).Str("room_code", code).Msg("failed to evict match state")
	}
	e.removeRuntime(code)
	metricActiveRooms.Dec()
	e.logger.Info().Str("room_code", code).Msg("match state evicted")
}

// generateRoomCode samples codes until one does not collide with a live match.
// Without the check two matches could silently alias the same code.
func (e *Engine) generateRoomCode(ctx context.Context) (string, error) {
	for attempt := 0; attempt < codeGenAttempts; attempt++ {
		buf := make([]byte, roomCodeLength)
		for i := range buf {
			buf[i] = roomCodeAlphabet[rand.Intn(len(roomCodeAlphabet))]
		}
		code := string(buf)

		_, err := e.store.Get(ctx, code)
		var notFound *NotFoundError
		if errors.As(err, &notFound) {
			return code, nil
		}
		if err != nil {
			return "", fmt.Errorf("check room code: %w", err)
		}
	}
	return "", fmt.Errorf("could not allocate a free room code after %d attempts", codeGenAttempts)
}

func (e *Engine) runtimeFor(code string) *roomRuntime {
	e.mu.Lock()
	defer e.mu.Unlock()

	rt, ok := e.rooms[code]
	if !ok {
		if e.rooms == nil {
			e.rooms = make(map[string]*roomRuntime)
		}
		rt = &roomRuntime{}
		e.rooms[code] = rt
	}
	return rt
}

// releaseIfIdle drops a runtime created for a code that turned out not to
// exist, so bogus lookups do not accumulate.
func (e *Engine) releaseIfIdle(code string, rt *roomRuntime) {
	if rt.timer != nil {
		return
	}
	e.removeRuntime(code)
}

func (e *Engine) removeRuntime(code string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.rooms, code)
}

func (e *Engine) publish(code string, event string, payload any) {
	if err := e.broadcast.Publish(code, event, payload); err != nil {
		e.logger.Warn().Err(err).Str("room_code", code).Str("event", event).Msg("broadcast failed")
	}
}

func (e *Engine) summary(m *Match) *Summary {
	return &Summary{
		Code:            m.Code,
		MatchID:         m.MatchID,
		HostID:          m.HostID,
		Status:          m.Status.String(),
		Players:         append([]uuid.UUID(nil), m.Players...),
		TotalQuestions:  len(m.Questions),
		MaxPlayers:      e.cfg.RoomCapacity,
		TimePerQuestion: m.TimePerQuestion,
		CreatedAt:       m.CreatedAt,
	}
}
