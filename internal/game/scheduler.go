package game

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/brainbrawler/game-service/pkg/http/ws"
)

// The question cycle is driven entirely by server-side timers: warm-up fires
// onRevealTimer for question 0, each reveal arms the answer deadline, each
// deadline resolves results and arms the review delay, and the review delay
// either reveals the next question or ends the match. Every callback carries
// the question index it was armed for; a callback whose index no longer
// matches the live match is a stale firing and does nothing.

func (e *Engine) onRevealTimer(code string, index int) {
	rt := e.runtimeFor(code)
	rt.mu.Lock()
	defer rt.mu.Unlock()

	ctx := context.Background()
	m, ok := e.loadForTimer(ctx, code, index)
	if !ok {
		return
	}
	e.revealLocked(ctx, rt, m)
}

func (e *Engine) onDeadline(code string, index int) {
	rt := e.runtimeFor(code)
	rt.mu.Lock()
	defer rt.mu.Unlock()

	ctx := context.Background()
	m, ok := e.loadForTimer(ctx, code, index)
	if !ok {
		return
	}
	e.resolveLocked(ctx, rt, m)
}

func (e *Engine) onAdvance(code string, index int) {
	rt := e.runtimeFor(code)
	rt.mu.Lock()
	defer rt.mu.Unlock()

	ctx := context.Background()
	m, ok := e.loadForTimer(ctx, code, index)
	if !ok {
		return
	}

	if index+1 >= len(m.Questions) {
		e.endMatchLocked(ctx, rt, m)
		return
	}

	m.CurrentQuestion = index + 1
	e.revealLocked(ctx, rt, m)
}

// loadForTimer fetches the match for a timer callback and applies the stale
// guards. A missing match, a finished match, or an index mismatch all mean the
// timer outlived the state it was armed for.
func (e *Engine) loadForTimer(ctx context.Context, code string, index int) (*Match, bool) {
	m, err := e.store.Get(ctx, code)
	if err != nil {
		var notFound *NotFoundError
		if !errors.As(err, &notFound) {
			e.logger.Warn().Err(err).Str("room_code", code).Msg("timer could not load match")
		}
		return nil, false
	}
	if m.Status != StatusActive || m.CurrentQuestion != index {
		return nil, false
	}
	return m, true
}

// revealLocked broadcasts the current question (answer key withheld), stamps
// the question start time, and arms the answer deadline. Must be called with
// rt.mu held.
func (e *Engine) revealLocked(ctx context.Context, rt *roomRuntime, m *Match) {
	index := m.CurrentQuestion
	q := m.Questions[index]
	limit := m.QuestionTimeLimit(index)

	// A fresh reveal starts from an empty answer map for its index.
	delete(m.Answers, index)
	m.QuestionStartedAt = e.clock.Now()
	if err := e.store.Put(ctx, m.Code, m, e.cfg.StateTTL); err != nil {
		e.logger.Warn().Err(err).Str("room_code", m.Code).Msg("failed to store question start")
	}

	e.publish(m.Code, ws.EventQuestion, ws.QuestionEventPayload{
		QuestionID:       q.ID,
		Text:             q.Text,
		Options:          q.Options,
		QuestionNumber:   index + 1,
		TotalQuestions:   len(m.Questions),
		TimeLimitSeconds: limit,
	})

	e.logger.Info().
		Str("room_code", m.Code).
		Int("question_number", index+1).
		Int("time_limit_seconds", limit).
		Msg("question revealed")

	code := m.Code
	rt.arm(e.clock, time.Duration(limit)*time.Second, func() { e.onDeadline(code, index) })
}

// resolveLocked scores the current question for every player (a miss scores the
// same as a wrong answer), broadcasts the results, and arms the review delay.
// Must be called with rt.mu held.
func (e *Engine) resolveLocked(ctx context.Context, rt *roomRuntime, m *Match) {
	index := m.CurrentQuestion
	q := m.Questions[index]
	byPlayer := m.Answers[index]

	deltas := make(map[string]int, len(m.Players))
	cumulative := make(map[string]int, len(m.Players))
	answers := make(map[string]ws.PlayerAnswer, len(m.Players))

	for _, userID := range m.Players {
		rec, answered := byPlayer[userID]

		var delta int
		if answered {
			delta = e.cfg.Scoring.Score(rec.IsCorrect, rec.ResponseTimeMs)
		} else {
			delta = e.cfg.Scoring.Penalty
		}
		m.Scores[userID] += delta

		key := userID.String()
		deltas[key] = delta
		cumulative[key] = m.Scores[userID]
		if answered {
			opt := rec.OptionIndex
			rtMs := rec.ResponseTimeMs
			answers[key] = ws.PlayerAnswer{OptionIndex: &opt, IsCorrect: rec.IsCorrect, ResponseTimeMs: &rtMs}
		} else {
			answers[key] = ws.PlayerAnswer{}
		}
	}

	if err := e.store.Put(ctx, m.Code, m, e.cfg.StateTTL); err != nil {
		e.logger.Warn().Err(err).Str("room_code", m.Code).Msg("failed to store question results")
	}

	e.publish(m.Code, ws.EventQuestionResults, ws.QuestionResultsPayload{
		QuestionNumber:     index + 1,
		CorrectOptionIndex: q.CorrectOption,
		CorrectOptionText:  q.Options[q.CorrectOption],
		ScoreDeltas:        deltas,
		CumulativeScores:   cumulative,
		PerPlayerAnswers:   answers,
		Explanation:        q.Explanation,
	})

	e.logger.Info().
		Str("room_code", m.Code).
		Int("question_number", index+1).
		Int("answers", len(byPlayer)).
		Msg("question resolved")

	code := m.Code
	rt.arm(e.clock, e.cfg.ReviewDelay, func() { e.onAdvance(code, index) })
}

func buildMatchEnded(leaderboard []LeaderboardEntry, stats MatchStats, scores map[uuid.UUID]int) ws.MatchEndedPayload {
	rows := make([]ws.LeaderboardRow, 0, len(leaderboard))
	for _, entry := range leaderboard {
		rows = append(rows, ws.LeaderboardRow{
			Position:              entry.Position,
			UserID:                entry.UserID.String(),
			Score:                 entry.Score,
			CorrectAnswers:        entry.CorrectAnswers,
			TotalQuestions:        entry.TotalQuestions,
			Accuracy:              entry.Accuracy,
			AverageResponseTimeMs: entry.AverageResponseTimeMs,
		})
	}

	final := make(map[string]int, len(scores))
	for userID, score := range scores {
		final[userID.String()] = score
	}

	return ws.MatchEndedPayload{
		Leaderboard: rows,
		MatchStats: ws.MatchStatsBody{
			TotalQuestions: stats.TotalQuestions,
			DurationMs:     stats.DurationMs,
			TotalPlayers:   stats.TotalPlayers,
			AverageScore:   stats.AverageScore,
		},
		FinalScores: final,
	}
}
