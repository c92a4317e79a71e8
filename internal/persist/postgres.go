// Package persist is the durable Postgres layer behind the match engine:
// question sets on the way in, match results and profile aggregates on the
// way out.
package persist

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/brainbrawler/game-service/internal/game"
)

// Store implements the engine's persistence contract on pgx.
type Store struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewStore creates a Postgres-backed persistence store.
func NewStore(pool *pgxpool.Pool, logger zerolog.Logger) *Store {
	return &Store{
		pool:   pool,
		logger: logger.With().Str("component", "persist").Logger(),
	}
}

// LoadQuestions fetches a question set's questions in play order.
func (s *Store) LoadQuestions(ctx context.Context, questionSetID string) ([]game.Question, error) {
	setID, err := uuid.Parse(questionSetID)
	if err != nil {
		return nil, fmt.Errorf("parse question set id: %w", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, text, options, correct_option, COALESCE(explanation, ''), COALESCE(time_limit_seconds, 0)
		FROM questions
		WHERE question_set_id = $1
		ORDER BY position ASC
	`, setID)
	if err != nil {
		return nil, fmt.Errorf("query questions: %w", err)
	}
	defer rows.Close()

	var questions []game.Question
	for rows.Next() {
		var (
			id uuid.UUID
			q  game.Question
		)
		if err := rows.Scan(&id, &q.Text, &q.Options, &q.CorrectOption, &q.Explanation, &q.TimeLimitSeconds); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		q.ID = id.String()
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate questions: %w", err)
	}
	return questions, nil
}

// RecordMatchResult writes the match record and per-player outcomes in one
// transaction.
func (s *Store) RecordMatchResult(ctx context.Context, matchID uuid.UUID, results []game.PlayerResult) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		INSERT INTO matches (id, player_count, ended_at)
		VALUES ($1, $2, now())
		ON CONFLICT (id) DO NOTHING
	`, matchID, len(results)); err != nil {
		return fmt.Errorf("insert match: %w", err)
	}

	for _, res := range results {
		if _, err := tx.Exec(ctx, `
			INSERT INTO match_players (match_id, user_id, score, correct_answers, total_questions, won)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (match_id, user_id) DO NOTHING
		`, matchID, res.UserID, res.Score, res.CorrectAnswers, res.TotalQuestions, res.Won); err != nil {
			return fmt.Errorf("insert match player: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit match result: %w", err)
	}
	return nil
}

// UpdateUserAggregate folds one match outcome into a player's profile. Level is
// derived from the new XP total, 1000 XP per level.
func (s *Store) UpdateUserAggregate(ctx context.Context, userID uuid.UUID, delta game.AggregateDelta) error {
	wins := 0
	if delta.Won {
		wins = 1
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE users
		SET total_score = total_score + $2,
		    xp = xp + $3,
		    level = floor((xp + $3)::numeric / 1000)::int + 1,
		    games_played = games_played + 1,
		    wins = wins + $4,
		    updated_at = now()
		WHERE id = $1
	`, userID, delta.ScoreDelta, delta.XPDelta, wins)
	if err != nil {
		return fmt.Errorf("update user aggregate: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user %s not found", userID)
	}
	return nil
}
