// Package rank maintains the all-time cross-match leaderboard in Redis.
// Updates are fire-and-forget from the match engine's point of view: a ranking
// failure never blocks final results.
package rank

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Entry is one player's aggregate row.
type Entry struct {
	UserID        uuid.UUID `json:"user_id"`
	Score         int       `json:"score"`
	Wins          int       `json:"wins"`
	Games         int       `json:"games"`
	CorrectTotal  int       `json:"-"`
	QuestionTotal int       `json:"-"`
	Accuracy      float64   `json:"accuracy"`
}

// RecordRequest captures the per-match data folded into the aggregates.
type RecordRequest struct {
	UserID        uuid.UUID
	MatchID       uuid.UUID
	Score         int
	CorrectCount  int
	QuestionCount int
	Won           bool
}

// ServiceOptions configures leaderboard behavior.
type ServiceOptions struct {
	TopN           int
	RedisKeyPrefix string
}

// Service manages leaderboard state in Redis.
type Service struct {
	redis  *redis.Client
	logger zerolog.Logger
	topN   int
	prefix string
}

// NewService constructs a leaderboard service instance.
func NewService(redis *redis.Client, logger zerolog.Logger, opts ServiceOptions) *Service {
	topN := opts.TopN
	if topN <= 0 {
		topN = 50
	}
	prefix := opts.RedisKeyPrefix
	if prefix == "" {
		prefix = "rank"
	}

	return &Service{
		redis:  redis,
		logger: logger.With().Str("component", "rank").Logger(),
		topN:   topN,
		prefix: prefix,
	}
}

// RecordResult folds one match result into a player's aggregates.
func (s *Service) RecordResult(ctx context.Context, req RecordRequest) error {
	zKey := s.boardKey()
	metaKey := s.metaKey(req.UserID)

	pipe := s.redis.TxPipeline()
	pipe.ZIncrBy(ctx, zKey, float64(req.Score), req.UserID.String())
	pipe.HIncrBy(ctx, metaKey, "wins", int64(boolToInt(req.Won)))
	pipe.HIncrBy(ctx, metaKey, "games", 1)
	pipe.HIncrBy(ctx, metaKey, "correct", int64(req.CorrectCount))
	pipe.HIncrBy(ctx, metaKey, "questions", int64(req.QuestionCount))

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("update leaderboard: %w", err)
	}
	return nil
}

// Top retrieves the top N entries by cumulative score.
func (s *Service) Top(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 || limit > s.topN {
		limit = s.topN
	}

	results, err := s.redis.ZRevRangeWithScores(ctx, s.boardKey(), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("fetch leaderboard: %w", err)
	}

	entries := make([]Entry, 0, len(results))
	for _, z := range results {
		meta, err := s.readMeta(ctx, z.Member.(string))
		if err != nil {
			s.logger.Warn().Err(err).Msg("failed to read leaderboard metadata")
			continue
		}
		meta.Score = int(z.Score)
		entries = append(entries, *meta)
	}
	return entries, nil
}

func (s *Service) readMeta(ctx context.Context, userIDStr string) (*Entry, error) {
	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		return nil, fmt.Errorf("parse member %q: %w", userIDStr, err)
	}

	data, err := s.redis.HGetAll(ctx, s.metaKey(userID)).Result()
	if err != nil {
		return nil, err
	}

	entry := &Entry{UserID: userID}
	entry.Wins = parseInt(data["wins"])
	entry.Games = parseInt(data["games"])
	entry.CorrectTotal = parseInt(data["correct"])
	entry.QuestionTotal = parseInt(data["questions"])
	if entry.QuestionTotal > 0 {
		entry.Accuracy = float64(entry.CorrectTotal) / float64(entry.QuestionTotal)
	}
	return entry, nil
}

func (s *Service) boardKey() string {
	return fmt.Sprintf("%s:all_time", s.prefix)
}

func (s *Service) metaKey(userID uuid.UUID) string {
	return fmt.Sprintf("%s:all_time:meta:%s", s.prefix, userID.String())
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

func parseInt(val string) int {
	if val == "" {
		return 0
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return 0
	}
	return i
}
