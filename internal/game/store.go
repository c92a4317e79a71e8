package game

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// MatchStore is keyed storage for live match state with expiry.
type MatchStore interface {
	Get(ctx context.Context, code string) (*Match, error)
	Put(ctx context.Context, code string, m *Match, ttl time.Duration) error
	Delete(ctx context.Context, code string) error
}

// Store keeps match state in Redis and degrades to process memory when Redis
// is unreachable. In degraded mode state does not survive a restart and is not
// shared across engine instances; the limitation is logged, not masked.
type Store struct {
	redis  *redis.Client
	logger zerolog.Logger

	mu    sync.RWMutex
	local map[string]localEntry
}

type localEntry struct {
	data      []byte
	expiresAt time.Time
}

var _ MatchStore = (*Store)(nil)

// NewStore builds a match store. A nil client, or a client that fails the
// initial ping, puts the store in memory-only mode from the start.
func NewStore(ctx context.Context, client *redis.Client, logger zerolog.Logger) *Store {
	s := &Store{
		redis:  client,
		logger: logger.With().Str("component", "match_store").Logger(),
		local:  make(map[string]localEntry),
	}

	if client == nil {
		s.logger.Warn().Msg("redis not configured; match state held in process memory only (single instance, no restart survival)")
		return s
	}
	if err := client.Ping(ctx).Err(); err != nil {
		s.logger.Warn().Err(err).Msg("redis unreachable; match state held in process memory only (single instance, no restart survival)")
		s.redis = nil
	}
	return s
}

func storeKey(code string) string {
	return fmt.Sprintf("game:%s", code)
}

// Get loads the match stored under code, or NotFoundError.
func (s *Store) Get(ctx context.Context, code string) (*Match, error) {
	if s.redis != nil {
		data, err := s.redis.Get(ctx, storeKey(code)).Bytes()
		switch {
		case err == redis.Nil:
			return nil, &NotFoundError{Code: code}
		case err != nil:
			s.logger.Warn().Err(err).Str("room_code", code).Msg("redis get failed; falling back to memory")
		default:
			return decodeMatch(data)
		}
	}

	s.mu.RLock()
	entry, ok := s.local[code]
	s.mu.RUnlock()
	if !ok || (!entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt)) {
		if ok {
			s.mu.Lock()
			delete(s.local, code)
			s.mu.Unlock()
		}
		return nil, &NotFoundError{Code: code}
	}
	return decodeMatch(entry.data)
}

// Put writes the match with the given TTL. Every write refreshes expiry so an
// active match never expires mid-play.
func (s *Store) Put(ctx context.Context, code string, m *Match, ttl time.Duration) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal match: %w", err)
	}

	if s.redis != nil {
		if err := s.redis.Set(ctx, storeKey(code), data, ttl).Err(); err == nil {
			return nil
		} else {
			s.logger.Warn().Err(err).Str("room_code", code).Msg("redis set failed; falling back to memory")
		}
	}

	entry := localEntry{data: data}
	if ttl > 0 {
		entry.expiresAt = time.Now().Add(ttl)
	}
	s.mu.Lock()
	s.local[code] = entry
	s.mu.Unlock()
	return nil
}

// Delete removes the match from the store.
func (s *Store) Delete(ctx context.Context, code string) error {
	if s.redis != nil {
		if err := s.redis.Del(ctx, storeKey(code)).Err(); err != nil {
			s.logger.Warn().Err(err).Str("room_code", code).Msg("redis delete failed")
		}
	}
	s.mu.Lock()
	delete(s.local, code)
	s.mu.Unlock()
	return nil
}

func decodeMatch(data []byte) (*Match, error) {
	var m Match
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("unmarshal match: %w", err)
	}
	return &m, nil
}
