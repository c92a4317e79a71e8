package game

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewStore(context.Background(), client, zerolog.Nop()), mr
}

func testMatch(code string) *Match {
	host := uuid.New()
	return &Match{
		Code:    code,
		MatchID: uuid.New(),
		HostID:  host,
		Status:  StatusLobby,
		Players: []uuid.UUID{host},
		Questions: []Question{
			{ID: "q1", Text: "2+2?", Options: []string{"3", "4"}, CorrectOption: 1},
		},
		Scores:          map[uuid.UUID]int{host: 0},
		Answers:         map[int]map[uuid.UUID]AnswerRecord{},
		TimePerQuestion: 15,
		CreatedAt:       time.Now().UTC(),
	}
}

func TestStoreRoundTrip(t *testing.T) {
	store, _ := newRedisStore(t)
	ctx := context.Background()

	m := testMatch("ABC123")
	require.NoError(t, store.Put(ctx, m.Code, m, time.Hour))

	got, err := store.Get(ctx, "ABC123")
	require.NoError(t, err)
	assert.Equal(t, m.MatchID, got.MatchID)
	assert.Equal(t, StatusLobby, got.Status)
	assert.Equal(t, m.Players, got.Players)
	assert.Len(t, got.Questions, 1)
}

func TestStoreGetMissingReturnsNotFound(t *testing.T) {
	store, _ := newRedisStore(t)

	_, err := store.Get(context.Background(), "NOPE42")
	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "NOPE42", notFound.Code)
}

func TestStoreTTLExpiry(t *testing.T) {
	store, mr := newRedisStore(t)
	ctx := context.Background()

	m := testMatch("TTL001")
	require.NoError(t, store.Put(ctx, m.Code, m, time.Minute))

	mr.FastForward(2 * time.Minute)

	_, err := store.Get(ctx, "TTL001")
	var notFound *NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestStoreDelete(t *testing.T) {
	store, _ := newRedisStore(t)
	ctx := context.Background()

	m := testMatch("DEL001")
	require.NoError(t, store.Put(ctx, m.Code, m, time.Hour))
	require.NoError(t, store.Delete(ctx, "DEL001"))

	_, err := store.Get(ctx, "DEL001")
	var notFound *NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestStoreDegradedModeWithoutRedis(t *testing.T) {
	store := NewStore(context.Background(), nil, zerolog.Nop())
	ctx := context.Background()

	m := testMatch("MEM001")
	require.NoError(t, store.Put(ctx, m.Code, m, time.Hour))

	got, err := store.Get(ctx, "MEM001")
	require.NoError(t, err)
	assert.Equal(t, m.MatchID, got.MatchID)

	require.NoError(t, store.Delete(ctx, "MEM001"))
	_, err = store.Get(ctx, "MEM001")
	var notFound *NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestStoreFallsBackWhenRedisDies(t *testing.T) {
	store, mr := newRedisStore(t)
	ctx := context.Background()

	mr.Close()

	// Writes land in process memory once Redis is gone.
	m := testMatch("FBK001")
	require.NoError(t, store.Put(ctx, m.Code, m, time.Hour))

	got, err := store.Get(ctx, "FBK001")
	require.NoError(t, err)
	assert.Equal(t, m.MatchID, got.MatchID)
}
