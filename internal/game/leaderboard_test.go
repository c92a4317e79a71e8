package game

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildLeaderboardOrdering(t *testing.T) {
	alice := uuid.New()
	bob := uuid.New()
	carol := uuid.New()

	m := &Match{
		Players:   []uuid.UUID{alice, bob, carol},
		Questions: make([]Question, 2),
		Scores: map[uuid.UUID]int{
			alice: 150,
			bob:   300,
			carol: -200,
		},
		Answers: map[int]map[uuid.UUID]AnswerRecord{
			0: {
				alice: {OptionIndex: 1, IsCorrect: true, ResponseTimeMs: 2000},
				bob:   {OptionIndex: 1, IsCorrect: true, ResponseTimeMs: 1000},
			},
			1: {
				bob:   {OptionIndex: 0, IsCorrect: true, ResponseTimeMs: 3000},
				carol: {OptionIndex: 2, IsCorrect: false, ResponseTimeMs: 500},
			},
		},
	}

	entries := BuildLeaderboard(m)
	require.Len(t, entries, 3)

	assert.Equal(t, bob, entries[0].UserID)
	assert.Equal(t, 1, entries[0].Position)
	assert.Equal(t, 300, entries[0].Score)
	assert.Equal(t, 2, entries[0].CorrectAnswers)
	assert.Equal(t, 100, entries[0].Accuracy)
	assert.Equal(t, int64(2000), entries[0].AverageResponseTimeMs)

	assert.Equal(t, alice, entries[1].UserID)
	assert.Equal(t, 2, entries[1].Position)
	assert.Equal(t, 50, entries[1].Accuracy)
	assert.Equal(t, int64(2000), entries[1].AverageResponseTimeMs)

	assert.Equal(t, carol, entries[2].UserID)
	assert.Equal(t, 3, entries[2].Position)
	assert.Equal(t, 0, entries[2].CorrectAnswers)
}

func TestBuildLeaderboardTieBreaksByJoinOrder(t *testing.T) {
	first := uuid.New()
	second := uuid.New()

	m := &Match{
		Players:   []uuid.UUID{first, second},
		Questions: make([]Question, 1),
		Scores: map[uuid.UUID]int{
			first:  200,
			second: 200,
		},
		Answers: map[int]map[uuid.UUID]AnswerRecord{},
	}

	entries := BuildLeaderboard(m)
	require.Len(t, entries, 2)
	assert.Equal(t, first, entries[0].UserID)
	assert.Equal(t, second, entries[1].UserID)
}

func TestBuildLeaderboardMissesExcludedFromResponseAverage(t *testing.T) {
	player := uuid.New()

	m := &Match{
		Players:   []uuid.UUID{player},
		Questions: make([]Question, 3),
		Scores:    map[uuid.UUID]int{player: 100},
		Answers: map[int]map[uuid.UUID]AnswerRecord{
			0: {player: {IsCorrect: true, ResponseTimeMs: 4000}},
			// questions 1 and 2 never answered
		},
	}

	entries := BuildLeaderboard(m)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(4000), entries[0].AverageResponseTimeMs)
	assert.Equal(t, 33, entries[0].Accuracy)
}

func TestBuildLeaderboardEmptyMatch(t *testing.T) {
	m := &Match{
		Players:   nil,
		Questions: make([]Question, 5),
		Scores:    map[uuid.UUID]int{},
		Answers:   map[int]map[uuid.UUID]AnswerRecord{},
	}

	assert.Empty(t, BuildLeaderboard(m))
}
