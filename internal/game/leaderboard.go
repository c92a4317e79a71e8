package game

import (
	"math"
	"sort"

	"github.com/google/uuid"
)

// LeaderboardEntry is one ranked row of the final standings.
type LeaderboardEntry struct {
	Position              int       `json:"position"`
	UserID                uuid.UUID `json:"user_id"`
	Score                 int       `json:"score"`
	CorrectAnswers        int       `json:"correct_answers"`
	TotalQuestions        int       `json:"total_questions"`
	Accuracy              int       `json:"accuracy"`
	AverageResponseTimeMs int64     `json:"average_response_time_ms"`
}

// BuildLeaderboard aggregates a finished match's answers and scores into the
// final ranking. Accuracy is round(correct/total*100); the response-time mean
// covers answered questions only, it does not count misses as zero. Ordering
// is by descending score, ties broken by join order so output is deterministic.
func BuildLeaderboard(m *Match) []LeaderboardEntry {
	total := len(m.Questions)
	entries := make([]LeaderboardEntry, 0, len(m.Players))

	for _, userID := range m.Players {
		correct := 0
		var responseTimes []int64
		for _, byPlayer := range m.Answers {
			rec, ok := byPlayer[userID]
			if !ok {
				continue
			}
			if rec.IsCorrect {
				correct++
			}
			responseTimes = append(responseTimes, rec.ResponseTimeMs)
		}

		accuracy := 0
		if total > 0 {
			accuracy = int(math.Round(float64(correct) / float64(total) * 100))
		}

		var avgResponse int64
		if len(responseTimes) > 0 {
			var sum int64
			for _, rt := range responseTimes {
				sum += rt
			}
			avgResponse = int64(math.Round(float64(sum) / float64(len(responseTimes))))
		}

		entries = append(entries, LeaderboardEntry{
			UserID:                userID,
			Score:                 m.Scores[userID],
			CorrectAnswers:        correct,
			TotalQuestions:        total,
			Accuracy:              accuracy,
			AverageResponseTimeMs: avgResponse,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Score > entries[j].Score
	})
	for i := range entries {
		entries[i].Position = i + 1
	}
	return entries
}
