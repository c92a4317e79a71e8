package game

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Status is the match lifecycle state. Transitions are monotonic:
// Lobby -> Active -> Finished.
type Status int

const (
	StatusLobby Status = iota
	StatusActive
	StatusFinished
)

var statusNames = map[Status]string{
	StatusLobby:    "LOBBY",
	StatusActive:   "ACTIVE",
	StatusFinished: "FINISHED",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// MarshalJSON encodes the status by name so stored match records stay readable.
func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Status) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	for st, n := range statusNames {
		if n == name {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown match status %q", name)
}

// Question is one entry of a match's frozen question list.
type Question struct {
	ID               string   `json:"id"`
	Text             string   `json:"text"`
	Options          []string `json:"options"`
	CorrectOption    int      `json:"correct_option"`
	Explanation      string   `json:"explanation,omitempty"`
	TimeLimitSeconds int      `json:"time_limit_seconds,omitempty"` // 0 means match default
}

// AnswerRecord is a single player's submission for one question. At most one
// record exists per (question index, player); a second submission is rejected.
type AnswerRecord struct {
	OptionIndex    int       `json:"option_index"`
	IsCorrect      bool      `json:"is_correct"`
	ResponseTimeMs int64     `json:"response_time_ms"`
	ReceivedAt     time.Time `json:"received_at"`
}

// Match is the full mutable state of one play session, persisted as a unit in
// the match state store under its room code.
type Match struct {
	Code              string                             `json:"code"`
	MatchID           uuid.UUID                          `json:"match_id"`
	HostID            uuid.UUID                          `json:"host_id"`
	Status            Status                             `json:"status"`
	Players           []uuid.UUID                        `json:"players"`
	Questions         []Question                         `json:"questions"`
	CurrentQuestion   int                                `json:"current_question"`
	Scores            map[uuid.UUID]int                  `json:"scores"`
	Answers           map[int]map[uuid.UUID]AnswerRecord `json:"answers"`
	QuestionStartedAt time.Time                          `json:"question_started_at"`
	TimePerQuestion   int                                `json:"time_per_question_seconds"`
	CreatedAt         time.Time                          `json:"created_at"`
	StartedAt         *time.Time                         `json:"started_at,omitempty"`
	EndedAt           *time.Time                         `json:"ended_at,omitempty"`
}

// HasPlayer reports whether userID already joined this match.
func (m *Match) HasPlayer(userID uuid.UUID) bool {
	for _, p := range m.Players {
		if p == userID {
			return true
		}
	}
	return false
}

// QuestionTimeLimit returns the effective time limit for the question at index,
// falling back to the match default.
func (m *Match) QuestionTimeLimit(index int) int {
	if index >= 0 && index < len(m.Questions) && m.Questions[index].TimeLimitSeconds > 0 {
		return m.Questions[index].TimeLimitSeconds
	}
	return m.TimePerQuestion
}

// Summary is the client-facing view of a match, without answer keys.
type Summary struct {
	Code            string      `json:"code"`
	MatchID         uuid.UUID   `json:"match_id"`
	HostID          uuid.UUID   `json:"host_id"`
	Status          string      `json:"status"`
	Players         []uuid.UUID `json:"players"`
	TotalQuestions  int         `json:"total_questions"`
	MaxPlayers      int         `json:"max_players"`
	TimePerQuestion int         `json:"time_per_question_seconds"`
	CreatedAt       time.Time   `json:"created_at"`
}

// SubmitResult is the immediate per-player acknowledgment for an accepted
// answer. Scoring is deferred to question end.
type SubmitResult struct {
	IsCorrect      bool  `json:"is_correct"`
	ResponseTimeMs int64 `json:"response_time_ms"`
}

// MatchStats are the aggregate statistics broadcast with the final results.
type MatchStats struct {
	TotalQuestions int     `json:"total_questions"`
	DurationMs     int64   `json:"duration_ms"`
	TotalPlayers   int     `json:"total_players"`
	AverageScore   float64 `json:"average_score"`
}

// PlayerResult is the durable per-player outcome handed to the persistence
// collaborator at match end.
type PlayerResult struct {
	UserID         uuid.UUID
	Score          int
	CorrectAnswers int
	TotalQuestions int
	Won            bool
}

// AggregateDelta carries the profile updates applied to a player after a match.
type AggregateDelta struct {
	ScoreDelta int
	XPDelta    int
	Won        bool
}
