package ws

import "encoding/json"

// Client -> server command types.
const (
	TypeCreateRoom   = "create_room"
	TypeJoinRoom     = "join_room"
	TypeStartGame    = "start_game"
	TypeSubmitAnswer = "submit_answer"
	TypeLeaveRoom    = "leave_room"
)

// Server -> client reply and broadcast types. The four Event* names are the
// match lifecycle events pushed to every subscriber of a room.
const (
	TypeRoomCreated = "room_created"
	TypeRoomJoined  = "room_joined"
	TypeGameStarted = "game_started"
	TypeAnswerAck   = "answer_ack"
	TypeRoomLeft    = "room_left"
	TypeError       = "error"

	EventMatchStarting   = "match-starting"
	EventQuestion        = "question"
	EventQuestionResults = "question-results"
	EventMatchEnded      = "match-ended"
)

// Message wraps all WebSocket payloads with a type and optional request ID.
type Message struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	RequestID string          `json:"request_id,omitempty"`
}

// Client commands (incoming)

type CreateRoomPayload struct {
	QuestionSetID string `json:"question_set_id"`
}

type JoinRoomPayload struct {
	RoomCode string `json:"room_code"`
}

type StartGamePayload struct {
	RoomCode string `json:"room_code"`
}

type SubmitAnswerPayload struct {
	RoomCode      string `json:"room_code"`
	QuestionIndex int    `json:"question_index"`
	OptionIndex   int    `json:"option_index"`
}

type LeaveRoomPayload struct {
	RoomCode string `json:"room_code"`
}

// Server replies (outgoing, to the caller only)

type AnswerAckPayload struct {
	RoomCode       string `json:"room_code"`
	QuestionIndex  int    `json:"question_index"`
	IsCorrect      bool   `json:"is_correct"`
	ResponseTimeMs int64  `json:"response_time_ms"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Room broadcasts (outgoing, to all room subscribers)

type MatchStartingPayload struct {
	TotalQuestions int      `json:"total_questions"`
	Players        []string `json:"players"`
}

// QuestionEventPayload never carries the correct option index.
type QuestionEventPayload struct {
	QuestionID       string   `json:"question_id"`
	Text             string   `json:"text"`
	Options          []string `json:"options"`
	QuestionNumber   int      `json:"question_number"`
	TotalQuestions   int      `json:"total_questions"`
	TimeLimitSeconds int      `json:"time_limit_seconds"`
}

type QuestionResultsPayload struct {
	QuestionNumber     int                     `json:"question_number"`
	CorrectOptionIndex int                     `json:"correct_option_index"`
	CorrectOptionText  string                  `json:"correct_option_text"`
	ScoreDeltas        map[string]int          `json:"score_deltas"`
	CumulativeScores   map[string]int          `json:"cumulative_scores"`
	PerPlayerAnswers   map[string]PlayerAnswer `json:"per_player_answers"`
	Explanation        string                  `json:"explanation,omitempty"`
}

// PlayerAnswer reports what a player did on one question. OptionIndex and
// ResponseTimeMs are nil when the player never answered.
type PlayerAnswer struct {
	OptionIndex    *int   `json:"option_index"`
	IsCorrect      bool   `json:"is_correct"`
	ResponseTimeMs *int64 `json:"response_time_ms"`
}

type MatchEndedPayload struct {
	Leaderboard []LeaderboardRow `json:"leaderboard"`
	MatchStats  MatchStatsBody   `json:"match_stats"`
	FinalScores map[string]int   `json:"final_scores"`
}

type LeaderboardRow struct {
	Position              int    `json:"position"`
	UserID                string `json:"user_id"`
	Score                 int    `json:"score"`
	CorrectAnswers        int    `json:"correct_answers"`
	TotalQuestions        int    `json:"total_questions"`
	Accuracy              int    `json:"accuracy"`
	AverageResponseTimeMs int64  `json:"average_response_time_ms"`
}

type MatchStatsBody struct {
	TotalQuestions int     `json:"total_questions"`
	DurationMs     int64   `json:"duration_ms"`
	TotalPlayers   int     `json:"total_players"`
	AverageScore   float64 `json:"average_score"`
}
