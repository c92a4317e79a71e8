package game

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brainbrawler/game-service/pkg/http/ws"
)

// fakeClock lets tests drive the question cycle deterministically. Advance
// fires due timers in order, outside the clock lock, so callbacks can schedule
// follow-up timers.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	at        time.Time
	fn        func()
	cancelled bool
}

func (t *fakeTimer) Cancel() {
	t.cancelled = true
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) ScheduleOnce(d time.Duration, fn func()) TimerHandle {
	c.mu.Lock()
	defer c.mu.Unlock()
	timer := &fakeTimer{at: c.now.Add(d), fn: fn}
	c.timers = append(c.timers, timer)
	return timer
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		var next *fakeTimer
		nextIdx := -1
		for i, timer := range c.timers {
			if timer.cancelled || timer.at.After(target) {
				continue
			}
			if next == nil || timer.at.Before(next.at) {
				next = timer
				nextIdx = i
			}
		}
		if next == nil {
			c.now = target
			c.mu.Unlock()
			return
		}
		c.timers = append(c.timers[:nextIdx], c.timers[nextIdx+1:]...)
		if next.at.After(c.now) {
			c.now = next.at
		}
		c.mu.Unlock()

		next.fn()
	}
}

type stubPersist struct {
	mu         sync.Mutex
	questions  []Question
	loadErr    error
	recordErr  error
	matchID    uuid.UUID
	results    []PlayerResult
	aggregates map[uuid.UUID]AggregateDelta
}

func newStubPersist(questions []Question) *stubPersist {
	return &stubPersist{
		questions:  questions,
		aggregates: map[uuid.UUID]AggregateDelta{},
	}
}

func (s *stubPersist) LoadQuestions(_ context.Context, _ string) ([]Question, error) {
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	return s.questions, nil
}

func (s *stubPersist) RecordMatchResult(_ context.Context, matchID uuid.UUID, results []PlayerResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.recordErr != nil {
		return s.recordErr
	}
	s.matchID = matchID
	s.results = append([]PlayerResult(nil), results...)
	return nil
}

func (s *stubPersist) UpdateUserAggregate(_ context.Context, userID uuid.UUID, delta AggregateDelta) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.aggregates[userID] = delta
	return nil
}

type broadcastEvent struct {
	room    string
	event   string
	payload any
}

type recordingBroadcaster struct {
	mu     sync.Mutex
	events []broadcastEvent
}

func (b *recordingBroadcaster) Publish(roomCode, event string, payload any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, broadcastEvent{room: roomCode, event: event, payload: payload})
	return nil
}

func (b *recordingBroadcaster) ofType(event string) []broadcastEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []broadcastEvent
	for _, e := range b.events {
		if e.event == event {
			out = append(out, e)
		}
	}
	return out
}

func twoQuestions() []Question {
	return []Question{
		{ID: "q1", Text: "Capital of France?", Options: []string{"Paris", "Lyon", "Nice"}, CorrectOption: 0},
		{ID: "q2", Text: "2+2?", Options: []string{"3", "4", "5"}, CorrectOption: 1, Explanation: "basic arithmetic"},
	}
}

func newTestEngine(t *testing.T, questions []Question, capacity int) (*Engine, *stubPersist, *recordingBroadcaster, *fakeClock) {
	t.Helper()

	clock := newFakeClock()
	persist := newStubPersist(questions)
	broadcast := &recordingBroadcaster{}
	store := NewStore(context.Background(), nil, zerolog.Nop())

	cfg := DefaultConfig()
	cfg.RoomCapacity = capacity

	engine := NewEngine(store, persist, broadcast, clock, EngineOptions{Config: cfg}, zerolog.Nop())
	return engine, persist, broadcast, clock
}

func TestCreateRoom(t *testing.T) {
	engine, _, _, _ := newTestEngine(t, twoQuestions(), 8)
	host := uuid.New()

	summary, err := engine.CreateRoom(context.Background(), host, "set-1")
	require.NoError(t, err)

	assert.Len(t, summary.Code, 6)
	assert.Equal(t, host, summary.HostID)
	assert.Equal(t, "LOBBY", summary.Status)
	assert.Equal(t, []uuid.UUID{host}, summary.Players)
	assert.Equal(t, 2, summary.TotalQuestions)
	assert.Equal(t, 8, summary.MaxPlayers)
	assert.Equal(t, 15, summary.TimePerQuestion)
}

func TestCreateRoomEmptyQuestionSet(t *testing.T) {
	engine, _, _, _ := newTestEngine(t, nil, 8)

	_, err := engine.CreateRoom(context.Background(), uuid.New(), "empty-set")
	var validation *ValidationError
	assert.ErrorAs(t, err, &validation)
}

func TestJoinRoom(t *testing.T) {
	engine, _, _, _ := newTestEngine(t, twoQuestions(), 8)
	ctx := context.Background()
	host := uuid.New()
	guest := uuid.New()

	created, err := engine.CreateRoom(ctx, host, "set-1")
	require.NoError(t, err)

	joined, err := engine.JoinRoom(ctx, guest, created.Code)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{host, guest}, joined.Players)

	// Rejoining is idempotent.
	again, err := engine.JoinRoom(ctx, guest, created.Code)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{host, guest}, again.Players)
}

func TestJoinRoomFull(t *testing.T) {
	engine, _, _, _ := newTestEngine(t, twoQuestions(), 2)
	ctx := context.Background()
	host := uuid.New()

	created, err := engine.CreateRoom(ctx, host, "set-1")
	require.NoError(t, err)

	_, err = engine.JoinRoom(ctx, uuid.New(), created.Code)
	require.NoError(t, err)

	_, err = engine.JoinRoom(ctx, uuid.New(), created.Code)
	var capacityErr *CapacityError
	require.ErrorAs(t, err, &capacityErr)
	assert.Equal(t, 2, capacityErr.MaxPlayers)
}

func TestJoinRoomNotFound(t *testing.T) {
	engine, _, _, _ := newTestEngine(t, twoQuestions(), 8)

	_, err := engine.JoinRoom(context.Background(), uuid.New(), "ZZZZZZ")
	var notFound *NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestStartGameHostOnly(t *testing.T) {
	engine, _, _, _ := newTestEngine(t, twoQuestions(), 8)
	ctx := context.Background()
	host := uuid.New()
	guest := uuid.New()

	created, err := engine.CreateRoom(ctx, host, "set-1")
	require.NoError(t, err)
	_, err = engine.JoinRoom(ctx, guest, created.Code)
	require.NoError(t, err)

	var stateErr *StateError
	require.ErrorAs(t, engine.StartGame(ctx, guest, created.Code), &stateErr)

	require.NoError(t, engine.StartGame(ctx, host, created.Code))

	// Second start is rejected.
	require.ErrorAs(t, engine.StartGame(ctx, host, created.Code), &stateErr)
}

func TestJoinAfterStartRejected(t *testing.T) {
	engine, _, _, _ := newTestEngine(t, twoQuestions(), 8)
	ctx := context.Background()
	host := uuid.New()

	created, err := engine.CreateRoom(ctx, host, "set-1")
	require.NoError(t, err)
	require.NoError(t, engine.StartGame(ctx, host, created.Code))

	_, err = engine.JoinRoom(ctx, uuid.New(), created.Code)
	var stateErr *StateError
	assert.ErrorAs(t, err, &stateErr)
}

func TestSubmitAnswerGuards(t *testing.T) {
	engine, _, _, clock := newTestEngine(t, twoQuestions(), 8)
	ctx := context.Background()
	host := uuid.New()
	outsider := uuid.New()

	created, err := engine.CreateRoom(ctx, host, "set-1")
	require.NoError(t, err)
	code := created.Code

	// Answering before the match starts.
	var stateErr *StateError
	_, err = engine.SubmitAnswer(ctx, host, code, 0, 0)
	require.ErrorAs(t, err, &stateErr)

	require.NoError(t, engine.StartGame(ctx, host, code))
	clock.Advance(3 * time.Second) // warm-up, question 0 live

	// Non-player.
	_, err = engine.SubmitAnswer(ctx, outsider, code, 0, 0)
	require.ErrorAs(t, err, &stateErr)

	// Wrong question index.
	_, err = engine.SubmitAnswer(ctx, host, code, 1, 0)
	require.ErrorAs(t, err, &stateErr)

	// First submission sticks, second is rejected.
	result, err := engine.SubmitAnswer(ctx, host, code, 0, 0)
	require.NoError(t, err)
	assert.True(t, result.IsCorrect)

	_, err = engine.SubmitAnswer(ctx, host, code, 0, 1)
	require.ErrorAs(t, err, &stateErr)
}

func TestFullMatchFlow(t *testing.T) {
	engine, persist, broadcast, clock := newTestEngine(t, twoQuestions(), 8)
	ctx := context.Background()
	alice := uuid.New()
	bob := uuid.New()

	created, err := engine.CreateRoom(ctx, alice, "set-1")
	require.NoError(t, err)
	code := created.Code

	_, err = engine.JoinRoom(ctx, bob, code)
	require.NoError(t, err)
	require.NoError(t, engine.StartGame(ctx, alice, code))

	starting := broadcast.ofType(ws.EventMatchStarting)
	require.Len(t, starting, 1)

	// Warm-up elapses, question 1 goes out.
	clock.Advance(3 * time.Second)
	questions := broadcast.ofType(ws.EventQuestion)
	require.Len(t, questions, 1)
	qp := questions[0].payload.(ws.QuestionEventPayload)
	assert.Equal(t, "q1", qp.QuestionID)
	assert.Equal(t, 1, qp.QuestionNumber)
	assert.Equal(t, 15, qp.TimeLimitSeconds)

	// Alice answers correctly after 400ms; Bob never answers.
	clock.Advance(400 * time.Millisecond)
	result, err := engine.SubmitAnswer(ctx, alice, code, 0, 0)
	require.NoError(t, err)
	assert.True(t, result.IsCorrect)
	assert.Equal(t, int64(400), result.ResponseTimeMs)

	// Deadline fires.
	clock.Advance(15 * time.Second)
	results := broadcast.ofType(ws.EventQuestionResults)
	require.Len(t, results, 1)
	rp := results[0].payload.(ws.QuestionResultsPayload)
	assert.Equal(t, 0, rp.CorrectOptionIndex)
	assert.Equal(t, 200, rp.ScoreDeltas[alice.String()])
	assert.Equal(t, -100, rp.ScoreDeltas[bob.String()])
	assert.Equal(t, 200, rp.CumulativeScores[alice.String()])
	assert.Equal(t, -100, rp.CumulativeScores[bob.String()])
	require.NotNil(t, rp.PerPlayerAnswers[alice.String()].OptionIndex)
	assert.Nil(t, rp.PerPlayerAnswers[bob.String()].OptionIndex)

	// Review delay, then question 2.
	clock.Advance(5 * time.Second)
	questions = broadcast.ofType(ws.EventQuestion)
	require.Len(t, questions, 2)
	assert.Equal(t, "q2", questions[1].payload.(ws.QuestionEventPayload).QuestionID)

	// Alice answers wrong immediately; Bob answers correctly at the 2.5s mark.
	// The clock already sits 400ms past the reveal from question 1's flow.
	_, err = engine.SubmitAnswer(ctx, alice, code, 1, 2)
	require.NoError(t, err)
	clock.Advance(2100 * time.Millisecond)
	result, err = engine.SubmitAnswer(ctx, bob, code, 1, 1)
	require.NoError(t, err)
	assert.True(t, result.IsCorrect)
	assert.Equal(t, int64(2500), result.ResponseTimeMs)

	clock.Advance(13 * time.Second)
	results = broadcast.ofType(ws.EventQuestionResults)
	require.Len(t, results, 2)
	rp = results[1].payload.(ws.QuestionResultsPayload)
	assert.Equal(t, -100, rp.ScoreDeltas[alice.String()])
	assert.Equal(t, 133, rp.ScoreDeltas[bob.String()])
	assert.Equal(t, 100, rp.CumulativeScores[alice.String()])
	assert.Equal(t, 33, rp.CumulativeScores[bob.String()])
	assert.Equal(t, "basic arithmetic", rp.Explanation)

	// Last review delay ends the match.
	clock.Advance(5 * time.Second)
	ended := broadcast.ofType(ws.EventMatchEnded)
	require.Len(t, ended, 1)
	ep := ended[0].payload.(ws.MatchEndedPayload)
	require.Len(t, ep.Leaderboard, 2)
	assert.Equal(t, alice.String(), ep.Leaderboard[0].UserID)
	assert.Equal(t, 100, ep.Leaderboard[0].Score)
	assert.Equal(t, 1, ep.Leaderboard[0].Position)
	assert.Equal(t, 50, ep.Leaderboard[0].Accuracy)
	assert.Equal(t, bob.String(), ep.Leaderboard[1].UserID)
	assert.Equal(t, 33, ep.Leaderboard[1].Score)
	assert.Equal(t, 2, ep.MatchStats.TotalPlayers)
	assert.Equal(t, 2, ep.MatchStats.TotalQuestions)

	// Final state persisted, retention window still readable.
	summary, err := engine.RoomSummary(ctx, code)
	require.NoError(t, err)
	assert.Equal(t, "FINISHED", summary.Status)

	persist.mu.Lock()
	require.Len(t, persist.results, 2)
	assert.Equal(t, alice, persist.results[0].UserID)
	assert.False(t, persist.results[0].Won) // 1 of 2 correct is not a majority
	aliceDelta := persist.aggregates[alice]
	bobDelta := persist.aggregates[bob]
	persist.mu.Unlock()

	assert.Equal(t, 100, aliceDelta.ScoreDelta)
	assert.Equal(t, 36, aliceDelta.XPDelta) // 10 + 25 accuracy + 1 score
	assert.Equal(t, 35, bobDelta.XPDelta)   // 10 + 25 accuracy + 0 score

	// Retention elapses, state is evicted.
	clock.Advance(30 * time.Second)
	_, err = engine.RoomSummary(ctx, code)
	var notFound *NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestLateAnswerScoresLikeAMiss(t *testing.T) {
	engine, _, broadcast, clock := newTestEngine(t, twoQuestions(), 8)
	ctx := context.Background()
	host := uuid.New()

	created, err := engine.CreateRoom(ctx, host, "set-1")
	require.NoError(t, err)
	require.NoError(t, engine.StartGame(ctx, host, created.Code))
	clock.Advance(3 * time.Second)

	// Deadline passes with no answer.
	clock.Advance(15 * time.Second)

	results := broadcast.ofType(ws.EventQuestionResults)
	require.Len(t, results, 1)
	rp := results[0].payload.(ws.QuestionResultsPayload)
	assert.Equal(t, -100, rp.ScoreDeltas[host.String()])

	// The question has moved on; a late submission for index 0 is rejected.
	clock.Advance(5 * time.Second)
	_, err = engine.SubmitAnswer(ctx, host, created.Code, 0, 0)
	var stateErr *StateError
	assert.ErrorAs(t, err, &stateErr)
}

func TestLeaveRoomInLobby(t *testing.T) {
	engine, _, _, _ := newTestEngine(t, twoQuestions(), 8)
	ctx := context.Background()
	host := uuid.New()
	guest := uuid.New()

	created, err := engine.CreateRoom(ctx, host, "set-1")
	require.NoError(t, err)
	_, err = engine.JoinRoom(ctx, guest, created.Code)
	require.NoError(t, err)

	// Non-host leaving keeps the room alive.
	require.NoError(t, engine.LeaveRoom(ctx, guest, created.Code))
	summary, err := engine.RoomSummary(ctx, created.Code)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{host}, summary.Players)

	// Host leaving tears the lobby down.
	require.NoError(t, engine.LeaveRoom(ctx, host, created.Code))
	_, err = engine.RoomSummary(ctx, created.Code)
	var notFound *NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestLastPlayerLeavingActiveMatchEndsIt(t *testing.T) {
	engine, _, broadcast, clock := newTestEngine(t, twoQuestions(), 8)
	ctx := context.Background()
	host := uuid.New()

	created, err := engine.CreateRoom(ctx, host, "set-1")
	require.NoError(t, err)
	require.NoError(t, engine.StartGame(ctx, host, created.Code))
	clock.Advance(3 * time.Second)

	require.NoError(t, engine.LeaveRoom(ctx, host, created.Code))
	assert.Len(t, broadcast.ofType(ws.EventMatchEnded), 1)

	// The dead match's deadline timer firing later is a no-op.
	clock.Advance(time.Minute)
	assert.Len(t, broadcast.ofType(ws.EventMatchEnded), 1)
}

func TestQuestionEventOmitsAnswerKey(t *testing.T) {
	engine, _, broadcast, clock := newTestEngine(t, twoQuestions(), 8)
	ctx := context.Background()
	host := uuid.New()

	created, err := engine.CreateRoom(ctx, host, "set-1")
	require.NoError(t, err)
	require.NoError(t, engine.StartGame(ctx, host, created.Code))
	clock.Advance(3 * time.Second)

	questions := broadcast.ofType(ws.EventQuestion)
	require.Len(t, questions, 1)

	raw, err := json.Marshal(questions[0].payload)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "correct")
}

func TestPersistenceFailureDoesNotBlockResults(t *testing.T) {
	engine, persist, broadcast, clock := newTestEngine(t, twoQuestions()[:1], 8)
	persist.recordErr = assert.AnError
	ctx := context.Background()
	host := uuid.New()

	created, err := engine.CreateRoom(ctx, host, "set-1")
	require.NoError(t, err)
	require.NoError(t, engine.StartGame(ctx, host, created.Code))

	clock.Advance(3 * time.Second)
	clock.Advance(15 * time.Second)
	clock.Advance(5 * time.Second)

	// Players still get final results even though the write failed.
	assert.Len(t, broadcast.ofType(ws.EventMatchEnded), 1)
}
