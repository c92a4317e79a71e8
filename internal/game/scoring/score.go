// Package scoring computes per-question score deltas. The formula is the
// contract other services reconcile against, so it must stay bit-exact.
package scoring

// Config holds the scoring constants.
type Config struct {
	BaseScore int // awarded for a correct answer
	Penalty   int // applied to wrong and missing answers
	BonusPool int // divided by the rounded response time in seconds
}

// DefaultConfig returns the production constants.
func DefaultConfig() Config {
	return Config{
		BaseScore: 100,
		Penalty:   -100,
		BonusPool: 100,
	}
}

// Score returns the delta for one player on one question.
//
// Wrong or missing answers score Penalty regardless of timing. Correct answers
// score BaseScore plus a time bonus of floor(BonusPool / seconds), where
// seconds is the response time rounded half-up to whole seconds and floored at
// 1 to avoid division by zero. A sub-500ms answer therefore earns the full
// bonus; there is no explicit cap beyond that floor.
func (c Config) Score(isCorrect bool, responseTimeMs int64) int {
	if !isCorrect {
		return c.Penalty
	}

	seconds := (responseTimeMs + 500) / 1000
	if seconds < 1 {
		seconds = 1
	}
	return c.BaseScore + int(int64(c.BonusPool)/seconds)
}
