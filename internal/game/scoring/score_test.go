package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScoreWrongAnswer(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, -100, cfg.Score(false, 0))
	assert.Equal(t, -100, cfg.Score(false, 1200))
	assert.Equal(t, -100, cfg.Score(false, 60000))
}

func TestScoreCorrectAnswer(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		name           string
		responseTimeMs int64
		want           int
	}{
		{"instant answer gets full bonus", 0, 200},
		{"sub-500ms rounds down to the 1s floor", 400, 200},
		{"500ms rounds up to 1s", 500, 200},
		{"1499ms rounds to 1s", 1499, 200},
		{"1500ms rounds to 2s", 1500, 150},
		{"2500ms rounds to 3s, bonus floors", 2500, 133},
		{"10s answer", 10000, 110},
		{"very slow answer keeps base score", 200000, 100},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, cfg.Score(true, tc.responseTimeMs))
		})
	}
}

func TestScoreCustomConfig(t *testing.T) {
	cfg := Config{BaseScore: 50, Penalty: -10, BonusPool: 200}

	assert.Equal(t, -10, cfg.Score(false, 100))
	assert.Equal(t, 250, cfg.Score(true, 0))
	assert.Equal(t, 150, cfg.Score(true, 2000))
}
