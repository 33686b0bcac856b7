package quality

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScoreEmptyContentIsZero(t *testing.T) {
	h := NewHeuristic()
	assert.Equal(t, 0.0, h.Score(""))
}

func TestScoreIsBoundedToUnitInterval(t *testing.T) {
	h := NewHeuristic()
	s := h.Score(strings.Repeat("detailed technical content with structure\n", 100))
	assert.GreaterOrEqual(t, s, 0.0)
	assert.LessOrEqual(t, s, 1.0)
}

func TestScorePenalizesVagueShortReplies(t *testing.T) {
	h := NewHeuristic()
	vague := h.Score("ok")
	substantive := h.Score("Switched the retry backoff from fixed delay to exponential with jitter to avoid thundering herd on reconnect.")
	assert.Less(t, vague, substantive)
}

func TestScoreRewardsStructuredContent(t *testing.T) {
	h := NewHeuristic()
	plain := h.Score(strings.Repeat("a", 200))
	structured := h.Score("# Notes\n" + strings.Repeat("a", 200) + "\n```go\nfunc main() {}\n```")
	assert.Greater(t, structured, plain)
}

func TestHybridRoutesStackTracesToFallback(t *testing.T) {
	hybrid := NewHybrid(NewHeuristic())
	trace := "Traceback (most recent call last):\n  File \"app.py\", line 10\nValueError: bad input"
	s := hybrid.Score(trace)
	assert.GreaterOrEqual(t, s, 0.0)
	assert.LessOrEqual(t, s, 1.0)
}
