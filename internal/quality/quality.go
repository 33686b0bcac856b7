// Package quality scores memory content on a [0,1] scale from length,
// structure and vague-language signals in the text.
package quality

import (
	"regexp"
	"strings"
)

// Scorer produces a quality score in [0, 1] from content alone. Scoring
// never consults retrieval similarity, so a memory cannot boost its own
// score by matching itself.
type Scorer interface {
	Score(content string) float64
}

// Heuristic scores content on length, structure, and specificity signals.
type Heuristic struct {
	structurePatterns []*regexp.Regexp
	vaguePatterns     []*regexp.Regexp
}

// NewHeuristic builds the default content-quality scorer.
func NewHeuristic() *Heuristic {
	return &Heuristic{
		structurePatterns: []*regexp.Regexp{
			regexp.MustCompile("(?i)```"),
			regexp.MustCompile(`(?i)^#+\s`),
			regexp.MustCompile(`(?i)^[-*]\s`),
			regexp.MustCompile(`(?i)(function|class|def |import |package )`),
		},
		vaguePatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)^(ok|okay|thanks|got it|sure|yes|no)\W*$`),
			regexp.MustCompile(`(?i)\b(something|stuff|whatever|etc\.?)\b`),
		},
	}
}

// Score implements Scorer.
func (h *Heuristic) Score(content string) float64 {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return 0
	}

	score := 0.3 // baseline: non-empty content has some value
	score += lengthSignal(trimmed)
	score += h.structureSignal(trimmed)
	score -= h.vagueSignal(trimmed)

	return clamp(score)
}

func lengthSignal(content string) float64 {
	n := len(content)
	switch {
	case n < 20:
		return -0.2
	case n < 100:
		return 0.1
	case n < 2000:
		return 0.3
	default:
		return 0.2 // very long content is diminishingly more valuable
	}
}

func (h *Heuristic) structureSignal(content string) float64 {
	hits := 0
	for _, re := range h.structurePatterns {
		if re.MatchString(content) {
			hits++
		}
	}
	if hits == 0 {
		return 0
	}
	return 0.1 + 0.05*float64(hits-1)
}

func (h *Heuristic) vagueSignal(content string) float64 {
	for _, re := range h.vaguePatterns {
		if re.MatchString(content) {
			return 0.3
		}
	}
	return 0
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// codeFencePattern and stackTracePattern identify technical content that
// confuses the primary heuristic (too much structure noise, too little
// prose), so it routes through a separate, simpler scorer (the
// fallback hybrid scorer).
var (
	codeFencePattern  = regexp.MustCompile("```[\\s\\S]*```")
	stackTracePattern = regexp.MustCompile(`(?i)(traceback|at \S+\.\S+\([^)]*\)|\.go:\d+|File "[^"]+", line \d+)`)
)

// Hybrid falls back to length-only scoring for code/stack-trace-heavy
// content, where the primary heuristic's vague-language detector produces
// false positives on legitimate technical shorthand.
type Hybrid struct {
	primary *Heuristic
}

// NewHybrid wraps a Heuristic with the code/stack-trace fallback.
func NewHybrid(primary *Heuristic) *Hybrid {
	return &Hybrid{primary: primary}
}

// Score implements Scorer.
func (h *Hybrid) Score(content string) float64 {
	if codeFencePattern.MatchString(content) || stackTracePattern.MatchString(content) {
		return clamp(0.3 + lengthSignal(strings.TrimSpace(content)))
	}
	return h.primary.Score(content)
}
