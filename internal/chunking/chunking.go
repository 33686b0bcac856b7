// Package chunking implements the content-length auto-split policy: content
// exceeding a backend's max length is cut at the highest-priority boundary
// that still fits, with trailing-context overlap carried into the next piece.
package chunking

import (
	"regexp"
	"strings"
)

// Overlap is the number of trailing characters from chunk i-1 repeated at
// the start of chunk i, matching every backend's configured overlap.
const Overlap = 50

var sentenceEnd = regexp.MustCompile(`[.!?] `)

// Policy describes one backend's content-length limit and chunking behavior.
type Policy struct {
	MaxContentLength int // 0 means unlimited
	AutoSplit        bool
	OverlapChars     int
}

// Chunk is one piece of a split memory, carrying metadata callers need to
// reassemble or identify it (is_chunk, chunk_index, total_chunks,
// original_length).
type Chunk struct {
	Content        string
	Index          int // 1-based
	Total          int
	OriginalLength int
}

// Split divides content per the policy. When content fits within the limit
// (or the limit is unlimited/disabled), it returns a single chunk with
// Total == 1 and no chunk metadata should be attached by the caller.
func Split(content string, p Policy) []Chunk {
	originalLen := len(content)
	if p.MaxContentLength <= 0 || !p.AutoSplit || originalLen <= p.MaxContentLength {
		return []Chunk{{Content: content, Index: 1, Total: 1, OriginalLength: originalLen}}
	}

	overlap := p.OverlapChars
	if overlap < 0 {
		overlap = 0
	}

	var pieces []string
	remaining := content
	for len(remaining) > p.MaxContentLength {
		cut := boundaryCut(remaining, p.MaxContentLength)
		pieces = append(pieces, remaining[:cut])
		next := remaining[cut:]
		remaining = carryOverlap(pieces[len(pieces)-1], next, overlap)
	}
	if remaining != "" {
		pieces = append(pieces, remaining)
	}

	chunks := make([]Chunk, len(pieces))
	for i, piece := range pieces {
		chunks[i] = Chunk{
			Content:        piece,
			Index:          i + 1,
			Total:          len(pieces),
			OriginalLength: originalLen,
		}
	}
	return chunks
}

// boundaryCut finds the best split point at or before limit, preferring in
// priority order: double newline, single newline, sentence end, whitespace,
// then a hard character cut as the last resort.
func boundaryCut(s string, limit int) int {
	window := s[:limit]

	if idx := strings.LastIndex(window, "\n\n"); idx > 0 {
		return idx + 2
	}
	if idx := strings.LastIndex(window, "\n"); idx > 0 {
		return idx + 1
	}
	if loc := lastMatch(sentenceEnd, window); loc > 0 {
		return loc
	}
	if idx := strings.LastIndexAny(window, " \t"); idx > 0 {
		return idx + 1
	}
	return limit
}

func lastMatch(re *regexp.Regexp, s string) int {
	matches := re.FindAllStringIndex(s, -1)
	if len(matches) == 0 {
		return -1
	}
	last := matches[len(matches)-1]
	return last[1]
}

// carryOverlap prepends the last `overlap` characters of the just-emitted
// chunk onto the remaining text, so the next chunk keeps trailing context.
func carryOverlap(emitted, remaining string, overlap int) string {
	if overlap == 0 || len(emitted) == 0 {
		return remaining
	}
	start := len(emitted) - overlap
	if start < 0 {
		start = 0
	}
	return emitted[start:] + remaining
}
