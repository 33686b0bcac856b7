package chunking

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitFitsWithinLimitReturnsSingleChunk(t *testing.T) {
	chunks := Split("short content", Policy{MaxContentLength: 800, AutoSplit: true, OverlapChars: 50})
	assert.Len(t, chunks, 1)
	assert.Equal(t, 1, chunks[0].Total)
}

func TestSplitUnlimitedNeverSplits(t *testing.T) {
	long := strings.Repeat("word ", 1000)
	chunks := Split(long, Policy{MaxContentLength: 0, AutoSplit: true})
	assert.Len(t, chunks, 1)
}

func TestSplitLongContentProducesMultipleChunks(t *testing.T) {
	long := strings.Repeat("abcdefghij ", 200) // 2200 chars
	chunks := Split(long, Policy{MaxContentLength: 800, AutoSplit: true, OverlapChars: 50})
	assert.Greater(t, len(chunks), 1)
	for i, c := range chunks {
		assert.Equal(t, i+1, c.Index)
		assert.Equal(t, len(chunks), c.Total)
		assert.Equal(t, len(long), c.OriginalLength)
	}
}

func TestSplitCarriesOverlapBetweenChunks(t *testing.T) {
	long := strings.Repeat("x", 2000)
	chunks := Split(long, Policy{MaxContentLength: 800, AutoSplit: true, OverlapChars: 50})
	if len(chunks) < 2 {
		t.Fatal("expected at least two chunks")
	}
	tail := chunks[0].Content[len(chunks[0].Content)-50:]
	assert.True(t, strings.HasPrefix(chunks[1].Content, tail))
}

func TestSplitPrefersParagraphBoundary(t *testing.T) {
	para := strings.Repeat("a", 700) + "\n\n" + strings.Repeat("b", 700)
	chunks := Split(para, Policy{MaxContentLength: 750, AutoSplit: true, OverlapChars: 0})
	assert.True(t, strings.HasSuffix(strings.TrimRight(chunks[0].Content, "\n"), strings.Repeat("a", 700)))
}
