package cloudstore

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/shaneholloman/mcp-memory-service-sub001/internal/memory"
	"github.com/shaneholloman/mcp-memory-service-sub001/internal/storage"
)

func TestTagsMatchAnyByDefault(t *testing.T) {
	assert.True(t, tagsMatch([]string{"go", "testing"}, []string{"testing", "rust"}, false))
	assert.False(t, tagsMatch([]string{"go"}, []string{"rust"}, false))
}

func TestTagsMatchAllRequiresEveryTag(t *testing.T) {
	assert.True(t, tagsMatch([]string{"go", "testing", "unit"}, []string{"go", "testing"}, true))
	assert.False(t, tagsMatch([]string{"go"}, []string{"go", "testing"}, true))
}

func TestTagsMatchEmptyWantMatchesAnything(t *testing.T) {
	assert.True(t, tagsMatch([]string{"go"}, nil, false))
}

func TestFilterMemoriesAppliesTypeTagsAndTimeWindow(t *testing.T) {
	all := []*memory.Memory{
		{ContentHash: "a", Type: "note", Tags: []string{"x"}, CreatedAt: 100},
		{ContentHash: "b", Type: "fix", Tags: []string{"y"}, CreatedAt: 200},
		{ContentHash: "c", Type: "note", Tags: []string{"x"}, CreatedAt: 300},
	}
	filtered := filterMemories(all, storage.Filter{MemoryType: "note", TimeStart: 50, TimeEnd: 250})
	assert.Len(t, filtered, 1)
	assert.Equal(t, "a", filtered[0].ContentHash)
}

func TestPaginateClampsOffsetAndLimit(t *testing.T) {
	all := []*memory.Memory{{ContentHash: "a"}, {ContentHash: "b"}, {ContentHash: "c"}}
	assert.Len(t, paginate(all, 1, 1), 1)
	assert.Nil(t, paginate(all, 10, 1))
	assert.Len(t, paginate(all, 0, 0), 3)
}
