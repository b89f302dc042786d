package history

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entry(id, content string) Entry {
	return Entry{MessageID: id, SenderID: "u1", SenderName: "alice", Content: content, Role: "user"}
}

func TestAppendAndRecentOrder(t *testing.T) {
	s := NewStore(10)
	s.Append("group:1", entry("m1", "first"), entry("m2", "second"))
	s.Append("group:1", entry("m3", "third"))

	got := s.Recent("group:1", 10)
	require.Len(t, got, 3)
	assert.Equal(t, "first", got[0].Content)
	assert.Equal(t, "third", got[2].Content)
}

func TestRingEvictsOldest(t *testing.T) {
	s := NewStore(5)
	for i := 0; i < 8; i++ {
		s.Append("group:1", entry(fmt.Sprintf("m%d", i), fmt.Sprintf("msg %d", i)))
	}

	assert.Equal(t, 5, s.Size("group:1"))
	got := s.Recent("group:1", 0)
	require.Len(t, got, 5)
	assert.Equal(t, "msg 3", got[0].Content)
	assert.Equal(t, "msg 7", got[4].Content)
}

func TestRecentLimitsToN(t *testing.T) {
	s := NewStore(10)
	for i := 0; i < 6; i++ {
		s.Append("group:1", entry(fmt.Sprintf("m%d", i), fmt.Sprintf("msg %d", i)))
	}

	got := s.Recent("group:1", 2)
	require.Len(t, got, 2)
	assert.Equal(t, "msg 4", got[0].Content)
	assert.Equal(t, "msg 5", got[1].Content)
}

func TestConversationsIsolated(t *testing.T) {
	s := NewStore(10)
	s.Append("group:1", entry("m1", "in group"))
	s.Append("private:9", entry("m2", "in private"))

	assert.Equal(t, 1, s.Size("group:1"))
	assert.Equal(t, 1, s.Size("private:9"))
	assert.Equal(t, "in private", s.Recent("private:9", 1)[0].Content)
}

func TestDrop(t *testing.T) {
	s := NewStore(10)
	s.Append("group:1", entry("m1", "x"))
	s.Drop("group:1")
	assert.Equal(t, 0, s.Size("group:1"))
	assert.Empty(t, s.Recent("group:1", 10))
}

func TestRecentReturnsCopy(t *testing.T) {
	s := NewStore(10)
	s.Append("group:1", entry("m1", "original"))

	got := s.Recent("group:1", 10)
	got[0].Content = "mutated"

	assert.Equal(t, "original", s.Recent("group:1", 10)[0].Content)
}
