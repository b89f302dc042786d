package thoughtlog

import (
	"bufio"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendWritesNDJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "thoughts.ndjson")
	l := New(path)

	require.NoError(t, l.Append("thinking", "first thought", map[string]any{"contextId": "group:777"}))
	require.NoError(t, l.Append("thinking", "second thought", nil))
	require.NoError(t, l.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var records []Record
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var r Record
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &r))
		records = append(records, r)
	}
	require.NoError(t, scanner.Err())

	require.Len(t, records, 2)
	assert.Equal(t, "first thought", records[0].Content)
	assert.Equal(t, "group:777", records[0].Metadata["contextId"])
	assert.Equal(t, "thinking", records[1].MemoryType)
	assert.False(t, records[1].RecordedAt.IsZero())
}

func TestCloseWithoutAppend(t *testing.T) {
	l := New(filepath.Join(t.TempDir(), "never.ndjson"))
	assert.NoError(t, l.Close())
}
