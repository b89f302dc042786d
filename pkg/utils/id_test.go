package utils

import (
	"encoding/hex"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateIDShapeAndUniqueness(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 200; i++ {
		id := GenerateID()
		require.Len(t, id, 24)
		_, err := hex.DecodeString(id)
		require.NoError(t, err)
		_, dup := seen[id]
		require.False(t, dup, "duplicate id %s", id)
		seen[id] = struct{}{}
	}
}

func TestGetTimeFromIDRoundTrip(t *testing.T) {
	before := time.Now().Truncate(time.Second)
	ts, err := GetTimeFromID(GenerateID())
	require.NoError(t, err)
	assert.False(t, ts.Before(before))
	assert.False(t, ts.After(time.Now().Add(time.Second)))
}

func TestGetTimeFromIDRejectsForeignIDs(t *testing.T) {
	_, err := GetTimeFromID("m1")
	assert.Error(t, err)
	_, err = GetTimeFromID("not-hex-id")
	assert.Error(t, err)
}
