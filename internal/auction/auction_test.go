package auction

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewID(t *testing.T) {
	id, err := NewID(nil)
	require.NoError(t, err)
	require.Len(t, id, IDLength)
	require.NotContains(t, id, "-")
}

func TestNewID_RetriesOnCollision(t *testing.T) {
	collisions := 0
	id, err := NewID(func(string) bool {
		collisions++
		return collisions <= 2
	})
	require.NoError(t, err)
	require.Len(t, id, IDLength)
	require.Equal(t, 3, collisions)
}

func TestNewID_Exhausted(t *testing.T) {
	_, err := NewID(func(string) bool { return true })
	require.ErrorIs(t, err, ErrIDExhausted)
}

func TestParseTime(t *testing.T) {
	ts, err := ParseTime("2026-08-31 14:30:00")
	require.NoError(t, err)
	require.Equal(t, "2026-08-31 14:30:00", FormatTime(ts))

	_, err = ParseTime("31/08/2026")
	require.Error(t, err)
}
