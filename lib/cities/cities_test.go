package cities

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValid(t *testing.T) {
	require.True(t, Valid("sydney"))
	require.True(t, Valid(" Perth\n"))
	require.False(t, Valid("auckland"))
	require.False(t, Valid(""))
}

func TestClosest(t *testing.T) {
	suggestion, ok := Closest("sydny")
	require.True(t, ok)
	require.Equal(t, "sydney", suggestion)

	suggestion, ok = Closest("brisbne")
	require.True(t, ok)
	require.Equal(t, "brisbane", suggestion)

	_, ok = Closest("wellington")
	require.False(t, ok)
}

func TestDisplay(t *testing.T) {
	require.Equal(t, "Melbourne", Display("melbourne"))
	require.Equal(t, "Sydney", Display(" SYDNEY "))
	require.Equal(t, "", Display(""))
}
