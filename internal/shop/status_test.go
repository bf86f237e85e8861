package shop

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		{StatusNew, StatusAccepted, true},
		{StatusNew, StatusDeclined, true},
		{StatusNew, StatusCancelled, true},
		{StatusNew, StatusNew, false},
		{StatusAccepted, StatusDeclined, false},
		{StatusAccepted, StatusNew, false},
		{StatusDeclined, StatusAccepted, false},
		{StatusCancelled, StatusNew, false},
		{Status("bogus"), StatusAccepted, false},
	}
	for _, c := range cases {
		require.Equal(t, c.want, CanTransition(c.from, c.to), "%s -> %s", c.from, c.to)
	}
}

func TestTerminal(t *testing.T) {
	require.False(t, StatusNew.Terminal())
	require.True(t, StatusAccepted.Terminal())
	require.True(t, StatusDeclined.Terminal())
	require.True(t, StatusCancelled.Terminal())
	require.False(t, Status("bogus").Terminal())
}

func TestValid(t *testing.T) {
	require.True(t, StatusNew.Valid())
	require.True(t, StatusCancelled.Valid())
	require.False(t, Status("paid").Valid())
}
