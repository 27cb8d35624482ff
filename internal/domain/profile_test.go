package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStatusTransitions(t *testing.T) {
	all := []Status{StatusActive, StatusInactive, StatusSuspended, StatusDeleted}

	for _, next := range all {
		// active is the only state with outgoing edges, and never to itself
		require.Equal(t, next != StatusActive, StatusActive.CanTransitionTo(next),
			"active -> %s", next)
	}

	for _, from := range []Status{StatusInactive, StatusSuspended, StatusDeleted} {
		for _, next := range all {
			require.False(t, from.CanTransitionTo(next), "%s -> %s", from, next)
		}
	}
}

func TestValidRole(t *testing.T) {
	require.True(t, ValidRole(RoleAdmin))
	require.True(t, ValidRole(RoleDoctor))
	require.True(t, ValidRole(RolePatient))
	require.False(t, ValidRole(Role("superuser")))
	require.False(t, ValidRole(Role("")))
}

func TestValidStatus(t *testing.T) {
	for _, s := range []Status{StatusActive, StatusInactive, StatusSuspended, StatusDeleted} {
		require.True(t, ValidStatus(s))
	}
	require.False(t, ValidStatus(Status("archived")))
	require.False(t, ValidStatus(Status("")))
}
