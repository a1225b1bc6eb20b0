package network

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vkuchat/vkuchat/pkg/protocol"
)

func TestRegistryReplaceDiff(t *testing.T) {
	r := NewRegistry("alice")

	var added, removed []string
	r.OnUpdate = func(a, rm []string) {
		added, removed = a, rm
	}

	r.Replace([]protocol.Peer{
		{Name: "alice", Host: "10.0.0.1", Port: 4001},
		{Name: "bob", Host: "10.0.0.2", Port: 4002},
	})
	require.Equal(t, []string{"bob"}, added)
	require.Empty(t, removed)

	r.Replace([]protocol.Peer{
		{Name: "alice", Host: "10.0.0.1", Port: 4001},
		{Name: "carol", Host: "10.0.0.3", Port: 4003},
	})
	require.Equal(t, []string{"carol"}, added)
	require.Equal(t, []string{"bob"}, removed)
}

// The local user's own name never shows up in a diff, even on the
// first roster that introduces it.
func TestRegistrySelfExcludedFromDiff(t *testing.T) {
	r := NewRegistry("alice")

	calls := 0
	r.OnUpdate = func(a, rm []string) {
		calls++
		require.NotContains(t, a, "alice")
		require.NotContains(t, rm, "alice")
	}

	r.Replace([]protocol.Peer{{Name: "alice", Host: "10.0.0.1", Port: 4001}})
	require.Zero(t, calls, "a roster containing only the local user is not a membership change")

	r.Replace(nil)
	require.Zero(t, calls)
}

func TestRegistryFriendsAndLookup(t *testing.T) {
	r := NewRegistry("alice")
	r.Replace([]protocol.Peer{
		{Name: "bob", Host: "10.0.0.2", Port: 4002},
		{Name: "alice", Host: "10.0.0.1", Port: 4001},
		{Name: "carol", Host: "10.0.0.3", Port: 4003},
	})

	friends := r.Friends()
	require.Len(t, friends, 2)
	require.Equal(t, "bob", friends[0].Name)
	require.Equal(t, "carol", friends[1].Name)

	p, ok := r.Lookup("carol")
	require.True(t, ok)
	require.Equal(t, 4003, p.Port)

	_, ok = r.Lookup("ghost")
	require.False(t, ok)

	require.Len(t, r.Snapshot(), 3)
}
