package network

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vkuchat/vkuchat/pkg/directory"
)

func startDirectory(t *testing.T) *directory.Server {
	t.Helper()
	s := directory.NewServer(0)
	require.NoError(t, s.Start())
	t.Cleanup(func() { s.Stop() })
	return s
}

func TestClientRegisterAndRefresh(t *testing.T) {
	s := startDirectory(t)
	addr := s.Addr().String()

	alice := NewDirectoryClient(addr, "alice", 4001)
	require.NoError(t, alice.Register())
	require.Len(t, alice.Registry().Snapshot(), 1)

	bob := NewDirectoryClient(addr, "bob", 4002)
	require.NoError(t, bob.Register())

	// Bob's first roster already contains alice.
	require.Len(t, bob.Registry().Friends(), 1)
	require.Equal(t, "alice", bob.Registry().Friends()[0].Name)

	// Alice learns about bob on her next refresh.
	require.NoError(t, alice.refresh())
	p, ok := alice.Registry().Lookup("bob")
	require.True(t, ok)
	require.Equal(t, 4002, p.Port)

	// Bob signs off; the next refresh drops him from alice's view.
	require.NoError(t, bob.Exit())
	require.NoError(t, alice.refresh())
	_, ok = alice.Registry().Lookup("bob")
	require.False(t, ok)
}

func TestClientRegisterNameRejected(t *testing.T) {
	s := startDirectory(t)
	addr := s.Addr().String()

	first := NewDirectoryClient(addr, "alice", 4001)
	require.NoError(t, first.Register())

	second := NewDirectoryClient(addr, "alice", 5001)
	require.ErrorIs(t, second.Register(), ErrNameRejected)
}

// The refresh loop keeps the registry current without any further
// calls from the owner.
func TestClientRunLoop(t *testing.T) {
	s := startDirectory(t)
	addr := s.Addr().String()

	alice := NewDirectoryClient(addr, "alice", 4001)
	alice.interval = 20 * time.Millisecond
	require.NoError(t, alice.Register())

	joined := make(chan string, 4)
	alice.Registry().OnUpdate = func(added, removed []string) {
		for _, name := range added {
			joined <- name
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go alice.Run(ctx)

	bob := NewDirectoryClient(addr, "bob", 4002)
	require.NoError(t, bob.Register())

	select {
	case name := <-joined:
		require.Equal(t, "bob", name)
	case <-time.After(2 * time.Second):
		t.Fatal("refresh loop never picked up the new peer")
	}
}

// A refresh failure is survivable: the loop logs and keeps ticking.
func TestClientRefreshFailureDoesNotStopLoop(t *testing.T) {
	s := startDirectory(t)
	addr := s.Addr().String()

	alice := NewDirectoryClient(addr, "alice", 4001)
	require.NoError(t, alice.Register())

	// Point the client at a dead address and make sure refresh
	// reports rather than panics.
	alice.serverAddr = "127.0.0.1:1"
	require.Error(t, alice.refresh())

	// The registry keeps its last good snapshot.
	require.Len(t, alice.Registry().Snapshot(), 1)
}
