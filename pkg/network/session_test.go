package network

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vkuchat/vkuchat/pkg/protocol"
)

// pipePair wires two started sessions over an in-memory connection.
func pipePair(t *testing.T) (*Session, *Session) {
	t.Helper()
	c1, c2 := net.Pipe()
	a := newSession(c1, "alice", "bob", 4001)
	b := newSession(c2, "bob", "alice", 4002)
	t.Cleanup(func() {
		a.Close()
		b.Close()
	})
	return a, b
}

func recvString(t *testing.T, ch <-chan string) string {
	t.Helper()
	select {
	case s := <-ch:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for callback")
		return ""
	}
}

func TestSessionTextBothDirections(t *testing.T) {
	a, b := pipePair(t)

	fromA := make(chan string, 1)
	fromB := make(chan string, 1)
	a.OnText = func(body string) { fromB <- body }
	b.OnText = func(body string) { fromA <- body }
	a.Start()
	b.Start()

	require.NoError(t, a.SendText("hello bob"))
	require.Equal(t, "hello bob", recvString(t, fromA))

	require.NoError(t, b.SendText("hello alice"))
	require.Equal(t, "hello alice", recvString(t, fromB))
}

func TestSessionControlMessages(t *testing.T) {
	a, b := pipePair(t)

	type edit struct{ oldText, newText string }
	edits := make(chan edit, 1)
	deletes := make(chan string, 1)
	typings := make(chan bool, 2)
	reactions := make(chan [2]string, 1)
	clears := make(chan struct{}, 1)

	b.OnEdit = func(o, n string) { edits <- edit{o, n} }
	b.OnDelete = func(body string) { deletes <- body }
	b.OnTyping = func(on bool) { typings <- on }
	b.OnReaction = func(target, emoji string) { reactions <- [2]string{target, emoji} }
	b.OnClear = func() { clears <- struct{}{} }
	a.Start()
	b.Start()

	require.NoError(t, a.SendEdit("helo", "hello"))
	require.Equal(t, edit{"helo", "hello"}, <-edits)

	require.NoError(t, a.SendDelete("hello"))
	require.Equal(t, "hello", <-deletes)

	require.NoError(t, a.SendTyping(true))
	require.True(t, <-typings)
	require.NoError(t, a.SendTyping(false))
	require.False(t, <-typings)

	require.NoError(t, a.SendReaction("hello", "👍"))
	require.Equal(t, [2]string{"hello", "👍"}, <-reactions)

	require.NoError(t, a.SendClear())
	select {
	case <-clears:
	case <-time.After(2 * time.Second):
		t.Fatal("clear never delivered")
	}
}

func TestSessionCloseNotifiesPeer(t *testing.T) {
	a, b := pipePair(t)

	closed := make(chan error, 1)
	b.OnClosed = func(err error) { closed <- err }
	a.Start()
	b.Start()

	require.NoError(t, a.Close())

	select {
	case err := <-closed:
		require.NoError(t, err, "an announced close is a clean end")
	case <-time.After(2 * time.Second):
		t.Fatal("peer never observed the close")
	}

	select {
	case <-b.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("session never terminated")
	}
}

// An unannounced hangup (socket drop without CHAT_CLOSE) still ends
// the peer's session cleanly.
func TestSessionRemoteHangup(t *testing.T) {
	a, b := pipePair(t)

	closed := make(chan error, 1)
	b.OnClosed = func(err error) { closed <- err }
	a.Start()
	b.Start()

	a.conn.Close()

	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("peer never observed the hangup")
	}
}

func TestDialHandshakeAccept(t *testing.T) {
	l, err := ListenChat(0, "bob")
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })

	sessions := make(chan *Session, 1)
	texts := make(chan string, 1)
	l.OnSession = func(s *Session) {
		s.OnText = func(body string) { texts <- body }
		sessions <- s
	}
	l.Start()

	peer := protocol.Peer{Name: "bob", Host: "127.0.0.1", Port: l.Port()}
	s, err := Dial(peer, "alice", 4001)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	s.Start()

	require.Equal(t, "bob", s.RemoteName)

	inbound := <-sessions
	require.Equal(t, "alice", inbound.RemoteName)
	require.Equal(t, "bob", inbound.LocalName)

	require.NoError(t, s.SendText("hi"))
	require.Equal(t, "hi", recvString(t, texts))
}

func TestDialHandshakeDeny(t *testing.T) {
	l, err := ListenChat(0, "bob")
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })

	l.OnRequest = func(peerName string) bool { return false }
	l.Start()

	peer := protocol.Peer{Name: "bob", Host: "127.0.0.1", Port: l.Port()}
	_, err = Dial(peer, "alice", 4001)
	require.ErrorIs(t, err, ErrChatDenied)
}

func TestListenChatPicksPortInRange(t *testing.T) {
	l, err := ListenChat(0, "alice")
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })

	require.GreaterOrEqual(t, l.Port(), protocol.ClientPortBase)
	require.Less(t, l.Port(), protocol.ClientPortBase+protocol.ClientPortSpan)
}
