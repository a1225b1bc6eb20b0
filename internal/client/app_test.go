package client

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		line string
		verb string
		rest string
	}{
		{"/peers", "peers", ""},
		{"/chat bob", "chat", "bob"},
		{"/edit old text | new text", "edit", "old text | new text"},
		{"/sendfile /tmp/notes.txt", "sendfile", "/tmp/notes.txt"},
		{"hello there", "", "hello there"},
		{"not /a command", "", "not /a command"},
	}

	for _, tt := range tests {
		verb, rest := parseCommand(tt.line)
		require.Equal(t, tt.verb, verb, "line %q", tt.line)
		require.Equal(t, tt.rest, rest, "line %q", tt.line)
	}
}

func TestSplitPair(t *testing.T) {
	left, right, ok := splitPair("old text | new text")
	require.True(t, ok)
	require.Equal(t, "old text", left)
	require.Equal(t, "new text", right)

	_, _, ok = splitPair("no separator")
	require.False(t, ok)

	_, _, ok = splitPair(" | right only")
	require.False(t, ok)
}

func TestConversationKeyIsOrderIndependent(t *testing.T) {
	require.Equal(t, "alice|bob", conversationKey("alice", "bob"))
	require.Equal(t, "alice|bob", conversationKey("bob", "alice"))
}

func TestNewAppRequiresName(t *testing.T) {
	_, err := newApp("127.0.0.1:3939", "", t.TempDir())
	require.Error(t, err)
}
