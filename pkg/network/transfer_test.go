package network

import (
	"bytes"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vkuchat/vkuchat/pkg/protocol"
)

// writeTempFile creates a file of the given size filled with a
// repeating byte pattern, so corruption and truncation both show up
// in a content comparison.
func writeTempFile(t *testing.T, name string, size int) string {
	t.Helper()
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i % 251)
	}
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func waitReceived(t *testing.T, ch <-chan *ReceivedFile) *ReceivedFile {
	t.Helper()
	select {
	case f := <-ch:
		return f
	case <-time.After(5 * time.Second):
		t.Fatal("file never arrived")
		return nil
	}
}

func TestFileTransferSizes(t *testing.T) {
	tests := []struct {
		name   string
		size   int
		chunks int
	}{
		{"empty", 0, 0},
		{"one byte", 1, 1},
		{"exactly one chunk", 1024, 1},
		{"one chunk plus one", 1025, 2},
		{"three chunks ragged", 2050, 3},
		{"at the ceiling", protocol.MaxMessageSize, 1000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, b := pipePair(t)

			received := make(chan *ReceivedFile, 1)
			b.OnFileReceived = func(f *ReceivedFile) { received <- f }
			a.Start()
			b.Start()

			src := writeTempFile(t, "payload.bin", tt.size)
			require.NoError(t, a.SendFile(src))

			f := waitReceived(t, received)
			require.Equal(t, "payload.bin", f.Name)
			require.Equal(t, int64(tt.size), f.Size)
			require.Equal(t, tt.chunks, f.Chunks)

			dst, err := f.SaveTo(t.TempDir())
			require.NoError(t, err)

			want, err := os.ReadFile(src)
			require.NoError(t, err)
			got, err := os.ReadFile(dst)
			require.NoError(t, err)
			require.True(t, bytes.Equal(want, got), "reassembled file differs from the original")

			// Saving consumes the staged copy.
			_, err = os.Stat(f.path)
			require.True(t, os.IsNotExist(err))
		})
	}
}

func TestFileTransferProgress(t *testing.T) {
	a, b := pipePair(t)

	received := make(chan *ReceivedFile, 1)
	b.OnFileReceived = func(f *ReceivedFile) { received <- f }

	var progress []int
	a.OnFileProgress = func(name string, percent int) { progress = append(progress, percent) }
	a.Start()
	b.Start()

	src := writeTempFile(t, "three.bin", 2050)
	require.NoError(t, a.SendFile(src))
	waitReceived(t, received)

	require.Equal(t, []int{33, 66, 100}, progress)
}

func TestFileTooLargeAborts(t *testing.T) {
	a, b := pipePair(t)

	aborted := make(chan string, 1)
	b.OnFileAborted = func(name string) { aborted <- name }
	b.OnFileReceived = func(f *ReceivedFile) { t.Error("oversized transfer must not complete") }
	a.Start()
	b.Start()

	src := writeTempFile(t, "huge.bin", protocol.MaxMessageSize+1)
	require.ErrorIs(t, a.SendFile(src), ErrFileTooLarge)

	require.Equal(t, "huge.bin", recvString(t, aborted))

	// Nothing staged survives the abort.
	b.recvMu.Lock()
	require.Nil(t, b.recv)
	b.recvMu.Unlock()
}

func TestFileOfferAcknowledged(t *testing.T) {
	a, b := pipePair(t)

	offers := make(chan string, 1)
	received := make(chan *ReceivedFile, 1)
	b.OnFileOffer = func(name string) { offers <- name }
	b.OnFileReceived = func(f *ReceivedFile) { received <- f }
	a.Start()
	b.Start()

	src := writeTempFile(t, "notes.txt", 64)
	require.NoError(t, a.SendFile(src))

	require.Equal(t, "notes.txt", recvString(t, offers))
	waitReceived(t, received)
}

// Binary frames outside a transfer are protocol noise and must be
// discarded without touching session state.
func TestStrayChunkDiscarded(t *testing.T) {
	c1, c2 := net.Pipe()
	s := newSession(c1, "alice", "bob", 4001)
	t.Cleanup(func() {
		c2.Close()
		s.Close()
	})

	texts := make(chan string, 1)
	s.OnText = func(body string) { texts <- body }
	s.Start()

	go func() {
		protocol.WriteFrame(c2, protocol.BinaryFrame([]byte("stray bytes")))
		protocol.WriteFrame(c2, protocol.TextFrame(protocol.ChatText{Body: "still alive"}))
	}()

	require.Equal(t, "still alive", recvString(t, texts))
}

// The offered name is flattened to its base so a peer cannot steer
// the staged write outside the staging directory.
func TestFileNameTraversalStripped(t *testing.T) {
	a, b := pipePair(t)

	offers := make(chan string, 1)
	b.OnFileOffer = func(name string) { offers <- name }
	a.Start()
	b.Start()

	require.NoError(t, a.write(protocol.TextFrame(protocol.FileRequest{Name: "../../etc/passwd"})))
	require.Equal(t, "passwd", recvString(t, offers))
}

func TestSendFileBusy(t *testing.T) {
	a, b := pipePair(t)
	a.Start()
	b.Start()

	a.sendMu.Lock()
	a.sending = true
	a.sendMu.Unlock()

	src := writeTempFile(t, "busy.bin", 8)
	require.ErrorIs(t, a.SendFile(src), ErrTransferBusy)
}

func TestDiscardRemovesStagedFile(t *testing.T) {
	a, b := pipePair(t)

	received := make(chan *ReceivedFile, 1)
	b.OnFileReceived = func(f *ReceivedFile) { received <- f }
	a.Start()
	b.Start()

	src := writeTempFile(t, "drop.bin", 100)
	require.NoError(t, a.SendFile(src))

	f := waitReceived(t, received)
	require.NoError(t, f.Discard())

	_, err := os.Stat(f.path)
	require.True(t, os.IsNotExist(err))
}

// Session teardown deletes anything still staged.
func TestCleanupRemovesStagingDir(t *testing.T) {
	a, b := pipePair(t)

	received := make(chan *ReceivedFile, 1)
	b.OnFileReceived = func(f *ReceivedFile) { received <- f }
	a.Start()
	b.Start()

	src := writeTempFile(t, "linger.bin", 100)
	require.NoError(t, a.SendFile(src))
	f := waitReceived(t, received)

	b.recvMu.Lock()
	staging := b.staging
	b.recvMu.Unlock()
	require.NotEmpty(t, staging)

	a.Close()
	select {
	case <-b.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("session never terminated")
	}

	_, err := os.Stat(f.path)
	require.True(t, os.IsNotExist(err))
	_, err = os.Stat(staging)
	require.True(t, os.IsNotExist(err))
}
