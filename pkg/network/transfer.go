package network

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/vkuchat/vkuchat/pkg/protocol"
)

// ackTimeout bounds how long a sender waits for the receiver's
// FILE_REQ_ACK before giving up on the offer.
const ackTimeout = 30 * time.Second

var (
	// ErrFileTooLarge reports that the file exceeds the transfer size
	// ceiling. The receiver sees the transfer close with zero chunks.
	ErrFileTooLarge = errors.New("file exceeds maximum transfer size")

	// ErrTransferBusy reports that another outbound transfer is still
	// running on this session.
	ErrTransferBusy = errors.New("another file transfer is in progress")

	// ErrAckTimeout reports that the receiver never acknowledged the
	// file offer.
	ErrAckTimeout = errors.New("timed out waiting for transfer acknowledgment")

	// ErrSessionClosed reports that the session ended mid-operation.
	ErrSessionClosed = errors.New("session closed")
)

// receiveState tracks one inbound transfer between the offer and the
// closing marker.
type receiveState struct {
	name   string
	path   string
	file   *os.File
	chunks int
	active bool
}

// ReceivedFile is a completed inbound transfer staged in a temp
// directory. The caller either saves it to a destination of their
// choosing or discards it; unsaved files are deleted when the session
// ends.
type ReceivedFile struct {
	Name   string
	Size   int64
	Chunks int

	path string
}

// SaveTo copies the staged file into dir under its original name and
// removes the staged copy. Returns the final path.
func (f *ReceivedFile) SaveTo(dir string) (string, error) {
	dst := filepath.Join(dir, f.Name)

	src, err := os.Open(f.path)
	if err != nil {
		return "", fmt.Errorf("open staged file: %w", err)
	}
	defer src.Close()

	out, err := os.Create(dst)
	if err != nil {
		return "", fmt.Errorf("create destination: %w", err)
	}

	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		os.Remove(dst)
		return "", fmt.Errorf("copy staged file: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return "", err
	}

	src.Close()
	os.Remove(f.path)
	return dst, nil
}

// Discard deletes the staged file without saving it.
func (f *ReceivedFile) Discard() error {
	return os.Remove(f.path)
}

// SendFile streams a local file to the peer: offer, wait for the
// acknowledgment, then the begin marker, the chunks and the closing
// marker. Files over the size ceiling are aborted with an immediate
// close so the receiver sees zero chunks.
func (s *Session) SendFile(path string) error {
	s.sendMu.Lock()
	if s.sending {
		s.sendMu.Unlock()
		return ErrTransferBusy
	}
	s.sending = true
	s.sendMu.Unlock()

	defer func() {
		s.sendMu.Lock()
		s.sending = false
		s.sendMu.Unlock()
	}()

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat file: %w", err)
	}
	name := filepath.Base(path)

	// Drop any stale acknowledgment from an earlier transfer.
	select {
	case <-s.ackCh:
	default:
	}

	if err := s.write(protocol.TextFrame(protocol.FileRequest{Name: name})); err != nil {
		return err
	}

	select {
	case <-s.ackCh:
	case <-s.done:
		return ErrSessionClosed
	case <-time.After(ackTimeout):
		return ErrAckTimeout
	}

	size := info.Size()
	totalChunks := int((size + protocol.ChunkSize - 1) / protocol.ChunkSize)

	if totalChunks*protocol.ChunkSize > protocol.MaxMessageSize {
		// Abort before the begin marker: the receiver observes a
		// close with zero chunks and discards the transfer.
		if err := s.write(protocol.TextFrame(protocol.FileClose{})); err != nil {
			return err
		}
		return ErrFileTooLarge
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open file: %w", err)
	}
	defer file.Close()

	if err := s.write(protocol.TextFrame(protocol.FileBegin{})); err != nil {
		return err
	}

	buf := make([]byte, protocol.ChunkSize)
	remaining := size
	for done := 0; done < totalChunks; done++ {
		n := protocol.ChunkSize
		if remaining < int64(n) {
			n = int(remaining)
		}
		if _, err := io.ReadFull(file, buf[:n]); err != nil {
			return fmt.Errorf("read chunk: %w", err)
		}
		if err := s.write(protocol.BinaryFrame(buf[:n])); err != nil {
			return err
		}
		remaining -= int64(n)

		if s.OnFileProgress != nil {
			s.OnFileProgress(name, (done+1)*100/totalChunks)
		}
	}

	return s.write(protocol.TextFrame(protocol.FileClose{}))
}

// handleFileRequest stages an inbound offer and acknowledges it. The
// declared name is flattened to its base so a peer cannot direct the
// write outside the staging directory.
func (s *Session) handleFileRequest(m protocol.FileRequest) {
	name := filepath.Base(m.Name)

	s.recvMu.Lock()
	if s.staging == "" {
		dir := filepath.Join(os.TempDir(), "vkuchat-"+uuid.NewString())
		if err := os.MkdirAll(dir, 0o700); err != nil {
			s.recvMu.Unlock()
			log.Printf("Session with %q: cannot create staging dir: %v", s.RemoteName, err)
			return
		}
		s.staging = dir
	}
	s.recv = &receiveState{
		name: name,
		path: filepath.Join(s.staging, name),
	}
	s.recvMu.Unlock()

	if err := s.write(protocol.TextFrame(protocol.FileAck{Port: s.localPort})); err != nil {
		log.Printf("Session with %q: file ack failed: %v", s.RemoteName, err)
		return
	}

	if s.OnFileOffer != nil {
		s.OnFileOffer(name)
	}
}

// handleFileAck releases a sender blocked on the offer.
func (s *Session) handleFileAck(m protocol.FileAck) {
	select {
	case s.ackCh <- m.Port:
	default:
	}
}

// handleFileBegin opens the staged file for writing, truncating any
// leftover from a previous transfer of the same name.
func (s *Session) handleFileBegin() {
	s.recvMu.Lock()
	defer s.recvMu.Unlock()

	if s.recv == nil {
		log.Printf("Session with %q: begin marker without an offer", s.RemoteName)
		return
	}

	file, err := os.Create(s.recv.path)
	if err != nil {
		log.Printf("Session with %q: cannot stage %q: %v", s.RemoteName, s.recv.name, err)
		s.recv = nil
		return
	}
	s.recv.file = file
	s.recv.chunks = 0
	s.recv.active = true
}

// handleChunk appends one binary payload to the transfer in progress.
// Chunks outside a transfer are discarded.
func (s *Session) handleChunk(payload []byte) {
	s.recvMu.Lock()
	defer s.recvMu.Unlock()

	if s.recv == nil || !s.recv.active {
		return
	}

	if _, err := s.recv.file.Write(payload); err != nil {
		log.Printf("Session with %q: chunk write failed: %v", s.RemoteName, err)
		s.discardReceiveLocked()
		return
	}
	s.recv.chunks++
}

// handleFileClose finalizes the transfer. A close without a preceding
// begin marker is a sender-side abort: discard the staged entry.
func (s *Session) handleFileClose() {
	s.recvMu.Lock()
	if s.recv == nil {
		s.recvMu.Unlock()
		return
	}

	if !s.recv.active {
		name := s.recv.name
		s.discardReceiveLocked()
		s.recvMu.Unlock()
		if s.OnFileAborted != nil {
			s.OnFileAborted(name)
		}
		return
	}

	state := s.recv
	s.recv = nil
	s.recvMu.Unlock()

	if err := state.file.Close(); err != nil {
		log.Printf("Session with %q: finalize %q failed: %v", s.RemoteName, state.name, err)
		os.Remove(state.path)
		if s.OnFileAborted != nil {
			s.OnFileAborted(state.name)
		}
		return
	}

	info, err := os.Stat(state.path)
	if err != nil {
		log.Printf("Session with %q: stat %q failed: %v", s.RemoteName, state.name, err)
		return
	}

	if s.OnFileReceived != nil {
		s.OnFileReceived(&ReceivedFile{
			Name:   state.name,
			Size:   info.Size(),
			Chunks: state.chunks,
			path:   state.path,
		})
	}
}

// discardReceiveLocked drops the in-flight transfer. Caller holds
// recvMu.
func (s *Session) discardReceiveLocked() {
	if s.recv == nil {
		return
	}
	if s.recv.file != nil {
		s.recv.file.Close()
		os.Remove(s.recv.path)
	}
	s.recv = nil
}

// cleanupReceive removes the in-flight transfer and the staging
// directory; unsaved staged files do not survive the session.
func (s *Session) cleanupReceive() {
	s.recvMu.Lock()
	defer s.recvMu.Unlock()

	s.discardReceiveLocked()
	if s.staging != "" {
		os.RemoveAll(s.staging)
		s.staging = ""
	}
}
