package network

import (
	"errors"
	"io"
	"log"
	"net"
	"sync"
	"sync/atomic"

	"github.com/vkuchat/vkuchat/pkg/protocol"
)

// ErrChatDenied reports that the remote peer refused the chat
// request.
var ErrChatDenied = errors.New("chat request denied by peer")

// Session is one duplex chat conversation with a single peer. Exactly
// one goroutine reads the connection for the session's lifetime; all
// writes are serialized through a mutex so text messages and file
// chunks never interleave mid-frame.
//
// Inbound traffic is delivered through the On* callback fields. Wire
// them before calling Start; they are invoked from the reader
// goroutine, one at a time.
type Session struct {
	LocalName  string
	RemoteName string

	conn      net.Conn
	localPort int

	writeMu sync.Mutex
	stopped atomic.Bool
	once    sync.Once
	done    chan struct{}

	// file transfer state, reader-goroutine side
	recvMu  sync.Mutex
	recv    *receiveState
	staging string

	// sender side: one outbound transfer at a time
	sendMu  sync.Mutex
	sending bool
	ackCh   chan int

	OnText     func(body string)
	OnEdit     func(oldText, newText string)
	OnDelete   func(body string)
	OnReaction func(target, emoji string)
	OnTyping   func(on bool)
	OnClear    func()
	OnPeers    func(peers []protocol.Peer)

	OnFileOffer    func(name string)
	OnFileProgress func(name string, percent int)
	OnFileReceived func(f *ReceivedFile)
	OnFileAborted  func(name string)

	// OnClosed fires exactly once when the session ends. A nil error
	// means a clean close (local or remote).
	OnClosed func(err error)
}

func newSession(conn net.Conn, localName, remoteName string, localPort int) *Session {
	return &Session{
		LocalName:  localName,
		RemoteName: remoteName,
		conn:       conn,
		localPort:  localPort,
		done:       make(chan struct{}),
		ackCh:      make(chan int, 1),
	}
}

// Dial opens a chat session with a peer: connect, send the chat
// request, wait for the accept or deny verdict. The returned session
// is not started; wire callbacks, then call Start.
func Dial(peer protocol.Peer, localName string, localPort int) (*Session, error) {
	conn, err := net.Dial("tcp", peer.Addr())
	if err != nil {
		return nil, err
	}

	if err := protocol.WriteFrame(conn, protocol.TextFrame(protocol.ChatRequest{Name: localName})); err != nil {
		conn.Close()
		return nil, err
	}

	frame, err := protocol.ReadFrame(conn)
	if err != nil {
		conn.Close()
		return nil, err
	}

	reply, ok := protocol.Decode(frame.Text())
	if !ok {
		conn.Close()
		return nil, errors.New("unrecognized chat handshake reply")
	}

	switch reply.(type) {
	case protocol.ChatAccept:
		return newSession(conn, localName, peer.Name, localPort), nil
	case protocol.ChatDeny:
		conn.Close()
		return nil, ErrChatDenied
	default:
		conn.Close()
		return nil, errors.New("unexpected chat handshake reply")
	}
}

// Start launches the reader goroutine.
func (s *Session) Start() {
	go s.readLoop()
}

// Done is closed when the session has fully terminated.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Close ends the session from this side: tell the peer, then tear
// down. Safe to call more than once.
func (s *Session) Close() error {
	if s.stopped.CompareAndSwap(false, true) {
		// Best effort; the peer may already be gone.
		s.write(protocol.TextFrame(protocol.ChatClose{}))
	}
	s.finish(nil)
	return nil
}

// SendText sends one chat message.
func (s *Session) SendText(body string) error {
	return s.write(protocol.TextFrame(protocol.ChatText{Body: body}))
}

// SendEdit replaces a previously sent message on the remote side.
func (s *Session) SendEdit(oldText, newText string) error {
	return s.write(protocol.TextFrame(protocol.ChatEdit{OldText: oldText, NewText: newText}))
}

// SendDelete retracts a previously sent message.
func (s *Session) SendDelete(body string) error {
	return s.write(protocol.TextFrame(protocol.ChatDelete{Body: body}))
}

// SendReaction attaches an emoji reaction to a message.
func (s *Session) SendReaction(target, emoji string) error {
	return s.write(protocol.TextFrame(protocol.Reaction{Target: target, Emoji: emoji}))
}

// SendTyping reports whether the local user is typing.
func (s *Session) SendTyping(on bool) error {
	return s.write(protocol.TextFrame(protocol.Typing{On: on}))
}

// SendClear asks the peer to wipe the visible conversation.
func (s *Session) SendClear() error {
	return s.write(protocol.TextFrame(protocol.ChatClear{}))
}

// write serializes a frame onto the connection.
func (s *Session) write(f *protocol.Frame) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return protocol.WriteFrame(s.conn, f)
}

func (s *Session) readLoop() {
	for {
		frame, err := protocol.ReadFrame(s.conn)
		if err != nil {
			// Remote hangup and local teardown are both normal ends.
			if s.stopped.Load() || errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				s.finish(nil)
			} else {
				s.finish(err)
			}
			return
		}

		if frame.Kind == protocol.FrameBinary {
			s.handleChunk(frame.Payload)
			continue
		}

		msg, ok := protocol.Decode(frame.Text())
		if !ok {
			log.Printf("Session with %q: dropping unrecognized message", s.RemoteName)
			continue
		}

		if closed := s.dispatch(msg); closed {
			return
		}
	}
}

// dispatch routes one decoded control message to its handler. Returns
// true when the message ended the session.
func (s *Session) dispatch(msg protocol.Message) bool {
	switch m := msg.(type) {
	case protocol.SessionAccept:
		if s.OnPeers != nil {
			s.OnPeers(m.Peers)
		}
	case protocol.ChatClose:
		s.stopped.Store(true)
		s.finish(nil)
		return true
	case protocol.ChatEdit:
		if s.OnEdit != nil {
			s.OnEdit(m.OldText, m.NewText)
		}
	case protocol.Typing:
		if s.OnTyping != nil {
			s.OnTyping(m.On)
		}
	case protocol.Reaction:
		if s.OnReaction != nil {
			s.OnReaction(m.Target, m.Emoji)
		}
	case protocol.ChatDelete:
		if s.OnDelete != nil {
			s.OnDelete(m.Body)
		}
	case protocol.ChatClear:
		if s.OnClear != nil {
			s.OnClear()
		}
	case protocol.FileRequest:
		s.handleFileRequest(m)
	case protocol.FileAck:
		s.handleFileAck(m)
	case protocol.FileBegin:
		s.handleFileBegin()
	case protocol.FileClose:
		s.handleFileClose()
	case protocol.ChatText:
		if s.OnText != nil {
			s.OnText(m.Body)
		}
	default:
		log.Printf("Session with %q: no handler for %T", s.RemoteName, msg)
	}
	return false
}

// finish tears the session down exactly once: close the socket,
// discard any half-received file, report the outcome.
func (s *Session) finish(err error) {
	s.once.Do(func() {
		s.stopped.Store(true)
		s.conn.Close()
		s.cleanupReceive()
		close(s.done)
		if s.OnClosed != nil {
			s.OnClosed(err)
		}
	})
}
