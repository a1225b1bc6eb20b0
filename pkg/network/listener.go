package network

import (
	"fmt"
	"log"
	"math/rand"
	"net"
	"sync/atomic"

	"github.com/vkuchat/vkuchat/pkg/protocol"
)

// ChatListener accepts inbound chat dials on the port the peer
// advertised to the directory. Each dial carries one CHAT_REQ; the
// OnRequest callback decides accept or deny, and accepted dials are
// handed to OnSession as a started session.
type ChatListener struct {
	listener  net.Listener
	localName string
	stopped   atomic.Bool

	// OnRequest decides whether to accept a dial from the named peer.
	// Nil means accept everything.
	OnRequest func(peerName string) bool

	// OnSession receives each accepted session before its reader
	// starts, so callbacks can be wired race-free.
	OnSession func(s *Session)
}

// ListenChat binds the chat listener. Port 0 picks a random port in
// the client port range, retrying on collision.
func ListenChat(port int, localName string) (*ChatListener, error) {
	var listener net.Listener
	var err error

	if port != 0 {
		listener, err = net.Listen("tcp", fmt.Sprintf(":%d", port))
		if err != nil {
			return nil, err
		}
	} else {
		for attempt := 0; attempt < 10; attempt++ {
			candidate := protocol.ClientPortBase + rand.Intn(protocol.ClientPortSpan)
			listener, err = net.Listen("tcp", fmt.Sprintf(":%d", candidate))
			if err == nil {
				break
			}
		}
		if listener == nil {
			return nil, fmt.Errorf("no free chat port: %w", err)
		}
	}

	return &ChatListener{listener: listener, localName: localName}, nil
}

// Port returns the bound chat port.
func (l *ChatListener) Port() int {
	return l.listener.Addr().(*net.TCPAddr).Port
}

// Start begins accepting dials in the background.
func (l *ChatListener) Start() {
	go l.acceptLoop()
}

// Close stops accepting. Established sessions are unaffected.
func (l *ChatListener) Close() error {
	l.stopped.Store(true)
	return l.listener.Close()
}

func (l *ChatListener) acceptLoop() {
	for {
		conn, err := l.listener.Accept()
		if err != nil {
			if !l.stopped.Load() {
				log.Printf("Chat accept error: %v", err)
			}
			return
		}

		go l.handleDial(conn)
	}
}

// handleDial runs the inbound half of the chat handshake.
func (l *ChatListener) handleDial(conn net.Conn) {
	frame, err := protocol.ReadFrame(conn)
	if err != nil {
		conn.Close()
		return
	}

	req, ok := protocol.DecodeChatRequest(frame.Text())
	if !ok {
		log.Printf("Dropping dial from %s: no chat request", conn.RemoteAddr())
		conn.Close()
		return
	}

	if l.OnRequest != nil && !l.OnRequest(req.Name) {
		protocol.WriteFrame(conn, protocol.TextFrame(protocol.ChatDeny{}))
		conn.Close()
		return
	}

	if err := protocol.WriteFrame(conn, protocol.TextFrame(protocol.ChatAccept{})); err != nil {
		conn.Close()
		return
	}

	s := newSession(conn, l.localName, req.Name, l.Port())
	if l.OnSession != nil {
		l.OnSession(s)
	}
	s.Start()
}
