package directory

import (
	"fmt"
	"io"
	"log"
	"net"
	"sync/atomic"
	"time"

	"github.com/vkuchat/vkuchat/pkg/protocol"
)

// Server is the peer directory server. It listens on one TCP port;
// each accepted connection gets its own handler goroutine that reads
// framed messages until the client hangs up. The connection stays
// open across round trips.
type Server struct {
	Port int

	listener  net.Listener
	roster    *Roster
	startTime time.Time
	stopped   atomic.Bool

	registrations atomic.Uint64
	denials       atomic.Uint64
	keepalives    atomic.Uint64
}

// Stats is a point-in-time view of server counters.
type Stats struct {
	UptimeSeconds uint64 `json:"uptimeSeconds"`
	PeerCount     int    `json:"peerCount"`
	Registrations uint64 `json:"registrations"`
	Denials       uint64 `json:"denials"`
	Keepalives    uint64 `json:"keepalives"`
}

// NewServer creates a directory server for the given port.
func NewServer(port int) *Server {
	return &Server{
		Port:      port,
		roster:    NewRoster(),
		startTime: time.Now(),
	}
}

// Start begins listening and accepting connections.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	s.listener = listener
	log.Printf("Directory server listening on %s", listener.Addr())

	go s.acceptLoop()

	return nil
}

// Addr returns the bound listen address. Only valid after Start.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Roster exposes the authoritative peer list (read-mostly; the
// status API renders it).
func (s *Server) Roster() *Roster {
	return s.roster
}

// Stats returns the current counters.
func (s *Server) Stats() Stats {
	return Stats{
		UptimeSeconds: uint64(time.Since(s.startTime).Seconds()),
		PeerCount:     s.roster.Len(),
		Registrations: s.registrations.Load(),
		Denials:       s.denials.Load(),
		Keepalives:    s.keepalives.Load(),
	}
}

// Stop closes the listener. In-flight connections finish on their own.
func (s *Server) Stop() error {
	s.stopped.Store(true)
	if s.listener != nil {
		return s.listener.Close()
	}
	return nil
}

func (s *Server) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if !s.stopped.Load() {
				log.Printf("Accept error: %v", err)
			}
			return
		}

		go s.handleConnection(conn)
	}
}

// handleConnection reads frames off one client connection until EOF.
// A connection failure here is isolated to this client.
func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()

	for {
		frame, err := protocol.ReadFrame(conn)
		if err != nil {
			if err != io.EOF {
				log.Printf("Read error from %s: %v", conn.RemoteAddr(), err)
			}
			return
		}

		if frame.Kind != protocol.FrameText {
			log.Printf("Dropping non-text frame from %s", conn.RemoteAddr())
			continue
		}

		raw := frame.Text()

		if req, ok := protocol.DecodeRegister(raw); ok {
			if err := s.handleRegister(conn, req); err != nil {
				return
			}
			continue
		}

		if ka, ok := protocol.DecodeKeepAlive(raw); ok {
			if err := s.handleKeepAlive(conn, ka); err != nil {
				return
			}
			continue
		}

		// Unknown tags are a forward-compatibility seam: drop and
		// keep reading.
		log.Printf("Unrecognized message from %s", conn.RemoteAddr())
	}
}

// handleRegister registers a new peer or denies a duplicate name.
// The peer's host is taken from the connection's remote address; the
// port is the one the client declared for inbound chat dials.
func (s *Server) handleRegister(conn net.Conn, req protocol.RegisterRequest) error {
	host := remoteHost(conn)

	peer := protocol.Peer{Name: req.Name, Host: host, Port: req.Port}
	if err := s.roster.Add(peer); err != nil {
		s.denials.Add(1)
		log.Printf("Denied registration %q from %s: %v", req.Name, host, err)
		return s.reply(conn, protocol.SessionDeny{})
	}

	s.registrations.Add(1)
	log.Printf("Registered peer %q at %s:%d (%d online)", req.Name, host, req.Port, s.roster.Len())
	return s.reply(conn, protocol.SessionAccept{Peers: s.roster.Snapshot()})
}

// handleKeepAlive processes a liveness report. RUNNING leaves the
// roster unchanged; STOP removes the named peer. Both branches
// answer with the fresh roster so the reply shape is symmetric.
func (s *Server) handleKeepAlive(conn net.Conn, ka protocol.KeepAlive) error {
	s.keepalives.Add(1)

	if !ka.Online {
		if s.roster.Remove(ka.Name) {
			log.Printf("Peer %q went offline (%d online)", ka.Name, s.roster.Len())
		}
	}

	return s.reply(conn, protocol.SessionAccept{Peers: s.roster.Snapshot()})
}

func (s *Server) reply(conn net.Conn, m protocol.Message) error {
	if err := protocol.WriteFrame(conn, protocol.TextFrame(m)); err != nil {
		log.Printf("Reply error to %s: %v", conn.RemoteAddr(), err)
		return err
	}
	return nil
}

// remoteHost extracts the bare host from the connection's remote
// address, sanitized the same way roster decoding sanitizes hosts.
func remoteHost(conn net.Conn) string {
	host, _, err := net.SplitHostPort(conn.RemoteAddr().String())
	if err != nil {
		return protocol.SanitizeHost(conn.RemoteAddr().String())
	}
	return protocol.SanitizeHost(host)
}
