package network

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"time"

	"github.com/vkuchat/vkuchat/pkg/protocol"
)

// DefaultRefreshInterval is how often the client re-announces itself
// to the directory and pulls a fresh roster.
const DefaultRefreshInterval = 10 * time.Second

// ErrNameRejected reports that the directory denied a registration
// because the chosen display name is already in use.
var ErrNameRejected = errors.New("display name already registered")

// DirectoryClient keeps one peer's presence alive at the directory
// server. Register announces the peer once; Run then re-announces on
// a fixed interval, replacing the registry snapshot after every round
// trip. Each round trip uses a fresh connection.
type DirectoryClient struct {
	serverAddr string
	name       string
	chatPort   int
	interval   time.Duration
	registry   *Registry
}

// NewDirectoryClient creates a client for the named user. chatPort is
// the port the local chat listener accepts peer dials on; it is what
// other peers will see in the roster.
func NewDirectoryClient(serverAddr, name string, chatPort int) *DirectoryClient {
	return &DirectoryClient{
		serverAddr: serverAddr,
		name:       name,
		chatPort:   chatPort,
		interval:   DefaultRefreshInterval,
		registry:   NewRegistry(name),
	}
}

// Registry returns the roster cache the client refreshes.
func (c *DirectoryClient) Registry() *Registry {
	return c.registry
}

// Register announces the peer to the directory and seeds the registry
// with the first roster. A SESSION_DENY reply means the name is
// taken.
func (c *DirectoryClient) Register() error {
	reply, err := c.roundTrip(protocol.RegisterRequest{Name: c.name, Port: c.chatPort})
	if err != nil {
		return fmt.Errorf("register with directory: %w", err)
	}

	switch m := reply.(type) {
	case protocol.SessionDeny:
		return ErrNameRejected
	case protocol.SessionAccept:
		c.registry.Replace(m.Peers)
		return nil
	default:
		return fmt.Errorf("unexpected directory reply %T", reply)
	}
}

// Run refreshes the registration every interval until the context is
// cancelled. A failed refresh is logged and retried on the next tick;
// the loop never gives up on its own.
func (c *DirectoryClient) Run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.refresh(); err != nil {
				log.Printf("Directory refresh failed: %v", err)
			}
		}
	}
}

// Exit tells the directory the peer is going offline.
func (c *DirectoryClient) Exit() error {
	reply, err := c.roundTrip(protocol.KeepAlive{Name: c.name, Online: false})
	if err != nil {
		return fmt.Errorf("deregister from directory: %w", err)
	}

	if accept, ok := reply.(protocol.SessionAccept); ok {
		c.registry.Replace(accept.Peers)
	}
	return nil
}

func (c *DirectoryClient) refresh() error {
	reply, err := c.roundTrip(protocol.KeepAlive{Name: c.name, Online: true})
	if err != nil {
		return err
	}

	accept, ok := reply.(protocol.SessionAccept)
	if !ok {
		return fmt.Errorf("unexpected directory reply %T", reply)
	}

	c.registry.Replace(accept.Peers)
	return nil
}

// roundTrip dials the directory, sends one control message and reads
// the single reply.
func (c *DirectoryClient) roundTrip(m protocol.Message) (protocol.Message, error) {
	conn, err := net.Dial("tcp", c.serverAddr)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	if err := protocol.WriteFrame(conn, protocol.TextFrame(m)); err != nil {
		return nil, err
	}

	frame, err := protocol.ReadFrame(conn)
	if err != nil {
		return nil, err
	}

	reply, ok := protocol.Decode(frame.Text())
	if !ok {
		return nil, fmt.Errorf("unrecognized directory reply")
	}
	return reply, nil
}
