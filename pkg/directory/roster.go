// Package directory implements the rendezvous server: a TCP listener
// that registers peers, answers keep-alives with the full roster, and
// removes peers that report STOP.
package directory

import (
	"errors"
	"sync"

	"github.com/vkuchat/vkuchat/pkg/protocol"
)

// ErrNameTaken is returned when a registration collides with an
// existing peer name. The client recovers by retrying with a
// different name.
var ErrNameTaken = errors.New("peer name already registered")

// Roster holds the authoritative peer list. Connection handlers run
// concurrently, so every mutation goes through this one
// mutex-guarded owner.
type Roster struct {
	mu    sync.RWMutex
	peers []protocol.Peer
}

// NewRoster creates an empty roster.
func NewRoster() *Roster {
	return &Roster{}
}

// Add appends a peer. Names are unique: a second registration under
// an existing name returns ErrNameTaken and leaves the roster
// untouched.
func (r *Roster) Add(p protocol.Peer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.peers {
		if existing.Name == p.Name {
			return ErrNameTaken
		}
	}
	r.peers = append(r.peers, p)
	return nil
}

// Remove deletes the peer with the given name. Removing an unknown
// name is a no-op.
func (r *Roster) Remove(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, p := range r.peers {
		if p.Name == name {
			r.peers = append(r.peers[:i], r.peers[i+1:]...)
			return true
		}
	}
	return false
}

// Snapshot returns a copy of the current roster in registration order.
func (r *Roster) Snapshot() []protocol.Peer {
	r.mu.RLock()
	defer r.mu.RUnlock()

	peers := make([]protocol.Peer, len(r.peers))
	copy(peers, r.peers)
	return peers
}

// Len returns the number of registered peers.
func (r *Roster) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.peers)
}
