// Package network implements the client side of the vkuchat
// protocol: directory registration and refresh, the peer registry,
// and the peer-to-peer chat session with its file transfer engine.
package network

import (
	"sync"

	"github.com/vkuchat/vkuchat/pkg/protocol"
)

// Registry is the client-side cache of the last known roster. Every
// refresh replaces the snapshot wholesale; a presentation
// collaborator subscribes through OnUpdate to learn which names
// appeared or disappeared (the local user's own name excluded).
type Registry struct {
	mu    sync.RWMutex
	self  string
	peers []protocol.Peer

	// OnUpdate is invoked after each replacement with the names that
	// joined and left since the previous snapshot. Optional.
	OnUpdate func(added, removed []string)
}

// NewRegistry creates a registry for the named local user.
func NewRegistry(self string) *Registry {
	return &Registry{self: self}
}

// Replace swaps in a new roster snapshot and notifies the
// subscriber of membership changes.
func (r *Registry) Replace(peers []protocol.Peer) {
	r.mu.Lock()
	previous := r.peers
	r.peers = peers
	r.mu.Unlock()

	if r.OnUpdate == nil {
		return
	}

	added, removed := diffNames(previous, peers, r.self)
	if len(added) > 0 || len(removed) > 0 {
		r.OnUpdate(added, removed)
	}
}

// Snapshot returns a copy of the cached roster.
func (r *Registry) Snapshot() []protocol.Peer {
	r.mu.RLock()
	defer r.mu.RUnlock()

	peers := make([]protocol.Peer, len(r.peers))
	copy(peers, r.peers)
	return peers
}

// Friends returns the cached peers other than the local user, in
// roster order.
func (r *Registry) Friends() []protocol.Peer {
	r.mu.RLock()
	defer r.mu.RUnlock()

	peers := make([]protocol.Peer, 0, len(r.peers))
	for _, p := range r.peers {
		if p.Name != r.self {
			peers = append(peers, p)
		}
	}
	return peers
}

// Lookup finds a peer by name.
func (r *Registry) Lookup(name string) (protocol.Peer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.peers {
		if p.Name == name {
			return p, true
		}
	}
	return protocol.Peer{}, false
}

func diffNames(previous, current []protocol.Peer, self string) (added, removed []string) {
	prev := make(map[string]bool, len(previous))
	for _, p := range previous {
		prev[p.Name] = true
	}
	curr := make(map[string]bool, len(current))
	for _, p := range current {
		curr[p.Name] = true
	}

	for _, p := range current {
		if p.Name != self && !prev[p.Name] {
			added = append(added, p.Name)
		}
	}
	for _, p := range previous {
		if p.Name != self && !curr[p.Name] {
			removed = append(removed, p.Name)
		}
	}
	return added, removed
}
