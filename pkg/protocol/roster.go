package protocol

import (
	"regexp"
	"strconv"
	"strings"
)

// Peer identifies one registered client: a unique name plus the
// host:port it accepts chat dials on. Peers are never mutated in
// place; the roster is replaced wholesale on change.
type Peer struct {
	Name string `json:"name"`
	Host string `json:"host"`
	Port int    `json:"port"`
}

// Addr returns the peer's dialable host:port.
func (p Peer) Addr() string {
	return p.Host + ":" + strconv.Itoa(p.Port)
}

// SessionAccept carries the directory's full roster. Every directory
// reply serializes the complete current roster, not a delta.
type SessionAccept struct {
	Peers []Peer
}

// Encode renders the roster as concatenated <PEER> blocks inside a
// SESSION_ACCEPT wrapper.
func (m SessionAccept) Encode() string {
	var b strings.Builder
	b.WriteString(sessionAcceptOpen)
	for _, p := range m.Peers {
		b.WriteString(peerOpen)
		b.WriteString(peerNameOpen)
		b.WriteString(p.Name)
		b.WriteString(peerNameClose)
		b.WriteString(ipOpen)
		b.WriteString(p.Host)
		b.WriteString(ipClose)
		b.WriteString(portOpen)
		b.WriteString(strconv.Itoa(p.Port))
		b.WriteString(portClose)
		b.WriteString(peerClose)
	}
	b.WriteString(sessionAcceptClose)
	return b.String()
}

var (
	reRoster = regexp.MustCompile("^" + sessionAcceptOpen +
		"(" + peerOpen +
		peerNameOpen + "[^<>]+" + peerNameClose +
		ipOpen + "[^<>]+" + ipClose +
		portOpen + "[0-9]+" + portClose +
		peerClose + ")*" + sessionAcceptClose + "$")

	rePeerBlock = regexp.MustCompile(peerOpen +
		peerNameOpen + "[^<>]+" + peerNameClose +
		ipOpen + "[^<>]+" + ipClose +
		portOpen + "[0-9]+" + portClose +
		peerClose)
)

// DecodeRoster decodes a SESSION_ACCEPT roster. An empty roster
// (no <PEER> blocks) is valid. Hosts are sanitized before use.
func DecodeRoster(raw string) ([]Peer, bool) {
	if !reRoster.MatchString(raw) {
		return nil, false
	}
	blocks := rePeerBlock.FindAllString(raw, -1)
	peers := make([]Peer, 0, len(blocks))
	for _, block := range blocks {
		port, err := strconv.Atoi(between(block, portOpen, portClose))
		if err != nil {
			return nil, false
		}
		peers = append(peers, Peer{
			Name: between(block, peerNameOpen, peerNameClose),
			Host: SanitizeHost(between(block, ipOpen, ipClose)),
			Port: port,
		})
	}
	return peers, true
}

// SanitizeHost strips the leading slashes some address stringifiers
// prepend ("/192.168.56.1") and surrounding whitespace.
func SanitizeHost(host string) string {
	return strings.TrimLeft(strings.TrimSpace(host), "/")
}
