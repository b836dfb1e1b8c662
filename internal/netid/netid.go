// Package netid defines the node and peer identifiers used across the
// overlay: process-wide NodeIds, per-session PeerIds, human labels, and
// the IPv6-first network address type exchanged on the wire.
package netid

import (
	"encoding/json"
	"fmt"
	"net/netip"

	"github.com/google/uuid"
)

// NodeId is a process-wide unique 128-bit identifier for a controller,
// generated once at startup.
type NodeId uuid.UUID

// NewNodeId generates a fresh, random NodeId.
func NewNodeId() NodeId {
	return NodeId(uuid.New())
}

// ParseNodeId parses the canonical string form of a NodeId.
func ParseNodeId(s string) (NodeId, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return NodeId{}, fmt.Errorf("parse node id %q: %w", s, err)
	}
	return NodeId(id), nil
}

func (n NodeId) String() string { return uuid.UUID(n).String() }

// Less provides the deterministic tie-break ordering the controller
// uses to decide which side of a simultaneous dial survives.
func (n NodeId) Less(other NodeId) bool {
	for i := range n {
		if n[i] != other[i] {
			return n[i] < other[i]
		}
	}
	return false
}

func (n NodeId) MarshalJSON() ([]byte, error)  { return json.Marshal(n.String()) }
func (n *NodeId) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	id, err := ParseNodeId(s)
	if err != nil {
		return err
	}
	*n = id
	return nil
}

// PeerId is a per-session identifier assigned by the controller when a
// session is created. It is the registry key for PeerRecords and is
// never persisted beyond the session's lifetime.
type PeerId uuid.UUID

// NewPeerId generates a fresh PeerId.
func NewPeerId() PeerId { return PeerId(uuid.New()) }

func (p PeerId) String() string { return uuid.UUID(p).String() }

// Label is a short, best-effort-unique human-readable name, typically
// the profile name, used for logs and diagrams.
type Label string

// NetAddress is an IP address and TCP port. IPv6 is first-class: an
// IPv6 address is written in the bracketed form, e.g. "[::1]:8090",
// an IPv4 address as "127.0.0.1:9000". The zero NetAddress is written
// as "" in JSON.
type NetAddress struct {
	addrPort netip.AddrPort
}

// NewNetAddress wraps a resolved netip.AddrPort.
func NewNetAddress(ap netip.AddrPort) NetAddress { return NetAddress{addrPort: ap} }

// ParseNetAddress parses a "[host]:port" or "host:port" string.
func ParseNetAddress(s string) (NetAddress, error) {
	ap, err := netip.ParseAddrPort(s)
	if err != nil {
		return NetAddress{}, fmt.Errorf("parse net address %q: %w", s, err)
	}
	return NetAddress{addrPort: ap}, nil
}

func (a NetAddress) AddrPort() netip.AddrPort { return a.addrPort }

func (a NetAddress) IsZero() bool { return a.addrPort == netip.AddrPort{} }

func (a NetAddress) String() string { return a.addrPort.String() }

func (a NetAddress) Equal(other NetAddress) bool { return a.addrPort == other.addrPort }

func (a NetAddress) MarshalJSON() ([]byte, error) {
	if a.IsZero() {
		return json.Marshal("")
	}
	return json.Marshal(a.String())
}

func (a *NetAddress) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		*a = NetAddress{}
		return nil
	}
	parsed, err := ParseNetAddress(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// NodeInfo is the identity a node publishes during handshake.
type NodeInfo struct {
	NodeId          NodeId     `json:"nodeId"`
	Label           Label      `json:"label"`
	Listen          NetAddress `json:"listen"`
	ProtocolVersion uint32     `json:"protocolVersion"`
}

// ProtocolVersion is the current wire protocol version advertised by
// this implementation. The high 16 bits are the major version; a
// mismatch on the major version is a protocol error, a mismatch on the
// minor version (low 16 bits) is tolerated.
const ProtocolVersion uint32 = 1 << 16

// MajorVersion extracts the major component of a protocol version.
func MajorVersion(v uint32) uint32 { return v >> 16 }

// Direction records whether a session was established by dialing out
// or by accepting an inbound connection.
type Direction int

const (
	DirectionUnknown Direction = iota
	DirectionIncoming
	DirectionOutgoing
)

func (d Direction) String() string {
	switch d {
	case DirectionIncoming:
		return "in"
	case DirectionOutgoing:
		return "out"
	default:
		return "unknown"
	}
}

func (d Direction) MarshalJSON() ([]byte, error) { return json.Marshal(d.String()) }
