// Package wire defines the core's typed message vocabulary and the
// abstract Framed duplex stream it is exchanged over. Actual length-
// delimited framing and payload serialization are external
// collaborators (spec §1); this package only fixes the Go-side shape
// of what crosses that boundary.
package wire

import (
	"fmt"
	"time"

	"github.com/crocme10/area-net/internal/graph"
	"github.com/crocme10/area-net/internal/netid"
)

// Kind discriminates the tagged union of Message payloads carried on
// the wire.
type Kind int

const (
	KindUnknown Kind = iota
	KindHandshake
	KindHeartbeatRequest
	KindHeartbeatResponse
	KindContactsRequest
	KindContactsResponse
	KindGoodbye
)

func (k Kind) String() string {
	switch k {
	case KindHandshake:
		return "handshake"
	case KindHeartbeatRequest:
		return "heartbeat_request"
	case KindHeartbeatResponse:
		return "heartbeat_response"
	case KindContactsRequest:
		return "contacts_request"
	case KindContactsResponse:
		return "contacts_response"
	case KindGoodbye:
		return "goodbye"
	default:
		return "unknown"
	}
}

// Handshake is the first message sent on every connection in both
// directions, identifying the sender.
type Handshake struct {
	Node netid.NodeInfo
}

// HeartbeatRequest probes liveness and round-trip time. Nonces are
// session-local and monotonically increasing.
type HeartbeatRequest struct {
	Nonce  uint64
	SentAt time.Time
}

// HeartbeatResponse echoes the request's nonce.
type HeartbeatResponse struct {
	Nonce uint64
}

// ContactsRequest carries the sender's current graph for gossip.
type ContactsRequest struct {
	Graph graph.Snapshot
}

// ContactsResponse carries the responder's post-merge graph.
type ContactsResponse struct {
	Graph graph.Snapshot
}

// Goodbye is an optional polite close notification.
type Goodbye struct {
	Reason string
}

// Message is the tagged envelope exchanged over a Framed stream.
// Exactly one of the typed fields is meaningful, selected by Kind.
// A Kind the reader does not handle (KindUnknown, or a number outside
// the constants above, which decodes unchanged) must be logged and
// dropped by the reader, never treated as a protocol error on its own
// (spec §4.1).
type Message struct {
	Kind Kind

	Handshake         *Handshake
	HeartbeatRequest  *HeartbeatRequest
	HeartbeatResponse *HeartbeatResponse
	ContactsRequest   *ContactsRequest
	ContactsResponse  *ContactsResponse
	Goodbye           *Goodbye
}

// NewHandshake builds a tagged Handshake Message.
func NewHandshake(node netid.NodeInfo) Message {
	return Message{Kind: KindHandshake, Handshake: &Handshake{Node: node}}
}

// NewHeartbeatRequest builds a tagged HeartbeatRequest Message.
func NewHeartbeatRequest(nonce uint64, sentAt time.Time) Message {
	return Message{Kind: KindHeartbeatRequest, HeartbeatRequest: &HeartbeatRequest{Nonce: nonce, SentAt: sentAt}}
}

// NewHeartbeatResponse builds a tagged HeartbeatResponse Message.
func NewHeartbeatResponse(nonce uint64) Message {
	return Message{Kind: KindHeartbeatResponse, HeartbeatResponse: &HeartbeatResponse{Nonce: nonce}}
}

// NewContactsRequest builds a tagged ContactsRequest Message.
func NewContactsRequest(g graph.Snapshot) Message {
	return Message{Kind: KindContactsRequest, ContactsRequest: &ContactsRequest{Graph: g}}
}

// NewContactsResponse builds a tagged ContactsResponse Message.
func NewContactsResponse(g graph.Snapshot) Message {
	return Message{Kind: KindContactsResponse, ContactsResponse: &ContactsResponse{Graph: g}}
}

// NewGoodbye builds a tagged Goodbye Message.
func NewGoodbye(reason string) Message {
	return Message{Kind: KindGoodbye, Goodbye: &Goodbye{Reason: reason}}
}

func (m Message) String() string {
	return fmt.Sprintf("Message{%s}", m.Kind)
}

// Framed is the abstract duplex stream of typed Messages a Peer
// session owns. A compliant implementation is responsible for length-
// prefixed wire framing and payload serialization (spec §6); the core
// only depends on this interface.
type Framed interface {
	Send(Message) error
	Recv() (Message, error)
	Close() error
}
