package peer

import (
	"time"

	"github.com/crocme10/area-net/internal/graph"
	"github.com/crocme10/area-net/internal/netid"
)

// CommandKind discriminates the controller -> session command union.
type CommandKind int

const (
	CmdStart CommandKind = iota
	CmdShutdown
	CmdSendContactsRequest
	CmdSendContactsResponse
)

// Command is sent by the controller to one peer session's command
// inbox. Commands sent to a given session are delivered in order.
type Command struct {
	Kind CommandKind

	// Graph is populated for CmdSendContactsRequest/CmdSendContactsResponse.
	Graph graph.Snapshot
}

// StartCommand begins an outgoing session's dial + handshake.
func StartCommand() Command { return Command{Kind: CmdStart} }

// ShutdownCommand requests a polite close.
func ShutdownCommand() Command { return Command{Kind: CmdShutdown} }

// SendContactsRequestCommand asks the session to gossip g to its peer.
func SendContactsRequestCommand(g graph.Snapshot) Command {
	return Command{Kind: CmdSendContactsRequest, Graph: g}
}

// SendContactsResponseCommand answers a previously forwarded
// PeerContactsRequest with the controller's post-merge graph.
func SendContactsResponseCommand(g graph.Snapshot) Command {
	return Command{Kind: CmdSendContactsResponse, Graph: g}
}

// EventKind discriminates the session -> controller event union.
type EventKind int

const (
	EvtPeerReady EventKind = iota
	EvtPeerFailed
	EvtPeerClosed
	EvtPeerRTT
	EvtPeerContactsRequest
	EvtPeerContactsResponse
)

// Event is emitted by a session into the controller's shared inbox.
// Events a given session emits are delivered in order; there is no
// ordering guarantee across sessions.
type Event struct {
	Kind EventKind
	Peer netid.PeerId

	Remote netid.NodeInfo // EvtPeerReady
	Reason string         // EvtPeerFailed
	RTT    time.Duration  // EvtPeerRTT
	Graph  graph.Snapshot // EvtPeerContactsRequest / EvtPeerContactsResponse
}

func readyEvent(id netid.PeerId, remote netid.NodeInfo) Event {
	return Event{Kind: EvtPeerReady, Peer: id, Remote: remote}
}

func failedEvent(id netid.PeerId, reason string) Event {
	return Event{Kind: EvtPeerFailed, Peer: id, Reason: reason}
}

func closedEvent(id netid.PeerId) Event {
	return Event{Kind: EvtPeerClosed, Peer: id}
}

func rttEvent(id netid.PeerId, rtt time.Duration) Event {
	return Event{Kind: EvtPeerRTT, Peer: id, RTT: rtt}
}

func contactsRequestEvent(id netid.PeerId, g graph.Snapshot) Event {
	return Event{Kind: EvtPeerContactsRequest, Peer: id, Graph: g}
}

func contactsResponseEvent(id netid.PeerId, g graph.Snapshot) Event {
	return Event{Kind: EvtPeerContactsResponse, Peer: id, Graph: g}
}
