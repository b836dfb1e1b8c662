package controller

import (
	"context"
	"time"

	"github.com/crocme10/area-net/internal/netid"
	"github.com/crocme10/area-net/internal/peer"
)

// PeerRecord is the controller-side bookkeeping for one live session,
// per spec §3.
type PeerRecord struct {
	PeerId    netid.PeerId
	Direction netid.Direction
	Remote    netid.NodeInfo
	State     peer.State
	StartedAt time.Time

	// TargetAddr is set for Outgoing records and is the dial-monitor's
	// dedup key against the target list.
	TargetAddr netid.NetAddress

	RTT    time.Duration
	HasRTT bool

	commands chan<- peer.Command
	cancel   context.CancelFunc
}

// Send delivers a command to this peer's session. Per spec §5, if the
// command inbox is full the controller applies the command with a
// short timeout; on timeout Send returns errCommandTimeout (see there
// for how callers react).
func (r *PeerRecord) Send(ctx context.Context, cmd peer.Command, timeout time.Duration) error {
	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	select {
	case r.commands <- cmd:
		return nil
	case <-tctx.Done():
		return errCommandTimeout
	}
}

// registry holds the controller's peer bookkeeping: the set of live
// PeerRecords and the NodeId -> PeerId dedup index. Every mutation
// happens only from the controller's single consumer loop, so no
// locking is required (spec §4.3, §5).
type registry struct {
	peers    map[netid.PeerId]*PeerRecord
	byRemote map[netid.NodeId]netid.PeerId
}

func newRegistry() *registry {
	return &registry{
		peers:    map[netid.PeerId]*PeerRecord{},
		byRemote: map[netid.NodeId]netid.PeerId{},
	}
}

func (r *registry) insert(rec *PeerRecord) {
	r.peers[rec.PeerId] = rec
}

func (r *registry) get(id netid.PeerId) (*PeerRecord, bool) {
	rec, ok := r.peers[id]
	return rec, ok
}

func (r *registry) remove(id netid.PeerId) {
	rec, ok := r.peers[id]
	if !ok {
		return
	}
	if existing, ok := r.byRemote[rec.Remote.NodeId]; ok && existing == id {
		delete(r.byRemote, rec.Remote.NodeId)
	}
	delete(r.peers, id)
}

func (r *registry) registerRemote(nodeId netid.NodeId, id netid.PeerId) {
	r.byRemote[nodeId] = id
}

func (r *registry) byRemoteNode(nodeId netid.NodeId) (*PeerRecord, bool) {
	id, ok := r.byRemote[nodeId]
	if !ok {
		return nil, false
	}
	return r.get(id)
}

// hasLiveRecordFor reports whether any non-Closed PeerRecord already
// represents addr, either because it is the confirmed remote listen
// address of a Ready peer or because it is the dial target of an
// in-flight Outgoing session. Used by the dial monitor's dedup rule
// (spec §4.5).
func (r *registry) hasLiveRecordFor(addr netid.NetAddress) bool {
	for _, rec := range r.peers {
		if rec.State == peer.StateClosed {
			continue
		}
		if rec.Direction == netid.DirectionOutgoing && rec.TargetAddr.Equal(addr) {
			return true
		}
		if !rec.Remote.Listen.IsZero() && rec.Remote.Listen.Equal(addr) {
			return true
		}
	}
	return false
}

// countOutgoing returns the number of non-Closed Outgoing records,
// used to enforce max_outgoing.
func (r *registry) countOutgoing() int {
	n := 0
	for _, rec := range r.peers {
		if rec.Direction == netid.DirectionOutgoing && rec.State != peer.StateClosed {
			n++
		}
	}
	return n
}

// snapshot returns a value-copy slice of all PeerRecords, safe to hand
// to the status monitor without risking mutation of live state.
func (r *registry) snapshot() []PeerRecord {
	out := make([]PeerRecord, 0, len(r.peers))
	for _, rec := range r.peers {
		out = append(out, *rec)
	}
	return out
}
