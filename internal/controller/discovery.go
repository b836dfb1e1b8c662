package controller

import (
	"context"

	"go.uber.org/zap"

	"github.com/crocme10/area-net/internal/graph"
	"github.com/crocme10/area-net/internal/netid"
	"github.com/crocme10/area-net/internal/peer"
)

// runDiscovery broadcasts the current graph to every Ready peer (spec
// §4.7). Merges of the responses happen asynchronously as
// PeerContactsResponse events arrive.
func (c *Controller) runDiscovery(ctx context.Context) {
	snap := c.graph.ToSnapshot()
	for _, rec := range c.reg.peers {
		if rec.State != peer.StateReady {
			continue
		}
		if err := rec.Send(ctx, peer.SendContactsRequestCommand(snap), shortCommandTimeout); err != nil {
			c.logger.Warn("dropping unresponsive peer on discovery broadcast", zap.String("peer_id", rec.PeerId.String()))
			c.closeAndRemove(ctx, rec)
		}
	}
}

func (c *Controller) onContactsRequest(ctx context.Context, ev peer.Event) {
	rec, ok := c.reg.get(ev.Peer)
	if !ok {
		return
	}
	c.mergeGraph(sourceKey(rec), ev.Graph)
	_ = rec.Send(ctx, peer.SendContactsResponseCommand(c.graph.ToSnapshot()), shortCommandTimeout)
}

func (c *Controller) onContactsResponse(ev peer.Event) {
	rec, ok := c.reg.get(ev.Peer)
	if !ok {
		return
	}
	c.mergeGraph(sourceKey(rec), ev.Graph)
}

func sourceKey(rec *PeerRecord) string {
	if rec.Remote.NodeId != (netid.NodeId{}) {
		return rec.Remote.NodeId.String()
	}
	return rec.PeerId.String()
}

// mergeGraph applies the spec §4.7 merge rules, skipping the merge
// entirely if the incoming snapshot's hash matches the last one merged
// from the same source within the cache TTL (internal/cache).
func (c *Controller) mergeGraph(source string, snap graph.Snapshot) {
	h, err := snapshotHash(snap)
	if err == nil {
		if cached, ok := c.mergeCache.Get(source); ok && cached == h {
			return
		}
		c.mergeCache.Put(source, h)
	}
	c.graph.Merge(snap, graph.MergeOptions{MaxNodes: c.cfg.MaxNodes, IsLive: c.isLiveOutgoing})
}

func (c *Controller) isLiveOutgoing(to netid.NodeId) bool {
	rec, ok := c.reg.byRemoteNode(to)
	return ok && rec.Direction == netid.DirectionOutgoing && rec.State == peer.StateReady
}
