// Package controller implements the per-node coordinator: the
// registry of peers, the target address list, the merged network
// graph, and the listen/dial/status/discovery loops, all driven
// through a single consumer select loop in the style of the Peer
// session's own main loop (internal/peer.Session.Run) and
// distributed-queue's EnqueueWorker/DequeueWorker Run/Stop actors.
package controller

import (
	"context"
	"net"
	"time"

	"go.uber.org/zap"

	"github.com/crocme10/area-net/internal/backoff"
	"github.com/crocme10/area-net/internal/cache"
	"github.com/crocme10/area-net/internal/config"
	"github.com/crocme10/area-net/internal/diagram"
	"github.com/crocme10/area-net/internal/graph"
	"github.com/crocme10/area-net/internal/netid"
	"github.com/crocme10/area-net/internal/peer"
	"github.com/crocme10/area-net/internal/wire"
	"github.com/crocme10/area-net/internal/wire/tcpframe"
)

const (
	shortCommandTimeout  = 200 * time.Millisecond
	defaultPeerEventsBuf = 64
	mergeCacheSize       = 256
)

// Controller is the single per-node coordinator described in spec §4.3.
type Controller struct {
	cfg    config.Config
	self   netid.NodeInfo
	logger *zap.Logger

	reg        *registry
	graph      *graph.Graph
	targets    []netid.NetAddress
	backoffs   map[string]*backoff.Strategy
	mergeCache *cache.TTLCache

	dialer          peer.Dialer
	diagramRenderer diagram.Renderer

	peerEvents chan peer.Event
}

// New builds a Controller identified by self, ready to Run against a
// bound listener. targets is the initial seed list (spec §3's
// `targets: ordered sequence of NetAddress`).
func New(cfg config.Config, self netid.NodeInfo, targets []netid.NetAddress, logger *zap.Logger) *Controller {
	return &Controller{
		cfg:             cfg,
		self:            self,
		logger:          logger,
		reg:             newRegistry(),
		graph:           graph.New(self),
		targets:         targets,
		backoffs:        map[string]*backoff.Strategy{},
		mergeCache:      cache.New(mergeCacheSize, cfg.MergeCacheTTL),
		dialer:          tcpframe.Dialer{},
		diagramRenderer: diagram.D2Renderer{},
		peerEvents:      make(chan peer.Event, defaultPeerEventsBuf),
	}
}

// Graph exposes a clone of the current merged network graph, for tests
// and for the status monitor.
func (c *Controller) Graph() *graph.Graph { return c.graph.Clone() }

// Run accepts inbound connections on ln and drives every periodic loop
// until ctx is cancelled, at which point it issues Shutdown to every
// live peer and waits up to cfg.ShutdownDrain for them to close before
// returning.
func (c *Controller) Run(ctx context.Context, ln net.Listener) {
	accepted := make(chan wire.Framed, 1)
	go acceptLoop(ctx, ln, accepted, c.logger)

	idle := time.NewTicker(c.cfg.MonitorIdleInterval)
	status := time.NewTicker(c.cfg.MonitorStatusInterval)
	discovery := time.NewTicker(c.cfg.DiscoveryInterval)
	defer idle.Stop()
	defer status.Stop()
	defer discovery.Stop()

	for {
		select {
		case <-ctx.Done():
			c.drainShutdown()
			return

		case conn := <-accepted:
			c.handleAccepted(ctx, conn)

		case ev := <-c.peerEvents:
			c.handlePeerEvent(ctx, ev)

		case <-idle.C:
			c.runDialMonitor(ctx)

		case <-status.C:
			c.runStatusMonitor()

		case <-discovery.C:
			c.runDiscovery(ctx)
		}
	}
}

func (c *Controller) sessionConfig() peer.Config {
	return peer.Config{
		HeartbeatInterval: c.cfg.HeartbeatInterval,
		HeartbeatTimeout:  c.cfg.HeartbeatTimeout,
	}
}

func (c *Controller) handleAccepted(ctx context.Context, conn wire.Framed) {
	id := netid.NewPeerId()
	sess := peer.New(id, netid.DirectionIncoming, c.self, conn, nil, netid.NetAddress{}, c.peerEvents, c.sessionConfig(), c.logger)

	sessCtx, cancel := context.WithCancel(ctx)
	rec := &PeerRecord{
		PeerId:    id,
		Direction: netid.DirectionIncoming,
		State:     peer.StateHandshaking,
		StartedAt: time.Now(),
		commands:  sess.Commands(),
		cancel:    cancel,
	}
	c.reg.insert(rec)
	go sess.Run(sessCtx)
}

func (c *Controller) runStatusMonitor() {
	if err := writeStatus(c.cfg.StatusOutputPath, c.self.NodeId, c.reg.snapshot()); err != nil {
		c.logger.Warn("failed to write status file", zap.Error(err))
	}
	if c.cfg.DiagramEnabled {
		snap := c.graph.ToSnapshot()
		if err := writeDiagram(c.cfg.DiagramOutputPath, c.diagramRenderer, c.self.NodeId, snap); err != nil {
			c.logger.Warn("failed to write diagram file", zap.Error(err))
		}
	}
}

func (c *Controller) handlePeerEvent(ctx context.Context, ev peer.Event) {
	switch ev.Kind {
	case peer.EvtPeerReady:
		c.onPeerReady(ctx, ev)
	case peer.EvtPeerFailed:
		c.onPeerGone(ev.Peer)
	case peer.EvtPeerClosed:
		c.onPeerGone(ev.Peer)
	case peer.EvtPeerRTT:
		c.onPeerRTT(ev)
	case peer.EvtPeerContactsRequest:
		c.onContactsRequest(ctx, ev)
	case peer.EvtPeerContactsResponse:
		c.onContactsResponse(ev)
	}
}

// onPeerReady implements the spec §4.3 deduplication policy: only one
// Ready session per remote NodeId survives. When the two directions
// race (both nodes dial each other at once), the tie-break is decided
// the same way on both sides without further communication: the node
// with the smaller NodeId keeps the session it accepted, the node with
// the larger NodeId keeps the session it dialed.
func (c *Controller) onPeerReady(ctx context.Context, ev peer.Event) {
	rec, ok := c.reg.get(ev.Peer)
	if !ok {
		return
	}
	rec.Remote = ev.Remote
	rec.State = peer.StateReady
	c.graph.UpsertNode(ev.Remote)

	if existing, dup := c.reg.byRemoteNode(ev.Remote.NodeId); dup {
		if existing.State == peer.StateReady && existing.PeerId != rec.PeerId {
			keepIncoming := c.self.NodeId.Less(ev.Remote.NodeId)
			existingIsIncoming := existing.Direction == netid.DirectionIncoming
			if existingIsIncoming == keepIncoming {
				_ = rec.Send(ctx, peer.ShutdownCommand(), shortCommandTimeout)
				return
			}
			c.closeAndRemove(ctx, existing)
		}
	}

	c.reg.registerRemote(ev.Remote.NodeId, rec.PeerId)
	if rec.Direction == netid.DirectionOutgoing {
		c.graph.PutEdge(graph.Edge{From: c.self.NodeId, To: ev.Remote.NodeId})
		c.backoffFor(rec.TargetAddr).Reset()
	}
}

func (c *Controller) onPeerGone(id netid.PeerId) {
	rec, ok := c.reg.get(id)
	if !ok {
		return
	}
	if rec.cancel != nil {
		rec.cancel()
	}
	c.reg.remove(id)

	// A discarded duplicate (spec §4.3's mutual-dial dedup) closing
	// must not remove the self-rooted edge still owned by the
	// surviving Ready outgoing session to the same remote.
	if rec.Remote.NodeId != (netid.NodeId{}) && !c.isLiveOutgoing(rec.Remote.NodeId) {
		c.graph.RemoveEdge(c.self.NodeId, rec.Remote.NodeId)
	}
	if rec.Direction == netid.DirectionOutgoing {
		c.backoffFor(rec.TargetAddr).Fail()
	}
}

func (c *Controller) onPeerRTT(ev peer.Event) {
	rec, ok := c.reg.get(ev.Peer)
	if !ok {
		return
	}
	rec.RTT = ev.RTT
	rec.HasRTT = true
	if rec.Direction == netid.DirectionOutgoing && rec.Remote.NodeId != (netid.NodeId{}) {
		rtt := ev.RTT
		c.graph.PutEdge(graph.Edge{From: c.self.NodeId, To: rec.Remote.NodeId, RTT: &rtt})
	}
}

// closeAndRemove asks rec's session to shut down. If its command inbox
// does not accept the Shutdown in time, the peer is treated as failed:
// its session is cancelled and its record removed at once.
func (c *Controller) closeAndRemove(ctx context.Context, rec *PeerRecord) {
	if err := rec.Send(ctx, peer.ShutdownCommand(), shortCommandTimeout); err != nil {
		c.onPeerGone(rec.PeerId)
	}
}

// drainShutdown issues Shutdown to every live peer and waits up to
// cfg.ShutdownDrain for PeerClosed/PeerFailed acknowledgements;
// stragglers are abandoned via their session's cancel func (spec
// §4.3's "Cancellation and shutdown").
func (c *Controller) drainShutdown() {
	ctx := context.Background()
	pending := map[netid.PeerId]bool{}
	for id, rec := range c.reg.peers {
		_ = rec.Send(ctx, peer.ShutdownCommand(), shortCommandTimeout)
		pending[id] = true
	}
	if len(pending) == 0 {
		return
	}

	deadline := time.After(c.cfg.ShutdownDrain)
	for len(pending) > 0 {
		select {
		case ev := <-c.peerEvents:
			if ev.Kind == peer.EvtPeerClosed || ev.Kind == peer.EvtPeerFailed {
				delete(pending, ev.Peer)
			}
		case <-deadline:
			c.logger.Warn("shutdown drain deadline exceeded, abandoning peers", zap.Int("remaining", len(pending)))
			for id := range pending {
				if rec, ok := c.reg.get(id); ok && rec.cancel != nil {
					rec.cancel()
				}
			}
			return
		}
	}
}
