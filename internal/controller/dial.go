package controller

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/crocme10/area-net/internal/backoff"
	"github.com/crocme10/area-net/internal/netid"
	"github.com/crocme10/area-net/internal/peer"
)

// runDialMonitor admits outbound sessions for targets not already
// represented by a live PeerRecord, subject to max_outgoing and a
// per-target backoff. Records are inserted before the session runs so
// the tick is idempotent within one loop iteration (spec §4.5).
func (c *Controller) runDialMonitor(ctx context.Context) {
	for _, addr := range c.targets {
		if addr.Equal(c.self.Listen) {
			continue
		}
		if c.reg.hasLiveRecordFor(addr) {
			continue
		}
		if c.reg.countOutgoing() >= c.cfg.MaxOutgoing {
			return
		}
		bo := c.backoffFor(addr)
		if !bo.Ready() {
			continue
		}

		id := netid.NewPeerId()
		sess := peer.New(id, netid.DirectionOutgoing, c.self, nil, c.dialer, addr, c.peerEvents, c.sessionConfig(), c.logger)

		sessCtx, cancel := context.WithCancel(ctx)
		rec := &PeerRecord{
			PeerId:     id,
			Direction:  netid.DirectionOutgoing,
			State:      peer.StateHandshaking,
			StartedAt:  time.Now(),
			TargetAddr: addr,
			commands:   sess.Commands(),
			cancel:     cancel,
		}
		c.reg.insert(rec)
		go sess.Run(sessCtx)
		if err := rec.Send(ctx, peer.StartCommand(), shortCommandTimeout); err != nil {
			c.logger.Warn("failed to start outgoing session", zap.String("addr", addr.String()), zap.Error(err))
		}
	}
}

func (c *Controller) backoffFor(addr netid.NetAddress) *backoff.Strategy {
	key := addr.String()
	bo, ok := c.backoffs[key]
	if !ok {
		bo = backoff.New(200*time.Millisecond, 2.0, 30*time.Second)
		c.backoffs[key] = bo
	}
	return bo
}
