package peer

import (
	"context"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/crocme10/area-net/internal/netid"
	"github.com/crocme10/area-net/internal/wire"
	"github.com/crocme10/area-net/internal/wire/memframe"
)

func testConfig() Config {
	return Config{HeartbeatInterval: 20 * time.Millisecond, HeartbeatTimeout: 200 * time.Millisecond}
}

func testNode(label string) netid.NodeInfo {
	return netid.NodeInfo{
		NodeId:          netid.NewNodeId(),
		Label:           netid.Label(label),
		ProtocolVersion: netid.ProtocolVersion,
	}
}

func drainUntilReady(t *testing.T, events <-chan Event, timeout time.Duration) Event {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case ev := <-events:
			if ev.Kind == EvtPeerReady {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for PeerReady event")
		}
	}
}

func TestTwoSessionsHandshakeToReady(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, b := memframe.NewPipe()
	logger := zap.NewNop()

	aNode, bNode := testNode("a"), testNode("b")
	aEvents := make(chan Event, 8)
	bEvents := make(chan Event, 8)

	aSess := New(netid.NewPeerId(), netid.DirectionIncoming, aNode, a, nil, netid.NetAddress{}, aEvents, testConfig(), logger)
	bSess := New(netid.NewPeerId(), netid.DirectionIncoming, bNode, b, nil, netid.NetAddress{}, bEvents, testConfig(), logger)

	go aSess.Run(ctx)
	go bSess.Run(ctx)

	aReady := drainUntilReady(t, aEvents, time.Second)
	bReady := drainUntilReady(t, bEvents, time.Second)

	if aReady.Remote.NodeId != bNode.NodeId {
		t.Fatalf("a's view of remote NodeId = %v, want %v", aReady.Remote.NodeId, bNode.NodeId)
	}
	if bReady.Remote.NodeId != aNode.NodeId {
		t.Fatalf("b's view of remote NodeId = %v, want %v", bReady.Remote.NodeId, aNode.NodeId)
	}
}

func TestHeartbeatProducesRTT(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, b := memframe.NewPipe()
	logger := zap.NewNop()

	aEvents := make(chan Event, 8)
	bEvents := make(chan Event, 8)

	aSess := New(netid.NewPeerId(), netid.DirectionIncoming, testNode("a"), a, nil, netid.NetAddress{}, aEvents, testConfig(), logger)
	bSess := New(netid.NewPeerId(), netid.DirectionIncoming, testNode("b"), b, nil, netid.NetAddress{}, bEvents, testConfig(), logger)

	go aSess.Run(ctx)
	go bSess.Run(ctx)

	drainUntilReady(t, aEvents, time.Second)
	drainUntilReady(t, bEvents, time.Second)

	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-aEvents:
			if ev.Kind == EvtPeerRTT {
				if ev.RTT <= 0 {
					t.Fatalf("expected a positive RTT measurement, got %v", ev.RTT)
				}
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for a heartbeat RTT measurement")
		}
	}
}

func TestHeartbeatTimeoutFailsSession(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, b := memframe.NewPipe()
	logger := zap.NewNop()

	aEvents := make(chan Event, 8)
	bEvents := make(chan Event, 8)

	cfg := Config{HeartbeatInterval: 10 * time.Millisecond, HeartbeatTimeout: 40 * time.Millisecond}
	aSess := New(netid.NewPeerId(), netid.DirectionIncoming, testNode("a"), a, nil, netid.NetAddress{}, aEvents, cfg, logger)
	bSess := New(netid.NewPeerId(), netid.DirectionIncoming, testNode("b"), b, nil, netid.NetAddress{}, bEvents, cfg, logger)

	bCtx, bCancel := context.WithCancel(ctx)
	go aSess.Run(ctx)
	go bSess.Run(bCtx)

	drainUntilReady(t, aEvents, time.Second)
	drainUntilReady(t, bEvents, time.Second)

	// Silence b by stopping its session while leaving the connection
	// open, simulating a cut network: b no longer answers heartbeats,
	// so a should observe a heartbeat timeout.
	bCancel()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-aEvents:
			if ev.Kind == EvtPeerFailed {
				if !strings.HasPrefix(ev.Reason, "heartbeat timeout") {
					t.Fatalf("expected a heartbeat timeout failure, got reason %q", ev.Reason)
				}
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for PeerFailed after silencing the remote")
		}
	}
}

func TestUnknownMessageKindIsDroppedNotFatal(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, b := memframe.NewPipe()
	logger := zap.NewNop()
	aEvents := make(chan Event, 8)
	bEvents := make(chan Event, 8)

	quietCfg := Config{HeartbeatInterval: time.Hour, HeartbeatTimeout: 2 * time.Hour}
	aSess := New(netid.NewPeerId(), netid.DirectionIncoming, testNode("a"), a, nil, netid.NetAddress{}, aEvents, quietCfg, logger)
	bSess := New(netid.NewPeerId(), netid.DirectionIncoming, testNode("b"), b, nil, netid.NetAddress{}, bEvents, quietCfg, logger)

	go aSess.Run(ctx)
	go bSess.Run(ctx)

	drainUntilReady(t, aEvents, time.Second)
	drainUntilReady(t, bEvents, time.Second)

	if err := b.Send(wire.Message{Kind: wire.Kind(99)}); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	select {
	case ev := <-aEvents:
		t.Fatalf("expected no event from an unknown message kind, got %+v", ev)
	case <-time.After(100 * time.Millisecond):
	}
}
