package graph

import (
	"testing"
	"time"

	"github.com/crocme10/area-net/internal/netid"
)

func newNode(label string) netid.NodeInfo {
	return netid.NodeInfo{NodeId: netid.NewNodeId(), Label: netid.Label(label)}
}

func alwaysLive(netid.NodeId) bool { return true }

func TestMergeInsertsNodesAndEdges(t *testing.T) {
	self := newNode("self")
	other := newNode("other")

	g := New(self)
	snap := Snapshot{
		Nodes: []netid.NodeInfo{self, other},
		Edges: []Edge{{From: self.NodeId, To: other.NodeId}},
	}
	g.Merge(snap, MergeOptions{MaxNodes: 10, IsLive: alwaysLive})

	if _, ok := g.Node(other.NodeId); !ok {
		t.Fatalf("expected merged node to be present")
	}
	if _, ok := g.Edge(self.NodeId, other.NodeId); !ok {
		t.Fatalf("expected merged edge to be present")
	}
}

func TestMergeIsIdempotent(t *testing.T) {
	self := newNode("self")
	a := newNode("a")
	b := newNode("b")
	rtt := 20 * time.Millisecond

	snap := Snapshot{
		Nodes: []netid.NodeInfo{self, a, b},
		Edges: []Edge{
			{From: self.NodeId, To: a.NodeId, RTT: &rtt},
			{From: a.NodeId, To: b.NodeId},
		},
	}

	g := New(self)
	g.Merge(snap, MergeOptions{MaxNodes: 10, IsLive: alwaysLive})
	first := g.ToSnapshot()

	g.Merge(snap, MergeOptions{MaxNodes: 10, IsLive: alwaysLive})
	second := g.ToSnapshot()

	if len(first.Nodes) != len(second.Nodes) || len(first.Edges) != len(second.Edges) {
		t.Fatalf("merge is not idempotent: first=%+v second=%+v", first, second)
	}
}

func TestMergeRTTReconciliationKeepsMinimum(t *testing.T) {
	self := newNode("self")
	a := newNode("a")
	slow := 50 * time.Millisecond
	fast := 10 * time.Millisecond

	g := New(self)
	g.Merge(Snapshot{
		Nodes: []netid.NodeInfo{self, a},
		Edges: []Edge{{From: self.NodeId, To: a.NodeId, RTT: &slow}},
	}, MergeOptions{MaxNodes: 10, IsLive: alwaysLive})

	g.Merge(Snapshot{
		Nodes: []netid.NodeInfo{self, a},
		Edges: []Edge{{From: self.NodeId, To: a.NodeId, RTT: &fast}},
	}, MergeOptions{MaxNodes: 10, IsLive: alwaysLive})

	e, ok := g.Edge(self.NodeId, a.NodeId)
	if !ok || e.RTT == nil || *e.RTT != fast {
		t.Fatalf("expected reconciled RTT to be the minimum observed (%v), got %+v", fast, e)
	}
}

func TestMergePrunesSelfIncidentEdgeWhenNotLive(t *testing.T) {
	self := newNode("self")
	a := newNode("a")

	g := New(self)
	g.Merge(Snapshot{
		Nodes: []netid.NodeInfo{self, a},
		Edges: []Edge{{From: self.NodeId, To: a.NodeId}},
	}, MergeOptions{MaxNodes: 10, IsLive: func(netid.NodeId) bool { return false }})

	if _, ok := g.Edge(self.NodeId, a.NodeId); ok {
		t.Fatalf("expected self-incident edge with no live backing session to be pruned")
	}
}

func TestMergePrunesIsolatedNonSelfNodes(t *testing.T) {
	self := newNode("self")
	isolated := newNode("isolated")

	g := New(self)
	g.Merge(Snapshot{Nodes: []netid.NodeInfo{self, isolated}}, MergeOptions{MaxNodes: 10, IsLive: alwaysLive})

	if _, ok := g.Node(isolated.NodeId); ok {
		t.Fatalf("expected isolated non-self node to be pruned")
	}
	if _, ok := g.Node(self.NodeId); !ok {
		t.Fatalf("self node must never be pruned")
	}
}

func TestMergeCapDropsFewestIncidentEdgesFirst(t *testing.T) {
	self := newNode("self")
	busy := newNode("busy")
	quiet := newNode("quiet")
	extra := newNode("extra")

	g := New(self)
	g.Merge(Snapshot{
		Nodes: []netid.NodeInfo{self, busy, quiet, extra},
		Edges: []Edge{
			{From: self.NodeId, To: busy.NodeId},
			{From: busy.NodeId, To: quiet.NodeId},
			{From: self.NodeId, To: extra.NodeId},
		},
	}, MergeOptions{MaxNodes: 2, IsLive: alwaysLive})

	if _, ok := g.Node(busy.NodeId); !ok {
		t.Fatalf("expected node with most incident edges to survive the cap")
	}
	nonSelf := 0
	for _, n := range g.Nodes() {
		if n.NodeId != self.NodeId {
			nonSelf++
		}
	}
	if nonSelf > 2 {
		t.Fatalf("expected at most 2 non-self nodes after capping, got %d", nonSelf)
	}
}

func TestToSnapshotIsOrderDeterministic(t *testing.T) {
	self := newNode("self")
	a := newNode("a")
	b := newNode("b")

	g := New(self)
	g.Merge(Snapshot{
		Nodes: []netid.NodeInfo{self, a, b},
		Edges: []Edge{{From: self.NodeId, To: a.NodeId}, {From: self.NodeId, To: b.NodeId}},
	}, MergeOptions{MaxNodes: 10, IsLive: alwaysLive})

	first := g.ToSnapshot()
	for i := 0; i < 5; i++ {
		again := g.ToSnapshot()
		if len(again.Nodes) != len(first.Nodes) || len(again.Edges) != len(first.Edges) {
			t.Fatalf("unexpected snapshot size drift between calls")
		}
		for j := range first.Nodes {
			if first.Nodes[j].NodeId != again.Nodes[j].NodeId {
				t.Fatalf("ToSnapshot node order is not deterministic across calls")
			}
		}
		for j := range first.Edges {
			if first.Edges[j].From != again.Edges[j].From || first.Edges[j].To != again.Edges[j].To {
				t.Fatalf("ToSnapshot edge order is not deterministic across calls")
			}
		}
	}
}

func TestCheckInvariantsCatchesDanglingEdgeEndpoint(t *testing.T) {
	self := newNode("self")
	g := New(self)
	g.PutEdge(Edge{From: self.NodeId, To: netid.NewNodeId()})

	if err := g.CheckInvariants(); err == nil {
		t.Fatalf("expected CheckInvariants to catch an edge endpoint absent from the node set")
	}
}
