package diagram

import (
	"strings"
	"testing"
	"time"

	"github.com/crocme10/area-net/internal/graph"
	"github.com/crocme10/area-net/internal/netid"
)

func TestD2RendererMarksSelfAndSortsNodes(t *testing.T) {
	self := netid.NodeId{}
	other := netid.NewNodeId()
	snap := graph.Snapshot{
		Nodes: []netid.NodeInfo{
			{NodeId: self, Label: "self-node"},
			{NodeId: other, Label: "other-node"},
		},
	}

	var buf strings.Builder
	if err := (D2Renderer{}).Render(&buf, self, snap); err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, `"self-node (self)"`) {
		t.Fatalf("expected self node to be marked, got:\n%s", out)
	}
	if !strings.Contains(out, `"other-node"`) {
		t.Fatalf("expected other node label to appear, got:\n%s", out)
	}
	if strings.Index(out, `"self-node (self)"`) > strings.Index(out, `"other-node"`) {
		t.Fatalf("expected nodes sorted by NodeId, the zero id first, got:\n%s", out)
	}
}

func TestD2RendererFallsBackToNodeIdWhenLabelMissing(t *testing.T) {
	self := netid.NewNodeId()
	unlabeled := netid.NewNodeId()
	snap := graph.Snapshot{Nodes: []netid.NodeInfo{{NodeId: self}, {NodeId: unlabeled}}}

	var buf strings.Builder
	if err := (D2Renderer{}).Render(&buf, self, snap); err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, unlabeled.String()) {
		t.Fatalf("expected the raw NodeId to be used when no label is set, got:\n%s", out)
	}
}

func TestD2RendererAnnotatesEdgesWithRTT(t *testing.T) {
	a, b := netid.NewNodeId(), netid.NewNodeId()
	rtt := 15 * time.Millisecond
	snap := graph.Snapshot{
		Nodes: []netid.NodeInfo{{NodeId: a, Label: "a"}, {NodeId: b, Label: "b"}},
		Edges: []graph.Edge{{From: a, To: b, RTT: &rtt}},
	}

	var buf strings.Builder
	if err := (D2Renderer{}).Render(&buf, a, snap); err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, `"a (self)" -> "b": "15ms"`) {
		t.Fatalf("expected an RTT-annotated edge line, got:\n%s", out)
	}
}

func TestD2RendererOmitsRTTWhenUnset(t *testing.T) {
	a, b := netid.NewNodeId(), netid.NewNodeId()
	snap := graph.Snapshot{
		Nodes: []netid.NodeInfo{{NodeId: a, Label: "a"}, {NodeId: b, Label: "b"}},
		Edges: []graph.Edge{{From: a, To: b}},
	}

	var buf strings.Builder
	if err := (D2Renderer{}).Render(&buf, netid.NewNodeId(), snap); err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	if !strings.Contains(buf.String(), `"a" -> "b"`+"\n") {
		t.Fatalf("expected a plain edge line with no RTT, got:\n%s", buf.String())
	}
}
