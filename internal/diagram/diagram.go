// Package diagram renders a graph snapshot to a human-viewable text
// format alongside the machine-readable peers.json state dump.
package diagram

import (
	"fmt"
	"io"
	"sort"

	"github.com/crocme10/area-net/internal/graph"
	"github.com/crocme10/area-net/internal/netid"
)

// Renderer turns a graph snapshot into a diagram body written to w.
// When diagram.enabled is set, the status monitor (spec §4.6) renders
// the graph with the Controller's Renderer (always D2Renderer; config
// only turns the diagram on or off) and writes the output with the
// same atomic temp-then-rename sequence used for peers.json.
type Renderer interface {
	Render(w io.Writer, self netid.NodeId, snap graph.Snapshot) error
}

// D2Renderer emits a D2-flavored (https://d2lang.com) edge list. It is
// the only Renderer shipped; SPEC_FULL.md §4.6 leaves the diagram
// syntax itself as a pluggable Open Question, resolved here by making
// Renderer an interface rather than hard-coding one format.
type D2Renderer struct{}

func (D2Renderer) Render(w io.Writer, self netid.NodeId, snap graph.Snapshot) error {
	labels := make(map[netid.NodeId]string, len(snap.Nodes))
	for _, n := range snap.Nodes {
		labels[n.NodeId] = string(n.Label)
	}
	label := func(id netid.NodeId) string {
		name := id.String()
		if l, ok := labels[id]; ok && l != "" {
			name = l
		}
		if id == self {
			name += " (self)"
		}
		return name
	}

	ids := make([]netid.NodeId, 0, len(snap.Nodes))
	for _, n := range snap.Nodes {
		ids = append(ids, n.NodeId)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })

	for _, id := range ids {
		if _, err := fmt.Fprintf(w, "%q\n", label(id)); err != nil {
			return err
		}
	}

	edges := append([]graph.Edge(nil), snap.Edges...)
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].From != edges[j].From {
			return edges[i].From.String() < edges[j].From.String()
		}
		return edges[i].To.String() < edges[j].To.String()
	})

	for _, e := range edges {
		if e.RTT != nil {
			if _, err := fmt.Fprintf(w, "%q -> %q: %q\n", label(e.From), label(e.To), e.RTT.String()); err != nil {
				return err
			}
			continue
		}
		if _, err := fmt.Fprintf(w, "%q -> %q\n", label(e.From), label(e.To)); err != nil {
			return err
		}
	}
	return nil
}
