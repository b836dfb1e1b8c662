// Package graph implements the directed, possibly-cyclic network graph
// each node maintains as its approximate view of overlay membership,
// edges, and per-edge round-trip times, along with the deterministic
// merge used to converge gossiped views.
//
// The graph is represented the way cyclic structures have to be in Go:
// an indexed mapping from NodeId to NodeInfo, plus edges stored as
// (from, to) pairs. There is no ownership between nodes, only NodeId
// references, so pruning a node can never leave a dangling pointer —
// only a dangling edge, which pruning also removes.
package graph

import (
	"sort"
	"time"

	"github.com/crocme10/area-net/internal/netid"
)

// EdgeKey identifies a directed edge by its endpoints.
type EdgeKey struct {
	From netid.NodeId
	To   netid.NodeId
}

// Edge is a directed pair (dialer, acceptor) with an optional
// round-trip-time observation.
type Edge struct {
	From netid.NodeId
	To   netid.NodeId
	RTT  *time.Duration
}

func (e Edge) Key() EdgeKey { return EdgeKey{From: e.From, To: e.To} }

// Clone returns a deep copy of the Edge so snapshots handed to callers
// never alias the RTT pointer.
func (e Edge) Clone() Edge {
	out := Edge{From: e.From, To: e.To}
	if e.RTT != nil {
		rtt := *e.RTT
		out.RTT = &rtt
	}
	return out
}

// Graph is the in-memory network-graph representation. The zero value
// is not usable; construct with New.
type Graph struct {
	self  netid.NodeId
	nodes map[netid.NodeId]netid.NodeInfo
	edges map[EdgeKey]Edge
}

// New creates an empty Graph rooted at self, inserting self's own
// NodeInfo immediately so the graph always contains its own node, per
// the invariant in spec §3.
func New(self netid.NodeInfo) *Graph {
	g := &Graph{
		self:  self.NodeId,
		nodes: map[netid.NodeId]netid.NodeInfo{},
		edges: map[EdgeKey]Edge{},
	}
	g.nodes[self.NodeId] = self
	return g
}

// Self returns the NodeId this graph is rooted at.
func (g *Graph) Self() netid.NodeId { return g.self }

// UpsertNode inserts or replaces a NodeInfo entry.
func (g *Graph) UpsertNode(info netid.NodeInfo) {
	g.nodes[info.NodeId] = info
}

// Node looks up a NodeInfo by id.
func (g *Graph) Node(id netid.NodeId) (netid.NodeInfo, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Nodes returns a snapshot slice of all known NodeInfo values.
func (g *Graph) Nodes() []netid.NodeInfo {
	out := make([]netid.NodeInfo, 0, len(g.nodes))
	for _, n := range g.nodes {
		out = append(out, n)
	}
	return out
}

// PutEdge inserts or replaces an edge. Both endpoints must already
// exist as nodes; callers are expected to UpsertNode first, matching
// the invariant that every edge endpoint is a key in the node mapping.
func (g *Graph) PutEdge(e Edge) {
	g.edges[e.Key()] = e
}

// RemoveEdge removes the edge (from, to) if present.
func (g *Graph) RemoveEdge(from, to netid.NodeId) {
	delete(g.edges, EdgeKey{From: from, To: to})
}

// Edge looks up a single directed edge.
func (g *Graph) Edge(from, to netid.NodeId) (Edge, bool) {
	e, ok := g.edges[EdgeKey{From: from, To: to}]
	return e, ok
}

// Edges returns a snapshot slice of all edges.
func (g *Graph) Edges() []Edge {
	out := make([]Edge, 0, len(g.edges))
	for _, e := range g.edges {
		out = append(out, e)
	}
	return out
}

// EdgesFrom returns the edges whose From endpoint is id.
func (g *Graph) EdgesFrom(id netid.NodeId) []Edge {
	var out []Edge
	for _, e := range g.edges {
		if e.From == id {
			out = append(out, e)
		}
	}
	return out
}

// RemoveNode deletes a node and every edge incident to it. Never
// removes the graph's own self node.
func (g *Graph) RemoveNode(id netid.NodeId) {
	if id == g.self {
		return
	}
	delete(g.nodes, id)
	for k := range g.edges {
		if k.From == id || k.To == id {
			delete(g.edges, k)
		}
	}
}

// Clone returns a deep copy suitable for handing to the status monitor
// or a gossip round without risking concurrent mutation of the
// controller's live graph.
func (g *Graph) Clone() *Graph {
	out := &Graph{
		self:  g.self,
		nodes: make(map[netid.NodeId]netid.NodeInfo, len(g.nodes)),
		edges: make(map[EdgeKey]Edge, len(g.edges)),
	}
	for k, v := range g.nodes {
		out.nodes[k] = v
	}
	for k, v := range g.edges {
		out.edges[k] = v.Clone()
	}
	return out
}

// Snapshot is the wire/JSON-friendly value form of a Graph, used both
// for ContactsRequest/ContactsResponse payloads and for diagram/status
// rendering.
type Snapshot struct {
	Nodes []netid.NodeInfo `json:"nodes"`
	Edges []Edge           `json:"edges"`
}

// ToSnapshot converts the graph to its wire representation. Nodes and
// edges are sorted into a deterministic order so that two snapshots of
// unchanged graph content hash identically (internal/cache's
// per-source merge dedup relies on this).
func (g *Graph) ToSnapshot() Snapshot {
	nodes := g.Nodes()
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].NodeId.String() < nodes[j].NodeId.String() })

	edges := g.Edges()
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].From != edges[j].From {
			return edges[i].From.String() < edges[j].From.String()
		}
		return edges[i].To.String() < edges[j].To.String()
	})

	return Snapshot{Nodes: nodes, Edges: edges}
}

// FromSnapshot builds a standalone Graph from a wire snapshot. The
// resulting graph's "self" is the given id purely so invariants that
// reference self behave sensibly; callers merging a remote snapshot
// into their own live graph should use Merge instead of treating this
// as their canonical graph.
func FromSnapshot(self netid.NodeId, snap Snapshot) *Graph {
	g := &Graph{
		self:  self,
		nodes: make(map[netid.NodeId]netid.NodeInfo, len(snap.Nodes)),
		edges: make(map[EdgeKey]Edge, len(snap.Edges)),
	}
	for _, n := range snap.Nodes {
		g.nodes[n.NodeId] = n
	}
	for _, e := range snap.Edges {
		g.edges[e.Key()] = e.Clone()
	}
	return g
}

// LiveOutgoing reports whether the local graph currently believes it
// has a live, self-authoritative outgoing edge to `to`. The discovery
// loop's merge rules use this to decide whether a self-incident edge
// reported only by a remote peer should be pruned.
type LiveOutgoing func(to netid.NodeId) bool

// MergeOptions bounds the merge: MaxNodes caps the number of
// non-self, non-isolated nodes retained after merge.
type MergeOptions struct {
	MaxNodes int
	IsLive   LiveOutgoing
}

// Merge folds `incoming` into g using the deterministic rules from
// spec §4.7:
//
//   - nodes absent locally are inserted; nodes present locally keep
//     the local entry even if the incoming Label/Listen differ (local
//     observations are no-less-recent);
//   - edges are unioned; an edge present on both sides keeps the
//     smaller observed RTT;
//   - an edge incident to g.Self() that the local node is not
//     currently backing with a live outgoing session is pruned
//     (self-authoritative pruning);
//   - after merging, nodes with no incident edges (other than self)
//     are pruned, and if more than MaxNodes non-self nodes remain the
//     ones with fewest incident edges are dropped first, ties broken
//     by largest NodeId.
//
// Merge is idempotent (merge(g,g) == g) and commutative/associative on
// the node and edge sets; RTT reconciliation is a min, which is
// itself associative and commutative.
func (g *Graph) Merge(incoming Snapshot, opts MergeOptions) {
	for _, n := range incoming.Nodes {
		if _, ok := g.nodes[n.NodeId]; !ok {
			g.nodes[n.NodeId] = n
		}
	}

	for _, e := range incoming.Edges {
		g.unionEdge(e)
	}

	g.pruneSelfAuthoritative(opts.IsLive)
	g.pruneIsolated()
	g.pruneToCap(opts.MaxNodes)
}

func (g *Graph) unionEdge(e Edge) {
	key := e.Key()
	existing, ok := g.edges[key]
	if !ok {
		g.edges[key] = e.Clone()
		return
	}
	if existing.RTT == nil {
		existing.RTT = cloneRTT(e.RTT)
	} else if e.RTT != nil && *e.RTT < *existing.RTT {
		rtt := *e.RTT
		existing.RTT = &rtt
	}
	g.edges[key] = existing
}

func cloneRTT(rtt *time.Duration) *time.Duration {
	if rtt == nil {
		return nil
	}
	v := *rtt
	return &v
}

func (g *Graph) pruneSelfAuthoritative(isLive LiveOutgoing) {
	if isLive == nil {
		return
	}
	for k := range g.edges {
		if k.From == g.self && !isLive(k.To) {
			delete(g.edges, k)
		}
	}
}

func (g *Graph) pruneIsolated() {
	incident := map[netid.NodeId]bool{}
	for k := range g.edges {
		incident[k.From] = true
		incident[k.To] = true
	}
	for id := range g.nodes {
		if id == g.self {
			continue
		}
		if !incident[id] {
			delete(g.nodes, id)
		}
	}
}

func (g *Graph) pruneToCap(maxNodes int) {
	if maxNodes <= 0 {
		return
	}
	nonSelf := make([]netid.NodeId, 0, len(g.nodes))
	for id := range g.nodes {
		if id != g.self {
			nonSelf = append(nonSelf, id)
		}
	}
	if len(nonSelf) <= maxNodes {
		return
	}

	degree := map[netid.NodeId]int{}
	for k := range g.edges {
		degree[k.From]++
		degree[k.To]++
	}

	// Sort by ascending degree, ties broken by largest NodeId first
	// (so the largest-id node among equal-degree ties is dropped
	// first), then drop from the front until within budget.
	for i := 0; i < len(nonSelf); i++ {
		for j := i + 1; j < len(nonSelf); j++ {
			a, b := nonSelf[i], nonSelf[j]
			if degree[a] > degree[b] || (degree[a] == degree[b] && a.Less(b)) {
				nonSelf[i], nonSelf[j] = nonSelf[j], nonSelf[i]
			}
		}
	}

	excess := len(nonSelf) - maxNodes
	for _, id := range nonSelf[:excess] {
		g.RemoveNode(id)
	}
}

// CheckInvariants validates the spec §8 structural invariants and
// returns a non-nil error describing the first violation found. It is
// intended for use in tests, not on the hot path.
func (g *Graph) CheckInvariants() error {
	for k := range g.edges {
		if _, ok := g.nodes[k.From]; !ok {
			return &InvariantError{Detail: "edge endpoint not in node set: " + k.From.String()}
		}
		if _, ok := g.nodes[k.To]; !ok {
			return &InvariantError{Detail: "edge endpoint not in node set: " + k.To.String()}
		}
	}
	return nil
}

// InvariantError reports a violated graph invariant.
type InvariantError struct{ Detail string }

func (e *InvariantError) Error() string { return "graph invariant violated: " + e.Detail }
