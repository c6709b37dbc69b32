// Package addressing implements the master-side node graph, its
// shortest-paths tree, and the logic-address re-assignment algorithm
// that keeps tree-preorder monotonicity (spec.md §3 "Node graph"/"SPT",
// §4.6.4).
//
// The graph itself is grounded on
// `original_source/protocol/master_node.py`'s `node_graph`
// (a networkx Graph); gonum.org/v1/gonum/graph/simple is this pack's
// equivalent weighted-graph library, wired per SPEC_FULL.md's domain
// stack.
package addressing

import (
	"math"
	"sort"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/graph/simple"

	"github.com/kprusa/rethundersim/internal/nodedata"
)

// NoiseSmoothingAlpha is the exponential-smoothing weight given to an
// edge's prior noise value: noise_new = alpha*noise_old + (1-alpha)*observed.
const NoiseSmoothingAlpha = 2.0 / 3.0

// ErrNoiseOutOfRange is returned when an initial or observed noise value
// falls outside [0, 2].
var ErrNoiseOutOfRange = errors.New("addressing: noise value out of [0, 2]")

// Graph is an undirected, noise-weighted graph over static addresses.
// Nodes are keyed by their static address, used directly as the gonum
// integer node ID.
type Graph struct {
	g *simple.WeightedUndirectedGraph
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{g: simple.NewWeightedUndirectedGraph(0, math.Inf(1))}
}

// AddNode ensures static is present in the graph, with no edges.
func (gr *Graph) AddNode(static int) {
	gr.g.AddNode(simple.Node(static))
}

// SetEdge sets (or resets) the noise-weighted edge between two static
// addresses. noise must be in [0, 2].
func (gr *Graph) SetEdge(a, b int, noise float64) error {
	if noise < 0 || noise > 2 {
		return errors.Wrapf(ErrNoiseOutOfRange, "noise=%v", noise)
	}
	gr.g.SetWeightedEdge(simple.WeightedEdge{F: simple.Node(a), T: simple.Node(b), W: noise})
	return nil
}

// Noise returns the current edge weight between a and b, if an edge
// exists.
func (gr *Graph) Noise(a, b int) (float64, bool) {
	return gr.g.Weight(int64(a), int64(b))
}

// UpdateNoise applies exponential smoothing to the edge between a and b
// given a freshly observed noise sample, per spec.md §3/§8's "noise
// smoothing" invariant. If no edge exists yet, observed becomes the
// initial weight.
func (gr *Graph) UpdateNoise(a, b int, observed float64) error {
	if observed < 0 || observed > 2 {
		return errors.Wrapf(ErrNoiseOutOfRange, "observed=%v", observed)
	}
	old, ok := gr.Noise(a, b)
	if !ok {
		return gr.SetEdge(a, b, observed)
	}
	return gr.SetEdge(a, b, NoiseSmoothingAlpha*old+(1-NoiseSmoothingAlpha)*observed)
}

// Neighbors returns the static addresses adjacent to static.
func (gr *Graph) Neighbors(static int) []int {
	it := gr.g.From(int64(static))
	var out []int
	for it.Next() {
		out = append(out, int(it.Node().ID()))
	}
	return out
}

// NodeCount returns the number of nodes currently in the graph.
func (gr *Graph) NodeCount() int {
	return gr.g.Nodes().Len()
}

// FromStaticAddrGraph builds a Graph from a plain adjacency map of
// static addresses (as External Interfaces §6 describes the node-graph
// input), assigning initialNoise to every edge. initialNoise must be in
// [0, 2].
func FromStaticAddrGraph(adjacency map[int][]int, initialNoise float64) (*Graph, error) {
	if initialNoise < 0 || initialNoise > 2 {
		return nil, errors.Wrapf(ErrNoiseOutOfRange, "initialNoise=%v", initialNoise)
	}

	gr := NewGraph()
	for static := range adjacency {
		gr.AddNode(static)
	}
	seen := make(map[[2]int]bool)
	for a, neighbors := range adjacency {
		for _, b := range neighbors {
			key := [2]int{a, b}
			if a > b {
				key = [2]int{b, a}
			}
			if seen[key] {
				continue
			}
			seen[key] = true
			if err := gr.SetEdge(a, b, initialNoise); err != nil {
				return nil, err
			}
		}
	}
	return gr, nil
}

// StaticAddressManager builds a nodedata.Manager populated with one
// nodedata.Node per graph node, ordering Create calls ascending by
// static address so address assignment is deterministic.
func (gr *Graph) StaticAddressManager() (*nodedata.Manager, error) {
	m := nodedata.NewManager()
	it := gr.g.Nodes()
	var addrs []int
	for it.Next() {
		addrs = append(addrs, int(it.Node().ID()))
	}
	sort.Ints(addrs)
	for _, addr := range addrs {
		addr := addr
		if _, err := m.Create(&addr, nil); err != nil {
			return nil, err
		}
	}
	return m, nil
}
