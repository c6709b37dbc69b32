package addressing

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/graph/simple"
)

// ErrGraphNotConnected is returned by BuildSPT when some node is
// unreachable from the root.
var ErrGraphNotConnected = errors.New("addressing: graph is not connected")

// SPT is the shortest-paths tree (spec.md §3 "SPT"): a directed, rooted
// spanning tree of the node graph, root = master. Grounded on
// `original_source/protocol/master_node.py::_update_sptree`
// (`nx.shortest_path` + a tree-building helper over networkx); gonum's
// `graph/path.DijkstraFrom` plays the same role.
type SPT struct {
	root     int
	father   map[int]int
	children map[int][]int
}

// Root returns the SPT's root static address.
func (t *SPT) Root() int { return t.root }

// Father returns static's parent in the tree. ok is false for the root
// or an address not present in the tree.
func (t *SPT) Father(static int) (int, bool) {
	f, ok := t.father[static]
	return f, ok
}

// Children returns static's children in the tree, in no particular
// order.
func (t *SPT) Children(static int) []int {
	return t.children[static]
}

// BuildSPT runs Dijkstra's algorithm from root over gr's noise-weighted
// edges and returns the resulting shortest-paths tree. Every node must
// be reachable from root, or ErrGraphNotConnected is returned — this is
// spec.md §8's "SPT is a tree" invariant, checked at construction time
// rather than after the fact.
func BuildSPT(gr *Graph, root int) (*SPT, error) {
	shortest := path.DijkstraFrom(simple.Node(root), gr.g)

	t := &SPT{
		root:     root,
		father:   make(map[int]int),
		children: make(map[int][]int),
	}

	it := gr.g.Nodes()
	for it.Next() {
		static := int(it.Node().ID())
		if static == root {
			continue
		}
		nodePath, _ := shortest.To(int64(static))
		if len(nodePath) < 2 {
			return nil, errors.Wrapf(ErrGraphNotConnected, "static address %d unreachable from root %d", static, root)
		}
		father := int(nodePath[len(nodePath)-2].ID())
		t.father[static] = father
		t.children[father] = append(t.children[father], static)
	}

	return t, nil
}

// PathTo returns the shortest (by noise weight) sequence of static
// addresses from root to static, inclusive of both endpoints.
func PathTo(gr *Graph, root, static int) ([]int, error) {
	shortest := path.DijkstraFrom(simple.Node(root), gr.g)
	nodePath, _ := shortest.To(int64(static))
	if len(nodePath) == 0 {
		return nil, errors.Wrapf(ErrGraphNotConnected, "static address %d unreachable from root %d", static, root)
	}
	out := make([]int, len(nodePath))
	for i, n := range nodePath {
		out[i] = int(n.ID())
	}
	return out, nil
}
