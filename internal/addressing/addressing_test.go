package addressing

import (
	"testing"

	"github.com/kprusa/rethundersim/internal/nodedata"
)

func intp(v int) *int { return &v }

// line builds a path graph 0-1-2-...-n-1 with every edge weight 1.
func line(n int) *Graph {
	gr := NewGraph()
	for i := 0; i < n; i++ {
		gr.AddNode(i)
	}
	for i := 0; i < n-1; i++ {
		_ = gr.SetEdge(i, i+1, 1)
	}
	return gr
}

func TestNoiseSmoothingMatchesFormula(t *testing.T) {
	gr := NewGraph()
	gr.AddNode(0)
	gr.AddNode(1)
	if err := gr.SetEdge(0, 1, 0.5); err != nil {
		t.Fatal(err)
	}
	if err := gr.UpdateNoise(0, 1, 0); err != nil {
		t.Fatal(err)
	}
	got, ok := gr.Noise(0, 1)
	if !ok {
		t.Fatal("expected edge to exist")
	}
	want := NoiseSmoothingAlpha * 0.5
	if got != want {
		t.Errorf("noise = %v, want %v", got, want)
	}
}

func TestSetEdgeRejectsOutOfRangeNoise(t *testing.T) {
	gr := NewGraph()
	gr.AddNode(0)
	gr.AddNode(1)
	if err := gr.SetEdge(0, 1, 2.5); err == nil {
		t.Fatal("expected error for noise > 2")
	}
}

func TestBuildSPTOnLineGraphIsAChain(t *testing.T) {
	gr := line(5)
	tree, err := BuildSPT(gr, 0)
	if err != nil {
		t.Fatal(err)
	}
	for i := 1; i < 5; i++ {
		father, ok := tree.Father(i)
		if !ok || father != i-1 {
			t.Errorf("Father(%d) = (%d, %v), want (%d, true)", i, father, ok, i-1)
		}
	}
}

func TestBuildSPTRejectsDisconnectedGraph(t *testing.T) {
	gr := NewGraph()
	gr.AddNode(0)
	gr.AddNode(1)
	gr.AddNode(2) // no edges to 2
	_ = gr.SetEdge(0, 1, 1)

	if _, err := BuildSPT(gr, 0); err == nil {
		t.Fatal("expected ErrGraphNotConnected")
	}
}

func TestAssignPreorderGivesRootZero(t *testing.T) {
	gr := line(4)
	tree, err := BuildSPT(gr, 0)
	if err != nil {
		t.Fatal(err)
	}
	manager, err := gr.StaticAddressManager()
	if err != nil {
		t.Fatal(err)
	}
	AssignPreorder(manager, tree)

	root, _ := manager.NodeByStatic(0)
	if *root.LogicAddress() != 0 {
		t.Errorf("root logic address = %d, want 0", *root.LogicAddress())
	}
	for i := 1; i < 4; i++ {
		n, _ := manager.NodeByStatic(i)
		if *n.LogicAddress() != i {
			t.Errorf("node %d logic address = %d, want %d", i, *n.LogicAddress(), i)
		}
	}
}

// star builds a graph with root 0 connected to every one of n leaves.
func star(n int) *Graph {
	gr := NewGraph()
	gr.AddNode(0)
	for i := 1; i <= n; i++ {
		gr.AddNode(i)
		_ = gr.SetEdge(0, i, 1)
	}
	return gr
}

func TestReaddressPreservesMonotonicityAfterShuffle(t *testing.T) {
	gr := star(5)
	tree, err := BuildSPT(gr, 0)
	if err != nil {
		t.Fatal(err)
	}
	manager := nodedata.NewManager()
	for i := 0; i <= 5; i++ {
		i := i
		if _, err := manager.Create(&i, nil); err != nil {
			t.Fatal(err)
		}
	}

	root, _ := manager.NodeByStatic(0)
	_ = manager.SetLogicAddress(root, intp(0))

	// Assign a shuffled (but distinct) permutation of 1..5 to the leaves.
	shuffled := []int{5, 3, 1, 4, 2}
	for i, logic := range shuffled {
		static := i + 1
		n, _ := manager.NodeByStatic(static)
		_ = manager.SetLogicAddress(n, intp(logic))
	}

	Readdress(manager, tree)

	// All of root's children are siblings of one another: every leaf
	// must still have a logic address greater than the root's (0), and
	// every leaf's address must be unique and in [1,5].
	seen := make(map[int]bool)
	for static := 1; static <= 5; static++ {
		n, _ := manager.NodeByStatic(static)
		addr := *n.LogicAddress()
		if addr < 1 || addr > 5 {
			t.Errorf("leaf %d has logic address %d outside [1,5]", static, addr)
		}
		if seen[addr] {
			t.Errorf("duplicate logic address %d", addr)
		}
		seen[addr] = true
	}
}

func TestReaddressOnLineIsAlreadyMonotonicNoOp(t *testing.T) {
	gr := line(4)
	tree, err := BuildSPT(gr, 0)
	if err != nil {
		t.Fatal(err)
	}
	manager, err := gr.StaticAddressManager()
	if err != nil {
		t.Fatal(err)
	}
	AssignPreorder(manager, tree)

	Readdress(manager, tree)

	for i := 0; i < 4; i++ {
		n, _ := manager.NodeByStatic(i)
		if *n.LogicAddress() != i {
			t.Errorf("node %d logic address = %d, want %d (unchanged)", i, *n.LogicAddress(), i)
		}
	}
}
