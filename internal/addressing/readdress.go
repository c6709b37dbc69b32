package addressing

import (
	"sort"

	"github.com/kprusa/rethundersim/internal/nodedata"
)

// Readdress re-assigns logic addresses to restore spec.md §4.6.4's
// tree-preorder monotonicity invariants (§3 "Addressing invariants")
// after the SPT changes shape. It iterates existing logic addresses
// ascending (skipping the root) and, for each node, swaps it upward
// while its father holds a greater logic address, and then repairs
// sibling ordering against the previously-iterated node.
//
// Grounded directly on
// `original_source/protocol/master_node.py::_readdress_nodes`, but
// corrected to spec.md's normative step 4: ascend from previous_node's
// ancestors until the root or father is reached (not a single fixed
// step), trying each ancestor's greatest son in turn.
//
// Readdress returns the number of logic-address swaps it performed, for
// callers that want to record it (e.g. internal/metrics's
// readdress_swaps_total counter).
func Readdress(manager *nodedata.Manager, tree *SPT) int {
	swaps := 0
	logicAddrs := manager.LogicAddresses()
	if len(logicAddrs) == 0 {
		return swaps
	}

	previousAddr := logicAddrs[0] // root, logic address 0
	for _, logicAddr := range logicAddrs[1:] {
		node, ok := manager.NodeByLogic(logicAddr)
		if !ok {
			continue // address moved earlier in this same pass
		}
		previousNode, _ := manager.NodeByLogic(previousAddr)
		previousAddr = logicAddr

		// Step 1: bubble node above a father with a greater address.
		for {
			fatherStatic, hasFather := tree.Father(node.StaticAddress())
			if !hasFather {
				break
			}
			father, _ := manager.NodeByStatic(fatherStatic)
			if *father.LogicAddress() <= *node.LogicAddress() {
				break
			}
			manager.SwapLogicAddress(node, father)
			swaps++
			node = father
		}

		// Step 2: refetch father after bubbling.
		fatherStatic, hasFather := tree.Father(node.StaticAddress())
		if !hasFather {
			continue
		}
		father, _ := manager.NodeByStatic(fatherStatic)
		if father == previousNode {
			continue
		}

		// Step 3: try previousNode's greatest son.
		if greatestSon := greatestSonOf(manager, tree, previousNode.StaticAddress()); greatestSon != nil {
			manager.SwapLogicAddress(node, greatestSon)
			swaps++
			continue
		}

		// Step 4: ascend previousNode's ancestors until root or father.
		ancestorStatic, hasAncestor := tree.Father(previousNode.StaticAddress())
		for hasAncestor {
			if ancestorStatic == tree.Root() || ancestorStatic == father.StaticAddress() {
				break
			}
			greatestSon := greatestSonOf(manager, tree, ancestorStatic)
			if greatestSon != nil && *greatestSon.LogicAddress() > *node.LogicAddress() {
				manager.SwapLogicAddress(node, greatestSon)
				swaps++
				break
			}
			ancestorStatic, hasAncestor = tree.Father(ancestorStatic)
		}
	}

	return swaps
}

// greatestSonOf returns the child of static with the greatest logic
// address, or nil if static has no children.
func greatestSonOf(manager *nodedata.Manager, tree *SPT, static int) *nodedata.Node {
	var best *nodedata.Node
	for _, childStatic := range tree.Children(static) {
		child, ok := manager.NodeByStatic(childStatic)
		if !ok {
			continue
		}
		if best == nil || *child.LogicAddress() > *best.LogicAddress() {
			best = child
		}
	}
	return best
}

// AssignPreorder assigns logic addresses 0, 1, 2, ... to tree's nodes in
// preorder DFS from the root, per spec.md §4.6 "Initialization".
func AssignPreorder(manager *nodedata.Manager, tree *SPT) {
	counter := 0
	var visit func(static int)
	visit = func(static int) {
		node, ok := manager.NodeByStatic(static)
		if ok {
			addr := counter
			_ = manager.SetLogicAddress(node, &addr)
			counter++
		}
		children := append([]int(nil), tree.Children(static)...)
		sort.Ints(children)
		for _, c := range children {
			visit(c)
		}
	}
	visit(tree.Root())
}
