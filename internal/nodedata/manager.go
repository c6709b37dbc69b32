// Package nodedata implements the master-side node-data manager: a
// bidirectional index between static addresses, node records, and logic
// addresses, supporting swap-in-place reassignment of logic addresses
// (spec.md §3 "Node identity", §4.6.4).
//
// Ported from the reference simulator's
// protocol/node_data_manager.py (NodeDataManager/NodeData, built on a
// sortedcontainers.SortedDict). No pack repo wires a sorted-map library,
// so this is translated to plain Go maps plus a sorted []int kept in
// order by insertion/removal via sort.Search — the same bisect
// operations the Python used, expressed with the stdlib.
package nodedata

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/kprusa/rethundersim/internal/packet"
)

// ErrDuplicateStaticAddress is returned by Create when the requested
// static address is already registered.
var ErrDuplicateStaticAddress = errors.New("nodedata: static address already registered")

// ErrAddressExhausted is returned when no address remains in
// [0, packet.MaxAddress].
var ErrAddressExhausted = errors.New("nodedata: address space exhausted")

// Node is one physical node's record: its fixed static address, its
// assigned logic address (nil if unassigned), and the logic address the
// master believes the node currently holds (nil after a failed or
// ambiguous exchange).
type Node struct {
	staticAddress        int
	logicAddress         *int
	currentLogicAddress  *int
}

// StaticAddress returns the node's fixed address.
func (n *Node) StaticAddress() int { return n.staticAddress }

// LogicAddress returns the node's assigned logic address, or nil.
func (n *Node) LogicAddress() *int { return n.logicAddress }

// CurrentLogicAddress returns the logic address the master believes the
// node currently holds, or nil.
func (n *Node) CurrentLogicAddress() *int { return n.currentLogicAddress }

// SetCurrentLogicAddress records the logic address the master believes
// the node has actually adopted (set on a successful response, cleared
// on an answer timeout).
func (n *Node) SetCurrentLogicAddress(addr *int) { n.currentLogicAddress = addr }

// Manager is the bidirectional static<->node<->logic index.
type Manager struct {
	staticToNode map[int]*Node
	staticAddrs  []int // ascending

	logicToNode map[int]*Node
	logicAddrs  []int // ascending
}

// NewManager returns an empty manager.
func NewManager() *Manager {
	return &Manager{
		staticToNode: make(map[int]*Node),
		logicToNode:  make(map[int]*Node),
	}
}

// Len returns the number of registered nodes.
func (m *Manager) Len() int { return len(m.staticToNode) }

// NodeByStatic looks up a node by its static address.
func (m *Manager) NodeByStatic(addr int) (*Node, bool) {
	n, ok := m.staticToNode[addr]
	return n, ok
}

// NodeByLogic looks up a node by its current logic address assignment.
func (m *Manager) NodeByLogic(addr int) (*Node, bool) {
	n, ok := m.logicToNode[addr]
	return n, ok
}

// StaticAddresses returns every registered static address, ascending.
func (m *Manager) StaticAddresses() []int {
	out := make([]int, len(m.staticAddrs))
	copy(out, m.staticAddrs)
	return out
}

// LogicAddresses returns every assigned logic address, ascending.
func (m *Manager) LogicAddresses() []int {
	out := make([]int, len(m.logicAddrs))
	copy(out, m.logicAddrs)
	return out
}

// Create registers a new node. If staticAddress is nil, the smallest
// free static address is assigned. If logicAddress is non-nil, it is
// assigned immediately via SetLogicAddress.
func (m *Manager) Create(staticAddress, logicAddress *int) (*Node, error) {
	addr, err := m.resolveStatic(staticAddress)
	if err != nil {
		return nil, err
	}

	node := &Node{staticAddress: addr}
	m.staticToNode[addr] = node
	insertSorted(&m.staticAddrs, addr)

	if logicAddress != nil {
		if err := m.SetLogicAddress(node, logicAddress); err != nil {
			delete(m.staticToNode, addr)
			removeSorted(&m.staticAddrs, addr)
			return nil, err
		}
	}

	return node, nil
}

func (m *Manager) resolveStatic(requested *int) (int, error) {
	if requested == nil {
		return m.GetFreeStaticAddress()
	}
	addr := *requested
	if _, exists := m.staticToNode[addr]; exists {
		return 0, errors.Wrapf(ErrDuplicateStaticAddress, "static address %d", addr)
	}
	return addr, nil
}

// SetLogicAddress assigns node a new logic address (nil to unassign),
// updating the reverse index.
func (m *Manager) SetLogicAddress(node *Node, addr *int) error {
	if addr != nil {
		if existing, ok := m.logicToNode[*addr]; ok && existing != node {
			return errors.Errorf("nodedata: logic address %d already assigned", *addr)
		}
	}

	if node.logicAddress != nil {
		delete(m.logicToNode, *node.logicAddress)
		removeSorted(&m.logicAddrs, *node.logicAddress)
	}
	if addr != nil {
		m.logicToNode[*addr] = node
		insertSorted(&m.logicAddrs, *addr)
	}
	node.logicAddress = addr
	return nil
}

// SwapLogicAddress exchanges the logic addresses of two already-assigned
// nodes in place: the reverse index's keys stay put, only the values
// (which node owns each address) change. Node records are otherwise
// untouched, per spec.md §4.6.4's "identities are unchanged" invariant.
func (m *Manager) SwapLogicAddress(a, b *Node) {
	if a.logicAddress == nil || b.logicAddress == nil {
		panic("nodedata: SwapLogicAddress requires both nodes to already have a logic address")
	}

	aAddr, bAddr := *a.logicAddress, *b.logicAddress
	a.logicAddress, b.logicAddress = b.logicAddress, a.logicAddress
	m.logicToNode[aAddr], m.logicToNode[bAddr] = b, a
}

// GetFreeStaticAddress returns the smallest static address not yet
// registered.
func (m *Manager) GetFreeStaticAddress() (int, error) {
	return firstGap(m.staticAddrs)
}

// GetFreeLogicAddress returns the smallest logic address not yet
// assigned.
func (m *Manager) GetFreeLogicAddress() (int, error) {
	return firstGap(m.logicAddrs)
}

// firstGap returns the smallest non-negative integer absent from sorted
// (which must be ascending and duplicate-free), or ErrAddressExhausted
// if the address space [0, packet.MaxAddress] is fully used.
func firstGap(sorted []int) (int, error) {
	for i, v := range sorted {
		if v != i {
			return i, nil
		}
	}
	next := len(sorted)
	if next > packet.MaxAddress {
		return 0, ErrAddressExhausted
	}
	return next, nil
}

func insertSorted(s *[]int, v int) {
	i := sort.SearchInts(*s, v)
	*s = append(*s, 0)
	copy((*s)[i+1:], (*s)[i:])
	(*s)[i] = v
}

func removeSorted(s *[]int, v int) {
	i := sort.SearchInts(*s, v)
	if i < len(*s) && (*s)[i] == v {
		*s = append((*s)[:i], (*s)[i+1:]...)
	}
}
