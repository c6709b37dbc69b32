package master

import (
	"github.com/kprusa/rethundersim/internal/nodedata"
	"github.com/kprusa/rethundersim/internal/packet"
)

// makeRequestPacket implements spec.md §4.6.3: given payload and the
// shortest path from the master to the destination
// (pathToDest = [master, h1, h2, ..., dst]), builds a Request whose
// destination+path_stack fully describe the route, and returns the
// new-logic-address table scheduled for the nodes along the path (so
// the caller can roll it back on answer timeout).
func (m *Master) makeRequestPacket(payload []byte, pathToDest []int) (*packet.Request, map[int]int) {
	dstStatic := pathToDest[len(pathToDest)-1]
	dstNode, _ := m.nodes.NodeByStatic(dstStatic)

	newAddrs := make(map[int]int)
	var pathStack []packet.PathEntry

	var destinationAddr int
	if cla := dstNode.CurrentLogicAddress(); cla != nil {
		destinationAddr = *cla
	}
	nextStaticAddressingUsed := true

	for j := len(pathToDest) - 1; j >= 1; j-- {
		nextNode, _ := m.nodes.NodeByStatic(pathToDest[j])
		node, _ := m.nodes.NodeByStatic(pathToDest[j-1])

		if nextNode.CurrentLogicAddress() == nil {
			newAddrs[nextNode.StaticAddress()] = *nextNode.LogicAddress()
			pathStack = append(pathStack, packet.PathEntry{Kind: packet.Static, Address: nextNode.StaticAddress()})
			destinationAddr = *nextNode.LogicAddress()
			nextStaticAddressingUsed = true
		} else {
			wrongAddressing, ambiguous := classifyAddressing(m.nodes, m.graph.Neighbors(node.StaticAddress()), destinationAddr, *nextNode.CurrentLogicAddress())

			switch {
			case ambiguous:
				pathStack = append(pathStack, packet.PathEntry{Kind: packet.Static, Address: nextNode.StaticAddress()})
				destinationAddr = *nextNode.CurrentLogicAddress()
				nextStaticAddressingUsed = true
			case wrongAddressing || nextStaticAddressingUsed:
				pathStack = append(pathStack, packet.PathEntry{Kind: packet.Logic, Address: *nextNode.CurrentLogicAddress()})
				destinationAddr = *nextNode.CurrentLogicAddress()
				nextStaticAddressingUsed = false
			default:
				destinationAddr = *nextNode.CurrentLogicAddress()
			}
		}

		if nextNode.LogicAddress() != nil && (nextNode.CurrentLogicAddress() == nil || *nextNode.LogicAddress() != *nextNode.CurrentLogicAddress()) {
			newAddrs[nextNode.StaticAddress()] = *nextNode.LogicAddress()
		}
	}

	var destType packet.AddressKind
	var destAddr int
	if n := len(pathStack); n > 0 {
		final := pathStack[n-1]
		pathStack = pathStack[:n-1]
		destType = final.Kind
		destAddr = final.Address
	} else {
		// Every hop used default dynamic forwarding; address the
		// first hop directly by its known current logic address.
		h1, _ := m.nodes.NodeByStatic(pathToDest[1])
		destType = packet.Logic
		if cla := h1.CurrentLogicAddress(); cla != nil {
			destAddr = *cla
		}
	}

	var entries []packet.NewAddressEntry
	for static, logic := range newAddrs {
		entries = append(entries, packet.NewAddressEntry{StaticAddress: static, NewLogicAddress: logic})
	}

	req := &packet.Request{
		Header: packet.Header{
			Token: m.nextTokenValue(),
			Code: packet.Code{
				IsAddressingStatic: destType == packet.Static,
			},
		},
		SourceStatic: m.StaticAddress,
		SourceLogic:  *m.LogicAddress,
		NextHop:      pathToDest[1],
		Destination:  destAddr,
		Payload:      payload,
		PathStack:    pathStack,
		NewAddresses: entries,
	}
	if len(entries) > 0 {
		req.Header.Code.HasNewLogicAddress = true
	}

	return req, newAddrs
}

// classifyAddressing implements §4.6.3's wrong/ambiguous addressing
// checks: among node's graph-neighbors, the one with the greatest
// current logic address not exceeding destinationAddr is the neighbor
// the default dynamic-forwarding rule would pick.
func classifyAddressing(nodes *nodedata.Manager, neighbors []int, destinationAddr, nextCurrentLogic int) (wrongAddressing, ambiguous bool) {
	maxAddress := -1
	found := false
	matches := 0

	for _, static := range neighbors {
		n, ok := nodes.NodeByStatic(static)
		if !ok {
			continue
		}
		cla := n.CurrentLogicAddress()
		if cla == nil || *cla > destinationAddr {
			continue
		}
		if *cla == nextCurrentLogic {
			matches++
		}
		if !found || *cla > maxAddress {
			maxAddress = *cla
			found = true
		}
	}

	wrongAddressing = !found || maxAddress != nextCurrentLogic
	ambiguous = matches > 1
	return wrongAddressing, ambiguous
}
