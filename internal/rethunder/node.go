// Package rethunder implements the protocol layer shared by master and
// slave nodes: per-packet noise/routing table maintenance and the
// acknowledgement sub-protocol, sitting above internal/netmedium
// (spec.md §4.5).
//
// Ported from the reference simulator's protocol/rethunder_node.py
// (ReThunderNode._check_packet_callback, _update_noise_table,
// _update_routing_table) restructured around the kernel's persistent
// broadcast callback rather than a direct list append.
package rethunder

import (
	"math"

	"github.com/sirupsen/logrus"

	"github.com/kprusa/rethundersim/internal/config"
	"github.com/kprusa/rethundersim/internal/message"
	"github.com/kprusa/rethundersim/internal/metrics"
	"github.com/kprusa/rethundersim/internal/netmedium"
	"github.com/kprusa/rethundersim/internal/packet"
	"github.com/kprusa/rethundersim/internal/simkernel"
)

// Node is the shared transmit/receive core embedded by both
// master.Master and slave.Slave.
type Node struct {
	*netmedium.NetworkNode

	StaticAddress int
	LogicAddress  *int

	// NoiseTable maps a source static address to the most recently
	// observed frame-error-derived noise sample, scaled by 1000.
	NoiseTable map[int]int
	// RoutingTable maps a source logic address to the static address
	// last observed using it.
	RoutingTable map[int]int

	// ACKTimeout is how long TransmitWithAck waits for a matching Ack
	// before retransmitting, sourced from config.Config at construction.
	ACKTimeout simkernel.Time
	// Retransmissions is how many times TransmitWithAck resends before
	// giving up, sourced from config.Config at construction.
	Retransmissions int

	receivePacketCond *simkernel.BroadcastConditionVar
	pendingAck        *pendingAck

	// Metrics is nil-safe: a zero-value Node never needs one wired in
	// to run correctly, only to be observed.
	Metrics *metrics.Collector
}

type pendingAck struct {
	token int
	ev    *simkernel.Event
}

// handleAck succeeds the currently outstanding TransmitWithAck wait if
// ack's token matches it. A Node has at most one outstanding send at a
// time, so matching on token alone (ignoring NextHop) is unambiguous.
func (n *Node) handleAck(ack *packet.Ack) {
	pending := n.pendingAck
	if pending == nil || ack.Head().Token != pending.token {
		return
	}
	n.pendingAck = nil
	pending.ev.Succeed(ack)
}

// sendAck transmits an Ack{token, next_hop=self} back to whoever sent
// the packet identified by token, per spec.md §4.5.
func (n *Node) sendAck(token int) {
	ack := &packet.Ack{
		Header:  packet.Header{Token: token},
		NextHop: n.StaticAddress,
	}
	n.Transmit(ack, ack.FrameCount())
}

// TransmitWithAck sends pkt and waits up to n.ACKTimeout for a matching
// Ack, retransmitting up to n.Retransmissions times before giving up. It
// reports whether an Ack arrived in time, per spec.md §4.5's
// acknowledgement sub-protocol.
func (n *Node) TransmitWithAck(p *simkernel.Process, pkt packet.Packet) (bool, error) {
	token := pkt.Head().Token
	env := n.Env()

	for attempt := 0; attempt <= n.Retransmissions; attempt++ {
		ackEvent := simkernel.NewEvent()
		n.pendingAck = &pendingAck{token: token, ev: ackEvent}

		n.Transmit(pkt, pkt.FrameCount())

		winner, err := p.Yield(simkernel.AnyOf(ackEvent, env.Timeout(n.ACKTimeout)))
		if err != nil {
			n.pendingAck = nil
			return false, err
		}

		fired := winner.(*simkernel.Event)
		if fired == ackEvent {
			return true, nil
		}
		n.pendingAck = nil
	}

	return false, nil
}

// NewNode wraps an already-constructed netmedium.NetworkNode with the
// ReThunder protocol layer, and installs the node-level packet-dispatch
// callback described in spec.md §4.5. A nil cfg uses config.Default().
func NewNode(nn *netmedium.NetworkNode, staticAddress int, logicAddress *int, cfg *config.Config) *Node {
	if cfg == nil {
		cfg = config.Default()
	}
	n := &Node{
		NetworkNode:       nn,
		StaticAddress:     staticAddress,
		LogicAddress:      logicAddress,
		NoiseTable:        make(map[int]int),
		RoutingTable:      make(map[int]int),
		ACKTimeout:        simkernel.Time(cfg.ACKTimeout),
		Retransmissions:   cfg.Retransmissions,
		receivePacketCond: simkernel.NewBroadcastConditionVar(),
	}
	nn.OnReceive(n.dispatch)
	return n
}

// ReceivePacketEvent returns the event that succeeds the next time a
// readable, non-Ack packet is received, per spec.md §4.5's "publish to
// the protocol receive condition variable".
func (n *Node) ReceivePacketEvent() *simkernel.Event {
	return n.receivePacketCond.Wait()
}

// dispatch implements spec.md §4.5's "on every incoming message"
// handling: drop collisions and non-packets, update the noise/routing
// tables for packets that carry a source, drop unreadable packets, send
// a matching Ack back, and otherwise publish to protocol waiters.
func (n *Node) dispatch(value any) {
	if value == message.Collision {
		n.Metrics.IncPacketsDropped("collision")
		return
	}
	pkt, ok := value.(packet.Packet)
	if !ok {
		logrus.WithField("node", n.StaticAddress).Error("received a non-packet value")
		n.Metrics.IncPacketsDropped("non_packet")
		return
	}

	if ack, ok := pkt.(*packet.Ack); ok {
		n.handleAck(ack)
		return
	}

	sourceStatic, sourceLogic, hasSource := sourceOf(pkt)
	if hasSource {
		noise := pkt.FrameErrorAverage()
		n.NoiseTable[sourceStatic] = int(math.Round(noise * 1000))
		n.RoutingTable[sourceLogic] = sourceStatic
	}

	if pkt.Unreadable() {
		n.Metrics.IncPacketsDropped("unreadable")
		return
	}

	if hasSource {
		n.sendAck(pkt.Head().Token)
	}

	n.receivePacketCond.Broadcast(pkt)
}

// sourceOf extracts the (static, logic) source address pair from
// variants that carry one.
func sourceOf(pkt packet.Packet) (static, logic int, ok bool) {
	switch p := pkt.(type) {
	case *packet.Request:
		return p.SourceStatic, p.SourceLogic, true
	case *packet.Response:
		return p.SourceStatic, p.SourceLogic, true
	default:
		return 0, 0, false
	}
}

