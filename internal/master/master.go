// Package master implements the master node: the single initiator of
// request/response exchanges, owner of the node graph, shortest-paths
// tree, and logic-address assignment (spec.md §4.6).
//
// Grounded on `original_source/protocol/master_node.py`'s MasterNode,
// restructured around this module's explicit send-queue and
// rethunder.Node's dispatch hook rather than simpy processes and
// callback registration.
package master

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/kprusa/rethundersim/internal/addressing"
	"github.com/kprusa/rethundersim/internal/config"
	"github.com/kprusa/rethundersim/internal/message"
	"github.com/kprusa/rethundersim/internal/metrics"
	"github.com/kprusa/rethundersim/internal/netmedium"
	"github.com/kprusa/rethundersim/internal/nodedata"
	"github.com/kprusa/rethundersim/internal/packet"
	"github.com/kprusa/rethundersim/internal/rethunder"
	"github.com/kprusa/rethundersim/internal/simkernel"
)

// ErrNotInitialized is returned by Run when the master's node graph has
// not been set up yet.
var ErrNotInitialized = errors.New("master: must be initialized before Run")

// ErrUnknownDestination is returned by SendMessage's eventual processing
// when the requested destination is not a registered static address.
var ErrUnknownDestination = errors.New("master: unknown destination static address")

type sendRequest struct {
	payload    []byte
	destStatic int
}

// answerPending tracks the single outstanding request/response exchange.
type answerPending struct {
	token    int
	path     []int
	newAddrs map[int]int
	sendTime simkernel.Time
	expiry   simkernel.Time
}

// Master is the ReThunder master node.
type Master struct {
	*rethunder.Node

	graph *addressing.Graph
	spt   *addressing.SPT
	nodes *nodedata.Manager

	// OnMessageReceived is invoked once per successful response, with
	// the payload the destination slave returned.
	OnMessageReceived func(m *Master, payload []byte)

	sendQueue []sendRequest
	sendCond  *simkernel.ConditionVar
	// pendingSendWait holds the single outstanding sendCond waiter, so
	// Run's loop reuses it across iterations instead of registering a
	// fresh one every tick the send queue stays empty.
	pendingSendWait *simkernel.Event

	answerPending *answerPending
	nextToken     int

	// RTTConstantK scales the per-hop transmission-delay estimate into
	// an answer-wait timeout; see spec.md §4.6.1.
	RTTConstantK int
}

// NewMaster wraps nn as the master node (static address 0, logic
// address 0, per spec.md §4.6's state list), ready for
// InitFromStaticAddrGraph or InitFromNetGraph. A nil cfg uses
// config.Default().
func NewMaster(nn *netmedium.NetworkNode, onMessageReceived func(m *Master, payload []byte), reg *metrics.Collector, cfg *config.Config) *Master {
	if cfg == nil {
		cfg = config.Default()
	}
	zero := 0
	node := rethunder.NewNode(nn, 0, &zero, cfg)
	node.Metrics = reg
	return &Master{
		Node:              node,
		OnMessageReceived: onMessageReceived,
		sendCond:          simkernel.NewConditionVar(),
		RTTConstantK:      cfg.RTTConstantK,
	}
}

// InitOptions configures InitFromStaticAddrGraph.
type InitOptions struct {
	// InitialNoise seeds every edge's noise weight; must be in [0, 2].
	InitialNoise float64
	// AssignLogicAddresses controls whether logic addresses are
	// assigned by preorder DFS immediately after initialization.
	AssignLogicAddresses bool
}

// DefaultInitOptions returns {InitialNoise: 0.5, AssignLogicAddresses: true},
// spec.md §4.6's stated defaults.
func DefaultInitOptions() InitOptions {
	return InitOptions{InitialNoise: 0.5, AssignLogicAddresses: true}
}

// InitFromStaticAddrGraph builds the master's node graph, node-data
// manager, and SPT from a static-address adjacency map (spec.md §4.6
// "Initialization", §6 "Node graph input"), optionally assigning logic
// addresses by preorder DFS of the SPT.
func (m *Master) InitFromStaticAddrGraph(adjacency map[int][]int, opts InitOptions) error {
	graph, err := addressing.FromStaticAddrGraph(adjacency, opts.InitialNoise)
	if err != nil {
		return err
	}
	nodes, err := graph.StaticAddressManager()
	if err != nil {
		return err
	}
	spt, err := addressing.BuildSPT(graph, m.StaticAddress)
	if err != nil {
		return err
	}

	m.graph = graph
	m.nodes = nodes
	m.spt = spt

	if opts.AssignLogicAddresses {
		addressing.AssignPreorder(m.nodes, m.spt)
	}

	return nil
}

// InitFromNetGraph derives the static-address adjacency from a live
// netmedium topology (bus connections already wired between
// rethunder.Nodes) and delegates to InitFromStaticAddrGraph, mirroring
// `master_node.py::init_from_netgraph`'s bus-projection step.
func (m *Master) InitFromNetGraph(nodes []*rethunder.Node, opts InitOptions) error {
	byHandle := make(map[uintptr]*rethunder.Node, len(nodes))
	for _, n := range nodes {
		byHandle[n.HandleID()] = n
	}

	adjacency := make(map[int][]int)
	for _, n := range nodes {
		seen := make(map[int]bool)
		var neighbors []int
		for _, b := range n.Buses() {
			for _, peerNN := range b.Neighbors() {
				if peerNN.HandleID() == n.HandleID() {
					continue
				}
				peer, ok := byHandle[peerNN.HandleID()]
				if !ok || seen[peer.StaticAddress] {
					continue
				}
				seen[peer.StaticAddress] = true
				neighbors = append(neighbors, peer.StaticAddress)
			}
		}
		adjacency[n.StaticAddress] = neighbors
	}
	return m.InitFromStaticAddrGraph(adjacency, opts)
}

// SendMessage enqueues a request to destStatic carrying payload;
// non-blocking, per spec.md §6's Master API.
func (m *Master) SendMessage(payload []byte, destStatic int) {
	m.sendQueue = append(m.sendQueue, sendRequest{payload: payload, destStatic: destStatic})
	m.sendCond.Signal(struct{}{})
}

// popSendEvent returns an event that succeeds once the send queue is
// non-empty: immediately, if it already is, or when the next
// SendMessage call signals it. While the queue stays empty, the same
// waiter event is reused across calls (via pendingSendWait) rather than
// registering a fresh one with sendCond every tick, so a master that
// spends many ticks only receiving never accumulates stale waiters.
func (m *Master) popSendEvent() *simkernel.Event {
	if len(m.sendQueue) > 0 {
		ev := simkernel.NewEvent()
		ev.Succeed(nil)
		return ev
	}
	if m.pendingSendWait == nil {
		m.pendingSendWait = m.sendCond.Wait()
	}
	return m.pendingSendWait
}

// Run is the master's main loop (spec.md §4.6 "Main loop"): wait for
// either a queued send or an incoming packet, dispatching receives
// before sends when both are ready in the same tick.
func (m *Master) Run(p *simkernel.Process) (any, error) {
	if m.spt == nil {
		return nil, ErrNotInitialized
	}

	for {
		recvEv := m.ReceivePacketEvent()
		sendEv := m.popSendEvent()

		if _, err := p.Yield(simkernel.AnyOf(recvEv, sendEv)); err != nil {
			return nil, err
		}

		if recvEv.Done() {
			m.handleReceived(recvEv.Value())
		}

		if sendEv.Done() {
			m.pendingSendWait = nil
			if len(m.sendQueue) > 0 {
				req := m.sendQueue[0]
				m.sendQueue = m.sendQueue[1:]
				if err := m.sendAndAwait(p, req); err != nil {
					return nil, err
				}
			}
		}
	}
}

// sendAndAwait builds and transmits a request for req, then dispatches
// incoming packets (normally) until either the matching response
// arrives or the RTT estimate expires — spec.md §4.6's "enter
// wait_for_answer (receive-dispatch loop gated by a timeout)".
func (m *Master) sendAndAwait(p *simkernel.Process, req sendRequest) error {
	if _, ok := m.nodes.NodeByStatic(req.destStatic); !ok {
		return errors.Wrapf(ErrUnknownDestination, "%d", req.destStatic)
	}

	pathToDest, err := addressing.PathTo(m.graph, m.StaticAddress, req.destStatic)
	if err != nil {
		return err
	}

	pkt, newAddrs := m.makeRequestPacket(req.payload, pathToDest)
	m.Transmit(pkt, pkt.FrameCount())

	delay := message.TransmissionDelay(m.TransmissionSpeed(), pkt.FrameCount())
	expiry := m.Env().Now() + simkernel.Time(len(pathToDest)*delay*m.RTTConstantK)

	m.answerPending = &answerPending{
		token:    pkt.Head().Token,
		path:     pathToDest,
		newAddrs: newAddrs,
		sendTime: m.Env().Now(),
		expiry:   expiry,
	}
	m.Metrics.SetPendingAnswers(true)

	for m.answerPending != nil {
		recvEv := m.ReceivePacketEvent()
		remaining := expiry - m.Env().Now()
		if remaining < 0 {
			remaining = 0
		}
		timeoutEv := m.Env().Timeout(remaining)

		winner, err := p.Yield(simkernel.AnyOf(recvEv, timeoutEv))
		if err != nil {
			return err
		}

		if winner.(*simkernel.Event) == recvEv {
			m.handleReceived(recvEv.Value())
			continue
		}

		m.handleAnswerTimeout()
	}

	return nil
}

// handleReceived dispatches a received packet by variant (spec.md
// §4.6.2): only a Response matching the outstanding request is
// meaningful to the master.
func (m *Master) handleReceived(value any) {
	resp, ok := value.(*packet.Response)
	if !ok {
		logrus.WithField("node", m.StaticAddress).Warn("master received a non-response packet")
		return
	}
	m.handleResponse(resp)
}

// handleResponse implements spec.md §4.6.2.
func (m *Master) handleResponse(resp *packet.Response) {
	pending := m.answerPending
	if pending == nil || resp.NextHop != m.StaticAddress || resp.Head().Token != pending.token {
		return
	}

	for _, static := range pending.path {
		if node, ok := m.nodes.NodeByStatic(static); ok {
			node.SetCurrentLogicAddress(node.LogicAddress())
		}
	}

	for i := 0; i < len(resp.NoiseTables) && i < len(pending.path); i++ {
		sourceStatic := pending.path[len(pending.path)-1-i]
		for destStatic, noiseScaled := range resp.NoiseTables[i] {
			observed := float64(noiseScaled) / 1000
			_ = m.graph.UpdateNoise(sourceStatic, destStatic, observed)
		}
	}

	spt, err := addressing.BuildSPT(m.graph, m.StaticAddress)
	if err != nil {
		logrus.WithError(err).Error("master: failed to recompute SPT after response")
	} else {
		m.spt = spt
		m.Metrics.AddReaddressSwaps(addressing.Readdress(m.nodes, m.spt))
	}

	if m.OnMessageReceived != nil {
		m.OnMessageReceived(m, resp.Payload)
	}

	m.answerPending = nil
	m.Metrics.SetPendingAnswers(false)
}

// handleAnswerTimeout implements spec.md §7's "Answer timeout" error
// kind: logs, clears answerPending, and unsets the current logic
// address of every slave whose re-addressing was in flight, since the
// master cannot confirm they adopted the new address.
func (m *Master) handleAnswerTimeout() {
	pending := m.answerPending
	if pending == nil {
		return
	}

	logrus.WithFields(logrus.Fields{
		"node":  m.StaticAddress,
		"token": pending.token,
	}).Info("master answer timeout")
	m.Metrics.IncAnswerTimeouts()

	for static := range pending.newAddrs {
		if node, ok := m.nodes.NodeByStatic(static); ok {
			node.SetCurrentLogicAddress(nil)
		}
	}

	m.answerPending = nil
	m.Metrics.SetPendingAnswers(false)
}

// nextTokenValue cycles the 3-bit token space 0..=7, per spec.md §6's
// bit-level constants.
func (m *Master) nextTokenValue() int {
	token := m.nextToken
	m.nextToken = (m.nextToken + 1) % 8
	return token
}
