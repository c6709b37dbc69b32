// Package slave implements the slave node: request forwarding/endpoint
// handling and response construction/relaying (spec.md §4.7).
//
// Grounded on `original_source/protocol/slave_node.py`'s SlaveNode for
// overall shape (run_proc, _request_packet_received,
// _response_packet_received, _make_response_packet), but following
// spec.md §4.7's normative plain path-stack model rather than the
// Python draft's Tracer-based one (an earlier, inconsistent revision
// per spec.md §9's Open Questions).
package slave

import (
	"github.com/sirupsen/logrus"

	"github.com/kprusa/rethundersim/internal/config"
	"github.com/kprusa/rethundersim/internal/netmedium"
	"github.com/kprusa/rethundersim/internal/packet"
	"github.com/kprusa/rethundersim/internal/rethunder"
	"github.com/kprusa/rethundersim/internal/simkernel"
)

// Slave is a ReThunder slave node.
type Slave struct {
	*rethunder.Node

	// lastSentRoutingTable snapshots RoutingTable at the moment of the
	// last response sent; used to resolve the next logic hop when
	// forwarding dynamically-addressed requests (spec.md §4.7 step 6).
	lastSentRoutingTable map[int]int

	// previousNodeStaticAddr is the static address this slave last
	// received a request from; responses route back through it.
	previousNodeStaticAddr *int

	// OnMessageReceived is invoked when this slave is a request's
	// endpoint, with the request's payload, and returns the reply
	// payload to attach to the response.
	OnMessageReceived func(s *Slave, payload []byte) []byte
}

// NewSlave wraps nn as a slave node at staticAddress, with no logic
// address assigned yet (it is only known once a request's
// new-logic-address table names it).
func NewSlave(nn *netmedium.NetworkNode, staticAddress int, onMessageReceived func(s *Slave, payload []byte) []byte) *Slave {
	return &Slave{
		Node:                 rethunder.NewNode(nn, staticAddress, nil, config.Default()),
		lastSentRoutingTable: make(map[int]int),
		OnMessageReceived:    onMessageReceived,
	}
}

// Run is the slave's main loop (spec.md §4.7 "Main loop"): on each
// received packet, dispatch by variant, build an optional response or
// forwarded packet, and transmit it.
func (s *Slave) Run(p *simkernel.Process) (any, error) {
	for {
		ev := s.ReceivePacketEvent()
		value, err := p.Yield(ev)
		if err != nil {
			return nil, err
		}

		var toSend packet.Packet
		switch pkt := value.(type) {
		case *packet.Request:
			toSend = s.handleRequest(pkt)
		case *packet.Response:
			toSend = s.handleResponseForward(pkt)
		default:
			logrus.WithField("node", s.StaticAddress).Warn("slave received an unexpected packet variant")
		}

		if toSend != nil {
			s.Transmit(toSend, toSend.FrameCount())
		}
	}
}

// destinationIsSelf reports whether req currently addresses this slave,
// interpreted per its is_addressing_static flag (spec.md §4.7 step 5).
func (s *Slave) destinationIsSelf(req *packet.Request) bool {
	if req.Header.Code.IsAddressingStatic {
		return req.Destination == s.StaticAddress
	}
	return s.LogicAddress != nil && req.Destination == *s.LogicAddress
}

// handleRequest implements spec.md §4.7's seven-step request-handling
// algorithm, returning the packet to transmit next (a forwarded Request,
// a freshly built Response, or nil if the request is dropped).
func (s *Slave) handleRequest(req *packet.Request) packet.Packet {
	if req.NextHop != s.StaticAddress {
		s.Metrics.IncPacketsDropped("wrong_next_hop")
		return nil
	}

	sourceStatic := req.SourceStatic
	s.previousNodeStaticAddr = &sourceStatic

	for _, entry := range req.NewAddresses {
		if entry.StaticAddress == s.StaticAddress {
			addr := entry.NewLogicAddress
			s.LogicAddress = &addr
		}
	}

	req.SourceStatic = s.StaticAddress
	req.SourceLogic = s.logicAddressOrZero()

	if s.destinationIsSelf(req) {
		if len(req.PathStack) == 0 {
			return s.makeResponse(req)
		}
		n := len(req.PathStack)
		entry := req.PathStack[n-1]
		req.PathStack = req.PathStack[:n-1]
		req.Destination = entry.Address
		req.Header.Code.IsAddressingStatic = entry.Kind == packet.Static
	}

	if req.Header.Code.IsAddressingStatic {
		req.NextHop = req.Destination
		return req
	}

	nextLogicHop, ok := maxKeyAtMost(s.lastSentRoutingTable, req.Destination)
	if !ok || (s.LogicAddress != nil && nextLogicHop <= *s.LogicAddress) {
		logrus.WithFields(logrus.Fields{
			"node":        s.StaticAddress,
			"destination": req.Destination,
		}).Warn("slave cannot make forwarding progress on dynamic address")
		s.Metrics.IncPacketsDropped("no_forwarding_progress")
		return nil
	}

	req.NextHop = s.lastSentRoutingTable[nextLogicHop]
	return req
}

// makeResponse builds the Response packet returned when this slave is a
// request's endpoint (spec.md §4.7 "Response construction at endpoint").
func (s *Slave) makeResponse(req *packet.Request) *packet.Response {
	s.lastSentRoutingTable = cloneIntMap(s.RoutingTable)

	var reply []byte
	if s.OnMessageReceived != nil {
		reply = s.OnMessageReceived(s, req.Payload)
	}

	return &packet.Response{
		Header:       packet.Header{Token: req.Head().Token},
		SourceStatic: s.StaticAddress,
		SourceLogic:  s.logicAddressOrZero(),
		NextHop:      derefOrZero(s.previousNodeStaticAddr),
		Payload:      reply,
		NoiseTables:  []packet.NoiseRow{cloneIntMap(s.NoiseTable)},
	}
}

// handleResponseForward implements spec.md §4.7's "Response forwarding":
// relay a response one hop closer to the master, appending this slave's
// own noise-table snapshot.
func (s *Slave) handleResponseForward(resp *packet.Response) *packet.Response {
	if resp.NextHop != s.StaticAddress {
		s.Metrics.IncPacketsDropped("wrong_next_hop")
		return nil
	}
	if s.previousNodeStaticAddr == nil {
		logrus.WithField("node", s.StaticAddress).Warn("slave has no previous hop to forward response to")
		s.Metrics.IncPacketsDropped("no_previous_hop")
		return nil
	}

	resp.SourceStatic = s.StaticAddress
	resp.SourceLogic = s.logicAddressOrZero()
	resp.NextHop = *s.previousNodeStaticAddr
	resp.NoiseTables = append(resp.NoiseTables, cloneIntMap(s.NoiseTable))

	return resp
}

func (s *Slave) logicAddressOrZero() int {
	if s.LogicAddress == nil {
		return 0
	}
	return *s.LogicAddress
}

func derefOrZero(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}

func cloneIntMap(m map[int]int) map[int]int {
	out := make(map[int]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// maxKeyAtMost returns the greatest key in m that does not exceed limit.
func maxKeyAtMost(m map[int]int, limit int) (int, bool) {
	best := 0
	found := false
	for k := range m {
		if k <= limit && (!found || k > best) {
			best = k
			found = true
		}
	}
	return best, found
}
