// Package netmedium implements the discrete-event medium: Bus (a shared
// channel with propagation delay and collision synthesis) and
// NetworkNode (the transmit/receive core every protocol-layer node
// embeds), per spec.md §4.3/§4.4.
//
// Ported from the reference simulator's infrastructure/bus.py
// (BusState/Bus) and infrastructure/node.py (NetworkNode.__occupy),
// restructured so that a node's Transmit reaches its neighbors through
// the Bus's own propagation-delay model rather than the draft's direct
// node-to-node shortcut — spec.md §4.3/§4.4 describe two independently
// owned occupancy state machines (the bus's medium and the node's own
// radio), and this is the normative shape.
package netmedium

import (
	"github.com/sirupsen/logrus"

	"github.com/kprusa/rethundersim/internal/message"
	"github.com/kprusa/rethundersim/internal/metrics"
	"github.com/kprusa/rethundersim/internal/simkernel"
)

// Bus models a shared medium connecting its neighbor NetworkNodes, with
// a fixed propagation delay.
type Bus struct {
	env              *simkernel.Environment
	propagationDelay simkernel.Time
	neighbors        []*NetworkNode

	inFlight        *message.Message
	currentSendProc *simkernel.Process

	// Metrics is nil-safe: leaving it unset is a valid, inert default.
	Metrics *metrics.Collector
}

// NewBus returns a bus with no neighbors yet connected.
func NewBus(env *simkernel.Environment, propagationDelay simkernel.Time) *Bus {
	return &Bus{env: env, propagationDelay: propagationDelay}
}

// Connect wires n as a neighbor of b (mutually: n also learns about b).
func (b *Bus) Connect(n *NetworkNode) {
	b.neighbors = append(b.neighbors, n)
	n.buses = append(n.buses, b)
}

// Neighbors returns every node connected to b.
func (b *Bus) Neighbors() []*NetworkNode { return b.neighbors }

// Send runs the bus transmit protocol (§4.3) as a spawned process:
// interrupt any active finalizing send, synthesize a collision if the
// medium is already occupied, wait out the propagation delay, then
// deliver to every neighbor but the message's sender.
func (b *Bus) Send(msg *message.Message) {
	b.env.Spawn(func(p *simkernel.Process) (any, error) {
		if b.currentSendProc != nil {
			b.currentSendProc.Interrupt(&simkernel.InterruptCause{Reason: "superseded by a new send on this bus"})
		}
		b.currentSendProc = p

		if b.inFlight == nil {
			b.inFlight = msg
		} else {
			logrus.WithFields(logrus.Fields{
				"incoming": msg,
				"occupant": b.inFlight,
			}).Warn("collision on bus")
			b.Metrics.IncCollisions()

			delay := msg.TransmissionDelay
			if b.inFlight.TransmissionDelay > delay {
				delay = b.inFlight.TransmissionDelay
			}
			b.inFlight = &message.Message{Value: message.Collision, TransmissionDelay: delay}
		}

		if _, err := p.Yield(b.env.Timeout(b.propagationDelay)); err != nil {
			// Interrupted: the process that superseded us finalizes
			// the medium instead.
			return nil, nil
		}

		delivered := b.inFlight
		b.inFlight = nil
		b.currentSendProc = nil

		for _, n := range b.neighbors {
			if delivered.Sender != nil && delivered.Sender.HandleID() == n.HandleID() {
				continue
			}
			n.Deliver(delivered)
		}
		return nil, nil
	})
}
