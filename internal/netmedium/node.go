package netmedium

import (
	"github.com/kprusa/rethundersim/internal/message"
	"github.com/kprusa/rethundersim/internal/simkernel"
)

// nodeHandleSeq hands out distinct HandleIDs; safe without locking
// because Environment's cooperative scheduling guarantees only one
// goroutine is ever actually running at a time.
var nodeHandleSeq uintptr

// timeoutSentinel is the distinguished value ReceiveEvent returns when
// its deadline elapses before a message arrives.
type timeoutSentinel struct{}

// TimedOut is returned by ReceiveEvent when no message arrived before
// the requested deadline.
var TimedOut = timeoutSentinel{}

// NetworkNode is the base transmit/receive core every protocol-layer
// node embeds: it owns the node's own medium-busy state (distinct from
// any Bus's occupancy) and collides self-consistently with overlapping
// inbound deliveries.
type NetworkNode struct {
	env               *simkernel.Environment
	transmissionSpeed float64
	buses             []*Bus
	handleID          uintptr

	currentOccupyProc     *simkernel.Process
	messageInTransmission *message.Message
	lastTransmissionStart simkernel.Time

	receiveCond *simkernel.BroadcastConditionVar
}

// NewNetworkNode returns a node transmitting at the given speed
// (length units per simulated time unit), with no buses yet attached.
func NewNetworkNode(env *simkernel.Environment, transmissionSpeed float64) *NetworkNode {
	nodeHandleSeq++
	return &NetworkNode{
		env:               env,
		transmissionSpeed: transmissionSpeed,
		handleID:          nodeHandleSeq,
		receiveCond:       simkernel.NewBroadcastConditionVar(),
	}
}

// HandleID satisfies message.NodeHandle.
func (n *NetworkNode) HandleID() uintptr { return n.handleID }

// Buses returns every bus n is connected to, for callers that need to
// walk the physical topology (e.g. deriving a static-address adjacency
// graph from live bus connections).
func (n *NetworkNode) Buses() []*Bus { return n.buses }

// Env exposes n's Environment so protocol-layer code built on top of
// NetworkNode can schedule its own timeouts (e.g. ack retransmission
// deadlines) without each layer threading its own copy through.
func (n *NetworkNode) Env() *simkernel.Environment { return n.env }

// TransmissionSpeed returns n's transmission speed, for callers that
// need to estimate a transmission delay themselves (e.g. the master's
// round-trip-time estimate).
func (n *NetworkNode) TransmissionSpeed() float64 { return n.transmissionSpeed }

// Transmit sends value (of the given length) onto every bus incident to
// n, as a spawned process.
func (n *NetworkNode) Transmit(value any, length int) {
	n.env.Spawn(func(p *simkernel.Process) (any, error) {
		delay := message.TransmissionDelay(n.transmissionSpeed, length)
		msg := &message.Message{Value: value, TransmissionDelay: delay, Sender: n}
		return n.occupy(p, msg, true)
	})
}

// Deliver is invoked by an incident Bus once its propagation delay has
// elapsed; it runs the same occupy logic as Transmit, but as a receive.
func (n *NetworkNode) Deliver(msg *message.Message) {
	n.env.Spawn(func(p *simkernel.Process) (any, error) {
		return n.occupy(p, msg, false)
	})
}

// OnReceive registers cb to run, with the delivered value, every time n
// finishes receiving a message — including messages delivered before any
// ReceiveEvent waiter is yielding on them. Used by the protocol layer
// above NetworkNode to dispatch every inbound packet (spec.md §4.5).
func (n *NetworkNode) OnReceive(cb func(value any)) {
	n.receiveCond.AddPersistentCallback(func(ev *simkernel.Event) {
		cb(ev.Value())
	})
}

// ReceiveEvent yields the next value delivered to n, or TimedOut if
// deadline elapses first. A nil deadline waits indefinitely.
func (n *NetworkNode) ReceiveEvent(p *simkernel.Process, deadline *simkernel.Time) (any, error) {
	recvEv := n.receiveCond.Wait()
	if deadline == nil {
		return p.Yield(recvEv)
	}

	winner, err := p.Yield(simkernel.AnyOf(recvEv, n.env.Timeout(*deadline)))
	if err != nil {
		return nil, err
	}
	fired := winner.(*simkernel.Event)
	if fired == recvEv {
		return fired.Value(), nil
	}
	return TimedOut, nil
}

// occupy is the coroutine shared by Transmit (isTransmission=true) and
// Deliver (isTransmission=false); see spec.md §4.4's six numbered
// steps.
func (n *NetworkNode) occupy(p *simkernel.Process, msg *message.Message, isTransmission bool) (any, error) {
	if isTransmission {
		for n.currentOccupyProc != nil {
			if _, err := p.Yield(n.currentOccupyProc.Done()); err != nil {
				return nil, err
			}
		}
	} else if n.currentOccupyProc != nil {
		n.currentOccupyProc.Interrupt(&simkernel.InterruptCause{Reason: "collided receive"})
	}

	n.currentOccupyProc = p
	priorStart := n.lastTransmissionStart
	n.lastTransmissionStart = n.env.Now()

	var wait simkernel.Time
	if n.messageInTransmission == nil {
		n.messageInTransmission = msg
		wait = simkernel.Time(msg.TransmissionDelay)
	} else {
		elapsed := n.env.Now() - priorStart
		remaining := simkernel.Time(n.messageInTransmission.TransmissionDelay) - elapsed

		wait = simkernel.Time(msg.TransmissionDelay)
		if remaining > wait {
			wait = remaining
		}

		n.messageInTransmission = &message.Message{
			Value:             message.Collision,
			TransmissionDelay: int(elapsed + wait),
		}
	}

	if isTransmission {
		for _, b := range n.buses {
			b.Send(msg)
		}
	}

	if _, err := p.Yield(n.env.Timeout(wait)); err != nil {
		return nil, nil
	}

	delivered := n.messageInTransmission
	n.messageInTransmission = nil
	n.currentOccupyProc = nil

	if !isTransmission {
		n.receiveCond.Broadcast(delivered.Value)
	}

	return nil, nil
}
