package simkernel

// ConditionVar is a single-waker FIFO condition variable: each call to
// Wait returns a fresh event, and each call to Signal succeeds exactly
// one outstanding waiter, oldest first. Ported from the reference
// simulator's ConditionVar (a deque of pending events).
type ConditionVar struct {
	waiters []*Event
}

// NewConditionVar returns an empty condition variable.
func NewConditionVar() *ConditionVar {
	return &ConditionVar{}
}

// Wait registers a new waiter and returns its event.
func (c *ConditionVar) Wait() *Event {
	ev := NewEvent()
	c.waiters = append(c.waiters, ev)
	return ev
}

// Signal succeeds the oldest outstanding waiter with value, if any.
func (c *ConditionVar) Signal(value any) {
	if len(c.waiters) == 0 {
		return
	}
	ev := c.waiters[0]
	c.waiters = c.waiters[1:]
	ev.Succeed(value)
}

// BroadcastConditionVar publishes one shared event per broadcast cycle:
// Wait always returns the event for the current cycle, and Broadcast
// succeeds it (waking every listener registered so far) and installs a
// fresh event for the next cycle. Late waiters only observe future
// broadcasts.
type BroadcastConditionVar struct {
	current   *Event
	callbacks []func(*Event)
}

// NewBroadcastConditionVar returns a broadcast condition variable ready
// for its first cycle.
func NewBroadcastConditionVar() *BroadcastConditionVar {
	return &BroadcastConditionVar{current: NewEvent()}
}

// Wait returns the event for the current broadcast cycle.
func (b *BroadcastConditionVar) Wait() *Event {
	return b.current
}

// AddPersistentCallback registers cb to be copied onto every future
// cycle's event as soon as it is created (and onto the current one),
// matching the reference implementation's "persistent callbacks copied
// onto each published event" behavior.
func (b *BroadcastConditionVar) AddPersistentCallback(cb func(*Event)) {
	b.callbacks = append(b.callbacks, cb)
	b.current.AddCallback(cb)
}

// Broadcast succeeds the current cycle's event with value and starts a
// fresh cycle.
func (b *BroadcastConditionVar) Broadcast(value any) {
	fired := b.current
	b.current = NewEvent()
	for _, cb := range b.callbacks {
		b.current.AddCallback(cb)
	}
	fired.Succeed(value)
}
