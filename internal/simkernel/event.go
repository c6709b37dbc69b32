package simkernel

// Event succeeds at most once with a value, or fails with an error (an
// interrupt cause, in the case of a process being preempted). Callbacks
// registered before success run, in registration order, at the moment
// the event succeeds.
type Event struct {
	value     any
	err       error
	callbacks []func(*Event)
	done      bool
}

// NewEvent returns a fresh, not-yet-succeeded event.
func NewEvent() *Event {
	return &Event{}
}

// Done reports whether the event has already succeeded or failed.
func (e *Event) Done() bool {
	return e.done
}

// Value returns the event's success value. Only meaningful once Done().
func (e *Event) Value() any {
	return e.value
}

// Err returns the event's failure cause, if any. Only meaningful once
// Done().
func (e *Event) Err() error {
	return e.err
}

// AddCallback registers cb to run when the event succeeds or fails. If
// the event has already fired, cb runs immediately.
func (e *Event) AddCallback(cb func(*Event)) {
	if e.done {
		cb(e)
		return
	}
	e.callbacks = append(e.callbacks, cb)
}

// Succeed marks the event as succeeded with value and runs its
// callbacks. Succeeding an already-done event is a no-op: an event
// succeeds "at most once".
func (e *Event) Succeed(value any) {
	if e.done {
		return
	}
	e.value = value
	e.done = true
	e.fire()
}

// Fail marks the event as failed with err (used to deliver an
// Interrupt's cause) and runs its callbacks.
func (e *Event) Fail(err error) {
	if e.done {
		return
	}
	e.err = err
	e.done = true
	e.fire()
}

func (e *Event) fire() {
	cbs := e.callbacks
	e.callbacks = nil
	for _, cb := range cbs {
		cb(e)
	}
}

// AnyOf returns an event that succeeds as soon as the first of events
// succeeds or fails; its value is that sub-event, so the caller can
// inspect which one fired via Done().
func AnyOf(events ...*Event) *Event {
	out := NewEvent()
	for _, ev := range events {
		ev := ev
		ev.AddCallback(func(*Event) {
			out.Succeed(ev)
		})
	}
	return out
}

// AllOf returns an event that succeeds once every event in events has
// succeeded or failed; its value is the slice of events, in the order
// given.
func AllOf(events ...*Event) *Event {
	out := NewEvent()
	remaining := len(events)
	if remaining == 0 {
		out.Succeed(events)
		return out
	}
	for _, ev := range events {
		ev.AddCallback(func(*Event) {
			remaining--
			if remaining == 0 {
				out.Succeed(events)
			}
		})
	}
	return out
}
