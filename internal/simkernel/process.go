package simkernel

// InterruptCause is the error delivered to a Process's current Yield
// when it is preempted by another process (see Process.Interrupt).
type InterruptCause struct {
	// Reason carries whatever context the interrupter wants the
	// interrupted process to see (e.g. a Preempted value).
	Reason any
}

func (ic *InterruptCause) Error() string {
	return "process interrupted"
}

// ProcFunc is a cooperative coroutine body. It receives the Process
// handle it is running as, so it can call Yield, and returns its final
// value (or an error, for abnormal termination).
type ProcFunc func(p *Process) (any, error)

type resumeMsg struct {
	value any
	err   error
}

// Process is a goroutine-backed coroutine multiplexed by the
// Environment's single logical thread of control. Exactly one Process
// (or the Environment's own Run loop) is ever actually executing at a
// time; every other spawned Process is blocked inside Yield waiting to
// be resumed. See package doc for the handshake this relies on.
type Process struct {
	env       *Environment
	yieldCh   chan *Event
	resumeCh  chan resumeMsg
	doneEvent *Event
	waitGen   uint64
	finishVal any
	finishErr error
}

// Spawn starts fn as a new Process and runs it up to its first
// suspension point (or completion) before returning — exactly like
// calling next() on a freshly created Python generator.
func (env *Environment) Spawn(fn ProcFunc) *Process {
	p := &Process{
		env:       env,
		yieldCh:   make(chan *Event),
		resumeCh:  make(chan resumeMsg),
		doneEvent: NewEvent(),
	}

	go func() {
		val, err := fn(p)
		p.finish(val, err)
		p.yieldCh <- nil
	}()

	p.pump()
	return p
}

// finish records fn's return value so the completion branch of pump
// can settle doneEvent with it. Called from the process's own
// goroutine, strictly before signaling completion over yieldCh, so
// there is no data race with pump reading it afterwards.
func (p *Process) finish(val any, err error) {
	p.finishVal, p.finishErr = val, err
}

// Yield suspends the calling Process until ev succeeds or fails,
// returning its value or the interrupt cause.
func (p *Process) Yield(ev *Event) (any, error) {
	p.yieldCh <- ev
	msg := <-p.resumeCh
	return msg.value, msg.err
}

// Done returns an event that succeeds (with the process's return
// value) or fails (with its return error) once the process finishes.
func (p *Process) Done() *Event {
	return p.doneEvent
}

// Interrupt preempts p at its current suspension point, delivering
// cause to the Yield call it is blocked in. p is expected to notice the
// error and return promptly, per spec: an interrupted wait does not
// retry the original event.
//
// Interrupt is a no-op if p has already finished.
func (p *Process) Interrupt(cause error) {
	if p.doneEvent.Done() {
		return
	}
	p.waitGen++
	p.resumeCh <- resumeMsg{err: cause}
	p.pump()
}

// pump waits for the process's next yield (registering a callback on
// the yielded event so the process is resumed when it fires) or for
// its completion.
func (p *Process) pump() {
	ev := <-p.yieldCh
	if ev == nil {
		if p.finishErr != nil {
			p.doneEvent.Fail(p.finishErr)
		} else {
			p.doneEvent.Succeed(p.finishVal)
		}
		return
	}

	gen := p.waitGen
	ev.AddCallback(func(fired *Event) {
		if gen != p.waitGen {
			// Stale: the process was interrupted out of this wait
			// and has already moved on (or finished).
			return
		}
		p.resumeCh <- resumeMsg{value: fired.value, err: fired.err}
		p.pump()
	})
}
