// Package simkernel implements a single-threaded, deterministic
// discrete-event simulation kernel in the style of the ReThunder
// reference simulator's SimPy environment.
//
// There are no OS-level concurrent executors here. Every *Process is a
// goroutine, but the kernel never lets more than one of them run at a
// time: Run is the only goroutine that advances the clock or pops the
// event heap, and it resumes exactly one process goroutine at a time,
// blocking until that goroutine either yields a new event to wait on or
// returns. This reproduces SimPy's "cooperative coroutine" model using
// goroutines purely as call-stack containers.
//
// Events scheduled for the same simulated instant fire in the order
// they were scheduled (insertion order), never in map or heap-arbitrary
// order: the scheduler breaks time ties with a monotonic sequence
// number.
package simkernel
