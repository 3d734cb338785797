package collect

import "sync/atomic"

// Join is a fan-out/join barrier. It is created with the number of expected
// child completions and invokes its continuation exactly once after all of
// them have been recorded.
//
// Completions may be recorded from any goroutine in any order; the
// decrement-and-check is atomic. Success and failure count identically: a
// child that fails still completes, so the barrier never waits on work that
// already finished badly. The barrier defines no timeout - forward progress
// depends on the backend eventually calling back for every child it
// reported.
type Join struct {
	remaining int64
	done      func()
}

// NewJoin creates a barrier expecting n completions. When n <= 0 the
// continuation fires synchronously before NewJoin returns.
func NewJoin(n int, done func()) *Join {
	j := &Join{
		remaining: int64(n),
		done:      done,
	}

	if n <= 0 {
		done()
	}

	return j
}

// Complete records one child completion. The continuation fires on the
// goroutine that records the final completion. Completions beyond the
// expected count are ignored.
func (j *Join) Complete() {
	if atomic.AddInt64(&j.remaining, -1) == 0 {
		j.done()
	}
}

// Pending returns the number of completions still outstanding. It is a
// point-in-time reading intended for logging and tests.
func (j *Join) Pending() int {
	n := atomic.LoadInt64(&j.remaining)
	if n < 0 {
		return 0
	}
	return int(n)
}
