package shutdown

import "sync/atomic"

// RunningFlag is a one-way boolean shared between the signal handler and the
// main execution path. The zero value reports running.
type RunningFlag struct {
	stopped atomic.Bool
}

// NewRunningFlag returns a flag in the running state.
func NewRunningFlag() *RunningFlag {
	return &RunningFlag{}
}

// Running reports whether a stop has not yet been requested.
func (f *RunningFlag) Running() bool {
	return !f.stopped.Load()
}

// Stop clears the flag. It reports whether this call performed the
// transition; once stopped the flag never reports running again.
func (f *RunningFlag) Stop() bool {
	return f.stopped.CompareAndSwap(false, true)
}
