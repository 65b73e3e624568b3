package harness

import "sync/atomic"

// Counter is the run-wide iteration counter, the only state written by
// more than one worker.
//
// Next is linearizable, so exactly one call observes the target value; that
// call closes the Done channel. The control goroutine waits on Done instead
// of polling.
type Counter struct {
	n      atomic.Int64
	target int64
	done   chan struct{}
}

// NewCounter creates a counter starting at 0 that signals at target.
// A target below 1 is treated as 1.
func NewCounter(target int64) *Counter {
	if target < 1 {
		target = 1
	}
	return &Counter{target: target, done: make(chan struct{})}
}

// Next increments the counter and returns the new value.
func (c *Counter) Next() int64 {
	v := c.n.Add(1)
	if v == c.target {
		close(c.done)
	}
	return v
}

// Current returns the current value without incrementing.
func (c *Counter) Current() int64 {
	return c.n.Load()
}

// Target returns the value at which Done is closed.
func (c *Counter) Target() int64 {
	return c.target
}

// Done is closed once the target has been reached.
func (c *Counter) Done() <-chan struct{} {
	return c.done
}

// Reached reports whether the target has been reached.
func (c *Counter) Reached() bool {
	return c.Current() >= c.target
}
