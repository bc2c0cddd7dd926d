// Package task runs cooperative per-entity work that suspends across
// frames: "resume at time T" and "resume when signal S fires".
package task

import "time"

// Clock is the simulation's frame clock. It only moves when the frame loop
// (or a test) advances it.
type Clock struct {
	now   time.Duration
	frame uint64
}

func NewClock() *Clock {
	return &Clock{}
}

// Now returns the simulated time elapsed since the clock was created.
func (c *Clock) Now() time.Duration { return c.now }

// Frame returns the number of Advance calls so far.
func (c *Clock) Frame() uint64 { return c.frame }

// Advance moves the clock forward by dt. Negative values are ignored.
func (c *Clock) Advance(dt time.Duration) {
	if dt > 0 {
		c.now += dt
	}
	c.frame++
}

// Signal is a one-shot latch tasks can wait on.
type Signal struct {
	fired bool
}

func NewSignal() *Signal {
	return &Signal{}
}

// Fire latches the signal. Firing twice is harmless.
func (s *Signal) Fire() { s.fired = true }

func (s *Signal) Fired() bool { return s != nil && s.fired }
