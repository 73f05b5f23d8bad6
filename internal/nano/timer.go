package nano

import (
	"sync/atomic"
	"time"
)

// Clock yields monotonic nanosecond readings.
type Clock interface {
	Now() uint64
}

// Timer reads the runtime's monotonic clock relative to its own epoch, so
// readings stay exact integers for the whole process lifetime.
type Timer struct {
	epoch time.Time
}

// NewTimer starts a timer whose zero is the moment of construction.
func NewTimer() *Timer {
	return &Timer{epoch: time.Now()}
}

// Now returns nanoseconds since the timer epoch.
func (t *Timer) Now() uint64 {
	return uint64(time.Since(t.epoch))
}

// ElapsedNs returns the nanoseconds since start.
func (t *Timer) ElapsedNs(start uint64) uint64 {
	return Since(t, start)
}

// Elapsed returns milliseconds since start, for display only.
func (t *Timer) Elapsed(start uint64) float64 {
	return Millis(t.ElapsedNs(start))
}

// Since computes a non-negative delta against any Clock.
func Since(c Clock, start uint64) uint64 {
	now := c.Now()
	if now < start {
		return 0
	}
	return now - start
}

// Millis converts a nanosecond count to floating-point milliseconds.
func Millis(ns uint64) float64 {
	return float64(ns) / float64(time.Millisecond)
}

// ManualClock is a Clock moved only by Advance. Tests use it to step over TTLs.
type ManualClock struct {
	ns atomic.Uint64
}

// NewManualClock returns a clock reading start.
func NewManualClock(start uint64) *ManualClock {
	c := &ManualClock{}
	c.ns.Store(start)
	return c
}

// Now returns the current reading.
func (c *ManualClock) Now() uint64 {
	return c.ns.Load()
}

// Advance moves the clock forward by d.
func (c *ManualClock) Advance(d time.Duration) {
	if d <= 0 {
		return
	}
	c.ns.Add(uint64(d))
}

var (
	_ Clock = (*Timer)(nil)
	_ Clock = (*ManualClock)(nil)
)
