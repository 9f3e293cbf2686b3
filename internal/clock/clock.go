package clock

import "time"

// Clock is the source of wall-clock time.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Real returns the system clock.
func Real() Clock { return realClock{} }

// Millis converts t to epoch milliseconds, the unit every persisted instant uses.
func Millis(t time.Time) int64 {
	return t.UnixMilli()
}

// TurnClock measures the running turn. Elapsed time is always a single
// subtraction against a reference instant, never an accumulated tick count,
// so a late or skipped tick cannot make it drift.
type TurnClock struct {
	clock Clock
}

func NewTurnClock(c Clock) TurnClock {
	if c == nil {
		c = Real()
	}
	return TurnClock{clock: c}
}

// Start returns a reference instant of now.
func (c TurnClock) Start() int64 {
	return Millis(c.clock.Now())
}

// Pause returns the elapsed seconds at this moment. The value is what Resume
// must be given to continue the turn.
func (c TurnClock) Pause(ref int64) int {
	return c.Elapsed(ref)
}

// Resume returns a reference instant that reports elapsedAtPause seconds right now.
func (c TurnClock) Resume(elapsedAtPause int) int64 {
	return Millis(c.clock.Now()) - int64(elapsedAtPause)*1000
}

// Elapsed reports whole seconds since ref. A reference in the future reads as 0.
func (c TurnClock) Elapsed(ref int64) int {
	d := Millis(c.clock.Now()) - ref
	if d < 0 {
		return 0
	}
	return int(d / 1000)
}

// Now exposes the underlying clock in epoch millis.
func (c TurnClock) Now() int64 {
	return Millis(c.clock.Now())
}
