package clock_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/turntally/internal/clock"
)

var epoch = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

func TestTurnClock_Elapsed(t *testing.T) {
	tests := map[string]struct {
		advance time.Duration
		want    int
	}{
		"no time passed":          {advance: 0, want: 0},
		"fractions are floored":   {advance: 1999 * time.Millisecond, want: 1},
		"exact seconds":           {advance: 90 * time.Second, want: 90},
		"reference in the future": {advance: -3 * time.Second, want: 0},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			fc := clock.NewFake(epoch)
			tc := clock.NewTurnClock(fc)

			ref := tc.Start()
			fc.Advance(tt.advance)

			assert.Equal(t, tt.want, tc.Elapsed(ref))
		})
	}
}

func TestTurnClock_ResumePreservesElapsed(t *testing.T) {
	fc := clock.NewFake(epoch)
	tc := clock.NewTurnClock(fc)

	ref := tc.Start()
	fc.Advance(37 * time.Second)

	paused := tc.Pause(ref)
	require.Equal(t, 37, paused)

	// Arbitrary wall time while paused must not count.
	fc.Advance(17*time.Minute + 400*time.Millisecond)

	ref = tc.Resume(paused)
	assert.Equal(t, 37, tc.Elapsed(ref))

	fc.Advance(5 * time.Second)
	assert.Equal(t, 42, tc.Elapsed(ref))
}

func TestTurnClock_NoDriftFromLateTicks(t *testing.T) {
	fc := clock.NewFake(epoch)
	tc := clock.NewTurnClock(fc)
	ref := tc.Start()

	// Samples taken at irregular intervals still read the true elapsed time.
	for _, step := range []time.Duration{1300 * time.Millisecond, 700 * time.Millisecond, 2500 * time.Millisecond} {
		fc.Advance(step)
	}

	assert.Equal(t, 4, tc.Elapsed(ref))
}

func TestManualTicker(t *testing.T) {
	tk := clock.NewManualTicker()

	got := make(chan time.Time, 1)
	go func() { got <- <-tk.C() }()

	tk.Tick(epoch)
	assert.Equal(t, epoch, <-got)

	assert.False(t, tk.Stopped())
	tk.Stop()
	assert.True(t, tk.Stopped())
}
