// Package anomaly grades the running turn against the turns already completed
// in the same session.
package anomaly

import (
	"math"

	"github.com/victornm/turntally/internal/domain"
)

const (
	// MinSamples is the population size below which no warning is raised.
	MinSamples = 3
	// MinElapsed is the elapsed time (seconds) a turn must exceed before it is graded.
	MinElapsed = 10
)

var normal = domain.Warning{Level: domain.LevelNormal}

// Classify grades current against the completed durations using a population z-score.
// Zero-length samples are ignored. It holds no state and is safe to call on every tick.
func Classify(current int, completed []int) domain.Warning {
	samples := make([]float64, 0, len(completed))
	for _, d := range completed {
		if d > 0 {
			samples = append(samples, float64(d))
		}
	}

	if len(samples) < MinSamples || current <= MinElapsed {
		return normal
	}

	mean, sd := meanStdDev(samples)

	var z float64
	if sd > 0 {
		z = (float64(current) - mean) / sd
	}

	switch {
	case z < -1.5:
		return domain.Warning{Level: domain.LevelFast, Message: "Lightning fast!"}
	case z > 2:
		return domain.Warning{Level: domain.LevelExtremelySlow, Message: "Time to decide!", Pulse: true}
	case z > 1.5:
		return domain.Warning{Level: domain.LevelVerySlow, Message: "Taking your time..."}
	case z > 1:
		return domain.Warning{Level: domain.LevelSlow, Message: "Consider your options"}
	}

	return normal
}

// Flatten joins per-player turn histories into one population.
func Flatten(turns [][]int) []int {
	n := 0
	for _, t := range turns {
		n += len(t)
	}

	all := make([]int, 0, n)
	for _, t := range turns {
		all = append(all, t...)
	}
	return all
}

// meanStdDev returns the mean and the population (divide by N) standard deviation.
func meanStdDev(xs []float64) (float64, float64) {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	mean := sum / float64(len(xs))

	var sq float64
	for _, x := range xs {
		sq += (x - mean) * (x - mean)
	}

	return mean, math.Sqrt(sq / float64(len(xs)))
}
