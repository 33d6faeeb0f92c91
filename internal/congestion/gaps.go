// Package congestion derives the per-flight congestion score: the trailing
// mean of recent inter-departure gaps over a window chosen by FindBestWindow.
package congestion

import "time"

// Gaps returns the minutes between consecutive timestamps. The first gap has
// no predecessor and is 0. times must be sorted ascending.
func Gaps(times []time.Time) []float64 {
	gaps := make([]float64, len(times))
	for i := 1; i < len(times); i++ {
		gaps[i] = times[i].Sub(times[i-1]).Minutes()
	}
	return gaps
}

// TrainingGaps returns the gaps of the leading fraction of times, without the
// synthetic leading 0. The slice length is floor(fraction*len(times)).
func TrainingGaps(times []time.Time, fraction float64) []float64 {
	n := int(float64(len(times)) * fraction)
	if n <= 1 {
		return nil
	}
	return Gaps(times[:n])[1:]
}
