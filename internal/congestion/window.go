package congestion

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/couchcryptid/flight-weather-etl/internal/domain"
)

const (
	// MinWindow is the first window size tried.
	MinWindow = 2
	// MaxWindow caps the search; no larger window is ever evaluated.
	MaxWindow = 20
)

// FindBestWindow searches for the window whose mean of rolling means is
// closest to the mean gap. Starting at MinWindow, each window that strictly
// improves on the best distance so far is accepted and the next is tried. The
// first non-improving window ends the search:
//
//   - below MaxWindow, that window itself is returned;
//   - at MaxWindow, the previous (last improving) window is returned.
//
// A window with no complete position in gaps ends the search at the previous
// window. The result is always in [MinWindow, MaxWindow].
func FindBestWindow(gaps []float64) (int, error) {
	window, _, err := search(gaps)
	return window, err
}

// search returns the chosen window and how many windows were evaluated.
func search(gaps []float64) (int, int, error) {
	if len(gaps) == 0 {
		return 0, 0, domain.ErrEmptyInput
	}
	if len(gaps) <= MinWindow {
		return 0, 0, domain.ErrInsufficientHistory
	}

	target := stat.Mean(gaps, nil)
	bestDiff := math.Inf(1)
	evaluated := 0

	for window := MinWindow; ; window++ {
		if window > MaxWindow {
			return MaxWindow, evaluated, nil
		}
		candidate, ok := meanOfRollingMeans(gaps, window)
		if !ok {
			return window - 1, evaluated, nil
		}
		evaluated++

		diff := math.Abs(target - candidate)
		if window == MinWindow || diff < bestDiff {
			bestDiff = diff
			continue
		}
		if window < MaxWindow {
			return window, evaluated, nil
		}
		return window - 1, evaluated, nil
	}
}

// meanOfRollingMeans averages, over every position i in [window, len(gaps)),
// the mean of gaps[i-window+1..i]. ok is false when no such position exists.
func meanOfRollingMeans(gaps []float64, window int) (float64, bool) {
	if len(gaps) <= window {
		return 0, false
	}
	means := make([]float64, 0, len(gaps)-window)
	for i := window; i < len(gaps); i++ {
		means = append(means, stat.Mean(gaps[i-window+1:i+1], nil))
	}
	return stat.Mean(means, nil), true
}
