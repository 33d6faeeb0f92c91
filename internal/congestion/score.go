package congestion

import "gonum.org/v1/gonum/stat"

// Score returns, for each position i, the mean of the window gaps ending at i.
// Positions without a full window (i < window-1) are nil, as is every position
// when window < 1.
func Score(gaps []float64, window int) []*float64 {
	scores := make([]*float64, len(gaps))
	if window < 1 {
		return scores
	}
	for i := window - 1; i < len(gaps); i++ {
		m := stat.Mean(gaps[i-window+1:i+1], nil)
		scores[i] = &m
	}
	return scores
}
