// Package asof pairs each flight with the weather observation nearest in time.
package asof

import (
	"errors"
	"fmt"
	"time"

	"github.com/couchcryptid/flight-weather-etl/internal/domain"
)

// ErrUnsorted is returned by JoinSorted when an input is not in ascending time order.
var ErrUnsorted = errors.New("input not sorted by time")

type options struct {
	tolerance time.Duration
}

// Option configures a join.
type Option func(*options)

// WithTolerance leaves a flight unmatched when its nearest observation is more
// than d away. Zero or negative means unbounded, the default.
func WithTolerance(d time.Duration) Option {
	return func(o *options) { o.tolerance = d }
}

// Join matches every flight with the observation whose timestamp is closest to
// the flight's UTC departure. On equal distance the earlier observation wins.
// Both inputs must be sorted ascending; the result has one record per flight,
// in flight order. With no observations every flight is left unmatched.
func Join(flights []domain.FlightRecord, weather []domain.WeatherObservation, opts ...Option) []domain.MergedRecord {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	merged := make([]domain.MergedRecord, len(flights))
	// back is the last observation at or before the current flight; -1 when
	// every observation is later.
	back := -1
	for i, f := range flights {
		for back+1 < len(weather) && !weather[back+1].Time.After(f.UTC) {
			back++
		}
		merged[i] = domain.MergedRecord{Flight: f, Weather: nearest(f.UTC, weather, back, o.tolerance)}
	}
	return merged
}

// JoinSorted verifies both inputs are in ascending order before joining.
func JoinSorted(flights []domain.FlightRecord, weather []domain.WeatherObservation, opts ...Option) ([]domain.MergedRecord, error) {
	for i := 1; i < len(flights); i++ {
		if flights[i].UTC.Before(flights[i-1].UTC) {
			return nil, fmt.Errorf("flights row %d: %w", i, ErrUnsorted)
		}
	}
	for i := 1; i < len(weather); i++ {
		if weather[i].Time.Before(weather[i-1].Time) {
			return nil, fmt.Errorf("weather row %d: %w", i, ErrUnsorted)
		}
	}
	return Join(flights, weather, opts...), nil
}

// nearest picks between weather[back] and weather[back+1]. The backward
// candidate wins ties.
func nearest(t time.Time, weather []domain.WeatherObservation, back int, tolerance time.Duration) *domain.WeatherObservation {
	best := -1
	var bestDist time.Duration
	if back >= 0 {
		best, bestDist = back, t.Sub(weather[back].Time)
	}
	if fwd := back + 1; fwd < len(weather) {
		if d := weather[fwd].Time.Sub(t); best < 0 || d < bestDist {
			best, bestDist = fwd, d
		}
	}
	if best < 0 || (tolerance > 0 && bestDist > tolerance) {
		return nil
	}
	obs := weather[best]
	return &obs
}
