package timezone

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/flight-weather-etl/internal/domain"
)

const chicago = "America/Chicago"

// --- mock locator ---

type countingLocator struct {
	zone  string
	calls int
	lngs  []float64
}

func (m *countingLocator) GetTimezoneName(lng, _ float64) string {
	m.calls++
	m.lngs = append(m.lngs, lng)
	return m.zone
}

// --- tests ---

func TestResolver_Resolve(t *testing.T) {
	loc := &countingLocator{zone: chicago}
	r := NewResolver(loc)

	tz, err := r.Resolve(36.1245, -86.6782)
	require.NoError(t, err)
	assert.Equal(t, chicago, tz)
	assert.Equal(t, []float64{-86.6782}, loc.lngs, "locator takes longitude first")
}

func TestResolver_MemoizesPerCoordinate(t *testing.T) {
	loc := &countingLocator{zone: chicago}
	r := NewResolver(loc)

	for range 5 {
		_, err := r.Resolve(36.1245, -86.6782)
		require.NoError(t, err)
	}
	_, err := r.Resolve(33.6367, -84.4281)
	require.NoError(t, err)

	assert.Equal(t, 2, loc.calls)
	hits, misses := r.CacheStats()
	assert.Equal(t, 4, hits)
	assert.Equal(t, 2, misses)
}

func TestResolver_ResetClearsMemo(t *testing.T) {
	loc := &countingLocator{zone: chicago}
	r := NewResolver(loc)

	_, _ = r.Resolve(36.1245, -86.6782)
	r.Reset()
	_, _ = r.Resolve(36.1245, -86.6782)

	assert.Equal(t, 2, loc.calls)
	hits, misses := r.CacheStats()
	assert.Equal(t, 0, hits)
	assert.Equal(t, 1, misses)
}

func TestResolver_Unresolvable(t *testing.T) {
	loc := &countingLocator{zone: ""}
	r := NewResolver(loc)

	_, err := r.Resolve(0, -30)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrUnresolvableLocation))

	// The empty answer is memoized as well.
	_, _ = r.Resolve(0, -30)
	assert.Equal(t, 1, loc.calls)
}

func TestResolver_Localize(t *testing.T) {
	r := NewResolver(&countingLocator{})

	tests := []struct {
		name string
		date string
		hhmm string
		tz   string
		want time.Time
	}{
		{"winter CST", "01/01/2015", "0630", chicago, time.Date(2015, 1, 1, 12, 30, 0, 0, time.UTC)},
		{"transtats date with clock suffix", "1/1/2015 12:00:00 AM", "0630", chicago, time.Date(2015, 1, 1, 12, 30, 0, 0, time.UTC)},
		{"summer CDT", "7/1/2015", "0630", chicago, time.Date(2015, 7, 1, 11, 30, 0, 0, time.UTC)},
		{"midnight", "7/1/2015", "0000", chicago, time.Date(2015, 7, 1, 5, 0, 0, 0, time.UTC)},
		{"late evening crosses UTC midnight", "12/31/2015", "2359", chicago, time.Date(2016, 1, 1, 5, 59, 0, 0, time.UTC)},
		{"eastern zone", "1/15/2016", "1745", "America/New_York", time.Date(2016, 1, 15, 22, 45, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Localize(tt.date, tt.hhmm, tt.tz)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, time.UTC, got.Location())
		})
	}
}

func TestResolver_LocalizeDSTGapDoesNotFail(t *testing.T) {
	r := NewResolver(&countingLocator{})

	// 02:30 does not exist in Chicago on 2015-03-08.
	got, err := r.Localize("3/8/2015", "0230", chicago)
	require.NoError(t, err)
	assert.Equal(t, 2015, got.Year())
}

func TestResolver_LocalizeDSTFoldPicksOneOffset(t *testing.T) {
	r := NewResolver(&countingLocator{})

	// 01:30 happens twice in Chicago on 2015-11-01.
	got, err := r.Localize("11/1/2015", "0130", chicago)
	require.NoError(t, err)
	cdt := time.Date(2015, 11, 1, 6, 30, 0, 0, time.UTC)
	cst := time.Date(2015, 11, 1, 7, 30, 0, 0, time.UTC)
	assert.True(t, got.Equal(cdt) || got.Equal(cst), "got %s", got)
}

func TestResolver_LocalizeRejectsMalformedInput(t *testing.T) {
	r := NewResolver(&countingLocator{})

	tests := []struct {
		name string
		date string
		hhmm string
		tz   string
		err  error
	}{
		{"three digit time", "1/1/2015", "630", chicago, domain.ErrMalformedTime},
		{"hour 24", "1/1/2015", "2400", chicago, domain.ErrMalformedTime},
		{"minute 60", "1/1/2015", "1260", chicago, domain.ErrMalformedTime},
		{"letters", "1/1/2015", "12ab", chicago, domain.ErrMalformedTime},
		{"signed hour", "1/1/2015", "+130", chicago, domain.ErrMalformedTime},
		{"empty date", "", "0630", chicago, domain.ErrMalformedTime},
		{"iso date", "2015-01-01", "0630", chicago, domain.ErrMalformedTime},
		{"unknown zone", "1/1/2015", "0630", "Mars/Olympus", domain.ErrUnresolvableLocation},
		{"empty zone", "1/1/2015", "0630", "", domain.ErrUnresolvableLocation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Localize(tt.date, tt.hhmm, tt.tz)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.err), "got %v", err)
		})
	}
}

func TestDefaultLocator_Nashville(t *testing.T) {
	if testing.Short() {
		t.Skip("loads embedded boundary data")
	}
	loc, err := NewDefaultLocator()
	require.NoError(t, err)

	tz, err := NewResolver(loc).Resolve(36.1245, -86.6782)
	require.NoError(t, err)
	assert.Equal(t, chicago, tz)
}
