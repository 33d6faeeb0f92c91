package asof

import (
	"errors"
	"math/rand/v2"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/flight-weather-etl/internal/domain"
)

var base = time.Date(2015, 6, 1, 12, 0, 0, 0, time.UTC)

func at(minute int) time.Time { return base.Add(time.Duration(minute) * time.Minute) }

func flightsAt(minutes ...int) []domain.FlightRecord {
	out := make([]domain.FlightRecord, len(minutes))
	for i, m := range minutes {
		out[i] = domain.FlightRecord{ICAO: "KBNA", UTC: at(m)}
	}
	return out
}

func weatherAt(minutes ...int) []domain.WeatherObservation {
	out := make([]domain.WeatherObservation, len(minutes))
	for i, m := range minutes {
		// Temp doubles as an id so tests can tell observations apart.
		out[i] = domain.WeatherObservation{Time: at(m), Temp: m}
	}
	return out
}

func TestJoin_Nearest(t *testing.T) {
	weather := weatherAt(0, 10, 20)

	tests := []struct {
		name   string
		flight int
		want   int
	}{
		{"closer to later observation", 7, 10},
		{"closer to earlier observation", 3, 0},
		{"tie prefers earlier", 5, 0},
		{"second tie prefers earlier", 15, 10},
		{"exact match", 10, 10},
		{"before every observation", -30, 0},
		{"after every observation", 90, 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			merged := Join(flightsAt(tt.flight), weather)
			require.Len(t, merged, 1)
			require.NotNil(t, merged[0].Weather)
			assert.Equal(t, at(tt.want), merged[0].Weather.Time)
		})
	}
}

func TestJoin_ManyFlightsOneObservation(t *testing.T) {
	merged := Join(flightsAt(50, 52, 55, 58), weatherAt(0, 53, 120))

	for _, m := range merged {
		require.NotNil(t, m.Weather)
		assert.Equal(t, 53, m.Weather.Temp)
	}
}

func TestJoin_DuplicateObservationTimesPickLast(t *testing.T) {
	weather := []domain.WeatherObservation{
		{Time: at(0), Temp: 1},
		{Time: at(0), Temp: 2},
		{Time: at(30), Temp: 3},
	}

	merged := Join(flightsAt(1), weather)

	require.NotNil(t, merged[0].Weather)
	assert.Equal(t, 2, merged[0].Weather.Temp)
}

func TestJoin_Tolerance(t *testing.T) {
	weather := weatherAt(0, 120)

	merged := Join(flightsAt(10, 60, 115), weather, WithTolerance(30*time.Minute))

	require.Len(t, merged, 3)
	require.NotNil(t, merged[0].Weather)
	assert.Equal(t, 0, merged[0].Weather.Temp)
	assert.Nil(t, merged[1].Weather, "60 minutes from both observations")
	require.NotNil(t, merged[2].Weather)
	assert.Equal(t, 120, merged[2].Weather.Temp)
}

func TestJoin_DefaultIsUnbounded(t *testing.T) {
	merged := Join(flightsAt(60*24*365), weatherAt(0))

	require.NotNil(t, merged[0].Weather)
	assert.Equal(t, 0, merged[0].Weather.Temp)
}

func TestJoin_NoWeather(t *testing.T) {
	merged := Join(flightsAt(1, 2), nil)

	require.Len(t, merged, 2)
	assert.Nil(t, merged[0].Weather)
	assert.Nil(t, merged[1].Weather)
}

func TestJoin_CardinalityAndBruteForce(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))

	for range 200 {
		flightMinutes := randomSorted(rng, 1+rng.IntN(60))
		weatherMinutes := randomSorted(rng, 1+rng.IntN(60))
		flights := flightsAt(flightMinutes...)
		weather := weatherAt(weatherMinutes...)

		merged := Join(flights, weather)

		require.Len(t, merged, len(flights))
		for i, m := range merged {
			assert.Equal(t, flights[i].UTC, m.Flight.UTC, "flight order preserved")
			require.NotNil(t, m.Weather)
			assert.Equal(t, bruteForceDistance(flights[i].UTC, weather), absDuration(flights[i].UTC.Sub(m.Weather.Time)))
		}
	}
}

func TestJoinSorted_RejectsUnsorted(t *testing.T) {
	_, err := JoinSorted(flightsAt(5, 1), weatherAt(0))
	assert.True(t, errors.Is(err, ErrUnsorted))

	_, err = JoinSorted(flightsAt(1, 5), weatherAt(10, 0))
	assert.True(t, errors.Is(err, ErrUnsorted))

	merged, err := JoinSorted(flightsAt(1, 5), weatherAt(0, 10))
	require.NoError(t, err)
	assert.Len(t, merged, 2)
}

func randomSorted(rng *rand.Rand, n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = rng.IntN(600)
	}
	slices.Sort(out)
	return out
}

func bruteForceDistance(t time.Time, weather []domain.WeatherObservation) time.Duration {
	best := time.Duration(1<<63 - 1)
	for _, w := range weather {
		best = min(best, absDuration(t.Sub(w.Time)))
	}
	return best
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
