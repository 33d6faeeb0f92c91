package pipeline

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/couchcryptid/flight-weather-etl/internal/asof"
	"github.com/couchcryptid/flight-weather-etl/internal/congestion"
	"github.com/couchcryptid/flight-weather-etl/internal/domain"
	"github.com/couchcryptid/flight-weather-etl/internal/timezone"
)

// MissingReason is the drop reason for a weather row whose column carries
// the missing sentinel, e.g. "missing_vis".
func MissingReason(column string) string {
	return "missing_" + strings.ToLower(column)
}

// CleanWeather decodes raw weather rows, dropping rows with a missing field.
// Rows keep their input order. The returned map counts drops by reason.
func CleanWeather(raws []domain.RawWeather) ([]domain.WeatherObservation, map[string]int, error) {
	dropped := make(map[string]int)
	obs := make([]domain.WeatherObservation, 0, len(raws))
	for _, raw := range raws {
		if column := domain.MissingColumn(raw); column != "" {
			dropped[MissingReason(column)]++
			continue
		}
		o, ok, err := domain.DecodeWeather(raw)
		if err != nil {
			return nil, dropped, fmt.Errorf("%s: %w", raw.Source, err)
		}
		if ok {
			obs = append(obs, o)
		}
	}
	if len(obs) == 0 {
		return nil, dropped, fmt.Errorf("weather: %w", domain.ErrEmptyInput)
	}
	return obs, dropped, nil
}

// FlightResult is the output of CleanFlights.
type FlightResult struct {
	// Flights are sorted by UTC departure.
	Flights []domain.FlightRecord
	Dropped map[string]int
	// Window is the congestion window, 0 for unscored variants.
	Window int

	CacheHits   int
	CacheMisses int
}

// CleanFlights joins raw flights with the airport table, converts departures
// to UTC and sorts them. For the congestion variant it then picks the rolling
// window on the first trainFraction of flights, scores every flight and drops
// those without a full window of history.
func CleanFlights(raws []domain.RawFlight, airports domain.AirportIndex, resolver *timezone.Resolver, filter domain.FlightFilter, trainFraction float64) (FlightResult, error) {
	res := FlightResult{Dropped: make(map[string]int)}

	t := NewFlightTransformer(airports, filter, resolver)
	flights := make([]domain.FlightRecord, 0, len(raws))
	for _, raw := range raws {
		rec, reason := t.Transform(raw)
		if reason != "" {
			res.Dropped[reason]++
			continue
		}
		flights = append(flights, rec)
	}
	res.CacheHits, res.CacheMisses = resolver.CacheStats()

	if len(flights) == 0 {
		return res, fmt.Errorf("flights: %w", domain.ErrEmptyInput)
	}
	slices.SortStableFunc(flights, func(a, b domain.FlightRecord) int { return a.UTC.Compare(b.UTC) })

	if !filter.Variant.Scored() {
		res.Flights = flights
		return res, nil
	}

	times := make([]time.Time, len(flights))
	for i, f := range flights {
		times[i] = f.UTC
	}
	training := congestion.TrainingGaps(times, trainFraction)
	if len(training) == 0 {
		return res, fmt.Errorf("congestion window: %d flights: %w", len(flights), domain.ErrInsufficientHistory)
	}
	window, err := congestion.FindBestWindow(training)
	if err != nil {
		return res, fmt.Errorf("congestion window: %w", err)
	}
	res.Window = window

	scores := congestion.Score(congestion.Gaps(times), window)
	scored := make([]domain.FlightRecord, 0, len(flights))
	for i, f := range flights {
		if scores[i] == nil {
			res.Dropped[domain.ReasonInsufficientHistory]++
			continue
		}
		scored = append(scored, f.WithCongestion(*scores[i]))
	}
	if len(scored) == 0 {
		return res, fmt.Errorf("flights: %w", domain.ErrEmptyInput)
	}
	res.Flights = scored
	return res, nil
}

// Match sorts copies of both tables by time and pairs every flight with its
// nearest weather observation. A positive tolerance leaves flights farther
// than it from every observation unmatched.
func Match(weather []domain.WeatherObservation, flights []domain.FlightRecord, tolerance time.Duration) ([]domain.MergedRecord, error) {
	if len(weather) == 0 {
		return nil, fmt.Errorf("weather: %w", domain.ErrEmptyInput)
	}
	if len(flights) == 0 {
		return nil, fmt.Errorf("flights: %w", domain.ErrEmptyInput)
	}

	w := slices.Clone(weather)
	slices.SortStableFunc(w, func(a, b domain.WeatherObservation) int { return a.Time.Compare(b.Time) })
	f := slices.Clone(flights)
	slices.SortStableFunc(f, func(a, b domain.FlightRecord) int { return a.UTC.Compare(b.UTC) })

	return asof.JoinSorted(f, w, asof.WithTolerance(tolerance))
}

// variantOf infers the variant of a cleaned flight table from its scores.
func variantOf(flights []domain.FlightRecord) domain.FlightVariant {
	for _, f := range flights {
		if f.CongestionScore != nil {
			return domain.VariantCongestion
		}
	}
	return domain.VariantWeatherDelay
}
