package domain

import (
	"strconv"
	"strings"
)

// Reasons a row is dropped, reported in logs and the rows_dropped_total metric.
const (
	ReasonUnknownAirport       = "unknown_airport"
	ReasonOtherStation         = "other_station"
	ReasonNonUSAirport         = "non_us_airport"
	ReasonNoWeatherDelay       = "no_weather_delay"
	ReasonMalformedDelay       = "malformed_delay"
	ReasonUnresolvableLocation = "unresolvable_location"
	ReasonMalformedTime        = "malformed_time"
	ReasonInsufficientHistory  = "insufficient_history"
)

// FlightFilter holds the row filters of a flight cleanup.
type FlightFilter struct {
	// Station keeps only flights departing this ICAO code. Empty keeps all.
	Station string
	Variant FlightVariant
}

// BuildFlight joins a raw flight row with its origin airport and applies the
// filter. It returns the record, or a non-empty drop reason.
//
// The weather-delay variant drops rows without a positive WEATHER_DELAY and
// rows whose origin is not a K-prefixed (contiguous US) ICAO code. The
// congestion variant keeps every row and treats a missing delay as 0.
func BuildFlight(raw RawFlight, airports AirportIndex, filter FlightFilter) (FlightRecord, string) {
	delay, ok := parseWeatherDelay(raw.WeatherDelay)
	if !ok {
		return FlightRecord{}, ReasonMalformedDelay
	}
	if filter.Variant == VariantWeatherDelay && delay == 0 {
		return FlightRecord{}, ReasonNoWeatherDelay
	}

	airport, ok := airports[strings.TrimSpace(raw.Origin)]
	if !ok || airport.ICAO == "" {
		return FlightRecord{}, ReasonUnknownAirport
	}
	if filter.Variant == VariantWeatherDelay && !strings.HasPrefix(airport.ICAO, "K") {
		return FlightRecord{}, ReasonNonUSAirport
	}
	if filter.Station != "" && airport.ICAO != filter.Station {
		return FlightRecord{}, ReasonOtherStation
	}

	return FlightRecord{
		LocalDate:    raw.FlightDate,
		DepTime:      raw.DepTime,
		Origin:       airport.IATA,
		ICAO:         airport.ICAO,
		Lat:          airport.Lat,
		Lon:          airport.Lon,
		WeatherDelay: delay,
	}, ""
}

// parseWeatherDelay reads WEATHER_DELAY in minutes. Empty means no delay was
// attributed and reads as 0. Negative or non-numeric values are rejected.
func parseWeatherDelay(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, true
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 {
		return 0, false
	}
	return v, true
}
