package pipeline

import (
	"errors"

	"github.com/couchcryptid/flight-weather-etl/internal/domain"
	"github.com/couchcryptid/flight-weather-etl/internal/timezone"
)

// FlightTransformer turns raw flight rows into flight records with a UTC
// departure, using the airport table and a per-batch timezone resolver.
type FlightTransformer struct {
	airports domain.AirportIndex
	filter   domain.FlightFilter
	resolver *timezone.Resolver
}

// NewFlightTransformer creates a FlightTransformer.
func NewFlightTransformer(airports domain.AirportIndex, filter domain.FlightFilter, resolver *timezone.Resolver) *FlightTransformer {
	return &FlightTransformer{
		airports: airports,
		filter:   filter,
		resolver: resolver,
	}
}

// Transform returns the record for raw, or a non-empty drop reason.
func (t *FlightTransformer) Transform(raw domain.RawFlight) (domain.FlightRecord, string) {
	rec, reason := domain.BuildFlight(raw, t.airports, t.filter)
	if reason != "" {
		return domain.FlightRecord{}, reason
	}

	tz, err := t.resolver.Resolve(rec.Lat, rec.Lon)
	if err != nil {
		return domain.FlightRecord{}, domain.ReasonUnresolvableLocation
	}
	utc, err := t.resolver.Localize(rec.LocalDate, rec.DepTime, tz)
	if errors.Is(err, domain.ErrUnresolvableLocation) {
		return domain.FlightRecord{}, domain.ReasonUnresolvableLocation
	}
	if err != nil {
		return domain.FlightRecord{}, domain.ReasonMalformedTime
	}
	return rec.WithUTC(tz, utc), ""
}
