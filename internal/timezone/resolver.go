// Package timezone resolves airport coordinates to IANA zones and converts
// local scheduled departure times to UTC.
package timezone

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // zone rules without a system zoneinfo

	"github.com/ringsaturn/tzf"

	"github.com/couchcryptid/flight-weather-etl/internal/domain"
)

// DateLayout is the layout of the first token of Transtats FL_DATE.
const DateLayout = "1/2/2006"

// Locator finds the IANA zone whose boundary polygon contains a point.
// It returns "" when no zone does. tzf finders satisfy it.
type Locator interface {
	GetTimezoneName(lng, lat float64) string
}

// NewDefaultLocator loads the embedded tzf boundary data.
func NewDefaultLocator() (Locator, error) {
	finder, err := tzf.NewDefaultFinder()
	if err != nil {
		return nil, fmt.Errorf("load timezone boundaries: %w", err)
	}
	return finder, nil
}

// Resolver maps coordinates to zones and local wall times to UTC. Lookups are
// memoized per distinct coordinate pair and loaded zones per zone id; both
// caches belong to the Resolver and live for one batch.
type Resolver struct {
	zones     *zoneCache
	locations map[string]*time.Location
}

// NewResolver creates a Resolver backed by the given locator.
func NewResolver(locator Locator) *Resolver {
	return &Resolver{
		zones:     newZoneCache(locator),
		locations: make(map[string]*time.Location),
	}
}

// Resolve returns the IANA zone id for a coordinate.
func (r *Resolver) Resolve(lat, lon float64) (string, error) {
	tz := r.zones.lookup(lat, lon)
	if tz == "" {
		return "", fmt.Errorf("%w: lat=%.4f lon=%.4f", domain.ErrUnresolvableLocation, lat, lon)
	}
	return tz, nil
}

// Localize interprets date (FL_DATE, first token "M/D/YYYY") and hhmm
// (CRS_DEP_TIME, exactly four digits) as a wall time in zone tzID and returns
// the UTC instant. Wall times inside a DST gap or fold resolve the way
// time.Date does; no special handling is applied.
func (r *Resolver) Localize(date, hhmm, tzID string) (time.Time, error) {
	loc, err := r.location(tzID)
	if err != nil {
		return time.Time{}, err
	}

	fields := strings.Fields(date)
	if len(fields) == 0 {
		return time.Time{}, fmt.Errorf("%w: empty date", domain.ErrMalformedTime)
	}
	day, err := time.Parse(DateLayout, fields[0])
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q", domain.ErrMalformedTime, date)
	}

	hour, minute, err := parseHHMM(hhmm)
	if err != nil {
		return time.Time{}, err
	}

	local := time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, loc)
	return local.UTC(), nil
}

// Reset drops every memoized lookup.
func (r *Resolver) Reset() {
	r.zones.reset()
	clear(r.locations)
}

// CacheStats reports coordinate lookups served from memory and from the locator.
func (r *Resolver) CacheStats() (hits, misses int) {
	return r.zones.hits, r.zones.misses
}

func (r *Resolver) location(tzID string) (*time.Location, error) {
	if loc, ok := r.locations[tzID]; ok {
		return loc, nil
	}
	loc, err := time.LoadLocation(tzID)
	if err != nil || tzID == "" {
		return nil, fmt.Errorf("%w: zone %q", domain.ErrUnresolvableLocation, tzID)
	}
	r.locations[tzID] = loc
	return loc, nil
}

// parseHHMM splits a zero-padded 24-hour "HHMM" string. Leading zeros are
// significant, so "630" is rejected rather than padded.
func parseHHMM(hhmm string) (int, int, error) {
	if len(hhmm) != 4 || strings.IndexFunc(hhmm, notDigit) >= 0 {
		return 0, 0, fmt.Errorf("%w: departure %q", domain.ErrMalformedTime, hhmm)
	}
	hour, errH := strconv.Atoi(hhmm[:2])
	minute, errM := strconv.Atoi(hhmm[2:])
	if errH != nil || errM != nil || hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("%w: departure %q", domain.ErrMalformedTime, hhmm)
	}
	return hour, minute, nil
}

func notDigit(r rune) bool { return r < '0' || r > '9' }
