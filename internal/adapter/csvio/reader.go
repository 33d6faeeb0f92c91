package csvio

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/couchcryptid/flight-weather-etl/internal/domain"
)

// Raw input columns.
var (
	weatherColumns = []string{"DATE", "WND", "CIG", "VIS", "TMP", "DEW", "SLP"}
	flightColumns  = []string{"FL_DATE", "CRS_DEP_TIME", "ORIGIN", "WEATHER_DELAY"}
	airportColumns = []string{"iata", "icao", "latitude", "longitude"}
)

// ParseWeather reads an ISD global-hourly CSV stream. Columns other than the
// seven the decoder needs are ignored.
func ParseWeather(r io.Reader, source string) ([]domain.RawWeather, error) {
	t, err := newTable(r, source, weatherColumns...)
	if err != nil {
		return nil, err
	}
	var rows []domain.RawWeather
	for {
		ok, err := t.next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return rows, nil
		}
		rows = append(rows, domain.RawWeather{
			Source: source,
			Row:    t.row,
			Date:   t.get("DATE"),
			WND:    t.get("WND"),
			CIG:    t.get("CIG"),
			VIS:    t.get("VIS"),
			TMP:    t.get("TMP"),
			DEW:    t.get("DEW"),
			SLP:    t.get("SLP"),
		})
	}
}

// ParseFlights reads a Transtats on-time performance CSV stream.
func ParseFlights(r io.Reader, source string) ([]domain.RawFlight, error) {
	t, err := newTable(r, source, flightColumns...)
	if err != nil {
		return nil, err
	}
	var rows []domain.RawFlight
	for {
		ok, err := t.next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return rows, nil
		}
		rows = append(rows, domain.RawFlight{
			Source:       source,
			Row:          t.row,
			FlightDate:   t.get("FL_DATE"),
			DepTime:      strings.TrimSpace(t.get("CRS_DEP_TIME")),
			Origin:       t.get("ORIGIN"),
			WeatherDelay: t.get("WEATHER_DELAY"),
		})
	}
}

// ParseAirports reads the IATA to ICAO reference table. Rows without an IATA
// code are skipped and the first row wins for a repeated code. Unparseable
// coordinates abort the read.
func ParseAirports(r io.Reader, source string) (domain.AirportIndex, error) {
	t, err := newTable(r, source, airportColumns...)
	if err != nil {
		return nil, err
	}
	index := make(domain.AirportIndex)
	for {
		ok, err := t.next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return index, nil
		}

		iata := strings.TrimSpace(t.get("iata"))
		if iata == "" {
			continue
		}
		if _, seen := index[iata]; seen {
			continue
		}
		lat, err := strconv.ParseFloat(strings.TrimSpace(t.get("latitude")), 64)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", source, t.malformed("latitude", err))
		}
		lon, err := strconv.ParseFloat(strings.TrimSpace(t.get("longitude")), 64)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", source, t.malformed("longitude", err))
		}
		index[iata] = domain.Airport{
			IATA: iata,
			ICAO: strings.TrimSpace(t.get("icao")),
			Lat:  lat,
			Lon:  lon,
		}
	}
}

// Source reads the raw inputs of a run from local files. Multiple weather or
// flight files are concatenated in the order given.
type Source struct {
	WeatherPaths []string
	FlightPaths  []string
	AirportsPath string
}

// ExtractWeather reads every weather file.
func (s Source) ExtractWeather(ctx context.Context) ([]domain.RawWeather, error) {
	return readAll(ctx, s.WeatherPaths, ParseWeather)
}

// ExtractFlights reads every flight file.
func (s Source) ExtractFlights(ctx context.Context) ([]domain.RawFlight, error) {
	return readAll(ctx, s.FlightPaths, ParseFlights)
}

// ExtractAirports reads the airport reference table.
func (s Source) ExtractAirports(ctx context.Context) (domain.AirportIndex, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var index domain.AirportIndex
	err := withFile(s.AirportsPath, func(f io.Reader) error {
		var err error
		index, err = ParseAirports(f, s.AirportsPath)
		return err
	})
	return index, err
}

func readAll[T any](ctx context.Context, paths []string, parse func(io.Reader, string) ([]T, error)) ([]T, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("no input files: %w", domain.ErrEmptyInput)
	}
	var all []T
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		err := withFile(path, func(f io.Reader) error {
			rows, err := parse(f, path)
			all = append(all, rows...)
			return err
		})
		if err != nil {
			return nil, err
		}
	}
	return all, nil
}

func withFile(path string, fn func(io.Reader) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer f.Close()
	return fn(f)
}
