package csvio

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/couchcryptid/flight-weather-etl/internal/domain"
)

// ParseCleanWeather reads a table written by EncodeWeather.
func ParseCleanWeather(r io.Reader, source string) ([]domain.WeatherObservation, error) {
	t, err := newTable(r, source, WeatherHeader...)
	if err != nil {
		return nil, err
	}
	var obs []domain.WeatherObservation
	for {
		ok, err := t.next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return obs, nil
		}
		o, err := cleanWeather(t, "date")
		if err != nil {
			return nil, fmt.Errorf("%s: %w", source, err)
		}
		obs = append(obs, o)
	}
}

// ParseCleanFlights reads a table written by EncodeFlights. congestion_score
// is optional; an empty score cell reads as nil.
func ParseCleanFlights(r io.Reader, source string) ([]domain.FlightRecord, error) {
	t, err := newTable(r, source, FlightsHeader(false)...)
	if err != nil {
		return nil, err
	}
	var flights []domain.FlightRecord
	for {
		ok, err := t.next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return flights, nil
		}
		f, err := cleanFlight(t)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", source, err)
		}
		flights = append(flights, f)
	}
}

// ParseMerged reads a table written by EncodeMerged. A row whose weather_date
// cell is empty yields a nil Weather.
func ParseMerged(r io.Reader, source string) ([]domain.MergedRecord, error) {
	t, err := newTable(r, source, append(FlightsHeader(false), MergedWeatherHeader...)...)
	if err != nil {
		return nil, err
	}
	var merged []domain.MergedRecord
	for {
		ok, err := t.next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return merged, nil
		}
		f, err := cleanFlight(t)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", source, err)
		}
		m := domain.MergedRecord{Flight: f}
		if strings.TrimSpace(t.get("weather_date")) != "" {
			o, err := cleanWeather(t, "weather_date")
			if err != nil {
				return nil, fmt.Errorf("%s: %w", source, err)
			}
			m.Weather = &o
		}
		merged = append(merged, m)
	}
}

// ReadCleanWeather reads a cleaned weather file.
func ReadCleanWeather(path string) ([]domain.WeatherObservation, error) {
	return readFile(path, ParseCleanWeather)
}

// ReadCleanFlights reads a cleaned flight file.
func ReadCleanFlights(path string) ([]domain.FlightRecord, error) {
	return readFile(path, ParseCleanFlights)
}

// ReadMerged reads a merged file.
func ReadMerged(path string) ([]domain.MergedRecord, error) {
	return readFile(path, ParseMerged)
}

func readFile[T any](path string, parse func(io.Reader, string) ([]T, error)) ([]T, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer f.Close()
	return parse(f, path)
}

func cleanWeather(t *table, dateColumn string) (domain.WeatherObservation, error) {
	ts, err := parseTime(t.get(dateColumn))
	if err != nil {
		return domain.WeatherObservation{}, t.malformed(dateColumn, err)
	}
	o := domain.WeatherObservation{Time: ts}
	fields := []*int{&o.WindDir, &o.WindSpeed, &o.Ceiling, &o.Visibility, &o.Temp, &o.DewPoint, &o.Pressure}
	for i, column := range WeatherHeader[1:] {
		v, err := strconv.Atoi(strings.TrimSpace(t.get(column)))
		if err != nil {
			return domain.WeatherObservation{}, t.malformed(column, err)
		}
		*fields[i] = v
	}
	return o, nil
}

func cleanFlight(t *table) (domain.FlightRecord, error) {
	ts, err := parseTime(t.get("date"))
	if err != nil {
		return domain.FlightRecord{}, t.malformed("date", err)
	}
	delay, err := strconv.ParseFloat(strings.TrimSpace(t.get("weather_delay")), 64)
	if err != nil {
		return domain.FlightRecord{}, t.malformed("weather_delay", err)
	}
	f := domain.FlightRecord{
		ICAO:         strings.TrimSpace(t.get("icao")),
		UTC:          ts,
		WeatherDelay: delay,
	}
	if s := strings.TrimSpace(t.get("congestion_score")); s != "" {
		score, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return domain.FlightRecord{}, t.malformed("congestion_score", err)
		}
		f = f.WithCongestion(score)
	}
	return f, nil
}

// ExtractCleanWeather reads the weather table previously written to the sink directory.
func (s Sink) ExtractCleanWeather(ctx context.Context) ([]domain.WeatherObservation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return ReadCleanWeather(filepath.Join(s.Dir, WeatherFile))
}

// ExtractCleanFlights reads the flight table previously written to the sink directory.
func (s Sink) ExtractCleanFlights(ctx context.Context) ([]domain.FlightRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return ReadCleanFlights(filepath.Join(s.Dir, FlightsFile))
}
