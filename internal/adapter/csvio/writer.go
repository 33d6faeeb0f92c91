package csvio

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/couchcryptid/flight-weather-etl/internal/domain"
	"github.com/couchcryptid/flight-weather-etl/internal/pipeline"
)

// EncodeWeather writes the cleaned weather table.
func EncodeWeather(w io.Writer, obs []domain.WeatherObservation) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(WeatherHeader); err != nil {
		return err
	}
	for _, o := range obs {
		if err := cw.Write(append([]string{formatTime(o.Time)}, weatherValues(o)...)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// EncodeFlights writes the cleaned flight table. congestion_score is written
// only when scored is set.
func EncodeFlights(w io.Writer, flights []domain.FlightRecord, scored bool) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(FlightsHeader(scored)); err != nil {
		return err
	}
	for _, f := range flights {
		if err := cw.Write(flightValues(f, scored)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// EncodeMerged writes one row per flight followed by its matched weather.
// Weather cells are empty for a flight left unmatched.
func EncodeMerged(w io.Writer, merged []domain.MergedRecord, scored bool) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(append(FlightsHeader(scored), MergedWeatherHeader...)); err != nil {
		return err
	}
	empty := make([]string, len(MergedWeatherHeader))
	for _, m := range merged {
		row := flightValues(m.Flight, scored)
		if m.Weather == nil {
			row = append(row, empty...)
		} else {
			row = append(row, formatTime(m.Weather.Time))
			row = append(row, weatherValues(*m.Weather)...)
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func weatherValues(o domain.WeatherObservation) []string {
	return []string{
		strconv.Itoa(o.WindDir),
		strconv.Itoa(o.WindSpeed),
		strconv.Itoa(o.Ceiling),
		strconv.Itoa(o.Visibility),
		strconv.Itoa(o.Temp),
		strconv.Itoa(o.DewPoint),
		strconv.Itoa(o.Pressure),
	}
}

func flightValues(f domain.FlightRecord, scored bool) []string {
	row := []string{formatTime(f.UTC), f.ICAO, formatFloat(f.WeatherDelay)}
	if scored {
		score := ""
		if f.CongestionScore != nil {
			score = formatFloat(*f.CongestionScore)
		}
		row = append(row, score)
	}
	return row
}

// ErrBatchClosed is returned when a batch is used after Commit or Discard.
var ErrBatchClosed = errors.New("write batch already closed")

// Sink writes output tables into a directory and reads cleaned tables back.
type Sink struct {
	Dir string
}

// Begin starts a batch of table writes in the sink directory.
func (s Sink) Begin(ctx context.Context) (pipeline.Batch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &Batch{dir: s.Dir}, nil
}

// Batch stages each table as a temporary file next to its final path. Commit
// renames them into place in load order. If a rename fails, the tables already
// renamed are removed and the remaining temporary files deleted, so a failed
// commit leaves no output table behind.
type Batch struct {
	dir    string
	staged []stagedFile
	closed bool
}

type stagedFile struct {
	tmp  string
	path string
}

// LoadWeather stages the cleaned weather table.
func (b *Batch) LoadWeather(ctx context.Context, obs []domain.WeatherObservation) (string, error) {
	return b.stage(ctx, WeatherFile, func(w io.Writer) error { return EncodeWeather(w, obs) })
}

// LoadFlights stages the cleaned flight table.
func (b *Batch) LoadFlights(ctx context.Context, flights []domain.FlightRecord, variant domain.FlightVariant) (string, error) {
	return b.stage(ctx, FlightsFile, func(w io.Writer) error { return EncodeFlights(w, flights, variant.Scored()) })
}

// LoadMerged stages the merged table.
func (b *Batch) LoadMerged(ctx context.Context, merged []domain.MergedRecord, variant domain.FlightVariant) (string, error) {
	return b.stage(ctx, MergedFile, func(w io.Writer) error { return EncodeMerged(w, merged, variant.Scored()) })
}

func (b *Batch) stage(ctx context.Context, name string, encode func(io.Writer) error) (string, error) {
	if b.closed {
		return "", ErrBatchClosed
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	path := filepath.Join(b.dir, name)
	tmp, err := writeTemp(path, encode)
	if err != nil {
		return "", err
	}

	// A table staged twice keeps the latest encoding.
	for i, f := range b.staged {
		if f.path == path {
			_ = os.Remove(f.tmp)
			b.staged[i].tmp = tmp
			return path, nil
		}
	}
	b.staged = append(b.staged, stagedFile{tmp: tmp, path: path})
	return path, nil
}

// Commit renames every staged table into place.
func (b *Batch) Commit(ctx context.Context) error {
	if b.closed {
		return ErrBatchClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	b.closed = true
	staged := b.staged
	b.staged = nil

	for i, f := range staged {
		if err := os.Rename(f.tmp, f.path); err != nil {
			for _, done := range staged[:i] {
				_ = os.Remove(done.path)
			}
			for _, pending := range staged[i:] {
				_ = os.Remove(pending.tmp)
			}
			return fmt.Errorf("rename %s: %w", filepath.Base(f.path), err)
		}
	}
	return nil
}

// Discard removes every staged temporary file.
func (b *Batch) Discard() {
	if b.closed {
		return
	}
	b.closed = true
	for _, f := range b.staged {
		_ = os.Remove(f.tmp)
	}
	b.staged = nil
}

// writeTemp encodes into a new temporary file in the directory of path and
// returns its name. On failure the temporary file is removed.
func writeTemp(path string, encode func(io.Writer) error) (name string, err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if err = encode(tmp); err != nil {
		return "", fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err = tmp.Sync(); err != nil {
		return "", fmt.Errorf("sync %s: %w", filepath.Base(path), err)
	}
	if err = tmp.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", filepath.Base(path), err)
	}
	return tmp.Name(), nil
}
