// Command validate checks the tables written by the ETL for internal
// consistency: no missing-value sentinels in the weather table, sorted and
// fully scored flights, one merged row per flight, and every merged
// observation being the nearest one available.
//
// Usage:
//
//	go run ./cmd/validate -dir out
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/couchcryptid/flight-weather-etl/internal/adapter/csvio"
	"github.com/couchcryptid/flight-weather-etl/internal/domain"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

// maxReported caps the detailed errors printed per phase.
const maxReported = 20

func main() {
	dir := flag.String("dir", ".", "directory containing metar_dt.csv, tnst_dt.csv and tnst_matched.csv")
	flag.Parse()

	os.Exit(run(*dir))
}

func run(dir string) int {
	fmt.Println("=== Flight Weather Output Validation ===")
	fmt.Println()

	weather, err := csvio.ReadCleanWeather(filepath.Join(dir, csvio.WeatherFile))
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load weather table: %v\n", err)
		return 1
	}
	flights, err := csvio.ReadCleanFlights(filepath.Join(dir, csvio.FlightsFile))
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load flight table: %v\n", err)
		return 1
	}
	merged, err := csvio.ReadMerged(filepath.Join(dir, csvio.MergedFile))
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load merged table: %v\n", err)
		return 1
	}

	phases := []*phase{
		validateWeather(weather),
		validateFlights(flights),
		validateMerged(merged, flights, weather),
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Records: %d weather, %d flights, %d merged\n", len(weather), len(flights), len(merged))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			if i == maxReported {
				fmt.Printf("  ... %d more\n", len(p.errors)-maxReported)
				break
			}
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// ── Weather ──

// sentinelValues are the decoded forms of the ISD missing-value markers.
var sentinelValues = map[string][]int{
	"wind_dir":   {999},
	"ceiling":    {99999},
	"visibility": {99999, 999999},
	"temp":       {9999},
	"dew_pnt":    {9999},
	"pressure":   {99999},
}

func validateWeather(weather []domain.WeatherObservation) *phase {
	p := &phase{name: "Weather: no missing-value sentinels"}
	if len(weather) == 0 {
		p.errorf("weather table is empty")
	}
	for i, o := range weather {
		values := map[string]int{
			"wind_dir":   o.WindDir,
			"ceiling":    o.Ceiling,
			"visibility": o.Visibility,
			"temp":       o.Temp,
			"dew_pnt":    o.DewPoint,
			"pressure":   o.Pressure,
		}
		for column, sentinels := range sentinelValues {
			if slices.Contains(sentinels, values[column]) {
				p.errorf("row %d (%s): %s carries sentinel %d", i+1, o.Time.Format(csvio.TimeLayout), column, values[column])
			}
		}
	}
	return p
}

// ── Flights ──

func validateFlights(flights []domain.FlightRecord) *phase {
	p := &phase{name: "Flights: sorted, scored, non-negative delay"}
	if len(flights) == 0 {
		p.errorf("flight table is empty")
		return p
	}

	scored := flights[0].CongestionScore != nil
	for i, f := range flights {
		if i > 0 && f.UTC.Before(flights[i-1].UTC) {
			p.errorf("row %d: %s departs before previous row", i+1, f.UTC.Format(csvio.TimeLayout))
		}
		if f.WeatherDelay < 0 {
			p.errorf("row %d: negative weather_delay %v", i+1, f.WeatherDelay)
		}
		switch {
		case scored && f.CongestionScore == nil:
			p.errorf("row %d: missing congestion_score", i+1)
		case scored && *f.CongestionScore < 0:
			p.errorf("row %d: negative congestion_score %v", i+1, *f.CongestionScore)
		case !scored && f.CongestionScore != nil:
			p.errorf("row %d: unexpected congestion_score in unscored table", i+1)
		}
	}
	return p
}

// ── Merged ──

func validateMerged(merged []domain.MergedRecord, flights []domain.FlightRecord, weather []domain.WeatherObservation) *phase {
	p := &phase{name: "Merged: one row per flight, nearest weather"}
	if len(merged) != len(flights) {
		p.errorf("merged has %d rows, flight table has %d", len(merged), len(flights))
	}

	times := make([]time.Time, len(weather))
	for i, o := range weather {
		times[i] = o.Time
	}
	slices.SortFunc(times, time.Time.Compare)

	for i, m := range merged {
		if i < len(flights) && !sameFlight(m.Flight, flights[i]) {
			p.errorf("row %d: flight %s %s does not match flight table row", i+1, m.Flight.ICAO, m.Flight.UTC.Format(csvio.TimeLayout))
		}
		if m.Weather == nil {
			continue
		}
		want, ok := nearestTime(m.Flight.UTC, times)
		if !ok {
			p.errorf("row %d: matched an observation but the weather table is empty", i+1)
			continue
		}
		if !m.Weather.Time.Equal(want) {
			p.errorf("row %d: matched observation at %s, expected %s (%s away, ties go to the earlier one)",
				i+1, m.Weather.Time.Format(csvio.TimeLayout), want.Format(csvio.TimeLayout), absDuration(m.Flight.UTC.Sub(want)))
		}
	}
	return p
}

func sameFlight(a, b domain.FlightRecord) bool {
	return a.ICAO == b.ICAO && a.UTC.Equal(b.UTC) && a.WeatherDelay == b.WeatherDelay
}

// nearestTime returns the closest of the sorted times to t. When two are
// equally close the earlier one wins. ok is false for an empty slice.
func nearestTime(t time.Time, sorted []time.Time) (time.Time, bool) {
	if len(sorted) == 0 {
		return time.Time{}, false
	}
	i, _ := slices.BinarySearchFunc(sorted, t, time.Time.Compare)
	switch {
	case i == len(sorted):
		return sorted[i-1], true
	case i == 0 || sorted[i].Equal(t):
		return sorted[i], true
	}
	before, after := sorted[i-1], sorted[i]
	if t.Sub(before) <= after.Sub(t) {
		return before, true
	}
	return after, true
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
