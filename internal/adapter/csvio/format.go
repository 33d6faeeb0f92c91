package csvio

import (
	"strconv"
	"strings"
	"time"
)

// TimeLayout is the datetime format of every output table. Times are written
// in UTC, so the offset is always "+00:00".
const TimeLayout = "2006-01-02T15:04:05-07:00"

// Output file names inside the output directory.
const (
	WeatherFile = "metar_dt.csv"
	FlightsFile = "tnst_dt.csv"
	MergedFile  = "tnst_matched.csv"
)

// Output columns.
var (
	WeatherHeader = []string{"date", "wind_dir", "wind_speed", "ceiling", "visibility", "temp", "dew_pnt", "pressure"}
	// MergedWeatherHeader holds the weather columns appended to each flight
	// row in the merged table. The observation's own time is weather_date.
	MergedWeatherHeader = []string{"weather_date", "wind_dir", "wind_speed", "ceiling", "visibility", "temp", "dew_pnt", "pressure"}
)

// FlightsHeader returns the flight table columns, with congestion_score when scored.
func FlightsHeader(scored bool) []string {
	h := []string{"date", "icao", "weather_delay"}
	if scored {
		h = append(h, "congestion_score")
	}
	return h
}

func formatTime(t time.Time) string { return t.UTC().Format(TimeLayout) }

func formatFloat(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

// parseTime accepts the output layout and the space-separated form pandas
// writes for zone-aware timestamps.
func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	t, err := time.Parse(TimeLayout, s)
	if err != nil {
		t, err = time.Parse("2006-01-02 15:04:05-07:00", s)
	}
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
