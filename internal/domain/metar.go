package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// WeatherTimeLayout is the ISD DATE format. It carries no offset; values are UTC.
const WeatherTimeLayout = "2006-01-02T15:04:05"

// SentinelField describes one ISD composite column and the fixed-width
// prefix that marks it as missing.
type SentinelField struct {
	Column   string
	Width    int
	Sentinel string
}

// ISD sentinel fields, in the order the cleanup checks them.
var (
	FieldWind       = SentinelField{Column: "WND", Width: 3, Sentinel: "999"}
	FieldCeiling    = SentinelField{Column: "CIG", Width: 5, Sentinel: "99999"}
	FieldVisibility = SentinelField{Column: "VIS", Width: 5, Sentinel: "999999"}
	FieldTemp       = SentinelField{Column: "TMP", Width: 5, Sentinel: "+9999"}
	FieldDewPoint   = SentinelField{Column: "DEW", Width: 5, Sentinel: "+9999"}
	FieldPressure   = SentinelField{Column: "SLP", Width: 5, Sentinel: "99999"}
)

// WeatherFields lists every sentinel field a row must pass to be kept.
var WeatherFields = []SentinelField{
	FieldWind, FieldCeiling, FieldVisibility, FieldTemp, FieldDewPoint, FieldPressure,
}

// Missing reports whether raw starts with the field's sentinel. Only the first
// Width characters are compared, so a sentinel longer than the prefix width
// (visibility: "999999" over 5 chars) is matched on its leading Width chars.
func (f SentinelField) Missing(raw string) bool {
	return prefix(raw, f.Width) == prefix(f.Sentinel, f.Width)
}

// SubField decodes the k-th (0-based) comma-separated sub-field of raw as an int.
// A leading '+' is accepted ("+0056" → 56).
func (f SentinelField) SubField(raw string, k int) (int, error) {
	parts := strings.Split(raw, ",")
	if k >= len(parts) {
		return 0, fmt.Errorf("sub-field %d out of range (%d sub-fields)", k, len(parts))
	}
	v, err := strconv.Atoi(strings.TrimSpace(parts[k]))
	if err != nil {
		return 0, fmt.Errorf("sub-field %d: %w", k, err)
	}
	return v, nil
}

func prefix(s string, n int) string {
	if len(s) < n {
		return s
	}
	return s[:n]
}

// value returns the raw composite string of the given field from a row.
func (r RawWeather) value(f SentinelField) string {
	switch f.Column {
	case "WND":
		return r.WND
	case "CIG":
		return r.CIG
	case "VIS":
		return r.VIS
	case "TMP":
		return r.TMP
	case "DEW":
		return r.DEW
	case "SLP":
		return r.SLP
	default:
		return ""
	}
}

// MissingColumn returns the first column of the row carrying a missing
// sentinel, or "" when all six fields are present.
func MissingColumn(raw RawWeather) string {
	for _, f := range WeatherFields {
		if f.Missing(raw.value(f)) {
			return f.Column
		}
	}
	return ""
}

// DecodeWeather turns a raw ISD row into an observation. It returns ok=false
// when any field carries its missing sentinel; the row is then skipped and no
// observation is built. A field that passed the sentinel check but does not
// decode yields a *MalformedFieldError, which callers treat as fatal.
func DecodeWeather(raw RawWeather) (WeatherObservation, bool, error) {
	if MissingColumn(raw) != "" {
		return WeatherObservation{}, false, nil
	}

	ts, err := time.ParseInLocation(WeatherTimeLayout, strings.TrimSpace(raw.Date), time.UTC)
	if err != nil {
		return WeatherObservation{}, false, &MalformedFieldError{Row: raw.Row, Column: "DATE", Value: raw.Date, Err: err}
	}

	d := decoder{raw: raw}
	obs := WeatherObservation{
		Time:       ts,
		WindDir:    d.field(FieldWind, 0),
		WindSpeed:  d.field(FieldWind, 3),
		Ceiling:    d.field(FieldCeiling, 0),
		Visibility: d.field(FieldVisibility, 0),
		Temp:       d.field(FieldTemp, 0),
		DewPoint:   d.field(FieldDewPoint, 0),
		Pressure:   d.field(FieldPressure, 0),
	}
	if d.err != nil {
		return WeatherObservation{}, false, d.err
	}
	return obs, true, nil
}

// decoder keeps the first sub-field error so DecodeWeather reads as a single
// struct literal.
type decoder struct {
	raw RawWeather
	err error
}

func (d *decoder) field(f SentinelField, k int) int {
	if d.err != nil {
		return 0
	}
	value := d.raw.value(f)
	v, err := f.SubField(value, k)
	if err != nil {
		d.err = &MalformedFieldError{Row: d.raw.Row, Column: f.Column, Value: value, Err: err}
	}
	return v
}
