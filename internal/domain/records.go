package domain

import "time"

// RawWeather is one ISD global-hourly row, restricted to the columns the
// decoder reads. Row is the 1-based data row within Source, for error reports.
type RawWeather struct {
	Source string
	Row    int

	Date string // DATE
	WND  string
	CIG  string
	VIS  string
	TMP  string
	DEW  string
	SLP  string
}

// WeatherObservation is a decoded weather row. Temperatures are tenths of a
// degree Celsius and pressure is tenths of a hectopascal, as ISD encodes them.
type WeatherObservation struct {
	Time       time.Time `json:"date"`
	WindDir    int       `json:"wind_dir"`
	WindSpeed  int       `json:"wind_speed"`
	Ceiling    int       `json:"ceiling"`
	Visibility int       `json:"visibility"`
	Temp       int       `json:"temp"`
	DewPoint   int       `json:"dew_pnt"`
	Pressure   int       `json:"pressure"`
}

// RawFlight is one Transtats on-time row, restricted to the columns the
// cleanup reads.
type RawFlight struct {
	Source string
	Row    int

	FlightDate   string // FL_DATE
	DepTime      string // CRS_DEP_TIME
	Origin       string // ORIGIN
	WeatherDelay string // WEATHER_DELAY
}

// Airport is one row of the IATA → ICAO reference table.
type Airport struct {
	IATA string
	ICAO string
	Lat  float64
	Lon  float64
}

// AirportIndex maps IATA codes to reference rows.
type AirportIndex map[string]Airport

// FlightRecord is a flight row joined with its origin airport. It is built
// once from a raw row, then given its UTC departure via WithUTC and its
// congestion score via WithCongestion; both return a new value.
type FlightRecord struct {
	LocalDate    string    `json:"-"`
	DepTime      string    `json:"-"`
	Origin       string    `json:"origin,omitempty"`
	ICAO         string    `json:"icao"`
	Lat          float64   `json:"-"`
	Lon          float64   `json:"-"`
	TimezoneID   string    `json:"timezone,omitempty"`
	UTC          time.Time `json:"date"`
	WeatherDelay float64   `json:"weather_delay"`

	CongestionScore *float64 `json:"congestion_score,omitempty"`
}

// WithUTC returns a copy of f carrying its resolved zone and UTC departure.
func (f FlightRecord) WithUTC(tzID string, utc time.Time) FlightRecord {
	f.TimezoneID = tzID
	f.UTC = utc.UTC()
	return f
}

// WithCongestion returns a copy of f carrying the given congestion score.
func (f FlightRecord) WithCongestion(score float64) FlightRecord {
	f.CongestionScore = &score
	return f
}

// MergedRecord is a flight paired with its nearest weather observation.
// Weather is nil only when a join tolerance excluded every candidate.
type MergedRecord struct {
	Flight  FlightRecord        `json:"flight"`
	Weather *WeatherObservation `json:"weather,omitempty"`
}

// FlightVariant selects which flight cleanup a run performs.
type FlightVariant int

const (
	// VariantCongestion keeps every flight of the station and scores congestion.
	VariantCongestion FlightVariant = iota
	// VariantWeatherDelay keeps only weather-delayed flights at K-prefixed
	// airports and skips congestion scoring.
	VariantWeatherDelay
)

// Scored reports whether flights of this variant carry a congestion score.
func (v FlightVariant) Scored() bool { return v == VariantCongestion }

func (v FlightVariant) String() string {
	switch v {
	case VariantCongestion:
		return "congestion"
	case VariantWeatherDelay:
		return "weather_delay"
	default:
		return "unknown"
	}
}
