package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/joho/godotenv"
)

// Config holds all run settings, populated from environment variables and an
// optional .env file in the working directory.
type Config struct {
	WeatherInputs []string
	FlightInputs  []string
	AirportsPath  string
	OutputDir     string

	StationICAO   string
	TrainFraction float64
	JoinTolerance time.Duration

	MetricsAddr     string
	MetricsTextfile string

	// Optional sinks, disabled while their topic or DSN is empty.
	KafkaBrokers   []string
	KafkaSinkTopic string
	PostgresDSN    string
	PostgresTable  string

	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
}

// Load reads configuration from environment variables, applying defaults where unset.
// Variables already set in the environment take precedence over .env entries.
func Load() (*Config, error) {
	_ = godotenv.Load()

	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	trainFraction, err := strconv.ParseFloat(sharedcfg.EnvOrDefault("TRAIN_FRACTION", "0.75"), 64)
	if err != nil || trainFraction <= 0 || trainFraction > 1 {
		return nil, errors.New("invalid TRAIN_FRACTION: must be in (0, 1]")
	}

	tolerance, err := time.ParseDuration(sharedcfg.EnvOrDefault("JOIN_TOLERANCE", "0s"))
	if err != nil || tolerance < 0 {
		return nil, errors.New("invalid JOIN_TOLERANCE")
	}

	cfg := &Config{
		WeatherInputs: SplitList(os.Getenv("WEATHER_INPUTS")),
		FlightInputs:  SplitList(os.Getenv("FLIGHT_INPUTS")),
		AirportsPath:  os.Getenv("AIRPORTS_PATH"),
		OutputDir:     sharedcfg.EnvOrDefault("OUTPUT_DIR", "."),

		StationICAO:   strings.ToUpper(sharedcfg.EnvOrDefault("STATION_ICAO", "KBNA")),
		TrainFraction: trainFraction,
		JoinTolerance: tolerance,

		MetricsAddr:     os.Getenv("METRICS_ADDR"),
		MetricsTextfile: os.Getenv("METRICS_TEXTFILE"),

		KafkaBrokers:   sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSinkTopic: os.Getenv("KAFKA_SINK_TOPIC"),
		PostgresDSN:    os.Getenv("POSTGRES_DSN"),
		PostgresTable:  sharedcfg.EnvOrDefault("POSTGRES_TABLE", "flight_weather"),

		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
	}

	if cfg.OutputDir == "" {
		return nil, errors.New("OUTPUT_DIR is required")
	}
	if cfg.KafkaSinkTopic != "" && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required when KAFKA_SINK_TOPIC is set")
	}
	if cfg.PostgresDSN != "" && !validIdentifier(cfg.PostgresTable) {
		return nil, errors.New("invalid POSTGRES_TABLE")
	}

	return cfg, nil
}

// RequireWeather reports whether the weather inputs of a run are configured.
func (c *Config) RequireWeather() error {
	if len(c.WeatherInputs) == 0 {
		return errors.New("WEATHER_INPUTS is required")
	}
	return nil
}

// RequireFlights reports whether the flight inputs of a run are configured.
func (c *Config) RequireFlights() error {
	if len(c.FlightInputs) == 0 {
		return errors.New("FLIGHT_INPUTS is required")
	}
	if c.AirportsPath == "" {
		return errors.New("AIRPORTS_PATH is required")
	}
	return nil
}

// KafkaEnabled reports whether merged records are also published to Kafka.
func (c *Config) KafkaEnabled() bool { return c.KafkaSinkTopic != "" }

// PostgresEnabled reports whether merged records are also copied to Postgres.
func (c *Config) PostgresEnabled() bool { return c.PostgresDSN != "" }

// SplitList splits a comma-separated list, dropping empty entries.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// validIdentifier accepts an optionally schema-qualified SQL identifier made
// of letters, digits and underscores.
func validIdentifier(name string) bool {
	if name == "" {
		return false
	}
	for _, part := range strings.Split(name, ".") {
		if part == "" || (part[0] >= '0' && part[0] <= '9') {
			return false
		}
		for _, r := range part {
			if !(r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')) {
				return false
			}
		}
	}
	return true
}
