package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"

	"github.com/couchcryptid/flight-weather-etl/internal/adapter/csvio"
	httpadapter "github.com/couchcryptid/flight-weather-etl/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/flight-weather-etl/internal/adapter/kafka"
	"github.com/couchcryptid/flight-weather-etl/internal/adapter/postgres"
	"github.com/couchcryptid/flight-weather-etl/internal/config"
	"github.com/couchcryptid/flight-weather-etl/internal/domain"
	"github.com/couchcryptid/flight-weather-etl/internal/observability"
	"github.com/couchcryptid/flight-weather-etl/internal/pipeline"
	"github.com/couchcryptid/flight-weather-etl/internal/timezone"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

// app holds the state shared by every subcommand.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
}

// inputs lists which raw inputs a command reads and whether it publishes.
type inputs struct {
	weather bool
	flights bool
	publish bool
}

type runFunc func(ctx context.Context, p *pipeline.Pipeline) (pipeline.Summary, error)

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:               "flight-weather-etl",
		Short:             "Clean NOAA weather and BTS flight records and merge them by time",
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}

	f := root.PersistentFlags()
	f.StringSlice("weather", nil, "ISD global-hourly CSV files (WEATHER_INPUTS)")
	f.StringSlice("flights", nil, "Transtats on-time CSV files (FLIGHT_INPUTS)")
	f.String("airports", "", "IATA/ICAO reference CSV (AIRPORTS_PATH)")
	f.String("output-dir", "", "directory for output tables (OUTPUT_DIR)")
	f.String("station", "", "ICAO station to keep, empty for all (STATION_ICAO)")
	f.Float64("train-fraction", 0, "leading share of flights used for the window search (TRAIN_FRACTION)")
	f.Duration("tolerance", 0, "maximum flight to weather distance, 0 for unbounded (JOIN_TOLERANCE)")
	f.String("metrics-addr", "", "serve health and metrics while running (METRICS_ADDR)")

	weatherCmd := &cobra.Command{
		Use:   "weather",
		Short: "Clean raw weather observations into metar_dt.csv",
		RunE: a.runE(inputs{weather: true}, func(ctx context.Context, p *pipeline.Pipeline) (pipeline.Summary, error) {
			return p.RunWeather(ctx)
		}),
	}

	flightsCmd := &cobra.Command{
		Use:   "flights",
		Short: "Clean flights and score congestion into tnst_dt.csv",
		RunE: a.runE(inputs{flights: true}, func(ctx context.Context, p *pipeline.Pipeline) (pipeline.Summary, error) {
			return p.RunFlights(ctx, domain.VariantCongestion)
		}),
	}

	stitchCmd := &cobra.Command{
		Use:   "stitch",
		Short: "Keep weather-delayed flights at US airports into tnst_dt.csv",
		RunE: a.runE(inputs{flights: true}, func(ctx context.Context, p *pipeline.Pipeline) (pipeline.Summary, error) {
			return p.RunFlights(ctx, domain.VariantWeatherDelay)
		}),
	}

	matchCmd := &cobra.Command{
		Use:   "match",
		Short: "Join the cleaned tables by nearest time into tnst_matched.csv",
		RunE: a.runE(inputs{publish: true}, func(ctx context.Context, p *pipeline.Pipeline) (pipeline.Summary, error) {
			return p.RunMatch(ctx)
		}),
	}

	var weatherDelay bool
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Clean both datasets, join them and write all tables",
		RunE: a.runE(inputs{weather: true, flights: true, publish: true}, func(ctx context.Context, p *pipeline.Pipeline) (pipeline.Summary, error) {
			variant := domain.VariantCongestion
			if weatherDelay {
				variant = domain.VariantWeatherDelay
			}
			return p.Run(ctx, variant)
		}),
	}
	runCmd.Flags().BoolVar(&weatherDelay, "weather-delay", false, "use the weather-delay flight cleanup instead of congestion scoring")

	root.AddCommand(weatherCmd, flightsCmd, stitchCmd, matchCmd, runCmd)
	return root
}

// setup loads configuration, applies flag overrides and builds the logger.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := applyFlags(cmd, cfg); err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = sharedobs.NewLogger(cfg.LogLevel, cfg.LogFormat)
	return nil
}

func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	f := cmd.Flags()
	var err error
	if f.Changed("weather") {
		cfg.WeatherInputs, err = f.GetStringSlice("weather")
	}
	if err == nil && f.Changed("flights") {
		cfg.FlightInputs, err = f.GetStringSlice("flights")
	}
	if err == nil && f.Changed("airports") {
		cfg.AirportsPath, err = f.GetString("airports")
	}
	if err == nil && f.Changed("output-dir") {
		cfg.OutputDir, err = f.GetString("output-dir")
	}
	if err == nil && f.Changed("station") {
		var station string
		station, err = f.GetString("station")
		cfg.StationICAO = strings.ToUpper(station)
	}
	if err == nil && f.Changed("train-fraction") {
		cfg.TrainFraction, err = f.GetFloat64("train-fraction")
	}
	if err == nil && f.Changed("tolerance") {
		cfg.JoinTolerance, err = f.GetDuration("tolerance")
	}
	if err == nil && f.Changed("metrics-addr") {
		cfg.MetricsAddr, err = f.GetString("metrics-addr")
	}
	if err != nil {
		return err
	}

	if cfg.TrainFraction <= 0 || cfg.TrainFraction > 1 {
		return errors.New("--train-fraction must be in (0, 1]")
	}
	if cfg.JoinTolerance < 0 {
		return errors.New("--tolerance must not be negative")
	}
	return nil
}

func (a *app) runE(in inputs, fn runFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		if in.weather {
			if err := a.cfg.RequireWeather(); err != nil {
				return err
			}
		}
		if in.flights {
			if err := a.cfg.RequireFlights(); err != nil {
				return err
			}
		}
		return a.execute(cmd.Context(), in, fn)
	}
}

func (a *app) execute(parent context.Context, in inputs, fn runFunc) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, logger := a.cfg, a.logger
	metrics := observability.NewMetrics()

	var locator timezone.Locator
	if in.flights {
		var err error
		if locator, err = timezone.NewDefaultLocator(); err != nil {
			return err
		}
	}

	var publishers []pipeline.Publisher
	if in.publish && cfg.KafkaEnabled() {
		writer := kafkaadapter.NewWriter(cfg, logger)
		defer func() {
			if err := writer.Close(); err != nil {
				logger.Error("kafka writer close error", "error", err)
			}
		}()
		publishers = append(publishers, writer)
		logger.Info("kafka sink enabled", "topic", cfg.KafkaSinkTopic)
	}
	if in.publish && cfg.PostgresEnabled() {
		sink, err := postgres.NewSink(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer sink.Close()
		publishers = append(publishers, sink)
		logger.Info("postgres sink enabled", "table", cfg.PostgresTable)
	}

	source := csvio.Source{
		WeatherPaths: cfg.WeatherInputs,
		FlightPaths:  cfg.FlightInputs,
		AirportsPath: cfg.AirportsPath,
	}
	settings := pipeline.Settings{
		Station:       cfg.StationICAO,
		TrainFraction: cfg.TrainFraction,
		JoinTolerance: cfg.JoinTolerance,
	}
	p := pipeline.New(source, csvio.Sink{Dir: cfg.OutputDir}, locator, logger, metrics,
		pipeline.WithSettings(settings),
		pipeline.WithPublishers(publishers...),
	)

	if cfg.MetricsAddr != "" {
		srv := httpadapter.NewServer(cfg.MetricsAddr, p, p, logger)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server error", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("http server shutdown error", "error", err)
			}
		}()
	}

	_, err := fn(ctx, p)

	if cfg.MetricsTextfile != "" {
		if terr := observability.WriteTextfile(cfg.MetricsTextfile, prometheus.DefaultGatherer); terr != nil {
			logger.Error("metrics textfile write failed", "path", cfg.MetricsTextfile, "error", terr)
		}
	}
	return err
}
