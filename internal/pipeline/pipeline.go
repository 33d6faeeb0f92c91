package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/flight-weather-etl/internal/domain"
	"github.com/couchcryptid/flight-weather-etl/internal/observability"
	"github.com/couchcryptid/flight-weather-etl/internal/timezone"
)

// Source reads the raw inputs of a run.
type Source interface {
	ExtractWeather(ctx context.Context) ([]domain.RawWeather, error)
	ExtractFlights(ctx context.Context) ([]domain.RawFlight, error)
	ExtractAirports(ctx context.Context) (domain.AirportIndex, error)
}

// Store writes the output tables and reads cleaned tables back for matching.
type Store interface {
	Begin(ctx context.Context) (Batch, error)
	ExtractCleanWeather(ctx context.Context) ([]domain.WeatherObservation, error)
	ExtractCleanFlights(ctx context.Context) ([]domain.FlightRecord, error)
}

// Batch stages the output tables of one command. Staged tables become visible
// together on Commit; a failed Commit leaves none of them in place. Load
// methods return the location the table has once committed. Discard drops
// anything still staged and is a no-op after Commit.
type Batch interface {
	LoadWeather(ctx context.Context, obs []domain.WeatherObservation) (string, error)
	LoadFlights(ctx context.Context, flights []domain.FlightRecord, variant domain.FlightVariant) (string, error)
	LoadMerged(ctx context.Context, merged []domain.MergedRecord, variant domain.FlightVariant) (string, error)
	Commit(ctx context.Context) error
	Discard()
}

// Publisher receives the merged table once it has been committed to the Store.
type Publisher interface {
	Name() string
	Publish(ctx context.Context, merged []domain.MergedRecord) error
}

// Settings tunes the cleanup and join stages.
type Settings struct {
	// Station keeps only flights departing this ICAO code. Empty keeps all.
	Station       string
	TrainFraction float64
	// JoinTolerance of zero or less matches regardless of distance.
	JoinTolerance time.Duration
}

// DefaultSettings targets Nashville with a 75% training slice and no join tolerance.
func DefaultSettings() Settings {
	return Settings{Station: "KBNA", TrainFraction: 0.75}
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithSettings replaces the default settings.
func WithSettings(s Settings) Option {
	return func(p *Pipeline) { p.settings = s }
}

// WithClock sets the clock used for run and stage timing.
func WithClock(c clockwork.Clock) Option {
	return func(p *Pipeline) { p.clock = c }
}

// WithPublishers adds sinks that receive the merged table after commit.
func WithPublishers(pubs ...Publisher) Option {
	return func(p *Pipeline) { p.publishers = append(p.publishers, pubs...) }
}

// Pipeline orchestrates extract, cleanup, join and load for the batch commands.
type Pipeline struct {
	source     Source
	store      Store
	locator    timezone.Locator
	publishers []Publisher
	settings   Settings
	logger     *slog.Logger
	metrics    *observability.Metrics
	clock      clockwork.Clock
	newRunID   func() string

	ready atomic.Bool
	last  atomic.Pointer[Summary]
}

// New creates a Pipeline with the given stages and observability.
func New(source Source, store Store, locator timezone.Locator, logger *slog.Logger, metrics *observability.Metrics, opts ...Option) *Pipeline {
	p := &Pipeline{
		source:   source,
		store:    store,
		locator:  locator,
		settings: DefaultSettings(),
		logger:   logger,
		metrics:  metrics,
		clock:    clockwork.NewRealClock(),
		newRunID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// CheckReadiness returns nil once a run has committed its outputs,
// or an error describing why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not completed a run yet")
	}
	return nil
}

// LastRun returns the summary of the most recent finished run.
func (p *Pipeline) LastRun() (Summary, bool) {
	s := p.last.Load()
	if s == nil {
		return Summary{}, false
	}
	return s.clone(), true
}

// RunWeather cleans the raw weather inputs and writes the weather table.
func (p *Pipeline) RunWeather(ctx context.Context) (Summary, error) {
	r := p.begin("weather", "")
	obs, err := p.weatherStage(ctx, r)
	if err == nil {
		err = p.write(ctx, r, weatherOutput(obs))
	}
	return p.finish(r, err)
}

// RunFlights cleans the raw flight inputs for the given variant and writes
// the flight table.
func (p *Pipeline) RunFlights(ctx context.Context, variant domain.FlightVariant) (Summary, error) {
	r := p.begin("flights", variant.String())
	flights, err := p.flightStage(ctx, r, variant)
	if err == nil {
		err = p.write(ctx, r, flightsOutput(flights, variant))
	}
	return p.finish(r, err)
}

// RunMatch reads the cleaned tables back from the store, joins them and
// writes the merged table. The variant follows from the flight table.
func (p *Pipeline) RunMatch(ctx context.Context) (Summary, error) {
	r := p.begin("match", "")

	var obs []domain.WeatherObservation
	var flights []domain.FlightRecord
	err := p.timed(ctx, r, "extract_clean", func() error {
		var err error
		if obs, err = p.store.ExtractCleanWeather(ctx); err != nil {
			return fmt.Errorf("read cleaned weather: %w", err)
		}
		if flights, err = p.store.ExtractCleanFlights(ctx); err != nil {
			return fmt.Errorf("read cleaned flights: %w", err)
		}
		return nil
	})
	if err != nil {
		return p.finish(r, err)
	}

	variant := variantOf(flights)
	r.summary.Variant = variant.String()
	r.summary.WeatherRows, r.summary.FlightRows = len(obs), len(flights)

	merged, err := p.matchStage(ctx, r, obs, flights)
	if err == nil {
		err = p.write(ctx, r, mergedOutput(merged, variant))
	}
	if err == nil {
		err = p.publish(ctx, r, merged)
	}
	return p.finish(r, err)
}

// Run performs the whole batch: both cleanups, the join, then writes all three
// tables in one batch. Either all three tables are committed or none is.
func (p *Pipeline) Run(ctx context.Context, variant domain.FlightVariant) (Summary, error) {
	r := p.begin("run", variant.String())

	obs, err := p.weatherStage(ctx, r)
	if err != nil {
		return p.finish(r, err)
	}
	flights, err := p.flightStage(ctx, r, variant)
	if err != nil {
		return p.finish(r, err)
	}
	merged, err := p.matchStage(ctx, r, obs, flights)
	if err != nil {
		return p.finish(r, err)
	}

	err = p.write(ctx, r,
		weatherOutput(obs),
		flightsOutput(flights, variant),
		mergedOutput(merged, variant),
	)
	if err != nil {
		return p.finish(r, err)
	}
	return p.finish(r, p.publish(ctx, r, merged))
}

// run carries the state of one command invocation.
type run struct {
	summary Summary
	logger  *slog.Logger
}

func (p *Pipeline) begin(command, variant string) *run {
	id := p.newRunID()
	r := &run{
		summary: Summary{RunID: id, Command: command, Variant: variant, Started: p.clock.Now()},
		logger:  p.logger.With("run_id", id, "command", command),
	}
	p.metrics.PipelineRunning.Set(1)
	r.logger.Info("run started", "variant", variant)
	return r
}

func (p *Pipeline) finish(r *run, err error) (Summary, error) {
	p.metrics.PipelineRunning.Set(0)
	r.summary.Finished = p.clock.Now()
	elapsed := r.summary.Finished.Sub(r.summary.Started)

	if err != nil {
		r.summary.Error = err.Error()
		r.logger.Error("run failed", "error", err, "elapsed", elapsed)
	} else {
		p.ready.Store(true)
		p.metrics.LastSuccess.Set(float64(r.summary.Finished.Unix()))
		r.logger.Info("run finished",
			"elapsed", elapsed,
			"weather_rows", r.summary.WeatherRows,
			"flight_rows", r.summary.FlightRows,
			"merged_rows", r.summary.MergedRows,
			"unmatched", r.summary.Unmatched,
			"window", r.summary.Window,
			"outputs", r.summary.Outputs,
		)
	}

	s := r.summary.clone()
	p.last.Store(&s)
	return r.summary, err
}

// timed runs one stage after checking for cancellation and records its duration.
func (p *Pipeline) timed(ctx context.Context, r *run, stage string, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", stage, err)
	}
	start := p.clock.Now()
	r.logger.Debug("stage started", "stage", stage)

	err := fn()

	elapsed := p.clock.Since(start)
	p.metrics.StageDuration.WithLabelValues(stage).Observe(elapsed.Seconds())
	if err != nil {
		return err
	}
	r.logger.Info("stage finished", "stage", stage, "elapsed", elapsed)
	return nil
}

func (p *Pipeline) weatherStage(ctx context.Context, r *run) ([]domain.WeatherObservation, error) {
	var obs []domain.WeatherObservation
	err := p.timed(ctx, r, "weather", func() error {
		raws, err := p.source.ExtractWeather(ctx)
		if err != nil {
			return fmt.Errorf("extract weather: %w", err)
		}
		p.metrics.RowsRead.WithLabelValues("weather").Add(float64(len(raws)))

		var dropped map[string]int
		obs, dropped, err = CleanWeather(raws)
		p.recordDrops(r, "weather", dropped)
		if err != nil {
			return fmt.Errorf("clean weather: %w", err)
		}
		r.summary.WeatherRows = len(obs)
		r.logger.Info("weather cleaned", "read", len(raws), "kept", len(obs))
		return nil
	})
	return obs, err
}

func (p *Pipeline) flightStage(ctx context.Context, r *run, variant domain.FlightVariant) ([]domain.FlightRecord, error) {
	var flights []domain.FlightRecord
	err := p.timed(ctx, r, "flights", func() error {
		airports, err := p.source.ExtractAirports(ctx)
		if err != nil {
			return fmt.Errorf("extract airports: %w", err)
		}
		p.metrics.RowsRead.WithLabelValues("airports").Add(float64(len(airports)))

		raws, err := p.source.ExtractFlights(ctx)
		if err != nil {
			return fmt.Errorf("extract flights: %w", err)
		}
		p.metrics.RowsRead.WithLabelValues("flights").Add(float64(len(raws)))

		filter := domain.FlightFilter{Station: p.settings.Station, Variant: variant}
		res, err := CleanFlights(raws, airports, timezone.NewResolver(p.locator), filter, p.settings.TrainFraction)
		p.recordDrops(r, "flights", res.Dropped)
		p.metrics.TimezoneCache.WithLabelValues("hit").Add(float64(res.CacheHits))
		p.metrics.TimezoneCache.WithLabelValues("miss").Add(float64(res.CacheMisses))
		if err != nil {
			return fmt.Errorf("clean flights: %w", err)
		}

		if res.Window > 0 {
			p.metrics.SelectedWindow.Set(float64(res.Window))
			r.summary.Window = res.Window
		}
		flights = res.Flights
		r.summary.FlightRows = len(flights)
		r.logger.Info("flights cleaned", "read", len(raws), "kept", len(flights), "window", res.Window)
		return nil
	})
	return flights, err
}

func (p *Pipeline) matchStage(ctx context.Context, r *run, obs []domain.WeatherObservation, flights []domain.FlightRecord) ([]domain.MergedRecord, error) {
	var merged []domain.MergedRecord
	err := p.timed(ctx, r, "match", func() error {
		var err error
		merged, err = Match(obs, flights, p.settings.JoinTolerance)
		if err != nil {
			return fmt.Errorf("match: %w", err)
		}
		for _, m := range merged {
			if m.Weather == nil {
				r.summary.Unmatched++
			}
		}
		p.metrics.UnmatchedFlights.Add(float64(r.summary.Unmatched))
		r.summary.MergedRows = len(merged)
		return nil
	})
	return merged, err
}

// output is one table of a write batch.
type output struct {
	table string
	rows  int
	load  func(ctx context.Context, b Batch) (string, error)
}

func weatherOutput(obs []domain.WeatherObservation) output {
	return output{table: "weather", rows: len(obs), load: func(ctx context.Context, b Batch) (string, error) {
		return b.LoadWeather(ctx, obs)
	}}
}

func flightsOutput(flights []domain.FlightRecord, variant domain.FlightVariant) output {
	return output{table: "flights", rows: len(flights), load: func(ctx context.Context, b Batch) (string, error) {
		return b.LoadFlights(ctx, flights, variant)
	}}
}

func mergedOutput(merged []domain.MergedRecord, variant domain.FlightVariant) output {
	return output{table: "merged", rows: len(merged), load: func(ctx context.Context, b Batch) (string, error) {
		return b.LoadMerged(ctx, merged, variant)
	}}
}

// write stages every output in one batch and commits them together. Metrics
// and the summary only count tables once the commit succeeded.
func (p *Pipeline) write(ctx context.Context, r *run, outputs ...output) error {
	batch, err := p.store.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin write: %w", err)
	}
	defer batch.Discard()

	locations := make([]string, 0, len(outputs))
	for _, out := range outputs {
		err := p.timed(ctx, r, "load_"+out.table, func() error {
			location, err := out.load(ctx, batch)
			if err != nil {
				return fmt.Errorf("load %s: %w", out.table, err)
			}
			locations = append(locations, location)
			return nil
		})
		if err != nil {
			return err
		}
	}

	err = p.timed(ctx, r, "commit", func() error {
		if err := batch.Commit(ctx); err != nil {
			return fmt.Errorf("commit outputs: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	for i, out := range outputs {
		p.metrics.RowsWritten.WithLabelValues(out.table).Add(float64(out.rows))
		r.summary.Outputs = append(r.summary.Outputs, locations[i])
		r.logger.Info("table written", "table", out.table, "rows", out.rows, "location", locations[i])
	}
	return nil
}

// publish hands the merged table to every publisher. A failing publisher does
// not stop the others; all failures are returned together.
func (p *Pipeline) publish(ctx context.Context, r *run, merged []domain.MergedRecord) error {
	var errs []error
	for _, pub := range p.publishers {
		err := p.timed(ctx, r, "publish_"+pub.Name(), func() error {
			return pub.Publish(ctx, merged)
		})
		if err != nil {
			p.metrics.SinkErrors.WithLabelValues(pub.Name()).Inc()
			r.logger.Error("publish failed", "sink", pub.Name(), "error", err)
			errs = append(errs, fmt.Errorf("sink %s: %w", pub.Name(), err))
		}
	}
	return errors.Join(errs...)
}

func (p *Pipeline) recordDrops(r *run, dataset string, dropped map[string]int) {
	for reason, n := range dropped {
		p.metrics.RowsDropped.WithLabelValues(dataset, reason).Add(float64(n))
		r.summary.drop(dataset, reason, n)
		r.logger.Info("rows dropped", "dataset", dataset, "reason", reason, "count", n)
	}
}
