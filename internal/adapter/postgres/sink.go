// Package postgres copies merged flight-weather records into a Postgres table.
package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/couchcryptid/flight-weather-etl/internal/config"
	"github.com/couchcryptid/flight-weather-etl/internal/domain"
)

var columns = []string{
	"departure", "icao", "weather_delay", "congestion_score",
	"weather_time", "wind_dir", "wind_speed", "ceiling", "visibility", "temp", "dew_pnt", "pressure",
}

// Sink writes merged records with COPY. It implements pipeline.Publisher.
// A publish replaces any rows of the same stations within the published
// departure range, so re-running a batch does not duplicate rows.
type Sink struct {
	pool   *pgxpool.Pool
	table  pgx.Identifier
	logger *slog.Logger
}

// NewSink connects to the configured database and creates the table if needed.
func NewSink(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Sink, error) {
	pool, err := pgxpool.New(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}

	s := &Sink{pool: pool, table: tableIdentifier(cfg.PostgresTable), logger: logger}
	if err := s.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Name identifies the sink in logs and metrics.
func (s *Sink) Name() string { return "postgres" }

// EnsureSchema creates the target table when it does not exist.
func (s *Sink) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, createTableSQL(s.table)); err != nil {
		return fmt.Errorf("create table %s: %w", s.table.Sanitize(), err)
	}
	return nil
}

// Publish replaces the published range in a single transaction.
func (s *Sink) Publish(ctx context.Context, merged []domain.MergedRecord) error {
	if len(merged) == 0 {
		return nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	stations, from, to := span(merged)
	deleted, err := tx.Exec(ctx, deleteRangeSQL(s.table), stations, from, to)
	if err != nil {
		return fmt.Errorf("delete previous rows: %w", err)
	}
	copied, err := tx.CopyFrom(ctx, s.table, columns, pgx.CopyFromRows(toRows(merged)))
	if err != nil {
		return fmt.Errorf("copy rows: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	s.logger.Info("postgres rows copied",
		"table", s.table.Sanitize(),
		"copied", copied,
		"replaced", deleted.RowsAffected(),
	)
	return nil
}

// Close releases the connection pool.
func (s *Sink) Close() {
	s.pool.Close()
}

func tableIdentifier(name string) pgx.Identifier {
	return pgx.Identifier(strings.Split(name, "."))
}

func createTableSQL(table pgx.Identifier) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	departure        timestamptz NOT NULL,
	icao             text NOT NULL,
	weather_delay    double precision NOT NULL,
	congestion_score double precision,
	weather_time     timestamptz,
	wind_dir         integer,
	wind_speed       integer,
	ceiling          integer,
	visibility       integer,
	temp             integer,
	dew_pnt          integer,
	pressure         integer
)`, table.Sanitize())
}

func deleteRangeSQL(table pgx.Identifier) string {
	return fmt.Sprintf("DELETE FROM %s WHERE icao = ANY($1) AND departure BETWEEN $2 AND $3", table.Sanitize())
}

// span returns the distinct stations and the departure range of merged.
func span(merged []domain.MergedRecord) ([]string, time.Time, time.Time) {
	from, to := merged[0].Flight.UTC, merged[0].Flight.UTC
	var stations []string
	for _, m := range merged {
		if m.Flight.UTC.Before(from) {
			from = m.Flight.UTC
		}
		if m.Flight.UTC.After(to) {
			to = m.Flight.UTC
		}
		if !slices.Contains(stations, m.Flight.ICAO) {
			stations = append(stations, m.Flight.ICAO)
		}
	}
	return stations, from, to
}

func toRows(merged []domain.MergedRecord) [][]any {
	rows := make([][]any, len(merged))
	for i, m := range merged {
		row := make([]any, 0, len(columns))
		row = append(row, m.Flight.UTC, m.Flight.ICAO, m.Flight.WeatherDelay)
		if m.Flight.CongestionScore != nil {
			row = append(row, *m.Flight.CongestionScore)
		} else {
			row = append(row, nil)
		}
		if w := m.Weather; w != nil {
			row = append(row, w.Time, w.WindDir, w.WindSpeed, w.Ceiling, w.Visibility, w.Temp, w.DewPoint, w.Pressure)
		} else {
			row = append(row, nil, nil, nil, nil, nil, nil, nil, nil)
		}
		rows[i] = row
	}
	return rows
}
