package source

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/envdash/uda/measurement"
	"github.com/envdash/uda/threshold"
)

// Readings are stored one metric per row:
//
//	CREATE TABLE readings (
//	  device_id   TEXT NOT NULL,
//	  domain      TEXT NOT NULL,
//	  metric      TEXT NOT NULL,
//	  value       DOUBLE PRECISION NOT NULL,
//	  recorded_at TIMESTAMPTZ NOT NULL
//	);
const (
	latestQuery = `SELECT DISTINCT ON (device_id, metric) device_id, metric, value, recorded_at
FROM readings
WHERE domain = $1
ORDER BY device_id, metric, recorded_at DESC`

	betweenQuery = `SELECT device_id, metric, value, recorded_at
FROM readings
WHERE domain = $1 AND recorded_at >= $2 AND recorded_at < $3
ORDER BY recorded_at, device_id`
)

// PostgresSource reads from the hosted Postgres backend.
type PostgresSource struct {
	pool *pgxpool.Pool
}

func NewPostgresSource(ctx context.Context, dsn string) (*PostgresSource, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("source: failed to create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("source: failed to reach postgres: %w", err)
	}
	return &PostgresSource{pool: pool}, nil
}

func (s *PostgresSource) Close() {
	s.pool.Close()
}

// row is one metric value as stored in the readings table.
type row struct {
	DeviceID   string
	Metric     string
	Value      float64
	RecordedAt time.Time
}

func (s *PostgresSource) Latest(ctx context.Context, d threshold.Domain) ([]measurement.Measurement, error) {
	rows, err := s.query(ctx, latestQuery, string(d))
	if err != nil {
		return nil, err
	}
	return latest(d, rows), nil
}

func (s *PostgresSource) Between(ctx context.Context, d threshold.Domain, start, end time.Time) ([]measurement.Measurement, error) {
	rows, err := s.query(ctx, betweenQuery, string(d), start, end)
	if err != nil {
		return nil, err
	}
	return between(d, rows), nil
}

func (s *PostgresSource) query(ctx context.Context, sql string, args ...any) ([]row, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("source: query failed: %w", err)
	}

	out, err := pgx.CollectRows(rows, pgx.RowToStructByPos[row])
	if err != nil {
		return nil, fmt.Errorf("source: failed to read rows: %w", err)
	}
	return out, nil
}

// latest folds the newest row of each (device, metric) into one Measurement
// per device, stamped with the newest of its rows. Devices are sorted by ID.
func latest(d threshold.Domain, rows []row) []measurement.Measurement {
	byDevice := make(map[string]*measurement.Measurement)
	for _, r := range rows {
		m, ok := byDevice[r.DeviceID]
		if !ok {
			m = &measurement.Measurement{DeviceID: r.DeviceID, Domain: d}
			byDevice[r.DeviceID] = m
		}

		v := r.Value
		m.SetValue(threshold.Metric(r.Metric), &v)
		if r.RecordedAt.After(m.Timestamp) {
			m.Timestamp = r.RecordedAt
		}
	}

	ids := make([]string, 0, len(byDevice))
	for id := range byDevice {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]measurement.Measurement, 0, len(ids))
	for _, id := range ids {
		out = append(out, *byDevice[id])
	}
	return out
}

// between groups rows sharing a device and timestamp into one Measurement,
// keeping the order of first appearance.
func between(d threshold.Domain, rows []row) []measurement.Measurement {
	type key struct {
		id string
		ts int64
	}

	var out []measurement.Measurement
	index := make(map[key]int)
	for _, r := range rows {
		k := key{r.DeviceID, r.RecordedAt.UnixNano()}
		i, ok := index[k]
		if !ok {
			i = len(out)
			index[k] = i
			out = append(out, measurement.Measurement{DeviceID: r.DeviceID, Domain: d, Timestamp: r.RecordedAt})
		}

		v := r.Value
		out[i].SetValue(threshold.Metric(r.Metric), &v)
	}
	return out
}
