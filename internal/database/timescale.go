package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"gym-iot-backend/internal/models"
)

// TimescaleStore keeps readings in a Postgres/TimescaleDB table
type TimescaleStore struct {
	db        *sql.DB
	tableName string
	schema    schemaGate
}

// NewTimescaleStore wraps an open database handle. The postgres driver
// must be registered by the caller (lib/pq). The table is created on the
// first successful call, or earlier through InitSchema.
func NewTimescaleStore(db *sql.DB, table string) *TimescaleStore {
	if table == "" {
		table = "gym_readings"
	}
	t := &TimescaleStore{db: db, tableName: table}
	t.schema.init = t.createSchema
	return t
}

// InitSchema creates the readings table and index if missing
func (t *TimescaleStore) InitSchema(ctx context.Context) error {
	return t.schema.ensure(ctx)
}

func (t *TimescaleStore) createSchema(ctx context.Context) error {
	if _, err := t.db.ExecContext(ctx, fmt.Sprintf(TimescaleReadingsTableSQL, t.tableName)); err != nil {
		return fmt.Errorf("failed to create table %s: %w", t.tableName, err)
	}
	if _, err := t.db.ExecContext(ctx, fmt.Sprintf(TimescaleReadingsIndexSQL, t.tableName, t.tableName)); err != nil {
		return fmt.Errorf("failed to create index on %s: %w", t.tableName, err)
	}
	return nil
}

// Query returns points matching q
func (t *TimescaleStore) Query(ctx context.Context, q Query) ([]models.Point, error) {
	if err := t.schema.ensure(ctx); err != nil {
		return nil, err
	}

	var b strings.Builder
	args := []any{q.Measurement}

	b.WriteString("SELECT ts, measurement, device, value FROM ")
	b.WriteString(t.tableName)
	b.WriteString(" WHERE measurement = $1")
	if q.Device != "" {
		args = append(args, q.Device)
		b.WriteString(fmt.Sprintf(" AND device = $%d", len(args)))
	}
	if !q.Since.IsZero() {
		args = append(args, q.Since)
		b.WriteString(fmt.Sprintf(" AND ts >= $%d", len(args)))
	}
	if q.Descending {
		b.WriteString(" ORDER BY ts DESC")
	} else {
		b.WriteString(" ORDER BY ts ASC")
	}
	if q.Limit > 0 {
		args = append(args, q.Limit)
		b.WriteString(fmt.Sprintf(" LIMIT $%d", len(args)))
	}

	rows, err := t.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", q.Measurement, err)
	}
	defer rows.Close()

	points := make([]models.Point, 0)
	for rows.Next() {
		var p models.Point
		if err := rows.Scan(&p.Timestamp, &p.Measurement, &p.Device, &p.Value); err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", q.Measurement, err)
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s rows: %w", q.Measurement, err)
	}
	return points, nil
}

// Write inserts all points in one multi-row statement
func (t *TimescaleStore) Write(ctx context.Context, points ...models.Point) error {
	if len(points) == 0 {
		return nil
	}
	if err := t.schema.ensure(ctx); err != nil {
		return err
	}

	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(t.tableName)
	b.WriteString(" (ts, measurement, device, value) VALUES ")

	args := make([]any, 0, len(points)*4)
	for i, p := range points {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString(fmt.Sprintf("($%d,$%d,$%d,$%d)",
			len(args)+1, len(args)+2, len(args)+3, len(args)+4))
		args = append(args, p.Timestamp, p.Measurement, p.Device, p.Value)
	}

	if _, err := t.db.ExecContext(ctx, b.String(), args...); err != nil {
		return fmt.Errorf("failed to insert %d points: %w", len(points), err)
	}
	return nil
}

// Ping checks the connection
func (t *TimescaleStore) Ping(ctx context.Context) error {
	return t.db.PingContext(ctx)
}

// Close closes the database handle
func (t *TimescaleStore) Close() error {
	return t.db.Close()
}

var _ Store = (*TimescaleStore)(nil)
