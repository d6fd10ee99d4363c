package database

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"gym-iot-backend/internal/models"
)

type ClickHouseDB struct {
	conn   driver.Conn
	schema schemaGate
}

// NewClickHouseDB opens a ClickHouse connection pool. An unreachable server
// is logged, not returned: the schema is created on the first call that
// reaches it.
func NewClickHouseDB(addr, database, username, password string) (*ClickHouseDB, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: database,
			Username: username,
			Password: password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		DialTimeout: 5 * time.Second,
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})

	if err != nil {
		return nil, fmt.Errorf("failed to open ClickHouse: %w", err)
	}

	db := &ClickHouseDB{conn: conn}
	db.schema.init = db.createSchema

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.schema.ensure(ctx); err != nil {
		log.Printf("Warning: ClickHouse at %s unavailable, serving fallback data until it is: %v", addr, err)
		return db, nil
	}

	log.Printf("Connected to ClickHouse at %s", addr)
	return db, nil
}

// InitSchema creates the necessary tables if they don't exist
func (db *ClickHouseDB) InitSchema(ctx context.Context) error {
	return db.schema.ensure(ctx)
}

func (db *ClickHouseDB) createSchema(ctx context.Context) error {
	for _, tableSQL := range AllTables() {
		if err := db.conn.Exec(ctx, tableSQL); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	log.Println("Database schema initialized successfully")
	return nil
}

// Query returns points matching q
func (db *ClickHouseDB) Query(ctx context.Context, q Query) ([]models.Point, error) {
	if err := db.schema.ensure(ctx); err != nil {
		return nil, err
	}

	query, args := buildClickHouseSelect(q)

	rows, err := db.conn.Query(ctx, query, args...)
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

// buildClickHouseSelect renders q as a parameterised SELECT
func buildClickHouseSelect(q Query) (string, []any) {
	var b strings.Builder
	args := []any{q.Measurement}

	b.WriteString("SELECT timestamp, measurement, device, value FROM gym_readings WHERE measurement = ?")
	if q.Device != "" {
		b.WriteString(" AND device = ?")
		args = append(args, q.Device)
	}
	if !q.Since.IsZero() {
		b.WriteString(" AND timestamp >= ?")
		args = append(args, q.Since)
	}
	if q.Descending {
		b.WriteString(" ORDER BY timestamp DESC")
	} else {
		b.WriteString(" ORDER BY timestamp ASC")
	}
	if q.Limit > 0 {
		b.WriteString(fmt.Sprintf(" LIMIT %d", q.Limit))
	}

	return b.String(), args
}

// Write appends points in a single batch
func (db *ClickHouseDB) Write(ctx context.Context, points ...models.Point) error {
	if len(points) == 0 {
		return nil
	}
	if err := db.schema.ensure(ctx); err != nil {
		return err
	}

	batch, err := db.conn.PrepareBatch(ctx, "INSERT INTO gym_readings (timestamp, measurement, device, value)")
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}

	for _, p := range points {
		if err := batch.Append(p.Timestamp, p.Measurement, p.Device, p.Value); err != nil {
			return fmt.Errorf("failed to append point: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to insert %d points: %w", len(points), err)
	}

	return nil
}

// Ping checks the connection
func (db *ClickHouseDB) Ping(ctx context.Context) error {
	return db.conn.Ping(ctx)
}

// Close closes the ClickHouse connection
func (db *ClickHouseDB) Close() error {
	if db.conn != nil {
		if err := db.conn.Close(); err != nil {
			return fmt.Errorf("failed to close ClickHouse connection: %w", err)
		}
		log.Println("ClickHouse connection closed")
	}
	return nil
}

var _ Store = (*ClickHouseDB)(nil)
