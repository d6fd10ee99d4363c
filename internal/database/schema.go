package database

// SQL schemas for the time-series backends

const (
	// GymReadingsTableSQL creates the ClickHouse gym_readings table
	GymReadingsTableSQL = `
		CREATE TABLE IF NOT EXISTS gym_readings (
			timestamp DateTime64(3),
			measurement LowCardinality(String),
			device String,
			value Float64
		) ENGINE = MergeTree()
		ORDER BY (measurement, device, timestamp)
		PARTITION BY toYYYYMM(timestamp)
		TTL toDateTime(timestamp) + INTERVAL 90 DAY
	`

	// TimescaleReadingsTableSQL creates the Postgres/Timescale table.
	// %s is replaced with the configured table name.
	TimescaleReadingsTableSQL = `
		CREATE TABLE IF NOT EXISTS %s (
			ts TIMESTAMPTZ NOT NULL,
			measurement TEXT NOT NULL,
			device TEXT NOT NULL DEFAULT '',
			value DOUBLE PRECISION NOT NULL
		)
	`

	// TimescaleReadingsIndexSQL indexes the latest-reading lookup
	TimescaleReadingsIndexSQL = `
		CREATE INDEX IF NOT EXISTS %s_measurement_ts_idx ON %s (measurement, ts DESC)
	`
)

// AllTables returns all ClickHouse table creation SQL statements
func AllTables() []string {
	return []string{
		GymReadingsTableSQL,
	}
}
