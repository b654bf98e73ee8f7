// Package database is the optional Postgres sink: append-only time-series
// rows mirroring the CSV output. Registered only when DATABASE_URL is set.
package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

type Database struct {
	conn *pgx.Conn
}

func NewDatabase(ctx context.Context, conn *pgx.Conn) (*Database, error) {
	if err := initialise(ctx, conn); err != nil {
		return nil, fmt.Errorf("initialise schema: %w", err)
	}
	return &Database{conn: conn}, nil
}

func initialise(ctx context.Context, conn *pgx.Conn) error {
	const createTablesSQL = `
CREATE TABLE IF NOT EXISTS poll_overview (
    id SERIAL PRIMARY KEY,
    fetched_at TIMESTAMP WITH TIME ZONE NOT NULL,
    lifetime_pv_kwh DOUBLE PRECISION NOT NULL,
    lifetime_load_kwh DOUBLE PRECISION NOT NULL,
    lifetime_net_kwh DOUBLE PRECISION NOT NULL,
    current_pv_kw DOUBLE PRECISION NOT NULL,
    current_load_kw DOUBLE PRECISION NOT NULL,
    net_power_kw DOUBLE PRECISION NOT NULL,
    inverters_working INT NOT NULL,
    inverters_total INT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_poll_overview_fetched_at ON poll_overview (fetched_at);

CREATE TABLE IF NOT EXISTS inverter_readings (
    id SERIAL PRIMARY KEY,
    fetched_at TIMESTAMP WITH TIME ZONE NOT NULL,
    serial TEXT NOT NULL,
    state TEXT NOT NULL,
    power_kw DOUBLE PRECISION NOT NULL,
    lifetime_kwh DOUBLE PRECISION NOT NULL,
    mppt_voltage_v DOUBLE PRECISION NOT NULL,
    mppt_current_a DOUBLE PRECISION NOT NULL,
    heatsink_temp_c DOUBLE PRECISION NOT NULL,
    frequency_hz DOUBLE PRECISION NOT NULL,
    partial BOOLEAN NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_inverter_readings_serial ON inverter_readings (serial);
CREATE INDEX IF NOT EXISTS idx_inverter_readings_fetched_at ON inverter_readings (fetched_at);

CREATE TABLE IF NOT EXISTS daily_summary (
    date DATE PRIMARY KEY,
    production_kwh DOUBLE PRECISION NOT NULL,
    load_kwh DOUBLE PRECISION NOT NULL,
    net_kwh DOUBLE PRECISION NOT NULL,
    lifetime_pv_kwh DOUBLE PRECISION NOT NULL,
    lifetime_load_kwh DOUBLE PRECISION NOT NULL,
    lifetime_net_kwh DOUBLE PRECISION NOT NULL,
    peak_power_kw DOUBLE PRECISION NOT NULL,
    inverters_reporting INT NOT NULL,
    inverters_in_error INT NOT NULL,
    alerts TEXT NOT NULL
);
`
	_, err := conn.Exec(ctx, createTablesSQL)
	return err
}

func (d *Database) Close(ctx context.Context) error {
	if d.conn == nil {
		return nil
	}
	return d.conn.Close(ctx)
}
