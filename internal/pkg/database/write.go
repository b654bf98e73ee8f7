package database

import (
	"context"
	"strings"

	"github.com/anicoll/pvs-monitor/internal/pkg/model"
)

// WriteSnapshot inserts the overview row and the per-inverter rows for one
// poll in a single transaction.
func (d *Database) WriteSnapshot(ctx context.Context, snap model.PollSnapshot) error {
	tx, err := d.conn.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	ov := model.BuildOverview(snap)
	if _, err := tx.Exec(ctx, `
		INSERT INTO poll_overview (
			fetched_at, lifetime_pv_kwh, lifetime_load_kwh, lifetime_net_kwh,
			current_pv_kw, current_load_kw, net_power_kw,
			inverters_working, inverters_total)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, snap.FetchedAt, ov.LifetimePvKwh, ov.LifetimeLoadKwh, ov.LifetimeNetKwh,
		ov.CurrentPvKw, ov.CurrentLoadKw, ov.NetPowerKw,
		ov.InvertersWorking, ov.InvertersTotal); err != nil {
		return err
	}

	for _, rec := range snap.Inverters() {
		if _, err := tx.Exec(ctx, `
			INSERT INTO inverter_readings (
				fetched_at, serial, state, power_kw, lifetime_kwh,
				mppt_voltage_v, mppt_current_a, heatsink_temp_c, frequency_hz, partial)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`, snap.FetchedAt, rec.Serial, rec.State, rec.PowerKw, rec.LifetimeKwh,
			rec.MpptVoltageV, rec.MpptCurrentA, rec.HeatsinkTempC, rec.FrequencyHz,
			rec.Partial); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// WriteSummary upserts nothing: a date already summarized stays as written,
// matching the CSV sink's duplicate-date skip.
func (d *Database) WriteSummary(ctx context.Context, sum model.DailySummary) error {
	_, err := d.conn.Exec(ctx, `
		INSERT INTO daily_summary (
			date, production_kwh, load_kwh, net_kwh,
			lifetime_pv_kwh, lifetime_load_kwh, lifetime_net_kwh,
			peak_power_kw, inverters_reporting, inverters_in_error, alerts)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (date) DO NOTHING;
	`, sum.Date, sum.ProductionKwh, sum.LoadKwh, sum.NetKwh,
		sum.LifetimePvKwh, sum.LifetimeLoadKwh, sum.LifetimeNetKwh,
		sum.PeakPowerKw, sum.InvertersReporting, sum.InvertersInError,
		strings.Join(sum.AlertedSerials, "; "))
	return err
}
