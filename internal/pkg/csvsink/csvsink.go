// Package csvsink is the authoritative storage sink: append-only flat CSV
// files with a stable column order and a header written once.
package csvsink

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/anicoll/pvs-monitor/internal/pkg/model"
)

const (
	overviewFile  = "overview.csv"
	invertersFile = "inverters.csv"
	summaryFile   = "daily_summary.csv"
	rawDir        = "raw"

	timestampLayout = "2006-01-02 15:04:05"
)

var overviewHeader = []string{
	"Timestamp",
	"Lifetime PV Production (kWh)",
	"Lifetime Site Load (kWh)",
	"Lifetime Net (kWh)",
	"Current PV Production (kW)",
	"Current Consumption (kW)",
	"Current Net Power (kW)",
	"Inverters Working",
	"Inverters Total",
}

var invertersHeader = []string{
	"Timestamp",
	"Serial Number",
	"State",
	"Current PV Production (kW)",
	"Lifetime Energy (kWh)",
	"MPPT Voltage (V)",
	"MPPT Current (A)",
	"Heatsink Temp (C)",
	"Frequency (Hz)",
	"Partial",
}

var summaryHeader = []string{
	"Date",
	"Daily PV Production (kWh)",
	"Daily Site Load (kWh)",
	"Daily Net Grid (kWh)",
	"Lifetime PV (kWh)",
	"Lifetime Load (kWh)",
	"Lifetime Net (kWh)",
	"Peak Power (kW)",
	"Inverters Reporting",
	"Inverters In Error",
	"Alerts",
}

type Sink struct {
	dir        string
	archiveRaw bool
	logger     *zap.Logger
}

func New(dir string, archiveRaw bool) (*Sink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	if archiveRaw {
		if err := os.MkdirAll(filepath.Join(dir, rawDir), 0o755); err != nil {
			return nil, fmt.Errorf("create raw dir: %w", err)
		}
	}
	return &Sink{dir: dir, archiveRaw: archiveRaw, logger: zap.L()}, nil
}

// WriteSnapshot appends one overview row and one row per inverter.
func (s *Sink) WriteSnapshot(_ context.Context, snap model.PollSnapshot) error {
	ov := model.BuildOverview(snap)
	ts := snap.FetchedAt.Format(timestampLayout)

	overviewRow := []string{
		ts,
		f(ov.LifetimePvKwh),
		f(ov.LifetimeLoadKwh),
		f(ov.LifetimeNetKwh),
		f(ov.CurrentPvKw),
		f(ov.CurrentLoadKw),
		f(ov.NetPowerKw),
		strconv.Itoa(ov.InvertersWorking),
		strconv.Itoa(ov.InvertersTotal),
	}
	if err := s.appendRows(overviewFile, overviewHeader, [][]string{overviewRow}); err != nil {
		return err
	}

	var rows [][]string
	for _, rec := range snap.Inverters() {
		rows = append(rows, []string{
			ts,
			rec.Serial,
			rec.State,
			f(rec.PowerKw),
			f(rec.LifetimeKwh),
			f(rec.MpptVoltageV),
			f(rec.MpptCurrentA),
			f(rec.HeatsinkTempC),
			f(rec.FrequencyHz),
			strconv.FormatBool(rec.Partial),
		})
	}
	return s.appendRows(invertersFile, invertersHeader, rows)
}

// WriteSummary appends one row per day. A date already present is skipped so
// re-running a summary stays idempotent.
func (s *Sink) WriteSummary(_ context.Context, sum model.DailySummary) error {
	exists, err := s.dateExists(sum.Date)
	if err != nil {
		return err
	}
	if exists {
		s.logger.Info("summary date already recorded, skipping",
			zap.String("date", sum.Date))
		return nil
	}

	row := []string{
		sum.Date,
		f(sum.ProductionKwh),
		f(sum.LoadKwh),
		f(sum.NetKwh),
		f(sum.LifetimePvKwh),
		f(sum.LifetimeLoadKwh),
		f(sum.LifetimeNetKwh),
		f(sum.PeakPowerKw),
		strconv.Itoa(sum.InvertersReporting),
		strconv.Itoa(sum.InvertersInError),
		alertText(sum),
	}
	return s.appendRows(summaryFile, summaryHeader, [][]string{row})
}

// ArchiveRaw stores the raw fetch body when archiving is enabled.
func (s *Sink) ArchiveRaw(body []byte, fetchedAt time.Time) error {
	if !s.archiveRaw || len(body) == 0 {
		return nil
	}
	name := fmt.Sprintf("PVS6_output_%s.json", fetchedAt.Format("20060102_150405"))
	return os.WriteFile(filepath.Join(s.dir, rawDir, name), body, 0o644)
}

func (s *Sink) appendRows(name string, header []string, rows [][]string) error {
	if len(rows) == 0 {
		return nil
	}
	path := filepath.Join(s.dir, name)

	_, statErr := os.Stat(path)
	isNew := errors.Is(statErr, os.ErrNotExist)

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", name, err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if isNew {
		if err := w.Write(header); err != nil {
			return fmt.Errorf("write %s header: %w", name, err)
		}
	}
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write %s row: %w", name, err)
		}
	}
	w.Flush()
	return w.Error()
}

func (s *Sink) dateExists(date string) (bool, error) {
	path := filepath.Join(s.dir, summaryFile)
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read %s: %w", summaryFile, err)
	}
	for _, line := range strings.Split(string(data), "\n") {
		if strings.HasPrefix(line, date+",") {
			return true, nil
		}
	}
	return false, nil
}

func alertText(sum model.DailySummary) string {
	parts := make([]string, 0, len(sum.AlertedSerials)+len(sum.Underperformers))
	parts = append(parts, sum.AlertedSerials...)
	for _, u := range sum.Underperformers {
		parts = append(parts, fmt.Sprintf("%s (%.0f%%)", u.Serial, u.Percent))
	}
	return strings.Join(parts, "; ")
}

func f(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}
