// Package sheet is the optional spreadsheet sink: one daily-summary row
// appended to a local .xlsx workbook. Best-effort by contract; a failure here
// never blocks the authoritative local writes.
package sheet

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/anicoll/pvs-monitor/internal/pkg/model"
)

const sheetName = "DailySolarSummary"

var header = []interface{}{
	"Date",
	"Daily PV Production (kWh)",
	"Daily Site Load (kWh)",
	"Daily Net Grid (kWh)",
	"Lifetime PV (kWh)",
	"Lifetime Load (kWh)",
	"Lifetime Net (kWh)",
	"Peak Power (kW)",
	"Inverters Reporting",
	"Alerts",
}

type Sink struct {
	path   string
	logger *zap.Logger
}

func New(path string) *Sink {
	return &Sink{path: path, logger: zap.L()}
}

// WriteSnapshot is a no-op; the workbook only carries daily rows.
func (s *Sink) WriteSnapshot(_ context.Context, _ model.PollSnapshot) error {
	return nil
}

// WriteSummary appends one row for the day, creating the workbook and header
// on first use and skipping dates already present.
func (s *Sink) WriteSummary(_ context.Context, sum model.DailySummary) error {
	book, fresh, err := s.open()
	if err != nil {
		return err
	}
	defer book.Close()

	rows, err := book.GetRows(sheetName)
	if err != nil {
		return fmt.Errorf("read sheet: %w", err)
	}
	for _, row := range rows {
		if len(row) > 0 && row[0] == sum.Date {
			s.logger.Info("spreadsheet already has date, skipping",
				zap.String("date", sum.Date))
			return nil
		}
	}

	next := len(rows) + 1
	if fresh {
		if err := book.SetSheetRow(sheetName, "A1", &header); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
		next = 2
	}

	row := []interface{}{
		sum.Date,
		sum.ProductionKwh,
		sum.LoadKwh,
		sum.NetKwh,
		sum.LifetimePvKwh,
		sum.LifetimeLoadKwh,
		sum.LifetimeNetKwh,
		sum.PeakPowerKw,
		sum.InvertersReporting,
		alertText(sum),
	}
	cell, err := excelize.CoordinatesToCellName(1, next)
	if err != nil {
		return err
	}
	if err := book.SetSheetRow(sheetName, cell, &row); err != nil {
		return fmt.Errorf("write row: %w", err)
	}
	return book.SaveAs(s.path)
}

func (s *Sink) open() (*excelize.File, bool, error) {
	if _, err := os.Stat(s.path); err == nil {
		book, err := excelize.OpenFile(s.path)
		if err != nil {
			return nil, false, fmt.Errorf("open workbook: %w", err)
		}
		idx, err := book.GetSheetIndex(sheetName)
		if err != nil {
			book.Close()
			return nil, false, err
		}
		if idx == -1 {
			if _, err := book.NewSheet(sheetName); err != nil {
				book.Close()
				return nil, false, err
			}
			return book, true, nil
		}
		return book, false, nil
	}

	book := excelize.NewFile()
	if err := book.SetSheetName(book.GetSheetName(0), sheetName); err != nil {
		book.Close()
		return nil, false, err
	}
	return book, true, nil
}

func alertText(sum model.DailySummary) string {
	parts := make([]string, 0, len(sum.AlertedSerials)+len(sum.Underperformers))
	parts = append(parts, sum.AlertedSerials...)
	for _, u := range sum.Underperformers {
		parts = append(parts, fmt.Sprintf("%s (%.0f%%)", u.Serial, u.Percent))
	}
	return strings.Join(parts, "; ")
}
