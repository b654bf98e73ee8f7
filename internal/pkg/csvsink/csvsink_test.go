package csvsink

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anicoll/pvs-monitor/internal/pkg/model"
)

func testSnapshot(at time.Time) model.PollSnapshot {
	return model.PollSnapshot{
		FetchedAt: at,
		Records: []model.DeviceRecord{
			{Serial: "PM-P", Kind: model.DeviceKindProductionMeter, State: model.DeviceStateWorking, PowerKw: 3.2, LifetimeKwh: 1000},
			{Serial: "PM-C", Kind: model.DeviceKindConsumptionMeter, State: model.DeviceStateWorking, PowerKw: 1.1, LifetimeKwh: 800},
			{Serial: "E001", Kind: model.DeviceKindInverter, State: model.DeviceStateWorking, PowerKw: 0.31, LifetimeKwh: 2671.5},
			{Serial: "E002", Kind: model.DeviceKindInverter, State: model.DeviceStateError},
		},
	}
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()
	rows, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestWriteSnapshot_HeaderWrittenOnce(t *testing.T) {
	dir := t.TempDir()
	sink, err := New(dir, false)
	require.NoError(t, err)

	at := time.Date(2026, 8, 20, 12, 0, 0, 0, time.Local)
	require.NoError(t, sink.WriteSnapshot(context.Background(), testSnapshot(at)))
	require.NoError(t, sink.WriteSnapshot(context.Background(), testSnapshot(at.Add(15*time.Minute))))

	overview := readCSV(t, filepath.Join(dir, overviewFile))
	require.Len(t, overview, 3, "header plus two data rows")
	assert.Equal(t, overviewHeader, overview[0])
	assert.Equal(t, "2026-08-20 12:00:00", overview[1][0])

	inverters := readCSV(t, filepath.Join(dir, invertersFile))
	require.Len(t, inverters, 5, "header plus two rows per poll")
	assert.Equal(t, invertersHeader, inverters[0])
	assert.Equal(t, "E001", inverters[1][1])
	assert.Equal(t, "0.310", inverters[1][3])
	assert.Equal(t, "error", inverters[2][2])
}

func TestWriteSummary_SkipsDuplicateDate(t *testing.T) {
	dir := t.TempDir()
	sink, err := New(dir, false)
	require.NoError(t, err)

	sum := model.DailySummary{
		Date:               "2026-08-20",
		ProductionKwh:      25.5,
		LoadKwh:            10.2,
		PeakPowerKw:        4.1,
		InvertersReporting: 12,
		Underperformers: []model.Underperformer{
			{Serial: "E003", ProductionKwh: 1, FleetAvgKwh: 7, Percent: 14.3},
		},
	}
	require.NoError(t, sink.WriteSummary(context.Background(), sum))

	sum.ProductionKwh = 99 // replay with different numbers must not append
	require.NoError(t, sink.WriteSummary(context.Background(), sum))

	rows := readCSV(t, filepath.Join(dir, summaryFile))
	require.Len(t, rows, 2)
	assert.Equal(t, "25.500", rows[1][1])
	assert.Contains(t, rows[1][10], "E003 (14%)")

	require.NoError(t, sink.WriteSummary(context.Background(), model.DailySummary{Date: "2026-08-21"}))
	rows = readCSV(t, filepath.Join(dir, summaryFile))
	assert.Len(t, rows, 3)
}

func TestArchiveRaw_OnlyWhenEnabled(t *testing.T) {
	dir := t.TempDir()
	at := time.Date(2026, 8, 20, 12, 15, 0, 0, time.Local)
	body := []byte(`{"result":"succeed","devices":[]}`)

	off, err := New(dir, false)
	require.NoError(t, err)
	require.NoError(t, off.ArchiveRaw(body, at))
	_, err = os.Stat(filepath.Join(dir, rawDir))
	assert.True(t, os.IsNotExist(err))

	on, err := New(dir, true)
	require.NoError(t, err)
	require.NoError(t, on.ArchiveRaw(body, at))

	archived, err := os.ReadFile(filepath.Join(dir, rawDir, "PVS6_output_20260820_121500.json"))
	require.NoError(t, err)
	assert.Equal(t, body, archived)
}
