// Package report folds per-poll snapshots into daily summaries and decides
// which anomalies are newly alertable today.
package report

import (
	"sort"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/anicoll/pvs-monitor/internal/pkg/config"
	"github.com/anicoll/pvs-monitor/internal/pkg/model"
	"github.com/anicoll/pvs-monitor/internal/pkg/statestore"
)

const dateLayout = "2006-01-02"

// system anomalies share the per-day dedup map with inverter serials
const systemKey = "_system"

type Aggregator struct {
	underperformanceFraction float64
	logger                   *zap.Logger
}

func New(cfg *config.MonitorConfig) *Aggregator {
	return &Aggregator{
		underperformanceFraction: cfg.UnderperformanceFraction,
		logger:                   zap.L(),
	}
}

// FoldResult carries the day-boundary summary (nil mid-day) and the anomalies
// that have not been alerted yet today.
type FoldResult struct {
	Finalized    *model.DailySummary
	NewAnomalies []model.Anomaly
}

// Fold accumulates one snapshot into the current day state. Daily deltas are
// recomputed from the day's first lifetime readings, so re-running a poll for
// the same day never double-counts. Crossing a day boundary finalizes the
// previous day and starts an empty one.
func (a *Aggregator) Fold(snap model.PollSnapshot, rep model.HealthReport, st *statestore.State) FoldResult {
	result := FoldResult{}
	day := snap.FetchedAt.Format(dateLayout)

	switch {
	case st.Day == nil:
		st.Day = statestore.NewDayState(day)
	case st.Day.Date != day:
		result.Finalized = a.Summarize(st.Day)
		st.Day = statestore.NewDayState(day)
	}

	a.foldOverview(snap, st.Day)
	a.foldInverters(snap, st.Day)
	result.NewAnomalies = dedupe(rep.Anomalies, st.Day)

	return result
}

// FoldFailure keeps the day state moving on a pass with no snapshot: a
// boundary crossed while the device is down still finalizes yesterday, and a
// system anomaly gets the same per-day dedup as inverter anomalies.
func (a *Aggregator) FoldFailure(at time.Time, anomaly *model.Anomaly, st *statestore.State) FoldResult {
	result := FoldResult{}
	day := at.Format(dateLayout)

	switch {
	case st.Day == nil:
		st.Day = statestore.NewDayState(day)
	case st.Day.Date != day:
		result.Finalized = a.Summarize(st.Day)
		st.Day = statestore.NewDayState(day)
	}

	if anomaly != nil {
		result.NewAnomalies = dedupe([]model.Anomaly{*anomaly}, st.Day)
	}
	return result
}

func (a *Aggregator) foldOverview(snap model.PollSnapshot, day *statestore.DayState) {
	ov := model.BuildOverview(snap)
	if !day.HaveBaseline {
		day.BaselinePvKwh = ov.LifetimePvKwh
		day.BaselineLoadKwh = ov.LifetimeLoadKwh
		day.BaselineNetKwh = ov.LifetimeNetKwh
		day.HaveBaseline = true
	}
	day.LastPvKwh = ov.LifetimePvKwh
	day.LastLoadKwh = ov.LifetimeLoadKwh
	day.LastNetKwh = ov.LifetimeNetKwh
	if ov.CurrentPvKw > day.PeakPowerKw {
		day.PeakPowerKw = ov.CurrentPvKw
	}
}

func (a *Aggregator) foldInverters(snap model.PollSnapshot, day *statestore.DayState) {
	for _, rec := range snap.Inverters() {
		if rec.Serial == "" {
			continue
		}
		if rec.State == model.DeviceStateError {
			day.ErrorSerials[rec.Serial] = true
		}
		// a record whose energy channel failed to parse must not poison
		// the day's baseline
		if lo.Contains(rec.PartialFields, "ltea_3phsum_kwh") {
			continue
		}
		if _, ok := day.InverterBaselines[rec.Serial]; !ok {
			day.InverterBaselines[rec.Serial] = rec.LifetimeKwh
		}
		day.InverterLast[rec.Serial] = rec.LifetimeKwh
	}
}

// dedupe keeps one alert per distinct (kind, serial) per day.
func dedupe(anomalies []model.Anomaly, day *statestore.DayState) []model.Anomaly {
	var fresh []model.Anomaly
	for _, an := range anomalies {
		key := an.Kind.String() + ":" + an.Serial
		if an.Serial == "" {
			key = an.Kind.String() + ":" + systemKey
		}
		if day.AlertedSerials[key] {
			continue
		}
		day.AlertedSerials[key] = true
		fresh = append(fresh, an)
	}
	return fresh
}

// Summarize builds the daily summary from a day's accumulated state. Pure
// recomputation from baselines: calling it twice over the same state yields
// the same summary.
func (a *Aggregator) Summarize(day *statestore.DayState) *model.DailySummary {
	sum := &model.DailySummary{
		Date:               day.Date,
		ProductionKwh:      day.LastPvKwh - day.BaselinePvKwh,
		LoadKwh:            day.LastLoadKwh - day.BaselineLoadKwh,
		NetKwh:             day.LastNetKwh - day.BaselineNetKwh,
		LifetimePvKwh:      day.LastPvKwh,
		LifetimeLoadKwh:    day.LastLoadKwh,
		LifetimeNetKwh:     day.LastNetKwh,
		PeakPowerKw:        day.PeakPowerKw,
		InvertersReporting: len(day.InverterBaselines),
		InvertersInError:   len(day.ErrorSerials),
		AlertedSerials:     sortedKeys(day.AlertedSerials),
		Underperformers:    a.underperformers(day),
	}
	a.logger.Info("daily summary",
		zap.String("date", sum.Date),
		zap.Float64("production_kwh", sum.ProductionKwh),
		zap.Int("inverters", sum.InvertersReporting),
		zap.Int("underperformers", len(sum.Underperformers)))
	return sum
}

// underperformers flags inverters producing below the configured fraction of
// the fleet average for the day.
func (a *Aggregator) underperformers(day *statestore.DayState) []model.Underperformer {
	production := map[string]float64{}
	for serial, baseline := range day.InverterBaselines {
		if last, ok := day.InverterLast[serial]; ok {
			production[serial] = last - baseline
		}
	}
	if len(production) == 0 {
		return nil
	}

	avg := lo.Sum(lo.Values(production)) / float64(len(production))
	if avg <= 0 {
		return nil
	}

	var out []model.Underperformer
	for _, serial := range sortedKeys(productionSet(production)) {
		p := production[serial]
		if p < avg*a.underperformanceFraction {
			out = append(out, model.Underperformer{
				Serial:        serial,
				ProductionKwh: p,
				FleetAvgKwh:   avg,
				Percent:       p / avg * 100,
			})
		}
	}
	return out
}

func productionSet(m map[string]float64) map[string]bool {
	out := make(map[string]bool, len(m))
	for k := range m {
		out[k] = true
	}
	return out
}

func sortedKeys(m map[string]bool) []string {
	keys := lo.Keys(m)
	sort.Strings(keys)
	return keys
}
