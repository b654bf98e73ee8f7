// Package health turns per-poll snapshots into health reports by comparing
// each inverter against its rolling per-serial state.
package health

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/anicoll/pvs-monitor/internal/pkg/config"
	"github.com/anicoll/pvs-monitor/internal/pkg/model"
	"github.com/anicoll/pvs-monitor/internal/pkg/pvs"
	"github.com/anicoll/pvs-monitor/internal/pkg/statestore"
)

type Classifier struct {
	debounceThreshold int
	failureThreshold  int
	daylight          Window
	logger            *zap.Logger
}

func New(cfg *config.MonitorConfig) (*Classifier, error) {
	window, err := ParseWindow(cfg.DaylightStart, cfg.DaylightEnd)
	if err != nil {
		return nil, err
	}
	return &Classifier{
		debounceThreshold: cfg.DebounceThreshold,
		failureThreshold:  cfg.FetchFailureThreshold,
		daylight:          window,
		logger:            zap.L(),
	}, nil
}

// Classify updates the per-serial rolling state from one snapshot and returns
// the health report. A successful snapshot also clears the fetch-failure
// streaks.
func (c *Classifier) Classify(snap model.PollSnapshot, st *statestore.State) model.HealthReport {
	st.FetchFailureStreak = 0
	st.UnreachableStreak = 0

	report := model.HealthReport{}
	for _, rec := range snap.Inverters() {
		if rec.Serial == "" {
			continue
		}
		if rec.Partial {
			report.PartialSerials = append(report.PartialSerials, rec.Serial)
		}

		hs := st.Inverter(rec.Serial)
		observedAt := effectiveTime(rec, snap)

		switch rec.State {
		case model.DeviceStateWorking:
			report.Working++
			if anomaly := c.checkRegression(rec, hs, observedAt); anomaly != nil {
				report.Anomalies = append(report.Anomalies, *anomaly)
			}
			hs.ConsecutiveErrors = 0
			hs.LastWorkingAt = observedAt
			hs.LastLifetimeKwh = rec.LifetimeKwh
			hs.HasBaseline = true

		case model.DeviceStateError:
			report.Errored++
			// idle after dark reports as error; those polls neither advance
			// nor reset the daytime streak
			if !c.daylight.Contains(observedAt) {
				c.logger.Debug("night error poll, not counted",
					zap.String("serial", rec.Serial))
				continue
			}
			hs.ConsecutiveErrors++
			if anomaly := c.checkDebounce(rec, hs, observedAt); anomaly != nil {
				report.Anomalies = append(report.Anomalies, *anomaly)
			}

		default:
			// other vendor strings neither confirm nor deny a fault;
			// leave the counters alone
			c.logger.Debug("unclassified inverter state",
				zap.String("serial", rec.Serial),
				zap.String("state", rec.State))
		}
	}
	return report
}

// checkRegression flags a lifetime-energy counter that went backwards on a
// working unit. Always reportable: it signals a counter reset or serial
// reuse, never a normal condition. The new value becomes the baseline so one
// reset raises one anomaly, not one per poll.
func (c *Classifier) checkRegression(rec model.DeviceRecord, hs *model.InverterHealthState, observedAt time.Time) *model.Anomaly {
	if !hs.HasBaseline || rec.LifetimeKwh >= hs.LastLifetimeKwh {
		return nil
	}
	c.logger.Warn("lifetime energy regression",
		zap.String("serial", rec.Serial),
		zap.Float64("previous_kwh", hs.LastLifetimeKwh),
		zap.Float64("current_kwh", rec.LifetimeKwh))
	return &model.Anomaly{
		Kind:   model.AnomalyEnergyRegression,
		Serial: rec.Serial,
		Message: fmt.Sprintf("lifetime energy fell from %.3f kWh to %.3f kWh",
			hs.LastLifetimeKwh, rec.LifetimeKwh),
		ObservedAt: observedAt,
	}
}

// checkDebounce raises the inverter-error anomaly once the error has
// persisted past the threshold. The counter only ever advances on daytime
// polls, so the count is a count of daytime observations.
func (c *Classifier) checkDebounce(rec model.DeviceRecord, hs *model.InverterHealthState, observedAt time.Time) *model.Anomaly {
	if hs.ConsecutiveErrors <= c.debounceThreshold {
		return nil
	}
	return &model.Anomaly{
		Kind:   model.AnomalyInverterError,
		Serial: rec.Serial,
		Message: fmt.Sprintf("in error state for %d consecutive daytime polls",
			hs.ConsecutiveErrors),
		ObservedAt: observedAt,
	}
}

// RecordFetchFailure tracks a failed pass. Unreachable streaks count
// separately and never alert: the device drops off the LAN while rebooting
// and overnight. Device-reported failures and malformed bodies past the
// threshold raise the system-level anomaly.
func (c *Classifier) RecordFetchFailure(kind pvs.FetchErrorKind, observedAt time.Time, st *statestore.State) *model.Anomaly {
	if kind == pvs.FetchUnreachable {
		st.UnreachableStreak++
		st.FetchFailureStreak = 0
		c.logger.Info("device unreachable",
			zap.Int("streak", st.UnreachableStreak))
		return nil
	}

	st.FetchFailureStreak++
	st.UnreachableStreak = 0
	if st.FetchFailureStreak <= c.failureThreshold {
		return nil
	}
	return &model.Anomaly{
		Kind: model.AnomalySystemFetchFailure,
		Message: fmt.Sprintf("%d consecutive %s fetch outcomes",
			st.FetchFailureStreak, kind),
		ObservedAt: observedAt,
	}
}

// effectiveTime prefers the device's own clock for daylight decisions and
// falls back to wall clock when the device omitted or garbled it.
func effectiveTime(rec model.DeviceRecord, snap model.PollSnapshot) time.Time {
	if !rec.DeviceTime.IsZero() {
		return rec.DeviceTime
	}
	return snap.FetchedAt
}
