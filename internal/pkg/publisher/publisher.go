// Package publisher fans poll snapshots, daily summaries and anomaly
// notifications out to the registered sinks. Required sinks (local CSV, state)
// propagate their errors; optional sinks (Postgres, MQTT, spreadsheet) are
// best-effort and only log.
package publisher

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/anicoll/pvs-monitor/internal/pkg/model"
)

var errAlreadyRegistered = errors.New("publisher already registered")

// Publisher persists time-series output.
type Publisher interface {
	WriteSnapshot(ctx context.Context, snap model.PollSnapshot) error
	WriteSummary(ctx context.Context, sum model.DailySummary) error
}

// Notifier consumes anomaly flags and finalized summaries.
type Notifier interface {
	NotifyAnomaly(ctx context.Context, anomaly model.Anomaly) error
	NotifySummary(ctx context.Context, sum model.DailySummary) error
}

type registration struct {
	publisher Publisher
	required  bool
}

var (
	registeredPublishers = make(map[string]registration)
	registeredNotifiers  = make(map[string]Notifier)
)

func RegisterPublisher(name string, p Publisher, required bool) error {
	if _, ok := registeredPublishers[name]; ok {
		return errAlreadyRegistered
	}
	registeredPublishers[name] = registration{publisher: p, required: required}
	return nil
}

func RegisterNotifier(name string, n Notifier) error {
	if _, ok := registeredNotifiers[name]; ok {
		return errAlreadyRegistered
	}
	registeredNotifiers[name] = n
	return nil
}

// Reset clears the registries. Each invocation is a fresh process; this
// exists for tests that wire sinks repeatedly.
func Reset() {
	registeredPublishers = make(map[string]registration)
	registeredNotifiers = make(map[string]Notifier)
}

// PublishSnapshot writes one poll to every sink. Optional sink failures are
// logged and swallowed; a required sink failure fails the pass.
func PublishSnapshot(ctx context.Context, snap model.PollSnapshot) error {
	var firstErr error
	for name, reg := range registeredPublishers {
		if err := reg.publisher.WriteSnapshot(ctx, snap); err != nil {
			if reg.required {
				if firstErr == nil {
					firstErr = err
				}
				zap.L().Error("snapshot write failed", zap.Error(err), zap.String("publisher", name))
				continue
			}
			zap.L().Warn("optional snapshot write failed", zap.Error(err), zap.String("publisher", name))
			continue
		}
		zap.L().Debug("snapshot written", zap.String("publisher", name), zap.Int("records", len(snap.Records)))
	}
	return firstErr
}

// PublishSummary writes one finalized day to every sink with the same
// required/optional split.
func PublishSummary(ctx context.Context, sum model.DailySummary) error {
	var firstErr error
	for name, reg := range registeredPublishers {
		if err := reg.publisher.WriteSummary(ctx, sum); err != nil {
			if reg.required {
				if firstErr == nil {
					firstErr = err
				}
				zap.L().Error("summary write failed", zap.Error(err), zap.String("publisher", name))
				continue
			}
			zap.L().Warn("optional summary write failed", zap.Error(err), zap.String("publisher", name))
			continue
		}
		zap.L().Debug("summary written", zap.String("publisher", name), zap.String("date", sum.Date))
	}
	return firstErr
}

// NotifyAnomalies delivers each anomaly to every notifier. Notification is
// always best-effort; the aggregator's per-day dedup already happened.
func NotifyAnomalies(ctx context.Context, anomalies []model.Anomaly) {
	for _, anomaly := range anomalies {
		for name, notifier := range registeredNotifiers {
			if err := notifier.NotifyAnomaly(ctx, anomaly); err != nil {
				zap.L().Warn("anomaly notification failed",
					zap.Error(err),
					zap.String("notifier", name),
					zap.String("kind", anomaly.Kind.String()))
			}
		}
	}
}

// NotifySummary delivers a finalized summary to every notifier, best-effort.
func NotifySummary(ctx context.Context, sum model.DailySummary) {
	for name, notifier := range registeredNotifiers {
		if err := notifier.NotifySummary(ctx, sum); err != nil {
			zap.L().Warn("summary notification failed",
				zap.Error(err),
				zap.String("notifier", name),
				zap.String("date", sum.Date))
		}
	}
}
