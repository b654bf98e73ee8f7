package publisher

import (
	"context"

	"go.uber.org/zap"

	"github.com/anicoll/pvs-monitor/internal/pkg/model"
)

// LogNotifier is the always-on notification fallback: anomalies and summaries
// land in the invocation log even when no broker is configured.
type LogNotifier struct{}

func (LogNotifier) NotifyAnomaly(_ context.Context, anomaly model.Anomaly) error {
	zap.L().Warn("anomaly",
		zap.String("kind", anomaly.Kind.String()),
		zap.String("serial", anomaly.Serial),
		zap.String("message", anomaly.Message),
		zap.Time("observed_at", anomaly.ObservedAt))
	return nil
}

func (LogNotifier) NotifySummary(_ context.Context, sum model.DailySummary) error {
	zap.L().Info("daily summary finalized",
		zap.String("date", sum.Date),
		zap.Float64("production_kwh", sum.ProductionKwh),
		zap.Float64("peak_power_kw", sum.PeakPowerKw),
		zap.Int("inverters", sum.InvertersReporting),
		zap.Strings("alerted", sum.AlertedSerials))
	return nil
}
