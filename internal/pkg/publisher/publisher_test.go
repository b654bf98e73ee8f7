package publisher

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anicoll/pvs-monitor/internal/pkg/model"
)

type fakePublisher struct {
	snapshots int
	summaries int
	err       error
}

func (f *fakePublisher) WriteSnapshot(context.Context, model.PollSnapshot) error {
	f.snapshots++
	return f.err
}

func (f *fakePublisher) WriteSummary(context.Context, model.DailySummary) error {
	f.summaries++
	return f.err
}

type fakeNotifier struct {
	anomalies []model.Anomaly
	err       error
}

func (f *fakeNotifier) NotifyAnomaly(_ context.Context, a model.Anomaly) error {
	f.anomalies = append(f.anomalies, a)
	return f.err
}

func (f *fakeNotifier) NotifySummary(context.Context, model.DailySummary) error {
	return f.err
}

func TestRegisterPublisher_RejectsDuplicateName(t *testing.T) {
	t.Cleanup(Reset)
	require.NoError(t, RegisterPublisher("csv", &fakePublisher{}, true))
	assert.ErrorIs(t, RegisterPublisher("csv", &fakePublisher{}, true), errAlreadyRegistered)
}

func TestPublishSnapshot_RequiredFailurePropagates(t *testing.T) {
	t.Cleanup(Reset)
	boom := errors.New("disk full")
	required := &fakePublisher{err: boom}
	optional := &fakePublisher{err: errors.New("broker down")}
	require.NoError(t, RegisterPublisher("csv", required, true))
	require.NoError(t, RegisterPublisher("postgres", optional, false))

	err := PublishSnapshot(context.Background(), model.PollSnapshot{})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, required.snapshots)
	assert.Equal(t, 1, optional.snapshots, "optional sink still attempted")
}

func TestPublishSnapshot_OptionalFailureSwallowed(t *testing.T) {
	t.Cleanup(Reset)
	require.NoError(t, RegisterPublisher("csv", &fakePublisher{}, true))
	require.NoError(t, RegisterPublisher("postgres", &fakePublisher{err: errors.New("down")}, false))

	assert.NoError(t, PublishSnapshot(context.Background(), model.PollSnapshot{}))
}

func TestPublishSummary_ReachesEverySink(t *testing.T) {
	t.Cleanup(Reset)
	a := &fakePublisher{}
	b := &fakePublisher{}
	require.NoError(t, RegisterPublisher("csv", a, true))
	require.NoError(t, RegisterPublisher("spreadsheet", b, false))

	require.NoError(t, PublishSummary(context.Background(), model.DailySummary{Date: "2026-08-20"}))
	assert.Equal(t, 1, a.summaries)
	assert.Equal(t, 1, b.summaries)
}

func TestNotifyAnomalies_BestEffort(t *testing.T) {
	t.Cleanup(Reset)
	flaky := &fakeNotifier{err: errors.New("timeout")}
	solid := &fakeNotifier{}
	require.NoError(t, RegisterNotifier("mqtt", flaky))
	require.NoError(t, RegisterNotifier("log", solid))

	anomalies := []model.Anomaly{
		{Kind: model.AnomalyInverterError, Serial: "E001"},
		{Kind: model.AnomalyEnergyRegression, Serial: "E002"},
	}
	NotifyAnomalies(context.Background(), anomalies)

	assert.Len(t, flaky.anomalies, 2, "failure on one delivery never stops the rest")
	assert.Len(t, solid.anomalies, 2)
}
