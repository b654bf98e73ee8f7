package health

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anicoll/pvs-monitor/internal/pkg/config"
	"github.com/anicoll/pvs-monitor/internal/pkg/model"
	"github.com/anicoll/pvs-monitor/internal/pkg/pvs"
	"github.com/anicoll/pvs-monitor/internal/pkg/statestore"
)

func newTestClassifier(t *testing.T) *Classifier {
	t.Helper()
	c, err := New(&config.MonitorConfig{
		DebounceThreshold:     3,
		FetchFailureThreshold: 4,
		DaylightStart:         "07:00",
		DaylightEnd:           "19:00",
	})
	require.NoError(t, err)
	return c
}

func daytime() time.Time {
	return time.Date(2026, 8, 20, 12, 0, 0, 0, time.Local)
}

func nighttime() time.Time {
	return time.Date(2026, 8, 20, 2, 0, 0, 0, time.Local)
}

func inverterSnap(state string, at time.Time) model.PollSnapshot {
	return model.PollSnapshot{
		FetchedAt: at,
		Records: []model.DeviceRecord{{
			Serial: "E001",
			Kind:   model.DeviceKindInverter,
			State:  state,
		}},
	}
}

func TestClassify_DebouncesUntilThresholdExceeded(t *testing.T) {
	c := newTestClassifier(t)
	st := statestore.NewState()

	for i := 1; i <= 3; i++ {
		rep := c.Classify(inverterSnap(model.DeviceStateError, daytime()), st)
		assert.Empty(t, rep.Anomalies, "poll %d is still within the debounce window", i)
	}

	rep := c.Classify(inverterSnap(model.DeviceStateError, daytime()), st)
	require.Len(t, rep.Anomalies, 1)
	assert.Equal(t, model.AnomalyInverterError, rep.Anomalies[0].Kind)
	assert.Equal(t, "E001", rep.Anomalies[0].Serial)
	assert.Equal(t, 4, st.Inverter("E001").ConsecutiveErrors)
}

func TestClassify_NightErrorsDoNotAdvanceTheStreak(t *testing.T) {
	c := newTestClassifier(t)
	st := statestore.NewState()

	for i := 0; i < 6; i++ {
		rep := c.Classify(inverterSnap(model.DeviceStateError, nighttime()), st)
		assert.Empty(t, rep.Anomalies)
	}
	assert.Zero(t, st.Inverter("E001").ConsecutiveErrors)
}

func TestClassify_OvernightErrorsDoNotPreloadTheDebounce(t *testing.T) {
	c := newTestClassifier(t)
	st := statestore.NewState()

	// a unit idle all night reports error every poll
	for i := 0; i < 4; i++ {
		c.Classify(inverterSnap(model.DeviceStateError, nighttime()), st)
	}

	// the first daytime error polls must still ride out the full debounce
	for i := 1; i <= 3; i++ {
		rep := c.Classify(inverterSnap(model.DeviceStateError, daytime()), st)
		assert.Empty(t, rep.Anomalies, "daytime poll %d is still within the debounce window", i)
	}

	rep := c.Classify(inverterSnap(model.DeviceStateError, daytime()), st)
	require.Len(t, rep.Anomalies, 1)
	assert.Equal(t, model.AnomalyInverterError, rep.Anomalies[0].Kind)
	assert.Equal(t, "in error state for 4 consecutive daytime polls", rep.Anomalies[0].Message)
}

func TestClassify_NightGapDoesNotResetADaytimeStreak(t *testing.T) {
	c := newTestClassifier(t)
	st := statestore.NewState()

	for i := 0; i < 2; i++ {
		c.Classify(inverterSnap(model.DeviceStateError, daytime()), st)
	}
	c.Classify(inverterSnap(model.DeviceStateError, nighttime()), st)
	assert.Equal(t, 2, st.Inverter("E001").ConsecutiveErrors)
}

func TestClassify_DeviceClockOverridesFetchTime(t *testing.T) {
	c := newTestClassifier(t)
	st := statestore.NewState()

	// fetched during the day, but the device says it is night
	snap := inverterSnap(model.DeviceStateError, daytime())
	snap.Records[0].DeviceTime = nighttime()

	for i := 0; i < 5; i++ {
		rep := c.Classify(snap, st)
		assert.Empty(t, rep.Anomalies)
	}
	assert.Zero(t, st.Inverter("E001").ConsecutiveErrors)
}

func TestClassify_WorkingResetsErrorCount(t *testing.T) {
	c := newTestClassifier(t)
	st := statestore.NewState()

	for i := 0; i < 3; i++ {
		c.Classify(inverterSnap(model.DeviceStateError, daytime()), st)
	}
	c.Classify(inverterSnap(model.DeviceStateWorking, daytime()), st)
	assert.Equal(t, 0, st.Inverter("E001").ConsecutiveErrors)

	// the streak starts over after recovery
	rep := c.Classify(inverterSnap(model.DeviceStateError, daytime()), st)
	assert.Empty(t, rep.Anomalies)
	assert.Equal(t, 1, st.Inverter("E001").ConsecutiveErrors)
}

func TestClassify_UnknownStateLeavesCountersAlone(t *testing.T) {
	c := newTestClassifier(t)
	st := statestore.NewState()

	for i := 0; i < 2; i++ {
		c.Classify(inverterSnap(model.DeviceStateError, daytime()), st)
	}
	rep := c.Classify(inverterSnap("booting", daytime()), st)
	assert.Empty(t, rep.Anomalies)
	assert.Equal(t, 2, st.Inverter("E001").ConsecutiveErrors)
	assert.False(t, st.Inverter("E001").HasBaseline)
}

func TestClassify_EnergyRegressionAlertsOnceThenRebaselines(t *testing.T) {
	c := newTestClassifier(t)
	st := statestore.NewState()

	snap := inverterSnap(model.DeviceStateWorking, daytime())
	snap.Records[0].LifetimeKwh = 2500
	rep := c.Classify(snap, st)
	assert.Empty(t, rep.Anomalies, "first observation establishes the baseline")

	snap.Records[0].LifetimeKwh = 12.5 // counter reset
	rep = c.Classify(snap, st)
	require.Len(t, rep.Anomalies, 1)
	assert.Equal(t, model.AnomalyEnergyRegression, rep.Anomalies[0].Kind)

	// same reading again: the reset value is the new baseline
	rep = c.Classify(snap, st)
	assert.Empty(t, rep.Anomalies)
}

func TestClassify_RegressionReportableEvenAtNight(t *testing.T) {
	c := newTestClassifier(t)
	st := statestore.NewState()

	snap := inverterSnap(model.DeviceStateWorking, nighttime())
	snap.Records[0].LifetimeKwh = 2500
	c.Classify(snap, st)

	snap.Records[0].LifetimeKwh = 100
	rep := c.Classify(snap, st)
	require.Len(t, rep.Anomalies, 1)
	assert.Equal(t, model.AnomalyEnergyRegression, rep.Anomalies[0].Kind)
}

func TestClassify_SuccessClearsFetchStreaks(t *testing.T) {
	c := newTestClassifier(t)
	st := statestore.NewState()
	st.FetchFailureStreak = 3
	st.UnreachableStreak = 2

	c.Classify(inverterSnap(model.DeviceStateWorking, daytime()), st)
	assert.Zero(t, st.FetchFailureStreak)
	assert.Zero(t, st.UnreachableStreak)
}

func TestRecordFetchFailure_UnreachableNeverAlerts(t *testing.T) {
	c := newTestClassifier(t)
	st := statestore.NewState()

	for i := 0; i < 10; i++ {
		anomaly := c.RecordFetchFailure(pvs.FetchUnreachable, daytime(), st)
		assert.Nil(t, anomaly)
	}
	assert.Equal(t, 10, st.UnreachableStreak)
	assert.Zero(t, st.FetchFailureStreak)
}

func TestRecordFetchFailure_AlertsPastThreshold(t *testing.T) {
	c := newTestClassifier(t)
	st := statestore.NewState()

	for i := 1; i <= 4; i++ {
		anomaly := c.RecordFetchFailure(pvs.FetchDeviceFailure, daytime(), st)
		assert.Nil(t, anomaly, "failure %d is within the threshold", i)
	}

	anomaly := c.RecordFetchFailure(pvs.FetchMalformedBody, daytime(), st)
	require.NotNil(t, anomaly)
	assert.Equal(t, model.AnomalySystemFetchFailure, anomaly.Kind)
	assert.Empty(t, anomaly.Serial)
}

func TestRecordFetchFailure_UnreachableBreaksFailureStreak(t *testing.T) {
	c := newTestClassifier(t)
	st := statestore.NewState()

	for i := 0; i < 4; i++ {
		c.RecordFetchFailure(pvs.FetchDeviceFailure, daytime(), st)
	}
	c.RecordFetchFailure(pvs.FetchUnreachable, daytime(), st)
	assert.Zero(t, st.FetchFailureStreak)

	anomaly := c.RecordFetchFailure(pvs.FetchDeviceFailure, daytime(), st)
	assert.Nil(t, anomaly)
	assert.Equal(t, 1, st.FetchFailureStreak)
}

func TestParseWindow_Validation(t *testing.T) {
	_, err := ParseWindow("19:00", "07:00")
	assert.Error(t, err)

	_, err = ParseWindow("7am", "19:00")
	assert.Error(t, err)

	w, err := ParseWindow("07:00", "19:00")
	require.NoError(t, err)
	assert.True(t, w.Contains(time.Date(2026, 8, 20, 7, 0, 0, 0, time.Local)))
	assert.True(t, w.Contains(time.Date(2026, 8, 20, 18, 59, 0, 0, time.Local)))
	assert.False(t, w.Contains(time.Date(2026, 8, 20, 19, 0, 0, 0, time.Local)))
	assert.False(t, w.Contains(time.Date(2026, 8, 20, 6, 59, 0, 0, time.Local)))
}
