package model

import "time"

// AnomalyKind discriminates what a raised anomaly means to alerting.
type AnomalyKind string

func (ak AnomalyKind) String() string {
	return string(ak)
}

const (
	// AnomalyInverterError fires when an inverter stayed in error state past
	// the debounce threshold inside the daylight window.
	AnomalyInverterError AnomalyKind = "inverter_error"
	// AnomalyEnergyRegression fires when a working inverter's lifetime energy
	// counter went backwards. Never debounced.
	AnomalyEnergyRegression AnomalyKind = "energy_regression"
	// AnomalySystemFetchFailure fires when the device itself kept answering
	// with failures or garbage for too many consecutive passes.
	AnomalySystemFetchFailure AnomalyKind = "system_fetch_failure"
)

// Anomaly is one reportable condition. Serial is empty for system-level kinds.
type Anomaly struct {
	Kind       AnomalyKind `json:"kind"`
	Serial     string      `json:"serial,omitempty"`
	Message    string      `json:"message"`
	ObservedAt time.Time   `json:"observed_at"`
}

// HealthReport is the classifier output for one snapshot.
type HealthReport struct {
	Anomalies []Anomaly
	Working   int
	Errored   int
	// PartialSerials lists records that extraction flagged as partial.
	PartialSerials []string
}

// InverterHealthState is the per-serial rolling state carried across polls.
type InverterHealthState struct {
	ConsecutiveErrors int       `json:"consecutive_errors"`
	LastWorkingAt     time.Time `json:"last_working_at"`
	LastLifetimeKwh   float64   `json:"last_lifetime_kwh"`
	HasBaseline       bool      `json:"has_baseline"`
}
