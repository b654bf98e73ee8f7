// Package statestore persists the cross-invocation monitor state. Each run is
// a fresh process; this file is the only shared mutable state, so writes go
// through a temp file and an atomic rename to survive overlapping cron runs.
package statestore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/anicoll/pvs-monitor/internal/pkg/model"
)

const (
	stateFileName = "monitor_state.json"
	stateVersion  = 1
)

// DayState is the in-progress aggregate for the current calendar day. Deltas
// are always recomputed from the day's first lifetime readings, never
// accumulated per poll, which keeps re-runs idempotent.
type DayState struct {
	Date string `json:"date"` // 2006-01-02

	HaveBaseline    bool    `json:"have_baseline"`
	BaselinePvKwh   float64 `json:"baseline_pv_kwh"`
	BaselineLoadKwh float64 `json:"baseline_load_kwh"`
	BaselineNetKwh  float64 `json:"baseline_net_kwh"`

	LastPvKwh   float64 `json:"last_pv_kwh"`
	LastLoadKwh float64 `json:"last_load_kwh"`
	LastNetKwh  float64 `json:"last_net_kwh"`

	PeakPowerKw float64 `json:"peak_power_kw"`

	// first and last lifetime reading per inverter serial for the day
	InverterBaselines map[string]float64 `json:"inverter_baselines"`
	InverterLast      map[string]float64 `json:"inverter_last"`

	// serials observed in error state at any point today
	ErrorSerials map[string]bool `json:"error_serials"`
	// serials (and the system pseudo-entry) already alerted today
	AlertedSerials map[string]bool `json:"alerted_serials"`
}

// NewDayState starts an empty aggregate for the given date.
func NewDayState(date string) *DayState {
	return &DayState{
		Date:              date,
		InverterBaselines: map[string]float64{},
		InverterLast:      map[string]float64{},
		ErrorSerials:      map[string]bool{},
		AlertedSerials:    map[string]bool{},
	}
}

// State is everything the pipeline carries between invocations.
type State struct {
	Version int `json:"version"`

	// per-serial rolling health, owned by the classifier
	Inverters map[string]*model.InverterHealthState `json:"inverters"`

	// consecutive fetch outcomes for system-level anomaly tracking;
	// unreachable counts separately because it is expected at night
	FetchFailureStreak int `json:"fetch_failure_streak"`
	UnreachableStreak  int `json:"unreachable_streak"`

	Day *DayState `json:"day,omitempty"`
}

// NewState returns an empty state for a first run.
func NewState() *State {
	return &State{
		Version:   stateVersion,
		Inverters: map[string]*model.InverterHealthState{},
	}
}

// Inverter returns the rolling state for a serial, creating it on first sight.
func (s *State) Inverter(serial string) *model.InverterHealthState {
	hs, ok := s.Inverters[serial]
	if !ok {
		hs = &model.InverterHealthState{}
		s.Inverters[serial] = hs
	}
	return hs
}

// Path returns the state file location under dir.
func Path(dir string) string {
	return filepath.Join(dir, stateFileName)
}

// Load reads the state file. A missing file yields a fresh state; an unknown
// version is an error rather than a silent migration.
func Load(dir string) (*State, error) {
	data, err := os.ReadFile(Path(dir))
	if errors.Is(err, os.ErrNotExist) {
		return NewState(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read state: %w", err)
	}

	st := &State{}
	if err := json.Unmarshal(data, st); err != nil {
		return nil, fmt.Errorf("decode state: %w", err)
	}
	if st.Version != stateVersion {
		return nil, fmt.Errorf("unsupported state version %d", st.Version)
	}
	if st.Inverters == nil {
		st.Inverters = map[string]*model.InverterHealthState{}
	}
	return st, nil
}

// Save writes the state atomically: temp file in the same directory, fsync,
// rename over the old file.
func Save(dir string, st *State) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	tmp, err := os.CreateTemp(dir, stateFileName+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp state: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp state: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp state: %w", err)
	}

	if err := os.Rename(tmpName, Path(dir)); err != nil {
		return fmt.Errorf("replace state: %w", err)
	}
	return nil
}
