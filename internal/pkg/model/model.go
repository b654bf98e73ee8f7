package model

import "time"

// DeviceKind is the closed set of device variants found in a PVS device list.
// Unknown discriminator values map to DeviceKindUnrecognized so new firmware
// device types survive extraction instead of being dropped.
type DeviceKind string

func (dk DeviceKind) String() string {
	return string(dk)
}

const (
	DeviceKindSupervisor       DeviceKind = "supervisor"
	DeviceKindProductionMeter  DeviceKind = "production_meter"
	DeviceKindConsumptionMeter DeviceKind = "consumption_meter"
	DeviceKindInverter         DeviceKind = "inverter"
	DeviceKindUnrecognized     DeviceKind = "unrecognized"
)

// Vendor state strings. Anything else is preserved verbatim on the record.
const (
	DeviceStateWorking = "working"
	DeviceStateError   = "error"
)

// DeviceRecord is one normalized entry from the device list.
type DeviceRecord struct {
	Serial      string
	Kind        DeviceKind
	RawType     string // discriminator as received, kept for unrecognized kinds
	State       string
	Description string

	PowerKw     float64 // instantaneous, signed
	LifetimeKwh float64 // monotonically non-decreasing while working
	// NetLifetimeKwh is the signed net-energy channel the consumption meter
	// reports; zero on device kinds without one.
	NetLifetimeKwh float64

	MpptVoltageV  float64
	MpptCurrentA  float64
	HeatsinkTempC float64
	FrequencyHz   float64

	// DeviceTime is the device-reported clock, distinct from the wall-clock
	// fetch time. Zero when the device omitted or garbled its timestamp.
	DeviceTime time.Time

	// Partial marks a record where one or more numeric fields failed to
	// parse. The affected fields are listed; the parsed remainder is usable.
	Partial       bool
	PartialFields []string
}

// SnapshotOutcome describes the overall extraction result for one poll.
type SnapshotOutcome string

const (
	SnapshotSuccess SnapshotOutcome = "success"
	SnapshotPartial SnapshotOutcome = "partial"
)

// PollSnapshot is an immutable set of records from a single fetch.
type PollSnapshot struct {
	FetchedAt time.Time
	Outcome   SnapshotOutcome
	Records   []DeviceRecord
}

// Inverters returns the inverter records in list order.
func (s PollSnapshot) Inverters() []DeviceRecord {
	out := make([]DeviceRecord, 0, len(s.Records))
	for _, r := range s.Records {
		if r.Kind == DeviceKindInverter {
			out = append(out, r)
		}
	}
	return out
}

// Overview is the per-poll system aggregate derived from the meter records.
type Overview struct {
	Timestamp        time.Time
	LifetimePvKwh    float64
	LifetimeLoadKwh  float64
	LifetimeNetKwh   float64
	CurrentPvKw      float64
	CurrentLoadKw    float64
	NetPowerKw       float64
	InvertersTotal   int
	InvertersWorking int
}

// BuildOverview folds the snapshot's meter and inverter records into the
// per-poll overview row. Net energy comes from the consumption meter's signed
// net channel; production minus consumption is the fallback when the firmware
// omits it.
func BuildOverview(snap PollSnapshot) Overview {
	ov := Overview{Timestamp: snap.FetchedAt}
	var haveNetEnergy bool
	for _, rec := range snap.Records {
		switch rec.Kind {
		case DeviceKindProductionMeter:
			ov.LifetimePvKwh = rec.LifetimeKwh
			ov.CurrentPvKw = rec.PowerKw
		case DeviceKindConsumptionMeter:
			ov.LifetimeLoadKwh = rec.LifetimeKwh
			ov.CurrentLoadKw = rec.PowerKw
			if rec.NetLifetimeKwh != 0 {
				ov.LifetimeNetKwh = rec.NetLifetimeKwh
				haveNetEnergy = true
			}
		case DeviceKindInverter:
			ov.InvertersTotal++
			if rec.State == DeviceStateWorking {
				ov.InvertersWorking++
			}
		}
	}
	if !haveNetEnergy {
		ov.LifetimeNetKwh = ov.LifetimePvKwh - ov.LifetimeLoadKwh
	}
	ov.NetPowerKw = ov.CurrentPvKw - ov.CurrentLoadKw
	return ov
}
