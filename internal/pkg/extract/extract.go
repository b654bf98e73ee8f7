package extract

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/anicoll/pvs-monitor/internal/pkg/model"
	"github.com/anicoll/pvs-monitor/internal/pkg/pvs"
)

// deviceTimeLayout is the device-local comma-separated clock format.
const deviceTimeLayout = "2006,01,02,15,04,05"

// Snapshot walks the heterogeneous device list and normalizes each entry into
// a typed record. Classification dispatches on the DEVICE_TYPE/TYPE
// discriminator; unknown kinds are preserved as unrecognized. A numeric field
// that fails to parse marks that record partial and extraction continues.
func Snapshot(payload *pvs.RawPayload, fetchedAt time.Time) model.PollSnapshot {
	snap := model.PollSnapshot{
		FetchedAt: fetchedAt,
		Outcome:   model.SnapshotSuccess,
		Records:   make([]model.DeviceRecord, 0, len(payload.Devices)),
	}

	for _, entry := range payload.Devices {
		rec := extractRecord(entry, fetchedAt)
		if rec.Partial {
			snap.Outcome = model.SnapshotPartial
			zap.L().Warn("partial device record",
				zap.String("serial", rec.Serial),
				zap.Strings("fields", rec.PartialFields))
		}
		snap.Records = append(snap.Records, rec)
	}
	return snap
}

func extractRecord(entry pvs.DeviceEntry, fetchedAt time.Time) model.DeviceRecord {
	rec := model.DeviceRecord{
		Serial:      entry.Serial,
		Kind:        classify(entry),
		RawType:     discriminator(entry),
		State:       strings.ToLower(strings.TrimSpace(entry.State)),
		Description: entry.Descr,
	}

	fields := fieldParser{rec: &rec}
	rec.PowerKw = fields.float("p_3phsum_kw", entry.PowerKw)
	rec.LifetimeKwh = fields.float("ltea_3phsum_kwh", entry.LifetimeKwh)
	rec.NetLifetimeKwh = fields.float("net_ltea_3phsum_kwh", entry.NetLteaKwh)
	rec.MpptVoltageV = fields.float("v_mppt1_v", entry.MpptVoltageV)
	rec.MpptCurrentA = fields.float("i_mppt1_a", entry.MpptCurrentA)
	rec.HeatsinkTempC = fields.float("t_htsnk_degc", entry.HeatsinkTempC)
	rec.FrequencyHz = fields.float("freq_hz", entry.FrequencyHz)

	if entry.DataTime != "" {
		t, err := time.ParseInLocation(deviceTimeLayout, entry.DataTime, fetchedAt.Location())
		if err != nil {
			fields.flag("DATATIME")
		} else {
			rec.DeviceTime = t
		}
	}
	return rec
}

// classify maps the vendor discriminator onto the closed variant set. The
// two meter channels share DEVICE_TYPE and differ only in the TYPE suffix.
func classify(entry pvs.DeviceEntry) model.DeviceKind {
	switch entry.DeviceType {
	case "PVS":
		return model.DeviceKindSupervisor
	case "Inverter":
		return model.DeviceKindInverter
	case "Power Meter":
		switch {
		case strings.HasSuffix(entry.Type, "-P"):
			return model.DeviceKindProductionMeter
		case strings.HasSuffix(entry.Type, "-C"):
			return model.DeviceKindConsumptionMeter
		}
	}
	return model.DeviceKindUnrecognized
}

func discriminator(entry pvs.DeviceEntry) string {
	if entry.Type != "" {
		return fmt.Sprintf("%s/%s", entry.DeviceType, entry.Type)
	}
	return entry.DeviceType
}

// fieldParser accumulates partial-extraction flags on its record.
type fieldParser struct {
	rec *model.DeviceRecord
}

// float parses a string-encoded numeric channel. Absent fields are zero
// without a flag (not every device kind reports every channel); present but
// unparseable fields flag the record partial.
func (p *fieldParser) float(name, raw string) float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		p.flag(name)
		return 0
	}
	return v
}

func (p *fieldParser) flag(name string) {
	p.rec.Partial = true
	p.rec.PartialFields = append(p.rec.PartialFields, name)
}
