package model

// Underperformer is an inverter whose daily production fell below the
// configured fraction of the fleet average.
type Underperformer struct {
	Serial        string  `json:"serial"`
	ProductionKwh float64 `json:"production_kwh"`
	FleetAvgKwh   float64 `json:"fleet_avg_kwh"`
	Percent       float64 `json:"percent"`
}

// DailySummary is the finalized aggregate for one calendar day.
type DailySummary struct {
	Date string `json:"date"` // 2006-01-02

	ProductionKwh float64 `json:"production_kwh"`
	LoadKwh       float64 `json:"load_kwh"`
	NetKwh        float64 `json:"net_kwh"`

	LifetimePvKwh   float64 `json:"lifetime_pv_kwh"`
	LifetimeLoadKwh float64 `json:"lifetime_load_kwh"`
	LifetimeNetKwh  float64 `json:"lifetime_net_kwh"`

	PeakPowerKw float64 `json:"peak_power_kw"`

	InvertersReporting int      `json:"inverters_reporting"`
	InvertersInError   int      `json:"inverters_in_error"`
	AlertedSerials     []string `json:"alerted_serials,omitempty"`

	Underperformers []Underperformer `json:"underperformers,omitempty"`
}
