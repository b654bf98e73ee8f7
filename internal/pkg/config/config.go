package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the full process configuration. Defaults come from the
// environment via caarlos0/env; CLI flags override on top.
type Config struct {
	Device   DeviceConfig
	Monitor  MonitorConfig
	Sinks    SinkConfig
	LogLevel string `env:"LOG_LEVEL" envDefault:"INFO"`
}

// DeviceConfig describes the PVS supervisor being polled.
type DeviceConfig struct {
	Host string `env:"PVS_HOST"`
	// Serial is the full supervisor serial; the auth credential is derived
	// from its last five characters.
	Serial string `env:"PVS_SERIAL"`
	// LegacyEndpoint selects the deprecated unauthenticated dl_cgi endpoint.
	LegacyEndpoint bool          `env:"PVS_LEGACY_ENDPOINT"`
	Timeout        time.Duration `env:"PVS_TIMEOUT" envDefault:"10s"`
}

// MonitorConfig carries the anomaly-detection tunables. These are empirical
// and site-specific, so they are inputs rather than constants.
type MonitorConfig struct {
	// DebounceThreshold is how many consecutive daytime error polls an
	// inverter must accumulate before its error becomes reportable.
	DebounceThreshold int `env:"DEBOUNCE_THRESHOLD" envDefault:"3"`
	// FetchFailureThreshold is how many consecutive device-reported or
	// malformed fetch outcomes raise a system-level anomaly.
	FetchFailureThreshold int `env:"FETCH_FAILURE_THRESHOLD" envDefault:"4"`
	// Daylight window, local time HH:MM. Inverter errors outside it are
	// expected idle behaviour, not failures.
	DaylightStart string `env:"DAYLIGHT_START" envDefault:"07:00"`
	DaylightEnd   string `env:"DAYLIGHT_END" envDefault:"19:00"`
	// UnderperformanceFraction flags inverters producing below this fraction
	// of the fleet average for the day.
	UnderperformanceFraction float64 `env:"UNDERPERFORMANCE_FRACTION" envDefault:"0.8"`
	// PollSchedule and SummarySchedule are cron expressions for serve mode.
	PollSchedule    string `env:"POLL_SCHEDULE" envDefault:"*/15 * * * *"`
	SummarySchedule string `env:"SUMMARY_SCHEDULE" envDefault:"10 0 * * *"`
}

// SinkConfig wires the storage and notification collaborators. CSV and the
// state file are authoritative; everything else is best-effort.
type SinkConfig struct {
	OutputDir  string `env:"OUTPUT_DIR" envDefault:"pvs_output"`
	StateDir   string `env:"STATE_DIR" envDefault:"pvs_output"`
	ArchiveRaw bool   `env:"ARCHIVE_RAW"`

	DatabaseURL string `env:"DATABASE_URL"`

	MqttBroker      string `env:"MQTT_BROKER"`
	MqttUsername    string `env:"MQTT_USER"`
	MqttPassword    string `env:"MQTT_PASS"`
	MqttTopicPrefix string `env:"MQTT_TOPIC_PREFIX" envDefault:"pvs-monitor"`

	SpreadsheetPath string `env:"SPREADSHEET_PATH"`
}

// Load builds a Config from the environment.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}

// Validate checks the fields every command needs before a pass starts.
func (c *Config) Validate() error {
	if c.Device.Host == "" {
		return fmt.Errorf("device host is required")
	}
	if !c.Device.LegacyEndpoint && len(c.Device.Serial) < 5 {
		return fmt.Errorf("supervisor serial (>= 5 chars) is required for the authenticated endpoint")
	}
	if c.Monitor.DebounceThreshold < 1 {
		return fmt.Errorf("debounce threshold must be at least 1")
	}
	if c.Monitor.UnderperformanceFraction <= 0 || c.Monitor.UnderperformanceFraction >= 1 {
		return fmt.Errorf("underperformance fraction must be in (0, 1)")
	}
	return nil
}
