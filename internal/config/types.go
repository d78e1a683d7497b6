package config

// Config is the daemon's top-level configuration. Accepted on disk as YAML
// or JSON; both are decoded strictly, so unknown keys fail the load.
type Config struct {
	Telegram  TelegramConfig  `json:"telegram"`
	Logging   LoggingConfig   `json:"logging"`
	Entities  EntitiesConfig  `json:"entities"`
	Scheduler SchedulerConfig `json:"scheduler"`

	// Delivery tunes the send pipeline. Omitted means enabled with defaults.
	Delivery *DeliveryConfig `json:"delivery,omitempty"`

	// Storage is required for real operation: without a ledger the daemon
	// would re-send everything after each restart. Omitted means disabled,
	// which also disables the scheduler.
	Storage *StorageConfig `json:"storage,omitempty"`
}

type TelegramConfig struct {
	Enabled   bool   `json:"enabled"`
	Token     string `json:"token"`
	ParseMode string `json:"parse_mode,omitempty"`
}

type LoggingConfig struct {
	Level   string        `json:"level"`
	Console bool          `json:"console"`
	File    LoggingFile   `json:"file"`
	Alerts  LoggingAlerts `json:"alerts"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// LoggingAlerts forwards high-severity log lines to the alert sink
// (Telegram, when enabled).
type LoggingAlerts struct {
	Enabled    bool   `json:"enabled"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
	// Channel receives the alert messages, e.g. "telegram:12345".
	Channel string `json:"channel,omitempty"`
}

// EntitiesConfig points at the YAML file holding blocks and tasks.
type EntitiesConfig struct {
	Path string `json:"path"`
}

// SchedulerConfig controls the periodic matching tick.
//
// All durations are Go duration strings (e.g. "30s", "1m").
type SchedulerConfig struct {
	Enabled  bool   `json:"enabled"`
	Tick     string `json:"tick,omitempty"` // cron or interval; default "1m"
	Timezone string `json:"timezone,omitempty"`

	// Retention drops ledger rows older than this. Empty keeps everything.
	Retention string `json:"retention,omitempty"`

	Checkin CheckinConfig `json:"checkin"`
}

type CheckinConfig struct {
	Enabled  bool     `json:"enabled"`
	Users    []string `json:"users,omitempty"`
	FromHour int      `json:"from_hour,omitempty"`
	ToHour   int      `json:"to_hour,omitempty"`
	Channels []string `json:"channels,omitempty"`
}

// DeliveryConfig controls the async send pipeline.
//
// Enabled is a pointer so an omitted field defaults to true while an
// explicit false still disables the pipeline.
type DeliveryConfig struct {
	Enabled       *bool  `json:"enabled,omitempty"`
	Workers       int    `json:"workers,omitempty"`
	QueueSize     int    `json:"queue_size,omitempty"`
	RatePerSec    int    `json:"rate_per_sec,omitempty"`
	RetryMax      int    `json:"retry_max,omitempty"`
	RetryBase     string `json:"retry_base,omitempty"`
	RetryMaxDelay string `json:"retry_max_delay,omitempty"`
	SendTimeout   string `json:"send_timeout,omitempty"`

	// DefaultChannel is the scheme assumed for channel strings without one.
	DefaultChannel string `json:"default_channel,omitempty"`
}

type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite only
}
