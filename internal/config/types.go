package config

type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Logging  LoggingConfig  `json:"logging"`
	Storage  StorageConfig  `json:"storage"`
	Queue    QueueConfig    `json:"queue"`
	Notify   NotifyConfig   `json:"notify"`
	Pprof    PprofConfig    `json:"pprof"`
}

type TelegramConfig struct {
	Token string `json:"token"`
	// PollTimeout is a Go duration string (e.g. "10s", "2m").
	PollTimeout string `json:"poll_timeout,omitempty"`
	// SuperAdminID is the Telegram user id that gets is_admin on registration.
	SuperAdminID int64 `json:"super_admin_id,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// StorageConfig controls the SQLite entity store.
type StorageConfig struct {
	Path string `json:"path"`
	// BusyTimeout is a Go duration string; 0 means the driver default.
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

// QueueConfig holds signup queue policy.
//
// All durations are Go duration strings (e.g. "5m", "1h").
//
// Defaults (when fields are omitted/zero):
//   - min_open_duration: "10m"
//   - min_notify_lead: "5m"
//   - page_size: 5
//   - utc_offset_hours: 3
//   - sweep_interval: "1m"
type QueueConfig struct {
	// MinOpenDuration is the lower bound for end_dt - start_dt.
	MinOpenDuration string `json:"min_open_duration,omitempty"`
	// MinNotifyLead is the strict lower bound for start_dt - notify_dt.
	MinNotifyLead string `json:"min_notify_lead,omitempty"`
	// PageSize is the number of queues per page in list views.
	PageSize int `json:"page_size,omitempty"`
	// UTCOffsetHours is the fixed offset applied to human-entered datetimes.
	// Pointer so an explicit 0 (UTC) is distinguishable from "omitted".
	UTCOffsetHours *int `json:"utc_offset_hours,omitempty"`
	// SweepInterval is how often the lifecycle reconciliation sweep runs.
	SweepInterval string `json:"sweep_interval,omitempty"`
}

// PprofConfig controls the optional profiling HTTP server. A non-loopback
// addr requires a token.
//
// All timeouts are Go duration strings.
type PprofConfig struct {
	Enabled      bool   `json:"enabled,omitempty"`
	Addr         string `json:"addr,omitempty"`
	Token        string `json:"token,omitempty"`
	ReadTimeout  string `json:"read_timeout,omitempty"`
	WriteTimeout string `json:"write_timeout,omitempty"`
	IdleTimeout  string `json:"idle_timeout,omitempty"`
}

// NotifyConfig controls the outbound broadcast pipeline.
//
// All durations are Go duration strings (e.g. "500ms", "10s").
type NotifyConfig struct {
	Workers       int    `json:"workers,omitempty"`
	QueueSize     int    `json:"queue_size,omitempty"`
	RatePerSec    int    `json:"rate_per_sec,omitempty"`
	RetryMax      int    `json:"retry_max,omitempty"`
	RetryBase     string `json:"retry_base,omitempty"`
	RetryMaxDelay string `json:"retry_max_delay,omitempty"`
}
