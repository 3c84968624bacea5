package config

// Config is the whole YAML config file.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "720h").
type Config struct {
	Telegram  TelegramConfig  `yaml:"telegram"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Storage   StorageConfig   `yaml:"storage"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type TelegramConfig struct {
	Token string `yaml:"token"`
	// OwnerID is the only user allowed to drive the bot in private chat.
	OwnerID     int64  `yaml:"owner_id"`
	PollTimeout string `yaml:"poll_timeout,omitempty"`
}

// SchedulerConfig controls timing and recurrence policy.
type SchedulerConfig struct {
	// Timezone is the single IANA zone all user-facing times are read and
	// shown in. Empty means Asia/Ho_Chi_Minh.
	Timezone string `yaml:"timezone,omitempty"`

	// ContinueAfterFailure keeps a recurring series going even when one
	// occurrence fails to deliver. Off by default: a failed occurrence ends
	// the series.
	ContinueAfterFailure bool `yaml:"continue_after_failure,omitempty"`

	// Retention is how long terminal job rows are kept before the nightly
	// prune removes them. "0s" disables pruning.
	Retention string `yaml:"retention,omitempty"`

	// SendRatePerSec bounds outgoing deliveries.
	SendRatePerSec int `yaml:"send_rate_per_sec,omitempty"`
}

type StorageConfig struct {
	Path        string `yaml:"path"`
	BusyTimeout string `yaml:"busy_timeout,omitempty"`
}

type LoggingConfig struct {
	Level   string      `yaml:"level,omitempty"`
	Console bool        `yaml:"console"`
	File    LoggingFile `yaml:"file,omitempty"`
}

type LoggingFile struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path,omitempty"`
}
