package types

import "time"

// RiskLevel defines the severity of an alert
type RiskLevel string

const (
	RiskInfo     RiskLevel = "info"
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// Alert represents a detection raised on top of matched auth events
type Alert struct {
	ID            string    `json:"id"`
	Timestamp     time.Time `json:"timestamp"`
	Source        string    `json:"source"`
	Risk          RiskLevel `json:"risk"`
	Summary       string    `json:"summary"`
	Explanation   string    `json:"explanation"`
	IP            string    `json:"ip"`
	FailedLogins  int       `json:"failed_logins"`
	DistinctUsers int       `json:"distinct_users"`
}

// LoggingConfig controls the diagnostic logger (not the event output).
type LoggingConfig struct {
	Level      string `yaml:"level"` // debug, info, warn, error
	Path       string `yaml:"path"`  // empty logs to stderr
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
	Compress   bool   `yaml:"compress"`
}

// Config represents the application configuration
type Config struct {
	Input struct {
		AuthLogPath   string        `yaml:"auth_log_path"`
		PollInterval  time.Duration `yaml:"poll_interval"`
		EnableJournal bool          `yaml:"enable_journald"`
	} `yaml:"input"`

	Output struct {
		Format       string `yaml:"format"` // text, json
		Color        string `yaml:"color"`  // auto, always, never
		UserWidth    int    `yaml:"user_width"`
		AuditLogPath string `yaml:"audit_log_path"`
	} `yaml:"output"`

	Detection struct {
		Filter              string        `yaml:"filter"` // expr-lang boolean expression
		BruteForceThreshold int           `yaml:"brute_force_threshold"`
		BruteForceWindow    time.Duration `yaml:"brute_force_window"`
		BruteForce          bool          `yaml:"brute_force"` // off unless enabled
	} `yaml:"detection"`

	History struct {
		Enabled bool   `yaml:"enabled"`
		DBPath  string `yaml:"db_path"`
	} `yaml:"history"`

	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Listen  string `yaml:"listen"`
	} `yaml:"metrics"`

	Logging LoggingConfig `yaml:"logging"`
}
