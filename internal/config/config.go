// Package config loads the sync configuration from YAML and the environment.
package config

import "time"

// Config is the root configuration.
type Config struct {
	Notion     NotionConfig      `yaml:"notion"`
	Bridge     BridgeConfig      `yaml:"bridge"`
	Sync       SyncConfig        `yaml:"sync"`
	Writer     WriterConfig      `yaml:"writer"`
	Accounts   []AccountConfig   `yaml:"accounts"`
	Ledger     LedgerConfig      `yaml:"ledger"`
	Metrics    MetricsConfig     `yaml:"metrics"`
	Log        LogConfig         `yaml:"log"`
	Properties map[string]string `yaml:"properties"` // Journal property name overrides, keyed by field

	// Skipped lists accounts dropped by Validate for incomplete credentials.
	Skipped []string `yaml:"-"`
}

// NotionConfig holds journal API settings.
type NotionConfig struct {
	Token      string        `yaml:"token"`
	Database   string        `yaml:"database"` // ID or share URL
	BaseURL    string        `yaml:"base_url"`
	Version    string        `yaml:"version"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"` // Read retries
}

// BridgeConfig holds terminal bridge defaults shared by all accounts.
type BridgeConfig struct {
	URL              string        `yaml:"url"`
	Token            string        `yaml:"token"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	RequestTimeout   time.Duration `yaml:"request_timeout"`
	PingInterval     time.Duration `yaml:"ping_interval"`
}

// SyncConfig holds scheduling settings.
type SyncConfig struct {
	Interval           time.Duration `yaml:"interval"`
	LookbackDays       int           `yaml:"lookback_days"`
	AccountConcurrency int           `yaml:"account_concurrency"`
	QueryBatchSize     int           `yaml:"query_batch_size"`
	Once               bool          `yaml:"once"`
}

// WriterConfig holds journal write pacing.
type WriterConfig struct {
	Concurrency  int           `yaml:"concurrency"`
	BaseDelay    time.Duration `yaml:"base_delay"`
	MaxDelay     time.Duration `yaml:"max_delay"`
	Multiplier   float64       `yaml:"multiplier"`
	MaxRetries   int           `yaml:"max_retries"`
	DrainTimeout time.Duration `yaml:"drain_timeout"`
}

// AccountConfig is one trading account.
type AccountConfig struct {
	Name         string `yaml:"name"`
	Login        int64  `yaml:"login"`
	Password     string `yaml:"password"`
	Server       string `yaml:"server"`
	Path         string `yaml:"path"`       // Terminal installation path
	BridgeURL    string `yaml:"bridge_url"` // Overrides bridge.url
	LookbackDays int    `yaml:"lookback_days"`

	invalidLogin string // Unparseable LOGIN from the environment
}

// LedgerConfig selects where cycle results are recorded.
type LedgerConfig struct {
	Driver   string   `yaml:"driver"` // none, sqlite or postgres
	Path     string   `yaml:"path"`   // SQLite file
	Postgres DBConfig `yaml:"postgres"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    int    `yaml:"port"`
	Path    string `yaml:"path"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}
