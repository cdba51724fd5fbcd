package config

import (
	"os"
	"time"
)

// Default values for optional configuration fields.
const (
	DefaultNotionBaseURL      = "https://api.notion.com/v1"
	DefaultNotionVersion      = "2022-06-28"
	DefaultNotionTimeout      = 30 * time.Second
	DefaultNotionMaxRetries   = 3
	DefaultHandshakeTimeout   = 10 * time.Second
	DefaultRequestTimeout     = 60 * time.Second
	DefaultPingInterval       = 30 * time.Second
	DefaultSyncInterval       = 15 * time.Minute
	DefaultLookbackDays       = 30
	DefaultAccountConcurrency = 1
	DefaultQueryBatchSize     = 50
	DefaultWriterConcurrency  = 3
	DefaultBaseDelay          = 350 * time.Millisecond
	DefaultMaxDelay           = 10 * time.Second
	DefaultMultiplier         = 2.0
	DefaultWriteRetries       = 5
	DefaultDrainTimeout       = 30 * time.Second
	DefaultLedgerDriver       = "none"
	DefaultLedgerPath         = "tradesync.db"
	DefaultDBPort             = 5432
	DefaultDBSSLMode          = "prefer"
	DefaultMaxConns           = 4
	DefaultMinConns           = 1
	DefaultMetricsPort        = 9090
	DefaultMetricsPath        = "/metrics"
	DefaultLogLevel           = "info"
	DefaultLogFormat          = "text"
)

func (c *Config) applyDefaults() {
	// Notion defaults
	if c.Notion.Token == "" {
		c.Notion.Token = os.Getenv("NOTION_TOKEN")
	}
	if c.Notion.BaseURL == "" {
		c.Notion.BaseURL = DefaultNotionBaseURL
	}
	if c.Notion.Version == "" {
		c.Notion.Version = DefaultNotionVersion
	}
	if c.Notion.Timeout == 0 {
		c.Notion.Timeout = DefaultNotionTimeout
	}
	if c.Notion.MaxRetries == 0 {
		c.Notion.MaxRetries = DefaultNotionMaxRetries
	}

	// Bridge defaults
	if c.Bridge.HandshakeTimeout == 0 {
		c.Bridge.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.Bridge.RequestTimeout == 0 {
		c.Bridge.RequestTimeout = DefaultRequestTimeout
	}
	if c.Bridge.PingInterval == 0 {
		c.Bridge.PingInterval = DefaultPingInterval
	}

	// Sync defaults
	if c.Sync.Interval == 0 {
		c.Sync.Interval = DefaultSyncInterval
	}
	if c.Sync.LookbackDays == 0 {
		c.Sync.LookbackDays = DefaultLookbackDays
	}
	if c.Sync.AccountConcurrency == 0 {
		c.Sync.AccountConcurrency = DefaultAccountConcurrency
	}
	if c.Sync.QueryBatchSize == 0 {
		c.Sync.QueryBatchSize = DefaultQueryBatchSize
	}

	// Writer defaults
	if c.Writer.Concurrency == 0 {
		c.Writer.Concurrency = DefaultWriterConcurrency
	}
	if c.Writer.BaseDelay == 0 {
		c.Writer.BaseDelay = DefaultBaseDelay
	}
	if c.Writer.MaxDelay == 0 {
		c.Writer.MaxDelay = DefaultMaxDelay
	}
	if c.Writer.Multiplier == 0 {
		c.Writer.Multiplier = DefaultMultiplier
	}
	if c.Writer.MaxRetries == 0 {
		c.Writer.MaxRetries = DefaultWriteRetries
	}
	if c.Writer.DrainTimeout == 0 {
		c.Writer.DrainTimeout = DefaultDrainTimeout
	}

	// Account defaults
	for i := range c.Accounts {
		a := &c.Accounts[i]
		if a.BridgeURL == "" {
			a.BridgeURL = c.Bridge.URL
		}
		if a.LookbackDays == 0 {
			a.LookbackDays = c.Sync.LookbackDays
		}
	}

	// Ledger defaults
	if c.Ledger.Driver == "" {
		c.Ledger.Driver = DefaultLedgerDriver
	}
	if c.Ledger.Driver == "sqlite" && c.Ledger.Path == "" {
		c.Ledger.Path = DefaultLedgerPath
	}
	if c.Ledger.Driver == "postgres" {
		applyDBDefaults(&c.Ledger.Postgres)
	}

	// Metrics defaults
	if c.Metrics.Port == 0 {
		c.Metrics.Port = DefaultMetricsPort
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}

	// Log defaults
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
