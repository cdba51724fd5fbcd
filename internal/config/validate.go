package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rickgao/tradesync/internal/mapper"
	"github.com/rickgao/tradesync/internal/notion"
)

// Validate checks that all required fields are set and values are valid. It
// normalizes the database reference to a dashed ID and drops accounts with
// incomplete credentials, listing them in Skipped; it fails only if no
// account remains.
func (c *Config) Validate() error {
	if c.Notion.Token == "" {
		return errors.New("notion.token is required")
	}
	if c.Notion.Database == "" {
		return errors.New("notion.database is required")
	}
	id, err := notion.ParseDatabaseID(c.Notion.Database)
	if err != nil {
		return fmt.Errorf("notion.database: %w", err)
	}
	c.Notion.Database = id

	if c.Notion.MaxRetries < 0 {
		return errors.New("notion.max_retries must be >= 0")
	}

	if c.Sync.Interval < time.Minute && !c.Sync.Once {
		return fmt.Errorf("sync.interval must be at least 1m, got %s", c.Sync.Interval)
	}
	if c.Sync.LookbackDays < 1 {
		return errors.New("sync.lookback_days must be >= 1")
	}
	if c.Sync.AccountConcurrency < 1 {
		return errors.New("sync.account_concurrency must be >= 1")
	}
	if c.Sync.QueryBatchSize < 1 || c.Sync.QueryBatchSize > notion.MaxPageSize {
		return fmt.Errorf("sync.query_batch_size must be between 1 and %d", notion.MaxPageSize)
	}

	if c.Writer.Concurrency < 1 {
		return errors.New("writer.concurrency must be >= 1")
	}
	if c.Writer.Multiplier < 1 {
		return errors.New("writer.multiplier must be >= 1")
	}
	if c.Writer.MaxRetries < 0 {
		return errors.New("writer.max_retries must be >= 0")
	}
	if c.Writer.MaxDelay < c.Writer.BaseDelay {
		return fmt.Errorf("writer.max_delay (%s) cannot be less than base_delay (%s)", c.Writer.MaxDelay, c.Writer.BaseDelay)
	}

	if err := c.validateAccounts(); err != nil {
		return err
	}

	switch c.Ledger.Driver {
	case "none":
	case "sqlite":
		if c.Ledger.Path == "" {
			return errors.New("ledger.path is required for sqlite")
		}
	case "postgres":
		if err := c.Ledger.Postgres.validate("ledger.postgres"); err != nil {
			return err
		}
	default:
		return fmt.Errorf("ledger.driver must be none, sqlite or postgres, got %q", c.Ledger.Driver)
	}

	if c.Metrics.Enabled && (c.Metrics.Port < 1 || c.Metrics.Port > 65535) {
		return fmt.Errorf("metrics.port must be between 1 and 65535, got %d", c.Metrics.Port)
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("log.level must be debug, info, warn or error, got %q", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}

	if _, err := mapper.DefaultNames().WithOverrides(c.Properties); err != nil {
		return fmt.Errorf("properties: %w", err)
	}

	return nil
}

func (c *Config) validateAccounts() error {
	var kept []AccountConfig
	names := make(map[string]bool)
	c.Skipped = nil

	for i, a := range c.Accounts {
		label := a.Name
		if label == "" {
			label = fmt.Sprintf("accounts[%d]", i)
		}

		if a.invalidLogin != "" {
			c.Skipped = append(c.Skipped, fmt.Sprintf("%s: invalid login %q", label, a.invalidLogin))
			continue
		}

		var missing []string
		if a.Login == 0 {
			missing = append(missing, "login")
		}
		if a.Password == "" {
			missing = append(missing, "password")
		}
		if a.Server == "" {
			missing = append(missing, "server")
		}
		if len(missing) > 0 {
			c.Skipped = append(c.Skipped, fmt.Sprintf("%s: missing %s", label, strings.Join(missing, ", ")))
			continue
		}

		if a.Name == "" {
			a.Name = fmt.Sprintf("Account %d", a.Login)
		}
		if names[a.Name] {
			return fmt.Errorf("accounts: duplicate name %q", a.Name)
		}
		names[a.Name] = true

		if a.BridgeURL == "" {
			return fmt.Errorf("accounts: %s has no bridge_url and bridge.url is not set", a.Name)
		}
		if a.LookbackDays < 1 {
			return fmt.Errorf("accounts: %s lookback_days must be >= 1", a.Name)
		}

		kept = append(kept, a)
	}

	if len(kept) == 0 {
		return errors.New("no accounts with complete credentials configured")
	}
	c.Accounts = kept
	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
