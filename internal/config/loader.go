package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// LoadEnv loads variables from dotenv files into the process environment.
// Variables already set win. With no files it reads .env in the working
// directory; a missing default file is not an error.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load .env: %w", err)
		}
		return nil
	}
	if err := godotenv.Load(files...); err != nil {
		return fmt.Errorf("load env files: %w", err)
	}
	return nil
}

// Load reads a YAML config file and expands environment variables.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// Expand ${VAR} environment variables
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config yaml: %w", err)
	}

	return &cfg, nil
}

// FromEnv builds a config from environment variables alone:
//
//	NOTION_TOKEN, DATABASE_ID or NOTION_DATABASE_URL
//	SYNC_INTERVAL_MINUTES, LOOKBACK_DAYS
//	MT5_BRIDGE_URL, MT5_BRIDGE_TOKEN
//	MT5_ACCOUNT_COUNT and ACCOUNT_<n>_{NAME,LOGIN,PASSWORD,SERVER,PATH} for n = 1..count
func FromEnv() (*Config, error) {
	cfg := &Config{
		Notion: NotionConfig{
			Token:    os.Getenv("NOTION_TOKEN"),
			Database: firstEnv("DATABASE_ID", "NOTION_DATABASE_URL"),
		},
		Bridge: BridgeConfig{
			URL:   os.Getenv("MT5_BRIDGE_URL"),
			Token: os.Getenv("MT5_BRIDGE_TOKEN"),
		},
	}

	if v := os.Getenv("SYNC_INTERVAL_MINUTES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("SYNC_INTERVAL_MINUTES: %w", err)
		}
		cfg.Sync.Interval = time.Duration(n) * time.Minute
	}
	if v := os.Getenv("LOOKBACK_DAYS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("LOOKBACK_DAYS: %w", err)
		}
		cfg.Sync.LookbackDays = n
	}

	count := 0
	if v := os.Getenv("MT5_ACCOUNT_COUNT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("MT5_ACCOUNT_COUNT: %w", err)
		}
		count = n
	}

	for i := 1; i <= count; i++ {
		prefix := fmt.Sprintf("ACCOUNT_%d_", i)
		acct := AccountConfig{
			Name:     os.Getenv(prefix + "NAME"),
			Password: os.Getenv(prefix + "PASSWORD"),
			Server:   os.Getenv(prefix + "SERVER"),
			Path:     os.Getenv(prefix + "PATH"),
		}
		if v := os.Getenv(prefix + "LOGIN"); v != "" {
			login, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				// Validate skips the account rather than failing startup.
				acct.invalidLogin = v
			} else {
				acct.Login = login
			}
		}
		cfg.Accounts = append(cfg.Accounts, acct)
	}

	return cfg, nil
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

// LoadWithDefaults loads config and applies default values. An empty path
// builds the config from the environment.
func LoadWithDefaults(path string) (*Config, error) {
	var cfg *Config
	var err error
	if path == "" {
		cfg, err = FromEnv()
	} else {
		cfg, err = Load(path)
	}
	if err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

// LoadAndValidate loads config, applies defaults, and validates.
func LoadAndValidate(path string) (*Config, error) {
	cfg, err := LoadWithDefaults(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}
