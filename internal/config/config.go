package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"StockScreener/internal/filter"
	"StockScreener/internal/indicator"
)

// Config holds all application configuration.
type Config struct {
	Providers []ProviderConfig `yaml:"providers"`
	Retry     struct {
		MaxAttempts int           `yaml:"max_attempts"`
		BaseDelay   time.Duration `yaml:"base_delay"`
		MaxDelay    time.Duration `yaml:"max_delay"`
	} `yaml:"retry"`
	Scan struct {
		Concurrency   int    `yaml:"concurrency"`
		Period        string `yaml:"period"`
		LookbackYears int    `yaml:"lookback_years"`
		Profile       string `yaml:"profile"`
		TopN          int    `yaml:"top_n"`
		GoldenOnly    bool   `yaml:"golden_only"`
	} `yaml:"scan"`
	Indicator indicator.Config `yaml:"indicator"`
	// Profiles overrides or extends the built-in filter threshold sets.
	Profiles map[string]filter.Profile `yaml:"profiles"`
	Universe struct {
		File        string   `yaml:"file"`
		Symbols     []string `yaml:"symbols"`
		Prefixes    []string `yaml:"prefixes"`
		ExcludeName string   `yaml:"exclude_name"`
		SampleRatio float64  `yaml:"sample_ratio"`
	} `yaml:"universe"`
	Schedule struct {
		ScanCron   string `yaml:"scan_cron"`
		RunOnStart bool   `yaml:"run_on_start"`
	} `yaml:"schedule"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
	Proxy string `yaml:"proxy"`
}

// ProviderConfig describes one data provider. Order in the providers list
// is the failover priority.
type ProviderConfig struct {
	Name    string        `yaml:"name"`
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// Load reads config from a YAML file, then applies environment variable overrides.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("SCREENER_PROFILE"); v != "" {
		cfg.Scan.Profile = v
	}
	if v := os.Getenv("SCREENER_PERIOD"); v != "" {
		cfg.Scan.Period = v
	}
	if v := os.Getenv("SCREENER_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Scan.Concurrency = n
		}
	}
	if v := os.Getenv("SCREENER_UNIVERSE_FILE"); v != "" {
		cfg.Universe.File = v
	}
	if v := os.Getenv("CRON_SCAN"); v != "" {
		cfg.Schedule.ScanCron = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		cfg.Proxy = v
	}

	// Defaults
	if len(cfg.Providers) == 0 {
		cfg.Providers = []ProviderConfig{{Name: "eastmoney"}, {Name: "tencent"}}
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry.MaxAttempts = 5
	}
	if cfg.Retry.BaseDelay == 0 {
		cfg.Retry.BaseDelay = 500 * time.Millisecond
	}
	if cfg.Retry.MaxDelay == 0 {
		cfg.Retry.MaxDelay = 10 * time.Second
	}
	if cfg.Scan.Concurrency == 0 {
		cfg.Scan.Concurrency = 6
	}
	if cfg.Scan.Period == "" {
		cfg.Scan.Period = "weekly"
	}
	if cfg.Scan.LookbackYears == 0 {
		cfg.Scan.LookbackYears = 3
	}
	if cfg.Scan.Profile == "" {
		cfg.Scan.Profile = "default"
	}
	if cfg.Scan.TopN == 0 {
		cfg.Scan.TopN = 20
	}
	if cfg.Indicator == (indicator.Config{}) {
		cfg.Indicator = indicator.Default()
	}
	if len(cfg.Universe.Prefixes) == 0 {
		cfg.Universe.Prefixes = []string{"00", "30", "60", "68"}
	}
	if cfg.Universe.ExcludeName == "" {
		cfg.Universe.ExcludeName = "ST|退"
	}
	if cfg.Schedule.ScanCron == "" {
		// Saturday 09:00, after the trading week closes.
		cfg.Schedule.ScanCron = "0 0 9 * * 6"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}

	return cfg, nil
}

// Profile resolves the configured scan profile, preferring a YAML-defined
// threshold set over the built-ins of the same name.
func (c *Config) Profile() (filter.Profile, error) {
	if p, ok := c.Profiles[c.Scan.Profile]; ok {
		p.Name = c.Scan.Profile
		return p, nil
	}
	return filter.ByName(c.Scan.Profile)
}

// Validate checks that all required fields are consistent.
func (c *Config) Validate() error {
	if len(c.Providers) == 0 {
		return fmt.Errorf("at least one provider is required")
	}
	for _, p := range c.Providers {
		switch p.Name {
		case "eastmoney", "tencent", "mock":
		default:
			return fmt.Errorf("unknown provider %q", p.Name)
		}
	}
	switch c.Scan.Period {
	case "daily", "weekly", "monthly":
	default:
		return fmt.Errorf("scan.period must be daily, weekly or monthly")
	}
	if _, err := c.Profile(); err != nil {
		return err
	}
	if c.Scan.Concurrency < 1 {
		return fmt.Errorf("scan.concurrency must be positive")
	}
	if c.Scan.LookbackYears < 1 {
		return fmt.Errorf("scan.lookback_years must be positive")
	}
	if r := c.Universe.SampleRatio; r < 0 || r > 1 {
		return fmt.Errorf("universe.sample_ratio must be within [0, 1]")
	}
	if len(c.Universe.Symbols) == 0 && c.Universe.File == "" {
		return fmt.Errorf("universe.symbols or universe.file is required")
	}
	return nil
}
