package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"
)

const (
	defaultPollIntervalMinutes  = 15
	defaultHistoryRetentionDays = 30
	defaultFetchTimeoutSeconds  = 30
)

// ThresholdRule holds the alert thresholds for one provider. DailySpendUSD
// is accepted in config but not evaluated yet (extension point).
type ThresholdRule struct {
	BalanceUSD    float64 `json:"balance_usd,omitempty"`
	DailySpendUSD float64 `json:"daily_spend_usd,omitempty"`
}

// Config is the operator-level dashboard configuration, loaded once per
// invocation. The core never persists it.
type Config struct {
	PollIntervalMinutes  int                      `json:"poll_interval_minutes"`
	HistoryRetentionDays int                      `json:"history_retention_days"` // carried, unused
	FetchTimeoutSeconds  int                      `json:"fetch_timeout_seconds"`
	Thresholds           map[string]ThresholdRule `json:"thresholds,omitempty"`
	EnabledProviders     []string                 `json:"enabled_providers,omitempty"` // empty = all registered
	BaseURLs             map[string]string        `json:"base_urls,omitempty"`         // per-provider overrides
}

func DefaultConfig() Config {
	return Config{
		PollIntervalMinutes:  defaultPollIntervalMinutes,
		HistoryRetentionDays: defaultHistoryRetentionDays,
		FetchTimeoutSeconds:  defaultFetchTimeoutSeconds,
	}
}

// PollInterval converts the configured minutes exactly.
func (c Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMinutes) * time.Minute
}

func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutSeconds) * time.Second
}

func ConfigDir() string {
	if runtime.GOOS == "windows" {
		return filepath.Join(os.Getenv("APPDATA"), "tokendash")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "tokendash")
}

func ConfigPath() string {
	return filepath.Join(ConfigDir(), "settings.json")
}

func Load() (Config, error) {
	return LoadFrom(ConfigPath())
}

func LoadFrom(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := json.Unmarshal(data, &cfg); err != nil {
		return DefaultConfig(), fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.PollIntervalMinutes <= 0 {
		cfg.PollIntervalMinutes = defaultPollIntervalMinutes
	}
	if cfg.HistoryRetentionDays <= 0 {
		cfg.HistoryRetentionDays = defaultHistoryRetentionDays
	}
	if cfg.FetchTimeoutSeconds <= 0 {
		cfg.FetchTimeoutSeconds = defaultFetchTimeoutSeconds
	}

	return cfg, nil
}

func Save(cfg Config) error {
	return SaveTo(ConfigPath(), cfg)
}

func SaveTo(path string, cfg Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// ProviderEnabled reports whether the allow-list admits the provider.
// An empty allow-list admits every registered provider.
func (c Config) ProviderEnabled(id string) bool {
	if len(c.EnabledProviders) == 0 {
		return true
	}
	for _, p := range c.EnabledProviders {
		if p == id {
			return true
		}
	}
	return false
}
