package config

import (
	"fmt"
	"os"
	"strings"
	"time"
	"zback/internal/model"

	"github.com/spf13/viper"
)

// ServerPolicy holds the process-wide backup policy. Bitmask strings are one
// character per weekday (Monday first) or per hour of day, '1' meaning the
// action is permitted.
type ServerPolicy struct {
	BackupInterval time.Duration
	Days           string
	Hours          string

	Retention map[model.Tier]int

	RemoteSync         bool
	RemoteSyncInterval time.Duration
	RemoteSyncDays     string
	RemoteSyncHours    string
}

// APIConfig holds the storage-control API endpoint settings.
type APIConfig struct {
	URL     string
	Timeout time.Duration
}

// Config is one immutable snapshot of the full configuration. A reload builds
// a new Config; the active one is never mutated in place.
type Config struct {
	Policy     ServerPolicy
	API        APIConfig
	DaemonPort int
	DBPath     string
	WebhookURL string
	Datasets   []*model.Dataset
}

var Default = Config{
	Policy: ServerPolicy{
		BackupInterval: 600 * time.Second,
		Days:           strings.Repeat("1", 7),
		Hours:          strings.Repeat("1", 24),
		Retention: map[model.Tier]int{
			model.TierFrequent: 4,
			model.TierHourly:   12,
			model.TierDaily:    7,
			model.TierWeekly:   4,
			model.TierMonthly:  6,
			model.TierYearly:   3,
		},
		RemoteSync:         false,
		RemoteSyncInterval: 86400 * time.Second,
		RemoteSyncDays:     strings.Repeat("1", 7),
		RemoteSyncHours:    strings.Repeat("1", 24),
	},
	API: APIConfig{
		URL:     "http://localhost:8545",
		Timeout: 30 * time.Second,
	},
	DaemonPort: 9001,
	DBPath:     "zback.db",
}

type destinationSpec struct {
	RemoteHost    string `mapstructure:"remote_host"`
	RemoteDataset string `mapstructure:"remote_dataset"`
	Enabled       *bool  `mapstructure:"enabled"`
}

type datasetSpec struct {
	LocalDataset string            `mapstructure:"local_dataset"`
	Active       *bool             `mapstructure:"active"`
	Destinations []destinationSpec `mapstructure:"destinations"`
}

// Load reads and validates the config file at path. Any error leaves the
// caller's active configuration untouched; Load never mutates shared state.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return nil, fmt.Errorf("config file %s is empty", path)
	}

	return LoadReader(string(data))
}

// LoadReader parses configuration from a string.
func LoadReader(content string) (*Config, error) {
	v := newViper()

	if err := v.ReadConfig(strings.NewReader(content)); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	return parse(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")

	v.SetDefault("server.backup_interval", int(Default.Policy.BackupInterval.Seconds()))
	v.SetDefault("server.schedule.days", Default.Policy.Days)
	v.SetDefault("server.schedule.hours", Default.Policy.Hours)
	for tier, keep := range Default.Policy.Retention {
		v.SetDefault("server.retention."+string(tier), keep)
	}
	v.SetDefault("server.remote_sync.enabled", Default.Policy.RemoteSync)
	v.SetDefault("server.remote_sync.interval", int(Default.Policy.RemoteSyncInterval.Seconds()))
	v.SetDefault("server.remote_sync.days", Default.Policy.RemoteSyncDays)
	v.SetDefault("server.remote_sync.hours", Default.Policy.RemoteSyncHours)
	v.SetDefault("zfs_api.url", Default.API.URL)
	v.SetDefault("zfs_api.timeout", int(Default.API.Timeout.Seconds()))
	v.SetDefault("daemon_port", Default.DaemonPort)
	v.SetDefault("db_path", Default.DBPath)

	v.SetEnvPrefix("ZBACK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

func parse(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Policy: ServerPolicy{
			BackupInterval: time.Duration(v.GetInt("server.backup_interval")) * time.Second,
			Days:           v.GetString("server.schedule.days"),
			Hours:          v.GetString("server.schedule.hours"),
			Retention:      make(map[model.Tier]int, len(model.Tiers)),

			RemoteSync:         v.GetBool("server.remote_sync.enabled"),
			RemoteSyncInterval: time.Duration(v.GetInt("server.remote_sync.interval")) * time.Second,
			RemoteSyncDays:     v.GetString("server.remote_sync.days"),
			RemoteSyncHours:    v.GetString("server.remote_sync.hours"),
		},
		API: APIConfig{
			URL:     v.GetString("zfs_api.url"),
			Timeout: time.Duration(v.GetInt("zfs_api.timeout")) * time.Second,
		},
		DaemonPort: v.GetInt("daemon_port"),
		DBPath:     v.GetString("db_path"),
		WebhookURL: v.GetString("notify.webhook_url"),
	}

	for _, tier := range model.Tiers {
		cfg.Policy.Retention[tier] = v.GetInt("server.retention." + string(tier))
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	var specs []datasetSpec
	if err := v.UnmarshalKey("datasets", &specs); err != nil {
		return nil, fmt.Errorf("failed to parse datasets: %w", err)
	}

	for _, spec := range specs {
		if spec.LocalDataset == "" {
			return nil, fmt.Errorf("dataset entry without local_dataset")
		}

		ds := &model.Dataset{
			Name:   spec.LocalDataset,
			Active: spec.Active == nil || *spec.Active,
		}
		for _, d := range spec.Destinations {
			ds.Destinations = append(ds.Destinations, &model.Destination{
				RemoteHost:    d.RemoteHost,
				RemoteDataset: d.RemoteDataset,
				Enabled:       d.Enabled == nil || *d.Enabled,
			})
		}

		cfg.Datasets = append(cfg.Datasets, ds)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	masks := []struct {
		name  string
		value string
		size  int
	}{
		{"server.schedule.days", c.Policy.Days, 7},
		{"server.schedule.hours", c.Policy.Hours, 24},
		{"server.remote_sync.days", c.Policy.RemoteSyncDays, 7},
		{"server.remote_sync.hours", c.Policy.RemoteSyncHours, 24},
	}

	for _, m := range masks {
		if err := validateMask(m.value, m.size); err != nil {
			return fmt.Errorf("%s: %w", m.name, err)
		}
	}

	if c.Policy.BackupInterval <= 0 {
		return fmt.Errorf("server.backup_interval must be positive")
	}
	if c.Policy.RemoteSyncInterval <= 0 {
		return fmt.Errorf("server.remote_sync.interval must be positive")
	}
	for tier, keep := range c.Policy.Retention {
		if keep < 0 {
			return fmt.Errorf("server.retention.%s must not be negative", tier)
		}
	}
	if c.API.URL == "" {
		return fmt.Errorf("zfs_api.url is required")
	}

	return nil
}

func validateMask(mask string, size int) error {
	if len(mask) != size {
		return fmt.Errorf("schedule mask must be %d characters, got %d", size, len(mask))
	}
	for _, ch := range mask {
		if ch != '0' && ch != '1' {
			return fmt.Errorf("schedule mask must contain only '0' and '1'")
		}
	}
	return nil
}
