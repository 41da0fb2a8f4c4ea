package config

import (
	"os"
	"strings"
	"testing"
	"time"
	"zback/internal/logger"
	"zback/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	logger.Log = zap.NewNop()
	os.Exit(m.Run())
}

func TestLoadReader_Defaults(t *testing.T) {
	cfg, err := LoadReader(`daemon_port: 9001`)

	require.NoError(t, err)
	assert.Equal(t, 600*time.Second, cfg.Policy.BackupInterval)
	assert.Equal(t, "1111111", cfg.Policy.Days)
	assert.Equal(t, strings.Repeat("1", 24), cfg.Policy.Hours)
	assert.False(t, cfg.Policy.RemoteSync)
	assert.Equal(t, 86400*time.Second, cfg.Policy.RemoteSyncInterval)
	assert.Equal(t, map[model.Tier]int{
		model.TierFrequent: 4,
		model.TierHourly:   12,
		model.TierDaily:    7,
		model.TierWeekly:   4,
		model.TierMonthly:  6,
		model.TierYearly:   3,
	}, cfg.Policy.Retention)
	assert.Equal(t, "http://localhost:8545", cfg.API.URL)
	assert.Equal(t, 30*time.Second, cfg.API.Timeout)
	assert.Equal(t, 9001, cfg.DaemonPort)
	assert.Empty(t, cfg.Datasets)
}

func TestLoadReader_FullConfig(t *testing.T) {
	yaml := `
server:
  backup_interval: 300
  schedule:
    days: "1111100"
    hours: "000000001111111111000000"
  retention:
    frequent: 8
    hourly: 24
  remote_sync:
    enabled: true
    interval: 3600
    days: "0000011"

zfs_api:
  url: "http://zfs-api:8545"
  timeout: 10

daemon_port: 9005
db_path: /var/lib/zback/events.db

notify:
  webhook_url: "http://alerts:9090/hook"

datasets:
  - local_dataset: tank/data
    destinations:
      - remote_host: backup1
        remote_dataset: backups/data
      - remote_host: backup2
        enabled: false
  - local_dataset: tank/scratch
    active: false
`

	cfg, err := LoadReader(yaml)
	require.NoError(t, err)

	assert.Equal(t, 300*time.Second, cfg.Policy.BackupInterval)
	assert.Equal(t, "1111100", cfg.Policy.Days)
	assert.Equal(t, 8, cfg.Policy.Retention[model.TierFrequent])
	assert.Equal(t, 24, cfg.Policy.Retention[model.TierHourly])
	// Unlisted tiers keep their defaults.
	assert.Equal(t, 7, cfg.Policy.Retention[model.TierDaily])

	assert.True(t, cfg.Policy.RemoteSync)
	assert.Equal(t, 3600*time.Second, cfg.Policy.RemoteSyncInterval)
	assert.Equal(t, "0000011", cfg.Policy.RemoteSyncDays)

	assert.Equal(t, "http://zfs-api:8545", cfg.API.URL)
	assert.Equal(t, 10*time.Second, cfg.API.Timeout)
	assert.Equal(t, 9005, cfg.DaemonPort)
	assert.Equal(t, "/var/lib/zback/events.db", cfg.DBPath)
	assert.Equal(t, "http://alerts:9090/hook", cfg.WebhookURL)

	require.Len(t, cfg.Datasets, 2)

	data := cfg.Datasets[0]
	assert.Equal(t, "tank/data", data.Name)
	assert.True(t, data.Active)
	require.Len(t, data.Destinations, 2)
	assert.Equal(t, "backup1", data.Destinations[0].RemoteHost)
	assert.Equal(t, "backups/data", data.Destinations[0].RemoteDataset)
	assert.True(t, data.Destinations[0].Enabled)
	assert.False(t, data.Destinations[1].Enabled)
	assert.Equal(t, "tank/data", data.Destinations[1].TargetDataset(data.Name))
	assert.True(t, data.HasRemoteDestinations())

	scratch := cfg.Datasets[1]
	assert.False(t, scratch.Active)
	assert.False(t, scratch.HasRemoteDestinations())
}

func TestLoadReader_InvalidMask(t *testing.T) {
	cases := map[string]string{
		"wrong length": `
server:
  schedule:
    days: "11111"
`,
		"bad character": `
server:
  schedule:
    hours: "11111111111111111111112x"
`,
		"sync mask": `
server:
  remote_sync:
    days: "abcdefg"
`,
	}

	for name, yaml := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadReader(yaml)
			assert.Error(t, err)
		})
	}
}

func TestLoadReader_Invalid(t *testing.T) {
	_, err := LoadReader("server: [not: a, mapping")
	assert.Error(t, err)

	_, err = LoadReader(`
datasets:
  - destinations:
      - remote_host: backup1
`)
	assert.Error(t, err, "dataset without local_dataset must be rejected")

	_, err = LoadReader(`
server:
  backup_interval: -5
`)
	assert.Error(t, err)
}

func TestLoad_MissingOrEmptyFile(t *testing.T) {
	_, err := Load("/nonexistent/zback.yaml")
	assert.Error(t, err)

	path := writeConfig(t, "   \n")
	_, err = Load(path)
	assert.Error(t, err)
}
