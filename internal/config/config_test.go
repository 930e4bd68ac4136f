package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, defaultListen, cfg.Listen)
	assert.Equal(t, 30, cfg.Notifications.HorizonDays)
	assert.Equal(t, OpenEndedFirstOnly, cfg.Notifications.OpenEnded)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestLoadNormalizesPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := []byte(`
listen: ":9000"
notifications:
  reschedule: "not a cron spec"
  open_ended: "whatever"
telegram:
  token: "abc"
`)
	require.NoError(t, os.WriteFile(path, body, 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Listen)
	assert.Equal(t, defaultReschedule, cfg.Notifications.Reschedule)
	assert.Equal(t, OpenEndedFirstOnly, cfg.Notifications.OpenEnded)
	assert.Equal(t, defaultHorizonDays, cfg.Notifications.HorizonDays)
	assert.Nil(t, cfg.Telegram, "telegram without chat id is disabled")
	assert.Equal(t, 30*24*time.Hour, cfg.Horizon())
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := DefaultConfig()
	cfg.Notifications.OpenEnded = OpenEndedExpand
	cfg.Notifications.HorizonDays = 14
	require.NoError(t, cfg.Save(path))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, OpenEndedExpand, got.Notifications.OpenEnded)
	assert.Equal(t, 14, got.Notifications.HorizonDays)
}

func TestLocation(t *testing.T) {
	cfg := DefaultConfig()
	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, time.Local, loc)

	cfg.Timezone = "Not/AZone"
	loc, err = cfg.Location()
	assert.Error(t, err)
	assert.Equal(t, time.Local, loc)
}
