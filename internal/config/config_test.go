package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFileDefaultsWithoutFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("VMON_BASE_URL", "")
	t.Setenv("VMON_TOKEN", "")

	cfg, err := LoadFile(filepath.Join(home, "missing.toml"), home)
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, cfg.PollInterval.Duration)
	assert.Equal(t, 3*time.Second, cfg.TailDelay.Duration)
	assert.Equal(t, 100, cfg.TailIdleCeiling)
	assert.Equal(t, filepath.Join(home, ".config", "vmon", "replays.db"), cfg.ArchiveDB)
}

func TestLoadFileOverlaysTOMLAndEnv(t *testing.T) {
	home := t.TempDir()
	path := filepath.Join(home, "config.toml")
	content := `
base_url = "https://shop.example/api/analytics"
poll_interval = "2s"
tail_idle_ceiling = 10
archive_db = "~/replays.db"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	t.Setenv("VMON_BASE_URL", "")
	t.Setenv("VMON_TOKEN", "secret")

	cfg, err := LoadFile(path, home)
	require.NoError(t, err)

	assert.Equal(t, "https://shop.example/api/analytics", cfg.BaseURL)
	assert.Equal(t, 2*time.Second, cfg.PollInterval.Duration)
	assert.Equal(t, 10, cfg.TailIdleCeiling)
	assert.Equal(t, filepath.Join(home, "replays.db"), cfg.ArchiveDB)
	assert.Equal(t, "secret", cfg.Token)
}

func TestLoadFileRejectsInvalidValues(t *testing.T) {
	home := t.TempDir()
	path := filepath.Join(home, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`poll_interval = "0s"`+"\n"+`tail_idle_ceiling = 0`), 0o644))
	t.Setenv("VMON_BASE_URL", "")

	_, err := LoadFile(path, home)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "poll_interval")
	assert.Contains(t, err.Error(), "tail_idle_ceiling")
}

func TestLoadFileRejectsBadDuration(t *testing.T) {
	home := t.TempDir()
	path := filepath.Join(home, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`tail_delay = "soon"`), 0o644))

	_, err := LoadFile(path, home)
	require.Error(t, err)
}
