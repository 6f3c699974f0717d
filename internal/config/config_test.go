package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := defaults()
	assert.Equal(t, "Saltmere", cfg.Server.Name)
	assert.Equal(t, 3, cfg.World.Accel)
	assert.Equal(t, 3600*time.Second, cfg.World.RoomResetSeconds)
	assert.Equal(t, time.Second, cfg.Combat.BaseActionTime)
	assert.Equal(t, 0.35, cfg.Encounter.Chance)
	assert.Equal(t, 120*time.Second, cfg.Encounter.Cooldown)
	assert.Equal(t, 50, cfg.Network.MaxSessions)
	assert.Equal(t, 10, cfg.Network.CommandsPerSecond)
	assert.Equal(t, "console", cfg.Logging.Format)
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[server]
name = "Testmere"
admins = ["Ada"]

[world]
accel = 6

[network]
max_sessions = 5
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "Testmere", cfg.Server.Name)
	assert.Equal(t, []string{"Ada"}, cfg.Server.Admins)
	assert.Equal(t, 6, cfg.World.Accel)
	assert.Equal(t, 5, cfg.Network.MaxSessions)

	// Untouched sections keep their defaults.
	assert.Equal(t, 0.35, cfg.Encounter.Chance)
	assert.Equal(t, 10, cfg.Network.CommandsPerSecond)
	assert.NotZero(t, cfg.Server.StartTime)
}

func TestLoadOrDefaultMissingFile(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.World.Accel)
	assert.NotZero(t, cfg.Server.StartTime)
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.toml")
	require.NoError(t, os.WriteFile(path, []byte("[server\nname ="), 0o644))
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("WORLD_ACCEL", "12")
	t.Setenv("COMMAND_RATE", "4")
	t.Setenv("IDLE_TIMEOUT", "60")
	t.Setenv("BAT_SECONDS", "1.5")
	t.Setenv("ENCOUNTER_CHANCE", "0")
	t.Setenv("BIND_ADDRESS", "127.0.0.1:5000")

	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, 12, cfg.World.Accel)
	assert.Equal(t, 4, cfg.Network.CommandsPerSecond)
	assert.Equal(t, 60*time.Second, cfg.Network.IdleTimeout)
	assert.Equal(t, 1500*time.Millisecond, cfg.Combat.BaseActionTime)
	assert.Equal(t, 0.0, cfg.Encounter.Chance)
	assert.Equal(t, "127.0.0.1:5000", cfg.Network.BindAddress)
}

func TestEnvIgnoresGarbage(t *testing.T) {
	t.Setenv("WORLD_ACCEL", "fast")
	t.Setenv("MAX_SESSIONS", "-3")

	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.World.Accel)
	assert.Equal(t, 50, cfg.Network.MaxSessions)
}
