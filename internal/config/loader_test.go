package config

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, ""))
	require.NoError(t, err)

	assert.Equal(t, DefaultAuthLogPath, cfg.Input.AuthLogPath)
	assert.Equal(t, DefaultPollInterval, cfg.Input.PollInterval)
	assert.Equal(t, "text", cfg.Output.Format)
	assert.Equal(t, "auto", cfg.Output.Color)
	assert.Equal(t, DefaultUserWidth, cfg.Output.UserWidth)
	assert.Equal(t, DefaultThreshold, cfg.Detection.BruteForceThreshold)
	assert.Equal(t, DefaultWindow, cfg.Detection.BruteForceWindow)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.History.Enabled)
	assert.False(t, cfg.Detection.BruteForce)
}

func TestLoadConfig_Values(t *testing.T) {
	path := writeConfig(t, `
input:
  auth_log_path: /tmp/auth.log
  poll_interval: 1s
output:
  format: json
  color: never
detection:
  filter: 'Status == "FAILED"'
  brute_force: true
  brute_force_threshold: 3
  brute_force_window: 10m
history:
  enabled: true
  db_path: /tmp/events.db
logging:
  level: debug
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/auth.log", cfg.Input.AuthLogPath)
	assert.Equal(t, time.Second, cfg.Input.PollInterval)
	assert.Equal(t, "json", cfg.Output.Format)
	assert.Equal(t, "never", cfg.Output.Color)
	assert.Equal(t, `Status == "FAILED"`, cfg.Detection.Filter)
	assert.Equal(t, 3, cfg.Detection.BruteForceThreshold)
	assert.Equal(t, 10*time.Minute, cfg.Detection.BruteForceWindow)
	assert.True(t, cfg.Detection.BruteForce)
	assert.True(t, cfg.History.Enabled)
	assert.Equal(t, "/tmp/events.db", cfg.History.DBPath)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := map[string]string{
		"format":    "output:\n  format: xml\n",
		"color":     "output:\n  color: rainbow\n",
		"threshold": "detection:\n  brute_force_threshold: -1\n",
		"level":     "logging:\n  level: trace\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, body))
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestLoadConfig_UnknownField(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, "input:\n  auth_log: /x\n"))
	assert.Error(t, err)
}

func TestLoadOrDefault(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.yml")

	cfg, err := LoadOrDefault(missing, false)
	require.NoError(t, err)
	assert.Equal(t, DefaultAuthLogPath, cfg.Input.AuthLogPath)

	_, err = LoadOrDefault(missing, true)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestWatcher_Run(t *testing.T) {
	path := writeConfig(t, "output:\n  format: text\n")

	var calls atomic.Int32
	w := NewWatcher(path, 50*time.Millisecond, zap.NewNop().Sugar(), func() { calls.Add(1) })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Give the watcher time to register the directory.
	time.Sleep(200 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("output:\n  format: json\n"), 0644))

	assert.Eventually(t, func() bool { return calls.Load() >= 1 }, 5*time.Second, 20*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}
