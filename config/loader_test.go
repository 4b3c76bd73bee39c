package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestLoad_BackfillsDefaults(t *testing.T) {
	p := writeConfig(t, `
server:
  port: 9100
simulation:
  maxFPS: 30
  pacing: token_bucket
websocket:
  pingInterval: 5s
  allowedOrigins: ["http://localhost:3000"]
`)
	cfg, err := Load(p)
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.WriteTimeout)
	assert.Equal(t, 30, cfg.Simulation.MaxFPS)
	assert.Equal(t, 25, cfg.Simulation.DefaultFPS)
	assert.Equal(t, int64(40), cfg.Simulation.BaseIntervalMS)
	assert.Equal(t, "token_bucket", cfg.Simulation.Pacing)
	assert.Equal(t, 5*time.Second, cfg.WebSocket.PingInterval)
	assert.Equal(t, 100, cfg.WebSocket.MaxConnections)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.WebSocket.AllowedOrigins)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.True(t, cfg.Metrics.On())
	assert.Equal(t, ":9100", cfg.Addr())
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "bad yaml", body: "server: [port"},
		{name: "port out of range", body: "server:\n  port: 70000\n"},
		{name: "unknown pacing", body: "simulation:\n  pacing: turbo\n"},
		{name: "fps above limit", body: "simulation:\n  maxFPS: 120\n"},
		{name: "log level", body: "logging:\n  level: loud\n"},
		{name: "metrics path", body: "metrics:\n  path: metrics\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestLoad_ExplicitPathMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
	assert.Error(t, err)
}

func TestLoad_NoFileUsesDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestMetricsDisabled(t *testing.T) {
	cfg, err := Load(writeConfig(t, "metrics:\n  enabled: false\n"))
	require.NoError(t, err)
	assert.False(t, cfg.Metrics.On())
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
}
