package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "relay.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_FileAndDefaults(t *testing.T) {
	path := writeConfig(t, `
listen_port: 9000
api_base_url: https://example.com/api.php
api_username: relay
api_password: hunter2
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 9000, cfg.ListenPort)
	require.Equal(t, "https://example.com/api.php", cfg.APIBaseURL)
	require.Equal(t, 10, cfg.TickSeconds) // default survives
	require.Equal(t, "info", cfg.LogLevel)
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, `
listen_port: 9000
api_base_url: https://example.com/api.php
`)
	t.Setenv("RELAY_PORT", "9100")
	t.Setenv("RELAY_LOG_LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 9100, cfg.ListenPort)
	require.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_PortRange(t *testing.T) {
	tests := []struct {
		name string
		port string
		ok   bool
	}{
		{name: "below_range", port: "1023", ok: false},
		{name: "lower_bound", port: "1024", ok: true},
		{name: "upper_bound", port: "49151", ok: true},
		{name: "above_range", port: "49152", ok: false},
	}

	path := writeConfig(t, `api_base_url: https://example.com/api.php`)
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("RELAY_PORT", tc.port)
			_, err := Load(path)
			if tc.ok {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
			}
		})
	}
}

func TestLoad_MissingUpstreamURL(t *testing.T) {
	_, err := Load("")
	require.Error(t, err)
	require.Contains(t, err.Error(), "api_base_url")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}
