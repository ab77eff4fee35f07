package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ddns "github.com/Travis-Britz/imds-duckdns"
)

func mapSource(m map[string]string) source {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := load(mapSource(map[string]string{
		"DOMAIN": "myhost",
		"TOKEN":  "secret",
	}), mapSource(nil))
	require.NoError(t, err)

	assert.Equal(t, "myhost", cfg.Domain)
	assert.Equal(t, "secret", cfg.Token)
	assert.Equal(t, 300*time.Second, cfg.CheckInterval)
	assert.Equal(t, DefaultLogPath, cfg.LogPath)
	assert.True(t, cfg.EnableIPv6)
	assert.Equal(t, ddns.DefaultMetadataURL, cfg.MetadataURL)
	assert.Equal(t, ddns.DefaultUpdateURL, cfg.UpdateURL)
	assert.Equal(t, 3, cfg.UpdateAttempts)
	assert.Equal(t, 10*time.Second, cfg.UpdateRetryDelay)
	assert.Equal(t, 12, cfg.HeartbeatEvery)
	assert.Empty(t, cfg.MetricsAddr)

	assert.Equal(t, ddns.DefaultInterval, cfg.CheckInterval)
	assert.Equal(t, ddns.DefaultUpdateAttempts, cfg.UpdateAttempts)
	assert.Equal(t, ddns.DefaultUpdateRetryDelay, cfg.UpdateRetryDelay)
	assert.Equal(t, ddns.DefaultHeartbeatEvery, cfg.HeartbeatEvery)
}

func TestLoadMissingRequired(t *testing.T) {
	for _, tt := range []struct {
		name    string
		values  map[string]string
		wantErr string
	}{
		{
			name:    "nothing set",
			values:  map[string]string{},
			wantErr: "missing required configuration: DOMAIN, TOKEN",
		},
		{
			name:    "token missing",
			values:  map[string]string{"DOMAIN": "myhost"},
			wantErr: "missing required configuration: TOKEN",
		},
		{
			name:    "domain blank",
			values:  map[string]string{"DOMAIN": "", "TOKEN": "secret"},
			wantErr: "missing required configuration: DOMAIN",
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			_, err := load(mapSource(tt.values), mapSource(nil))
			require.ErrorIs(t, err, ErrMissingRequired)
			assert.EqualError(t, err, tt.wantErr)
		})
	}
}

func TestLoadInvalidValues(t *testing.T) {
	for _, tt := range []struct {
		name  string
		key   string
		value string
	}{
		{name: "zero interval", key: "CHECK_INTERVAL", value: "0"},
		{name: "non-numeric interval", key: "CHECK_INTERVAL", value: "5m"},
		{name: "zero attempts", key: "UPDATE_ATTEMPTS", value: "0"},
		{name: "negative retry delay", key: "UPDATE_RETRY_DELAY", value: "-1"},
		{name: "zero heartbeat", key: "HEARTBEAT_EVERY", value: "0"},
		{name: "bad bool", key: "ENABLE_IPV6", value: "maybe"},
	} {
		t.Run(tt.name, func(t *testing.T) {
			_, err := load(mapSource(map[string]string{
				"DOMAIN": "myhost",
				"TOKEN":  "secret",
				tt.key:   tt.value,
			}), mapSource(nil))
			require.ErrorIs(t, err, ErrInvalidValue)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	cfg, err := load(mapSource(map[string]string{
		"DOMAIN":         "fromfile",
		"TOKEN":          "filetoken",
		"CHECK_INTERVAL": "60",
		"ENABLE_IPV6":    "true",
	}), mapSource(map[string]string{
		"DDNS_DOMAIN":      "fromenv",
		"DDNS_ENABLE_IPV6": "no",
		"DDNS_TOKEN":       "",
	}))
	require.NoError(t, err)

	assert.Equal(t, "fromenv", cfg.Domain)
	assert.Equal(t, "filetoken", cfg.Token, "empty env values do not override")
	assert.Equal(t, time.Minute, cfg.CheckInterval)
	assert.False(t, cfg.EnableIPv6)
}

func TestLoadShellFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "imds-duckdns.conf")
	err := os.WriteFile(path, []byte(`# managed by installer
DOMAIN="myhost"
TOKEN='abc-123'
CHECK_INTERVAL=120
ENABLE_IPV6=false
LOG_PATH=/tmp/ddns.log
`), 0600)
	require.NoError(t, err)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "myhost", cfg.Domain)
	assert.Equal(t, "abc-123", cfg.Token)
	assert.Equal(t, 2*time.Minute, cfg.CheckInterval)
	assert.False(t, cfg.EnableIPv6)
	assert.Equal(t, "/tmp/ddns.log", cfg.LogPath)
}

func TestLoadINIFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "imds-duckdns.ini")
	err := os.WriteFile(path, []byte(`token = top-level

[ddns]
domain = myhost
check_interval = 30
heartbeat_every = 6
`), 0600)
	require.NoError(t, err)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "myhost", cfg.Domain)
	assert.Equal(t, "top-level", cfg.Token)
	assert.Equal(t, 30*time.Second, cfg.CheckInterval)
	assert.Equal(t, 6, cfg.HeartbeatEvery)
}

func TestLoadINIFileUpperCaseKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "imds-duckdns.ini")
	err := os.WriteFile(path, []byte(`[ddns]
DOMAIN = myhost
TOKEN = secret
CHECK_INTERVAL = 30
Enable_IPv6 = false
`), 0600)
	require.NoError(t, err)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "myhost", cfg.Domain)
	assert.Equal(t, "secret", cfg.Token)
	assert.Equal(t, 30*time.Second, cfg.CheckInterval)
	assert.False(t, cfg.EnableIPv6)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.conf"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrMissingRequired)
}

func TestStringRedactsToken(t *testing.T) {
	cfg := &Config{Domain: "myhost", Token: "supersecret"}
	assert.NotContains(t, cfg.String(), "supersecret")
	assert.Contains(t, cfg.String(), "<redacted>")
}
