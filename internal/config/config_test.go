package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadAppliesValuesAndDefaults(t *testing.T) {
	path := writeConfig(t, `
listen_addr: ":9090"
refresh_seconds: -5
loki:
  url: https://logs.example.com
  tenant_id: "12"
  page_limit: 500
explorer:
  page_size: 30
markers:
  begin: Beginning check
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.ListenAddr)
	assert.Equal(t, 30*time.Second, cfg.RefreshInterval())
	assert.Equal(t, "https://logs.example.com", cfg.Loki.URL)
	assert.Equal(t, "12", cfg.Loki.TenantID)
	assert.Equal(t, 500, cfg.Loki.PageLimit)
	assert.Equal(t, 15*time.Second, cfg.Loki.Timeout())
	assert.Equal(t, 30, cfg.Explorer.PageSize)
	assert.Equal(t, 4, cfg.Explorer.FetchConcurrency)
	assert.Equal(t, "Beginning check", cfg.Markers.Begin)
	assert.Equal(t, "result-success", cfg.Markers.Success)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	testCases := map[string]string{
		"bad yaml":   "loki: [",
		"empty url":  "loki:\n  url: \"\"\n",
		"bad url":    "loki:\n  url: nope\n",
		"bad format": "log:\n  format: xml\n",
	}
	for name, content := range testCases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, content))
			assert.Error(t, err)
		})
	}
}
