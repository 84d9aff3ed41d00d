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
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_FileValuesAndDefaults(t *testing.T) {
	path := writeConfig(t, `
upstream:
  base_url: http://api.local
orders:
  gst_rate: 0.12
  allow_status_override: true
mysql:
  host: db
  port: 3307
  username: admin
  password: secret
  database: desk
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "http://api.local", cfg.Upstream.BaseURL)
	assert.Equal(t, 0.12, cfg.Orders.GSTRate)
	assert.True(t, cfg.Orders.AllowStatusOverride)
	assert.Equal(t, 8080, cfg.Gateway.Port)
	assert.Equal(t, 5*time.Second, cfg.Catalog.EnrichTimeout)
	assert.Equal(t, 8, cfg.Catalog.MaxConcurrency)
	assert.Equal(t, 2*time.Minute, cfg.Orders.ViewCacheTTL)
	assert.Equal(t, []string{"stdout"}, cfg.Log.OutputPaths)
	assert.Equal(t, "admin:secret@tcp(db:3307)/desk?charset=utf8mb4&parseTime=True&loc=Local", cfg.MySQL.DSN())
}

func TestLoad_EnvOverride(t *testing.T) {
	path := writeConfig(t, "upstream:\n  base_url: http://api.local\n")
	t.Setenv("BOOKADMIN_UPSTREAM_BASE_URL", "http://override.local")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://override.local", cfg.Upstream.BaseURL)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoad_RejectsNegativeGST(t *testing.T) {
	path := writeConfig(t, "orders:\n  gst_rate: -0.1\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gst_rate")
}
