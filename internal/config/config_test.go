package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "https://www.sec.gov", cfg.Edgar.BaseURL)
	assert.Equal(t, "100ms", cfg.Edgar.RequestInterval)
	assert.Equal(t, []string{"1s", "2s", "4s", "8s", "16s"}, cfg.Edgar.Backoff)
	assert.Equal(t, "Local", cfg.Edgar.ClientType)
	assert.True(t, cfg.Edgar.Deflate)
	assert.Equal(t, "edgar-ingestion", cfg.Edgar.TemporalTaskQueue)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  driver: sqlite
log:
  level: debug
  format: console
edgar:
  client_type: S3
  s3:
    bucket: edgar-archive
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, "S3", cfg.Edgar.ClientType)
	assert.Equal(t, "edgar-archive", cfg.Edgar.S3.Bucket)
	// Defaults still apply for unset values
	assert.Equal(t, "https://www.sec.gov", cfg.Edgar.BaseURL)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("EDGARCTL_STORE_DRIVER", "postgres")
	t.Setenv("EDGARCTL_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	t.Setenv("EDGARCTL_EDGAR_CLIENT_TYPE", "ADL")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "ADL", cfg.Edgar.ClientType)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

func TestValidateEdgar_AllPresent(t *testing.T) {
	cfg := &Config{}
	cfg.Edgar.DatabaseURL = "postgres://localhost/edgar"
	cfg.Edgar.ClientType = "Local"

	assert.NoError(t, cfg.Validate("edgar"))
}

func TestValidateEdgar_FallsBackToStoreURL(t *testing.T) {
	cfg := &Config{}
	cfg.Store.DatabaseURL = "postgres://localhost/main"
	cfg.Edgar.ClientType = "Local"

	assert.NoError(t, cfg.Validate("edgar"))
}

func TestValidateEdgar_NoDatabase(t *testing.T) {
	cfg := &Config{}
	cfg.Edgar.ClientType = "Local"

	err := cfg.Validate("edgar")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "database_url")
}

func TestValidateEdgar_InvalidClientType(t *testing.T) {
	cfg := &Config{}
	cfg.Edgar.DatabaseURL = "postgres://localhost/edgar"
	cfg.Edgar.ClientType = "FTP"

	err := cfg.Validate("edgar")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "client_type must be one of")
}

func TestValidateUnknownMode(t *testing.T) {
	cfg := &Config{}
	err := cfg.Validate("unknown")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}
