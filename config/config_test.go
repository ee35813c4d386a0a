package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	for _, k := range []string{EnvConfigPath, EnvDatabasePath, EnvLogLevel, EnvLogFormat} {
		t.Setenv(k, "")
	}
}

func writeConfig(t *testing.T, body string) string {
	path := filepath.Join(t.TempDir(), "ledger.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_File(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
database: /var/lib/ledger/ledger.db
log:
  level: debug
  format: json
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/ledger/ledger.db", cfg.Database)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "database: from-file.db\n")
	t.Setenv(EnvConfigPath, path)
	t.Setenv(EnvDatabasePath, MemoryDatabase)
	t.Setenv(EnvLogLevel, "warn")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, MemoryDatabase, cfg.Database)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
}

func TestLoad_MissingFile(t *testing.T) {
	clearEnv(t)
	missing := filepath.Join(t.TempDir(), "absent.yaml")

	_, err := Load(missing)
	assert.Error(t, err)

	t.Setenv(EnvConfigPath, missing)
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().Database, cfg.Database)
}

func TestLoad_Invalid(t *testing.T) {
	clearEnv(t)

	_, err := Load(writeConfig(t, "log:\n  level: loud\n"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "log:\n  format: xml\n"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "database: [unclosed\n"))
	assert.Error(t, err)
}

func TestConfigureLogging(t *testing.T) {
	prevLevel, prevFormatter := logrus.GetLevel(), logrus.StandardLogger().Formatter
	t.Cleanup(func() {
		logrus.SetLevel(prevLevel)
		logrus.SetFormatter(prevFormatter)
	})

	cfg := Default()
	cfg.Log = LogConfig{Level: "debug", Format: "json"}
	require.NoError(t, cfg.ConfigureLogging())

	assert.Equal(t, logrus.DebugLevel, logrus.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, logrus.StandardLogger().Formatter)
}
