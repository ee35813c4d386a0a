package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

const (
	EnvConfigPath   = "LEDGER_CONFIG"
	EnvDatabasePath = "LEDGER_DB"
	EnvLogLevel     = "LEDGER_LOG_LEVEL"
	EnvLogFormat    = "LEDGER_LOG_FORMAT"

	// MemoryDatabase selects the in-process store.
	MemoryDatabase = ":memory:"
)

type Config struct {
	// Database is the SQLite file path, or MemoryDatabase.
	Database string    `yaml:"database"`
	Log      LogConfig `yaml:"log"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text | json
}

func Default() Config {
	return Config{
		Database: "ledger.db",
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads the YAML file at path (or $LEDGER_CONFIG when path is empty) on
// top of the defaults, then applies environment overrides. A missing file is
// only an error when it was asked for explicitly.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = os.Getenv(EnvConfigPath)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist) && !explicit:
			logrus.Warnf("config %s not found, using defaults", path)
		default:
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	if v := strings.TrimSpace(os.Getenv(EnvDatabasePath)); v != "" {
		cfg.Database = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.Log.Level = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFormat)); v != "" {
		cfg.Log.Format = v
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Database) == "" {
		return errors.New("config: database is empty")
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("config: invalid log format %q", c.Log.Format)
	}
	return nil
}

// ConfigureLogging applies the log settings to the standard logrus logger.
func (c Config) ConfigureLogging() error {
	level, err := logrus.ParseLevel(c.Log.Level)
	if err != nil {
		return err
	}
	logrus.SetLevel(level)
	if c.Log.Format == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	logrus.SetOutput(os.Stderr)
	return nil
}
