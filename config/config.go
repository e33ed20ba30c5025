// Package config loads the station daemon configuration from a YAML file
// with environment overrides, and installs the process-wide logger.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Station struct {
		Name    string `yaml:"name"`
		DataDir string `yaml:"data_dir"`
	} `yaml:"station"`

	Ledger struct {
		URL    string `yaml:"url"`
		Secret string `yaml:"secret"` // base64, shared with the Guestsheet service
	} `yaml:"ledger"`

	Web struct {
		Addr string `yaml:"addr"`
	} `yaml:"web"`

	Reader struct {
		Socket string `yaml:"socket"`
	} `yaml:"reader"`

	Slack struct {
		Token       string `yaml:"token"`
		InfoChannel string `yaml:"info_channel"`
		ErrChannel  string `yaml:"error_channel"`
	} `yaml:"slack"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

func override(target *string, env string) {
	if v := os.Getenv(env); v != "" {
		*target = v
	}
}

// Load reads the config file, applies WRISTBAND_* environment overrides and
// validates the result.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// Config can come entirely from the environment.
	} else if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	override(&cfg.Station.Name, "WRISTBAND_STATION_NAME")
	override(&cfg.Station.DataDir, "WRISTBAND_DATA_DIR")
	override(&cfg.Ledger.URL, "WRISTBAND_LEDGER_URL")
	override(&cfg.Ledger.Secret, "WRISTBAND_LEDGER_SECRET")
	override(&cfg.Web.Addr, "WRISTBAND_WEB_ADDR")
	override(&cfg.Reader.Socket, "WRISTBAND_READER_SOCKET")
	override(&cfg.Slack.Token, "SLACK_BOT_TOKEN")
	override(&cfg.Slack.InfoChannel, "SLACK_INFO_CHANNEL")
	override(&cfg.Slack.ErrChannel, "SLACK_ERROR_CHANNEL")
	override(&cfg.Log.Level, "WRISTBAND_LOG_LEVEL")

	if cfg.Station.Name == "" {
		return nil, errors.New("station.name is required")
	}
	if cfg.Ledger.URL == "" {
		return nil, errors.New("ledger.url is required")
	}
	if cfg.Ledger.Secret == "" {
		return nil, errors.New("ledger.secret is required")
	}

	if cfg.Station.DataDir == "" {
		cfg.Station.DataDir = "data"
	}
	if cfg.Web.Addr == "" {
		cfg.Web.Addr = ":8090"
	}
	if cfg.Reader.Socket == "" {
		cfg.Reader.Socket = filepath.Join(cfg.Station.DataDir, "reader.sock")
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}

	if err := os.MkdirAll(cfg.Station.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	return &cfg, nil
}

// RegistryPath is where the tag registry file lives.
func (c *Config) RegistryPath() string {
	return filepath.Join(c.Station.DataDir, "tag_registry.json")
}

// QueuePath is where the check-in queue file lives.
func (c *Config) QueuePath() string {
	return filepath.Join(c.Station.DataDir, "checkin_queue.json")
}

// SnapshotPath is where the guest snapshot database lives.
func (c *Config) SnapshotPath() string {
	return filepath.Join(c.Station.DataDir, "guest_snapshot.db")
}

// SetupLogger installs the global zap logger at the configured level.
func SetupLogger(level string) error {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}

	zcfg := zap.NewProductionConfig()
	zcfg.Level = lvl

	logger, err := zcfg.Build()
	if err != nil {
		return err
	}

	zap.ReplaceGlobals(logger)
	return nil
}
