// Package config provides configuration for the kvs binaries. Settings
// come from an optional YAML file and environment variables, with
// thread-safe singleton access.
package config

import (
	"log/slog"
	"os"
	"sync"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

// Config holds all application configuration values. Command-line
// flags override these; these override the built-in defaults.
type Config struct {
	LOG_PATH          string `yaml:"LOG_PATH"`          // Log file or directory; empty means the working directory
	ADDR              string `yaml:"ADDR"`              // Server bind / client target address
	ENGINE            string `yaml:"ENGINE"`            // Engine backend selector
	LOG_LEVEL         string `yaml:"LOG_LEVEL"`         // slog level: debug, info, warn, error
	COMPACT_THRESHOLD int64  `yaml:"COMPACT_THRESHOLD"` // Dirt bytes that trigger compaction
}

const (
	defaultAddr      = "127.0.0.1:4000"
	defaultEngine    = "kvs"
	defaultLogLevel  = "info"
	defaultThreshold = 8008135
)

// configFileEnv names the environment variable that points at the
// config file. Without it, config.yml in the working directory is tried.
const configFileEnv = "KVS_CONFIG"

var (
	appConfig *Config
	once      sync.Once
	initErr   error
)

// LoadConfig reads configuration from the YAML file and optionally from
// a .env file. A missing config file is not an error; defaults apply.
// Environment variables in the YAML file are expanded with
// os.ExpandEnv. Loading happens once even with concurrent calls.
func LoadConfig() (*Config, error) {
	once.Do(func() {
		// Load .env file if it exists (optional - no error if missing)
		if err := godotenv.Load(); err != nil {
			slog.Debug("No .env file found or error loading it", "error", err)
		} else {
			slog.Debug(".env file loaded successfully")
		}

		cfg := Config{
			ADDR:              defaultAddr,
			ENGINE:            defaultEngine,
			LOG_LEVEL:         defaultLogLevel,
			COMPACT_THRESHOLD: defaultThreshold,
		}

		path := os.Getenv(configFileEnv)
		if path == "" {
			path = "config.yml"
		}

		file, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				initErr = err
				return
			}
			slog.Debug("config file not found, using defaults", "path", path)
		} else if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(file))), &cfg); err != nil {
			initErr = err
			return
		}

		if cfg.COMPACT_THRESHOLD <= 0 {
			cfg.COMPACT_THRESHOLD = defaultThreshold
		}
		appConfig = &cfg
	})
	if initErr != nil {
		return nil, initErr
	}
	return appConfig, initErr
}

// Level maps the configured LOG_LEVEL string onto a slog.Level.
func (c *Config) Level() slog.Level {
	switch c.LOG_LEVEL {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
