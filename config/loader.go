// Package config provides configuration loading for the hotmod host.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	golobby "github.com/golobby/config/v3"
	"github.com/robfig/cron/v3"

	"github.com/GoCodeAlone/hotmod/feeders"
)

// EnvPrefix is prepended to every environment variable the host reads.
const EnvPrefix = "HOTMOD"

// Static errors for configuration package
var (
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Config is the host configuration.
type Config struct {
	ModulesDir   string          `yaml:"modulesDir" toml:"modulesDir" json:"modulesDir" env:"MODULES_DIR"`
	HistoryLimit int             `yaml:"historyLimit" toml:"historyLimit" json:"historyLimit" env:"HISTORY_LIMIT"`
	HTTP         HTTPConfig      `yaml:"http" toml:"http" json:"http" env:"HTTP"`
	Dashboard    DashboardConfig `yaml:"dashboard" toml:"dashboard" json:"dashboard" env:"DASHBOARD"`
	Watch        WatchConfig     `yaml:"watch" toml:"watch" json:"watch" env:"WATCH"`
	Log          LogConfig       `yaml:"log" toml:"log" json:"log" env:"LOG"`
}

// HTTPConfig configures the module route server.
type HTTPConfig struct {
	Addr            string        `yaml:"addr" toml:"addr" json:"addr" env:"ADDR"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout" toml:"shutdownTimeout" json:"shutdownTimeout" env:"SHUTDOWN_TIMEOUT"`
}

// DashboardConfig configures the monitoring JSON API.
type DashboardConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled" json:"enabled" env:"ENABLED"`
	Addr    string `yaml:"addr" toml:"addr" json:"addr" env:"ADDR"`
}

// WatchConfig configures artifact watching.
type WatchConfig struct {
	Enabled  bool          `yaml:"enabled" toml:"enabled" json:"enabled" env:"ENABLED"`
	Debounce time.Duration `yaml:"debounce" toml:"debounce" json:"debounce" env:"DEBOUNCE"`
	// Rescan is a cron spec (e.g. "@every 30s"); empty disables rescans.
	Rescan string `yaml:"rescan" toml:"rescan" json:"rescan" env:"RESCAN"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level  string `yaml:"level" toml:"level" json:"level" env:"LEVEL"`
	Format string `yaml:"format" toml:"format" json:"format" env:"FORMAT"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		ModulesDir:   "modules",
		HistoryLimit: 100,
		HTTP: HTTPConfig{
			Addr:            ":8080",
			ShutdownTimeout: 10 * time.Second,
		},
		Dashboard: DashboardConfig{
			Enabled: false,
			Addr:    "localhost:5000",
		},
		Watch: WatchConfig{
			Enabled:  true,
			Debounce: 200 * time.Millisecond,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load builds the configuration from defaults, the optional file at path
// (YAML, TOML or JSON by extension) and HOTMOD_* environment variables,
// in that order, then validates it.
func Load(path string) (*Config, error) {
	cfg := Default()
	builder := golobby.New()
	if path != "" {
		f, err := fileFeeder(path)
		if err != nil {
			return nil, err
		}
		builder.AddFeeder(f)
	}
	builder.AddFeeder(feeders.NewEnvFeeder(EnvPrefix))
	builder.AddStruct(cfg)
	if err := builder.Feed(); err != nil {
		return nil, fmt.Errorf("%w: %w", feeders.ErrFeed, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// fileFeeder picks the feeder for path by extension. A missing file is
// reported here so the error keeps its identity through golobby/config.
func fileFeeder(path string) (feeders.Feeder, error) {
	var f feeders.Feeder
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		f = feeders.NewYamlFeeder(path)
	case ".toml":
		f = feeders.NewTomlFeeder(path)
	case ".json":
		f = feeders.NewJSONFeeder(path)
	default:
		return nil, fmt.Errorf("%w: %s", feeders.ErrUnsupportedExtension, path)
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", feeders.ErrFileNotFound, path)
	}
	return f, nil
}

// Validate checks the configuration for values the host cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.ModulesDir) == "" {
		errs = append(errs, errors.New("modulesDir is required"))
	}
	if c.HistoryLimit <= 0 {
		errs = append(errs, fmt.Errorf("historyLimit must be positive, got %d", c.HistoryLimit))
	}
	if c.HTTP.Addr == "" {
		errs = append(errs, errors.New("http.addr is required"))
	}
	if c.Dashboard.Enabled && c.Dashboard.Addr == "" {
		errs = append(errs, errors.New("dashboard.addr is required when the dashboard is enabled"))
	}
	if c.Watch.Debounce < 0 {
		errs = append(errs, errors.New("watch.debounce must not be negative"))
	}
	if c.Watch.Rescan != "" {
		if _, err := cron.ParseStandard(c.Watch.Rescan); err != nil {
			errs = append(errs, fmt.Errorf("watch.rescan: %w", err))
		}
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// NewLogger builds the slog logger described by c.
func (c LogConfig) NewLogger(w io.Writer) (*slog.Logger, error) {
	level, err := parseLevel(c.Level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.ToLower(c.Format) == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}
