package config

import (
	"log/slog"
	"strings"
	"time"
)

// DefaultFile is looked up in the working directory when no --config flag is given.
const DefaultFile = "devshell.toml"

type Config struct {
	Watch         Watch         `toml:"watch" yaml:"watch"`
	Build         Build         `toml:"build" yaml:"build"`
	Log           Log           `toml:"log" yaml:"log"`
	Observability Observability `toml:"observability" yaml:"observability"`
}

type Watch struct {
	Paths       []string `toml:"paths" yaml:"paths"`
	ExcludeDirs []string `toml:"exclude_dirs" yaml:"exclude_dirs"`
}

// Build describes the command run after a batch of changes. An empty Command
// turns the rebuilder into a change logger.
type Build struct {
	Command     string        `toml:"command" yaml:"command"`
	Dir         string        `toml:"dir" yaml:"dir"`
	MinInterval time.Duration `toml:"min_interval" yaml:"min_interval"`
	Burst       int           `toml:"burst" yaml:"burst"`
	Timeout     time.Duration `toml:"timeout" yaml:"timeout"`
}

type Log struct {
	Level  string `toml:"level" yaml:"level"`
	Format string `toml:"format" yaml:"format"`
}

type Observability struct {
	Enabled       bool   `toml:"enabled" yaml:"enabled"`
	Address       string `toml:"address" yaml:"address"`
	OTLPEndpoint  string `toml:"otlp_endpoint" yaml:"otlp_endpoint"`
	EnableTracing bool   `toml:"enable_tracing" yaml:"enable_tracing"`
}

// Default returns a configuration with every default applied, used when no
// config file exists.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// SlogLevel maps log.level onto slog. Unknown values fall back to info.
func (l Log) SlogLevel() slog.Level {
	switch strings.ToLower(strings.TrimSpace(l.Level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// BuildArgs splits build.command on whitespace. No shell is involved.
func (b Build) BuildArgs() []string {
	return strings.Fields(b.Command)
}
