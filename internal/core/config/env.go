package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// ApplyEnvOverrides applies environment variable overrides to the configuration.
// Pattern: DEVSHELL_[SECTION]_[KEY] (e.g., DEVSHELL_BUILD_COMMAND).
// List values are comma separated.
func ApplyEnvOverrides(cfg *Config) {
	// Watch
	setEnvList(&cfg.Watch.Paths, "DEVSHELL_WATCH_PATHS")
	setEnvList(&cfg.Watch.ExcludeDirs, "DEVSHELL_WATCH_EXCLUDE_DIRS")

	// Build
	setEnvString(&cfg.Build.Command, "DEVSHELL_BUILD_COMMAND")
	setEnvString(&cfg.Build.Dir, "DEVSHELL_BUILD_DIR")
	setEnvDuration(&cfg.Build.MinInterval, "DEVSHELL_BUILD_MIN_INTERVAL")
	setEnvInt(&cfg.Build.Burst, "DEVSHELL_BUILD_BURST")
	setEnvDuration(&cfg.Build.Timeout, "DEVSHELL_BUILD_TIMEOUT")

	// Log
	setEnvString(&cfg.Log.Level, "DEVSHELL_LOG_LEVEL")
	setEnvString(&cfg.Log.Format, "DEVSHELL_LOG_FORMAT")

	// Observability
	setEnvBool(&cfg.Observability.Enabled, "DEVSHELL_OBSERVABILITY_ENABLED")
	setEnvString(&cfg.Observability.Address, "DEVSHELL_OBSERVABILITY_ADDRESS")
	setEnvString(&cfg.Observability.OTLPEndpoint, "DEVSHELL_OBSERVABILITY_OTLP_ENDPOINT")
	setEnvBool(&cfg.Observability.EnableTracing, "DEVSHELL_OBSERVABILITY_ENABLE_TRACING")
}

func setEnvString(target *string, key string) {
	if val, ok := os.LookupEnv(key); ok {
		slog.Debug("applying env override", "key", key, "value", val)
		*target = val
	}
}

func setEnvList(target *[]string, key string) {
	if val, ok := os.LookupEnv(key); ok {
		var items []string
		for _, item := range strings.Split(val, ",") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
		slog.Debug("applying env override", "key", key, "value", val)
		*target = items
	}
}

func setEnvInt(target *int, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(val); err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = i
		} else {
			slog.Warn("ignoring invalid env override", "key", key, "value", val, "error", err)
		}
	}
}

func setEnvBool(target *bool, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(strings.ToLower(val)); err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = b
		} else {
			slog.Warn("ignoring invalid env override", "key", key, "value", val, "error", err)
		}
	}
}

func setEnvDuration(target *time.Duration, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(val); err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = d
		} else {
			slog.Warn("ignoring invalid env override", "key", key, "value", val, "error", err)
		}
	}
}
