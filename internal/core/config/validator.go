package config

import (
	"fmt"
	"net"
	"strings"

	"github.com/gobwas/glob"
)

// Validate returns every problem found, in section order. An empty result
// means the configuration is usable.
func Validate(cfg *Config) []error {
	var errs []error
	for _, check := range []func(*Config) []error{
		validateWatch,
		validateBuild,
		validateLog,
		validateObservability,
	} {
		errs = append(errs, check(cfg)...)
	}
	return errs
}

func validateWatch(cfg *Config) []error {
	var errs []error
	if len(cfg.Watch.Paths) == 0 {
		errs = append(errs, fmt.Errorf("watch.paths must not be empty"))
	}
	seen := make(map[string]bool, len(cfg.Watch.Paths))
	for i, p := range cfg.Watch.Paths {
		if strings.TrimSpace(p) == "" {
			errs = append(errs, fmt.Errorf("watch.paths[%d] must not be empty", i))
			continue
		}
		if seen[p] {
			errs = append(errs, fmt.Errorf("watch.paths lists %q more than once", p))
		}
		seen[p] = true
	}
	for _, pattern := range cfg.Watch.ExcludeDirs {
		if strings.ContainsRune(pattern, '/') {
			errs = append(errs, fmt.Errorf("watch.exclude_dirs pattern %q must match a base name, not a path", pattern))
			continue
		}
		if _, err := glob.Compile(pattern); err != nil {
			errs = append(errs, fmt.Errorf("watch.exclude_dirs pattern %q is invalid: %w", pattern, err))
		}
	}
	return errs
}

func validateBuild(cfg *Config) []error {
	var errs []error
	if cfg.Build.MinInterval < 0 {
		errs = append(errs, fmt.Errorf("build.min_interval must not be negative, got %s", cfg.Build.MinInterval))
	}
	if cfg.Build.Burst < 1 {
		errs = append(errs, fmt.Errorf("build.burst must be >= 1, got %d", cfg.Build.Burst))
	}
	if cfg.Build.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("build.timeout must be positive, got %s", cfg.Build.Timeout))
	}
	return errs
}

func validateLog(cfg *Config) []error {
	var errs []error
	switch cfg.Log.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level must be one of: debug, info, warn, error"))
	}
	switch cfg.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be one of: text, json"))
	}
	return errs
}

func validateObservability(cfg *Config) []error {
	var errs []error
	if cfg.Observability.Enabled {
		if _, _, err := net.SplitHostPort(cfg.Observability.Address); err != nil {
			errs = append(errs, fmt.Errorf("observability.address %q is not host:port: %w", cfg.Observability.Address, err))
		}
	}
	if cfg.Observability.EnableTracing && cfg.Observability.OTLPEndpoint == "" {
		errs = append(errs, fmt.Errorf("observability.otlp_endpoint must be set when observability.enable_tracing=true"))
	}
	return errs
}
