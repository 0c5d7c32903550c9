package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// configNames are tried in order in every directory searched by FindConfigFile.
var configNames = []string{
	"devshell.toml",
	"devshell.yaml",
	"devshell.yml",
}

type ResolvedPaths struct {
	BaseDir    string
	WatchPaths []string
	BuildDir   string
}

// ResolvePaths makes watch paths and the build directory absolute. Relative
// values are taken relative to baseDir, normally the config file's directory.
func ResolvePaths(cfg *Config, baseDir string) (ResolvedPaths, error) {
	if strings.TrimSpace(baseDir) == "" {
		return ResolvedPaths{}, fmt.Errorf("base directory must not be empty")
	}
	base, err := filepath.Abs(baseDir)
	if err != nil {
		return ResolvedPaths{}, err
	}

	watch := make([]string, 0, len(cfg.Watch.Paths))
	for _, p := range cfg.Watch.Paths {
		watch = append(watch, ResolveRelative(base, p))
	}
	return ResolvedPaths{
		BaseDir:    base,
		WatchPaths: watch,
		BuildDir:   ResolveRelative(base, cfg.Build.Dir),
	}, nil
}

func ResolveRelative(base, value string) string {
	raw := strings.TrimSpace(value)
	if raw == "" {
		return filepath.Clean(base)
	}
	if filepath.IsAbs(raw) {
		return filepath.Clean(raw)
	}
	return filepath.Clean(filepath.Join(base, raw))
}

// FindConfigFile walks from start towards the filesystem root and returns the
// first devshell config file found. ok is false when there is none.
func FindConfigFile(start string) (path string, ok bool, err error) {
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", false, err
	}
	for {
		for _, name := range configNames {
			candidate := filepath.Join(dir, name)
			info, statErr := os.Stat(candidate)
			if statErr == nil && info.Mode().IsRegular() {
				return candidate, true, nil
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false, nil
		}
		dir = parent
	}
}
