package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"devshell/internal/core/config"
)

// configureLogging installs the default slog logger. In UI mode logs go to a
// file so they do not corrupt the terminal UI.
func configureLogging(stdout io.Writer, opts *cliOptions, cfg config.Log, uiMode bool) (*slog.Logger, func()) {
	level := cfg.SlogLevel()
	if opts.verbose {
		level = slog.LevelDebug
	}
	format := cfg.Format
	if opts.logFormat != "" {
		format = opts.logFormat
	}

	output := stdout
	closeFn := func() {}
	if uiMode {
		logPath := resolveLogPath()
		if err := os.MkdirAll(filepath.Dir(logPath), 0o700); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to create log dir for %s: %v\n", logPath, err)
		} else if fi, err := os.Lstat(logPath); err == nil && (fi.Mode()&os.ModeSymlink) != 0 {
			fmt.Fprintf(os.Stderr, "warning: refusing to write logs to symlink path %s\n", logPath)
		} else if f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to open log file %s: %v\n", logPath, err)
		} else {
			output = f
			closeFn = func() { _ = f.Close() }
		}
	}

	handlerOpts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(output, handlerOpts)
	} else {
		handler = slog.NewTextHandler(output, handlerOpts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger, closeFn
}

func resolveLogPath() string {
	if xdg := os.Getenv("XDG_STATE_HOME"); xdg != "" {
		return filepath.Join(xdg, "devshell", "devshell.log")
	}

	home, err := os.UserHomeDir()
	if err == nil && home != "" {
		return filepath.Join(home, ".local", "state", "devshell", "devshell.log")
	}

	return "devshell.log"
}
