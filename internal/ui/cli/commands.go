package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	coreapp "devshell/internal/core/app"
	"devshell/internal/core/config"
	"devshell/internal/core/watcher"

	"github.com/spf13/cobra"
)

type runOptions struct {
	initialBuild bool
	ui           bool
	build        string
	excludes     []string
}

func newWatchCommand(opts *cliOptions) *cobra.Command {
	run := &runOptions{}
	cmd := &cobra.Command{
		Use:   "watch [paths...]",
		Short: "Watch paths and rebuild on change",
		Long: `Watch the given paths (or watch.paths from the config file) and run
build.command after every batch of changes. Paths may be files,
directories or paths that do not exist yet.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := prepareApp(cmd.OutOrStdout(), opts, run, args)
			if err != nil {
				return err
			}
			defer cleanup()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if run.ui {
				return runUI(ctx, a)
			}
			return a.Run(ctx)
		},
	}
	cmd.Flags().BoolVar(&run.initialBuild, "initial-build", false, "run the build once at startup")
	cmd.Flags().BoolVar(&run.ui, "ui", false, "show a live terminal dashboard")
	cmd.Flags().StringVar(&run.build, "build", "", "build command (overrides build.command)")
	cmd.Flags().StringSliceVar(&run.excludes, "exclude", nil, "additional directory name globs to skip")
	return cmd
}

func newCheckCommand(opts *cliOptions) *cobra.Command {
	run := &runOptions{}
	cmd := &cobra.Command{
		Use:   "check [paths...]",
		Short: "Classify watch paths and print what would be watched",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := prepareApp(io.Discard, opts, run, args)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := a.StartWatcher(); err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), renderError(err))
				return err
			}
			entries := a.Entries()
			a.StopWatcher()

			fmt.Fprint(cmd.OutOrStdout(), renderCheck(a.Config, entries))
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&run.excludes, "exclude", nil, "additional directory name globs to skip")
	return cmd
}

// prepareApp loads configuration, applies flag overrides and builds the app.
// Paths given on the command line are taken relative to the working directory.
func prepareApp(logOut io.Writer, opts *cliOptions, run *runOptions, args []string) (*coreapp.App, func(), error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, nil, err
	}

	cfg, cfgPath, err := loadConfig(opts.configPath, cwd)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	base := ""
	if cfgPath == "" {
		base = cwd
	}
	if len(args) > 0 {
		cfg.Watch.Paths = args
		base = cwd
	}
	if run.build != "" {
		cfg.Build.Command = run.build
	}
	cfg.Watch.ExcludeDirs = append(cfg.Watch.ExcludeDirs, run.excludes...)
	if errs := config.Validate(cfg); len(errs) > 0 {
		return nil, nil, errs[0]
	}

	logger, closeLogs := configureLogging(logOut, opts, cfg.Log, run.ui)
	if cfgPath != "" {
		logger.Debug("loaded config", "path", cfgPath)
	}

	a, err := coreapp.New(cfg, coreapp.Options{
		ConfigPath:   cfgPath,
		BaseDir:      base,
		InitialBuild: run.initialBuild,
		Logger:       logger,
	})
	if err != nil {
		closeLogs()
		return nil, nil, err
	}
	return a, closeLogs, nil
}

func renderCheck(cfg *config.Config, entries []watcher.Entry) string {
	var b []byte
	b = fmt.Appendf(b, "%s\n", titleStyle.Render("devshell check"))
	for _, e := range entries {
		b = fmt.Appendf(b, "  %s %s\n", kindBadge(e.Kind), describeEntry(e))
	}
	build := cfg.Build.Command
	if build == "" {
		build = mutedStyle.Render("(none)")
	}
	b = fmt.Appendf(b, "%s %d entries | build: %s\n",
		successStyle.Render("ok"), len(entries), build)
	return string(b)
}

func describeEntry(e watcher.Entry) string {
	if e.Kind == watcher.KindAbsent {
		return fmt.Sprintf("%s %s", e.Path, mutedStyle.Render("(waiting in "+e.Upstream+")"))
	}
	return e.Path
}

func renderError(err error) string {
	slog.Debug("check failed", "error", err)
	return errorStyle.Render("error: ") + err.Error()
}
