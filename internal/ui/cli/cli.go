package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"devshell/internal/core/config"

	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X devshell/internal/ui/cli.version=...".
var version = "dev"

type cliOptions struct {
	configPath string
	verbose    bool
	logFormat  string
}

// Run executes the devshell command line and returns the process exit code.
func Run(args []string) int {
	root := newRootCommand(os.Stdout, os.Stderr)
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		var usage *usageError
		if errors.As(err, &usage) {
			return 2
		}
		return 1
	}
	return 0
}

type usageError struct{ err error }

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

func newRootCommand(out, errOut io.Writer) *cobra.Command {
	opts := &cliOptions{}

	root := &cobra.Command{
		Use:   "devshell",
		Short: "Watch a source tree and rebuild on change",
		Long: `devshell watches files and directories, including paths that do not
exist yet, and runs a build command after every batch of changes.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch opts.logFormat {
			case "", "text", "json":
				return nil
			default:
				return &usageError{err: fmt.Errorf("invalid --log-format %q: must be text or json", opts.logFormat)}
			}
		},
	}
	root.SetOut(out)
	root.SetErr(errOut)
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &usageError{err: err}
	})

	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default: nearest devshell.toml or devshell.yaml)")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")
	root.PersistentFlags().StringVar(&opts.logFormat, "log-format", "", "log format: text or json (overrides log.format)")

	root.AddCommand(
		newWatchCommand(opts),
		newCheckCommand(opts),
		newVersionCommand(),
	)
	return root
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and exit",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "devshell %s\n", version)
		},
	}
}

// loadConfig honours --config, then searches upward from cwd, then falls
// back to defaults. The returned path is empty when no file was used.
func loadConfig(flagPath, cwd string) (*config.Config, string, error) {
	path := flagPath
	if path == "" {
		found, ok, err := config.FindConfigFile(cwd)
		if err != nil {
			return nil, "", err
		}
		if !ok {
			cfg := config.Default()
			config.ApplyEnvOverrides(cfg)
			if errs := config.Validate(cfg); len(errs) > 0 {
				return nil, "", errors.Join(errs...)
			}
			return cfg, "", nil
		}
		path = found
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, "", err
	}
	cfg, err := config.Load(abs)
	if err != nil {
		return nil, "", err
	}
	return cfg, abs, nil
}
