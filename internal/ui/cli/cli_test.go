package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"devshell/internal/core/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := newRootCommand(&out, &errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), errOut.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, _, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "devshell dev\n", out)
}

func TestCheckCommand(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "src")
	require.NoError(t, os.MkdirAll(filepath.Join(src, "pkg"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(src, "node_modules", "dep"), 0o755))
	file := filepath.Join(root, "README.md")
	require.NoError(t, os.WriteFile(file, nil, 0o644))
	missing := filepath.Join(root, "gen", "out")

	cfgPath := filepath.Join(root, "devshell.toml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("[build]\ncommand = \"make\"\n"), 0o644))

	out, _, err := execute(t, "check", "--config", cfgPath, src, file, missing)
	require.NoError(t, err)

	assert.Contains(t, out, "devshell check")
	assert.Contains(t, out, filepath.Join(src, "pkg"))
	assert.NotContains(t, out, "node_modules", "default excludes apply")
	assert.Contains(t, out, file)
	assert.Contains(t, out, missing+" (waiting in "+root+")")
	assert.Contains(t, out, "4 entries | build: make")
}

func TestCheckCommand_ExtraExcludes(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "build", "x"), 0o755))
	cfgPath := filepath.Join(root, "devshell.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("watch:\n  paths: [.]\n"), 0o644))

	out, _, err := execute(t, "check", "--config", cfgPath, "--exclude", "build")
	require.NoError(t, err)
	assert.NotContains(t, out, filepath.Join(root, "build"))
	assert.Contains(t, out, "1 entries")
}

func TestCheckCommand_RejectsSymlink(t *testing.T) {
	root := t.TempDir()
	link := filepath.Join(root, "link")
	require.NoError(t, os.Symlink(root, link))
	cfgPath := filepath.Join(root, "devshell.toml")
	require.NoError(t, os.WriteFile(cfgPath, nil, 0o644))

	_, errOut, err := execute(t, "check", "--config", cfgPath, link)
	require.Error(t, err)
	assert.Contains(t, errOut, "symbolic links cannot be watched")
}

func TestCheckCommand_BadConfig(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "devshell.toml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("[log]\nformat = \"xml\"\n"), 0o644))

	_, _, err := execute(t, "check", "--config", cfgPath)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "log.format"), err.Error())
}

func TestUnknownFlagIsUsageError(t *testing.T) {
	_, _, err := execute(t, "watch", "--no-such-flag")
	require.Error(t, err)
	var usage *usageError
	assert.ErrorAs(t, err, &usage)
}

func TestInvalidLogFormatIsUsageError(t *testing.T) {
	_, _, err := execute(t, "version", "--log-format", "xml")
	require.Error(t, err)
	var usage *usageError
	assert.ErrorAs(t, err, &usage)
	assert.Contains(t, err.Error(), "text or json")

	assert.Equal(t, 2, Run([]string{"check", "--log-format", "xml"}))
}

func TestLogFormatJSONAccepted(t *testing.T) {
	out, _, err := execute(t, "version", "--log-format", "json")
	require.NoError(t, err)
	assert.Equal(t, "devshell dev\n", out)
}

func TestLoadConfig(t *testing.T) {
	t.Run("explicit path", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "devshell.toml")
		require.NoError(t, os.WriteFile(path, []byte("[build]\ncommand = \"go test ./...\"\n"), 0o644))

		cfg, used, err := loadConfig(path, t.TempDir())
		require.NoError(t, err)
		assert.Equal(t, path, used)
		assert.Equal(t, "go test ./...", cfg.Build.Command)
	})

	t.Run("found upward", func(t *testing.T) {
		root := t.TempDir()
		nested := filepath.Join(root, "a")
		require.NoError(t, os.Mkdir(nested, 0o755))
		path := filepath.Join(root, "devshell.yaml")
		require.NoError(t, os.WriteFile(path, []byte("build:\n  command: make\n"), 0o644))

		cfg, used, err := loadConfig("", nested)
		require.NoError(t, err)
		assert.Equal(t, path, used)
		assert.Equal(t, "make", cfg.Build.Command)
	})

	t.Run("defaults", func(t *testing.T) {
		t.Setenv("DEVSHELL_BUILD_COMMAND", "ninja")
		dir := t.TempDir()
		// A config file in an ancestor of the temp dir would be picked up.
		if _, ok, _ := config.FindConfigFile(dir); ok {
			t.Skip("a devshell config exists above the temp directory")
		}

		cfg, used, err := loadConfig("", dir)
		require.NoError(t, err)
		assert.Empty(t, used)
		assert.Equal(t, "ninja", cfg.Build.Command)
	})
}
