package cmd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate runs the test in an empty directory with no user configuration.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", dir)
	return dir
}

// execute runs the root command and returns stdout. Logs go to stderr and
// are discarded.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Cleanup(func() { resetFlags(rootCmd) })

	out, errOut := new(bytes.Buffer), new(bytes.Buffer)
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

// resetFlags restores every flag to its default so executions in one test
// binary do not leak into each other.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			def := strings.Trim(f.DefValue, "[]")
			var vals []string
			if def != "" {
				vals = strings.Split(def, ",")
			}
			_ = sv.Replace(vals)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func TestRootCommand(t *testing.T) {
	assert.NotNil(t, rootCmd)
	assert.Equal(t, "lbpfeat", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
	assert.Same(t, rootCmd, GetRootCommand())
}

func TestRootCommandHelp(t *testing.T) {
	isolate(t)
	output, err := execute(t, "--help")
	require.NoError(t, err)

	assert.Contains(t, output, "local binary pattern")
	assert.Contains(t, output, "Available Commands:")
	assert.Contains(t, output, "Usage:")
}

func TestRootCommandVersion(t *testing.T) {
	isolate(t)
	output, err := execute(t, "--version")
	require.NoError(t, err)
	assert.Contains(t, output, "lbpfeat version")
	assert.Contains(t, output, "Commit:")

	output, err = execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, output, "lbpfeat version")
}

func TestRootCommandSubcommands(t *testing.T) {
	commandNames := make([]string, 0, len(rootCmd.Commands()))
	for _, sub := range rootCmd.Commands() {
		commandNames = append(commandNames, sub.Name())
	}

	for _, expected := range []string{"generate", "info", "extract", "meanvar", "config", "version"} {
		assert.Contains(t, commandNames, expected, "Expected subcommand '%s' not found", expected)
	}
}

func TestRootCommandInvalidFlag(t *testing.T) {
	isolate(t)
	_, err := execute(t, "--no-such-flag")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown flag")
}

func TestRootCommandMissingConfigFile(t *testing.T) {
	isolate(t)
	_, err := execute(t, "--config", "missing.yaml", "config", "show")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config file does not exist")
}

func TestSetupLoggingLevels(t *testing.T) {
	isolate(t)
	for _, level := range []string{"debug", "info", "warn", "error"} {
		_, err := execute(t, "--log-level", level, "version")
		require.NoError(t, err, level)
	}
	_, err := execute(t, "--log-level", "loud", "config", "show")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
}
