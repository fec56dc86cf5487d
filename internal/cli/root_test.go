package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ishandutta2007/taskt/internal/infrastructure/config"
)

// testCLI is a settings file and scripts folder in a temp dir.
type testCLI struct {
	dir     string
	config  string
	scripts string
	cfg     *config.Config
}

func newTestCLI(t *testing.T) *testCLI {
	t.Helper()
	dir := t.TempDir()
	c := &testCLI{
		dir:     dir,
		config:  filepath.Join(dir, "taskt.yaml"),
		scripts: filepath.Join(dir, "scripts"),
		cfg:     config.Default(),
	}
	c.cfg.Engine.DelayBetweenCommands = 0
	c.cfg.Client.ScriptsFolder = c.scripts
	c.cfg.Logging.Level = "error"
	c.cfg.Database.Path = filepath.Join(dir, "data", "taskt.db")
	c.save(t)
	return c
}

func (c *testCLI) save(t *testing.T) {
	t.Helper()
	require.NoError(t, config.Save(c.config, c.cfg))
}

func (c *testCLI) enableHistory(t *testing.T) {
	t.Helper()
	c.cfg.Database.Enabled = true
	c.save(t)
}

// writeScript writes body to name inside the scripts folder.
func (c *testCLI) writeScript(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(c.scripts, filepath.FromSlash(name))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

// execute runs the CLI against the test settings file.
func (c *testCLI) execute(args ...string) (string, string, error) {
	cmd := NewRootCommand("test")
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"--config", c.config}, args...))
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

// jsonResponse mirrors CLIResponse with the payload left raw.
type jsonResponse struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
	Error  *CLIError       `json:"error"`
}

func decodeResponse(t *testing.T, out string) jsonResponse {
	t.Helper()
	var resp jsonResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp), "output: %s", out)
	return resp
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand("1.2.3")
	require.NotNil(t, cmd)
	assert.Equal(t, "taskt", cmd.Use)
	assert.Equal(t, "1.2.3", cmd.Version)
	assert.Contains(t, cmd.Long, "control listener")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand("test")
	commands := []string{"run", "validate", "listen", "commands", "encode", "history", "config"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}

	for _, sub := range []string{"init", "show"} {
		subCmd, _, err := cmd.Find([]string{"config", sub})
		require.NoError(t, err)
		assert.Equal(t, sub, subCmd.Name())
	}
}

func TestGlobalFlags(t *testing.T) {
	t.Setenv("TASKT_CONFIG", "")
	cmd := NewRootCommand("test")

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	configFlag := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, configFlag)
	assert.Equal(t, "c", configFlag.Shorthand)
	assert.Equal(t, defaultConfigPath, configFlag.DefValue)
}

func TestConfigPathFromEnv(t *testing.T) {
	t.Setenv("TASKT_CONFIG", "/etc/taskt/taskt.yaml")
	cmd := NewRootCommand("test")
	assert.Equal(t, "/etc/taskt/taskt.yaml", cmd.PersistentFlags().Lookup("config").DefValue)
}

func TestRunCommandFlags(t *testing.T) {
	cmd := NewRootCommand("test")
	runCmd, _, err := cmd.Find([]string{"run"})
	require.NoError(t, err)

	for _, name := range []string{"var", "timeout", "listen"} {
		assert.NotNil(t, runCmd.Flags().Lookup(name), "run should have --%s", name)
	}
}

func TestInvalidFormat(t *testing.T) {
	c := newTestCLI(t)
	_, _, err := c.execute("--format", "xml", "commands")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"plain", errors.New("boom"), ExitFailure},
		{"exit error", NewExitError(ExitCommandError, "bad"), ExitCommandError},
		{"wrapped", WrapExitError(ExitFailure, "run faulted", errors.New("x")), ExitFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetExitCode(tt.err))
		})
	}
}

func TestExitError(t *testing.T) {
	cause := errors.New("no such file")
	err := WrapExitError(ExitCommandError, "script not found", cause)
	assert.Equal(t, "script not found: no such file", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "bad", NewExitError(ExitFailure, "bad").Error())
}

func TestOutputFormatter(t *testing.T) {
	t.Run("json success", func(t *testing.T) {
		var buf bytes.Buffer
		f := &OutputFormatter{Format: "json", Writer: &buf}
		require.NoError(t, f.Success(map[string]int{"n": 1}))
		resp := decodeResponse(t, buf.String())
		assert.Equal(t, "ok", resp.Status)
		assert.JSONEq(t, `{"n":1}`, string(resp.Data))
	})

	t.Run("text error lists details", func(t *testing.T) {
		var buf bytes.Buffer
		f := &OutputFormatter{Format: "text", Writer: &buf}
		require.NoError(t, f.Error(CodeInvalidScript, "invalid script", []string{"first", "second"}))
		assert.Equal(t, "Error [E001]: invalid script\n  - first\n  - second\n", buf.String())
	})

	t.Run("verbose goes to err writer", func(t *testing.T) {
		var out, errOut bytes.Buffer
		f := &OutputFormatter{Format: "json", Writer: &out, ErrWriter: &errOut, Verbose: true}
		f.VerboseLog("loaded %d", 3)
		assert.Empty(t, out.String())
		assert.Equal(t, "loaded 3\n", errOut.String())

		f.Verbose = false
		f.VerboseLog("hidden")
		assert.Equal(t, "loaded 3\n", errOut.String())
	})
}
