package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ishandutta2007/taskt/internal/automation"
)

const greetScript = `name: greet
variables:
  - name: who
    value: world
commands:
  - command: set_variable
    properties:
      name: greeting
      value: hello {who}
`

func decodeResult(t *testing.T, out string) automation.Result {
	t.Helper()
	resp := decodeResponse(t, out)
	require.Equal(t, "ok", resp.Status, "output: %s", out)
	var res automation.Result
	require.NoError(t, json.Unmarshal(resp.Data, &res))
	return res
}

func TestRun_Completed(t *testing.T) {
	c := newTestCLI(t)
	path := c.writeScript(t, "greet.yaml", greetScript)

	out, _, err := c.execute("--format", "json", "run", path)
	require.NoError(t, err)

	res := decodeResult(t, out)
	assert.Equal(t, automation.StateCompleted, res.State)
	assert.Equal(t, "greet", res.Name)
	assert.Equal(t, 1, res.Executed)
	assert.Equal(t, "hello world", res.Variables["greeting"])
	assert.NotEmpty(t, res.RunID)
}

func TestRun_VarOverride(t *testing.T) {
	c := newTestCLI(t)
	path := c.writeScript(t, "greet.yaml", greetScript)

	out, _, err := c.execute("--format", "json", "run", path, "--var", "who=cli", "--var", "extra = 1")
	require.NoError(t, err)

	res := decodeResult(t, out)
	assert.Equal(t, "hello cli", res.Variables["greeting"])
	assert.Equal(t, "1", res.Variables["extra"])
}

func TestRun_BadVar(t *testing.T) {
	c := newTestCLI(t)
	path := c.writeScript(t, "greet.yaml", greetScript)

	out, _, err := c.execute("--format", "json", "run", path, "--var", "novalue")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Equal(t, "error", decodeResponse(t, out).Status)
}

func TestRun_NamedScript(t *testing.T) {
	c := newTestCLI(t)
	c.writeScript(t, "jobs/nightly.yaml", greetScript)

	out, _, err := c.execute("--format", "json", "run", "jobs/nightly")
	require.NoError(t, err)
	assert.Equal(t, automation.StateCompleted, decodeResult(t, out).State)
}

func TestRun_Faulted(t *testing.T) {
	c := newTestCLI(t)
	path := c.writeScript(t, "fail.yaml", `commands:
  - command: throw_error
    properties:
      message: out of paper
  - command: set_variable
    properties:
      name: reached
      value: "yes"
`)

	out, _, err := c.execute("--format", "json", "run", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	res := decodeResult(t, out)
	assert.Equal(t, automation.StateFaulted, res.State)
	assert.Equal(t, "fail", res.Name, "name defaults to the file name")
	require.Len(t, res.Errors, 1)
	assert.Equal(t, 1, res.Errors[0].Index)
	assert.Equal(t, "throw_error", res.Errors[0].Kind)
	assert.Contains(t, res.Errors[0].Message, "out of paper")
	assert.NotContains(t, res.Variables, "reached")
}

func TestRun_ContinueOnError(t *testing.T) {
	c := newTestCLI(t)
	path := c.writeScript(t, "soft.yaml", `commands:
  - command: throw_error
    continue_on_error: true
  - command: set_variable
    properties:
      name: reached
      value: "yes"
  - command: stop_script
  - command: set_variable
    properties:
      name: after_stop
      value: "yes"
`)

	out, _, err := c.execute("--format", "json", "run", path)
	require.NoError(t, err)

	res := decodeResult(t, out)
	assert.Equal(t, automation.StateCompleted, res.State)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, "yes", res.Variables["reached"])
	assert.NotContains(t, res.Variables, "after_stop")
}

func TestRun_Timeout(t *testing.T) {
	c := newTestCLI(t)
	path := c.writeScript(t, "slow.yaml", `commands:
  - command: delay
    properties:
      milliseconds: "10000"
  - command: set_variable
    properties:
      name: reached
      value: "yes"
`)

	out, _, err := c.execute("--format", "json", "run", path, "--timeout", "50ms")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	res := decodeResult(t, out)
	assert.Equal(t, automation.StateCancelled, res.State)
	assert.NotContains(t, res.Variables, "reached")
}

func TestRun_NotFound(t *testing.T) {
	c := newTestCLI(t)

	out, _, err := c.execute("--format", "json", "run", "missing")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	resp := decodeResponse(t, out)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeNotFound, resp.Error.Code)
}

func TestRun_InvalidName(t *testing.T) {
	c := newTestCLI(t)

	_, _, err := c.execute("--format", "json", "run", "../outside")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRun_ValidationFailure(t *testing.T) {
	c := newTestCLI(t)
	path := c.writeScript(t, "broken.yaml", `variables:
  - name: ENTER
    value: x
commands:
  - command: set_variable
    properties:
      value: orphan
`)

	out, _, err := c.execute("--format", "json", "run", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	resp := decodeResponse(t, out)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeInvalidScript, resp.Error.Code)
	details, ok := resp.Error.Details.([]any)
	require.True(t, ok, "details = %#v", resp.Error.Details)
	assert.Len(t, details, 2)
}

func TestRun_TextOutput(t *testing.T) {
	c := newTestCLI(t)
	path := c.writeScript(t, "greet.yaml", greetScript)

	out, _, err := c.execute("--verbose", "run", path)
	require.NoError(t, err)
	assert.Contains(t, out, "greet: completed")
	assert.Contains(t, out, "1 total, 1 executed, 0 failed, 0 skipped")
	assert.Contains(t, out, "greeting = hello world")
}

func TestRun_RecordsHistory(t *testing.T) {
	c := newTestCLI(t)
	c.enableHistory(t)
	path := c.writeScript(t, "greet.yaml", greetScript)

	out, _, err := c.execute("--format", "json", "run", path)
	require.NoError(t, err)
	runID := decodeResult(t, out).RunID

	out, _, err = c.execute("--format", "json", "history")
	require.NoError(t, err)
	var runs []automation.Result
	require.NoError(t, json.Unmarshal(decodeResponse(t, out).Data, &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, runID, runs[0].RunID)
	assert.Equal(t, automation.StateCompleted, runs[0].State)

	out, _, err = c.execute("--format", "json", "history", runID)
	require.NoError(t, err)
	rec := decodeResult(t, out)
	assert.Equal(t, "hello world", rec.Variables["greeting"])
}

func TestSeedVariables(t *testing.T) {
	base := map[string]any{"a": 1}

	got, err := seedVariables(base, nil)
	require.NoError(t, err)
	assert.Equal(t, base, got)

	got, err = seedVariables(base, []string{"b=two", "a=3=4"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": "3=4", "b": "two"}, got)
	assert.Equal(t, 1, base["a"], "base is not modified")

	_, err = seedVariables(nil, []string{"=x"})
	assert.Error(t, err)
}
