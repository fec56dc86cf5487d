package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	c := newTestCLI(t)
	good := c.writeScript(t, "good.yaml", greetScript)
	bad := c.writeScript(t, "bad.yaml", `commands:
  - command: delay
    properties:
      milliseconds: soon
  - command: teleport
`)
	unknownField := c.writeScript(t, "typo.yaml", `commands:
  - command: comment
    propertys:
      text: hi
`)

	tests := []struct {
		name      string
		args      []string
		wantCode  int
		wantValid []bool
	}{
		{name: "valid script", args: []string{good}, wantCode: ExitSuccess, wantValid: []bool{true}},
		{name: "invalid script", args: []string{bad}, wantCode: ExitFailure, wantValid: []bool{false}},
		{name: "unknown field", args: []string{unknownField}, wantCode: ExitFailure, wantValid: []bool{false}},
		{name: "mixed", args: []string{good, bad}, wantCode: ExitFailure, wantValid: []bool{true, false}},
		{name: "missing", args: []string{"nope"}, wantCode: ExitFailure, wantValid: []bool{false}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _, err := c.execute(append([]string{"--format", "json", "validate"}, tt.args...)...)
			assert.Equal(t, tt.wantCode, GetExitCode(err))

			var results []ValidationResult
			require.NoError(t, json.Unmarshal(decodeResponse(t, out).Data, &results))
			require.Len(t, results, len(tt.wantValid))
			for i, want := range tt.wantValid {
				assert.Equal(t, want, results[i].Valid, "script %s: %v", results[i].Script, results[i].Errors)
				if !want {
					assert.NotEmpty(t, results[i].Errors)
				}
			}
		})
	}
}

func TestValidate_ReportsCommandProblems(t *testing.T) {
	c := newTestCLI(t)
	path := c.writeScript(t, "props.yaml", `commands:
  - command: delay
    properties:
      milliseconds: soon
  - command: set_variable
    properties:
      name: ok
      colour: blue
`)

	out, _, err := c.execute("validate", path)
	require.Error(t, err)
	assert.Contains(t, out, "FAIL "+path)
	assert.Contains(t, out, "command 1 (delay)")
	assert.Contains(t, out, `unknown property "colour"`)
}

func TestValidate_TextOK(t *testing.T) {
	c := newTestCLI(t)
	path := c.writeScript(t, "good.yaml", greetScript)

	out, _, err := c.execute("validate", path)
	require.NoError(t, err)
	assert.Equal(t, "ok   "+path+" (1 commands)\n", out)
}

func TestValidate_RequiresArgs(t *testing.T) {
	c := newTestCLI(t)
	_, _, err := c.execute("validate")
	assert.Error(t, err)
}
