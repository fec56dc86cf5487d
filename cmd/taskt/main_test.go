package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ishandutta2007/taskt/internal/cli"
)

// TestRun_UnknownCommand verifies argument errors map to a failure code.
func TestRun_UnknownCommand(t *testing.T) {
	if code := run(context.Background(), []string{"frobnicate"}); code != cli.ExitFailure {
		t.Errorf("run() = %d, want %d", code, cli.ExitFailure)
	}
}

// TestRun_ScriptNotFound verifies a missing script is a command error.
func TestRun_ScriptNotFound(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	code := run(ctx, []string{"--config", filepath.Join(dir, "taskt.yaml"), "--format", "json",
		"run", filepath.Join(dir, "missing.yaml")})
	if code != cli.ExitCommandError {
		t.Errorf("run() = %d, want %d", code, cli.ExitCommandError)
	}
}

// TestRun_Script executes a small script end to end.
func TestRun_Script(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hello.yaml")
	doc := `name: hello
commands:
  - command: set_variable
    properties:
      name: greeting
      value: hello
`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	code := run(ctx, []string{"--config", filepath.Join(dir, "taskt.yaml"), "--format", "json", "run", path})
	if code != cli.ExitSuccess {
		t.Errorf("run() = %d, want %d", code, cli.ExitSuccess)
	}
}
