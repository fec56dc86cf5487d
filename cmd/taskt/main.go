// taskt - desktop automation runtime
//
// This is the main entry point for the taskt command-line runtime. It runs
// automation scripts, validates them, and serves the remote control
// listener used to start, pause, resume and cancel runs.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ishandutta2007/taskt/internal/cli"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

func main() {
	// Interrupts cancel the running command; runs stop between commands.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	code := run(ctx, os.Args[1:])
	cancel()
	os.Exit(code)
}

// run executes the CLI and returns the process exit code.
func run(ctx context.Context, args []string) int {
	root := cli.NewRootCommand(fmt.Sprintf("%s (commit %s, built %s)", version, commit, date))
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return cli.ExitSuccess
	}

	// Commands report ExitErrors themselves; anything else came from
	// argument parsing or flag validation.
	var exitErr *cli.ExitError
	if !errors.As(err, &exitErr) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	return cli.GetExitCode(err)
}
