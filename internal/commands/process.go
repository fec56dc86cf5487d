package commands

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/ishandutta2007/taskt/internal/automation"
	"github.com/ishandutta2007/taskt/internal/process"
	"github.com/ishandutta2007/taskt/internal/script"
)

func (b builder) process() []script.Descriptor {
	def := b.settings.DefaultInstanceName(automation.KindProcess)
	instance := script.PropertySpec{Name: "instance", Default: def}

	return []script.Descriptor{
		{
			Kind:        "run_process",
			Group:       GroupProcess,
			Description: "Runs a program to completion and captures its output.",
			Properties: []script.PropertySpec{
				{Name: "binary", Required: true},
				{Name: "arguments", Description: "whitespace-separated arguments"},
				{Name: "working_dir"},
				{Name: "timeout_ms", Default: "0", Description: "0 waits forever"},
				{Name: "output", Description: "variable receiving combined stdout and stderr"},
				{Name: "exit_code", Description: "variable receiving the exit code"},
				{Name: "ignore_exit_code", Default: "false"},
			},
			Validate: func(p map[string]string) []string { return b.checkInt(p, "timeout_ms", 0) },
			Display: func(p map[string]string) string {
				return strings.TrimSpace(p["binary"] + " " + p["arguments"])
			},
			Run: runProcess,
		},
		{
			Kind:        "start_process",
			Group:       GroupProcess,
			Description: "Starts a program in the background as a named instance. It is stopped when the script ends.",
			Properties: []script.PropertySpec{
				instance,
				{Name: "binary", Required: true},
				{Name: "arguments"},
				{Name: "working_dir"},
				{Name: "restart_on_failure", Default: "false"},
			},
			Display: func(p map[string]string) string {
				return instanceName(p, def) + ": " + strings.TrimSpace(p["binary"]+" "+p["arguments"])
			},
			Run: func(ctx context.Context, rc *automation.RunContext, p map[string]string) error {
				restart, err := boolProp(p, "restart_on_failure", false)
				if err != nil {
					return err
				}
				name := instanceName(p, def)

				cfg := process.DefaultConfig(name, strings.TrimSpace(p["binary"]), strings.Fields(p["arguments"]))
				cfg.WorkDir = p["working_dir"]
				cfg.RestartOnFailure = restart

				mgr := process.NewManager(cfg)
				mgr.SetLogger(rc.Logger)
				if err := mgr.Start(ctx); err != nil {
					return err
				}
				if err := rc.Instances.Register(name, automation.KindProcess, mgr); err != nil {
					_ = mgr.Stop()
					return err
				}
				return nil
			},
		},
		{
			Kind:        "stop_process",
			Group:       GroupProcess,
			Description: "Stops a background process instance and collects its output.",
			Properties: []script.PropertySpec{
				instance,
				{Name: "output"},
				{Name: "exit_code"},
				{Name: "error", Description: "variable receiving the failure of a process that exited on its own"},
			},
			Display: func(p map[string]string) string { return instanceName(p, def) },
			Run: func(_ context.Context, rc *automation.RunContext, p map[string]string) error {
				name := instanceName(p, def)
				mgr, err := automation.InstanceAs[*process.Manager](rc.Instances, name, automation.KindProcess)
				if err != nil {
					return err
				}
				failed := mgr.Status() == process.StatusFailed
				if err := mgr.Stop(); err != nil {
					return err
				}
				rc.Instances.Remove(name)

				var failure string
				if err := mgr.LastError(); failed && err != nil {
					failure = err.Error()
				}
				if err := setOutput(rc, p, "output", mgr.Output()); err != nil {
					return err
				}
				if err := setOutput(rc, p, "error", failure); err != nil {
					return err
				}
				return setOutput(rc, p, "exit_code", mgr.ExitCode())
			},
		},
	}
}

func runProcess(ctx context.Context, rc *automation.RunContext, p map[string]string) error {
	timeoutMS, err := intProp(p, "timeout_ms", 0)
	if err != nil {
		return err
	}
	ignoreExit, err := boolProp(p, "ignore_exit_code", false)
	if err != nil {
		return err
	}

	if timeoutMS > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(timeoutMS)*time.Millisecond)
		defer cancel()
	}

	binary := strings.TrimSpace(p["binary"])
	cmd := exec.CommandContext(ctx, binary, strings.Fields(p["arguments"])...) //nolint:gosec // the script author chooses the binary
	cmd.Dir = p["working_dir"]

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	rc.Logger.Debug("running process", "run_id", rc.RunID, "binary", binary)
	runErr := cmd.Run()

	code := -1
	if cmd.ProcessState != nil {
		code = cmd.ProcessState.ExitCode()
	}
	if err := setOutput(rc, p, "output", strings.TrimRight(out.String(), "\r\n")); err != nil {
		return err
	}
	if err := setOutput(rc, p, "exit_code", code); err != nil {
		return err
	}

	if runErr == nil {
		return nil
	}
	if ctx.Err() != nil {
		return fmt.Errorf("%s: %w", binary, ctx.Err())
	}
	var exitErr *exec.ExitError
	if errors.As(runErr, &exitErr) && ignoreExit {
		return nil
	}
	return fmt.Errorf("%s: %w", binary, runErr)
}
