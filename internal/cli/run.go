package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ishandutta2007/taskt/internal/automation"
	"github.com/ishandutta2007/taskt/internal/listener"
	"github.com/ishandutta2007/taskt/internal/script"
)

// shutdownTimeout bounds how long a command waits for runs to tear down.
const shutdownTimeout = 15 * time.Second

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Vars    []string
	Timeout time.Duration
	Listen  bool
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <script>",
		Short: "Execute a script",
		Long: `Execute a script and report the result.

The argument is a file path, or a name inside the configured scripts folder
(".yaml" is added when the name has no extension). Interrupting the process
cancels the run between commands; instances are always released.

Example:
  taskt run ./scripts/report.yaml
  taskt run nightly --var customer=acme --timeout 10m
  taskt run nightly --listen`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScript(cmd.Context(), opts, args[0], cmd)
		},
	}

	cmd.Flags().StringArrayVar(&opts.Vars, "var", nil, "seed a variable (name=value, repeatable)")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 0, "cancel the run after this long (0 = no limit)")
	cmd.Flags().BoolVar(&opts.Listen, "listen", false, "serve the control listener while the run executes")

	return cmd
}

func runScript(ctx context.Context, opts *RunOptions, name string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	out := opts.formatter(cmd)

	env, err := loadEnvironment(opts.RootOptions, cmd)
	if err != nil {
		return reportExit(out, CodeConfig, err)
	}

	doc, cmds, err := loadScript(env, name)
	if err != nil {
		return reportExit(out, scriptErrorCode(err), err)
	}
	out.VerboseLog("loaded %q with %d command(s)", doc.Name, len(cmds))

	vars, err := seedVariables(doc.InitialVariables(), opts.Vars)
	if err != nil {
		return reportExit(out, CodeInvalidScript, WrapExitError(ExitCommandError, "invalid --var", err))
	}

	svc, err := connectServices(ctx, env)
	if err != nil {
		return reportExit(out, CodeConfig, WrapExitError(ExitCommandError, "starting services", err))
	}
	defer svc.close()

	listen := opts.Listen || (env.cfg.Listener.Enabled && env.cfg.Listener.StartOnStartup)

	var mopts automation.Options
	var hub *listener.Hub
	if listen {
		hub = listener.NewHub(env.logger)
		mopts = svc.options(hub)
	} else {
		mopts = svc.options(nil)
	}
	manager := automation.NewManager(env.settings, mopts)
	defer shutdownManager(manager, env)

	if listen {
		_, stop, err := startControlServer(ctx, env, svc, manager, hub)
		if err != nil {
			return reportExit(out, CodeConfig, WrapExitError(ExitCommandError, "starting listener", err))
		}
		defer stop()
	}

	eng, err := manager.Start(doc.Name, cmds, vars)
	if err != nil {
		return reportExit(out, CodeInvalidScript, WrapExitError(ExitFailure, "script failed validation", err))
	}
	env.logger.Info("run started", "run_id", eng.ID(), "name", eng.Name(), "commands", len(cmds))

	waitCtx := ctx
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	res, err := manager.Wait(waitCtx, eng.ID())
	if err != nil {
		env.logger.Warn("cancelling run", "run_id", eng.ID(), "reason", err)
		//nolint:errcheck // the run may finish on its own first
		manager.Cancel(eng.ID())
		if res, err = manager.Wait(context.Background(), eng.ID()); err != nil {
			return reportExit(out, CodeRunFailed, WrapExitError(ExitFailure, "waiting for run", err))
		}
	}

	if err := out.Success(runReport{Result: res, verbose: opts.Verbose}); err != nil {
		return err
	}
	if res.State != automation.StateCompleted {
		return NewExitError(ExitFailure, fmt.Sprintf("run %s", res.State))
	}
	return nil
}

// seedVariables merges name=value pairs over the document's variables.
func seedVariables(base map[string]any, pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return base, nil
	}
	vars := make(map[string]any, len(base)+len(pairs))
	for k, v := range base {
		vars[k] = v
	}
	for _, p := range pairs {
		name, value, ok := strings.Cut(p, "=")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("%q is not name=value", p)
		}
		vars[strings.TrimSpace(name)] = value
	}
	return vars, nil
}

func shutdownManager(m *automation.Manager, env *environment) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := m.Shutdown(ctx); err != nil {
		env.logger.Error("error shutting down runs", "error", err)
	}
}

// ─── Script loading ─────────────────────────────────────────────────────────

// resolveScript returns name itself when it names an existing file,
// otherwise its location inside folder.
func resolveScript(folder, name string) (string, error) {
	if info, err := os.Stat(name); err == nil && !info.IsDir() {
		return name, nil
	}
	return script.ResolvePath(folder, name)
}

// loadScript resolves, parses and builds a script. Errors are ExitErrors.
func loadScript(env *environment, name string) (*script.Document, []automation.Command, error) {
	path, err := resolveScript(env.cfg.Client.ScriptsFolder, name)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "invalid script name", err)
	}
	doc, cmds, err := env.loader.Load(path)
	if err != nil {
		if errors.Is(err, script.ErrScriptNotFound) {
			return nil, nil, WrapExitError(ExitCommandError, "script not found", err)
		}
		return nil, nil, WrapExitError(ExitFailure, "invalid script", err)
	}
	return doc, cmds, nil
}

func scriptErrorCode(err error) string {
	if errors.Is(err, script.ErrScriptNotFound) {
		return CodeNotFound
	}
	return CodeInvalidScript
}

// problems flattens joined errors into one line each.
func problems(err error) []string {
	if err == nil {
		return nil
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var out []string
		for _, e := range joined.Unwrap() {
			out = append(out, problems(e)...)
		}
		return out
	}
	return []string{err.Error()}
}

// reportExit writes err through the formatter and returns it as an ExitError.
// For an ExitError the message is reported and the cause becomes the details.
func reportExit(out *OutputFormatter, code string, err error) error {
	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		exitErr = WrapExitError(ExitFailure, "command failed", err)
	}
	var details []string
	if exitErr.Err != nil {
		details = problems(exitErr.Err)
	}
	if ferr := out.Error(code, exitErr.Message, details); ferr != nil {
		return ferr
	}
	return exitErr
}

// ─── Output ─────────────────────────────────────────────────────────────────

// runReport renders a run result.
type runReport struct {
	*automation.Result
	verbose bool
}

// RenderText writes a short human-readable summary.
func (r runReport) RenderText(w io.Writer) {
	name := r.Name
	if name == "" {
		name = "(unnamed)"
	}
	fmt.Fprintf(w, "run %s %s: %s\n", r.RunID, name, r.State)
	fmt.Fprintf(w, "  commands: %d total, %d executed, %d failed, %d skipped\n",
		r.Total, r.Executed, r.Failed, r.Skipped)
	if r.DurationMS != nil {
		fmt.Fprintf(w, "  duration: %s\n", time.Duration(*r.DurationMS)*time.Millisecond)
	}
	for _, e := range r.Errors {
		fmt.Fprintf(w, "  error at #%d %s: %s\n", e.Index, e.Kind, e.Message)
	}
	if r.verbose && len(r.Variables) > 0 {
		fmt.Fprintln(w, "  variables:")
		names := make([]string, 0, len(r.Variables))
		for n := range r.Variables {
			names = append(names, n)
		}
		slices.Sort(names)
		for _, n := range names {
			fmt.Fprintf(w, "    %s = %s\n", n, r.Variables[n])
		}
	}
}
