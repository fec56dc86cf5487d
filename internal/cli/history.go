package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ishandutta2007/taskt/internal/automation"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Limit     int
	PruneDays int
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "Show recorded runs",
		Long: `Show runs recorded in the run-history database.

Without an argument the most recent runs are listed. With a run id the full
record is shown, including its errors and final variables. Requires
database.enabled in the settings file.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(cmd.Context(), opts, args, cmd)
		},
	}

	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 20, "number of runs to list")
	cmd.Flags().IntVar(&opts.PruneDays, "prune-days", 0, "delete runs started more than this many days ago")

	return cmd
}

func runHistory(ctx context.Context, opts *HistoryOptions, args []string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	out := opts.formatter(cmd)

	env, err := loadEnvironment(opts.RootOptions, cmd)
	if err != nil {
		return reportExit(out, CodeConfig, err)
	}
	if !env.cfg.Database.Enabled {
		return reportExit(out, CodeConfig, NewExitError(ExitCommandError, "run history is disabled (database.enabled)"))
	}

	db, repo, err := openHistory(ctx, env)
	if err != nil {
		return reportExit(out, CodeConfig, WrapExitError(ExitCommandError, "opening run history", err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			env.logger.Error("error closing database", "error", err)
		}
	}()

	if opts.PruneDays > 0 {
		cutoff := time.Now().AddDate(0, 0, -opts.PruneDays)
		n, err := repo.DeleteRunsBefore(ctx, cutoff)
		if err != nil {
			return reportExit(out, CodeConfig, WrapExitError(ExitCommandError, "pruning run history", err))
		}
		out.VerboseLog("pruned %d run(s) started before %s", n, cutoff.Format(time.RFC3339))
	}

	if len(args) == 1 {
		run, err := repo.GetRun(ctx, args[0])
		if err != nil {
			if errors.Is(err, automation.ErrRunNotFound) {
				return reportExit(out, CodeNotFound, WrapExitError(ExitFailure, "run not found", err))
			}
			return reportExit(out, CodeConfig, WrapExitError(ExitCommandError, "reading run history", err))
		}
		return out.Success(runReport{Result: run, verbose: true})
	}

	if opts.Limit < 1 {
		return reportExit(out, CodeConfig, NewExitError(ExitCommandError, "--limit must be at least 1"))
	}
	runs, err := repo.ListRuns(ctx, opts.Limit)
	if err != nil {
		return reportExit(out, CodeConfig, WrapExitError(ExitCommandError, "reading run history", err))
	}
	return out.Success(historyList(runs))
}

type historyList []automation.Result

// RenderText writes one row per run.
func (h historyList) RenderText(w io.Writer) {
	if len(h) == 0 {
		fmt.Fprintln(w, "no runs recorded")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tNAME\tSTATE\tSTARTED\tCOMMANDS\tFAILED")
	for _, r := range h {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\n",
			r.RunID, r.Name, r.State, r.StartedAt.Local().Format(time.DateTime), r.Executed, r.Failed)
	}
	//nolint:errcheck // writer errors surface on the next write
	tw.Flush()
}
