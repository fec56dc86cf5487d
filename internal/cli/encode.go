package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ishandutta2007/taskt/internal/script"
)

// EncodeOptions holds flags for the encode command.
type EncodeOptions struct {
	*RootOptions
	Output string
}

// NewEncodeCommand creates the encode command.
func NewEncodeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EncodeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "encode <file>",
		Short: "Convert a hand-written script to storage form",
		Long: `Convert a script written with display markers to storage form.

Variable markers and keyword names in each property are replaced by their
internal tokens according to the property's domain, so the saved file is
independent of later marker or keyword changes in the settings.

Example:
  taskt encode draft.yaml -o scripts/report.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEncode(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write to this file instead of stdout")

	return cmd
}

func runEncode(opts *EncodeOptions, path string, cmd *cobra.Command) error {
	out := opts.formatter(cmd)

	env, err := loadEnvironment(opts.RootOptions, cmd)
	if err != nil {
		return reportExit(out, CodeConfig, err)
	}

	doc, err := script.ParseFile(path)
	if err != nil {
		if errors.Is(err, script.ErrScriptNotFound) {
			return reportExit(out, CodeNotFound, WrapExitError(ExitCommandError, "script not found", err))
		}
		return reportExit(out, CodeInvalidScript, WrapExitError(ExitFailure, "invalid script", err))
	}

	encoded, err := env.loader.Encode(doc)
	if err != nil {
		return reportExit(out, CodeInvalidScript, WrapExitError(ExitFailure, "encoding script", err))
	}

	data, err := script.Marshal(encoded)
	if err != nil {
		return reportExit(out, CodeInvalidScript, WrapExitError(ExitFailure, "encoding script", err))
	}

	if opts.Output == "" {
		if opts.Format == "json" {
			return out.Success(encoded)
		}
		_, err := cmd.OutOrStdout().Write(data)
		return err
	}

	if err := os.WriteFile(opts.Output, data, 0o644); err != nil { //nolint:gosec // scripts are not secret
		return reportExit(out, CodeConfig, WrapExitError(ExitCommandError, "writing script", err))
	}
	return out.Success(fmt.Sprintf("wrote %s (%d commands)", opts.Output, len(encoded.Commands)))
}
