package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ishandutta2007/taskt/internal/automation"
)

// ValidationResult holds the validation outcome of one script.
type ValidationResult struct {
	Script   string   `json:"script"`
	Name     string   `json:"name,omitempty"`
	Commands int      `json:"commands"`
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors,omitempty"`
}

type validationReport []ValidationResult

// RenderText writes one line per script and one per problem.
func (r validationReport) RenderText(w io.Writer) {
	for _, res := range r {
		if res.Valid {
			fmt.Fprintf(w, "ok   %s (%d commands)\n", res.Script, res.Commands)
			continue
		}
		fmt.Fprintf(w, "FAIL %s\n", res.Script)
		for _, e := range res.Errors {
			fmt.Fprintf(w, "  - %s\n", e)
		}
	}
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <script>...",
		Short: "Check scripts without running them",
		Long: `Check scripts without running them.

Every command is looked up in the catalog and validated with its properties,
and seeded variable names are checked. Nothing is executed and no instance
is created.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, names []string, cmd *cobra.Command) error {
	out := opts.formatter(cmd)

	env, err := loadEnvironment(opts, cmd)
	if err != nil {
		return reportExit(out, CodeConfig, err)
	}

	report := make(validationReport, 0, len(names))
	failed := 0
	for _, name := range names {
		res := validateScript(env, name)
		if !res.Valid {
			failed++
		}
		report = append(report, res)
	}

	if err := out.Success(report); err != nil {
		return err
	}
	if failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d script(s) invalid", failed, len(names)))
	}
	return nil
}

func validateScript(env *environment, name string) ValidationResult {
	res := ValidationResult{Script: name}

	doc, cmds, err := loadScript(env, name)
	if err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) && exitErr.Err != nil {
			res.Errors = append([]string{exitErr.Message}, problems(exitErr.Err)...)
		} else {
			res.Errors = problems(err)
		}
		return res
	}
	res.Name = doc.Name
	res.Commands = len(cmds)

	if err := automation.ValidateSequence(cmds, doc.InitialVariables()); err != nil {
		for _, ve := range automation.ValidationErrors(err) {
			res.Errors = append(res.Errors, ve.Error())
		}
		if len(res.Errors) == 0 {
			res.Errors = problems(err)
		}
		return res
	}

	res.Valid = true
	return res
}
