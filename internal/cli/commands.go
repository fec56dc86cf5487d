package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ishandutta2007/taskt/internal/script"
)

// CommandsOptions holds flags for the commands command.
type CommandsOptions struct {
	*RootOptions
	Group string
	Kind  string
}

// NewCommandsCommand creates the commands command.
func NewCommandsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CommandsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "commands",
		Short: "List the commands scripts can use",
		Long: `List the command catalog.

Descriptions are shown with the configured variable markers and keyword
names. Use --kind for the properties of a single command.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCommands(opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Group, "group", "g", "", "only list this group")
	cmd.Flags().StringVarP(&opts.Kind, "kind", "k", "", "describe one command")

	return cmd
}

func runCommands(opts *CommandsOptions, cmd *cobra.Command) error {
	out := opts.formatter(cmd)

	env, err := loadEnvironment(opts.RootOptions, cmd)
	if err != nil {
		return reportExit(out, CodeConfig, err)
	}
	cat := env.loader.Catalog()

	if opts.Kind != "" {
		d, err := cat.Lookup(opts.Kind)
		if err != nil {
			return reportExit(out, CodeNotFound, WrapExitError(ExitCommandError, "unknown command", err))
		}
		return out.Success(commandDetail(env.loader.Help(*d)))
	}

	var list commandList
	for _, d := range cat.Descriptors() {
		if opts.Group != "" && d.Group != opts.Group {
			continue
		}
		list = append(list, env.loader.Help(d))
	}
	return out.Success(list)
}

type commandList []script.Descriptor

// RenderText writes a kind/group/description table.
func (l commandList) RenderText(w io.Writer) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KIND\tGROUP\tDESCRIPTION")
	for _, d := range l {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", d.Kind, d.Group, d.Description)
	}
	//nolint:errcheck // writer errors surface on the next write
	tw.Flush()
}

type commandDetail script.Descriptor

// RenderText writes a descriptor with its properties.
func (d commandDetail) RenderText(w io.Writer) {
	fmt.Fprintf(w, "%s (%s)\n  %s\n", d.Kind, d.Group, d.Description)
	if len(d.Properties) == 0 {
		return
	}
	fmt.Fprintln(w, "properties:")
	for _, p := range d.Properties {
		flags := ""
		if p.Required {
			flags = " (required)"
		}
		if p.Default != "" {
			flags += fmt.Sprintf(" [default %s]", p.Default)
		}
		fmt.Fprintf(w, "  %s%s: %s\n", p.Name, flags, p.Description)
	}
}
