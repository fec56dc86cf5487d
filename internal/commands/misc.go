package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ishandutta2007/taskt/internal/automation"
	"github.com/ishandutta2007/taskt/internal/script"
)

func (b builder) misc() []script.Descriptor {
	return []script.Descriptor{
		{
			Kind:        "comment",
			Group:       GroupMisc,
			Description: "Adds a note to the script. Does nothing when run.",
			Properties: []script.PropertySpec{
				{Name: "text", Raw: true},
			},
			Display: func(p map[string]string) string { return p["text"] },
			Run:     func(context.Context, *automation.RunContext, map[string]string) error { return nil },
		},
		{
			Kind:        "set_variable",
			Group:       GroupVariable,
			Description: "Stores a value in a variable. Reference it later as {{{name}}}.",
			Properties: []script.PropertySpec{
				{Name: "name", Required: true, Description: "variable name, without markers"},
				{Name: "value"},
			},
			Validate: func(p map[string]string) []string {
				name := strings.TrimSpace(p["name"])
				if name == "" || b.dynamic(name) {
					return nil
				}
				if err := automation.ValidateVariableName(name); err != nil {
					return []string{err.Error()}
				}
				return nil
			},
			Display: func(p map[string]string) string { return p["name"] + " = " + p["value"] },
			Run: func(_ context.Context, rc *automation.RunContext, p map[string]string) error {
				return rc.SetVariable(strings.TrimSpace(p["name"]), p["value"])
			},
		},
		{
			Kind:        "get_length",
			Group:       GroupVariable,
			Description: "Counts the characters of a text and stores the count.",
			Properties: []script.PropertySpec{
				{Name: "input"},
				{Name: "output", Required: true, Description: "variable receiving the length"},
			},
			Display: func(p map[string]string) string { return "length of " + p["input"] + " into " + p["output"] },
			Run: func(_ context.Context, rc *automation.RunContext, p map[string]string) error {
				return setOutput(rc, p, "output", utf8.RuneCountInString(p["input"]))
			},
		},
		{
			Kind:        "delay",
			Group:       GroupEngine,
			Description: "Pauses the script for a number of milliseconds.",
			Properties: []script.PropertySpec{
				{Name: "milliseconds", Required: true, Default: "1000"},
			},
			Validate: func(p map[string]string) []string { return b.checkInt(p, "milliseconds", 0) },
			Display:  func(p map[string]string) string { return p["milliseconds"] + "ms" },
			Run: func(ctx context.Context, _ *automation.RunContext, p map[string]string) error {
				ms, err := intProp(p, "milliseconds", 0)
				if err != nil {
					return err
				}
				if ms < 0 {
					return fmt.Errorf("property %q: must not be negative", "milliseconds")
				}
				t := time.NewTimer(time.Duration(ms) * time.Millisecond)
				defer t.Stop()
				select {
				case <-t.C:
					return nil
				case <-ctx.Done():
					return ctx.Err()
				}
			},
		},
		{
			Kind:        "throw_error",
			Group:       GroupEngine,
			Description: "Fails the command with the given message.",
			Properties: []script.PropertySpec{
				{Name: "message", Default: "error thrown by script"},
			},
			Display: func(p map[string]string) string { return p["message"] },
			Run: func(_ context.Context, _ *automation.RunContext, p map[string]string) error {
				return errors.New(p["message"])
			},
		},
		{
			Kind:        "stop_script",
			Group:       GroupEngine,
			Description: "Ends the script successfully without running later commands.",
			Run: func(context.Context, *automation.RunContext, map[string]string) error {
				return automation.ErrStopRequested
			},
		},
	}
}
