package automation

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// maxVariableNameLength bounds variable names.
const maxVariableNameLength = 128

// reservedVariableNames are key names understood by the keystroke
// commands; a variable with one of these names would be ambiguous.
var reservedVariableNames = map[string]struct{}{}

// disallowedVariableChars may not appear anywhere in a variable name.
var disallowedVariableChars = []string{
	"+", "-", "*", "%",
	"[", "]", "{", "}",
	".", " ",
	"\"", "\n", "\r", "\t",
	SentinelVariableStart, SentinelVariableEnd,
	SentinelKeywordStart, SentinelKeywordEnd,
}

func init() {
	names := []string{
		"BACKSPACE", "BS", "BKSP",
		"BREAK",
		"CAPSLOCK",
		"DELETE", "DEL",
		"UP", "DOWN", "LEFT", "RIGHT",
		"END",
		"ENTER",
		"INSERT", "INS",
		"NUMLOCK",
		"PGDN", "PGUP",
		"SCROLLROCK",
		"TAB",
		"ADD", "SUBTRACT", "MULTIPLY", "DIVIDE",
		"WIN_KEY",
	}
	for i := 1; i <= 12; i++ {
		names = append(names, fmt.Sprintf("F%d", i))
	}
	for _, n := range names {
		reservedVariableNames[n] = struct{}{}
	}
}

// ValidateVariableName checks that name can be used as a variable.
func ValidateVariableName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: name is empty", ErrInvalidVariableName)
	}
	if len(name) > maxVariableNameLength {
		return fmt.Errorf("%w: %q exceeds %d characters", ErrInvalidVariableName, name, maxVariableNameLength)
	}
	if _, reserved := reservedVariableNames[name]; reserved {
		return fmt.Errorf("%w: %q is a reserved key name", ErrInvalidVariableName, name)
	}
	for _, c := range disallowedVariableChars {
		if strings.Contains(name, c) {
			return fmt.Errorf("%w: %q contains %q", ErrInvalidVariableName, name, c)
		}
	}
	return nil
}

// ValidateSequence checks every enabled command and every seeded variable
// name, collecting all problems. The returned error joins one
// *ValidationError per problem, or is nil.
func ValidateSequence(commands []Command, initial map[string]any) error {
	var errs []error

	names := make([]string, 0, len(initial))
	for name := range initial {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := ValidateVariableName(name); err != nil {
			errs = append(errs, &ValidationError{Message: err.Error()})
		}
	}

	for i, cmd := range commands {
		if cmd == nil {
			errs = append(errs, &ValidationError{Index: i + 1, Message: "command is nil"})
			continue
		}
		if !cmd.Enabled() {
			continue
		}
		for _, msg := range cmd.Validate() {
			errs = append(errs, &ValidationError{Index: i + 1, Kind: cmd.Kind(), Message: msg})
		}
	}

	return errors.Join(errs...)
}

// ValidationErrors unpacks the problems joined by ValidateSequence.
func ValidationErrors(err error) []*ValidationError {
	if err == nil {
		return nil
	}
	var out []*ValidationError
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		for _, e := range joined.Unwrap() {
			out = append(out, ValidationErrors(e)...)
		}
		return out
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		out = append(out, ve)
	}
	return out
}

// GenerateID creates a new UUID for a run.
func GenerateID() string {
	return uuid.New().String()
}
