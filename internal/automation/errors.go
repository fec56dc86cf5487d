package automation

import (
	"errors"
	"fmt"
)

// Domain errors for the automation package.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, automation.ErrInstanceNotFound) {
//	    // handle missing instance
//	}
var (
	// ErrValidation is wrapped by every pre-run validation failure.
	ErrValidation = errors.New("automation: validation failed")

	// ErrUnresolvedVariable is returned when a referenced variable is missing
	// and the missing-variable policy is "fail".
	ErrUnresolvedVariable = errors.New("automation: unresolved variable")

	// ErrInvalidVariableName is returned for reserved or malformed variable names.
	ErrInvalidVariableName = errors.New("automation: invalid variable name")

	// ErrInstanceNotFound is returned when a named instance is not registered.
	ErrInstanceNotFound = errors.New("automation: instance not found")

	// ErrDuplicateInstance is returned when registering a name that is taken.
	ErrDuplicateInstance = errors.New("automation: instance already exists")

	// ErrInstanceKindMismatch is returned when an instance exists under a different kind.
	ErrInstanceKindMismatch = errors.New("automation: instance kind mismatch")

	// ErrCommandExecution is wrapped by every command failure recorded on a run.
	ErrCommandExecution = errors.New("automation: command failed")

	// ErrInvalidState is returned for operations not allowed in the current run state.
	ErrInvalidState = errors.New("automation: invalid state")

	// ErrRunNotFound is returned when a run ID is unknown.
	ErrRunNotFound = errors.New("automation: run not found")

	// ErrStopRequested is returned by a command to end the run early
	// without recording an error.
	ErrStopRequested = errors.New("automation: stop requested")
)

// ValidationError describes one problem found while validating a command
// sequence before execution. Index is 1-based; zero means the problem is
// not tied to a command (for example a seeded variable name).
type ValidationError struct {
	Index   int
	Kind    string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Index == 0 {
		return fmt.Sprintf("validation: %s", e.Message)
	}
	return fmt.Sprintf("validation: command %d (%s): %s", e.Index, e.Kind, e.Message)
}

// Unwrap allows errors.Is(err, ErrValidation).
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// CommandError is the failure of a single command during a run.
type CommandError struct {
	Index int // 1-based position in the sequence
	Kind  string
	Err   error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command %d (%s): %v", e.Index, e.Kind, e.Err)
}

// Unwrap exposes both ErrCommandExecution and the underlying cause.
func (e *CommandError) Unwrap() []error {
	return []error{ErrCommandExecution, e.Err}
}
