package automation

import (
	"context"
	"fmt"
)

// Command is one step of a script.
//
// Properties returns the text properties that the engine resolves before
// each execution; Execute receives the resolved values under the same keys.
// Validate returns human-readable problems and is called once before the
// run starts. Describe returns a one-line summary for logs and listings.
type Command interface {
	Kind() string
	Properties() map[string]string
	Validate() []string
	Execute(ctx context.Context, rc *RunContext, props map[string]string) error
	Describe() string
	ContinueOnError() bool
	Enabled() bool
}

// RunContext is what a command sees of its run: the variable table, the
// instance registry and the read-only settings.
type RunContext struct {
	RunID     string
	Variables *Variables
	Instances *Registry
	Settings  Settings
	Codec     *Codec
	Logger    Logger

	index  int
	engine *Engine
}

// Index returns the 1-based position of the executing command.
func (rc *RunContext) Index() int {
	return rc.index
}

// Resolve substitutes variable references using the run's settings.
func (rc *RunContext) Resolve(text string) (string, error) {
	return Resolve(text, rc.Variables, rc.Settings)
}

// SetVariable stores a value after checking the name.
func (rc *RunContext) SetVariable(name string, value any) error {
	if err := ValidateVariableName(name); err != nil {
		return err
	}
	rc.Variables.Set(name, value)
	return nil
}

// Variable returns the formatted value of a variable.
func (rc *RunContext) Variable(name string) (string, error) {
	v, ok := rc.Variables.Text(name)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnresolvedVariable, name)
	}
	return v, nil
}

// CancelRequested reports whether the run has been asked to cancel.
func (rc *RunContext) CancelRequested() bool {
	if rc.engine == nil {
		return false
	}
	cancel, _ := rc.engine.flags()
	return cancel
}

// PauseRequested reports whether the run has been asked to pause.
func (rc *RunContext) PauseRequested() bool {
	if rc.engine == nil {
		return false
	}
	_, pause := rc.engine.flags()
	return pause
}

// NewRunContext builds a standalone context, for exercising commands
// outside an engine.
func NewRunContext(settings Settings, vars *Variables, instances *Registry, logger Logger) *RunContext {
	if vars == nil {
		vars = NewVariables()
	}
	if instances == nil {
		instances = NewRegistry(settings.OverrideExistingInstances, logger)
	}
	if logger == nil {
		logger = noopLogger{}
	}
	return &RunContext{
		RunID:     GenerateID(),
		Variables: vars,
		Instances: instances,
		Settings:  settings,
		Codec:     settings.Codec(),
		Logger:    logger,
	}
}
