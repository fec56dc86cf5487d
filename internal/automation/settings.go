package automation

import (
	"strings"
	"time"
)

// MissingVariablePolicy decides what Resolve does with a reference to a
// variable that does not exist.
type MissingVariablePolicy string

const (
	// MissingVariableCreate creates the variable with an empty value.
	MissingVariableCreate MissingVariablePolicy = "create"
	// MissingVariableFail aborts resolution with ErrUnresolvedVariable.
	MissingVariableFail MissingVariablePolicy = "fail"
)

// Settings is the read-only engine configuration for a run.
type Settings struct {
	VariableStart    string
	VariableEnd      string
	MissingVariables MissingVariablePolicy

	// CancellationKey names the hotkey a desktop front-end binds to Cancel.
	// The engine only reports it.
	CancellationKey string

	// CommandDelay is inserted between consecutive commands.
	CommandDelay time.Duration

	// OverrideExistingInstances lets Register replace an instance of the same name.
	OverrideExistingInstances bool

	// TrackMetrics enables per-command metric points.
	TrackMetrics bool

	// DiagnosticLogging logs every command at debug level.
	DiagnosticLogging bool

	// InstanceNames overrides, per kind, the instance name a command uses
	// when its instance property is empty.
	InstanceNames map[InstanceKind]string

	Keywords []Keyword
}

var defaultInstanceNames = map[InstanceKind]string{
	KindBrowser:   "RPABrowser",
	KindStopwatch: "RPAStopwatch",
	KindExcel:     "RPAExcel",
	KindWord:      "RPAWord",
	KindDatabase:  "RPADB",
	KindProcess:   "RPAProcess",
}

// DefaultInstanceName returns the instance name commands of kind fall back
// to. An unknown kind with no override returns "".
func (s Settings) DefaultInstanceName(kind InstanceKind) string {
	if n := strings.TrimSpace(s.InstanceNames[kind]); n != "" {
		return n
	}
	return defaultInstanceNames[kind]
}

// DefaultSettings returns the stock engine settings with no inter-command delay.
func DefaultSettings() Settings {
	return Settings{
		VariableStart:    "{",
		VariableEnd:      "}",
		MissingVariables: MissingVariableCreate,
		CancellationKey:  "Pause",
		Keywords:         DefaultKeywords(),
	}
}

// Codec returns a keyword codec for these settings.
func (s Settings) Codec() *Codec {
	return NewCodec(s.VariableStart, s.VariableEnd, s.Keywords)
}
