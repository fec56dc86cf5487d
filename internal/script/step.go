package script

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/ishandutta2007/taskt/internal/automation"
)

// Step binds a descriptor to the property values of one document entry.
// It implements automation.Command.
type Step struct {
	desc            *Descriptor
	values          map[string]string
	continueOnError bool
	enabled         bool
	comment         string
}

var _ automation.Command = (*Step)(nil)

// NewStep creates a step. Missing properties take their declared defaults.
func NewStep(desc *Descriptor, values map[string]string, continueOnError, enabled bool) *Step {
	merged := make(map[string]string, len(desc.Properties)+len(values))
	for _, p := range desc.Properties {
		if p.Default != "" {
			merged[p.Name] = p.Default
		}
	}
	for k, v := range values {
		merged[k] = v
	}
	return &Step{
		desc:            desc,
		values:          merged,
		continueOnError: continueOnError,
		enabled:         enabled,
	}
}

// WithComment attaches the document comment shown by Describe.
func (s *Step) WithComment(comment string) *Step {
	s.comment = comment
	return s
}

func (s *Step) Kind() string          { return s.desc.Kind }
func (s *Step) ContinueOnError() bool { return s.continueOnError }
func (s *Step) Enabled() bool         { return s.enabled }

// Values returns a copy of the unresolved property values.
func (s *Step) Values() map[string]string {
	out := make(map[string]string, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// Properties returns the values the engine resolves. Raw properties are
// excluded and passed through untouched by Execute.
func (s *Step) Properties() map[string]string {
	out := make(map[string]string, len(s.values))
	for k, v := range s.values {
		if spec, ok := s.desc.Property(k); ok && spec.Raw {
			continue
		}
		out[k] = v
	}
	return out
}

// Validate checks required and unknown properties, then runs the
// descriptor's own checks.
func (s *Step) Validate() []string {
	var problems []string
	for _, p := range s.desc.Properties {
		if p.Required && strings.TrimSpace(s.values[p.Name]) == "" {
			problems = append(problems, fmt.Sprintf("property %q is required", p.Name))
		}
	}

	var unknown []string
	for k := range s.values {
		if _, ok := s.desc.Property(k); !ok {
			unknown = append(unknown, k)
		}
	}
	sort.Strings(unknown)
	for _, k := range unknown {
		problems = append(problems, fmt.Sprintf("unknown property %q", k))
	}

	if s.desc.Validate != nil {
		problems = append(problems, s.desc.Validate(s.Values())...)
	}
	return problems
}

// Execute merges the raw properties back in and runs the descriptor.
func (s *Step) Execute(ctx context.Context, rc *automation.RunContext, props map[string]string) error {
	all := make(map[string]string, len(s.values))
	for k, v := range s.values {
		if spec, ok := s.desc.Property(k); ok && spec.Raw {
			all[k] = v
		}
	}
	for k, v := range props {
		all[k] = v
	}
	return s.desc.Run(ctx, rc, all)
}

// Describe returns a one-line summary such as "set_variable: x = 1".
func (s *Step) Describe() string {
	var b strings.Builder
	b.WriteString(s.desc.Kind)
	if s.desc.Display != nil {
		if d := s.desc.Display(s.values); d != "" {
			b.WriteString(": ")
			b.WriteString(d)
		}
	}
	if s.comment != "" {
		b.WriteString(" # ")
		b.WriteString(s.comment)
	}
	return b.String()
}
