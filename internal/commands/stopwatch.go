package commands

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ishandutta2007/taskt/internal/automation"
	"github.com/ishandutta2007/taskt/internal/script"
)

// Stopwatch measures elapsed time across commands.
type Stopwatch struct {
	mu      sync.Mutex
	now     func() time.Time
	started time.Time
	elapsed time.Duration
	running bool
}

// NewStopwatch creates a stopped stopwatch.
func NewStopwatch() *Stopwatch {
	return &Stopwatch{now: time.Now}
}

// Start resumes timing. Starting a running stopwatch is a no-op.
func (s *Stopwatch) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		s.started = s.now()
		s.running = true
	}
}

// Stop pauses timing and keeps the elapsed total.
func (s *Stopwatch) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		s.elapsed += s.now().Sub(s.started)
		s.running = false
	}
}

// Reset stops the stopwatch and clears the total.
func (s *Stopwatch) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.elapsed = 0
	s.running = false
}

// Restart clears the total and starts timing.
func (s *Stopwatch) Restart() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.elapsed = 0
	s.started = s.now()
	s.running = true
}

// Elapsed returns the total measured time.
func (s *Stopwatch) Elapsed() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return s.elapsed + s.now().Sub(s.started)
	}
	return s.elapsed
}

// Running reports whether the stopwatch is timing.
func (s *Stopwatch) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// FormatElapsed renders d as "duration" (Go syntax, default), "ms" or "seconds".
func FormatElapsed(d time.Duration, format string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "duration":
		return d.String(), nil
	case "ms", "milliseconds":
		return strconv.FormatInt(d.Milliseconds(), 10), nil
	case "s", "seconds":
		return strconv.FormatFloat(d.Seconds(), 'f', 3, 64), nil
	}
	return "", fmt.Errorf("unknown elapsed format %q", format)
}

func (b builder) stopwatch() []script.Descriptor {
	def := b.settings.DefaultInstanceName(automation.KindStopwatch)
	instance := script.PropertySpec{Name: "instance", Default: def}

	return []script.Descriptor{
		{
			Kind:        "stopwatch_create",
			Group:       GroupStopwatch,
			Description: "Creates a named stopwatch instance.",
			Properties: []script.PropertySpec{
				instance,
				{Name: "start", Default: "true", Description: "start timing immediately"},
			},
			Display: func(p map[string]string) string { return instanceName(p, def) },
			Run: func(_ context.Context, rc *automation.RunContext, p map[string]string) error {
				start, err := boolProp(p, "start", true)
				if err != nil {
					return err
				}
				sw := NewStopwatch()
				if start {
					sw.Start()
				}
				return rc.Instances.Register(instanceName(p, def), automation.KindStopwatch, sw)
			},
		},
		{
			Kind:        "stopwatch_action",
			Group:       GroupStopwatch,
			Description: "Starts, stops, resets or restarts a stopwatch.",
			Properties: []script.PropertySpec{
				instance,
				{Name: "action", Required: true},
			},
			Validate: func(p map[string]string) []string {
				return b.checkOneOf(p, "action", "start", "stop", "reset", "restart")
			},
			Display: func(p map[string]string) string {
				return p["action"] + " " + instanceName(p, def)
			},
			Run: func(_ context.Context, rc *automation.RunContext, p map[string]string) error {
				sw, err := automation.InstanceAs[*Stopwatch](rc.Instances, instanceName(p, def), automation.KindStopwatch)
				if err != nil {
					return err
				}
				switch strings.ToLower(strings.TrimSpace(p["action"])) {
				case "start":
					sw.Start()
				case "stop":
					sw.Stop()
				case "reset":
					sw.Reset()
				case "restart":
					sw.Restart()
				default:
					return fmt.Errorf("unknown stopwatch action %q", p["action"])
				}
				return nil
			},
		},
		{
			Kind:        "stopwatch_measure",
			Group:       GroupStopwatch,
			Description: "Stores the elapsed time of a stopwatch in a variable.",
			Properties: []script.PropertySpec{
				instance,
				{Name: "output", Required: true},
				{Name: "format", Default: "duration", Description: "duration, ms or seconds"},
			},
			Validate: func(p map[string]string) []string {
				return b.checkOneOf(p, "format", "duration", "ms", "milliseconds", "s", "seconds")
			},
			Display: func(p map[string]string) string {
				return instanceName(p, def) + " into " + p["output"]
			},
			Run: func(_ context.Context, rc *automation.RunContext, p map[string]string) error {
				sw, err := automation.InstanceAs[*Stopwatch](rc.Instances, instanceName(p, def), automation.KindStopwatch)
				if err != nil {
					return err
				}
				text, err := FormatElapsed(sw.Elapsed(), p["format"])
				if err != nil {
					return err
				}
				return setOutput(rc, p, "output", text)
			},
		},
		{
			Kind:        "stopwatch_close",
			Group:       GroupStopwatch,
			Description: "Removes a stopwatch instance.",
			Properties:  []script.PropertySpec{instance},
			Display:     func(p map[string]string) string { return instanceName(p, def) },
			Run: func(_ context.Context, rc *automation.RunContext, p map[string]string) error {
				name := instanceName(p, def)
				if _, err := rc.Instances.Lookup(name, automation.KindStopwatch); err != nil {
					return err
				}
				return rc.Instances.Release(name)
			},
		},
	}
}
