package automation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// WSHub is the interface for broadcasting WebSocket events.
type WSHub interface {
	// Broadcast sends an event to all clients subscribed to the given channel.
	Broadcast(channel string, payload any)
}

// EventPublisher forwards run events to an external transport such as MQTT.
type EventPublisher interface {
	PublishRunEvent(ev Event) error
}

// MetricsRecorder receives one point per executed command when metric
// tracking is enabled in the settings.
type MetricsRecorder interface {
	RecordCommand(m CommandMetric)
}

// RunStore persists run records.
type RunStore interface {
	CreateRun(ctx context.Context, r *Result) error
	UpdateRun(ctx context.Context, r *Result) error
}

// Options carries the optional collaborators of an Engine. Every field may
// be left zero.
type Options struct {
	ID        string // generated when empty
	Name      string
	Logger    Logger
	Hub       WSHub
	Publisher EventPublisher
	Metrics   MetricsRecorder
	Store     RunStore
}

// Engine executes one command sequence.
//
// An Engine is single-use: Execute may be called once, from the ready
// state. Pause, Resume, Cancel and Status are safe to call from any
// goroutine while Execute runs; they only set flags that the run goroutine
// observes between commands.
type Engine struct {
	id        string
	name      string
	settings  Settings
	codec     *Codec
	logger    Logger
	hub       WSHub
	publisher EventPublisher
	metrics   MetricsRecorder
	store     RunStore

	mu              sync.Mutex
	state           State
	position        int
	total           int
	currentKind     string
	errs            []RunError
	pauseRequested  bool
	cancelRequested bool
	resume          chan struct{} // closed by Resume
	cancelRun       context.CancelFunc
	instances       *Registry
	startedAt       time.Time
	completedAt     time.Time
	result          *Result
	done            chan struct{}
}

// NewEngine creates an engine in the ready state.
func NewEngine(settings Settings, opts Options) *Engine {
	id := opts.ID
	if id == "" {
		id = GenerateID()
	}
	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	return &Engine{
		id:        id,
		name:      opts.Name,
		settings:  settings,
		codec:     settings.Codec(),
		logger:    logger,
		hub:       opts.Hub,
		publisher: opts.Publisher,
		metrics:   opts.Metrics,
		store:     opts.Store,
		state:     StateReady,
		done:      make(chan struct{}),
	}
}

// ID returns the run identifier.
func (e *Engine) ID() string { return e.id }

// Name returns the run name given at construction.
func (e *Engine) Name() string { return e.name }

// Settings returns the run settings.
func (e *Engine) Settings() Settings { return e.settings }

// Done is closed once the run reaches a terminal state.
func (e *Engine) Done() <-chan struct{} { return e.done }

// State returns the current state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Result returns the outcome, or nil while the run is not terminal.
func (e *Engine) Result() *Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.result
}

// Validate checks a command sequence without running it.
func (e *Engine) Validate(commands []Command, initial map[string]any) error {
	return ValidateSequence(commands, initial)
}

// Execute runs commands to completion, cancellation or the first failure
// of a command that does not continue on error.
//
// Validation problems are returned before anything executes and leave the
// engine ready. Calling Execute on an engine that is not ready returns
// ErrInvalidState. A faulted run returns its *CommandError alongside the
// result; completed and cancelled runs return a nil error.
func (e *Engine) Execute(ctx context.Context, commands []Command, initial map[string]any) (*Result, error) {
	run, err := e.begin(ctx, commands, initial)
	if err != nil {
		return nil, err
	}
	return run()
}

// begin validates commands and moves the engine to running. The returned
// function executes the sequence on the calling goroutine and must be
// called exactly once.
func (e *Engine) begin(ctx context.Context, commands []Command, initial map[string]any) (func() (*Result, error), error) {
	if st := e.State(); st != StateReady {
		return nil, fmt.Errorf("%w: cannot execute a %s run", ErrInvalidState, st)
	}
	if err := e.Validate(commands, initial); err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	vars := seedVariables(initial)
	instances := NewRegistry(e.settings.OverrideExistingInstances, e.logger)

	e.mu.Lock()
	if e.state != StateReady {
		st := e.state
		e.mu.Unlock()
		cancel()
		return nil, fmt.Errorf("%w: cannot execute a %s run", ErrInvalidState, st)
	}
	e.state = StateRunning
	e.total = len(commands)
	e.startedAt = time.Now().UTC()
	e.cancelRun = cancel
	e.instances = instances
	e.mu.Unlock()

	e.createRecord(ctx)
	e.emit(Event{Type: EventRunState, State: StateRunning})
	e.logger.Info("run started", "run_id", e.id, "name", e.name, "commands", len(commands))

	return func() (*Result, error) {
		defer cancel()

		rc := &RunContext{
			RunID:     e.id,
			Variables: vars,
			Instances: instances,
			Settings:  e.settings,
			Codec:     e.codec,
			Logger:    e.logger,
			engine:    e,
		}

		final, counts, runErr := e.run(runCtx, rc, commands)

		if err := instances.Sweep(); err != nil {
			e.logger.Error("instance teardown failed", "run_id", e.id, "error", err)
			e.addError(RunError{Index: 0, Kind: TeardownKind, Message: err.Error(), Time: time.Now().UTC()})
		}

		res := e.finish(final, vars, counts)
		e.updateRecord(context.WithoutCancel(ctx), res)

		return res, runErr
	}, nil
}

type runCounts struct {
	executed int
	failed   int
	skipped  int
}

func (e *Engine) run(ctx context.Context, rc *RunContext, commands []Command) (State, runCounts, error) {
	var c runCounts
	ran := false

	for i, cmd := range commands {
		idx := i + 1

		if !e.checkpoint(ctx) {
			return StateCancelled, c, nil
		}
		if !cmd.Enabled() {
			c.skipped++
			continue
		}

		if ran && e.settings.CommandDelay > 0 {
			if !sleepCtx(ctx, e.settings.CommandDelay) || !e.checkpoint(ctx) {
				return StateCancelled, c, nil
			}
		}
		ran = true

		e.setPosition(idx, cmd.Kind())
		if e.settings.DiagnosticLogging {
			e.logger.Debug("command started", "run_id", e.id, "index", idx, "kind", cmd.Kind(), "description", cmd.Describe())
		}
		e.emit(Event{Type: EventCommandStarted, State: StateRunning, Index: idx, Kind: cmd.Kind(), Message: cmd.Describe()})

		started := time.Now()
		err := e.runCommand(ctx, rc, idx, cmd)
		elapsed := time.Since(started)
		e.recordMetric(idx, cmd.Kind(), err == nil || errors.Is(err, ErrStopRequested), elapsed)

		switch {
		case err == nil:
			c.executed++
			e.emit(Event{Type: EventCommandComplete, State: StateRunning, Index: idx, Kind: cmd.Kind(), DurationMS: elapsed.Milliseconds()})
			continue

		case errors.Is(err, ErrStopRequested):
			c.executed++
			e.logger.Info("run stopped by command", "run_id", e.id, "index", idx, "kind", cmd.Kind())
			return StateCompleted, c, nil

		case e.cancelled(ctx) && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)):
			// The command was interrupted by a cancel request.
			return StateCancelled, c, nil
		}

		c.failed++
		cmdErr := &CommandError{Index: idx, Kind: cmd.Kind(), Err: err}
		e.addError(RunError{Index: idx, Kind: cmd.Kind(), Message: err.Error(), Time: time.Now().UTC()})
		e.emit(Event{Type: EventCommandFailed, State: StateRunning, Index: idx, Kind: cmd.Kind(), Message: err.Error(), DurationMS: elapsed.Milliseconds()})

		if e.cancelled(ctx) {
			e.logger.Warn("command failed during cancel", "run_id", e.id, "index", idx, "kind", cmd.Kind(), "error", err)
			return StateCancelled, c, nil
		}

		if cmd.ContinueOnError() {
			e.logger.Warn("command failed, continuing", "run_id", e.id, "index", idx, "kind", cmd.Kind(), "error", err)
			continue
		}

		e.logger.Error("command failed", "run_id", e.id, "index", idx, "kind", cmd.Kind(), "error", err)
		return StateFaulted, c, cmdErr
	}

	return StateCompleted, c, nil
}

// runCommand resolves the command's properties and executes it. A panic
// inside the command is reported as an error.
func (e *Engine) runCommand(ctx context.Context, rc *RunContext, idx int, cmd Command) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("command panicked: %v", r)
		}
	}()

	props := cmd.Properties()
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	resolved := make(map[string]string, len(props))
	for _, k := range keys {
		v, rerr := Resolve(props[k], rc.Variables, e.settings)
		if rerr != nil {
			return fmt.Errorf("property %q: %w", k, rerr)
		}
		resolved[k] = v
	}

	rc.index = idx
	return cmd.Execute(ctx, rc, resolved)
}

// checkpoint is called between commands. It blocks while a pause is in
// effect and returns false when the run must stop because of a cancel.
func (e *Engine) checkpoint(ctx context.Context) bool {
	for {
		e.mu.Lock()
		if e.cancelRequested || ctx.Err() != nil {
			e.mu.Unlock()
			return false
		}
		if !e.pauseRequested {
			e.mu.Unlock()
			return true
		}
		resume := e.resume
		entered := e.state != StatePaused
		e.state = StatePaused
		e.mu.Unlock()

		if entered {
			e.logger.Info("run paused", "run_id", e.id)
			e.emit(Event{Type: EventRunState, State: StatePaused})
		}

		select {
		case <-resume:
		case <-ctx.Done():
		}
	}
}

func (e *Engine) cancelled(ctx context.Context) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cancelRequested || ctx.Err() != nil
}

// Pause asks the run to pause before its next command. Pausing a paused
// run is a no-op.
func (e *Engine) Pause() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.state {
	case StateRunning:
		if !e.pauseRequested {
			e.pauseRequested = true
			e.resume = make(chan struct{})
		}
		return nil
	case StatePaused:
		return nil
	default:
		return fmt.Errorf("%w: cannot pause a %s run", ErrInvalidState, e.state)
	}
}

// Resume releases a paused run, or withdraws a pause that has not yet
// taken effect.
func (e *Engine) Resume() error {
	e.mu.Lock()
	if !e.pauseRequested || e.state.Terminal() {
		st := e.state
		e.mu.Unlock()
		return fmt.Errorf("%w: cannot resume a %s run that is not paused", ErrInvalidState, st)
	}
	e.pauseRequested = false
	close(e.resume)
	e.resume = nil
	wasPaused := e.state == StatePaused
	e.state = StateRunning
	e.mu.Unlock()

	if wasPaused {
		e.logger.Info("run resumed", "run_id", e.id)
		e.emit(Event{Type: EventRunState, State: StateRunning})
	}
	return nil
}

// Cancel stops the run at the next boundary and interrupts a command that
// honours its context. Cancelling a ready engine finishes it immediately.
// Cancelling a running run twice is a no-op.
func (e *Engine) Cancel() error {
	e.mu.Lock()
	switch e.state {
	case StateReady:
		e.cancelRequested = true
		e.mu.Unlock()
		e.finish(StateCancelled, nil, runCounts{})
		return nil

	case StateRunning, StatePaused:
		if !e.cancelRequested {
			e.cancelRequested = true
			if e.cancelRun != nil {
				e.cancelRun()
			}
			e.logger.Info("run cancel requested", "run_id", e.id)
		}
		e.mu.Unlock()
		return nil

	default:
		st := e.state
		e.mu.Unlock()
		return fmt.Errorf("%w: cannot cancel a %s run", ErrInvalidState, st)
	}
}

// Status returns a snapshot of the run.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()

	st := Status{
		RunID:           e.id,
		Name:            e.name,
		State:           e.state,
		Position:        e.position,
		Total:           e.total,
		CurrentKind:     e.currentKind,
		PauseRequested:  e.pauseRequested,
		CancelRequested: e.cancelRequested,
		CancellationKey: e.settings.CancellationKey,
		Errors:          append([]RunError(nil), e.errs...),
	}
	if !e.startedAt.IsZero() {
		t := e.startedAt
		st.StartedAt = &t
	}
	if !e.completedAt.IsZero() {
		t := e.completedAt
		st.CompletedAt = &t
	}
	if e.instances != nil && !e.state.Terminal() {
		st.Instances = e.instances.Info()
	}
	return st
}

func (e *Engine) flags() (cancel, pause bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cancelRequested, e.pauseRequested
}

func (e *Engine) setPosition(idx int, kind string) {
	e.mu.Lock()
	e.position = idx
	e.currentKind = kind
	e.mu.Unlock()
}

func (e *Engine) addError(re RunError) {
	e.mu.Lock()
	e.errs = append(e.errs, re)
	e.mu.Unlock()
}

// finish moves the engine to its terminal state exactly once and builds the result.
func (e *Engine) finish(final State, vars *Variables, c runCounts) *Result {
	e.mu.Lock()
	if e.result != nil {
		res := e.result
		e.mu.Unlock()
		return res
	}

	now := time.Now().UTC()
	if e.startedAt.IsZero() {
		e.startedAt = now
	}
	e.state = final
	e.completedAt = now
	e.pauseRequested = false
	if e.resume != nil {
		close(e.resume)
		e.resume = nil
	}

	duration := now.Sub(e.startedAt).Milliseconds()
	res := &Result{
		RunID:       e.id,
		Name:        e.name,
		State:       final,
		Total:       e.total,
		Executed:    c.executed,
		Failed:      c.failed,
		Skipped:     c.skipped,
		Errors:      append([]RunError(nil), e.errs...),
		StartedAt:   e.startedAt,
		CompletedAt: &now,
		DurationMS:  &duration,
	}
	if vars != nil {
		res.Variables = vars.Snapshot()
	}
	e.result = res
	close(e.done)
	e.mu.Unlock()

	e.logger.Info("run finished",
		"run_id", e.id,
		"state", final,
		"executed", c.executed,
		"failed", c.failed,
		"skipped", c.skipped,
		"duration_ms", duration,
	)
	e.emit(Event{Type: EventRunFinished, State: final, DurationMS: duration})

	return res
}

func (e *Engine) emit(ev Event) {
	ev.RunID = e.id
	ev.Name = e.name
	if ev.Time.IsZero() {
		ev.Time = time.Now().UTC()
	}

	if e.hub != nil {
		e.hub.Broadcast(ev.Type, ev)
	}
	if e.publisher != nil {
		if err := e.publisher.PublishRunEvent(ev); err != nil {
			e.logger.Warn("publishing run event failed", "run_id", e.id, "type", ev.Type, "error", err)
		}
	}
}

func (e *Engine) recordMetric(idx int, kind string, ok bool, d time.Duration) {
	if !e.settings.TrackMetrics || e.metrics == nil {
		return
	}
	e.metrics.RecordCommand(CommandMetric{
		RunID:     e.id,
		Index:     idx,
		Kind:      kind,
		Succeeded: ok,
		Duration:  d,
		Time:      time.Now().UTC(),
	})
}

// createRecord and updateRecord persist the run. Failures are logged; the
// run continues without history.
func (e *Engine) createRecord(ctx context.Context) {
	if e.store == nil {
		return
	}
	e.mu.Lock()
	rec := &Result{RunID: e.id, Name: e.name, State: e.state, Total: e.total, StartedAt: e.startedAt}
	e.mu.Unlock()

	if err := e.store.CreateRun(ctx, rec); err != nil {
		e.logger.Error("failed to create run record", "run_id", e.id, "error", err)
	}
}

func (e *Engine) updateRecord(ctx context.Context, res *Result) {
	if e.store == nil {
		return
	}
	if err := e.store.UpdateRun(ctx, res); err != nil {
		e.logger.Error("failed to update run record", "run_id", e.id, "error", err)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
