package automation

import (
	"context"
	"fmt"
	"sync"
)

// defaultRetainedRuns is how many finished runs stay addressable.
const defaultRetainedRuns = 100

// Manager starts runs on their own goroutines and keeps them addressable
// by run ID for status queries and control actions.
//
// All methods are safe for concurrent use.
type Manager struct {
	settings Settings
	opts     Options
	logger   Logger
	retain   int

	ctx  context.Context
	stop context.CancelFunc
	wg   sync.WaitGroup

	mu    sync.RWMutex
	runs  map[string]*Engine
	order []string
}

// NewManager creates a manager whose runs share settings and collaborators.
// The ID and Name fields of opts are ignored.
func NewManager(settings Settings, opts Options) *Manager {
	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	ctx, stop := context.WithCancel(context.Background())
	return &Manager{
		settings: settings,
		opts:     opts,
		logger:   logger,
		retain:   defaultRetainedRuns,
		ctx:      ctx,
		stop:     stop,
		runs:     make(map[string]*Engine),
	}
}

// SetRetention sets how many finished runs are kept. Values below 1 keep one.
func (m *Manager) SetRetention(n int) {
	if n < 1 {
		n = 1
	}
	m.mu.Lock()
	m.retain = n
	m.pruneLocked()
	m.mu.Unlock()
}

// Settings returns the settings given to new runs.
func (m *Manager) Settings() Settings {
	return m.settings
}

// Start validates commands and launches the run. The returned engine is
// already running, so control actions apply to it at once. Validation
// errors are returned synchronously and nothing is registered.
func (m *Manager) Start(name string, commands []Command, initial map[string]any) (*Engine, error) {
	if m.ctx.Err() != nil {
		return nil, fmt.Errorf("%w: manager is shut down", ErrInvalidState)
	}

	opts := m.opts
	opts.ID = ""
	opts.Name = name
	e := NewEngine(m.settings, opts)

	run, err := e.begin(m.ctx, commands, initial)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.runs[e.ID()] = e
	m.order = append(m.order, e.ID())
	m.pruneLocked()
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		if _, err := run(); err != nil {
			m.logger.Warn("run ended with error", "run_id", e.ID(), "error", err)
		}
	}()

	return e, nil
}

// Get returns the engine for a run.
func (m *Manager) Get(id string) (*Engine, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.runs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrRunNotFound, id)
	}
	return e, nil
}

// Status returns the status of a run.
func (m *Manager) Status(id string) (Status, error) {
	e, err := m.Get(id)
	if err != nil {
		return Status{}, err
	}
	return e.Status(), nil
}

// List returns the status of every known run, oldest first.
func (m *Manager) List() []Status {
	m.mu.RLock()
	engines := make([]*Engine, 0, len(m.order))
	for _, id := range m.order {
		engines = append(engines, m.runs[id])
	}
	m.mu.RUnlock()

	out := make([]Status, 0, len(engines))
	for _, e := range engines {
		out = append(out, e.Status())
	}
	return out
}

// Active returns the number of runs that have not finished.
func (m *Manager) Active() int {
	n := 0
	for _, st := range m.List() {
		if !st.State.Terminal() {
			n++
		}
	}
	return n
}

// Cancel cancels a run.
func (m *Manager) Cancel(id string) error {
	e, err := m.Get(id)
	if err != nil {
		return err
	}
	return e.Cancel()
}

// Pause pauses a run.
func (m *Manager) Pause(id string) error {
	e, err := m.Get(id)
	if err != nil {
		return err
	}
	return e.Pause()
}

// Resume resumes a paused run.
func (m *Manager) Resume(id string) error {
	e, err := m.Get(id)
	if err != nil {
		return err
	}
	return e.Resume()
}

// Wait blocks until a run finishes or ctx is done.
func (m *Manager) Wait(ctx context.Context, id string) (*Result, error) {
	e, err := m.Get(id)
	if err != nil {
		return nil, err
	}
	select {
	case <-e.Done():
		return e.Result(), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Shutdown cancels every active run and waits for their goroutines.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.stop()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for runs: %w", ctx.Err())
	}
}

// pruneLocked drops the oldest finished runs beyond the retention limit.
func (m *Manager) pruneLocked() {
	finished := 0
	for _, id := range m.order {
		if m.runs[id].State().Terminal() {
			finished++
		}
	}
	if finished <= m.retain {
		return
	}

	excess := finished - m.retain
	kept := m.order[:0]
	for _, id := range m.order {
		if excess > 0 && m.runs[id].State().Terminal() {
			delete(m.runs, id)
			excess--
			continue
		}
		kept = append(kept, id)
	}
	m.order = kept
}
