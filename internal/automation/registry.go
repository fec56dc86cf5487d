package automation

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"
)

// Logger defines the logging interface used by the engine and registry.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// InstanceKind classifies an automation handle.
type InstanceKind string

const (
	KindExcel     InstanceKind = "excel"
	KindWord      InstanceKind = "word"
	KindBrowser   InstanceKind = "browser"
	KindStopwatch InstanceKind = "stopwatch"
	KindDatabase  InstanceKind = "database"
	KindProcess   InstanceKind = "process"
	KindJSON      InstanceKind = "json"
	KindGeneric   InstanceKind = "generic"
)

// Releaser is implemented by handles that hold external resources.
// Handles implementing io.Closer are released through Close instead.
type Releaser interface {
	Release() error
}

// Instance is a named automation handle registered during a run.
type Instance struct {
	Name      string
	Kind      InstanceKind
	Handle    any
	CreatedAt time.Time
}

// InstanceInfo is the handle-free description of an instance for status output.
type InstanceInfo struct {
	Name      string       `json:"name"`
	Kind      InstanceKind `json:"kind"`
	CreatedAt time.Time    `json:"created_at"`
}

// Registry is the per-run set of named instances.
//
// Commands touch it only from the run goroutine; the mutex makes Info safe
// to call from status readers.
type Registry struct {
	mu        sync.RWMutex
	items     map[string]*Instance
	seq       map[string]uint64
	next      uint64
	overwrite bool
	logger    Logger
}

// NewRegistry creates an empty registry. When overwrite is true, Register
// replaces an existing instance of the same name after releasing it.
func NewRegistry(overwrite bool, logger Logger) *Registry {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Registry{
		items:     make(map[string]*Instance),
		seq:       make(map[string]uint64),
		overwrite: overwrite,
		logger:    logger,
	}
}

// Register adds a named handle. It fails with ErrDuplicateInstance when the
// name is taken, unless the registry allows overwriting.
func (r *Registry) Register(name string, kind InstanceKind, handle any) error {
	if name == "" {
		return fmt.Errorf("%w: instance name is empty", ErrValidation)
	}

	r.mu.Lock()
	old, exists := r.items[name]
	if exists && !r.overwrite {
		r.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrDuplicateInstance, name)
	}
	r.next++
	r.items[name] = &Instance{Name: name, Kind: kind, Handle: handle, CreatedAt: time.Now().UTC()}
	r.seq[name] = r.next
	r.mu.Unlock()

	if exists {
		if err := release(old.Handle); err != nil {
			r.logger.Warn("releasing replaced instance failed", "instance", name, "error", err)
		}
	}
	return nil
}

// Get returns the instance registered under name.
func (r *Registry) Get(name string) (*Instance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	inst, ok := r.items[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInstanceNotFound, name)
	}
	return inst, nil
}

// Lookup returns the instance registered under name, checking its kind.
func (r *Registry) Lookup(name string, kind InstanceKind) (*Instance, error) {
	inst, err := r.Get(name)
	if err != nil {
		return nil, err
	}
	if inst.Kind != kind {
		return nil, fmt.Errorf("%w: %q is %s, not %s", ErrInstanceKindMismatch, name, inst.Kind, kind)
	}
	return inst, nil
}

// InstanceAs returns the handle registered under name as type T.
func InstanceAs[T any](r *Registry, name string, kind InstanceKind) (T, error) {
	var zero T
	inst, err := r.Lookup(name, kind)
	if err != nil {
		return zero, err
	}
	h, ok := inst.Handle.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %q holds %T", ErrInstanceKindMismatch, name, inst.Handle)
	}
	return h, nil
}

// Remove drops an instance without releasing it. Removing an absent
// name is a no-op.
func (r *Registry) Remove(name string) {
	r.mu.Lock()
	delete(r.items, name)
	delete(r.seq, name)
	r.mu.Unlock()
}

// Release removes an instance and releases its handle.
func (r *Registry) Release(name string) error {
	r.mu.Lock()
	inst, ok := r.items[name]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrInstanceNotFound, name)
	}
	delete(r.items, name)
	delete(r.seq, name)
	r.mu.Unlock()

	if err := release(inst.Handle); err != nil {
		return fmt.Errorf("releasing instance %q: %w", name, err)
	}
	return nil
}

// Len returns the number of registered instances.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}

// Info lists registered instances in registration order.
func (r *Registry) Info() []InstanceInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := r.orderedLocked()
	out := make([]InstanceInfo, 0, len(names))
	for _, n := range names {
		inst := r.items[n]
		out = append(out, InstanceInfo{Name: inst.Name, Kind: inst.Kind, CreatedAt: inst.CreatedAt})
	}
	return out
}

// Sweep releases every instance still registered, newest first, and empties
// the registry. All handles are attempted; failures are joined.
func (r *Registry) Sweep() error {
	r.mu.Lock()
	names := r.orderedLocked()
	items := r.items
	r.items = make(map[string]*Instance)
	r.seq = make(map[string]uint64)
	r.mu.Unlock()

	var errs []error
	for i := len(names) - 1; i >= 0; i-- {
		inst := items[names[i]]
		if err := release(inst.Handle); err != nil {
			r.logger.Warn("instance release failed", "instance", inst.Name, "kind", inst.Kind, "error", err)
			errs = append(errs, fmt.Errorf("instance %q: %w", inst.Name, err))
			continue
		}
		r.logger.Debug("instance released", "instance", inst.Name, "kind", inst.Kind)
	}
	return errors.Join(errs...)
}

func (r *Registry) orderedLocked() []string {
	names := make([]string, 0, len(r.items))
	for n := range r.items {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool {
		return r.seq[names[i]] < r.seq[names[j]]
	})
	return names
}

func release(handle any) error {
	switch h := handle.(type) {
	case Releaser:
		return h.Release()
	case io.Closer:
		return h.Close()
	default:
		return nil
	}
}
