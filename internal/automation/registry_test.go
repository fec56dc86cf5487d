package automation

import (
	"errors"
	"strings"
	"sync"
	"testing"
)

// trackingHandle records the order in which handles are released.
type trackingHandle struct {
	name  string
	log   *releaseLog
	fail  bool
	calls int
}

type releaseLog struct {
	mu    sync.Mutex
	names []string
}

func (l *releaseLog) add(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.names = append(l.names, name)
}

func (l *releaseLog) get() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.names...)
}

func (h *trackingHandle) Release() error {
	h.calls++
	if h.log != nil {
		h.log.add(h.name)
	}
	if h.fail {
		return errors.New("release failed")
	}
	return nil
}

// closerHandle is released through io.Closer.
type closerHandle struct{ closed bool }

func (c *closerHandle) Close() error {
	c.closed = true
	return nil
}

func TestRegistry_RegisterAndLookup(t *testing.T) {
	r := NewRegistry(false, nil)

	if err := r.Register("sw", KindStopwatch, "handle"); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	inst, err := r.Lookup("sw", KindStopwatch)
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if inst.Handle != "handle" {
		t.Errorf("Handle = %v", inst.Handle)
	}

	if _, err := r.Lookup("sw", KindBrowser); !errors.Is(err, ErrInstanceKindMismatch) {
		t.Errorf("Lookup() wrong kind error = %v, want ErrInstanceKindMismatch", err)
	}
	if _, err := r.Get("missing"); !errors.Is(err, ErrInstanceNotFound) {
		t.Errorf("Get() error = %v, want ErrInstanceNotFound", err)
	}
	if err := r.Register("", KindGeneric, nil); !errors.Is(err, ErrValidation) {
		t.Errorf("Register(\"\") error = %v, want ErrValidation", err)
	}
}

func TestRegistry_Duplicate(t *testing.T) {
	r := NewRegistry(false, nil)
	_ = r.Register("x", KindGeneric, 1)

	if err := r.Register("x", KindGeneric, 2); !errors.Is(err, ErrDuplicateInstance) {
		t.Errorf("Register() duplicate error = %v, want ErrDuplicateInstance", err)
	}
}

func TestRegistry_OverwriteReleasesOld(t *testing.T) {
	r := NewRegistry(true, nil)
	old := &trackingHandle{name: "old"}
	_ = r.Register("x", KindGeneric, old)

	if err := r.Register("x", KindGeneric, &trackingHandle{name: "new"}); err != nil {
		t.Fatalf("Register() overwrite error = %v", err)
	}
	if old.calls != 1 {
		t.Errorf("old handle released %d times, want 1", old.calls)
	}
	if r.Len() != 1 {
		t.Errorf("Len() = %d, want 1", r.Len())
	}
}

func TestInstanceAs(t *testing.T) {
	r := NewRegistry(false, nil)
	h := &closerHandle{}
	_ = r.Register("c", KindGeneric, h)

	got, err := InstanceAs[*closerHandle](r, "c", KindGeneric)
	if err != nil || got != h {
		t.Fatalf("InstanceAs() = %v, %v", got, err)
	}
	if _, err := InstanceAs[*trackingHandle](r, "c", KindGeneric); !errors.Is(err, ErrInstanceKindMismatch) {
		t.Errorf("InstanceAs() wrong type error = %v", err)
	}
}

func TestRegistry_ReleaseAndRemove(t *testing.T) {
	r := NewRegistry(false, nil)
	c := &closerHandle{}
	_ = r.Register("c", KindGeneric, c)
	_ = r.Register("d", KindGeneric, &closerHandle{})

	if err := r.Release("c"); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	if !c.closed {
		t.Error("Release() did not close handle")
	}
	if err := r.Release("c"); !errors.Is(err, ErrInstanceNotFound) {
		t.Errorf("second Release() error = %v", err)
	}

	r.Remove("d")
	r.Remove("d")
	if r.Len() != 0 {
		t.Errorf("Len() = %d, want 0", r.Len())
	}
}

func TestRegistry_SweepNewestFirst(t *testing.T) {
	r := NewRegistry(false, nil)
	log := &releaseLog{}
	for _, n := range []string{"a", "b", "c"} {
		_ = r.Register(n, KindGeneric, &trackingHandle{name: n, log: log, fail: n == "b"})
	}

	info := r.Info()
	if len(info) != 3 || info[0].Name != "a" || info[2].Name != "c" {
		t.Errorf("Info() = %+v, want registration order", info)
	}

	err := r.Sweep()
	if err == nil || !strings.Contains(err.Error(), `"b"`) {
		t.Errorf("Sweep() error = %v, want failure for b", err)
	}

	got := log.get()
	want := []string{"c", "b", "a"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("release order = %v, want %v", got, want)
	}
	if r.Len() != 0 {
		t.Errorf("Len() after Sweep = %d", r.Len())
	}
}
