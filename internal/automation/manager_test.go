package automation

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func blockingCommand(started chan<- struct{}) *fakeCommand {
	return &fakeCommand{kind: "block", run: func(ctx context.Context, _ *RunContext, _ map[string]string) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}}
}

func TestManager_StartAndWait(t *testing.T) {
	store := &mockStore{}
	m := NewManager(DefaultSettings(), Options{Store: store})

	run, err := m.Start("job", []Command{okCommand(), okCommand()}, nil)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	res, err := m.Wait(ctx, run.ID())
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if res.State != StateCompleted || res.Name != "job" || res.Executed != 2 {
		t.Errorf("result = %+v", res)
	}

	st, err := m.Status(run.ID())
	if err != nil || st.State != StateCompleted {
		t.Errorf("Status() = %+v, %v", st, err)
	}
	if m.Active() != 0 {
		t.Errorf("Active() = %d, want 0", m.Active())
	}
}

func TestManager_StartValidationError(t *testing.T) {
	m := NewManager(DefaultSettings(), Options{})

	_, err := m.Start("bad", []Command{&fakeCommand{problems: []string{"nope"}}}, nil)
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("Start() error = %v, want ErrValidation", err)
	}
	if len(m.List()) != 0 {
		t.Errorf("List() = %v, want empty", m.List())
	}
}

func TestManager_UnknownRun(t *testing.T) {
	m := NewManager(DefaultSettings(), Options{})

	if _, err := m.Get("missing"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("Get() error = %v", err)
	}
	if err := m.Cancel("missing"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("Cancel() error = %v", err)
	}
	if err := m.Pause("missing"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("Pause() error = %v", err)
	}
	if err := m.Resume("missing"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("Resume() error = %v", err)
	}
	if _, err := m.Wait(context.Background(), "missing"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("Wait() error = %v", err)
	}
}

func TestManager_CancelRun(t *testing.T) {
	m := NewManager(DefaultSettings(), Options{})
	started := make(chan struct{})

	run, err := m.Start("long", []Command{blockingCommand(started)}, nil)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	<-started

	if m.Active() != 1 {
		t.Errorf("Active() = %d, want 1", m.Active())
	}
	if err := m.Cancel(run.ID()); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	res, err := m.Wait(ctx, run.ID())
	if err != nil || res.State != StateCancelled {
		t.Errorf("Wait() = %+v, %v", res, err)
	}
}

func TestManager_PauseRightAfterStart(t *testing.T) {
	m := NewManager(DefaultSettings(), Options{})
	release := make(chan struct{})
	var secondRan atomic.Bool
	cmds := []Command{
		&fakeCommand{run: func(context.Context, *RunContext, map[string]string) error {
			<-release
			return nil
		}},
		&fakeCommand{run: func(context.Context, *RunContext, map[string]string) error {
			secondRan.Store(true)
			return nil
		}},
	}

	run, err := m.Start("job", cmds, nil)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if st := run.State(); st != StateRunning {
		t.Errorf("State() after Start = %s, want running", st)
	}
	if err := m.Pause(run.ID()); err != nil {
		t.Fatalf("Pause() error = %v", err)
	}
	close(release)
	waitForState(t, run, StatePaused)
	if secondRan.Load() {
		t.Error("command 2 ran while the run was paused")
	}

	if err := m.Resume(run.ID()); err != nil {
		t.Fatalf("Resume() error = %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	res, err := m.Wait(ctx, run.ID())
	if err != nil || res.State != StateCompleted || !secondRan.Load() {
		t.Errorf("Wait() = %+v, %v", res, err)
	}
}

func TestManager_WaitTimeout(t *testing.T) {
	m := NewManager(DefaultSettings(), Options{})
	defer func() { _ = m.Shutdown(context.Background()) }()

	started := make(chan struct{})
	run, _ := m.Start("long", []Command{blockingCommand(started)}, nil)
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := m.Wait(ctx, run.ID()); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait() error = %v, want DeadlineExceeded", err)
	}
}

func TestManager_Shutdown(t *testing.T) {
	m := NewManager(DefaultSettings(), Options{})
	started := make(chan struct{})
	run, _ := m.Start("long", []Command{blockingCommand(started)}, nil)
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := m.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if st := run.State(); st != StateCancelled {
		t.Errorf("State after shutdown = %s, want cancelled", st)
	}
	if _, err := m.Start("late", []Command{okCommand()}, nil); !errors.Is(err, ErrInvalidState) {
		t.Errorf("Start() after shutdown error = %v", err)
	}
}

func TestManager_Retention(t *testing.T) {
	m := NewManager(DefaultSettings(), Options{})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var last string
	for i := 0; i < 3; i++ {
		run, err := m.Start("r", []Command{okCommand()}, nil)
		if err != nil {
			t.Fatalf("Start() error = %v", err)
		}
		if _, err := m.Wait(ctx, run.ID()); err != nil {
			t.Fatalf("Wait() error = %v", err)
		}
		last = run.ID()
	}

	m.SetRetention(1)
	runs := m.List()
	if len(runs) != 1 || runs[0].RunID != last {
		t.Errorf("List() = %+v, want only the newest run", runs)
	}
}
