package process

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

// Status represents the current state of a managed process.
type Status string

const (
	StatusStopped  Status = "stopped"
	StatusStarting Status = "starting"
	StatusRunning  Status = "running"
	StatusExited   Status = "exited"
	StatusFailed   Status = "failed"
)

// defaultOutputLimit bounds the captured stdout/stderr kept per process.
const defaultOutputLimit = 64 * 1024

// ErrAlreadyRunning is returned by Start on a running process.
var ErrAlreadyRunning = errors.New("process: already running")

// Config holds configuration for a managed subprocess.
type Config struct {
	// Name is a human-readable identifier for logging.
	Name string

	// Binary is the path to the executable.
	Binary string

	// Args are command-line arguments to pass to the binary.
	Args []string

	// Env are additional environment variables (key=value format),
	// appended to the parent environment.
	Env []string

	// WorkDir is the working directory for the process.
	// If empty, inherits from parent process.
	WorkDir string

	// RestartOnFailure restarts the process when it exits with an error.
	RestartOnFailure bool

	// RestartDelay is the time to wait before restarting after a failure.
	RestartDelay time.Duration

	// MaxRestartAttempts limits restart attempts. 0 means unlimited.
	MaxRestartAttempts int

	// GracefulTimeout is how long to wait after SIGTERM before SIGKILL.
	GracefulTimeout time.Duration

	// OutputLimit caps the captured output in bytes. Older output is dropped.
	OutputLimit int

	// OnExit is called each time the process exits.
	OnExit func(err error)
}

// DefaultConfig returns a Config with sensible defaults and no restarts.
func DefaultConfig(name, binary string, args []string) Config {
	return Config{
		Name:            name,
		Binary:          binary,
		Args:            args,
		RestartDelay:    time.Second,
		GracefulTimeout: 5 * time.Second,
		OutputLimit:     defaultOutputLimit,
	}
}

// Logger defines the logging interface for the process manager.
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

// Manager supervises one background subprocess started by a script.
// It satisfies the automation releaser contract, so a run that forgets to
// stop its process still terminates it during teardown.
type Manager struct {
	config Config
	logger Logger
	output *ringBuffer

	mu            sync.RWMutex
	cmd           *exec.Cmd
	status        Status
	restartCount  int
	exitCode      int
	lastError     error
	stopRequested bool
	pipes         *sync.WaitGroup // capture goroutines of the current cmd
	done          chan struct{}
}

// NewManager creates a new process manager with the given configuration.
func NewManager(cfg Config) *Manager {
	if cfg.RestartDelay == 0 {
		cfg.RestartDelay = time.Second
	}
	if cfg.GracefulTimeout == 0 {
		cfg.GracefulTimeout = 5 * time.Second
	}
	if cfg.OutputLimit <= 0 {
		cfg.OutputLimit = defaultOutputLimit
	}

	return &Manager{
		config:   cfg,
		logger:   noopLogger{},
		output:   newRingBuffer(cfg.OutputLimit),
		status:   StatusStopped,
		exitCode: -1,
	}
}

// SetLogger sets the logger for the manager.
func (m *Manager) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	m.logger = logger
}

// Name returns the configured process name.
func (m *Manager) Name() string {
	return m.config.Name
}

// Start launches the subprocess and begins monitoring it. The process
// lives until Stop is called or ctx is cancelled.
func (m *Manager) Start(ctx context.Context) error {
	if m.config.Binary == "" {
		return fmt.Errorf("process %s: binary is empty", m.config.Name)
	}

	m.mu.Lock()
	if m.status == StatusRunning || m.status == StatusStarting {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrAlreadyRunning, m.config.Name)
	}
	m.status = StatusStarting
	m.stopRequested = false
	m.done = make(chan struct{})
	m.mu.Unlock()

	if err := m.startProcess(ctx); err != nil {
		m.mu.Lock()
		m.status = StatusFailed
		m.lastError = err
		close(m.done)
		m.mu.Unlock()
		return err
	}

	go m.monitor(ctx)
	return nil
}

func (m *Manager) startProcess(ctx context.Context) error {
	m.logger.Info("starting process",
		"name", m.config.Name,
		"binary", m.config.Binary,
		"args", m.config.Args,
	)

	cmd := exec.CommandContext(ctx, m.config.Binary, m.config.Args...) //nolint:gosec // the script author chooses the binary

	// New process group so Stop can signal children too.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}

	if m.config.Env != nil {
		cmd.Env = append(os.Environ(), m.config.Env...)
	}
	if m.config.WorkDir != "" {
		cmd.Dir = m.config.WorkDir
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("creating stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("creating stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting %s: %w", m.config.Name, err)
	}

	pipes := &sync.WaitGroup{}
	pipes.Add(2)

	m.mu.Lock()
	m.cmd = cmd
	m.pipes = pipes
	m.status = StatusRunning
	m.mu.Unlock()

	go m.captureOutput(pipes, "stdout", stdout)
	go m.captureOutput(pipes, "stderr", stderr)

	m.logger.Info("process started", "name", m.config.Name, "pid", cmd.Process.Pid)
	return nil
}

func (m *Manager) captureOutput(wg *sync.WaitGroup, stream string, r io.Reader) {
	defer wg.Done()
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			m.output.Write(buf[:n])
			m.logger.Debug("process output",
				"name", m.config.Name,
				"stream", stream,
				"output", string(buf[:n]),
			)
		}
		if err != nil {
			return
		}
	}
}

// monitor waits for the process and handles restarts.
func (m *Manager) monitor(ctx context.Context) {
	m.mu.RLock()
	done := m.done
	m.mu.RUnlock()
	defer close(done)

	for {
		m.mu.RLock()
		cmd, pipes := m.cmd, m.pipes
		m.mu.RUnlock()

		// cmd.Wait closes the pipes, so drain them first.
		pipes.Wait()
		err := cmd.Wait()

		m.mu.Lock()
		stopRequested := m.stopRequested
		m.exitCode = cmd.ProcessState.ExitCode()
		m.lastError = err
		m.mu.Unlock()

		if m.config.OnExit != nil {
			m.config.OnExit(err)
		}

		if stopRequested || ctx.Err() != nil {
			m.logger.Info("process stopped", "name", m.config.Name)
			m.setStatus(StatusStopped)
			return
		}

		if err == nil {
			m.logger.Info("process exited", "name", m.config.Name)
			m.setStatus(StatusExited)
			return
		}

		m.logger.Warn("process exited with error", "name", m.config.Name, "error", err)
		m.setStatus(StatusFailed)

		if !m.config.RestartOnFailure {
			return
		}

		m.mu.Lock()
		m.restartCount++
		attempt := m.restartCount
		m.mu.Unlock()

		if m.config.MaxRestartAttempts > 0 && attempt > m.config.MaxRestartAttempts {
			m.logger.Error("max restart attempts reached", "name", m.config.Name, "attempts", attempt-1)
			return
		}

		m.logger.Info("restarting process",
			"name", m.config.Name,
			"attempt", attempt,
			"delay", m.config.RestartDelay,
		)

		select {
		case <-ctx.Done():
			m.setStatus(StatusStopped)
			return
		case <-time.After(m.config.RestartDelay):
		}

		m.mu.RLock()
		stopRequested = m.stopRequested
		m.mu.RUnlock()
		if stopRequested {
			m.setStatus(StatusStopped)
			return
		}

		if err := m.startProcess(ctx); err != nil {
			m.logger.Error("failed to restart process", "name", m.config.Name, "error", err)
			m.mu.Lock()
			m.lastError = err
			m.mu.Unlock()
			return
		}
	}
}

func (m *Manager) setStatus(s Status) {
	m.mu.Lock()
	m.status = s
	m.mu.Unlock()
}

// Stop terminates the subprocess. It sends SIGTERM to the process group,
// waits for the graceful timeout, then sends SIGKILL. Stopping a process
// that is not running is a no-op.
func (m *Manager) Stop() error {
	m.mu.Lock()
	m.stopRequested = true
	cmd := m.cmd
	done := m.done
	running := m.status == StatusRunning || m.status == StatusStarting
	m.mu.Unlock()

	if done == nil {
		return nil
	}
	if !running || cmd == nil || cmd.Process == nil {
		<-done
		return nil
	}

	pid := cmd.Process.Pid
	m.logger.Info("stopping process", "name", m.config.Name, "pid", pid)

	if err := syscall.Kill(-pid, syscall.SIGTERM); err != nil && !errors.Is(err, syscall.ESRCH) {
		m.logger.Warn("failed to send SIGTERM to process group", "name", m.config.Name, "error", err)
	}

	select {
	case <-done:
		return nil
	case <-time.After(m.config.GracefulTimeout):
		m.logger.Warn("graceful shutdown timeout, sending SIGKILL",
			"name", m.config.Name,
			"timeout", m.config.GracefulTimeout,
		)
	}

	if err := syscall.Kill(-pid, syscall.SIGKILL); err != nil && !errors.Is(err, syscall.ESRCH) {
		return fmt.Errorf("killing process group %s: %w", m.config.Name, err)
	}
	<-done
	return nil
}

// Release stops the process. It is called when the owning run ends.
func (m *Manager) Release() error {
	return m.Stop()
}

// Wait blocks until the process has exited for good or ctx is done.
func (m *Manager) Wait(ctx context.Context) error {
	m.mu.RLock()
	done := m.done
	m.mu.RUnlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Status returns the current status of the managed process.
func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// IsRunning returns true if the process is currently running.
func (m *Manager) IsRunning() bool {
	return m.Status() == StatusRunning
}

// Output returns the captured stdout and stderr, interleaved.
func (m *Manager) Output() string {
	return m.output.String()
}

// ExitCode returns the exit code of the last exit, or -1.
func (m *Manager) ExitCode() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.exitCode
}

// LastError returns the error of the last exit.
func (m *Manager) LastError() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastError
}

// ringBuffer keeps the most recent limit bytes written to it.
type ringBuffer struct {
	mu    sync.Mutex
	limit int
	data  []byte
}

func newRingBuffer(limit int) *ringBuffer {
	return &ringBuffer{limit: limit}
}

func (r *ringBuffer) Write(p []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data = append(r.data, p...)
	if over := len(r.data) - r.limit; over > 0 {
		r.data = append(r.data[:0], r.data[over:]...)
	}
}

func (r *ringBuffer) String() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return string(r.data)
}
