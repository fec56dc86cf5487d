// Package process supervises background subprocesses started by scripts.
//
// A Manager owns one child process. It captures combined stdout/stderr into
// a bounded buffer, can restart the child after a failing exit, and stops
// the whole process group with SIGTERM followed by SIGKILL.
//
// Managers are registered as "process" instances by the start_process
// command. Because Manager implements Release, the engine's teardown sweep
// stops any process a script left running.
//
// Example usage:
//
//	mgr := process.NewManager(process.DefaultConfig("server", "/usr/bin/python3",
//	    []string{"-m", "http.server"}))
//	if err := mgr.Start(ctx); err != nil {
//	    return err
//	}
//	defer mgr.Stop()
package process
