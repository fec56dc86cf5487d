// Package automation provides the script execution engine for taskt.
//
// A run is an ordered list of commands executed one at a time against a
// private variable table and a private instance registry. Before each
// command its text properties are resolved: every {name} reference is
// replaced by the value of the variable name.
//
// Architecture:
//
//	┌───────────────────────────────────────────────────────┐
//	│                 Manager (manager.go)                  │
//	│  Starts runs on goroutines, addressable by run ID     │
//	│        │                                              │
//	│        ▼                                              │
//	│  ┌──────────────────────────────────────────────┐    │
//	│  │  Engine (engine.go), one per run              │    │
//	│  │  1. Validate every command (collect all)      │    │
//	│  │  2. Checkpoint: honour pause and cancel       │    │
//	│  │  3. Resolve properties (variables.go)         │    │
//	│  │  4. Execute; record error or stop early       │    │
//	│  │  5. Sweep instances (registry.go)             │    │
//	│  │  6. Persist result (repository.go)            │    │
//	│  └──────────────────────────────────────────────┘    │
//	│        │                                              │
//	│        ▼                                              │
//	│  WSHub / EventPublisher / MetricsRecorder             │
//	└───────────────────────────────────────────────────────┘
//
// # Key Types
//
//   - Command: One step of a script (implemented by internal/script)
//   - Engine: Single-use executor with a ready → running ⇄ paused →
//     completed | cancelled | faulted state machine
//   - Variables: Per-run name → value table
//   - Registry: Per-run named instances, released at the end of the run
//   - Codec: Display/storage form conversion for variable markers and
//     engine keywords (keywords.go)
//   - Manager: Concurrent runs keyed by ID
//
// # Thread Safety
//
// Engine control methods (Pause, Resume, Cancel, Status) and all Manager
// methods are safe for concurrent use. Variables belong to the run
// goroutine and must not be shared.
//
// # Usage
//
//	mgr := automation.NewManager(automation.DefaultSettings(), automation.Options{
//	    Logger: log,
//	    Store:  automation.NewSQLiteRepository(db.DB),
//	})
//	run, err := mgr.Start("nightly", commands, map[string]any{"target": "prod"})
//	if err != nil {
//	    return err // validation problems
//	}
//	res, err := mgr.Wait(ctx, run.ID())
package automation
