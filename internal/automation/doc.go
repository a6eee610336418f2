// Package automation executes actions and the scripts that sequence them.
//
// An Action is one step against a device element (switch, dimmer, heater),
// a nested script, a sleep or a system command. A Script is an ordered list
// of action references, each individually enabled or disabled.
//
// Architecture:
//
//	┌──────────────────────────────────────────────────┐
//	│  Runner (runner.go)                              │
//	│  loads a Script, runs enabled steps fail-fast    │
//	│        │                          ▲              │
//	│        ▼                          │ run_script   │
//	│  Executor (executor.go) ──────────┘              │
//	│   ├─ device.Controller  (switch/dimmer/heater)   │
//	│   ├─ StartupStore       (last written values)    │
//	│   ├─ process.Runner     (run_system_command)     │
//	│   └─ Journal            (one entry per action)   │
//	│                                                  │
//	│  Repository (repository.go), SQLite              │
//	└──────────────────────────────────────────────────┘
//
// Device locking happens inside each device.Controller around the single
// protocol exchange, so a nested script that targets the same device as its
// parent does not deadlock. Sleeps hold no lock.
//
// Parameter grammar per action type:
//
//	set_switch          "0" | "1"
//	toggle_switch       (unused)
//	set_dimmer          non-negative integer level
//	set_heater          "<enabled>,<max>"  e.g. "1,21.5"
//	run_script          script id
//	sleep               milliseconds
//	run_system_command  "<path relative to scripts_dir> [args...]"
//
// Usage:
//
//	repo := automation.NewSQLiteRepository(db.DB)
//	exec := automation.NewExecutor(automation.ExecutorConfig{
//	    Devices:    registry,
//	    Startup:    deviceRepo,
//	    Journal:    jrnl,
//	    ScriptsDir: cfg.Hub.ScriptsDir,
//	})
//	runner := automation.NewRunner(repo, exec)
//	err := runner.Run(ctx, scriptID)
package automation
