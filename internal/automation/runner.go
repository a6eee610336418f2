package automation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-hub/internal/journal"
)

// MaxScriptDepth bounds nested run_script actions. A script that reaches
// itself again fails with ErrScriptDepth once the bound is hit.
const MaxScriptDepth = 16

// ScriptStore is the persistence the runner loads scripts and actions from.
// Repository satisfies it.
type ScriptStore interface {
	GetScript(ctx context.Context, id int64) (*Script, error)
	GetAction(ctx context.Context, id int64) (*Action, error)
}

type depthKey struct{}

func depthFrom(ctx context.Context) int {
	d, _ := ctx.Value(depthKey{}).(int)
	return d
}

// Runner executes scripts fail-fast: enabled steps run in order and the
// first failing step ends the run with its error. Disabled steps are
// skipped without reaching the executor.
type Runner struct {
	store ScriptStore
	exec  *Executor
}

// NewRunner creates a runner and wires it into exec so run_script
// actions recurse through it.
func NewRunner(store ScriptStore, exec *Executor) *Runner {
	r := &Runner{store: store, exec: exec}
	exec.scripts = r
	return r
}

// Run loads and executes the script with the given id.
//
// Returns:
//   - nil when every enabled step succeeded
//   - ErrScriptNotFound if the script does not exist
//   - ErrScriptDepth if nesting exceeds MaxScriptDepth
//   - the first failing step's error otherwise
func (r *Runner) Run(ctx context.Context, scriptID int64) error {
	depth := depthFrom(ctx)
	if depth >= MaxScriptDepth {
		return fmt.Errorf("script %d: %w", scriptID, ErrScriptDepth)
	}
	ctx = context.WithValue(ctx, depthKey{}, depth+1)

	s, err := r.store.GetScript(ctx, scriptID)
	if err != nil {
		return fmt.Errorf("loading script %d: %w", scriptID, err)
	}

	runID := uuid.NewString()
	start := time.Now()
	r.exec.logger.Info("script started",
		"script_id", s.ID,
		"script", s.Name,
		"run_id", runID,
		"depth", depth,
		"steps", len(s.Steps),
	)

	executed, skipped := 0, 0
	for i, step := range s.Steps {
		if !step.Enabled {
			skipped++
			continue
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return r.fail(ctx, s, runID, i, fmt.Errorf("cancelled: %w", ctxErr))
		}

		a, err := r.store.GetAction(ctx, step.ActionID)
		if err != nil {
			return r.fail(ctx, s, runID, i, fmt.Errorf("loading action %d: %w", step.ActionID, err))
		}
		if err := r.exec.Execute(ctx, *a); err != nil {
			return r.fail(ctx, s, runID, i, err)
		}
		executed++
	}

	elapsed := time.Since(start)
	r.exec.logger.Info("script completed",
		"script_id", s.ID,
		"script", s.Name,
		"run_id", runID,
		"executed", executed,
		"skipped", skipped,
		"duration", elapsed,
	)
	r.exec.journal.Record(ctx, journal.OriginScript, s.Name,
		fmt.Sprintf("script %d completed: %d executed, %d skipped in %s",
			s.ID, executed, skipped, elapsed.Round(time.Millisecond)))
	return nil
}

func (r *Runner) fail(ctx context.Context, s *Script, runID string, step int, err error) error {
	r.exec.logger.Warn("script failed",
		"script_id", s.ID,
		"script", s.Name,
		"run_id", runID,
		"step", step,
		"error", err,
	)
	r.exec.journal.Record(ctx, journal.OriginScript, s.Name,
		fmt.Sprintf("script %d failed at step %d: %v", s.ID, step, err))
	return fmt.Errorf("script %q step %d: %w", s.Name, step, err)
}
