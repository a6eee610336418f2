package schedule

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/gray-logic-hub/internal/device"
	"github.com/nerrad567/gray-logic-hub/internal/infrastructure/metrics"
	"github.com/nerrad567/gray-logic-hub/internal/journal"
)

// Logger defines the logging interface used by the scheduler.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Devices lists the configured device controllers. *device.Registry satisfies it.
type Devices interface {
	All() []*device.Controller
}

// StartupStore returns the values to replay after a device reconnects.
type StartupStore interface {
	ListStartupStatus(ctx context.Context, deviceName string) ([]device.StartupStatus, error)
}

// ScriptRunner runs a script by id. *automation.Runner satisfies it.
type ScriptRunner interface {
	Run(ctx context.Context, scriptID int64) error
}

// Store is the schedule persistence the scheduler needs.
type Store interface {
	Writer
	ListEnabled(ctx context.Context) ([]Schedule, error)
}

// Journal records outcomes. *journal.Journal satisfies it.
type Journal interface {
	Record(ctx context.Context, origin journal.Origin, name, message string)
}

// Config holds the scheduler's collaborators.
type Config struct {
	Devices    Devices
	Startup    StartupStore
	Scripts    ScriptRunner
	Store      Store
	Journal    Journal
	Calculator *Calculator
	Metrics    *metrics.Metrics
	Logger     Logger

	// Now defaults to time.Now.
	Now func() time.Time
}

// Scheduler runs one pass per minute tick: device heartbeats with
// reconnect and state restore, then due schedules.
//
// Passes may overlap; device access is serialised by each Controller.
type Scheduler struct {
	devices Devices
	startup StartupStore
	scripts ScriptRunner
	store   Store
	journal Journal
	calc    *Calculator
	metrics *metrics.Metrics
	logger  Logger
	now     func() time.Time

	// firing holds schedules whose script is still running in an earlier,
	// overlapping pass.
	mu     sync.Mutex
	firing map[int64]bool
}

// NewScheduler creates a scheduler from cfg.
func NewScheduler(cfg Config) *Scheduler {
	s := &Scheduler{
		devices: cfg.Devices,
		startup: cfg.Startup,
		scripts: cfg.Scripts,
		store:   cfg.Store,
		journal: cfg.Journal,
		calc:    cfg.Calculator,
		metrics: cfg.Metrics,
		logger:  cfg.Logger,
		now:     cfg.Now,
		firing:  make(map[int64]bool),
	}
	if s.calc == nil {
		s.calc = NewCalculator(nil)
	}
	if s.logger == nil {
		s.logger = noopLogger{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Pass runs one scheduler pass. Individual device and schedule failures are
// logged and journalled; the returned error reports only a failure to list
// schedules.
func (s *Scheduler) Pass(ctx context.Context) error {
	start := time.Now()
	defer func() { s.metrics.SchedulerPass(time.Since(start)) }()

	s.heartbeats(ctx)
	return s.fireDue(ctx)
}

// heartbeats checks every enabled device concurrently.
func (s *Scheduler) heartbeats(ctx context.Context) {
	if s.devices == nil {
		return
	}
	var g errgroup.Group
	for _, c := range s.devices.All() {
		if !c.Enabled() {
			continue
		}
		c := c
		g.Go(func() error {
			s.heartbeat(ctx, c)
			return nil
		})
	}
	_ = g.Wait()
}

func (s *Scheduler) heartbeat(ctx context.Context, c *device.Controller) {
	if c.Heartbeat(ctx) {
		s.metrics.Heartbeat(c.Name(), metrics.HeartbeatOK)
		return
	}

	s.logger.Warn("device heartbeat failed, reconnecting", "device", c.Name())
	if err := c.Reconnect(ctx); err != nil {
		s.metrics.Heartbeat(c.Name(), metrics.HeartbeatReconnectFailed)
		s.logger.Error("device reconnect failed", "device", c.Name(), "error", err)
		s.record(ctx, journal.OriginDevice, c.Name(), fmt.Sprintf("reconnect failed: %v", err))
		return
	}

	s.metrics.Heartbeat(c.Name(), metrics.HeartbeatReconnected)
	restored := s.restore(ctx, c)
	s.logger.Info("device reconnected", "device", c.Name(), "restored", restored)
	s.record(ctx, journal.OriginDevice, c.Name(), fmt.Sprintf("reconnected, restored %d values", restored))
}

// restore replays persisted startup values onto a reconnected device and
// returns how many were written.
func (s *Scheduler) restore(ctx context.Context, c *device.Controller) int {
	if s.startup == nil {
		return 0
	}
	statuses, err := s.startup.ListStartupStatus(ctx, c.Name())
	if err != nil {
		s.logger.Warn("loading startup status failed", "device", c.Name(), "error", err)
		return 0
	}

	restored := 0
	for _, st := range statuses {
		var werr error
		switch st.Kind {
		case device.KindSwitch:
			_, werr = c.WriteSwitch(ctx, st.Element, int(st.Value))
		case device.KindDimmer:
			_, werr = c.WriteDimmer(ctx, st.Element, int(st.Value))
		case device.KindHeater:
			_, werr = c.WriteHeater(ctx, st.Element, st.Flag, st.Value)
		default:
			continue
		}
		if werr != nil {
			s.logger.Warn("restoring startup status failed",
				"device", c.Name(),
				"kind", st.Kind,
				"element", st.Element,
				"error", werr,
			)
			continue
		}
		restored++
	}
	return restored
}

// fireDue runs every due enabled schedule, then reschedules all of them.
func (s *Scheduler) fireDue(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	schedules, err := s.store.ListEnabled(ctx)
	if err != nil {
		return fmt.Errorf("listing schedules: %w", err)
	}

	now := s.now()
	for i := range schedules {
		sched := &schedules[i]
		updateAt := now

		if !s.claim(sched.ID) {
			s.logger.Debug("schedule still firing, skipped", "schedule_id", sched.ID)
			continue
		}
		if IsDue(sched.NextTime, now) {
			s.fire(ctx, sched)
			// A schedule fired on its exact second must still move on.
			updateAt = s.now()
			if !updateAt.After(sched.NextTime) {
				updateAt = sched.NextTime.Add(time.Second)
			}
		}

		if _, err := s.calc.UpdateSchedule(ctx, s.store, sched, updateAt); err != nil {
			s.logger.Error("updating schedule failed", "schedule_id", sched.ID, "schedule", sched.Name, "error", err)
		}
		s.release(sched.ID)
	}
	return nil
}

func (s *Scheduler) claim(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.firing[id] {
		return false
	}
	s.firing[id] = true
	return true
}

func (s *Scheduler) release(id int64) {
	s.mu.Lock()
	delete(s.firing, id)
	s.mu.Unlock()
}

func (s *Scheduler) fire(ctx context.Context, sched *Schedule) {
	s.logger.Info("schedule firing", "schedule_id", sched.ID, "schedule", sched.Name, "script_id", sched.ScriptID)

	var err error
	if s.scripts == nil {
		err = errors.New("no script runner")
	} else {
		err = s.scripts.Run(ctx, sched.ScriptID)
	}
	s.metrics.ScheduleFired(metrics.Result(err))

	if err != nil {
		s.logger.Warn("scheduled script failed", "schedule_id", sched.ID, "script_id", sched.ScriptID, "error", err)
		s.record(ctx, journal.OriginSchedule, sched.Name,
			fmt.Sprintf("schedule %d: script %d failed: %v", sched.ID, sched.ScriptID, err))
		return
	}
	s.record(ctx, journal.OriginSchedule, sched.Name,
		fmt.Sprintf("schedule %d: script %d succeeded", sched.ID, sched.ScriptID))
}

func (s *Scheduler) record(ctx context.Context, origin journal.Origin, name, message string) {
	if s.journal != nil {
		s.journal.Record(ctx, origin, name, message)
	}
}
