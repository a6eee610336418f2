package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-hub/internal/device"
	"github.com/nerrad567/gray-logic-hub/internal/infrastructure/metrics"
	"github.com/nerrad567/gray-logic-hub/internal/schedule"
)

// Logger defines the logging interface used by the monitor.
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

// Elements lists and updates monitored element metadata.
// *device.SQLiteRepository satisfies it.
type Elements interface {
	ListMonitored(ctx context.Context, kinds ...device.Kind) ([]device.Element, error)
	UpdateElement(ctx context.Context, e device.Element) error
}

// Devices resolves device names to controllers. *device.Registry satisfies it.
type Devices interface {
	Get(name string) (*device.Controller, error)
}

// SampleStore persists samples. Repository satisfies it.
type SampleStore interface {
	AppendSample(ctx context.Context, s Sample) error
}

// Mirror receives a copy of every sample. *influxdb.Client satisfies it.
type Mirror interface {
	WriteElementSample(device, kind, element string, value float64, at time.Time)
}

// Config holds the monitor's collaborators. Mirror is optional.
type Config struct {
	Elements   Elements
	Devices    Devices
	Samples    SampleStore
	Mirror     Mirror
	Calculator *schedule.Calculator
	Metrics    *metrics.Metrics
	Logger     Logger

	// Now defaults to time.Now.
	Now func() time.Time
}

// Monitor polls monitored switches and sensors once per minute tick.
type Monitor struct {
	elements Elements
	devices  Devices
	samples  SampleStore
	mirror   Mirror
	calc     *schedule.Calculator
	metrics  *metrics.Metrics
	logger   Logger
	now      func() time.Time
}

// New creates a monitor from cfg.
func New(cfg Config) *Monitor {
	m := &Monitor{
		elements: cfg.Elements,
		devices:  cfg.Devices,
		samples:  cfg.Samples,
		mirror:   cfg.Mirror,
		calc:     cfg.Calculator,
		metrics:  cfg.Metrics,
		logger:   cfg.Logger,
		now:      cfg.Now,
	}
	if m.calc == nil {
		m.calc = schedule.NewCalculator(nil)
	}
	if m.logger == nil {
		m.logger = noopLogger{}
	}
	if m.now == nil {
		m.now = time.Now
	}
	return m
}

// Pass polls every monitored element whose next poll is due or past.
//
// Returns the number of samples recorded; the error reports only a failure
// to list elements. Read and write failures are logged and the pass goes on.
func (m *Monitor) Pass(ctx context.Context) (int, error) {
	elements, err := m.elements.ListMonitored(ctx, device.KindSwitch, device.KindSensor)
	if err != nil {
		return 0, fmt.Errorf("listing monitored elements: %w", err)
	}

	now := m.now()
	recorded := 0
	for _, e := range elements {
		if !e.Enabled {
			continue
		}
		passed := !e.NextPoll.IsZero() && !now.Before(e.NextPoll)
		if !e.NextPoll.IsZero() && !passed {
			continue
		}

		read := m.poll(ctx, &e)
		if read {
			recorded++
		}

		if read || (passed && e.MonitorInterval > 0) {
			e.NextPoll = m.nextPoll(now, e.MonitorInterval)
			if err := m.elements.UpdateElement(ctx, e); err != nil {
				m.logger.Warn("saving element next poll failed",
					"device", e.Device,
					"kind", e.Kind,
					"element", e.ID,
					"error", err,
				)
			}
		}
	}
	return recorded, nil
}

// poll force-reads one element and records the sample.
func (m *Monitor) poll(ctx context.Context, e *device.Element) bool {
	value, err := m.read(ctx, e)
	m.metrics.MonitorSample(string(e.Kind), metrics.Result(err))
	if err != nil {
		m.logger.Warn("monitor read failed",
			"device", e.Device,
			"kind", e.Kind,
			"element", e.ID,
			"error", err,
		)
		return false
	}

	at := m.now()
	v := value
	e.LastValue = &v

	if err := m.samples.AppendSample(ctx, Sample{Device: e.Device, Kind: e.Kind, Element: e.ID, RecordedAt: at, Value: value}); err != nil {
		m.logger.Warn("saving monitor sample failed",
			"device", e.Device,
			"kind", e.Kind,
			"element", e.ID,
			"error", err,
		)
	}
	if m.mirror != nil {
		m.mirror.WriteElementSample(e.Device, string(e.Kind), e.ID, value, at)
	}
	return true
}

func (m *Monitor) read(ctx context.Context, e *device.Element) (float64, error) {
	c, err := m.devices.Get(e.Device)
	if err != nil {
		return 0, err
	}
	if !c.Enabled() {
		return 0, fmt.Errorf("%s: %w", e.Device, device.ErrDisabled)
	}

	switch e.Kind {
	case device.KindSensor:
		return c.ReadSensor(ctx, e.ID, true)
	case device.KindSwitch:
		v, err := c.ReadSwitch(ctx, e.ID)
		return float64(v), err
	}
	return 0, fmt.Errorf("%w: cannot monitor %s", device.ErrInvalidParams, e.Kind)
}

// nextPoll is now plus the interval rounded up to whole minutes.
func (m *Monitor) nextPoll(now time.Time, intervalSeconds int) time.Time {
	minutes := (intervalSeconds + 59) / 60
	next, ok := m.calc.Next(now, schedule.RepeatMinute, minutes)
	if !ok {
		return now
	}
	return next
}
