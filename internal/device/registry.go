package device

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Logger defines the logging interface used by the device package.
// This allows different logging implementations to be used.
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

// Registry holds the controller of every configured device, keyed by name.
//
// Controllers are added once at startup and never removed while the hub
// runs. All public methods are thread-safe.
type Registry struct {
	controllers map[string]*Controller
	mu          sync.RWMutex
	logger      Logger
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		controllers: make(map[string]*Controller),
		logger:      noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// Add registers a controller. Returns ErrDeviceExists if the name is taken.
func (r *Registry) Add(c *Controller) error {
	if err := ValidateDevice(c.Device()); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.controllers[c.Name()]; ok {
		return fmt.Errorf("%w: %s", ErrDeviceExists, c.Name())
	}
	r.controllers[c.Name()] = c
	r.logger.Debug("device registered", "device", c.Name(), "protocol", c.Device().Protocol())
	return nil
}

// Get returns the controller for name.
// Returns ErrDeviceNotFound if no such device is registered.
func (r *Registry) Get(name string) (*Controller, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.controllers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, name)
	}
	return c, nil
}

// All returns every controller ordered by device name.
func (r *Registry) All() []*Controller {
	r.mu.RLock()
	out := make([]*Controller, 0, len(r.controllers))
	for _, c := range r.controllers {
		out = append(out, c)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Len returns the number of registered devices.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.controllers)
}

// HasProtocol reports whether any registered device uses p.
func (r *Registry) HasProtocol(p Protocol) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, c := range r.controllers {
		if c.Device().Protocol() == p {
			return true
		}
	}
	return false
}

// ConnectAll connects every enabled device. A device that fails to connect
// is logged and left for the scheduler's heartbeat to retry; the returned
// error joins every failure.
func (r *Registry) ConnectAll(ctx context.Context) error {
	var errs []error
	for _, c := range r.All() {
		if !c.Enabled() {
			r.logger.Info("device disabled, not connecting", "device", c.Name())
			continue
		}
		if err := c.Connect(ctx); err != nil {
			r.logger.Warn("device connect failed", "device", c.Name(), "error", err)
			errs = append(errs, err)
			continue
		}
		r.logger.Info("device connected", "device", c.Name())
	}
	return errors.Join(errs...)
}

// CloseAll closes every device connection.
func (r *Registry) CloseAll() error {
	var errs []error
	for _, c := range r.All() {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
