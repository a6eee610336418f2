package device

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ControllerStore is the persistence a Controller reads element units from
// and builds overviews against.
type ControllerStore interface {
	OverviewStore
	GetElement(ctx context.Context, deviceName string, kind Kind, id string) (*Element, error)
}

// Controller owns one Device and its Driver.
//
// Every protocol exchange runs under the controller's mutex, so at most one
// operation is in flight against the device. The mutex is taken only around
// the driver call itself and never across a store call or back into the
// automation layer, which is why nested scripts targeting the same device
// cannot deadlock on it.
//
// Temperatures for elements whose persisted unit is Fahrenheit are converted
// at this boundary; everything above the controller is Celsius.
type Controller struct {
	device    Device
	driver    Driver
	store     ControllerStore
	overviews *OverviewBuilder
	logger    Logger

	mu sync.Mutex // serialises driver I/O
}

// NewController creates a controller for d driven by drv.
func NewController(d Device, drv Driver, store ControllerStore) *Controller {
	return &Controller{
		device:    d,
		driver:    drv,
		store:     store,
		overviews: NewOverviewBuilder(store),
		logger:    noopLogger{},
	}
}

// SetLogger sets the logger for the controller and its overview builder.
func (c *Controller) SetLogger(logger Logger) {
	c.logger = logger
	c.overviews.SetLogger(logger)
}

// Device returns the controlled device.
func (c *Controller) Device() Device {
	return c.device
}

// Name returns the device name.
func (c *Controller) Name() string {
	return c.device.Name
}

// Enabled reports whether the device is enabled in configuration.
func (c *Controller) Enabled() bool {
	return c.device.Enabled
}

// Connect opens the device connection.
func (c *Controller) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.driver.Connect(ctx); err != nil {
		return fmt.Errorf("connecting %s: %w", c.device.Name, err)
	}
	return nil
}

// Reconnect re-opens the device connection.
func (c *Controller) Reconnect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.driver.Reconnect(ctx); err != nil {
		return fmt.Errorf("reconnecting %s: %w", c.device.Name, err)
	}
	return nil
}

// Close closes the device connection.
func (c *Controller) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.driver.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", c.device.Name, err)
	}
	return nil
}

// IsConnected reports the driver's connection state without taking the lock.
func (c *Controller) IsConnected() bool {
	return c.driver.IsConnected()
}

// Heartbeat challenges the device and reports whether it answered.
func (c *Controller) Heartbeat(ctx context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.driver.Heartbeat(ctx)
}

// ReadSwitch returns a switch value.
func (c *Controller) ReadSwitch(ctx context.Context, id string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.intResult(c.driver.ReadSwitch(ctx, id))
}

// WriteSwitch sets a switch and returns the value the device reports.
func (c *Controller) WriteSwitch(ctx context.Context, id string, value int) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.intResult(c.driver.WriteSwitch(ctx, id, value))
}

// ToggleSwitch inverts a switch and returns its new value.
func (c *Controller) ToggleSwitch(ctx context.Context, id string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.intResult(c.driver.ToggleSwitch(ctx, id))
}

// ReadDimmer returns a dimmer value.
func (c *Controller) ReadDimmer(ctx context.Context, id string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.intResult(c.driver.ReadDimmer(ctx, id))
}

// WriteDimmer sets a dimmer and returns the value the device reports.
func (c *Controller) WriteDimmer(ctx context.Context, id string, value int) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.intResult(c.driver.WriteDimmer(ctx, id, value))
}

// ReadSensor returns a sensor value in Celsius.
func (c *Controller) ReadSensor(ctx context.Context, id string, force bool) (float64, error) {
	unit := c.unitOf(ctx, KindSensor, id)

	v, err := c.readSensor(ctx, id, force)
	if err != nil {
		return SensorError, c.wrap(err)
	}
	if unit == UnitFahrenheit {
		v = ToCelsius(v)
	}
	return v, nil
}

func (c *Controller) readSensor(ctx context.Context, id string, force bool) (float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.driver.ReadSensor(ctx, id, force)
}

// ReadHeater returns a heater state with Max in Celsius.
func (c *Controller) ReadHeater(ctx context.Context, id string) (Heater, error) {
	unit := c.unitOf(ctx, KindHeater, id)

	h, err := c.readHeater(ctx, id)
	if err != nil {
		return HeaterError, c.wrap(err)
	}
	if unit == UnitFahrenheit {
		h.Max = ToCelsius(h.Max)
	}
	return h, nil
}

func (c *Controller) readHeater(ctx context.Context, id string) (Heater, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.driver.ReadHeater(ctx, id)
}

// WriteHeater enables or disables a heater and sets its maximum (Celsius).
func (c *Controller) WriteHeater(ctx context.Context, id string, set bool, maxC float64) (Heater, error) {
	unit := c.unitOf(ctx, KindHeater, id)

	target := maxC
	if unit == UnitFahrenheit {
		target = ToFahrenheit(maxC)
	}

	h, err := c.writeHeater(ctx, id, set, target)
	if err != nil {
		return HeaterError, c.wrap(err)
	}
	if unit == UnitFahrenheit {
		h.Max = ToCelsius(h.Max)
	}
	return h, nil
}

func (c *Controller) writeHeater(ctx context.Context, id string, set bool, maxValue float64) (Heater, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.driver.WriteHeater(ctx, id, set, maxValue)
}

// Overview reads the device's full status and merges it with persisted
// metadata, creating default metadata for unseen elements.
func (c *Controller) Overview(ctx context.Context) (*Overview, error) {
	snap, err := c.snapshot(ctx)
	if err != nil {
		return nil, c.wrap(err)
	}

	ov, err := c.overviews.Build(ctx, snap, c.device.Name, c.device.Protocol())
	if err != nil {
		return nil, err
	}

	for i := range ov.Sensors {
		s := &ov.Sensors[i]
		if s.Element.Unit == UnitFahrenheit && s.Value != SensorError {
			s.Value = ToCelsius(s.Value)
		}
	}
	for i := range ov.Heaters {
		h := &ov.Heaters[i]
		if h.Element.Unit == UnitFahrenheit && h.Heater.Max != SensorError {
			h.Heater.Max = ToCelsius(h.Heater.Max)
		}
	}
	return ov, nil
}

func (c *Controller) snapshot(ctx context.Context) (*Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.driver.Overview(ctx)
}

// unitOf looks up an element's unit; unknown elements are Celsius.
func (c *Controller) unitOf(ctx context.Context, kind Kind, id string) Unit {
	e, err := c.store.GetElement(ctx, c.device.Name, kind, id)
	if err != nil {
		if !errors.Is(err, ErrElementNotFound) {
			c.logger.Warn("element unit lookup failed", "device", c.device.Name, "kind", kind, "element", id, "error", err)
		}
		return UnitCelsius
	}
	return e.Unit
}

func (c *Controller) intResult(v int, err error) (int, error) {
	if err != nil {
		return v, c.wrap(err)
	}
	return v, nil
}

func (c *Controller) wrap(err error) error {
	return fmt.Errorf("%s: %w", c.device.Name, err)
}
