package agent

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/nerrad567/gray-logic-hub/internal/bridges/wire"
	"github.com/nerrad567/gray-logic-hub/internal/device"
)

// Request timeouts.
const (
	defaultRequestTimeout = 5 * time.Second
	defaultSensorTimeout  = 10 * time.Second
)

// Logger defines the logging interface used by the agent driver.
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

// Options configures a Driver.
type Options struct {
	// Client defaults to a client with no global timeout; each request
	// carries its own deadline.
	Client *http.Client
	Logger Logger
}

// Ensure Driver implements device.Driver.
var _ device.Driver = (*Driver)(nil)

// Driver talks to a remote agent. The agent is assumed reachable, so
// Connect only marks the driver usable; Heartbeat detects outages.
type Driver struct {
	name   string
	uri    string
	client *http.Client
	logger Logger

	requestTimeout time.Duration
	sensorTimeout  time.Duration

	connected atomic.Bool
}

// New creates an agent driver for d.
func New(d device.Device, opts Options) (*Driver, error) {
	params, ok := d.Params.(device.NetParams)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not a net device", device.ErrInvalidParams, d.Name)
	}
	if _, err := url.Parse(params.URI); err != nil {
		return nil, fmt.Errorf("%w: %s uri: %w", device.ErrInvalidParams, d.Name, err)
	}

	drv := &Driver{
		name:           d.Name,
		uri:            params.URI,
		client:         opts.Client,
		logger:         opts.Logger,
		requestTimeout: defaultRequestTimeout,
		sensorTimeout:  defaultSensorTimeout,
	}
	if drv.client == nil {
		drv.client = &http.Client{}
	}
	if drv.logger == nil {
		drv.logger = noopLogger{}
	}
	return drv, nil
}

// Connect marks the agent usable.
func (d *Driver) Connect(context.Context) error {
	d.connected.Store(true)
	d.logger.Info("agent device enabled", "device", d.name, "uri", d.uri)
	return nil
}

// Reconnect is Connect; there is no session to re-establish.
func (d *Driver) Reconnect(ctx context.Context) error {
	return d.Connect(ctx)
}

// Close marks the agent unusable and drops idle connections.
func (d *Driver) Close() error {
	d.connected.Store(false)
	d.client.CloseIdleConnections()
	return nil
}

// IsConnected reports whether Connect has been called since the last Close.
func (d *Driver) IsConnected() bool {
	return d.connected.Load()
}

// Heartbeat requests MARCO and expects POLO.
func (d *Driver) Heartbeat(ctx context.Context) bool {
	tok, err := d.get(ctx, d.requestTimeout, wire.VerbHeartbeat)
	if err != nil {
		d.logger.Debug("agent heartbeat failed", "device", d.name, "error", err)
		return false
	}
	return tok == wire.HeartbeatReply
}

func (d *Driver) ReadSwitch(ctx context.Context, id string) (int, error) {
	return d.getInt(ctx, device.SwitchError, wire.VerbGetSwitch, id)
}

func (d *Driver) WriteSwitch(ctx context.Context, id string, value int) (int, error) {
	return d.getInt(ctx, device.SwitchError, wire.VerbSetSwitch, id, strconv.Itoa(value))
}

func (d *Driver) ToggleSwitch(ctx context.Context, id string) (int, error) {
	return d.getInt(ctx, device.SwitchError, wire.VerbToggleSwitch, id)
}

func (d *Driver) ReadDimmer(ctx context.Context, id string) (int, error) {
	return d.getInt(ctx, device.DimmerError, wire.VerbGetDimmer, id)
}

func (d *Driver) WriteDimmer(ctx context.Context, id string, value int) (int, error) {
	return d.getInt(ctx, device.DimmerError, wire.VerbSetDimmer, id, strconv.Itoa(value))
}

// ReadSensor reads a sensor; agents always sample live.
func (d *Driver) ReadSensor(ctx context.Context, id string, _ bool) (float64, error) {
	tok, err := d.get(ctx, d.sensorTimeout, wire.VerbGetSensor, id)
	if err != nil {
		return device.SensorError, err
	}
	v, err := wire.ParseFloat(tok)
	if err != nil {
		return device.SensorError, err
	}
	return v, nil
}

func (d *Driver) ReadHeater(ctx context.Context, id string) (device.Heater, error) {
	tok, err := d.get(ctx, d.requestTimeout, wire.VerbGetHeater, id)
	if err != nil {
		return device.HeaterError, err
	}
	return device.ParseHeater(tok)
}

func (d *Driver) WriteHeater(ctx context.Context, id string, set bool, maxValue float64) (device.Heater, error) {
	tok, err := d.get(ctx, d.requestTimeout, wire.VerbSetHeater, id, wire.FormatBool(set), wire.FormatFloat(maxValue))
	if err != nil {
		return device.HeaterError, err
	}
	return device.ParseHeater(tok)
}

// Overview requests the agent's full status.
func (d *Driver) Overview(ctx context.Context) (*device.Snapshot, error) {
	tok, err := d.get(ctx, d.sensorTimeout, wire.VerbOverview)
	if err != nil {
		return nil, err
	}
	return device.ParseSnapshot("{" + tok + "}")
}

// get performs one request and returns the reply token.
func (d *Driver) get(ctx context.Context, timeout time.Duration, verb string, args ...string) (string, error) {
	if !d.connected.Load() {
		return "", device.ErrNotConnected
	}

	escaped := make([]string, len(args))
	for i, a := range args {
		escaped[i] = url.PathEscape(a)
	}
	target := d.uri + wire.PathRequest(verb, escaped...)

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, http.NoBody)
	if err != nil {
		return "", fmt.Errorf("%w: building %s request: %w", device.ErrTransport, verb, err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %s %s: %w", device.ErrTransport, d.name, verb, err)
	}
	defer resp.Body.Close() //nolint:errcheck // Read-only body

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: %s %s: status %d", device.ErrTransport, d.name, verb, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, wire.MaxTokenLength+2))
	if err != nil {
		return "", fmt.Errorf("%w: reading %s reply: %w", device.ErrTransport, verb, err)
	}
	return wire.ParseToken(string(body))
}

func (d *Driver) getInt(ctx context.Context, sentinel int, verb string, args ...string) (int, error) {
	tok, err := d.get(ctx, d.requestTimeout, verb, args...)
	if err != nil {
		return sentinel, err
	}
	v, err := wire.ParseInt(tok)
	if err != nil {
		return sentinel, err
	}
	return v, nil
}
