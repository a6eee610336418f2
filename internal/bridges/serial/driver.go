package serial

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync/atomic"
	"time"

	goserial "go.bug.st/serial"

	"github.com/nerrad567/gray-logic-hub/internal/bridges/portclaim"
	"github.com/nerrad567/gray-logic-hub/internal/bridges/wire"
	"github.com/nerrad567/gray-logic-hub/internal/device"
)

// Serial operation constants.
const (
	// MaxPortIndex is the highest numeric suffix probed after the port prefix.
	MaxPortIndex = 127

	// defaultReadTimeout bounds every reply except sensor reads.
	defaultReadTimeout = 5 * time.Second

	// defaultSensorTimeout bounds sensor reads; some sensors sample slowly.
	defaultSensorTimeout = 10 * time.Second

	// defaultSettleDelay is how long a board needs after the port opens
	// before it answers (opening toggles DTR, which resets most boards).
	defaultSettleDelay = 2 * time.Second
)

// Logger defines the logging interface used by the serial driver.
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

// Port is an open serial line. go.bug.st/serial ports satisfy it.
type Port interface {
	io.ReadWriteCloser
	SetReadTimeout(t time.Duration) error
	ResetInputBuffer() error
}

// Opener opens a serial port at the given baud rate.
type Opener func(path string, baud int) (Port, error)

// OpenPort opens path with 8N1 framing.
func OpenPort(path string, baud int) (Port, error) {
	p, err := goserial.Open(path, &goserial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   goserial.NoParity,
		StopBits: goserial.OneStopBit,
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Options configures a Driver.
type Options struct {
	// Claims is the process-wide port claim table. Required.
	Claims *portclaim.Table

	// Open defaults to OpenPort.
	Open Opener

	// Exists reports whether a candidate device file is present.
	// Defaults to os.Stat.
	Exists func(path string) bool

	Logger Logger
}

// Ensure Driver implements device.Driver.
var _ device.Driver = (*Driver)(nil)

// Driver talks to a microcontroller over a serial line using the wire
// protocol. It is not safe for concurrent use; device.Controller
// serialises calls.
type Driver struct {
	name   string
	params device.SerialParams
	claims *portclaim.Table
	open   Opener
	exists func(string) bool
	logger Logger

	readTimeout   time.Duration
	sensorTimeout time.Duration
	settle        time.Duration

	port      Port
	path      string
	lastPath  string
	connected atomic.Bool
}

// New creates a serial driver for d.
func New(d device.Device, opts Options) (*Driver, error) {
	params, ok := d.Params.(device.SerialParams)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not a serial device", device.ErrInvalidParams, d.Name)
	}
	if opts.Claims == nil {
		return nil, errors.New("serial: claim table is required")
	}

	drv := &Driver{
		name:          d.Name,
		params:        params,
		claims:        opts.Claims,
		open:          opts.Open,
		exists:        opts.Exists,
		logger:        opts.Logger,
		readTimeout:   defaultReadTimeout,
		sensorTimeout: defaultSensorTimeout,
		settle:        defaultSettleDelay,
	}
	if drv.open == nil {
		drv.open = OpenPort
	}
	if drv.exists == nil {
		drv.exists = fileExists
	}
	if drv.logger == nil {
		drv.logger = noopLogger{}
	}
	return drv, nil
}

// Connect probes the numbered ports for a board that answers NAME with
// this device's name.
func (d *Driver) Connect(ctx context.Context) error {
	_ = d.closePort()
	return d.probe(ctx)
}

// Reconnect reopens the last good port, falling back to a full probe.
func (d *Driver) Reconnect(ctx context.Context) error {
	_ = d.closePort()
	if d.lastPath != "" && d.exists(d.lastPath) {
		if err := d.tryPath(ctx, d.lastPath); err == nil {
			return nil
		}
	}
	return d.probe(ctx)
}

// Close releases the port and its claim.
func (d *Driver) Close() error {
	return d.closePort()
}

// IsConnected reports whether a verified port is open.
func (d *Driver) IsConnected() bool {
	return d.connected.Load()
}

// Port returns the path of the open port, or "" when disconnected.
func (d *Driver) Port() string {
	return d.path
}

// Heartbeat sends MARCO and expects POLO.
func (d *Driver) Heartbeat(ctx context.Context) bool {
	tok, err := d.request(ctx, d.readTimeout, wire.VerbHeartbeat)
	return err == nil && tok == wire.HeartbeatReply
}

func (d *Driver) ReadSwitch(ctx context.Context, id string) (int, error) {
	return d.requestInt(ctx, device.SwitchError, wire.VerbGetSwitch, id)
}

func (d *Driver) WriteSwitch(ctx context.Context, id string, value int) (int, error) {
	return d.requestInt(ctx, device.SwitchError, wire.VerbSetSwitch, id, strconv.Itoa(value))
}

func (d *Driver) ToggleSwitch(ctx context.Context, id string) (int, error) {
	return d.requestInt(ctx, device.SwitchError, wire.VerbToggleSwitch, id)
}

func (d *Driver) ReadDimmer(ctx context.Context, id string) (int, error) {
	return d.requestInt(ctx, device.DimmerError, wire.VerbGetDimmer, id)
}

func (d *Driver) WriteDimmer(ctx context.Context, id string, value int) (int, error) {
	return d.requestInt(ctx, device.DimmerError, wire.VerbSetDimmer, id, strconv.Itoa(value))
}

// ReadSensor reads a sensor. Serial boards always sample live, so force
// has no effect.
func (d *Driver) ReadSensor(ctx context.Context, id string, _ bool) (float64, error) {
	tok, err := d.request(ctx, d.sensorTimeout, wire.VerbGetSensor, id)
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
	return d.requestHeater(ctx, wire.VerbGetHeater, id)
}

func (d *Driver) WriteHeater(ctx context.Context, id string, set bool, maxValue float64) (device.Heater, error) {
	return d.requestHeater(ctx, wire.VerbSetHeater, id, wire.FormatBool(set), wire.FormatFloat(maxValue))
}

// Overview asks the board for its full status.
func (d *Driver) Overview(ctx context.Context) (*device.Snapshot, error) {
	tok, err := d.request(ctx, d.sensorTimeout, wire.VerbOverview)
	if err != nil {
		return nil, err
	}
	return device.ParseSnapshot("{" + tok + "}")
}

func (d *Driver) probe(ctx context.Context) error {
	for n := 0; n <= MaxPortIndex; n++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: probe cancelled: %w", device.ErrTransport, err)
		}
		path := d.params.Port + strconv.Itoa(n)
		if !d.exists(path) {
			continue
		}
		if d.claims.ClaimedByOther(path, d.name) {
			d.logger.Debug("port claimed by another device", "device", d.name, "path", path, "owner", d.claims.Owner(path))
			continue
		}
		if err := d.tryPath(ctx, path); err != nil {
			d.logger.Debug("port probe failed", "device", d.name, "path", path, "error", err)
			continue
		}
		return nil
	}
	return fmt.Errorf("%w: %s not found on %s0..%d", device.ErrNoPort, d.name, d.params.Port, MaxPortIndex)
}

// tryPath claims, opens and verifies one candidate port.
func (d *Driver) tryPath(ctx context.Context, path string) error {
	if !d.claims.Claim(path, d.name) {
		return fmt.Errorf("%s claimed by %s", path, d.claims.Owner(path))
	}

	p, err := d.open(path, d.params.Baud)
	if err != nil {
		d.claims.Release(path, d.name)
		return fmt.Errorf("%w: opening %s: %w", device.ErrTransport, path, err)
	}
	if d.settle > 0 {
		select {
		case <-time.After(d.settle):
		case <-ctx.Done():
		}
	}

	d.port = p
	d.path = path
	d.connected.Store(true)

	name, err := d.request(ctx, d.readTimeout, wire.VerbName)
	if err != nil || name != d.name {
		_ = d.closePort()
		if err == nil {
			err = fmt.Errorf("%s answered as %q", path, name)
		}
		return err
	}

	d.lastPath = path
	d.logger.Info("serial device connected", "device", d.name, "path", path, "baud", d.params.Baud)
	return nil
}

func (d *Driver) closePort() error {
	d.connected.Store(false)
	if d.port == nil {
		return nil
	}
	err := d.port.Close()
	d.claims.Release(d.path, d.name)
	d.port = nil
	d.path = ""
	if err != nil {
		return fmt.Errorf("closing %s: %w", d.name, err)
	}
	return nil
}

// request sends one line and waits for a brace token.
func (d *Driver) request(ctx context.Context, timeout time.Duration, verb string, args ...string) (string, error) {
	if d.port == nil || !d.connected.Load() {
		return "", device.ErrNotConnected
	}
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %w", device.ErrTransport, err)
	}

	if err := d.port.ResetInputBuffer(); err != nil {
		d.logger.Debug("serial input flush failed", "device", d.name, "error", err)
	}
	if err := d.port.SetReadTimeout(timeout); err != nil {
		return "", fmt.Errorf("%w: setting read timeout: %w", device.ErrTransport, err)
	}
	if _, err := io.WriteString(d.port, wire.FormatRequest(verb, args...)); err != nil {
		return "", fmt.Errorf("%w: writing %s: %w", device.ErrTransport, verb, err)
	}

	tok, err := wire.ReadToken(d.port)
	if err != nil {
		return "", fmt.Errorf("%s %s: %w", d.name, verb, err)
	}
	return tok, nil
}

func (d *Driver) requestInt(ctx context.Context, sentinel int, verb string, args ...string) (int, error) {
	tok, err := d.request(ctx, d.readTimeout, verb, args...)
	if err != nil {
		return sentinel, err
	}
	v, err := wire.ParseInt(tok)
	if err != nil {
		return sentinel, err
	}
	return v, nil
}

func (d *Driver) requestHeater(ctx context.Context, verb string, args ...string) (device.Heater, error) {
	tok, err := d.request(ctx, d.readTimeout, verb, args...)
	if err != nil {
		return device.HeaterError, err
	}
	return device.ParseHeater(tok)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
