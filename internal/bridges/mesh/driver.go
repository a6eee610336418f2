package mesh

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/nerrad567/gray-logic-hub/internal/bridges/portclaim"
	"github.com/nerrad567/gray-logic-hub/internal/device"
)

// MaxPortIndex is the highest numeric suffix probed after the port prefix.
const MaxPortIndex = 127

// Logger defines the logging interface used by the mesh bridge.
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
	// Manager is the shared gateway manager. Required.
	Manager Manager

	// Claims is the process-wide port claim table. Required.
	Claims *portclaim.Table

	// Exists reports whether a candidate adapter file is present.
	// Defaults to os.Stat.
	Exists func(path string) bool

	Logger Logger
}

// Ensure Driver implements device.Driver.
var _ device.Driver = (*Driver)(nil)

// Driver exposes the nodes of one mesh adapter as a device. Element ids
// are decimal node ids.
type Driver struct {
	name    string
	params  device.MeshParams
	manager Manager
	claims  *portclaim.Table
	exists  func(string) bool
	logger  Logger

	path      string
	lastPath  string
	connected atomic.Bool
	unwatch   func()

	mu    sync.Mutex
	nodes map[int]bool
}

// New creates a mesh driver for d.
func New(d device.Device, opts Options) (*Driver, error) {
	params, ok := d.Params.(device.MeshParams)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not a mesh device", device.ErrInvalidParams, d.Name)
	}
	if opts.Manager == nil {
		return nil, errors.New("mesh: manager is required")
	}
	if opts.Claims == nil {
		return nil, errors.New("mesh: claim table is required")
	}

	drv := &Driver{
		name:    d.Name,
		params:  params,
		manager: opts.Manager,
		claims:  opts.Claims,
		exists:  opts.Exists,
		logger:  opts.Logger,
	}
	if drv.exists == nil {
		drv.exists = fileExists
	}
	if drv.logger == nil {
		drv.logger = noopLogger{}
	}
	return drv, nil
}

// Connect probes the numbered adapter files and hands the first free one
// to the gateway.
func (d *Driver) Connect(ctx context.Context) error {
	d.release()
	d.watch()
	return d.probe(ctx)
}

// Reconnect retries the last adapter file before probing.
func (d *Driver) Reconnect(ctx context.Context) error {
	d.release()
	d.watch()
	if d.lastPath != "" && d.exists(d.lastPath) && !d.claims.ClaimedByOther(d.lastPath, d.name) {
		if err := d.tryPath(ctx, d.lastPath); err == nil {
			return nil
		}
	}
	return d.probe(ctx)
}

// Close stops watching values and releases the adapter claim.
func (d *Driver) Close() error {
	if d.unwatch != nil {
		d.unwatch()
		d.unwatch = nil
	}
	d.release()
	return nil
}

// IsConnected reports whether an adapter was accepted by the gateway.
func (d *Driver) IsConnected() bool {
	return d.connected.Load()
}

// Port returns the adapter path, or "" when disconnected.
func (d *Driver) Port() string {
	return d.path
}

// Heartbeat reports whether the gateway driver is ready.
func (d *Driver) Heartbeat(context.Context) bool {
	return d.connected.Load() && d.manager.Ready()
}

func (d *Driver) ReadSwitch(_ context.Context, id string) (int, error) {
	v, err := d.cachedInt(id, CCSwitchBinary, PropCurrentValue)
	if err != nil {
		return device.SwitchError, err
	}
	if v != 0 {
		return 1, nil
	}
	return 0, nil
}

func (d *Driver) WriteSwitch(ctx context.Context, id string, value int) (int, error) {
	node, err := d.node(id)
	if err != nil {
		return device.SwitchError, err
	}
	on := value != 0
	if err := d.manager.SetValue(ctx, ValueID{Node: node, CommandClass: CCSwitchBinary, Property: PropTargetValue}, on); err != nil {
		return device.SwitchError, err
	}
	if on {
		return 1, nil
	}
	return 0, nil
}

func (d *Driver) ToggleSwitch(ctx context.Context, id string) (int, error) {
	current, err := d.ReadSwitch(ctx, id)
	if err != nil {
		return device.SwitchError, err
	}
	return d.WriteSwitch(ctx, id, 1-current)
}

func (d *Driver) ReadDimmer(_ context.Context, id string) (int, error) {
	v, err := d.cachedInt(id, CCSwitchMultilevel, PropCurrentValue)
	if err != nil {
		return device.DimmerError, err
	}
	return v, nil
}

// WriteDimmer clamps value to the multilevel range 0..99.
func (d *Driver) WriteDimmer(ctx context.Context, id string, value int) (int, error) {
	node, err := d.node(id)
	if err != nil {
		return device.DimmerError, err
	}
	level := min(max(value, 0), MaxDimmerLevel)
	if err := d.manager.SetValue(ctx, ValueID{Node: node, CommandClass: CCSwitchMultilevel, Property: PropTargetValue}, level); err != nil {
		return device.DimmerError, err
	}
	return level, nil
}

// ReadSensor returns the node's first multilevel sensor value. With force
// the gateway re-reads the node before answering.
func (d *Driver) ReadSensor(ctx context.Context, id string, force bool) (float64, error) {
	node, err := d.node(id)
	if err != nil {
		return device.SensorError, err
	}

	var v Value
	if force {
		v, err = d.manager.Refresh(ctx, ValueID{Node: node, CommandClass: CCSensorMultilevel})
		if err != nil {
			return device.SensorError, err
		}
	} else {
		values := d.manager.NodeValues(node, CCSensorMultilevel)
		if len(values) == 0 {
			return device.SensorError, fmt.Errorf("%w: node %d reported no sensor value", device.ErrTransport, node)
		}
		v = values[0]
	}

	f, ok := v.Float()
	if !ok {
		return device.SensorError, fmt.Errorf("%w: sensor value %s", device.ErrBadReply, v.Raw)
	}
	return f, nil
}

func (d *Driver) ReadHeater(_ context.Context, id string) (device.Heater, error) {
	node, err := d.node(id)
	if err != nil {
		return device.HeaterError, err
	}
	return d.heater(node)
}

// WriteHeater sets the thermostat mode and heating setpoint.
func (d *Driver) WriteHeater(ctx context.Context, id string, set bool, maxValue float64) (device.Heater, error) {
	node, err := d.node(id)
	if err != nil {
		return device.HeaterError, err
	}

	mode := ModeOff
	if set {
		mode = ModeHeat
	}
	if err := d.manager.SetValue(ctx, ValueID{Node: node, CommandClass: CCThermostatMode, Property: PropMode}, mode); err != nil {
		return device.HeaterError, err
	}
	if err := d.manager.SetValue(ctx, ValueID{Node: node, CommandClass: CCThermostatSetpoint, Property: PropHeatingSetpoint}, maxValue); err != nil {
		return device.HeaterError, err
	}

	h := device.Heater{Set: set, Max: maxValue}
	if state, ok := d.manager.Value(ValueID{Node: node, CommandClass: CCThermostatOperatingState, Property: PropOperatingState}); ok {
		if n, ok := state.Int(); ok {
			h.On = n != 0
		}
	}
	return h, nil
}

// Overview builds a snapshot from the cached values of every known node.
func (d *Driver) Overview(context.Context) (*device.Snapshot, error) {
	if !d.connected.Load() {
		return nil, device.ErrNotConnected
	}

	snap := &device.Snapshot{Name: d.name}
	for _, node := range d.Nodes() {
		id := strconv.Itoa(node)
		if v, ok := d.manager.Value(ValueID{Node: node, CommandClass: CCSwitchBinary, Property: PropCurrentValue}); ok {
			if n, ok := v.Int(); ok {
				snap.Switches = append(snap.Switches, device.IntReading{ID: id, Value: boolInt(n != 0)})
			}
		}
		if v, ok := d.manager.Value(ValueID{Node: node, CommandClass: CCSwitchMultilevel, Property: PropCurrentValue}); ok {
			if n, ok := v.Int(); ok {
				snap.Dimmers = append(snap.Dimmers, device.IntReading{ID: id, Value: n})
			}
		}
		if values := d.manager.NodeValues(node, CCSensorMultilevel); len(values) > 0 {
			if f, ok := values[0].Float(); ok {
				snap.Sensors = append(snap.Sensors, device.FloatReading{ID: id, Value: f})
			}
		}
		if h, err := d.heater(node); err == nil {
			snap.Heaters = append(snap.Heaters, device.HeaterReading{ID: id, Heater: h})
		}
	}
	return snap, nil
}

func (d *Driver) heater(node int) (device.Heater, error) {
	setpoint, ok := d.manager.Value(ValueID{Node: node, CommandClass: CCThermostatSetpoint, Property: PropHeatingSetpoint})
	if !ok {
		return device.HeaterError, fmt.Errorf("%w: node %d reported no setpoint", device.ErrTransport, node)
	}
	maxValue, ok := setpoint.Float()
	if !ok {
		return device.HeaterError, fmt.Errorf("%w: setpoint %s", device.ErrBadReply, setpoint.Raw)
	}

	h := device.Heater{Max: maxValue}
	if v, ok := d.manager.Value(ValueID{Node: node, CommandClass: CCThermostatMode, Property: PropMode}); ok {
		if n, ok := v.Int(); ok {
			h.Set = n != ModeOff
		}
	}
	if v, ok := d.manager.Value(ValueID{Node: node, CommandClass: CCThermostatOperatingState, Property: PropOperatingState}); ok {
		if n, ok := v.Int(); ok {
			h.On = n != 0
		}
	}
	return h, nil
}

// cachedInt reads an endpoint-0 value from the cache.
func (d *Driver) cachedInt(id string, cc CommandClass, property string) (int, error) {
	node, err := d.node(id)
	if err != nil {
		return 0, err
	}
	v, ok := d.manager.Value(ValueID{Node: node, CommandClass: cc, Property: property})
	if !ok {
		return 0, fmt.Errorf("%w: node %d reported no %d/%s", device.ErrTransport, node, cc, property)
	}
	n, ok := v.Int()
	if !ok {
		return 0, fmt.Errorf("%w: node %d value %s", device.ErrBadReply, node, v.Raw)
	}
	return n, nil
}

// node parses an element id and checks the driver is usable.
func (d *Driver) node(id string) (int, error) {
	if !d.connected.Load() {
		return 0, device.ErrNotConnected
	}
	n, err := strconv.Atoi(id)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: mesh element id %q is not a node id", device.ErrElementNotFound, id)
	}
	return n, nil
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
			d.logger.Debug("adapter claimed by another device", "device", d.name, "path", path, "owner", d.claims.Owner(path))
			continue
		}
		if err := d.tryPath(ctx, path); err != nil {
			d.logger.Debug("adapter probe failed", "device", d.name, "path", path, "error", err)
			if ctx.Err() != nil {
				return err
			}
			continue
		}
		return nil
	}
	return fmt.Errorf("%w: no mesh adapter for %s on %s0..%d", device.ErrNoPort, d.name, d.params.Port, MaxPortIndex)
}

func (d *Driver) tryPath(ctx context.Context, path string) error {
	if !d.claims.Claim(path, d.name) {
		return fmt.Errorf("%s claimed by %s", path, d.claims.Owner(path))
	}
	err := d.manager.AddDriver(ctx, AdapterOptions{Port: path, ConfigPath: d.params.ConfigPath, UserPath: d.params.UserPath})
	if err != nil {
		d.claims.Release(path, d.name)
		return err
	}

	d.path = path
	d.lastPath = path
	d.mu.Lock()
	d.nodes = make(map[int]bool)
	for _, node := range d.manager.Nodes() {
		d.nodes[node] = true
	}
	d.mu.Unlock()
	d.connected.Store(true)
	d.logger.Info("mesh adapter added", "device", d.name, "path", path)
	return nil
}

// Nodes returns the node ids seen since the adapter was added, in order.
func (d *Driver) Nodes() []int {
	d.mu.Lock()
	defer d.mu.Unlock()
	nodes := make([]int, 0, len(d.nodes))
	for node := range d.nodes {
		nodes = append(nodes, node)
	}
	sort.Ints(nodes)
	return nodes
}

func (d *Driver) watch() {
	if d.unwatch == nil {
		d.unwatch = d.manager.Watch(d.observe)
	}
}

// observe records nodes that report values after the adapter was added.
func (d *Driver) observe(v Value) {
	if !d.connected.Load() {
		return
	}
	d.mu.Lock()
	known := d.nodes[v.ID.Node]
	if !known {
		d.nodes[v.ID.Node] = true
	}
	d.mu.Unlock()
	if !known {
		d.logger.Info("mesh node discovered", "device", d.name, "node", v.ID.Node)
	}
}

func (d *Driver) release() {
	d.connected.Store(false)
	if d.path != "" {
		d.claims.Release(d.path, d.name)
		d.path = ""
	}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
