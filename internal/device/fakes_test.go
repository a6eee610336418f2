package device

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// fakeDriver is an in-memory Driver that records concurrency.
type fakeDriver struct {
	mu       sync.Mutex
	switches map[string]int
	dimmers  map[string]int
	sensors  map[string]float64
	heaters  map[string]Heater
	snapshot *Snapshot

	err       error
	delay     time.Duration
	connected atomic.Bool

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
	calls       atomic.Int32
	lastHeater  float64
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{
		switches: map[string]int{},
		dimmers:  map[string]int{},
		sensors:  map[string]float64{},
		heaters:  map[string]Heater{},
	}
}

// enter tracks concurrent calls; the returned func must be deferred.
func (f *fakeDriver) enter() func() {
	f.calls.Add(1)
	n := f.inFlight.Add(1)
	for {
		m := f.maxInFlight.Load()
		if n <= m || f.maxInFlight.CompareAndSwap(m, n) {
			break
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return func() { f.inFlight.Add(-1) }
}

func (f *fakeDriver) Connect(context.Context) error {
	defer f.enter()()
	if f.err != nil {
		return f.err
	}
	f.connected.Store(true)
	return nil
}

func (f *fakeDriver) Reconnect(ctx context.Context) error { return f.Connect(ctx) }

func (f *fakeDriver) Close() error {
	f.connected.Store(false)
	return nil
}

func (f *fakeDriver) IsConnected() bool { return f.connected.Load() }

func (f *fakeDriver) Heartbeat(context.Context) bool {
	defer f.enter()()
	return f.err == nil && f.connected.Load()
}

func (f *fakeDriver) ReadSwitch(_ context.Context, id string) (int, error) {
	defer f.enter()()
	if f.err != nil {
		return SwitchError, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.switches[id], nil
}

func (f *fakeDriver) WriteSwitch(_ context.Context, id string, value int) (int, error) {
	defer f.enter()()
	if f.err != nil {
		return SwitchError, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.switches[id] = value
	return value, nil
}

func (f *fakeDriver) ToggleSwitch(_ context.Context, id string) (int, error) {
	defer f.enter()()
	if f.err != nil {
		return SwitchError, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.switches[id] = 1 - f.switches[id]
	return f.switches[id], nil
}

func (f *fakeDriver) ReadDimmer(_ context.Context, id string) (int, error) {
	defer f.enter()()
	if f.err != nil {
		return DimmerError, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dimmers[id], nil
}

func (f *fakeDriver) WriteDimmer(_ context.Context, id string, value int) (int, error) {
	defer f.enter()()
	if f.err != nil {
		return DimmerError, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dimmers[id] = value
	return value, nil
}

func (f *fakeDriver) ReadSensor(_ context.Context, id string, _ bool) (float64, error) {
	defer f.enter()()
	if f.err != nil {
		return SensorError, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sensors[id], nil
}

func (f *fakeDriver) ReadHeater(_ context.Context, id string) (Heater, error) {
	defer f.enter()()
	if f.err != nil {
		return HeaterError, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.heaters[id], nil
}

func (f *fakeDriver) WriteHeater(_ context.Context, id string, set bool, maxValue float64) (Heater, error) {
	defer f.enter()()
	if f.err != nil {
		return HeaterError, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastHeater = maxValue
	h := Heater{Set: set, On: set, Max: maxValue}
	f.heaters[id] = h
	return h, nil
}

func (f *fakeDriver) Overview(context.Context) (*Snapshot, error) {
	defer f.enter()()
	if f.err != nil {
		return nil, f.err
	}
	return f.snapshot, nil
}

// memStore is an in-memory ControllerStore.
type memStore struct {
	mu       sync.Mutex
	devices  map[string]Protocol
	elements map[elementKey]Element
	order    []elementKey
	getErr   error
}

func newMemStore() *memStore {
	return &memStore{
		devices:  map[string]Protocol{},
		elements: map[elementKey]Element{},
	}
}

func (m *memStore) put(e Element) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := elementKey{e.Kind, e.ID}
	if _, ok := m.elements[k]; !ok {
		m.order = append(m.order, k)
	}
	m.elements[k] = e
}

func (m *memStore) EnsureDevice(_ context.Context, name string, protocol Protocol) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.devices[name]; !ok {
		m.devices[name] = protocol
	}
	return nil
}

func (m *memStore) ListElements(_ context.Context, deviceName string) ([]Element, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Element
	for _, k := range m.order {
		if e := m.elements[k]; e.Device == deviceName {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memStore) CreateElement(_ context.Context, e Element) error {
	m.put(e)
	return nil
}

func (m *memStore) GetElement(_ context.Context, deviceName string, kind Kind, id string) (*Element, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	e, ok := m.elements[elementKey{kind, id}]
	if !ok || e.Device != deviceName {
		return nil, ErrElementNotFound
	}
	return &e, nil
}
