package automation

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/nerrad567/gray-logic-hub/internal/device"
	"github.com/nerrad567/gray-logic-hub/internal/journal"
	"github.com/nerrad567/gray-logic-hub/internal/process"
)

// fakeDriver is an in-memory device.Driver.
type fakeDriver struct {
	mu       sync.Mutex
	switches map[string]int
	dimmers  map[string]int
	heaters  map[string]device.Heater
	err      error
	writes   int
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{
		switches: map[string]int{},
		dimmers:  map[string]int{},
		heaters:  map[string]device.Heater{},
	}
}

func (f *fakeDriver) Connect(context.Context) error   { return f.err }
func (f *fakeDriver) Reconnect(context.Context) error { return f.err }
func (f *fakeDriver) Close() error                    { return nil }
func (f *fakeDriver) IsConnected() bool               { return f.err == nil }
func (f *fakeDriver) Heartbeat(context.Context) bool  { return f.err == nil }

func (f *fakeDriver) ReadSwitch(_ context.Context, id string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return device.SwitchError, f.err
	}
	return f.switches[id], nil
}

func (f *fakeDriver) WriteSwitch(_ context.Context, id string, value int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return device.SwitchError, f.err
	}
	f.writes++
	f.switches[id] = value
	return value, nil
}

func (f *fakeDriver) ToggleSwitch(_ context.Context, id string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return device.SwitchError, f.err
	}
	f.writes++
	f.switches[id] = 1 - f.switches[id]
	return f.switches[id], nil
}

func (f *fakeDriver) ReadDimmer(_ context.Context, id string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dimmers[id], f.err
}

func (f *fakeDriver) WriteDimmer(_ context.Context, id string, value int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return device.DimmerError, f.err
	}
	f.writes++
	f.dimmers[id] = value
	return value, nil
}

func (f *fakeDriver) ReadSensor(context.Context, string, bool) (float64, error) {
	return 20, f.err
}

func (f *fakeDriver) ReadHeater(_ context.Context, id string) (device.Heater, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.heaters[id], f.err
}

func (f *fakeDriver) WriteHeater(_ context.Context, id string, set bool, maxValue float64) (device.Heater, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return device.HeaterError, f.err
	}
	f.writes++
	h := device.Heater{Set: set, Max: maxValue}
	f.heaters[id] = h
	return h, nil
}

func (f *fakeDriver) Overview(context.Context) (*device.Snapshot, error) {
	return &device.Snapshot{}, f.err
}

// nullStore satisfies device.ControllerStore with no elements.
type nullStore struct{}

func (nullStore) EnsureDevice(context.Context, string, device.Protocol) error { return nil }
func (nullStore) CreateElement(context.Context, device.Element) error         { return nil }
func (nullStore) ListElements(context.Context, string) ([]device.Element, error) {
	return nil, nil
}
func (nullStore) GetElement(context.Context, string, device.Kind, string) (*device.Element, error) {
	return nil, device.ErrElementNotFound
}

// startupRecorder is an in-memory StartupStore.
type startupRecorder struct {
	mu     sync.Mutex
	saved  []device.StartupStatus
	failed bool
}

func (s *startupRecorder) SetStartupStatus(_ context.Context, st device.StartupStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failed {
		return errors.New("disk full")
	}
	s.saved = append(s.saved, st)
	return nil
}

// fakeJournal records entries in memory.
type fakeJournal struct {
	mu      sync.Mutex
	entries []journal.Entry
}

func (j *fakeJournal) Record(_ context.Context, origin journal.Origin, name, message string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, journal.Entry{Origin: origin, Name: name, Message: message})
}

func (j *fakeJournal) byOrigin(origin journal.Origin) []journal.Entry {
	j.mu.Lock()
	defer j.mu.Unlock()
	var out []journal.Entry
	for _, e := range j.entries {
		if e.Origin == origin {
			out = append(out, e)
		}
	}
	return out
}

// fakeCommands records spawned commands and replays canned output.
type fakeCommands struct {
	cmds   []process.Command
	lines  []string
	result process.Result
	err    error
}

func (f *fakeCommands) Run(_ context.Context, cmd process.Command, onLine process.LineFunc) (process.Result, error) {
	f.cmds = append(f.cmds, cmd)
	if f.err != nil {
		return process.Result{}, f.err
	}
	for _, l := range f.lines {
		onLine(process.StreamStdout, l)
	}
	onLine(process.StreamStderr, "ignored")
	return f.result, nil
}

// memScripts is an in-memory ScriptStore.
type memScripts struct {
	actions map[int64]Action
	scripts map[int64]Script
}

func newMemScripts() *memScripts {
	return &memScripts{actions: map[int64]Action{}, scripts: map[int64]Script{}}
}

func (m *memScripts) addAction(a Action) int64 {
	a.ID = int64(len(m.actions) + 1)
	m.actions[a.ID] = a
	return a.ID
}

func (m *memScripts) addScript(id int64, name string, steps ...Step) {
	m.scripts[id] = Script{ID: id, Name: name, Steps: steps}
}

func (m *memScripts) GetScript(_ context.Context, id int64) (*Script, error) {
	s, ok := m.scripts[id]
	if !ok {
		return nil, ErrScriptNotFound
	}
	return &s, nil
}

func (m *memScripts) GetAction(_ context.Context, id int64) (*Action, error) {
	a, ok := m.actions[id]
	if !ok {
		return nil, ErrActionNotFound
	}
	return &a, nil
}

// testRig bundles an executor over one enabled and one disabled device.
type testRig struct {
	exec     *Executor
	runner   *Runner
	scripts  *memScripts
	driver   *fakeDriver
	startup  *startupRecorder
	journal  *fakeJournal
	commands *fakeCommands
}

func newTestRig(t *testing.T, scriptsDir string) *testRig {
	t.Helper()

	reg := device.NewRegistry()
	drv := newFakeDriver()
	params := device.SerialParams{Port: "/dev/ttyACM", Baud: 9600}
	if err := reg.Add(device.NewController(device.Device{Name: "arduino1", Enabled: true, Params: params}, drv, nullStore{})); err != nil {
		t.Fatalf("adding device: %v", err)
	}
	if err := reg.Add(device.NewController(device.Device{Name: "garage", Enabled: false, Params: params}, newFakeDriver(), nullStore{})); err != nil {
		t.Fatalf("adding device: %v", err)
	}

	rig := &testRig{
		scripts:  newMemScripts(),
		driver:   drv,
		startup:  &startupRecorder{},
		journal:  &fakeJournal{},
		commands: &fakeCommands{},
	}
	rig.exec = NewExecutor(ExecutorConfig{
		Devices:    reg,
		Startup:    rig.startup,
		Journal:    rig.journal,
		Commands:   rig.commands,
		ScriptsDir: scriptsDir,
	})
	rig.runner = NewRunner(rig.scripts, rig.exec)
	return rig
}
