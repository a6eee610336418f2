package device

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func newTestController(t *testing.T) (*Controller, *fakeDriver, *memStore) {
	t.Helper()
	drv := newFakeDriver()
	store := newMemStore()
	d := Device{Name: "arduino1", Enabled: true, Params: SerialParams{Port: "/dev/ttyACM", Baud: 9600}}
	return NewController(d, drv, store), drv, store
}

func TestController_SwitchAndDimmer(t *testing.T) {
	ctx := context.Background()
	c, _, _ := newTestController(t)

	if v, err := c.WriteSwitch(ctx, "1", 1); err != nil || v != 1 {
		t.Fatalf("WriteSwitch() = %d, %v", v, err)
	}
	if v, err := c.ToggleSwitch(ctx, "1"); err != nil || v != 0 {
		t.Fatalf("ToggleSwitch() = %d, %v", v, err)
	}
	if v, err := c.ReadSwitch(ctx, "1"); err != nil || v != 0 {
		t.Fatalf("ReadSwitch() = %d, %v", v, err)
	}
	if v, err := c.WriteDimmer(ctx, "D1", 75); err != nil || v != 75 {
		t.Fatalf("WriteDimmer() = %d, %v", v, err)
	}
	if v, err := c.ReadDimmer(ctx, "D1"); err != nil || v != 75 {
		t.Fatalf("ReadDimmer() = %d, %v", v, err)
	}
}

func TestController_ErrorsKeepSentinels(t *testing.T) {
	ctx := context.Background()
	c, drv, _ := newTestController(t)
	drv.err = ErrTransport

	if v, err := c.ReadSwitch(ctx, "1"); !errors.Is(err, ErrTransport) || v != SwitchError {
		t.Errorf("ReadSwitch() = %d, %v", v, err)
	}
	if v, err := c.ReadDimmer(ctx, "1"); !errors.Is(err, ErrTransport) || v != DimmerError {
		t.Errorf("ReadDimmer() = %d, %v", v, err)
	}
	if v, err := c.ReadSensor(ctx, "T", false); !errors.Is(err, ErrTransport) || v != SensorError {
		t.Errorf("ReadSensor() = %v, %v", v, err)
	}
	if h, err := c.ReadHeater(ctx, "H"); !errors.Is(err, ErrTransport) || h != HeaterError {
		t.Errorf("ReadHeater() = %+v, %v", h, err)
	}
	if _, err := c.Overview(ctx); !errors.Is(err, ErrTransport) {
		t.Errorf("Overview() err = %v", err)
	}
}

func TestController_FahrenheitConversion(t *testing.T) {
	ctx := context.Background()
	c, drv, store := newTestController(t)

	sensor := NewElement("arduino1", KindSensor, "TEMPINT")
	sensor.Unit = UnitFahrenheit
	store.put(sensor)
	heater := NewElement("arduino1", KindHeater, "H1")
	heater.Unit = UnitFahrenheit
	store.put(heater)

	drv.sensors["TEMPINT"] = 98.6
	drv.sensors["TEMPEXT"] = 12.5

	if v, err := c.ReadSensor(ctx, "TEMPINT", false); err != nil || v != 37.0 {
		t.Errorf("ReadSensor(F) = %v, %v; want 37.0", v, err)
	}
	if v, err := c.ReadSensor(ctx, "TEMPEXT", false); err != nil || v != 12.5 {
		t.Errorf("ReadSensor(unknown element) = %v, %v; want 12.5", v, err)
	}

	h, err := c.WriteHeater(ctx, "H1", true, 21.5)
	if err != nil {
		t.Fatalf("WriteHeater() error = %v", err)
	}
	if drv.lastHeater != 70.5 {
		t.Errorf("driver received max %v, want 70.5", drv.lastHeater)
	}
	if h.Max != 21.5 || !h.Set {
		t.Errorf("WriteHeater() = %+v, want Max 21.5", h)
	}
}

func TestController_UnitLookupFailureDefaultsToCelsius(t *testing.T) {
	c, drv, store := newTestController(t)
	store.getErr = errors.New("disk on fire")
	drv.sensors["T"] = 80

	if v, err := c.ReadSensor(context.Background(), "T", true); err != nil || v != 80 {
		t.Errorf("ReadSensor() = %v, %v; want 80", v, err)
	}
}

func TestController_OverviewConvertsFahrenheit(t *testing.T) {
	c, drv, store := newTestController(t)
	s := NewElement("dev1", KindSensor, "T")
	s.Unit = UnitFahrenheit
	store.put(s)
	drv.snapshot = &Snapshot{
		Name:    "dev1",
		Sensors: []FloatReading{{ID: "T", Value: 98.6}, {ID: "U", Value: 20}},
		Heaters: []HeaterReading{{ID: "H", Heater: HeaterError}},
	}

	ov, err := c.Overview(context.Background())
	if err != nil {
		t.Fatalf("Overview() error = %v", err)
	}
	if ov.Sensors[0].Value != 37.0 {
		t.Errorf("F sensor = %v, want 37.0", ov.Sensors[0].Value)
	}
	if ov.Sensors[1].Value != 20 {
		t.Errorf("C sensor = %v, want 20", ov.Sensors[1].Value)
	}
	if ov.Heaters[0].Heater.Max != SensorError {
		t.Errorf("heater sentinel = %v, want unchanged", ov.Heaters[0].Heater.Max)
	}
}

func TestController_SerialisesDriverCalls(t *testing.T) {
	ctx := context.Background()
	c, drv, _ := newTestController(t)
	drv.delay = 2 * time.Millisecond
	drv.connected.Store(true)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(4)
		go func() { defer wg.Done(); _, _ = c.ReadSwitch(ctx, "1") }()
		go func() { defer wg.Done(); _, _ = c.ReadSensor(ctx, "T", false) }()
		go func() { defer wg.Done(); _, _ = c.WriteHeater(ctx, "H", true, 20) }()
		go func() { defer wg.Done(); c.Heartbeat(ctx) }()
	}
	wg.Wait()

	if got := drv.maxInFlight.Load(); got != 1 {
		t.Errorf("max concurrent driver calls = %d, want 1", got)
	}
	if got := drv.calls.Load(); got != 32 {
		t.Errorf("driver calls = %d, want 32", got)
	}
}

func TestController_ConnectLifecycle(t *testing.T) {
	ctx := context.Background()
	c, drv, _ := newTestController(t)

	if c.IsConnected() {
		t.Fatal("connected before Connect")
	}
	if err := c.Connect(ctx); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if !c.IsConnected() || !c.Heartbeat(ctx) {
		t.Error("expected connected and heartbeat ok")
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if c.Heartbeat(ctx) {
		t.Error("heartbeat ok after Close")
	}

	drv.err = ErrNoPort
	if err := c.Reconnect(ctx); !errors.Is(err, ErrNoPort) {
		t.Errorf("Reconnect() err = %v, want ErrNoPort", err)
	}
}
