// Package device models the hub's hardware: devices, their elements, and the
// controllers that serialise protocol traffic to them.
//
// # Architecture
//
//	┌──────────────────────────────────────────────────────────────┐
//	│                         Registry                             │
//	│        name → *Controller (RWMutex, populated at startup)    │
//	└──────────────┬───────────────────────────────────────────────┘
//	               │
//	               ▼
//	┌──────────────────────────┐     ┌──────────────────────────┐
//	│        Controller         │────▶│          Driver           │
//	│ • per-device mutex        │     │ serial / mesh / net       │
//	│ • °F ↔ °C at the boundary │     │ (internal/bridges/...)    │
//	│ • overview merge          │     └──────────────────────────┘
//	└──────────────┬───────────┘
//	               │
//	               ▼
//	┌──────────────────────────┐
//	│     SQLiteRepository      │
//	│ devices, elements,        │
//	│ startup_status tables     │
//	└──────────────────────────┘
//
// # Key Types
//
//   - Device: a configured piece of hardware with protocol Params
//   - Element: persisted metadata for a switch, sensor, dimmer or heater
//   - Snapshot: a driver's raw overview, in device units
//   - Overview: a snapshot merged with element metadata, in Celsius
//
// # Usage
//
//	repo := device.NewSQLiteRepository(db.DB)
//	registry := device.NewRegistry()
//	ctrl := device.NewController(d, driver, repo)
//	if err := registry.Add(ctrl); err != nil {
//	    return err
//	}
//	v, err := ctrl.ReadSensor(ctx, "TEMPINT", false)
//
// # Thread Safety
//
// Registry and Controller are safe for concurrent use. Drivers are not;
// only the owning Controller calls them.
package device
