package device

import (
	"context"
	"math"
)

// Error sentinels reported as the value of a failed read or write.
// Every failing Driver call returns the matching sentinel together with a
// non-nil error, so callers that only look at values still see failure.
const (
	SwitchError = -1
	DimmerError = -1
	SensorError = -999.0
)

// HeaterError is the heater state reported alongside a failed heater call.
var HeaterError = Heater{Max: SensorError}

// Driver is the protocol-level connection to one device.
//
// Implementations live in internal/bridges/{serial,mesh,agent}. A Driver is
// not safe for concurrent use; the owning Controller serialises every call.
// Errors wrap ErrTransport, ErrBadReply or ErrNotConnected.
type Driver interface {
	// Connect opens the device connection and verifies its identity.
	Connect(ctx context.Context) error

	// Reconnect re-opens a lost connection, preferring the last known endpoint.
	Reconnect(ctx context.Context) error

	// Close releases the connection. Closing a closed driver is a no-op.
	Close() error

	// IsConnected reports whether a connection is open. Safe to call concurrently.
	IsConnected() bool

	// Heartbeat reports whether the device answered a liveness challenge.
	Heartbeat(ctx context.Context) bool

	ReadSwitch(ctx context.Context, id string) (int, error)
	WriteSwitch(ctx context.Context, id string, value int) (int, error)
	ToggleSwitch(ctx context.Context, id string) (int, error)

	ReadDimmer(ctx context.Context, id string) (int, error)
	WriteDimmer(ctx context.Context, id string, value int) (int, error)

	// ReadSensor returns a sensor value; force asks for a live re-read
	// where the protocol caches values.
	ReadSensor(ctx context.Context, id string, force bool) (float64, error)

	ReadHeater(ctx context.Context, id string) (Heater, error)
	WriteHeater(ctx context.Context, id string, set bool, max float64) (Heater, error)

	// Overview returns the device's full raw status.
	Overview(ctx context.Context) (*Snapshot, error)
}

// roundHalf rounds v to the nearest 0.5.
func roundHalf(v float64) float64 {
	return math.Round(v*2) / 2
}

// ToCelsius converts a Fahrenheit reading, rounded to the nearest 0.5.
func ToCelsius(f float64) float64 {
	return roundHalf((f - 32) * 5 / 9)
}

// ToFahrenheit converts a Celsius value, rounded to the nearest 0.5.
func ToFahrenheit(c float64) float64 {
	return roundHalf(c*9/5 + 32)
}
