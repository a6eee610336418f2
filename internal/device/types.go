package device

import "time"

// Protocol identifies how the hub talks to a device.
type Protocol string

// Supported protocols.
const (
	// ProtocolSerial is a microcontroller speaking the line/brace text protocol over a tty.
	ProtocolSerial Protocol = "serial"

	// ProtocolMesh is a wireless mesh adapter reached through the mesh gateway.
	ProtocolMesh Protocol = "mesh"

	// ProtocolNet is a remote agent speaking the text protocol over HTTP.
	ProtocolNet Protocol = "net"
)

// Params holds protocol-specific connection parameters.
// The set of implementations is closed: SerialParams, MeshParams, NetParams.
type Params interface {
	Protocol() Protocol
	isParams()
}

// SerialParams configures a serial device.
type SerialParams struct {
	// Port is the device file prefix; a numeric suffix 0..127 is probed.
	Port string
	Baud int
}

// MeshParams configures a mesh adapter.
type MeshParams struct {
	ConfigPath string
	UserPath   string
	// Port is the adapter device file prefix, probed like SerialParams.Port.
	Port string
}

// NetParams configures a remote HTTP agent.
type NetParams struct {
	// URI is the agent base URI; verbs are appended directly.
	URI string
}

// Protocol implements Params.
func (SerialParams) Protocol() Protocol { return ProtocolSerial }

// Protocol implements Params.
func (MeshParams) Protocol() Protocol { return ProtocolMesh }

// Protocol implements Params.
func (NetParams) Protocol() Protocol { return ProtocolNet }

func (SerialParams) isParams() {}
func (MeshParams) isParams()   {}
func (NetParams) isParams()    {}

// Device is one configured piece of hardware.
// Its Params are fixed at construction and never change type.
type Device struct {
	Name        string
	DisplayName string
	Enabled     bool
	Params      Params
}

// Protocol returns the protocol implied by the device's parameters.
func (d Device) Protocol() Protocol {
	if d.Params == nil {
		return ""
	}
	return d.Params.Protocol()
}

// Kind is the type of an element attached to a device.
type Kind string

// Element kinds.
const (
	KindSwitch Kind = "switch"
	KindSensor Kind = "sensor"
	KindDimmer Kind = "dimmer"
	KindHeater Kind = "heater"
)

// AllKinds returns every element kind in overview order.
func AllKinds() []Kind {
	return []Kind{KindSwitch, KindSensor, KindHeater, KindDimmer}
}

// Unit is the temperature unit a sensor or heater reports in.
type Unit string

// Temperature units. Celsius is canonical above the controller.
const (
	UnitCelsius    Unit = "C"
	UnitFahrenheit Unit = "F"
)

// Element is persisted metadata for one switch, sensor, dimmer or heater.
type Element struct {
	Device      string
	Kind        Kind
	ID          string
	DisplayName string
	Enabled     bool

	// Monitored elements are polled by the monitor loop every
	// MonitorInterval seconds; NextPoll is the zero time when unset.
	Monitored       bool
	MonitorInterval int
	NextPoll        time.Time

	// Unit applies to sensors and heaters only.
	Unit Unit

	// LastValue is the last polled value in Celsius, nil if never polled.
	LastValue *float64
}

// NewElement returns default metadata for an element seen for the first time:
// enabled, not monitored, unit Celsius.
func NewElement(deviceName string, kind Kind, id string) Element {
	return Element{
		Device:      deviceName,
		Kind:        kind,
		ID:          id,
		DisplayName: id,
		Enabled:     true,
		Unit:        UnitCelsius,
	}
}

// Heater is the state of a heater element.
type Heater struct {
	// Set is true when heating is enabled.
	Set bool
	// On is true while the heater is actively heating.
	On bool
	// Max is the target temperature.
	Max float64
}

// StartupStatus is the last value an action wrote to an element,
// replayed after the device reconnects.
type StartupStatus struct {
	Device  string
	Kind    Kind
	Element string
	// Value is the switch/dimmer value or the heater maximum.
	Value float64
	// Flag is the heater enabled state; unused for switches and dimmers.
	Flag bool
}

// Snapshot is a device's raw status as reported by its driver, in device units.
type Snapshot struct {
	// Name is the name the device reported; empty if it reported none.
	Name     string
	Switches []IntReading
	Sensors  []FloatReading
	Heaters  []HeaterReading
	Dimmers  []IntReading
}

// IntReading is one switch or dimmer value from a snapshot.
type IntReading struct {
	ID    string
	Value int
}

// FloatReading is one sensor value from a snapshot.
type FloatReading struct {
	ID    string
	Value float64
}

// HeaterReading is one heater state from a snapshot.
type HeaterReading struct {
	ID     string
	Heater Heater
}

// Overview is a snapshot merged with persisted element metadata.
// All temperatures are Celsius.
type Overview struct {
	Device   string
	Switches []SwitchStatus
	Sensors  []SensorStatus
	Heaters  []HeaterStatus
	Dimmers  []DimmerStatus
}

// SwitchStatus is a live switch value with its metadata.
type SwitchStatus struct {
	Element Element
	Value   int
}

// SensorStatus is a live sensor value with its metadata.
type SensorStatus struct {
	Element Element
	Value   float64
}

// HeaterStatus is a live heater state with its metadata.
type HeaterStatus struct {
	Element Element
	Heater  Heater
}

// DimmerStatus is a live dimmer value with its metadata.
type DimmerStatus struct {
	Element Element
	Value   int
}
