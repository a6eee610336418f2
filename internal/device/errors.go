package device

import "errors"

// Domain errors for the device package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, device.ErrTransport) {
//	    // the device did not answer; the scheduler will reconnect it
//	}
var (
	// ErrDeviceNotFound is returned when a device name does not exist.
	ErrDeviceNotFound = errors.New("device: not found")

	// ErrElementNotFound is returned when an element does not exist.
	ErrElementNotFound = errors.New("device: element not found")

	// ErrDeviceExists is returned when registering a device name twice.
	ErrDeviceExists = errors.New("device: already exists")

	// ErrDisabled is returned for operations on a disabled device.
	ErrDisabled = errors.New("device: disabled")

	// ErrNotConnected is returned when a driver has no open connection.
	ErrNotConnected = errors.New("device: not connected")

	// ErrTransport is returned when a request could not be sent or no reply arrived in time.
	ErrTransport = errors.New("device: transport failure")

	// ErrBadReply is returned when a reply does not have the expected shape.
	ErrBadReply = errors.New("device: unparsable reply")

	// ErrNoPort is returned when probing exhausts every candidate port.
	ErrNoPort = errors.New("device: no matching port")

	// ErrInvalidSnapshot is returned when an overview cannot be parsed.
	ErrInvalidSnapshot = errors.New("device: invalid snapshot")

	// ErrInvalidName is returned when a device or element name is empty,
	// too long or contains wire grammar delimiters.
	ErrInvalidName = errors.New("device: invalid name")

	// ErrInvalidParams is returned when protocol parameters are missing.
	ErrInvalidParams = errors.New("device: invalid parameters")
)
