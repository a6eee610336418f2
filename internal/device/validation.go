package device

import (
	"fmt"
	"strings"
)

// Validation constants.
const (
	maxNameLength = 100

	// snapshotDelimiters may not appear in names: they would break the
	// overview grammar and the request line format.
	snapshotDelimiters = "{};,:|\n\r/"
)

// ValidateName checks a device or element name.
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidName)
	}
	if len(name) > maxNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidName, maxNameLength)
	}
	if strings.ContainsAny(name, snapshotDelimiters) {
		return fmt.Errorf("%w: %q contains one of %q", ErrInvalidName, name, snapshotDelimiters)
	}
	return nil
}

// ValidateKind checks that k is a known element kind.
func ValidateKind(k Kind) error {
	switch k {
	case KindSwitch, KindSensor, KindDimmer, KindHeater:
		return nil
	default:
		return fmt.Errorf("device: invalid element kind %q", k)
	}
}

// ValidateDevice checks a device before it is registered.
func ValidateDevice(d Device) error {
	if err := ValidateName(d.Name); err != nil {
		return err
	}

	switch p := d.Params.(type) {
	case SerialParams:
		if p.Port == "" || p.Baud <= 0 {
			return fmt.Errorf("%w: serial device %s needs a port and baud rate", ErrInvalidParams, d.Name)
		}
	case MeshParams:
		if p.Port == "" {
			return fmt.Errorf("%w: mesh device %s needs a port", ErrInvalidParams, d.Name)
		}
	case NetParams:
		if p.URI == "" {
			return fmt.Errorf("%w: net device %s needs a uri", ErrInvalidParams, d.Name)
		}
	default:
		return fmt.Errorf("%w: device %s has no protocol parameters", ErrInvalidParams, d.Name)
	}
	return nil
}
