package device

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{
			name:    "valid name",
			input:   "arduino1",
			wantErr: nil,
		},
		{
			name:    "valid name with spaces",
			input:   "Living Room Lamp",
			wantErr: nil,
		},
		{
			name:    "empty name",
			input:   "",
			wantErr: ErrInvalidName,
		},
		{
			name:    "whitespace only",
			input:   "   ",
			wantErr: ErrInvalidName,
		},
		{
			name:    "name at max length",
			input:   strings.Repeat("a", maxNameLength),
			wantErr: nil,
		},
		{
			name:    "name exceeds max length",
			input:   strings.Repeat("a", maxNameLength+1),
			wantErr: ErrInvalidName,
		},
		{
			name:    "contains section delimiter",
			input:   "bad;name",
			wantErr: ErrInvalidName,
		},
		{
			name:    "contains entry separator",
			input:   "bad:name",
			wantErr: ErrInvalidName,
		},
		{
			name:    "contains path separator",
			input:   "bad/name",
			wantErr: ErrInvalidName,
		},
		{
			name:    "contains newline",
			input:   "bad\nname",
			wantErr: ErrInvalidName,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateName(tt.input)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateName(%q) = %v, want nil", tt.input, err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateName(%q) = %v, want %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidateKind(t *testing.T) {
	for _, k := range AllKinds() {
		if err := ValidateKind(k); err != nil {
			t.Errorf("ValidateKind(%q) = %v, want nil", k, err)
		}
	}
	if err := ValidateKind("thermostat"); err == nil {
		t.Error("ValidateKind(thermostat) = nil, want error")
	}
}

func TestValidateDevice(t *testing.T) {
	tests := []struct {
		name    string
		device  Device
		wantErr error
	}{
		{
			name:   "valid serial",
			device: Device{Name: "arduino1", Params: SerialParams{Port: "/dev/ttyACM", Baud: 9600}},
		},
		{
			name:   "valid mesh",
			device: Device{Name: "zstick", Params: MeshParams{Port: "/dev/ttyUSB"}},
		},
		{
			name:   "valid net",
			device: Device{Name: "pi", Params: NetParams{URI: "http://10.0.0.5:8080/"}},
		},
		{
			name:    "serial without baud",
			device:  Device{Name: "arduino1", Params: SerialParams{Port: "/dev/ttyACM"}},
			wantErr: ErrInvalidParams,
		},
		{
			name:    "mesh without port",
			device:  Device{Name: "zstick", Params: MeshParams{ConfigPath: "/etc/zwave"}},
			wantErr: ErrInvalidParams,
		},
		{
			name:    "net without uri",
			device:  Device{Name: "pi", Params: NetParams{}},
			wantErr: ErrInvalidParams,
		},
		{
			name:    "no params",
			device:  Device{Name: "ghost"},
			wantErr: ErrInvalidParams,
		},
		{
			name:    "bad name",
			device:  Device{Name: "a;b", Params: NetParams{URI: "http://x/"}},
			wantErr: ErrInvalidName,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDevice(tt.device)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateDevice() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateDevice() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestTemperatureConversion(t *testing.T) {
	tests := []struct {
		name string
		fn   func(float64) float64
		in   float64
		want float64
	}{
		{"body temperature to celsius", ToCelsius, 98.6, 37.0},
		{"freezing to celsius", ToCelsius, 32, 0},
		{"rounds to nearest half", ToCelsius, 70, 21.0},
		{"71F rounds up", ToCelsius, 71, 21.5},
		{"celsius to fahrenheit", ToFahrenheit, 21.5, 70.5},
		{"boiling to fahrenheit", ToFahrenheit, 100, 212},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.fn(tt.in); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}
