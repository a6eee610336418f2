package automation

import "time"

// ActionType selects what an Action does and how its Params are read.
type ActionType string

const (
	// ActionSetSwitch writes Params ("0" or "1") to a switch.
	ActionSetSwitch ActionType = "set_switch"

	// ActionToggleSwitch inverts a switch; Params is unused.
	ActionToggleSwitch ActionType = "toggle_switch"

	// ActionSetDimmer writes the integer level in Params to a dimmer.
	ActionSetDimmer ActionType = "set_dimmer"

	// ActionSetHeater writes "<enabled>,<max>" to a heater, max in Celsius.
	ActionSetHeater ActionType = "set_heater"

	// ActionRunScript runs the script whose id is Params.
	ActionRunScript ActionType = "run_script"

	// ActionSleep pauses for Params milliseconds.
	ActionSleep ActionType = "sleep"

	// ActionRunSystemCommand runs Params, a path relative to the scripts
	// directory optionally followed by space-separated arguments.
	ActionRunSystemCommand ActionType = "run_system_command"
)

// AllActionTypes returns every valid action type.
func AllActionTypes() []ActionType {
	return []ActionType{
		ActionSetSwitch,
		ActionToggleSwitch,
		ActionSetDimmer,
		ActionSetHeater,
		ActionRunScript,
		ActionSleep,
		ActionRunSystemCommand,
	}
}

// targetsDevice reports whether the type needs Device and Element.
func (t ActionType) targetsDevice() bool {
	switch t {
	case ActionSetSwitch, ActionToggleSwitch, ActionSetDimmer, ActionSetHeater:
		return true
	default:
		return false
	}
}

// Action is one executable step.
type Action struct {
	ID   int64      `json:"id"`
	Name string     `json:"name"`
	Type ActionType `json:"type"`

	// Target, for device actions.
	Device  string `json:"device,omitempty"`
	Element string `json:"element,omitempty"`

	// Params is type-specific; see the ActionType constants.
	Params string `json:"params,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Step is one entry in a script's action list.
type Step struct {
	ActionID int64 `json:"action_id"`

	// Disabled steps are skipped without executing.
	Enabled bool `json:"enabled"`
}

// Script is an ordered list of actions run fail-fast.
type Script struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`

	// Device optionally scopes the script to one device, for listing.
	Device string `json:"device,omitempty"`

	Steps []Step `json:"steps"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
