package mesh

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// CommandClass identifies a mesh capability class.
type CommandClass int

// Command classes the hub reads and writes.
const (
	CCSwitchBinary             CommandClass = 37
	CCSwitchMultilevel         CommandClass = 38
	CCSensorMultilevel         CommandClass = 49
	CCThermostatMode           CommandClass = 64
	CCThermostatOperatingState CommandClass = 66
	CCThermostatSetpoint       CommandClass = 67
)

// Well-known properties.
const (
	PropCurrentValue   = "currentValue"
	PropTargetValue    = "targetValue"
	PropMode           = "mode"
	PropOperatingState = "state"

	// PropHeatingSetpoint is the heating setpoint (property "setpoint",
	// key 1) in topic form.
	PropHeatingSetpoint = "setpoint/1"
)

// Thermostat mode values.
const (
	ModeOff  = 0
	ModeHeat = 1
)

// MaxDimmerLevel is the highest multilevel switch value.
const MaxDimmerLevel = 99

// ValueID addresses one value on a node.
type ValueID struct {
	Node         int
	CommandClass CommandClass
	Endpoint     int

	// Property is in topic form: "currentValue", "setpoint/1".
	// An empty Property matches any property when waiting for updates.
	Property string
}

func (id ValueID) String() string {
	return fmt.Sprintf("%d/%d/%d/%s", id.Node, id.CommandClass, id.Endpoint, id.Property)
}

// matches reports whether a notification for other satisfies a wait on id.
func (id ValueID) matches(other ValueID) bool {
	if id.Node != other.Node || id.CommandClass != other.CommandClass {
		return false
	}
	return id.Property == "" || (id.Property == other.Property && id.Endpoint == other.Endpoint)
}

// apiArg renders the id as a gateway value id argument.
func (id ValueID) apiArg() map[string]any {
	arg := map[string]any{
		"nodeId":       id.Node,
		"commandClass": int(id.CommandClass),
		"endpoint":     id.Endpoint,
	}
	property, key, hasKey := strings.Cut(id.Property, "/")
	arg["property"] = property
	if hasKey {
		if n, err := strconv.Atoi(key); err == nil {
			arg["propertyKey"] = n
		} else {
			arg["propertyKey"] = key
		}
	}
	return arg
}

// Value is the last reported state of one ValueID.
type Value struct {
	ID      ValueID
	Raw     json.RawMessage
	Updated time.Time
}

// Float returns the value as a number; booleans are 1 or 0.
func (v Value) Float() (float64, bool) {
	var decoded any
	if err := json.Unmarshal(v.Raw, &decoded); err != nil {
		return 0, false
	}
	switch x := decoded.(type) {
	case float64:
		return x, true
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

// Int returns the value rounded toward zero.
func (v Value) Int() (int, bool) {
	f, ok := v.Float()
	return int(f), ok
}

// notification is the JSON envelope the gateway publishes values in.
type notification struct {
	Time  int64           `json:"time"`
	Value json.RawMessage `json:"value"`
}

// parseValueTopic parses "<prefix>/<node>/<cc>/<endpoint>/<property...>".
// Topics with a non-numeric node segment (gateway control topics) are
// rejected with ok=false.
func parseValueTopic(prefix, topic string) (ValueID, bool) {
	rest, ok := strings.CutPrefix(topic, prefix+"/")
	if !ok {
		return ValueID{}, false
	}
	parts := strings.SplitN(rest, "/", 4)
	if len(parts) < 4 || parts[3] == "" {
		return ValueID{}, false
	}

	node, err := strconv.Atoi(parts[0])
	if err != nil {
		return ValueID{}, false
	}
	cc, err := strconv.Atoi(parts[1])
	if err != nil {
		return ValueID{}, false
	}
	endpoint, err := strconv.Atoi(parts[2])
	if err != nil {
		return ValueID{}, false
	}
	return ValueID{Node: node, CommandClass: CommandClass(cc), Endpoint: endpoint, Property: parts[3]}, true
}

// parseValuePayload accepts the gateway's {"time":..,"value":..} envelope
// or a bare JSON value.
func parseValuePayload(payload []byte, now time.Time) (json.RawMessage, time.Time, error) {
	var n notification
	if err := json.Unmarshal(payload, &n); err == nil && n.Value != nil {
		at := now
		if n.Time > 0 {
			at = time.UnixMilli(n.Time)
		}
		return n.Value, at, nil
	}
	if !json.Valid(payload) {
		return nil, time.Time{}, fmt.Errorf("invalid value payload %q", payload)
	}
	return json.RawMessage(payload), now, nil
}
