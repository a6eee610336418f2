package mqtt

import "fmt"

// TopicPrefixHub is the base for topics the hub itself publishes.
const TopicPrefixHub = "grayhub"

// HubStatusTopic returns the retained online/offline topic for a hub client.
//
// Example: grayhub/graylogic-hub/status
func HubStatusTopic(clientID string) string {
	return fmt.Sprintf("%s/%s/status", TopicPrefixHub, clientID)
}

// GatewayTopics builds topics for a Z-Wave JS style MQTT gateway.
//
// The gateway publishes node values on
// <prefix>/<node>/<command class>/<endpoint>/<property>, accepts API
// calls on <prefix>/_CLIENTS/ZWAVE_GATEWAY-<gateway>/api/<verb>/set and
// answers on the same topic without the /set suffix.
//
//	topics := mqtt.GatewayTopics{Prefix: "zwave", Gateway: "graylogic-hub"}
//	topics.NodeValue(3, 37, 0, "currentValue")
//	// Returns: "zwave/3/37/0/currentValue"
type GatewayTopics struct {
	Prefix  string
	Gateway string
}

// client returns the gateway's client root.
func (g GatewayTopics) client() string {
	return fmt.Sprintf("%s/_CLIENTS/ZWAVE_GATEWAY-%s", g.Prefix, g.Gateway)
}

// NodeValue returns the value topic for one node property.
//
// Example: zwave/3/49/0/Air_temperature
func (g GatewayTopics) NodeValue(node, commandClass, endpoint int, property string) string {
	return fmt.Sprintf("%s/%d/%d/%d/%s", g.Prefix, node, commandClass, endpoint, property)
}

// AllNodeValues returns a pattern matching everything under the prefix.
// Properties may contain slashes (setpoint/1), so a fixed-depth pattern
// would miss them; subscribers filter on a numeric node segment.
//
// Pattern: zwave/#
func (g GatewayTopics) AllNodeValues() string {
	return fmt.Sprintf("%s/#", g.Prefix)
}

// APIRequest returns the topic an API call is published on.
//
// Example: zwave/_CLIENTS/ZWAVE_GATEWAY-graylogic-hub/api/writeValue/set
func (g GatewayTopics) APIRequest(verb string) string {
	return fmt.Sprintf("%s/api/%s/set", g.client(), verb)
}

// APIResponse returns the topic an API call is answered on.
//
// Example: zwave/_CLIENTS/ZWAVE_GATEWAY-graylogic-hub/api/writeValue
func (g GatewayTopics) APIResponse(verb string) string {
	return fmt.Sprintf("%s/api/%s", g.client(), verb)
}

// AllAPIResponses returns a pattern matching every API answer.
//
// Pattern: zwave/_CLIENTS/ZWAVE_GATEWAY-graylogic-hub/api/+
func (g GatewayTopics) AllAPIResponses() string {
	return fmt.Sprintf("%s/api/+", g.client())
}

// DriverEvents returns a pattern matching driver lifecycle events.
//
// Pattern: zwave/_EVENTS/ZWAVE_GATEWAY-graylogic-hub/driver/+
func (g GatewayTopics) DriverEvents() string {
	return fmt.Sprintf("%s/_EVENTS/ZWAVE_GATEWAY-%s/driver/+", g.Prefix, g.Gateway)
}

// DriverReadyEvent returns the topic of the driver-ready event.
//
// Example: zwave/_EVENTS/ZWAVE_GATEWAY-graylogic-hub/driver/driver_ready
func (g GatewayTopics) DriverReadyEvent() string {
	return fmt.Sprintf("%s/_EVENTS/ZWAVE_GATEWAY-%s/driver/driver_ready", g.Prefix, g.Gateway)
}
