// Package mesh bridges wireless mesh nodes into the device layer.
//
// A single MQTTManager talks to a Z-Wave JS style gateway over MQTT. It
// caches every node value the gateway publishes, forwards API calls
// (writeValue, refreshCCValues, addDriver) and tracks the driver-ready
// event. Each configured mesh device gets a Driver that claims one adapter
// file and exposes the gateway's nodes as elements, addressed by node id.
//
//	manager := mesh.NewMQTTManager(client, mesh.ManagerOptions{
//	    Topics: mqtt.GatewayTopics{Prefix: "zwave", Gateway: "graylogic-hub"},
//	})
//	if err := manager.Start(); err != nil { ... }
//	drv, err := mesh.New(dev, mesh.Options{Manager: manager, Claims: claims})
//
// Reads come from the value cache; a forced sensor read asks the gateway
// to refresh the node and waits for the next notification. Writes return
// once the gateway accepts them; the cache catches up when the node
// reports its new state.
//
// Value notifications are delivered on the MQTT client's goroutine, so
// watchers registered with Manager.Watch must not block.
package mesh
