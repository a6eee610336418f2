// Package mqtt provides MQTT client connectivity for Gray Logic Hub.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support, restored on reconnect
//   - Last Will and Testament (LWT) for offline detection
//
// # Architecture
//
// The hub reaches its wireless mesh adapters through a Z-Wave JS style
// gateway that exposes node values and an API over MQTT:
//
//	Hub (mesh driver) ↔ MQTT Broker ↔ Mesh gateway ↔ USB adapter
//
// GatewayTopics builds the gateway's topic layout.
//
// # Security Considerations
//
//   - Use TLS outside a trusted LAN (cfg.Broker.TLS=true)
//   - Anonymous access is only for local development
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	topics := mqtt.GatewayTopics{Prefix: cfg.Mesh.TopicPrefix, Gateway: cfg.Mesh.GatewayID}
//	err = client.Subscribe(topics.AllNodeValues(), 1,
//	    func(topic string, payload []byte) error {
//	        return nil
//	    })
package mqtt
