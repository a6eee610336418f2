// Package mqtttest runs an in-process MQTT broker for tests.
package mqtttest

import (
	"io"
	"log/slog"
	"net"
	"strconv"
	"testing"

	mochi "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"

	"github.com/nerrad567/gray-logic-hub/internal/infrastructure/config"
)

// Broker is a running in-process broker. The embedded server's inline
// client can publish and subscribe without a network connection.
type Broker struct {
	*mochi.Server

	// Config dials this broker; set Broker.ClientID per client.
	Config config.MQTTConfig
}

// Start launches a broker on a free loopback port. It is closed when the
// test ends.
func Start(t testing.TB) *Broker {
	t.Helper()

	port := freePort(t)
	server := mochi.New(&mochi.Options{
		InlineClient: true,
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err := server.AddHook(new(auth.AllowHook), nil); err != nil {
		t.Fatalf("adding auth hook: %v", err)
	}

	tcp := listeners.NewTCP(listeners.Config{
		ID:      "grayhub-test",
		Address: net.JoinHostPort("127.0.0.1", strconv.Itoa(port)),
	})
	if err := server.AddListener(tcp); err != nil {
		t.Fatalf("adding listener: %v", err)
	}
	if err := server.Serve(); err != nil {
		t.Fatalf("starting broker: %v", err)
	}
	t.Cleanup(func() { server.Close() }) //nolint:errcheck // Test cleanup

	return &Broker{
		Server: server,
		Config: config.MQTTConfig{
			Broker: config.MQTTBrokerConfig{
				Host:     "127.0.0.1",
				Port:     port,
				ClientID: "grayhub-test",
			},
			QoS: 1,
			Reconnect: config.MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     5,
			},
		},
	}
}

// freePort asks the kernel for an unused TCP port.
func freePort(t testing.TB) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("finding free port: %v", err)
	}
	defer l.Close() //nolint:errcheck // Probe listener
	return l.Addr().(*net.TCPAddr).Port
}
