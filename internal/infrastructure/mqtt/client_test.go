package mqtt

import (
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/nerrad567/gray-logic-hub/internal/infrastructure/config"
)

// testConfig returns a valid MQTT configuration for testing.
func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "grayhub-test",
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	}
}


// fakeMessage implements pahomqtt.Message.
type fakeMessage struct {
	topic   string
	payload []byte
}

func (m *fakeMessage) Duplicate() bool   { return false }
func (m *fakeMessage) Qos() byte         { return 1 }
func (m *fakeMessage) Retained() bool    { return false }
func (m *fakeMessage) Topic() string     { return m.topic }
func (m *fakeMessage) MessageID() uint16 { return 1 }
func (m *fakeMessage) Payload() []byte   { return m.payload }
func (m *fakeMessage) Ack()              {}

// mockLogger implements Logger for testing.
type mockLogger struct {
	mu     sync.Mutex
	errors []string
	warns  []string
}

func (l *mockLogger) Error(msg string, _ ...any) {
	l.mu.Lock()
	l.errors = append(l.errors, msg)
	l.mu.Unlock()
}

func (l *mockLogger) Debug(string, ...any) {}
func (l *mockLogger) Info(string, ...any)  {}

func (l *mockLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	l.warns = append(l.warns, msg)
	l.mu.Unlock()
}

func TestGatewayTopics(t *testing.T) {
	topics := GatewayTopics{Prefix: "zwave", Gateway: "hub"}

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"NodeValue", topics.NodeValue(3, 37, 0, "currentValue"), "zwave/3/37/0/currentValue"},
		{"AllNodeValues", topics.AllNodeValues(), "zwave/#"},
		{"APIRequest", topics.APIRequest("writeValue"), "zwave/_CLIENTS/ZWAVE_GATEWAY-hub/api/writeValue/set"},
		{"APIResponse", topics.APIResponse("writeValue"), "zwave/_CLIENTS/ZWAVE_GATEWAY-hub/api/writeValue"},
		{"AllAPIResponses", topics.AllAPIResponses(), "zwave/_CLIENTS/ZWAVE_GATEWAY-hub/api/+"},
		{"DriverEvents", topics.DriverEvents(), "zwave/_EVENTS/ZWAVE_GATEWAY-hub/driver/+"},
		{"DriverReadyEvent", topics.DriverReadyEvent(), "zwave/_EVENTS/ZWAVE_GATEWAY-hub/driver/driver_ready"},
		{"HubStatusTopic", HubStatusTopic("grayhub-1"), "grayhub/grayhub-1/status"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("%s = %q, want %q", tt.name, tt.got, tt.want)
			}
		})
	}
}

func TestClientOptions(t *testing.T) {
	cfg := testConfig()
	cfg.Auth.Username = "hub"
	cfg.Auth.Password = "secret"

	opts := clientOptions(cfg)

	if len(opts.Servers) != 1 || opts.Servers[0].String() != "tcp://127.0.0.1:1883" {
		t.Errorf("Servers = %v, want tcp://127.0.0.1:1883", opts.Servers)
	}
	if opts.ClientID != "grayhub-test" {
		t.Errorf("ClientID = %q, want %q", opts.ClientID, "grayhub-test")
	}
	if opts.Username != "hub" || opts.Password != "secret" {
		t.Errorf("credentials = %q/%q, want hub/secret", opts.Username, opts.Password)
	}
	if !opts.AutoReconnect {
		t.Error("AutoReconnect = false, want true")
	}

	cfg.Broker.TLS = true
	opts = clientOptions(cfg)
	if opts.Servers[0].Scheme != "ssl" || opts.TLSConfig == nil {
		t.Errorf("TLS options not applied: scheme=%q tls=%v", opts.Servers[0].Scheme, opts.TLSConfig)
	}
}

func TestClientOptions_LastWill(t *testing.T) {
	opts := clientOptions(testConfig())

	if !opts.WillEnabled || opts.WillTopic != "grayhub/grayhub-test/status" || !opts.WillRetained {
		t.Errorf("LWT = enabled:%v topic:%q retained:%v", opts.WillEnabled, opts.WillTopic, opts.WillRetained)
	}
	var will Status
	if err := json.Unmarshal(opts.WillPayload, &will); err != nil {
		t.Fatalf("WillPayload is not JSON: %v", err)
	}
	if will.Status != StatusOffline || will.Reason != "unexpected_disconnect" || will.ClientID != "grayhub-test" {
		t.Errorf("will = %+v", will)
	}
}

func TestStatusPayload(t *testing.T) {
	p := string(statusPayload("hub", StatusOnline, ""))
	if !strings.Contains(p, `"status":"online"`) || !strings.Contains(p, `"client_id":"hub"`) {
		t.Errorf("online payload = %s", p)
	}
	if strings.Contains(p, "reason") {
		t.Errorf("online payload carries an empty reason: %s", p)
	}
}

func TestPublishValidation(t *testing.T) {
	c := newClient(testConfig())

	tests := []struct {
		name    string
		topic   string
		payload []byte
		qos     byte
		wantErr error
	}{
		{"empty topic", "", nil, 1, ErrInvalidTopic},
		{"invalid qos", "a/b", nil, 3, ErrInvalidQoS},
		{"oversized payload", "a/b", make([]byte, maxPayloadSize+1), 1, ErrPublishFailed},
		{"disconnected", "a/b", []byte("x"), 1, ErrNotConnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.Publish(tt.topic, tt.payload, tt.qos, false)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Publish() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestSubscribeValidation(t *testing.T) {
	c := newClient(testConfig())
	noop := func(string, []byte) error { return nil }

	if err := c.Subscribe("", 1, noop); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Subscribe(empty) error = %v, want ErrInvalidTopic", err)
	}
	if err := c.Subscribe("a/b", 3, noop); !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("Subscribe(qos 3) error = %v, want ErrInvalidQoS", err)
	}
	if err := c.Subscribe("a/b", 1, nil); !errors.Is(err, ErrSubscribeFailed) {
		t.Errorf("Subscribe(nil handler) error = %v, want ErrSubscribeFailed", err)
	}
	if err := c.Subscribe("a/b", 1, noop); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Subscribe(disconnected) error = %v, want ErrNotConnected", err)
	}
	if c.Subscribed("a/b") {
		t.Error("failed Subscribe() must not track the subscription")
	}
	if err := c.Unsubscribe("a/b"); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Unsubscribe(disconnected) error = %v, want ErrNotConnected", err)
	}
}

func TestCloseNil(t *testing.T) {
	c := &Client{}
	if err := c.Close(); err != nil {
		t.Errorf("Close() on unconnected client error = %v", err)
	}
}

func TestDispatch(t *testing.T) {
	c := newClient(testConfig())
	logger := &mockLogger{}
	c.SetLogger(logger)

	msg := &fakeMessage{topic: "zwave/3/37/0/currentValue", payload: []byte(`{"value":true}`)}

	t.Run("delivers topic and payload", func(t *testing.T) {
		var gotTopic, gotPayload string
		c.dispatch(func(topic string, payload []byte) error {
			gotTopic, gotPayload = topic, string(payload)
			return nil
		})(nil, msg)

		if gotTopic != msg.topic || gotPayload != `{"value":true}` {
			t.Errorf("handler got (%q, %q)", gotTopic, gotPayload)
		}
	})

	t.Run("handler error is logged", func(t *testing.T) {
		c.dispatch(func(string, []byte) error { return errors.New("boom") })(nil, msg)
		if len(logger.warns) != 1 {
			t.Errorf("warns = %v, want one entry", logger.warns)
		}
	})

	t.Run("panic is recovered", func(t *testing.T) {
		c.dispatch(func(string, []byte) error { panic("bad payload") })(nil, msg)
		if len(logger.errors) != 1 {
			t.Errorf("errors = %v, want one entry", logger.errors)
		}
	})
}

func TestConnectionLost(t *testing.T) {
	c := newClient(testConfig())
	c.connected.Store(true)

	var lost error
	c.SetOnDisconnect(func(err error) { lost = err })

	c.connectionLost(errors.New("link down"))
	if lost == nil || lost.Error() != "link down" {
		t.Errorf("onDisconnect got %v, want link down", lost)
	}
	if c.IsConnected() {
		t.Error("IsConnected() = true after connection loss")
	}
}
