package mesh

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff"

	"github.com/nerrad567/gray-logic-hub/internal/device"
	"github.com/nerrad567/gray-logic-hub/internal/infrastructure/mqtt"
)

// Gateway API verbs.
const (
	verbWriteValue      = "writeValue"
	verbRefreshCCValues = "refreshCCValues"
	verbAddDriver       = "addDriver"
)

const (
	// DefaultRequestTimeout bounds one API attempt and forced refreshes.
	DefaultRequestTimeout = 10 * time.Second

	// apiRetries is how many times an unanswered API request is re-sent.
	apiRetries = 2
)

// ErrNoResponse is returned when the gateway never answers an API call.
var ErrNoResponse = errors.New("mesh: gateway did not respond")

// Bus is the MQTT surface the manager needs. *mqtt.Client satisfies it.
type Bus interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// AdapterOptions describes one mesh adapter the gateway should drive.
type AdapterOptions struct {
	Port       string `json:"port"`
	ConfigPath string `json:"configPath,omitempty"`
	UserPath   string `json:"userPath,omitempty"`
}

// Manager is the process-wide mesh gateway. All mesh drivers share one.
type Manager interface {
	// AddDriver asks the gateway to open an adapter.
	AddDriver(ctx context.Context, opts AdapterOptions) error

	// Ready reports whether the gateway driver has signalled ready.
	Ready() bool

	// Value returns the cached value for id.
	Value(id ValueID) (Value, bool)

	// NodeValues returns the cached values of one command class on a node,
	// ordered by endpoint and property.
	NodeValues(node int, cc CommandClass) []Value

	// Nodes returns the ids of every node with a cached value, ascending.
	Nodes() []int

	// SetValue writes a value through the gateway.
	SetValue(ctx context.Context, id ValueID, value any) error

	// Refresh forces a re-read of id and waits for the next notification.
	Refresh(ctx context.Context, id ValueID) (Value, error)

	// Watch registers fn for every value notification. The returned func
	// removes it. fn runs on the MQTT delivery goroutine and must not block.
	Watch(fn func(Value)) (cancel func())
}

// Ensure MQTTManager implements Manager.
var _ Manager = (*MQTTManager)(nil)

// apiResponse is the gateway's answer to an API call.
type apiResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

// waiter is a pending Refresh.
type waiter struct {
	id ValueID
	ch chan Value
}

// ManagerOptions configures an MQTTManager.
type ManagerOptions struct {
	Topics         mqtt.GatewayTopics
	QoS            byte
	RequestTimeout time.Duration
	Logger         Logger
}

// MQTTManager drives a Z-Wave JS style gateway over MQTT.
type MQTTManager struct {
	bus     Bus
	topics  mqtt.GatewayTopics
	qos     byte
	timeout time.Duration
	logger  Logger
	now     func() time.Time

	ready atomic.Bool

	mu       sync.RWMutex
	values   map[ValueID]Value
	watchers map[int]func(Value)
	nextID   int
	waiters  []*waiter

	// apiMu serialises calls per verb; responses carry no request id.
	apiMu   map[string]*sync.Mutex
	pending map[string]chan apiResponse
}

// NewMQTTManager creates a manager over bus. Call Start before use.
func NewMQTTManager(bus Bus, opts ManagerOptions) *MQTTManager {
	m := &MQTTManager{
		bus:      bus,
		topics:   opts.Topics,
		qos:      opts.QoS,
		timeout:  opts.RequestTimeout,
		logger:   opts.Logger,
		now:      time.Now,
		values:   make(map[ValueID]Value),
		watchers: make(map[int]func(Value)),
		apiMu:    make(map[string]*sync.Mutex),
		pending:  make(map[string]chan apiResponse),
	}
	if m.timeout <= 0 {
		m.timeout = DefaultRequestTimeout
	}
	if m.logger == nil {
		m.logger = noopLogger{}
	}
	for _, verb := range []string{verbWriteValue, verbRefreshCCValues, verbAddDriver} {
		m.apiMu[verb] = &sync.Mutex{}
	}
	return m
}

// Start subscribes to gateway values, API answers and driver events.
func (m *MQTTManager) Start() error {
	subs := []struct {
		topic   string
		handler mqtt.MessageHandler
	}{
		{m.topics.AllAPIResponses(), m.handleAPIResponse},
		{m.topics.DriverEvents(), m.handleDriverEvent},
		{m.topics.AllNodeValues(), m.handleValue},
	}
	for _, s := range subs {
		if err := m.bus.Subscribe(s.topic, m.qos, s.handler); err != nil {
			return fmt.Errorf("subscribing to %s: %w", s.topic, err)
		}
	}
	m.logger.Info("mesh manager started", "prefix", m.topics.Prefix, "gateway", m.topics.Gateway)
	return nil
}

// Stop unsubscribes from the gateway topics.
func (m *MQTTManager) Stop() error {
	var errs []error
	for _, topic := range []string{m.topics.AllNodeValues(), m.topics.DriverEvents(), m.topics.AllAPIResponses()} {
		if err := m.bus.Unsubscribe(topic); err != nil {
			errs = append(errs, err)
		}
	}
	m.ready.Store(false)
	return errors.Join(errs...)
}

// Ready implements Manager.
func (m *MQTTManager) Ready() bool {
	return m.ready.Load()
}

// AddDriver implements Manager.
func (m *MQTTManager) AddDriver(ctx context.Context, opts AdapterOptions) error {
	_, err := m.call(ctx, verbAddDriver, opts)
	return err
}

// SetValue implements Manager. An accepted write is cached as the node's
// current value until the gateway publishes the real one.
func (m *MQTTManager) SetValue(ctx context.Context, id ValueID, value any) error {
	if _, err := m.call(ctx, verbWriteValue, id.apiArg(), value); err != nil {
		return err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return nil
	}
	cached := id
	if cached.Property == PropTargetValue {
		cached.Property = PropCurrentValue
	}
	m.mu.Lock()
	m.values[cached] = Value{ID: cached, Raw: raw, Updated: m.now()}
	m.mu.Unlock()
	return nil
}

// Refresh implements Manager.
func (m *MQTTManager) Refresh(ctx context.Context, id ValueID) (Value, error) {
	w := &waiter{id: id, ch: make(chan Value, 1)}
	m.mu.Lock()
	m.waiters = append(m.waiters, w)
	m.mu.Unlock()
	defer m.removeWaiter(w)

	if _, err := m.call(ctx, verbRefreshCCValues, id.Node, int(id.CommandClass)); err != nil {
		return Value{}, err
	}

	timer := time.NewTimer(m.timeout)
	defer timer.Stop()
	select {
	case v := <-w.ch:
		return v, nil
	case <-timer.C:
		return Value{}, fmt.Errorf("%w: no update for %s after refresh", device.ErrTransport, id)
	case <-ctx.Done():
		return Value{}, fmt.Errorf("%w: %w", device.ErrTransport, ctx.Err())
	}
}

// Value implements Manager.
func (m *MQTTManager) Value(id ValueID) (Value, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[id]
	return v, ok
}

// NodeValues implements Manager.
func (m *MQTTManager) NodeValues(node int, cc CommandClass) []Value {
	m.mu.RLock()
	var out []Value
	for id, v := range m.values {
		if id.Node == node && id.CommandClass == cc {
			out = append(out, v)
		}
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].ID.Endpoint != out[j].ID.Endpoint {
			return out[i].ID.Endpoint < out[j].ID.Endpoint
		}
		return out[i].ID.Property < out[j].ID.Property
	})
	return out
}

// Nodes implements Manager.
func (m *MQTTManager) Nodes() []int {
	m.mu.RLock()
	seen := make(map[int]struct{})
	for id := range m.values {
		seen[id.Node] = struct{}{}
	}
	m.mu.RUnlock()

	nodes := make([]int, 0, len(seen))
	for n := range seen {
		nodes = append(nodes, n)
	}
	sort.Ints(nodes)
	return nodes
}

// Watch implements Manager.
func (m *MQTTManager) Watch(fn func(Value)) func() {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.watchers[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.watchers, id)
		m.mu.Unlock()
	}
}

// call publishes an API request and waits for its answer. Requests that
// go unanswered are re-sent with exponential backoff; a gateway refusal
// is returned as is.
func (m *MQTTManager) call(ctx context.Context, verb string, args ...any) (*apiResponse, error) {
	lock := m.apiMu[verb]
	lock.Lock()
	defer lock.Unlock()

	payload, err := json.Marshal(map[string]any{"args": args})
	if err != nil {
		return nil, fmt.Errorf("encoding %s request: %w", verb, err)
	}

	ch := make(chan apiResponse, 1)
	m.mu.Lock()
	m.pending[verb] = ch
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		delete(m.pending, verb)
		m.mu.Unlock()
	}()

	var resp *apiResponse
	attempt := func() error {
		if err := m.bus.Publish(m.topics.APIRequest(verb), payload, m.qos, false); err != nil {
			return err
		}
		timer := time.NewTimer(m.timeout)
		defer timer.Stop()
		select {
		case r := <-ch:
			resp = &r
			return nil
		case <-timer.C:
			return ErrNoResponse
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.MaxElapsedTime = 0
	err = backoff.Retry(attempt, backoff.WithContext(backoff.WithMaxRetries(b, apiRetries), ctx))
	if err != nil {
		m.logger.Warn("mesh api call failed", "verb", verb, "error", err)
		return nil, fmt.Errorf("%w: %s: %w", device.ErrTransport, verb, err)
	}
	if !resp.Success {
		return resp, fmt.Errorf("%w: %s refused: %s", device.ErrBadReply, verb, resp.Message)
	}
	return resp, nil
}

func (m *MQTTManager) handleAPIResponse(topic string, payload []byte) error {
	verb := topic[strings.LastIndex(topic, "/")+1:]

	var resp apiResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return fmt.Errorf("decoding %s response: %w", verb, err)
	}

	m.mu.RLock()
	ch, ok := m.pending[verb]
	m.mu.RUnlock()
	if !ok {
		m.logger.Debug("unsolicited mesh api response", "verb", verb)
		return nil
	}
	select {
	case ch <- resp:
	default:
	}
	return nil
}

func (m *MQTTManager) handleDriverEvent(topic string, _ []byte) error {
	if topic == m.topics.DriverReadyEvent() {
		if !m.ready.Swap(true) {
			m.logger.Info("mesh driver ready", "gateway", m.topics.Gateway)
		}
	}
	return nil
}

func (m *MQTTManager) handleValue(topic string, payload []byte) error {
	id, ok := parseValueTopic(m.topics.Prefix, topic)
	if !ok {
		return nil
	}
	raw, at, err := parseValuePayload(payload, m.now())
	if err != nil {
		return err
	}
	v := Value{ID: id, Raw: raw, Updated: at}

	m.mu.Lock()
	m.values[id] = v
	watchers := make([]func(Value), 0, len(m.watchers))
	for _, fn := range m.watchers {
		watchers = append(watchers, fn)
	}
	for _, w := range m.waiters {
		if w.id.matches(id) {
			select {
			case w.ch <- v:
			default:
			}
		}
	}
	m.mu.Unlock()

	for _, fn := range watchers {
		fn(v)
	}
	return nil
}

func (m *MQTTManager) removeWaiter(w *waiter) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, other := range m.waiters {
		if other == w {
			m.waiters = append(m.waiters[:i], m.waiters[i+1:]...)
			return
		}
	}
}
