package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/WailSalutem-Health-Care/carelog/internal/messaging"
)

// PublishedEvent is one event captured by MockPublisher.
type PublishedEvent struct {
	RoutingKey string
	RawJSON    []byte
}

// Decode unmarshals the captured payload into v.
func (e PublishedEvent) Decode(v any) error {
	return json.Unmarshal(e.RawJSON, v)
}

// MockPublisher records published change events in memory.
type MockPublisher struct {
	mu     sync.RWMutex
	events []PublishedEvent
	closed bool

	// PublishErr, when set, is returned by every Publish call.
	PublishErr error
}

var _ messaging.PublisherInterface = (*MockPublisher)(nil)

func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

func (m *MockPublisher) Publish(ctx context.Context, routingKey string, eventData interface{}) error {
	if m.PublishErr != nil {
		return m.PublishErr
	}
	raw, err := json.Marshal(eventData)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, PublishedEvent{RoutingKey: routingKey, RawJSON: raw})
	return nil
}

func (m *MockPublisher) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

func (m *MockPublisher) Closed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}

// RoutingKeys returns the routing keys in publish order.
func (m *MockPublisher) RoutingKeys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.events))
	for _, e := range m.events {
		keys = append(keys, e.RoutingKey)
	}
	return keys
}

func (m *MockPublisher) GetEventsByKey(routingKey string) []PublishedEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var filtered []PublishedEvent
	for _, e := range m.events {
		if e.RoutingKey == routingKey {
			filtered = append(filtered, e)
		}
	}
	return filtered
}

func (m *MockPublisher) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = nil
}

// AssertEventCount fails the test unless exactly expected events were
// published under routingKey.
func (m *MockPublisher) AssertEventCount(t *testing.T, routingKey string, expected int) {
	t.Helper()

	if got := len(m.GetEventsByKey(routingKey)); got != expected {
		t.Errorf("Expected %d events with routing key '%s', got %d", expected, routingKey, got)
	}
}

// DecodeLast decodes the most recent event published under routingKey.
func (m *MockPublisher) DecodeLast(routingKey string, v any) error {
	events := m.GetEventsByKey(routingKey)
	if len(events) == 0 {
		return fmt.Errorf("no event published with routing key %q", routingKey)
	}
	return events[len(events)-1].Decode(v)
}
