package nats

import (
	"context"
	"sync"

	"github.com/brojonat/lpctl/service/liquidity"
)

// MockPublisher is a mock implementation of Publisher for testing.
type MockPublisher struct {
	mu              sync.RWMutex
	publishedEvents []*OperationEvent
	publishError    error
	closed          bool
}

// NewMockPublisher creates a new mock publisher for testing.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{
		publishedEvents: make([]*OperationEvent, 0),
	}
}

// PublishOperation records the converted event and returns any configured error.
func (m *MockPublisher) PublishOperation(ctx context.Context, op *liquidity.Operation) error {
	return m.PublishEvent(ctx, FromOperation(op))
}

// PublishEvent records the event and returns any configured error.
func (m *MockPublisher) PublishEvent(ctx context.Context, event *OperationEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.publishError != nil {
		return m.publishError
	}

	m.publishedEvents = append(m.publishedEvents, event)
	return nil
}

// Close marks the publisher as closed.
func (m *MockPublisher) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// GetPublishedEvents returns all published events (for testing).
func (m *MockPublisher) GetPublishedEvents() []*OperationEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()

	events := make([]*OperationEvent, len(m.publishedEvents))
	copy(events, m.publishedEvents)
	return events
}

// GetPublishedEventsForPool returns events published for a specific pool.
func (m *MockPublisher) GetPublishedEventsForPool(poolID string) []*OperationEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()

	events := make([]*OperationEvent, 0)
	for _, event := range m.publishedEvents {
		if event.PoolID == poolID {
			events = append(events, event)
		}
	}
	return events
}

// SetPublishError configures the mock to return an error on publish.
func (m *MockPublisher) SetPublishError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.publishError = err
}

// IsClosed returns whether the publisher has been closed.
func (m *MockPublisher) IsClosed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}
