package nats

import (
	"context"
	"sync"

	"github.com/brojonat/ledgerbridge/service/bridge"
)

// MockEmitter is an in-memory bridge.Emitter for testing.
type MockEmitter struct {
	mu        sync.RWMutex
	responses []bridge.Response
	emitError error
}

// NewMockEmitter creates a new mock emitter for testing.
func NewMockEmitter() *MockEmitter {
	return &MockEmitter{
		responses: make([]bridge.Response, 0),
	}
}

// Emit records the response and returns any configured error.
func (m *MockEmitter) Emit(ctx context.Context, resp bridge.Response) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.emitError != nil {
		return m.emitError
	}

	m.responses = append(m.responses, resp)
	return nil
}

// GetResponses returns all emitted responses (for testing).
func (m *MockEmitter) GetResponses() []bridge.Response {
	m.mu.RLock()
	defer m.mu.RUnlock()

	// Return a copy to avoid race conditions
	responses := make([]bridge.Response, len(m.responses))
	copy(responses, m.responses)
	return responses
}

// GetResponseCount returns the number of emitted responses.
func (m *MockEmitter) GetResponseCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.responses)
}

// GetResponsesFor returns responses emitted for a correlation id.
func (m *MockEmitter) GetResponsesFor(correlationID string) []bridge.Response {
	m.mu.RLock()
	defer m.mu.RUnlock()

	responses := make([]bridge.Response, 0)
	for _, resp := range m.responses {
		if resp.CorrelationID == correlationID {
			responses = append(responses, resp)
		}
	}
	return responses
}

// SetEmitError configures the mock to return an error on Emit.
func (m *MockEmitter) SetEmitError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.emitError = err
}

// Reset clears all emitted responses and errors.
func (m *MockEmitter) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = make([]bridge.Response, 0)
	m.emitError = nil
}
