package mock

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/quarrylabs/quarry/core"
)

// MockCaller is a test double for ai.InferenceCaller.
// Responses are served from a queue in FIFO order; an exhausted queue
// returns core.ErrCallFailure. Custom behavior can be injected via
// function fields.
type MockCaller struct {
	// CallFunc is called by Call if set.
	CallFunc func(ctx context.Context, systemPrompt, userPrompt string) (string, error)

	// CallJSONFunc is called by CallJSON if set.
	CallJSONFunc func(ctx context.Context, systemPrompt, userPrompt string, out any) error

	mu        sync.Mutex
	responses []string
	prompts   []string
	callCount int
}

// NewMockCaller creates a mock caller serving the given responses in order.
func NewMockCaller(responses ...string) *MockCaller {
	return &MockCaller{responses: responses}
}

// Enqueue appends responses to the queue.
func (m *MockCaller) Enqueue(responses ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, responses...)
}

// Call returns the next queued response.
func (m *MockCaller) Call(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if m.CallFunc != nil {
		m.record(userPrompt)
		return m.CallFunc(ctx, systemPrompt, userPrompt)
	}
	return m.next(userPrompt)
}

// CallJSON unmarshals the next queued response into out.
func (m *MockCaller) CallJSON(ctx context.Context, systemPrompt, userPrompt string, out any) error {
	if m.CallJSONFunc != nil {
		m.record(userPrompt)
		return m.CallJSONFunc(ctx, systemPrompt, userPrompt, out)
	}
	response, err := m.next(userPrompt)
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(response), out)
}

// CallCount returns the number of times any method was called.
func (m *MockCaller) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// Prompts returns the user prompts seen so far, in call order.
func (m *MockCaller) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.prompts))
	copy(out, m.prompts)
	return out
}

// Reset clears the queue, recorded prompts, and custom functions.
func (m *MockCaller) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = nil
	m.prompts = nil
	m.callCount = 0
	m.CallFunc = nil
	m.CallJSONFunc = nil
}

func (m *MockCaller) record(prompt string) {
	m.mu.Lock()
	m.callCount++
	m.prompts = append(m.prompts, prompt)
	m.mu.Unlock()
}

func (m *MockCaller) next(prompt string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount++
	m.prompts = append(m.prompts, prompt)
	if len(m.responses) == 0 {
		return "", fmt.Errorf("%w: mock caller response queue exhausted", core.ErrCallFailure)
	}
	response := m.responses[0]
	m.responses = m.responses[1:]
	return response, nil
}
