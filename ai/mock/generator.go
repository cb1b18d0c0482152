package mock

import (
	"context"
	"fmt"
	"sync"

	"github.com/poiesic/hybridrag/ai"
	"github.com/poiesic/hybridrag/core"
)

// GenerateCall records the arguments of one GenerateAnswer call.
type GenerateCall struct {
	Query           string
	Hits            []core.Hit
	ExternalContext string
}

// MockGenerator is a test double for ai.AnswerGenerator.
type MockGenerator struct {
	// GenerateAnswerFunc is called by GenerateAnswer if set.
	GenerateAnswerFunc func(ctx context.Context, query string, hits []core.Hit, externalContext string) (string, error)

	mu    sync.Mutex
	calls []GenerateCall
}

// NewMockGenerator creates a mock generator with default behavior.
func NewMockGenerator() *MockGenerator {
	return &MockGenerator{}
}

// WithGenerateAnswerFunc sets the GenerateAnswer behavior and returns the mock for chaining.
func (m *MockGenerator) WithGenerateAnswerFunc(fn func(ctx context.Context, query string, hits []core.Hit, externalContext string) (string, error)) *MockGenerator {
	m.GenerateAnswerFunc = fn
	return m
}

// GenerateAnswer returns ai.NoContextAnswer when there is nothing to ground
// on, otherwise a summary line naming the query and the number of hits.
func (m *MockGenerator) GenerateAnswer(ctx context.Context, query string, hits []core.Hit, externalContext string) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, GenerateCall{Query: query, Hits: hits, ExternalContext: externalContext})
	fn := m.GenerateAnswerFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, query, hits, externalContext)
	}
	if len(hits) == 0 && externalContext == "" {
		return ai.NoContextAnswer, nil
	}
	return fmt.Sprintf("answer to %q from %d sections", query, len(hits)), nil
}

// CallCount returns the number of GenerateAnswer calls.
func (m *MockGenerator) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// LastCall returns the most recent call and false when there was none.
func (m *MockGenerator) LastCall() (GenerateCall, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		return GenerateCall{}, false
	}
	return m.calls[len(m.calls)-1], true
}
