package synth

import (
	"context"
	"sync"
)

// MockClient is a configurable Client for tests. Queued errors are
// returned first, one per call, then every call succeeds with Image.
type MockClient struct {
	mu    sync.Mutex
	calls []EditRequest
	queue []error

	// Image is the payload returned on success.
	Image []byte

	// Err, when set, is returned by every call regardless of the queue.
	Err error
}

// NewMockClient returns a mock that always succeeds with a small
// placeholder payload.
func NewMockClient() *MockClient {
	return &MockClient{Image: []byte("png-bytes")}
}

// FailWith queues errors to be returned by upcoming calls, in order.
func (m *MockClient) FailWith(errs ...error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, errs...)
}

func (m *MockClient) Edit(ctx context.Context, req EditRequest) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, req)

	if m.Err != nil {
		return nil, m.Err
	}
	if len(m.queue) > 0 {
		err := m.queue[0]
		m.queue = m.queue[1:]
		return nil, err
	}
	return m.Image, nil
}

func (m *MockClient) Name() string { return "mock" }

// Calls returns a copy of all requests seen so far.
func (m *MockClient) Calls() []EditRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]EditRequest, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns the number of calls seen so far.
func (m *MockClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

var _ Client = (*MockClient)(nil)

// MockRewriter is a configurable Rewriter for tests.
type MockRewriter struct {
	mu    sync.Mutex
	calls int

	// Result is returned on success; when empty, the input prompt with
	// a marker suffix is returned.
	Result string

	// Err, when set, simulates an unavailable rewriting service.
	Err error
}

func (m *MockRewriter) Rewrite(ctx context.Context, prompt, callContext string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++

	if m.Err != nil {
		return "", m.Err
	}
	if m.Result != "" {
		return m.Result, nil
	}
	return prompt + " (rewritten)", nil
}

// CallCount returns how many times Rewrite was invoked.
func (m *MockRewriter) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

var _ Rewriter = (*MockRewriter)(nil)
