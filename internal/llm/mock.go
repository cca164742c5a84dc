package llm

import (
	"context"
	"sync"
)

// Mock is a scripted Client for tests. Responses are returned in
// order; when the script runs out the last entry repeats. A nil
// response with Err set simulates a provider failure.
type Mock struct {
	mu        sync.Mutex
	Responses []MockResponse
	Requests  []Request
	calls     int
}

type MockResponse struct {
	Content string
	Err     error
}

// NewMock scripts a mock from literal reply strings.
func NewMock(replies ...string) *Mock {
	m := &Mock{}
	for _, r := range replies {
		m.Responses = append(m.Responses, MockResponse{Content: r})
	}
	return m
}

// NewFailingMock always reports ErrUnavailable.
func NewFailingMock() *Mock {
	return &Mock{Responses: []MockResponse{{Err: ErrUnavailable}}}
}

func (m *Mock) Model() string { return "mock" }

func (m *Mock) Generate(_ context.Context, req Request) (*Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Requests = append(m.Requests, req)
	if len(m.Responses) == 0 {
		return nil, ErrUnavailable
	}

	idx := m.calls
	if idx >= len(m.Responses) {
		idx = len(m.Responses) - 1
	}
	m.calls++

	scripted := m.Responses[idx]
	if scripted.Err != nil {
		return nil, scripted.Err
	}
	return &Response{Content: scripted.Content, Model: "mock"}, nil
}

// Calls returns how many times Generate ran.
func (m *Mock) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
