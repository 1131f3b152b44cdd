package ai

import (
	"context"
	"strings"
	"sync"
)

// MockLLMClient is a scripted LLMClient for tests.
// Replies are matched by the first key contained in the prompt; Default is used otherwise.
type MockLLMClient struct {
	mu      sync.Mutex
	Replies map[string]string
	Default string
	Err     error
	Prompts []string
}

func NewMockLLMClient() *MockLLMClient {
	return &MockLLMClient{Replies: make(map[string]string)}
}

// On registers a reply for prompts containing marker.
func (m *MockLLMClient) On(marker, reply string) *MockLLMClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Replies[marker] = reply
	return m
}

func (m *MockLLMClient) Complete(_ context.Context, prompt string, _ int, _ float32) (*Completion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Prompts = append(m.Prompts, prompt)
	if m.Err != nil {
		return nil, m.Err
	}
	for marker, reply := range m.Replies {
		if strings.Contains(prompt, marker) {
			return &Completion{Text: reply, InputTokens: len(prompt) / 4, OutputTokens: len(reply) / 4, Model: "mock"}, nil
		}
	}
	return &Completion{Text: m.Default, Model: "mock"}, nil
}

// Calls returns how many completions were requested.
func (m *MockLLMClient) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Prompts)
}

// MockUsageRecorder keeps usage records in memory.
type MockUsageRecorder struct {
	mu      sync.Mutex
	Records []*UsageRecord
}

func (r *MockUsageRecorder) RecordUsage(_ context.Context, rec *UsageRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Records = append(r.Records, rec)
	return nil
}
