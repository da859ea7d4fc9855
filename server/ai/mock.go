package ai

import "context"

// MockProvider is a scriptable Provider for testing.
type MockProvider struct {
	ProviderName string
	// Reply is returned on success. FailWith, when set, makes every call
	// fail.
	Reply    string
	FailWith error

	// Calls records the history passed to each call.
	Calls [][]Message
}

func (m *MockProvider) Name() string {
	if m.ProviderName == "" {
		return "mock"
	}
	return m.ProviderName
}

func (m *MockProvider) Complete(ctx context.Context, system string, history []Message, maxTokens int) (string, error) {
	copied := make([]Message, len(history))
	copy(copied, history)
	m.Calls = append(m.Calls, copied)
	if m.FailWith != nil {
		return "", m.FailWith
	}
	return m.Reply, nil
}
