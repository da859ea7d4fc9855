package ai

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFallbackChain_PrimarySucceeds(t *testing.T) {
	primary := &MockProvider{ProviderName: "primary", Reply: "hello"}
	secondary := &MockProvider{ProviderName: "secondary", Reply: "backup"}
	chain := NewFallbackChain(primary, secondary)

	result, err := chain.Complete(context.Background(), "system", []Message{{Role: "user", Content: "hi"}}, 100)
	require.NoError(t, err)
	require.Equal(t, "hello", result)
	require.Len(t, primary.Calls, 1)
	require.Empty(t, secondary.Calls)
}

func TestFallbackChain_SecondarySeesSameHistory(t *testing.T) {
	primary := &MockProvider{ProviderName: "primary", FailWith: errors.New("rate limited")}
	secondary := &MockProvider{ProviderName: "secondary", Reply: "backup"}
	chain := NewFallbackChain(primary, secondary)

	history := []Message{
		{Role: "user", Content: "first"},
		{Role: "assistant", Content: "reply"},
		{Role: "user", Content: "second"},
	}
	result, err := chain.Complete(context.Background(), "system", history, 100)
	require.NoError(t, err)
	require.Equal(t, "backup", result)
	require.Len(t, secondary.Calls, 1)
	require.Equal(t, history, secondary.Calls[0])
}

func TestFallbackChain_AllFail(t *testing.T) {
	primary := &MockProvider{FailWith: errors.New("down")}
	secondary := &MockProvider{FailWith: errors.New("also down")}
	chain := NewFallbackChain(primary, secondary)

	_, err := chain.Complete(context.Background(), "system", nil, 100)
	require.Error(t, err)
	require.Contains(t, err.Error(), "all AI providers failed")
}

func TestFallbackChain_NilProvidersSkipped(t *testing.T) {
	primary := &MockProvider{Reply: "only"}
	chain := NewFallbackChain(primary, nil)

	result, err := chain.Complete(context.Background(), "system", nil, 100)
	require.NoError(t, err)
	require.Equal(t, "only", result)
}

func TestFallbackChain_Empty(t *testing.T) {
	chain := NewFallbackChain()
	_, err := chain.Complete(context.Background(), "system", nil, 100)
	require.Error(t, err)
}
