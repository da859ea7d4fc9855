package profile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfileFromEnvDefaults(t *testing.T) {
	clearEnvVars(t)

	p := &Profile{}
	p.FromEnv()

	assert.Equal(t, "https://api.openai.com/v1", p.AIPrimaryBaseURL)
	assert.Equal(t, "gpt-4o-mini", p.AIPrimaryModel)
	assert.Equal(t, "https://api.deepseek.com", p.AISecondaryBaseURL)
	assert.Equal(t, "deepseek-chat", p.AISecondaryModel)
	assert.True(t, p.AcceptUnverifiedHandoff, "handoff acceptance defaults to on")
	assert.False(t, p.IsAIEnabled())
}

func TestProfileFromEnvOverrides(t *testing.T) {
	clearEnvVars(t)
	t.Setenv("CIVASSIST_AI_PRIMARY_API_KEY", "sk-test")
	t.Setenv("CIVASSIST_AI_PRIMARY_MODEL", "gpt-4o")
	t.Setenv("CIVASSIST_REDIS_ADDR", "localhost:6379")
	t.Setenv("CIVASSIST_ACCEPT_UNVERIFIED_HANDOFF", "false")

	p := &Profile{}
	p.FromEnv()

	assert.True(t, p.IsAIEnabled())
	assert.Equal(t, "gpt-4o", p.AIPrimaryModel)
	assert.Equal(t, "localhost:6379", p.RedisAddr)
	assert.False(t, p.AcceptUnverifiedHandoff)
}

func TestProfileValidateMemoryDriver(t *testing.T) {
	p := &Profile{Mode: "dev", Driver: "memory"}
	require.NoError(t, p.Validate())
	assert.Empty(t, p.DSN)
}

func TestProfileValidateSqliteDSN(t *testing.T) {
	p := &Profile{Mode: "dev", Driver: "sqlite", Data: t.TempDir()}
	require.NoError(t, p.Validate())
	assert.Contains(t, p.DSN, "civassist_dev.db")
}

func TestProfileValidateBadMode(t *testing.T) {
	p := &Profile{Mode: "bogus", Driver: "memory"}
	require.NoError(t, p.Validate())
	assert.Equal(t, "demo", p.Mode)
}

func clearEnvVars(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"CIVASSIST_AI_PRIMARY_API_KEY", "CIVASSIST_AI_PRIMARY_BASE_URL", "CIVASSIST_AI_PRIMARY_MODEL",
		"CIVASSIST_AI_SECONDARY_API_KEY", "CIVASSIST_AI_SECONDARY_BASE_URL", "CIVASSIST_AI_SECONDARY_MODEL",
		"CIVASSIST_KNOWLEDGE_URL", "CIVASSIST_REDIS_ADDR", "CIVASSIST_REDIS_PASSWORD",
		"CIVASSIST_SOCIAL_VERIFY_TOKEN", "CIVASSIST_SOCIAL_ACCESS_TOKEN", "CIVASSIST_ACCEPT_UNVERIFIED_HANDOFF",
	} {
		t.Setenv(key, "")
	}
}
