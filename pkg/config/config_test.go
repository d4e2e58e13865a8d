package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{
		"PORT", "REDIS_URL", "CONFIDENCE_THRESHOLD", "CLARIFICATION_THRESHOLD", "CONTEXT_WINDOW",
		"KNOWLEDGE_HITS", "GENERATION_PROVIDER", "GENERATION_API_KEY", "GEMINI_API_KEY", "GENERATION_TIMEOUT_MS",
	} {
		t.Setenv(key, "")
	}

	cfg := Load()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "", cfg.RedisURL)
	assert.Equal(t, 0.6, cfg.ConfidenceThreshold)
	assert.Equal(t, 2, cfg.ClarificationThreshold)
	assert.Equal(t, 12, cfg.ContextWindow)
	assert.Equal(t, 3, cfg.KnowledgeHits)
	assert.Equal(t, 6, cfg.MaxActions)
	assert.Equal(t, "", cfg.GenerationProvider)
	assert.Equal(t, 20*time.Second, cfg.GenerationTimeout())
	assert.Equal(t, time.Hour, cfg.ContextCacheTTL())
	assert.NotEmpty(t, cfg.PodID)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("CONFIDENCE_THRESHOLD", "0.75")
	t.Setenv("CLARIFICATION_THRESHOLD", "3")
	t.Setenv("CONTEXT_WINDOW", "not-a-number")
	t.Setenv("GENERATION_PROVIDER", "")
	t.Setenv("GENERATION_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "secret")

	cfg := Load()

	assert.Equal(t, 0.75, cfg.ConfidenceThreshold)
	assert.Equal(t, 3, cfg.ClarificationThreshold)
	assert.Equal(t, 12, cfg.ContextWindow, "invalid values fall back to the default")
	assert.Equal(t, "gemini", cfg.GenerationProvider)
	assert.Equal(t, "secret", cfg.GenerationAPIKey)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{ConfidenceThreshold: 0.6, ClarificationThreshold: 2, ContextWindow: 12, KnowledgeHits: 3, MaxActions: 6, GenerationTimeoutMS: 20000}
	}

	assert.NoError(t, valid().Validate())

	c := valid()
	c.ConfidenceThreshold = 1.5
	assert.Error(t, c.Validate())

	c = valid()
	c.ClarificationThreshold = 0
	assert.Error(t, c.Validate())

	c = valid()
	c.ContextWindow = 1
	assert.Error(t, c.Validate())

	for _, ms := range []int64{0, -1} {
		c = valid()
		c.GenerationTimeoutMS = ms
		assert.Error(t, c.Validate(), "timeout %dms", ms)
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("ASSISTANT_TEST_DOTENV=from-file\n"), 0o600))
	t.Setenv("ASSISTANT_TEST_DOTENV", "")
	os.Unsetenv("ASSISTANT_TEST_DOTENV")

	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "from-file", os.Getenv("ASSISTANT_TEST_DOTENV"))

	assert.NoError(t, LoadDotEnv(filepath.Join(dir, "missing.env")))
}

func TestLoadPolicyFile(t *testing.T) {
	policy, err := LoadPolicyFile("")
	require.NoError(t, err)
	assert.Nil(t, policy)

	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")
	content := `
keywords:
  - refund
  - cancel subscription
low_confidence_phrases:
  - no idea
topics:
  billing: [invoice, refund]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	policy, err = LoadPolicyFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"refund", "cancel subscription"}, policy.Keywords)
	assert.Equal(t, []string{"no idea"}, policy.LowConfidencePhrases)
	assert.Equal(t, []string{"invoice", "refund"}, policy.Topics["billing"])

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("unknown_field: true\n"), 0o600))
	_, err = LoadPolicyFile(bad)
	assert.Error(t, err)
}
