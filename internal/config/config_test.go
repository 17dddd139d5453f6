package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"ANTHROPIC_API_KEY", "OPENAI_API_KEY", "GOOGLE_GEMINI_API_KEY",
		"DB_BACKEND", "DATABASE_URL", "LLM_CACHE_TTL_HOURS", "CORE_ACTOR_SALIENCE",
		"AGGREGATOR_CONFIG",
	} {
		os.Unsetenv(k)
	}
}

func TestLoad_RequiresAnLLMKey(t *testing.T) {
	clearEnv(t)
	_, err := Load()
	require.Error(t, err)
}

func TestLoad_DefaultsApplied(t *testing.T) {
	clearEnv(t)
	os.Setenv("ANTHROPIC_API_KEY", "test-key")
	t.Cleanup(func() { os.Unsetenv("ANTHROPIC_API_KEY") })

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.DB.Backend)
	assert.Equal(t, 4.5, cfg.Narrative.CoreActorSalience)
	assert.Equal(t, 0.8, cfg.Narrative.LinkStrengthThreshold)
	assert.Equal(t, 0.5, cfg.Narrative.ShallowMergeSimilarity)
	assert.Equal(t, 48, cfg.Narrative.LookbackHours)
	assert.NotEmpty(t, cfg.Ingest.Sources)
	assert.Contains(t, cfg.LLM.PricingPerMillion, cfg.LLM.DefaultPricingModel)
}

func TestLoad_PostgresBackendRequiresDSN(t *testing.T) {
	clearEnv(t)
	os.Setenv("ANTHROPIC_API_KEY", "test-key")
	os.Setenv("DB_BACKEND", "postgres")
	t.Cleanup(func() {
		os.Unsetenv("ANTHROPIC_API_KEY")
		os.Unsetenv("DB_BACKEND")
	})

	_, err := Load()
	require.Error(t, err)
}
