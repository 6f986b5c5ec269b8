package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFromFile_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
app:
  name: car-advisor
llm:
  model: llama3.1
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, 0.8, cfg.Enrichment.ModelThreshold)
	assert.Equal(t, 0.2, cfg.Enrichment.TextThreshold)
	assert.Equal(t, 3, cfg.Enrichment.FallbackImages)
	assert.Equal(t, 10, cfg.Translation.MinAnalysisLength)
	assert.Equal(t, 3600, cfg.Conversation.TTL)
	assert.Equal(t, "memory", cfg.Cache.Backend)
	assert.False(t, cfg.Translation.Sequential)
}

func TestLoadFromFile_ExpandsPlaceholders(t *testing.T) {
	t.Setenv("TEST_IMAGE_KEY", "secret-key")
	path := writeConfig(t, `
llm:
  model: llama3.1
image_search:
  api_key: ${TEST_IMAGE_KEY}
translation:
  sequential: true
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "secret-key", cfg.ImageSearch.APIKey)
	assert.True(t, cfg.Translation.Sequential)
}

func TestLoadFromFile_Validation(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{
			name:    "threshold out of range",
			body:    "enrichment:\n  model_threshold: 1.5\n",
			wantErr: "enrichment.model_threshold",
		},
		{
			name:    "redis backend without address",
			body:    "cache:\n  backend: redis\n",
			wantErr: "database.redis.address",
		},
		{
			name:    "unknown cache backend",
			body:    "cache:\n  backend: memcached\n",
			wantErr: "cache.backend",
		},
		{
			name:    "camunda enabled without broker",
			body:    "camunda:\n  enabled: true\n",
			wantErr: "camunda.broker_address",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromFile(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestGetDuration(t *testing.T) {
	assert.Equal(t, 1500*time.Millisecond, GetDuration(1500))
	assert.Equal(t, time.Hour, GetSeconds(3600))
}

func TestGetWorkerConfig_FallsBackToCamundaDefaults(t *testing.T) {
	cfg := &Config{Camunda: CamundaConfig{MaxJobsActive: 7, Timeout: 1234}}

	wcfg := GetWorkerConfig(cfg, "find-cars")
	assert.True(t, wcfg.Enabled)
	assert.Equal(t, 7, wcfg.MaxJobsActive)
	assert.Equal(t, 1234, wcfg.Timeout)
	assert.True(t, IsWorkerEnabled(cfg, "find-cars"))

	cfg.Workers = map[string]WorkerConfig{"find-cars": {Enabled: false}}
	assert.False(t, IsWorkerEnabled(cfg, "find-cars"))
}

func TestLoadFromFile_UnsetPlaceholderFallsBackToDefault(t *testing.T) {
	t.Setenv("OLLAMA_HOST", "")
	path := writeConfig(t, `
llm:
  model: llama3.1
  base_url: ${CAR_ADVISOR_UNSET_BASE_URL}
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:11434", cfg.LLM.BaseURL)
}

func TestLoadFromFile_ZeroThresholdsAreKept(t *testing.T) {
	path := writeConfig(t, `
llm:
  model: llama3.1
enrichment:
  model_threshold: 0
  text_threshold: 0
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, 0.0, cfg.Enrichment.ModelThreshold)
	assert.Equal(t, 0.0, cfg.Enrichment.TextThreshold)
}
