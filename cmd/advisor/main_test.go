package main

import (
	"testing"

	"car-advisor/internal/common/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *config.Config {
	return &config.Config{
		Elaboration: config.ElaborationConfig{Concurrency: 4},
		Translation: config.TranslationConfig{SourceLanguage: "en", MinAnalysisLength: 10, Concurrency: 4},
		Enrichment: config.EnrichmentConfig{
			ModelThreshold: 0.8,
			TextThreshold:  0.2,
			FallbackImages: 3,
			MaxImages:      4,
			Concurrency:    3,
			FetchTimeout:   8000,
			MaxImageBytes:  5 << 20,
		},
	}
}

func TestBuildStageConfigs_MapsGlobalConfig(t *testing.T) {
	cfg := validConfig()
	cfg.Translation.Sequential = true

	sc, err := buildStageConfigs(cfg)
	require.NoError(t, err)

	assert.Equal(t, 4, sc.elaborate.Concurrency)
	assert.True(t, sc.translate.Sequential)
	assert.Equal(t, 10, sc.translate.MinAnalysisLength)
	assert.Equal(t, 0.2, sc.enrich.TextThreshold)
	assert.Equal(t, config.GetDuration(8000), sc.enrich.FetchTimeout)
}

func TestBuildStageConfigs_RejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr string
	}{
		{
			name:    "elaboration concurrency",
			mutate:  func(c *config.Config) { c.Elaboration.Concurrency = 0 },
			wantErr: "elaboration concurrency",
		},
		{
			name:    "negative min analysis length",
			mutate:  func(c *config.Config) { c.Translation.MinAnalysisLength = -1 },
			wantErr: "min analysis length",
		},
		{
			name:    "translation concurrency",
			mutate:  func(c *config.Config) { c.Translation.Concurrency = 0 },
			wantErr: "translation concurrency",
		},
		{
			name:    "enrichment threshold",
			mutate:  func(c *config.Config) { c.Enrichment.ModelThreshold = 2 },
			wantErr: "model threshold",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			_, err := buildStageConfigs(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
