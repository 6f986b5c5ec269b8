// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load reads configs/config.yaml, merges config.<APP_ENVIRONMENT>.yaml on top and applies env overrides.
func Load() (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")
	bindEnv(v)

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig()

	return finish(v)
}

// LoadFromFile loads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	bindEnv(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return finish(v)
}

func bindEnv(v *viper.Viper) {
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	setZeroableDefaults(v)
}

// setZeroableDefaults registers defaults for keys where an explicit 0 is meaningful, so
// applyDefaults cannot mistake it for an unset value.
func setZeroableDefaults(v *viper.Viper) {
	v.SetDefault("enrichment.model_threshold", 0.8)
	v.SetDefault("enrichment.text_threshold", 0.2)
}

func finish(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	overrideEmptyConfig(&cfg)
	applyDefaults(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func loadEnvFile() {
	possiblePaths := []string{".env", "../.env", "../../.env"}
	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// findProjectRoot walks up from the working directory looking for go.mod.
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// expandEnvVars resolves ${VAR} placeholders left in string values. Unset variables expand to
// the empty string so applyDefaults and overrideEmptyConfig can fill them.
func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok || !strings.Contains(strVal, "$") {
			continue
		}
		if expanded := os.ExpandEnv(strVal); expanded != strVal {
			v.Set(key, expanded)
		}
	}
}

// overrideEmptyConfig fills secrets from the conventional env names when YAML left them blank.
func overrideEmptyConfig(cfg *Config) {
	if cfg.ImageSearch.APIKey == "" {
		cfg.ImageSearch.APIKey = os.Getenv("IMAGE_SEARCH_API_KEY")
	}
	if cfg.ImageSearch.EngineID == "" {
		cfg.ImageSearch.EngineID = os.Getenv("IMAGE_SEARCH_ENGINE_ID")
	}
	if cfg.LLM.BaseURL == "" {
		cfg.LLM.BaseURL = os.Getenv("OLLAMA_HOST")
	}
	if cfg.Database.Redis.Password == "" {
		cfg.Database.Redis.Password = os.Getenv("REDIS_PASSWORD")
	}
}

// applyDefaults sets default values for optional configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "car-advisor"
	}
	if cfg.App.Environment == "" {
		cfg.App.Environment = "development"
	}

	if cfg.Server.Address == "" {
		cfg.Server.Address = ":8080"
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 15000
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 300000
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10000
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = 240000
	}
	if len(cfg.Server.CORSAllowedOrigins) == 0 {
		cfg.Server.CORSAllowedOrigins = []string{"*"}
	}
	if cfg.Server.RateLimitWindow == 0 {
		cfg.Server.RateLimitWindow = 60
	}

	if cfg.Camunda.MaxJobsActive == 0 {
		cfg.Camunda.MaxJobsActive = 10
	}
	if cfg.Camunda.Timeout == 0 {
		cfg.Camunda.Timeout = 300000
	}
	if cfg.Camunda.RequestTimeout == 0 {
		cfg.Camunda.RequestTimeout = 30000
	}
	for key, worker := range cfg.Workers {
		if worker.MaxJobsActive == 0 {
			worker.MaxJobsActive = 5
		}
		if worker.Timeout == 0 {
			worker.Timeout = cfg.Camunda.Timeout
		}
		if worker.MaxRetries == 0 {
			worker.MaxRetries = 3
		}
		cfg.Workers[key] = worker
	}

	if cfg.LLM.BaseURL == "" {
		cfg.LLM.BaseURL = "http://localhost:11434"
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "llama3.1"
	}
	if cfg.LLM.VisionModel == "" {
		cfg.LLM.VisionModel = "llava"
	}
	if cfg.LLM.Temperature == 0 {
		cfg.LLM.Temperature = 0.2
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = 2048
	}
	if cfg.LLM.Timeout == 0 {
		cfg.LLM.Timeout = 120000
	}

	if cfg.ImageSearch.BaseURL == "" {
		cfg.ImageSearch.BaseURL = "https://www.googleapis.com/customsearch/v1"
	}
	if cfg.ImageSearch.MaxResults == 0 {
		cfg.ImageSearch.MaxResults = 8
	}
	if cfg.ImageSearch.Timeout == 0 {
		cfg.ImageSearch.Timeout = 10000
	}
	if cfg.ImageSearch.MaxRetries == 0 {
		cfg.ImageSearch.MaxRetries = 2
	}
	if cfg.ImageSearch.CacheTTL == 0 {
		cfg.ImageSearch.CacheTTL = 86400
	}
	if cfg.ImageSearch.Breaker.MaxFailures == 0 {
		cfg.ImageSearch.Breaker.MaxFailures = 5
	}
	if cfg.ImageSearch.Breaker.OpenTimeout == 0 {
		cfg.ImageSearch.Breaker.OpenTimeout = 30000
	}

	if cfg.Elaboration.Concurrency == 0 {
		cfg.Elaboration.Concurrency = 4
	}
	if cfg.Translation.SourceLanguage == "" {
		cfg.Translation.SourceLanguage = "en"
	}
	if cfg.Translation.MinAnalysisLength == 0 {
		cfg.Translation.MinAnalysisLength = 10
	}
	if cfg.Translation.Concurrency == 0 {
		cfg.Translation.Concurrency = 4
	}

	if cfg.Enrichment.FallbackImages == 0 {
		cfg.Enrichment.FallbackImages = 3
	}
	if cfg.Enrichment.MaxImages == 0 {
		cfg.Enrichment.MaxImages = 4
	}
	if cfg.Enrichment.Concurrency == 0 {
		cfg.Enrichment.Concurrency = 3
	}
	if cfg.Enrichment.FetchTimeout == 0 {
		cfg.Enrichment.FetchTimeout = 8000
	}
	if cfg.Enrichment.MaxImageBytes == 0 {
		cfg.Enrichment.MaxImageBytes = 5 << 20
	}

	if cfg.Conversation.TTL == 0 {
		cfg.Conversation.TTL = 3600
	}
	if cfg.Conversation.SweepInterval == 0 {
		cfg.Conversation.SweepInterval = 60
	}

	if cfg.Cache.Backend == "" {
		cfg.Cache.Backend = "memory"
	}
	if cfg.Cache.KeyPrefix == "" {
		cfg.Cache.KeyPrefix = "car-advisor:"
	}
	if cfg.Prompts.Dir == "" {
		cfg.Prompts.Dir = "configs/prompts"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}

	if cfg.Tracing.ServiceName == "" {
		cfg.Tracing.ServiceName = cfg.App.Name
	}
	if cfg.Tracing.SampleRatio == 0 {
		cfg.Tracing.SampleRatio = 1
	}
}

// validateConfig validates critical configuration fields.
func validateConfig(cfg *Config) error {
	if cfg.LLM.Model == "" {
		return fmt.Errorf("llm.model is required")
	}
	if cfg.Enrichment.ModelThreshold < 0 || cfg.Enrichment.ModelThreshold > 1 {
		return fmt.Errorf("enrichment.model_threshold must be within [0,1], got %v", cfg.Enrichment.ModelThreshold)
	}
	if cfg.Enrichment.TextThreshold < 0 || cfg.Enrichment.TextThreshold > 1 {
		return fmt.Errorf("enrichment.text_threshold must be within [0,1], got %v", cfg.Enrichment.TextThreshold)
	}
	switch cfg.Cache.Backend {
	case "memory":
	case "redis":
		if cfg.Database.Redis.Address == "" {
			return fmt.Errorf("database.redis.address is required when cache.backend is redis")
		}
	default:
		return fmt.Errorf("cache.backend must be memory or redis, got %q", cfg.Cache.Backend)
	}
	if cfg.Camunda.Enabled && cfg.Camunda.BrokerAddress == "" {
		return fmt.Errorf("camunda.broker_address is required when camunda.enabled is true")
	}
	if cfg.Tracing.Enabled && cfg.Tracing.JaegerEndpoint == "" {
		return fmt.Errorf("tracing.jaeger_endpoint is required when tracing.enabled is true")
	}
	return nil
}

// GetDuration converts milliseconds from config to time.Duration.
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}

// GetSeconds converts seconds from config to time.Duration.
func GetSeconds(seconds int) time.Duration {
	return time.Duration(seconds) * time.Second
}

// GetWorkerConfig retrieves worker-specific configuration with fallback to defaults.
func GetWorkerConfig(cfg *Config, workerName string) WorkerConfig {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker
	}
	return WorkerConfig{
		Enabled:       true,
		MaxJobsActive: cfg.Camunda.MaxJobsActive,
		Timeout:       cfg.Camunda.Timeout,
		MaxRetries:    3,
	}
}

// IsWorkerEnabled checks if a specific worker is enabled.
func IsWorkerEnabled(cfg *Config, workerName string) bool {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker.Enabled
	}
	return true
}
