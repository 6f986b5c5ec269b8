// internal/common/config/config.go
package config

// Config is the main application configuration struct.
type Config struct {
	App          AppConfig               `mapstructure:"app"`
	Server       ServerConfig            `mapstructure:"server"`
	Camunda      CamundaConfig           `mapstructure:"camunda"`
	Workers      map[string]WorkerConfig `mapstructure:"workers"`
	LLM          LLMConfig               `mapstructure:"llm"`
	ImageSearch  ImageSearchConfig       `mapstructure:"image_search"`
	Elaboration  ElaborationConfig       `mapstructure:"elaboration"`
	Translation  TranslationConfig       `mapstructure:"translation"`
	Enrichment   EnrichmentConfig        `mapstructure:"enrichment"`
	Conversation ConversationConfig      `mapstructure:"conversation"`
	Cache        CacheConfig             `mapstructure:"cache"`
	Database     DatabaseConfig          `mapstructure:"database"`
	Prompts      PromptsConfig           `mapstructure:"prompts"`
	Logging      LoggingConfig           `mapstructure:"logging"`
	Tracing      TracingConfig           `mapstructure:"tracing"`
}

// --- Core App/Infrastructure Config ---

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Address         string `mapstructure:"address"`
	ReadTimeout     int    `mapstructure:"read_timeout"`     // milliseconds
	WriteTimeout    int    `mapstructure:"write_timeout"`    // milliseconds
	ShutdownTimeout int    `mapstructure:"shutdown_timeout"` // milliseconds
	RequestTimeout  int    `mapstructure:"request_timeout"`  // milliseconds, bounds one pipeline run

	CORSAllowedOrigins []string `mapstructure:"cors_allowed_origins"`
	RateLimitRequests  int      `mapstructure:"rate_limit_requests"` // per window and client IP, 0 disables
	RateLimitWindow    int      `mapstructure:"rate_limit_window"`   // seconds
}

type CamundaConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

// WorkerConfig holds the core settings applicable to every job worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"` // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"`
}

type DatabaseConfig struct {
	Redis RedisConfig `mapstructure:"redis"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// --- Model and search backends ---

type LLMConfig struct {
	BaseURL           string  `mapstructure:"base_url"`
	Model             string  `mapstructure:"model"`
	VisionModel       string  `mapstructure:"vision_model"`
	Temperature       float64 `mapstructure:"temperature"`
	MaxTokens         int     `mapstructure:"max_tokens"`
	Timeout           int     `mapstructure:"timeout"` // milliseconds
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

type ImageSearchConfig struct {
	BaseURL    string `mapstructure:"base_url"`
	APIKey     string `mapstructure:"api_key"`
	EngineID   string `mapstructure:"engine_id"`
	MaxResults int    `mapstructure:"max_results"`
	Timeout    int    `mapstructure:"timeout"` // milliseconds
	MaxRetries int    `mapstructure:"max_retries"`
	CacheTTL   int    `mapstructure:"cache_ttl"` // seconds
	Breaker    struct {
		MaxFailures int `mapstructure:"max_failures"`
		OpenTimeout int `mapstructure:"open_timeout"` // milliseconds
	} `mapstructure:"breaker"`
}

// --- Pipeline stages ---

type ElaborationConfig struct {
	Concurrency int `mapstructure:"concurrency"`
}

type TranslationConfig struct {
	Sequential        bool   `mapstructure:"sequential"`
	SourceLanguage    string `mapstructure:"source_language"`
	MinAnalysisLength int    `mapstructure:"min_analysis_length"`
	Concurrency       int    `mapstructure:"concurrency"`
}

type EnrichmentConfig struct {
	ModelThreshold float64 `mapstructure:"model_threshold"`
	TextThreshold  float64 `mapstructure:"text_threshold"`
	FallbackImages int     `mapstructure:"fallback_images"`
	MaxImages      int     `mapstructure:"max_images"`
	Concurrency    int     `mapstructure:"concurrency"`
	FetchTimeout   int     `mapstructure:"fetch_timeout"` // milliseconds
	MaxImageBytes  int64   `mapstructure:"max_image_bytes"`
}

type ConversationConfig struct {
	TTL           int `mapstructure:"ttl"`            // seconds
	SweepInterval int `mapstructure:"sweep_interval"` // seconds
}

type CacheConfig struct {
	Backend   string `mapstructure:"backend"` // memory | redis
	KeyPrefix string `mapstructure:"key_prefix"`
}

type PromptsConfig struct {
	Dir string `mapstructure:"dir"`
}

// --- Observability ---

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

type TracingConfig struct {
	Enabled        bool    `mapstructure:"enabled"`
	ServiceName    string  `mapstructure:"service_name"`
	JaegerEndpoint string  `mapstructure:"jaeger_endpoint"`
	SampleRatio    float64 `mapstructure:"sample_ratio"`
}
