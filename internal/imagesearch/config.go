// internal/imagesearch/config.go
package imagesearch

import "time"

type Config struct {
	BaseURL    string
	APIKey     string
	EngineID   string
	MaxResults int
	Timeout    time.Duration
	MaxRetries int
	CacheTTL   time.Duration

	BreakerMaxFailures uint32
	BreakerOpenTimeout time.Duration
}

func DefaultConfig() *Config {
	return &Config{
		BaseURL:            "https://www.googleapis.com/customsearch/v1",
		MaxResults:         8,
		Timeout:            10 * time.Second,
		MaxRetries:         2,
		CacheTTL:           24 * time.Hour,
		BreakerMaxFailures: 5,
		BreakerOpenTimeout: 30 * time.Second,
	}
}
