// internal/llm/config.go
package llm

import (
	"fmt"
	"time"
)

type Config struct {
	BaseURL     string
	Model       string
	VisionModel string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration

	// RequestsPerSecond <= 0 disables client-side rate limiting.
	RequestsPerSecond float64
	Burst             int
}

func DefaultConfig() *Config {
	return &Config{
		BaseURL:     "http://localhost:11434",
		Model:       "llama3.1",
		VisionModel: "llava",
		Temperature: 0.2,
		MaxTokens:   2048,
		Timeout:     120 * time.Second,
		Burst:       1,
	}
}

func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("llm base url is required")
	}
	if c.Model == "" {
		return fmt.Errorf("llm model is required")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("llm timeout must be positive")
	}
	return nil
}
