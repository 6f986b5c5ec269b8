// internal/stages/elaborate/config.go
package elaborate

import "fmt"

type Config struct {
	Temperature float64
	MaxTokens   int
	Concurrency int
}

func DefaultConfig() *Config {
	return &Config{
		Temperature: 0.3,
		MaxTokens:   1536,
		Concurrency: 4,
	}
}

func (c *Config) Validate() error {
	if c.Concurrency < 1 {
		return fmt.Errorf("elaboration concurrency must be at least 1")
	}
	return nil
}
