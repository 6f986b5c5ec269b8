// internal/stages/intent/config.go
package intent

import "fmt"

type Config struct {
	Temperature float64
	MaxTokens   int
}

func DefaultConfig() *Config {
	return &Config{
		Temperature: 0.1,
		MaxTokens:   512,
	}
}

func (c *Config) Validate() error {
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("intent temperature must be within [0,2]")
	}
	return nil
}
