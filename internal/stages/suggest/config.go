// internal/stages/suggest/config.go
package suggest

import "fmt"

type Config struct {
	Temperature float64
	MaxTokens   int
	// MaxChoices caps how many non-pinned choices are kept. 0 keeps all.
	MaxChoices int
}

func DefaultConfig() *Config {
	return &Config{
		Temperature: 0.4,
		MaxTokens:   2048,
		MaxChoices:  6,
	}
}

func (c *Config) Validate() error {
	if c.MaxChoices < 0 {
		return fmt.Errorf("suggest max choices must not be negative")
	}
	return nil
}
