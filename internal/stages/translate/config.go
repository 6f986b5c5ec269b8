// internal/stages/translate/config.go
package translate

import "fmt"

type Config struct {
	// Sequential translates cars one at a time to stay under backend rate limits.
	Sequential     bool
	Concurrency    int
	SourceLanguage string
	// Translations of the analysis shorter than this are treated as degenerate.
	MinAnalysisLength int
	Temperature       float64
	MaxTokens         int
}

func DefaultConfig() *Config {
	return &Config{
		Concurrency:       4,
		SourceLanguage:    "en",
		MinAnalysisLength: 10,
		Temperature:       0.1,
		MaxTokens:         2048,
	}
}

func (c *Config) Validate() error {
	if !c.Sequential && c.Concurrency < 1 {
		return fmt.Errorf("translation concurrency must be at least 1")
	}
	if c.MinAnalysisLength < 0 {
		return fmt.Errorf("translation min analysis length must not be negative")
	}
	return nil
}
