// internal/stages/enrich/config.go
package enrich

import (
	"fmt"
	"time"
)

type Config struct {
	// An image is kept when modelConfidence >= ModelThreshold and textConfidence <= TextThreshold.
	ModelThreshold float64
	TextThreshold  float64
	// FallbackImages is how many unfiltered images a candidate keeps when verification errors out.
	FallbackImages int
	// MaxImages stops verification once this many images are accepted. 0 checks every image.
	MaxImages     int
	Concurrency   int
	FetchTimeout  time.Duration
	MaxImageBytes int64
}

func DefaultConfig() *Config {
	return &Config{
		ModelThreshold: 0.8,
		TextThreshold:  0.2,
		FallbackImages: 3,
		MaxImages:      4,
		Concurrency:    3,
		FetchTimeout:   8 * time.Second,
		MaxImageBytes:  5 << 20,
	}
}

func (c *Config) Validate() error {
	if c.ModelThreshold < 0 || c.ModelThreshold > 1 {
		return fmt.Errorf("enrichment model threshold must be within [0,1]")
	}
	if c.TextThreshold < 0 || c.TextThreshold > 1 {
		return fmt.Errorf("enrichment text threshold must be within [0,1]")
	}
	if c.FallbackImages < 0 || c.MaxImages < 0 {
		return fmt.Errorf("enrichment image counts must not be negative")
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("enrichment concurrency must be at least 1")
	}
	return nil
}
