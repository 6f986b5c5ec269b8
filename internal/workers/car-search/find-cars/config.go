// internal/workers/car-search/find-cars/config.go
package findcars

import (
	"fmt"
	"time"
)

type Config struct {
	// Timeout bounds one pipeline run. Keep it below the broker job timeout.
	Timeout       time.Duration
	MaxJobsActive int
}

func DefaultConfig() *Config {
	return &Config{
		Timeout:       5 * time.Minute,
		MaxJobsActive: 4,
	}
}

func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxJobsActive <= 0 {
		return fmt.Errorf("maxJobsActive must be positive")
	}
	return nil
}
