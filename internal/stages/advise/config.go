// internal/stages/advise/config.go
package advise

type Config struct {
	Temperature float64
	MaxTokens   int
}

func DefaultConfig() *Config {
	return &Config{
		Temperature: 0.4,
		MaxTokens:   1024,
	}
}
