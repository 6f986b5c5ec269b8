// internal/common/camunda/client.go
package camunda

import (
	"context"
	"fmt"
	"strings"
	"time"

	"car-advisor/internal/common/errors"

	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
)

// Client wraps the Zeebe gRPC client with connection retry and error mapping.
type Client struct {
	client zbc.Client
	config *ClientConfig
}

type ClientConfig struct {
	GatewayAddress         string
	UsePlaintextConnection bool
	ConnectionTimeout      time.Duration
	RetryConfig            *RetryConfig
}

type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

var DefaultRetryConfig = &RetryConfig{
	MaxRetries: 3,
	BaseDelay:  1 * time.Second,
	MaxDelay:   10 * time.Second,
}

// NewClient connects with plaintext and default timeouts. Suitable for local dev.
func NewClient(ctx context.Context, address string) (*Client, error) {
	return NewClientWithConfig(ctx, &ClientConfig{
		GatewayAddress:         address,
		UsePlaintextConnection: true,
		ConnectionTimeout:      10 * time.Second,
		RetryConfig:            DefaultRetryConfig,
	})
}

// NewClientWithConfig creates the Zeebe client and waits until the broker answers a topology request.
func NewClientWithConfig(ctx context.Context, config *ClientConfig) (*Client, error) {
	if config.RetryConfig == nil {
		config.RetryConfig = DefaultRetryConfig
	}

	zeebeClient, err := zbc.NewClient(&zbc.ClientConfig{
		GatewayAddress:         config.GatewayAddress,
		UsePlaintextConnection: config.UsePlaintextConnection,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Zeebe client: %w", err)
	}

	c := &Client{client: zeebeClient, config: config}
	if err := c.withRetry(ctx, "topology", c.HealthCheck); err != nil {
		zeebeClient.Close()
		return nil, fmt.Errorf("failed to connect to Zeebe broker at %s: %w", config.GatewayAddress, err)
	}
	return c, nil
}

// GetClient returns the raw Zeebe client for job workers.
func (c *Client) GetClient() zbc.Client {
	return c.client
}

func (c *Client) Close() error {
	return c.client.Close()
}

// HealthCheck sends a topology request bounded by the connection timeout.
func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.config.ConnectionTimeout)
	defer cancel()

	if _, err := c.client.NewTopologyCommand().Send(ctx); err != nil {
		return fmt.Errorf("zeebe health check failed: %w", err)
	}
	return nil
}

// withRetry runs fn with exponential backoff. Only transient errors are retried.
func (c *Client) withRetry(ctx context.Context, operation string, fn func(context.Context) error) error {
	retry := c.config.RetryConfig
	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if !isRetryableZeebeError(err) || attempt == retry.MaxRetries {
			return mapZeebeError(err, operation, attempt)
		}

		delay := retry.BaseDelay * time.Duration(1<<attempt)
		if delay > retry.MaxDelay {
			delay = retry.MaxDelay
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return errors.NewRequestTimeoutError(fmt.Errorf("operation %s cancelled after %d attempts: %w", operation, attempt+1, ctx.Err()))
		}
	}
}

var retryablePhrases = []string{
	"connection refused",
	"connection reset",
	"timeout",
	"deadline exceeded",
	"unavailable",
	"unreachable",
	"broken pipe",
}

func isRetryableZeebeError(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, phrase := range retryablePhrases {
		if strings.Contains(msg, phrase) {
			return true
		}
	}
	return false
}

func mapZeebeError(err error, operation string, attempt int) error {
	wrapped := fmt.Errorf("zeebe operation '%s' failed", operation)
	if attempt > 0 {
		wrapped = fmt.Errorf("%w after %d attempts", wrapped, attempt+1)
	}
	wrapped = fmt.Errorf("%w: %w", wrapped, err)

	lower := strings.ToLower(err.Error())
	if strings.Contains(lower, "timeout") || strings.Contains(lower, "deadline exceeded") {
		return errors.NewRequestTimeoutError(wrapped)
	}
	return errors.NewInternalError(wrapped)
}
