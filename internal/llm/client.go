// internal/llm/client.go
package llm

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	commonhttp "car-advisor/internal/common/http"
	"car-advisor/internal/common/jsonrepair"
	"car-advisor/internal/common/logger"
	"car-advisor/internal/common/metrics"
	"car-advisor/internal/common/observability"

	"golang.org/x/time/rate"
)

// Invoker is the part of the client the stages depend on.
type Invoker interface {
	Invoke(ctx context.Context, messages []Message, opts Options) (string, error)
}

type Client struct {
	config  *Config
	http    *commonhttp.Client
	limiter *rate.Limiter
	tracer  observability.Tracer
	logger  logger.Logger
}

type ClientOption func(*Client)

func WithTracer(t observability.Tracer) ClientOption {
	return func(c *Client) { c.tracer = t }
}

func WithHTTPClient(h *commonhttp.Client) ClientOption {
	return func(c *Client) { c.http = h }
}

func NewClient(config *Config, log logger.Logger, opts ...ClientOption) *Client {
	c := &Client{
		config: config,
		http:   commonhttp.NewClient(config.Timeout),
		tracer: observability.NopTracer{},
		logger: log.With(map[string]interface{}{"component": "llm", "model": config.Model}),
	}
	if config.RequestsPerSecond > 0 {
		burst := config.Burst
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(config.RequestsPerSecond), burst)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Invoke sends one chat request and returns the assistant text.
func (c *Client) Invoke(ctx context.Context, messages []Message, opts Options) (string, error) {
	req := c.buildRequest(messages, opts)

	ctx, span := c.tracer.Start(ctx, "llm.chat", map[string]interface{}{
		"model":    req.Model,
		"format":   req.Format,
		"messages": len(messages),
		"images":   countImages(messages),
		"input":    observability.Summarize(lastContent(messages), 300),
	})

	content, err := c.send(ctx, req)
	if err != nil {
		metrics.ModelRequests.WithLabelValues(req.Model, statusLabel(err)).Inc()
		span.Fail(err)
		return "", err
	}

	metrics.ModelRequests.WithLabelValues(req.Model, "ok").Inc()
	span.End(map[string]interface{}{
		"outputChars": len(content),
		"output":      observability.Summarize(content, 300),
	})
	return content, nil
}

func (c *Client) send(ctx context.Context, req chatRequest) (string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limiter: %w", err)
		}
	}

	url := strings.TrimRight(c.config.BaseURL, "/") + "/api/chat"
	resp, err := c.http.PostJSON(ctx, url, req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", &UnavailableError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", &HTTPError{URL: url, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", &jsonrepair.ParseError{Message: fmt.Sprintf("decode chat response from %s: %v", url, err)}
	}

	c.logger.Debug("model call completed", map[string]interface{}{
		"model":       req.Model,
		"outputChars": len(out.Message.Content),
	})
	return out.Message.Content, nil
}

func (c *Client) buildRequest(messages []Message, opts Options) chatRequest {
	req := chatRequest{
		Model:  c.config.Model,
		Format: opts.Format,
		Options: wireOptions{
			Temperature: c.config.Temperature,
			NumPredict:  c.config.MaxTokens,
		},
	}
	if opts.Model != "" {
		req.Model = opts.Model
	}
	if opts.Temperature != nil {
		req.Options.Temperature = *opts.Temperature
	}
	if opts.MaxTokens > 0 {
		req.Options.NumPredict = opts.MaxTokens
	}

	req.Messages = make([]wireMessage, len(messages))
	for i, m := range messages {
		wm := wireMessage{Role: m.Role, Content: m.Content}
		for _, img := range m.Images {
			wm.Images = append(wm.Images, base64.StdEncoding.EncodeToString(img))
		}
		req.Messages[i] = wm
	}
	return req
}

// VerifyBackend lists the backend's models and reports whether the configured model is among them.
// It is meant for startup and health checks.
func (c *Client) VerifyBackend(ctx context.Context) (bool, error) {
	url := strings.TrimRight(c.config.BaseURL, "/") + "/api/tags"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return false, &UnavailableError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return false, &HTTPError{URL: url, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var tags tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return false, fmt.Errorf("decode model list: %w", err)
	}

	for _, m := range tags.Models {
		if strings.Contains(m.Name, c.config.Model) || strings.Contains(m.Model, c.config.Model) {
			return true, nil
		}
	}
	c.logger.Warn("configured model not found on backend", map[string]interface{}{
		"available": len(tags.Models),
	})
	return false, nil
}

func (c *Client) Model() string       { return c.config.Model }
func (c *Client) VisionModel() string { return c.config.VisionModel }

func statusLabel(err error) string {
	switch e := err.(type) {
	case *HTTPError:
		return strconv.Itoa(e.StatusCode)
	case *UnavailableError:
		return "unavailable"
	case *jsonrepair.ParseError:
		return "malformed"
	default:
		return "error"
	}
}

func countImages(messages []Message) int {
	n := 0
	for _, m := range messages {
		n += len(m.Images)
	}
	return n
}

func lastContent(messages []Message) string {
	if len(messages) == 0 {
		return ""
	}
	return messages[len(messages)-1].Content
}
