// internal/imagesearch/client.go
package imagesearch

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"car-advisor/internal/common/cache"
	commonhttp "car-advisor/internal/common/http"
	"car-advisor/internal/common/logger"
	"car-advisor/internal/common/metrics"
	"car-advisor/internal/models"

	gobreaker "github.com/sony/gobreaker/v2"
)

// Searcher never fails: any problem yields an empty list.
type Searcher interface {
	Search(ctx context.Context, query string) []models.ImageRecord
}

type Client struct {
	config  *Config
	http    *commonhttp.Client
	cache   cache.Cache
	breaker *gobreaker.CircuitBreaker[[]models.ImageRecord]
	logger  logger.Logger
}

// NewClient builds a client. c may be nil to disable caching.
func NewClient(config *Config, c cache.Cache, log logger.Logger) *Client {
	client := &Client{
		config: config,
		http:   commonhttp.NewClient(config.Timeout),
		cache:  c,
		logger: log.With(map[string]interface{}{"component": "imagesearch"}),
	}
	client.breaker = gobreaker.NewCircuitBreaker[[]models.ImageRecord](gobreaker.Settings{
		Name:        "image-search",
		MaxRequests: 1,
		Timeout:     config.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= config.BreakerMaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			client.logger.Warn("image search circuit breaker state changed", map[string]interface{}{
				"from": from.String(),
				"to":   to.String(),
			})
		},
	})
	return client
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("image search returned %d: %s", e.code, e.body)
}

func (e *statusError) retryable() bool {
	return e.code == http.StatusTooManyRequests || e.code >= 500
}

func (c *Client) Search(ctx context.Context, query string) []models.ImageRecord {
	query = strings.Join(strings.Fields(query), " ")
	if query == "" {
		return []models.ImageRecord{}
	}
	key := "img:" + strings.ToLower(query)

	if cached, ok := c.fromCache(ctx, key); ok {
		metrics.ImageSearchRequests.WithLabelValues("hit").Inc()
		return cached
	}

	images, err := c.breaker.Execute(func() ([]models.ImageRecord, error) {
		return c.fetchWithRetry(ctx, query)
	})
	if err != nil {
		outcome := "error"
		if stderrors.Is(err, gobreaker.ErrOpenState) || stderrors.Is(err, gobreaker.ErrTooManyRequests) {
			outcome = "open"
		}
		metrics.ImageSearchRequests.WithLabelValues(outcome).Inc()
		c.logger.Warn("image search failed, returning no images", map[string]interface{}{
			"query": query,
			"error": err.Error(),
		})
		return []models.ImageRecord{}
	}

	metrics.ImageSearchRequests.WithLabelValues("miss").Inc()
	if len(images) > 0 {
		c.toCache(ctx, key, images)
	}
	return images
}

func (c *Client) fetchWithRetry(ctx context.Context, query string) ([]models.ImageRecord, error) {
	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(100*(1<<(attempt-1))) * time.Millisecond
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		images, err := c.fetch(ctx, query)
		if err == nil {
			return images, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		var se *statusError
		if stderrors.As(err, &se) && !se.retryable() {
			break
		}
	}
	return nil, lastErr
}

func (c *Client) fetch(ctx context.Context, query string) ([]models.ImageRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.buildSearchURL(query), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &statusError{code: resp.StatusCode, body: strings.TrimSpace(string(body))}
	}

	var apiResponse struct {
		Items []struct {
			Link        string `json:"link"`
			Title       string `json:"title"`
			DisplayLink string `json:"displayLink"`
			Mime        string `json:"mime"`
			Image       struct {
				ThumbnailLink string `json:"thumbnailLink"`
				Width         int    `json:"width"`
				Height        int    `json:"height"`
			} `json:"image"`
		} `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResponse); err != nil {
		return nil, fmt.Errorf("decode image search response: %w", err)
	}

	seen := make(map[string]bool)
	images := make([]models.ImageRecord, 0, len(apiResponse.Items))
	for _, item := range apiResponse.Items {
		if item.Link == "" || seen[item.Link] {
			continue
		}
		if item.Mime != "" && !strings.HasPrefix(item.Mime, "image/") {
			continue
		}
		seen[item.Link] = true
		images = append(images, models.ImageRecord{
			URL:          item.Link,
			ThumbnailURL: item.Image.ThumbnailLink,
			Title:        item.Title,
			Source:       item.DisplayLink,
			Width:        item.Image.Width,
			Height:       item.Image.Height,
		})
		if len(images) == c.config.MaxResults {
			break
		}
	}

	c.logger.Debug("image search completed", map[string]interface{}{
		"query":       query,
		"resultCount": len(images),
	})
	return images, nil
}

func (c *Client) buildSearchURL(query string) string {
	params := url.Values{}
	params.Add("key", c.config.APIKey)
	params.Add("cx", c.config.EngineID)
	params.Add("q", query)
	params.Add("searchType", "image")
	params.Add("safe", "active")
	params.Add("num", strconv.Itoa(c.config.MaxResults))
	return c.config.BaseURL + "?" + params.Encode()
}

func (c *Client) fromCache(ctx context.Context, key string) ([]models.ImageRecord, bool) {
	if c.cache == nil {
		return nil, false
	}
	raw, ok, err := c.cache.Get(ctx, key)
	if err != nil {
		c.logger.Warn("image cache read failed", map[string]interface{}{"key": key, "error": err.Error()})
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var images []models.ImageRecord
	if err := json.Unmarshal(raw, &images); err != nil {
		return nil, false
	}
	return images, true
}

func (c *Client) toCache(ctx context.Context, key string, images []models.ImageRecord) {
	if c.cache == nil {
		return
	}
	raw, err := json.Marshal(images)
	if err != nil {
		return
	}
	if err := c.cache.Set(ctx, key, raw, c.config.CacheTTL); err != nil {
		c.logger.Warn("image cache write failed", map[string]interface{}{"key": key, "error": err.Error()})
	}
}
