// internal/stages/enrich/fetcher.go
package enrich

import (
	"context"
	"fmt"
	"strings"
	"time"

	commonhttp "car-advisor/internal/common/http"
)

// ImageFetcher downloads the bytes handed to the vision model.
type ImageFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

type HTTPFetcher struct {
	client   *commonhttp.Client
	maxBytes int64
}

func NewHTTPFetcher(timeout time.Duration, maxBytes int64) *HTTPFetcher {
	return &HTTPFetcher{client: commonhttp.NewClient(timeout), maxBytes: maxBytes}
}

func NewHTTPFetcherFrom(client *commonhttp.Client, maxBytes int64) *HTTPFetcher {
	return &HTTPFetcher{client: client, maxBytes: maxBytes}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	data, contentType, err := f.client.GetBytes(ctx, url, f.maxBytes)
	if err != nil {
		return nil, err
	}
	if contentType != "" && !strings.HasPrefix(contentType, "image/") {
		return nil, fmt.Errorf("%s is %s, not an image", url, contentType)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%s returned an empty body", url)
	}
	return data, nil
}
