package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"StockScreener/internal/model"
)

// Provider fetches and parses one data source's price history. Each
// implementation owns its request shaping and response mapping, so the
// rest of the pipeline never branches on the source name. Implementations
// hold no mutable state and are safe for concurrent use.
type Provider interface {
	Name() string
	Fetch(ctx context.Context, symbol string, p Params) (*model.PriceSeries, error)
}

// Fetcher is the narrow contract the scan layer depends on. Both the
// retry client and the failover coordinator satisfy it.
type Fetcher interface {
	Fetch(ctx context.Context, symbol string, p Params) (*model.PriceSeries, error)
}

// Endpoint is the static descriptor of one configured provider. Order in
// the configuration list is the failover priority.
type Endpoint struct {
	Name    string
	BaseURL string
	Timeout time.Duration
	Proxy   string
}

// NewProvider builds a provider from its endpoint descriptor.
func NewProvider(ep Endpoint) (Provider, error) {
	switch ep.Name {
	case "eastmoney":
		return NewEastMoneyProvider(ep), nil
	case "tencent":
		return NewTencentProvider(ep), nil
	case "mock":
		return NewMockProvider(), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", ep.Name)
	}
}

// newHTTPClient builds the provider's HTTP client with optional proxy
// support.
func newHTTPClient(ep Endpoint) *http.Client {
	transport := &http.Transport{}
	if ep.Proxy != "" {
		if u, err := url.Parse(ep.Proxy); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	timeout := ep.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &http.Client{Timeout: timeout, Transport: transport}
}

// classifyStatus maps a non-2xx response to a classified error. 429
// carries the provider-advertised Retry-After delay when present.
func classifyStatus(provider string, resp *http.Response) error {
	if resp.StatusCode == http.StatusTooManyRequests {
		ce := &model.ClassifiedError{
			Kind:     model.ErrRateLimit,
			Provider: provider,
			Status:   resp.StatusCode,
			Err:      fmt.Errorf("status %d", resp.StatusCode),
		}
		if v := resp.Header.Get("Retry-After"); v != "" {
			if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
				ce.RetryAfter = time.Duration(secs) * time.Second
			}
		}
		return ce
	}
	return &model.ClassifiedError{
		Kind:     model.ErrAPI,
		Provider: provider,
		Status:   resp.StatusCode,
		Err:      fmt.Errorf("status %d", resp.StatusCode),
	}
}
