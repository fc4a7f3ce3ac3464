package fetch

import (
	"context"
	"errors"
	"time"

	"github.com/jpillora/backoff"
	"go.uber.org/zap"

	"StockScreener/internal/model"
)

// RetryConfig bounds the retry loop of a single provider.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryConfig is the production retry budget.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{MaxAttempts: 5, BaseDelay: 500 * time.Millisecond, MaxDelay: 10 * time.Second}
}

func (c RetryConfig) withDefaults() RetryConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = 500 * time.Millisecond
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 10 * time.Second
	}
	return c
}

// RetryClient performs a single logical fetch against one provider with
// bounded retries and exponential backoff. It holds no per-call state, so
// many workers can share one instance.
type RetryClient struct {
	provider Provider
	cfg      RetryConfig
	log      *zap.Logger
}

// NewRetryClient wraps a provider with a retry budget.
func NewRetryClient(provider Provider, cfg RetryConfig, log *zap.Logger) *RetryClient {
	if log == nil {
		log = zap.NewNop()
	}
	return &RetryClient{provider: provider, cfg: cfg.withDefaults(), log: log}
}

// Fetch validates the parameters, then issues the request with up to
// MaxAttempts tries. Transient failures back off exponentially with
// jitter; HTTP 429 waits the longer of the advertised Retry-After and the
// computed delay. Non-retryable errors surface immediately. Cancellation
// is honored between attempts.
func (c *RetryClient) Fetch(ctx context.Context, symbol string, p Params) (*model.PriceSeries, error) {
	if err := p.Validate(symbol); err != nil {
		return nil, err
	}

	// The backoff tracks its own attempt counter, so each call gets a
	// fresh instance.
	b := &backoff.Backoff{Min: c.cfg.BaseDelay, Max: c.cfg.MaxDelay, Factor: 2, Jitter: true}

	var last error
	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			delay := b.Duration()
			var ce *model.ClassifiedError
			if errors.As(last, &ce) && ce.RetryAfter > delay {
				delay = ce.RetryAfter
			}
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		series, err := c.provider.Fetch(ctx, symbol, p)
		if err == nil {
			return series, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !retryable(err) {
			return nil, err
		}
		last = err
		c.log.Debug("fetch attempt failed",
			zap.String("provider", c.provider.Name()),
			zap.String("symbol", symbol),
			zap.Int("attempt", attempt),
			zap.Error(err))
	}
	return nil, last
}

// retryable reports whether the failure is worth another attempt against
// the same provider: transport failures, 429, and 5xx. Parameter, parsing,
// empty-result, and other 4xx failures recur identically, so retrying
// them wastes the budget.
func retryable(err error) bool {
	var ce *model.ClassifiedError
	if !errors.As(err, &ce) {
		return false
	}
	switch ce.Kind {
	case model.ErrNetwork, model.ErrRateLimit:
		return true
	case model.ErrAPI:
		return ce.Status >= 500
	}
	return false
}
