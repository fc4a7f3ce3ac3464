package fetch

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"StockScreener/internal/model"
)

// Failover tries providers strictly in priority order, delegating each to
// its retry client and promoting the next provider only on failures that
// could plausibly be provider-specific.
type Failover struct {
	clients []*RetryClient
	log     *zap.Logger
}

// NewFailover wraps each provider in a retry client sharing one budget.
// Provider order is the failover priority.
func NewFailover(providers []Provider, cfg RetryConfig, log *zap.Logger) *Failover {
	if log == nil {
		log = zap.NewNop()
	}
	clients := make([]*RetryClient, len(providers))
	for i, p := range providers {
		clients[i] = NewRetryClient(p, cfg, log)
	}
	return &Failover{clients: clients, log: log}
}

// Fetch walks the provider list. Network, rate-limit, API, and no-data
// failures move on to the next provider. Invalid parameters recur
// identically everywhere, and parsing failures signal a structural
// incompatibility that failing over would only mask, so both surface
// immediately. When every provider is exhausted the composite error
// preserves each provider's final failure in priority order.
func (f *Failover) Fetch(ctx context.Context, symbol string, p Params) (*model.PriceSeries, error) {
	var attempts []*model.ClassifiedError
	for _, client := range f.clients {
		series, err := client.Fetch(ctx, symbol, p)
		if err == nil {
			return series, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		var ce *model.ClassifiedError
		if !errors.As(err, &ce) {
			return nil, err
		}
		switch ce.Kind {
		case model.ErrInvalidParameter, model.ErrParse:
			return nil, ce
		}
		attempts = append(attempts, ce)
		f.log.Warn("provider exhausted, failing over",
			zap.String("provider", ce.Provider),
			zap.String("symbol", symbol),
			zap.String("kind", string(ce.Kind)))
	}
	return nil, &FailoverError{Symbol: symbol, Attempts: attempts}
}

// FailoverError reports that every provider was exhausted, with one final
// classified error per provider in priority order.
type FailoverError struct {
	Symbol   string
	Attempts []*model.ClassifiedError
}

func (e *FailoverError) Error() string {
	parts := make([]string, len(e.Attempts))
	for i, a := range e.Attempts {
		parts[i] = a.Error()
	}
	return fmt.Sprintf("all providers failed for %s: %s", e.Symbol, strings.Join(parts, "; "))
}

// Unwrap exposes the per-provider errors to errors.Is/As.
func (e *FailoverError) Unwrap() []error {
	errs := make([]error, len(e.Attempts))
	for i, a := range e.Attempts {
		errs[i] = a
	}
	return errs
}
