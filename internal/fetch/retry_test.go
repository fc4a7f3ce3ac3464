package fetch

import (
	"context"
	"errors"
	"testing"
	"time"

	"StockScreener/internal/model"
)

// scriptedProvider returns its scripted errors in order, then succeeds.
type scriptedProvider struct {
	name   string
	script []error
	calls  int
	series *model.PriceSeries
}

func (s *scriptedProvider) Name() string { return s.name }

func (s *scriptedProvider) Fetch(_ context.Context, symbol string, p Params) (*model.PriceSeries, error) {
	s.calls++
	if s.calls <= len(s.script) {
		return nil, s.script[s.calls-1]
	}
	if s.series != nil {
		return s.series, nil
	}
	return GenerateSeries(symbol, p.Period, 50, 60), nil
}

func fastRetry(attempts int) RetryConfig {
	return RetryConfig{MaxAttempts: attempts, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
}

func weeklyParams() Params { return Params{Period: model.PeriodWeekly} }

func netErr(provider string) error {
	return model.NewError(model.ErrNetwork, provider, errors.New("connection reset"))
}

func TestRetry_SucceedsAfterTransientFailures(t *testing.T) {
	p := &scriptedProvider{name: "flaky", script: []error{netErr("flaky"), netErr("flaky")}}
	c := NewRetryClient(p, fastRetry(5), nil)

	series, err := c.Fetch(context.Background(), "600000", weeklyParams())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if series == nil || series.Len() == 0 {
		t.Fatal("expected a non-empty series")
	}
	if p.calls != 3 {
		t.Errorf("calls = %d, want 3 (two failures, one success)", p.calls)
	}
}

func TestRetry_ExhaustsBudget(t *testing.T) {
	p := &scriptedProvider{name: "down", script: []error{
		netErr("down"), netErr("down"), netErr("down"), netErr("down"), netErr("down"),
	}}
	c := NewRetryClient(p, fastRetry(3), nil)

	_, err := c.Fetch(context.Background(), "600000", weeklyParams())
	if err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
	if p.calls != 3 {
		t.Errorf("calls = %d, want exactly MaxAttempts", p.calls)
	}
	if kind := model.KindOf(err); kind != model.ErrNetwork {
		t.Errorf("error kind = %q, want the last failure's kind", kind)
	}
}

func TestRetry_NonRetryableSurfacesImmediately(t *testing.T) {
	apiErr := &model.ClassifiedError{Kind: model.ErrAPI, Provider: "p", Status: 404, Err: errors.New("status 404")}
	p := &scriptedProvider{name: "p", script: []error{apiErr, apiErr}}
	c := NewRetryClient(p, fastRetry(5), nil)

	_, err := c.Fetch(context.Background(), "600000", weeklyParams())
	if err == nil {
		t.Fatal("expected error")
	}
	if p.calls != 1 {
		t.Errorf("calls = %d, want 1: a 404 must not be retried", p.calls)
	}
}

func TestRetry_ServerErrorIsRetried(t *testing.T) {
	serverErr := &model.ClassifiedError{Kind: model.ErrAPI, Provider: "p", Status: 503, Err: errors.New("status 503")}
	p := &scriptedProvider{name: "p", script: []error{serverErr}}
	c := NewRetryClient(p, fastRetry(3), nil)

	if _, err := c.Fetch(context.Background(), "600000", weeklyParams()); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if p.calls != 2 {
		t.Errorf("calls = %d, want 2", p.calls)
	}
}

func TestRetry_HonorsRetryAfter(t *testing.T) {
	rateErr := &model.ClassifiedError{
		Kind: model.ErrRateLimit, Provider: "p", Status: 429,
		RetryAfter: 30 * time.Millisecond, Err: errors.New("status 429"),
	}
	p := &scriptedProvider{name: "p", script: []error{rateErr}}
	c := NewRetryClient(p, fastRetry(3), nil)

	start := time.Now()
	if _, err := c.Fetch(context.Background(), "600000", weeklyParams()); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
		t.Errorf("resumed after %v, want at least the advertised Retry-After", elapsed)
	}
}

func TestRetry_InvalidParamsRejectedBeforeFetch(t *testing.T) {
	p := &scriptedProvider{name: "p"}
	c := NewRetryClient(p, fastRetry(3), nil)

	_, err := c.Fetch(context.Background(), "", weeklyParams())
	if kind := model.KindOf(err); kind != model.ErrInvalidParameter {
		t.Fatalf("error kind = %q, want %q", kind, model.ErrInvalidParameter)
	}
	if p.calls != 0 {
		t.Errorf("calls = %d, want 0: validation happens before any request", p.calls)
	}

	_, err = c.Fetch(context.Background(), "600000", Params{Period: "hourly"})
	if kind := model.KindOf(err); kind != model.ErrInvalidParameter {
		t.Fatalf("error kind = %q, want %q for unknown period", kind, model.ErrInvalidParameter)
	}

	now := time.Now()
	_, err = c.Fetch(context.Background(), "600000", Params{Period: model.PeriodWeekly, Start: now, End: now.AddDate(0, 0, -1)})
	if kind := model.KindOf(err); kind != model.ErrInvalidParameter {
		t.Fatalf("error kind = %q, want %q for reversed range", kind, model.ErrInvalidParameter)
	}
}

func TestRetry_CancelledBetweenAttempts(t *testing.T) {
	p := &scriptedProvider{name: "p", script: []error{netErr("p"), netErr("p"), netErr("p")}}
	c := NewRetryClient(p, RetryConfig{MaxAttempts: 5, BaseDelay: 50 * time.Millisecond, MaxDelay: time.Second}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := c.Fetch(ctx, "600000", weeklyParams())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if p.calls > 2 {
		t.Errorf("calls = %d, cancellation should stop the loop", p.calls)
	}
}
