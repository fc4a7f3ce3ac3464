package scan

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"StockScreener/internal/fetch"
	"StockScreener/internal/filter"
	"StockScreener/internal/model"
	"StockScreener/internal/universe"
)

// fakeFetcher serves a synthetic series for every symbol, erring for the
// symbols listed in fail.
type fakeFetcher struct {
	fail map[string]error
}

func (f *fakeFetcher) Fetch(ctx context.Context, symbol string, p fetch.Params) (*model.PriceSeries, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err, ok := f.fail[symbol]; ok {
		return nil, err
	}
	return fetch.GenerateSeries(symbol, p.Period, 50, 120), nil
}

func codes(n int) universe.StaticSource {
	src := make(universe.StaticSource, n)
	for i := range src {
		src[i] = model.Symbol{Code: fmt.Sprintf("60%04d", i)}
	}
	return src
}

func defaultProfile(t *testing.T) filter.Profile {
	t.Helper()
	p, err := filter.ByName(filter.ProfileDefault)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func weeklyOpts() Options {
	return Options{Concurrency: 4, Params: fetch.Params{Period: model.PeriodWeekly}}
}

func TestRun_CompletesAndSorts(t *testing.T) {
	s := NewSession(&fakeFetcher{}, defaultProfile(t), weeklyOpts(), nil)
	res, err := s.Run(context.Background(), codes(50))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.State != StateCompleted {
		t.Errorf("state = %s, want completed", res.State)
	}
	if got := res.Stats.Matched + res.Stats.Filtered + res.Stats.Failed; got != 50 {
		t.Errorf("accounted symbols = %d, want 50", got)
	}
	if res.Stats.Total != 50 {
		t.Errorf("total = %d, want 50", res.Stats.Total)
	}

	all := append(append([]model.ScreenResult{}, res.Accepted...), res.Rejected...)
	if len(all) != 50 {
		t.Fatalf("results = %d, want 50", len(all))
	}
	within := func(rs []model.ScreenResult) bool {
		return sort.SliceIsSorted(rs, func(i, j int) bool { return rs[i].Symbol < rs[j].Symbol })
	}
	if !within(res.Accepted) || !within(res.Rejected) {
		t.Error("results must be sorted by symbol")
	}
}

func TestRun_DeterministicAcrossRuns(t *testing.T) {
	run := func() *Result {
		s := NewSession(&fakeFetcher{}, defaultProfile(t), weeklyOpts(), nil)
		res, err := s.Run(context.Background(), codes(30))
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		return res
	}
	a, b := run(), run()
	if len(a.Accepted) != len(b.Accepted) || len(a.Rejected) != len(b.Rejected) {
		t.Fatal("two runs over identical inputs diverged")
	}
	for i := range a.Rejected {
		if a.Rejected[i].Symbol != b.Rejected[i].Symbol || a.Rejected[i].Reason != b.Rejected[i].Reason {
			t.Fatalf("row %d diverged: %+v vs %+v", i, a.Rejected[i], b.Rejected[i])
		}
	}
}

func TestRun_AbsorbsSymbolFailures(t *testing.T) {
	fail := map[string]error{
		"600001": model.NewError(model.ErrNetwork, "p", errors.New("down")),
		"600003": model.NewError(model.ErrNoData, "p", errors.New("empty")),
	}
	s := NewSession(&fakeFetcher{fail: fail}, defaultProfile(t), weeklyOpts(), nil)
	res, err := s.Run(context.Background(), codes(10))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.State != StateCompleted {
		t.Errorf("state = %s: per-symbol failures must not fail the scan", res.State)
	}
	if res.Stats.Failed != 2 {
		t.Errorf("failed = %d, want 2", res.Stats.Failed)
	}

	var failures int
	for _, r := range res.Rejected {
		if r.DataFailure {
			failures++
			if r.Reason == "" {
				t.Errorf("data failure for %s has no reason", r.Symbol)
			}
		}
	}
	if failures != 2 {
		t.Errorf("data-failure rows = %d, want 2", failures)
	}
}

func TestRun_ProgressCoversEverySymbol(t *testing.T) {
	var mu sync.Mutex
	seen := map[int]bool{}

	opts := weeklyOpts()
	opts.OnProgress = func(processed, total int, latest *model.ScreenResult) {
		mu.Lock()
		defer mu.Unlock()
		if total != 20 {
			t.Errorf("total = %d, want 20", total)
		}
		if latest == nil {
			t.Error("latest is nil for a completed symbol")
		}
		seen[processed] = true
	}

	s := NewSession(&fakeFetcher{}, defaultProfile(t), opts, nil)
	if _, err := s.Run(context.Background(), codes(20)); err != nil {
		t.Fatalf("Run: %v", err)
	}
	for i := 1; i <= 20; i++ {
		if !seen[i] {
			t.Errorf("no progress callback observed count %d", i)
		}
	}
}

// staggeredFetcher finishes symbols at deliberately uneven speeds so
// workers race to report their counts.
type staggeredFetcher struct{}

func (staggeredFetcher) Fetch(ctx context.Context, symbol string, p fetch.Params) (*model.PriceSeries, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	time.Sleep(time.Duration(symbol[len(symbol)-1]%5) * time.Millisecond)
	return fetch.GenerateSeries(symbol, p.Period, 50, 120), nil
}

func TestRun_ProgressArrivesInOrder(t *testing.T) {
	const total = 40
	var order []int

	opts := weeklyOpts()
	opts.OnProgress = func(processed, _ int, _ *model.ScreenResult) {
		order = append(order, processed)
	}

	s := NewSession(staggeredFetcher{}, defaultProfile(t), opts, nil)
	if _, err := s.Run(context.Background(), codes(total)); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(order) != total {
		t.Fatalf("deliveries = %d, want %d", len(order), total)
	}
	for i, got := range order {
		if got != i+1 {
			t.Fatalf("delivery %d carried count %d; counts must arrive strictly increasing (got %v)", i, got, order)
		}
	}
}

func TestRun_CancelMidwayKeepsPartialResults(t *testing.T) {
	const total = 200
	var s *Session

	opts := weeklyOpts()
	opts.OnProgress = func(processed, _ int, _ *model.ScreenResult) {
		if processed == total/2 {
			s.Cancel()
		}
	}
	s = NewSession(&fakeFetcher{}, defaultProfile(t), opts, nil)

	res, err := s.Run(context.Background(), codes(total))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.State != StateCancelled {
		t.Fatalf("state = %s, want cancelled", res.State)
	}

	got := len(res.Accepted) + len(res.Rejected)
	if got < total/2 {
		t.Errorf("results = %d, want at least the %d completed before cancel", got, total/2)
	}
	// In-flight workers may finish, but queued ones must not start.
	if got > total/2+opts.Concurrency {
		t.Errorf("results = %d, want no more than completed plus in-flight", got)
	}
	if res.Stats.Failed != 0 {
		t.Errorf("failed = %d: abandoned symbols must leave no failure rows", res.Stats.Failed)
	}
}

func TestRun_SecondRunRejected(t *testing.T) {
	s := NewSession(&fakeFetcher{}, defaultProfile(t), weeklyOpts(), nil)
	if _, err := s.Run(context.Background(), codes(5)); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	if _, err := s.Run(context.Background(), codes(5)); !errors.Is(err, ErrAlreadyStarted) {
		t.Fatalf("second Run err = %v, want ErrAlreadyStarted", err)
	}
	if s.State() != StateCompleted {
		t.Errorf("state = %s, a rejected re-run must not disturb the finished state", s.State())
	}
}

func TestRun_EnumerationFailureFailsScan(t *testing.T) {
	s := NewSession(&fakeFetcher{}, defaultProfile(t), weeklyOpts(), nil)
	_, err := s.Run(context.Background(), universe.StaticSource{})
	if err == nil {
		t.Fatal("expected error when the universe cannot be enumerated")
	}
	if s.State() != StateFailed {
		t.Errorf("state = %s, want failed", s.State())
	}
}

func TestSessionIDsAreUnique(t *testing.T) {
	a := NewSession(&fakeFetcher{}, defaultProfile(t), weeklyOpts(), nil)
	b := NewSession(&fakeFetcher{}, defaultProfile(t), weeklyOpts(), nil)
	if a.ID() == b.ID() {
		t.Error("two sessions share an ID")
	}
	if a.State() != StateIdle {
		t.Errorf("new session state = %s, want idle", a.State())
	}
}
