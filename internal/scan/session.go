package scan

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"StockScreener/internal/fetch"
	"StockScreener/internal/filter"
	"StockScreener/internal/indicator"
	"StockScreener/internal/model"
	"StockScreener/internal/universe"
)

// State is the lifecycle phase of a session.
type State string

const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateCancelled State = "cancelled"
	StateFailed    State = "failed"
)

// ErrAlreadyStarted is returned when Run is called on a session that has
// left the idle state. Sessions are single-use.
var ErrAlreadyStarted = errors.New("scan session already started")

// ProgressFunc receives progress after each symbol finishes. Deliveries
// are serialized, so the processed count arrives strictly increasing.
type ProgressFunc func(processed, total int, latest *model.ScreenResult)

// Stats aggregates a finished scan.
type Stats struct {
	Total    int
	Matched  int
	Filtered int
	Failed   int
	Elapsed  time.Duration
}

// Result is the outcome of one scan session. Accepted and Rejected are
// sorted by symbol code so two scans over the same inputs line up.
type Result struct {
	SessionID string
	Profile   string
	State     State
	Accepted  []model.ScreenResult
	Rejected  []model.ScreenResult
	Stats     Stats
	StartedAt time.Time
}

// Options configure a session.
type Options struct {
	// Concurrency bounds the worker pool (default 6).
	Concurrency int
	// Params are passed to every fetch.
	Params fetch.Params
	// Indicator overrides the default MACD/MA configuration.
	Indicator indicator.Config
	// GoldenOnly tightens the reversal predicate to completed crosses.
	GoldenOnly bool
	// OnProgress, when set, is invoked after each symbol. Calls are
	// serialized and may call back into the session (e.g. Cancel).
	OnProgress ProgressFunc
}

func (o Options) withDefaults() Options {
	if o.Concurrency <= 0 {
		o.Concurrency = 6
	}
	if o.Indicator == (indicator.Config{}) {
		o.Indicator = indicator.Default()
	}
	return o
}

// Session runs one bulk screening pass over a universe. A session is
// single-use: construct, Run once, inspect the result. Cancel is safe to
// call from any goroutine at any point in the lifecycle.
type Session struct {
	id      string
	fetcher fetch.Fetcher
	profile filter.Profile
	opts    Options
	log     *zap.Logger

	mu      sync.Mutex
	state   State
	cancel  context.CancelFunc
	results []model.ScreenResult
	stats   Stats

	// progressMu spans count assignment and delivery, so observers see the
	// processed count strictly increasing. Held without mu during the
	// callback, which keeps Cancel callable from inside it.
	progressMu sync.Mutex
}

// NewSession prepares a session over the given fetcher and profile.
func NewSession(fetcher fetch.Fetcher, profile filter.Profile, opts Options, log *zap.Logger) *Session {
	if log == nil {
		log = zap.NewNop()
	}
	return &Session{
		id:      uuid.NewString(),
		fetcher: fetcher,
		profile: profile,
		opts:    opts.withDefaults(),
		log:     log,
		state:   StateIdle,
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// State returns the current lifecycle phase.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Cancel stops an in-flight run. Symbols already screened stay in the
// result; in-flight and queued symbols are abandoned.
func (s *Session) Cancel() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Run enumerates the universe and screens every symbol with a bounded
// worker pool. Per-symbol fetch failures are absorbed as data-failure
// results; only universe enumeration faults fail the whole scan.
// Cancellation, via ctx or Cancel, finishes with the partial results of
// the symbols that completed before the signal.
func (s *Session) Run(ctx context.Context, src universe.Source) (*Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return nil, ErrAlreadyStarted
	}
	s.state = StateRunning
	s.cancel = cancel
	s.mu.Unlock()

	started := time.Now()
	symbols, err := src.Symbols(ctx)
	if err != nil {
		s.mu.Lock()
		s.state = StateFailed
		s.mu.Unlock()
		return nil, fmt.Errorf("enumerate universe: %w", err)
	}

	s.log.Info("scan started",
		zap.String("session", s.id),
		zap.String("profile", s.profile.Name),
		zap.Int("symbols", len(symbols)),
		zap.Int("concurrency", s.opts.Concurrency))

	total := len(symbols)
	engine := filter.Engine{Profile: s.profile, GoldenOnly: s.opts.GoldenOnly}
	processed := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Concurrency)
	for _, sym := range symbols {
		sym := sym
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			res, ok := s.screen(gctx, sym, engine)
			if !ok {
				// Cancelled mid-fetch: leave no trace so the partial
				// result holds exactly the symbols that finished.
				return nil
			}

			s.progressMu.Lock()
			s.mu.Lock()
			s.results = append(s.results, res)
			switch {
			case res.DataFailure:
				s.stats.Failed++
			case res.Verdict == model.VerdictAccepted:
				s.stats.Matched++
			default:
				s.stats.Filtered++
			}
			processed++
			done := processed
			s.mu.Unlock()
			if s.opts.OnProgress != nil {
				s.opts.OnProgress(done, total, &res)
			}
			s.progressMu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	if ctx.Err() != nil {
		s.state = StateCancelled
	} else {
		s.state = StateCompleted
	}
	s.stats.Total = total
	s.stats.Elapsed = time.Since(started)

	result := &Result{
		SessionID: s.id,
		Profile:   s.profile.Name,
		State:     s.state,
		Stats:     s.stats,
		StartedAt: started,
	}
	sort.Slice(s.results, func(i, j int) bool { return s.results[i].Symbol < s.results[j].Symbol })
	for _, r := range s.results {
		if r.Verdict == model.VerdictAccepted {
			result.Accepted = append(result.Accepted, r)
		} else {
			result.Rejected = append(result.Rejected, r)
		}
	}

	s.log.Info("scan finished",
		zap.String("session", s.id),
		zap.String("state", string(s.state)),
		zap.Int("matched", s.stats.Matched),
		zap.Int("filtered", s.stats.Filtered),
		zap.Int("failed", s.stats.Failed),
		zap.Duration("elapsed", s.stats.Elapsed))
	return result, nil
}

// screen fetches, computes, and evaluates one symbol. The second return
// is false when the fetch aborted due to cancellation rather than a data
// problem.
func (s *Session) screen(ctx context.Context, sym model.Symbol, engine filter.Engine) (model.ScreenResult, bool) {
	res := model.ScreenResult{Symbol: sym.Code, Name: sym.Name}

	series, err := s.fetcher.Fetch(ctx, sym.Code, s.opts.Params)
	if err != nil {
		if ctx.Err() != nil {
			return res, false
		}
		s.log.Debug("symbol fetch failed",
			zap.String("symbol", sym.Code),
			zap.Error(err))
		res.Verdict = model.VerdictRejected
		res.Reason = failureReason(err)
		res.DataFailure = true
		return res, true
	}

	frame, err := indicator.Compute(series, s.opts.Indicator)
	if err != nil {
		res.Verdict = model.VerdictRejected
		res.Reason = failureReason(err)
		res.DataFailure = true
		return res, true
	}

	eval := engine.Evaluate(frame)
	res.Verdict = eval.Verdict
	res.Reason = eval.Reason
	res.Snapshot = eval.Snapshot
	return res, true
}

// failureReason condenses a fetch or indicator error into a stable reason
// label for the result row.
func failureReason(err error) string {
	var fe *fetch.FailoverError
	if errors.As(err, &fe) {
		return "all_providers_failed"
	}
	if kind := model.KindOf(err); kind != "" {
		return string(kind)
	}
	return "fetch_error"
}
