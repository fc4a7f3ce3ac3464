package scheduler

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"StockScreener/internal/fetch"
	"StockScreener/internal/filter"
	"StockScreener/internal/recorder"
	"StockScreener/internal/report"
	"StockScreener/internal/scan"
	"StockScreener/internal/universe"
)

// Scheduler runs scans on a cron schedule. Each trigger builds a fresh
// session, since sessions are single-use.
type Scheduler struct {
	cron     *cron.Cron
	ctx      context.Context
	fetcher  fetch.Fetcher
	source   universe.Source
	profile  filter.Profile
	opts     scan.Options
	topN     int
	recorder recorder.Recorder
	log      *zap.Logger
}

// New creates a Scheduler over the given scan collaborators.
func New(ctx context.Context, fetcher fetch.Fetcher, source universe.Source, profile filter.Profile, opts scan.Options, topN int, rec recorder.Recorder, log *zap.Logger) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Scheduler{
		cron:     cron.New(cron.WithSeconds()),
		ctx:      ctx,
		fetcher:  fetcher,
		source:   source,
		profile:  profile,
		opts:     opts,
		topN:     topN,
		recorder: rec,
		log:      log,
	}
}

// Register adds the scan task under the given cron expression.
func (s *Scheduler) Register(scanCron string) error {
	if _, err := s.cron.AddFunc(scanCron, s.scanTask); err != nil {
		return fmt.Errorf("register scan task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("scheduler started")
}

// Stop stops the cron scheduler gracefully.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	s.log.Info("scheduler stopped")
}

// RunNow executes the scan task immediately (manual trigger / run_on_start).
func (s *Scheduler) RunNow() {
	s.scanTask()
}

func (s *Scheduler) scanTask() {
	session := scan.NewSession(s.fetcher, s.profile, s.opts, s.log)
	res, err := session.Run(s.ctx, s.source)
	if err != nil {
		s.log.Error("scheduled scan failed", zap.Error(err))
		return
	}

	fmt.Println(report.FormatScanReport(res, s.topN))
	if failures := report.FormatFailures(res); failures != "" {
		fmt.Println(failures)
	}

	if err := s.recorder.RecordScan(res); err != nil {
		s.log.Error("record scan", zap.Error(err))
	}
}
