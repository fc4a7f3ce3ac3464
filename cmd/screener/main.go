package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"StockScreener/internal/config"
	"StockScreener/internal/fetch"
	"StockScreener/internal/filter"
	"StockScreener/internal/model"
	"StockScreener/internal/recorder"
	"StockScreener/internal/report"
	"StockScreener/internal/scan"
	"StockScreener/internal/scheduler"
	"StockScreener/internal/universe"
	"StockScreener/pkg/logger"
)

func main() {
	once := flag.Bool("once", false, "run a single scan and exit instead of scheduling")
	flag.Parse()

	_ = godotenv.Load()

	// Load config
	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "config validation: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	log.Info("screener starting", zap.String("config", cfgPath))

	// Providers in failover priority order
	providers := make([]fetch.Provider, 0, len(cfg.Providers))
	for _, pc := range cfg.Providers {
		p, err := fetch.NewProvider(fetch.Endpoint{
			Name:    pc.Name,
			BaseURL: pc.BaseURL,
			Timeout: pc.Timeout,
			Proxy:   cfg.Proxy,
		})
		if err != nil {
			log.Fatal("init provider", zap.String("provider", pc.Name), zap.Error(err))
		}
		providers = append(providers, p)
		log.Info("provider registered", zap.String("provider", p.Name()))
	}
	fetcher := fetch.NewFailover(providers, fetch.RetryConfig{
		MaxAttempts: cfg.Retry.MaxAttempts,
		BaseDelay:   cfg.Retry.BaseDelay,
		MaxDelay:    cfg.Retry.MaxDelay,
	}, log)

	// Universe
	source, err := buildUniverse(cfg)
	if err != nil {
		log.Fatal("init universe", zap.Error(err))
	}

	// Recorder
	var rec recorder.Recorder
	if cfg.Database.SQLitePath != "" {
		sr, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath, log)
		if err != nil {
			log.Warn("init sqlite recorder failed, using noop", zap.Error(err))
			rec = recorder.NewNoopRecorder()
		} else {
			rec = sr
			defer sr.Close()
		}
	} else {
		rec = recorder.NewNoopRecorder()
	}

	period, err := model.ParsePeriod(cfg.Scan.Period)
	if err != nil {
		log.Fatal("parse period", zap.Error(err))
	}
	profile, err := cfg.Profile()
	if err != nil {
		log.Fatal("resolve profile", zap.Error(err))
	}
	now := time.Now()
	opts := scan.Options{
		Concurrency: cfg.Scan.Concurrency,
		Params: fetch.Params{
			Period: period,
			Start:  now.AddDate(-cfg.Scan.LookbackYears, 0, 0),
			End:    now,
		},
		Indicator:  cfg.Indicator,
		GoldenOnly: cfg.Scan.GoldenOnly,
	}

	// Context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *once {
		runOnce(ctx, fetcher, source, profile, opts, cfg.Scan.TopN, rec, log)
		return
	}

	sched := scheduler.New(ctx, fetcher, source, profile, opts, cfg.Scan.TopN, rec, log)
	if err := sched.Register(cfg.Schedule.ScanCron); err != nil {
		log.Fatal("register cron task", zap.Error(err))
	}
	sched.Start()
	defer sched.Stop()

	if cfg.Schedule.RunOnStart || os.Getenv("RUN_ON_START") == "true" {
		log.Info("run_on_start enabled, executing scan now")
		go sched.RunNow()
	}

	log.Info("screener is running", zap.String("cron", cfg.Schedule.ScanCron))
	<-ctx.Done()
	log.Info("shutdown signal received, stopping")
}

func runOnce(ctx context.Context, fetcher fetch.Fetcher, source universe.Source, profile filter.Profile, opts scan.Options, topN int, rec recorder.Recorder, log *zap.Logger) {
	opts.OnProgress = func(processed, total int, latest *model.ScreenResult) {
		if processed%50 == 0 || processed == total {
			log.Info("scan progress", zap.Int("processed", processed), zap.Int("total", total))
		}
	}

	session := scan.NewSession(fetcher, profile, opts, log)
	res, err := session.Run(ctx, source)
	if err != nil {
		log.Fatal("scan failed", zap.Error(err))
	}

	fmt.Println(report.FormatScanReport(res, topN))
	if failures := report.FormatFailures(res); failures != "" {
		fmt.Println(failures)
	}
	if err := rec.RecordScan(res); err != nil {
		log.Error("record scan", zap.Error(err))
	}
}

func buildUniverse(cfg *config.Config) (universe.Source, error) {
	var src universe.Source
	if len(cfg.Universe.Symbols) > 0 {
		static := make(universe.StaticSource, 0, len(cfg.Universe.Symbols))
		for _, code := range cfg.Universe.Symbols {
			static = append(static, model.Symbol{Code: code})
		}
		src = static
	} else {
		src = universe.FileSource{Path: cfg.Universe.File}
	}
	return universe.NewFiltered(src, universe.Options{
		Prefixes:    cfg.Universe.Prefixes,
		ExcludeName: cfg.Universe.ExcludeName,
		SampleRatio: cfg.Universe.SampleRatio,
	})
}
