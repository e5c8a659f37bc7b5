package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mwmardis/ListingIQ/config"
	"github.com/mwmardis/ListingIQ/internal/adapters/notify"
	"github.com/mwmardis/ListingIQ/internal/adapters/sources"
	"github.com/mwmardis/ListingIQ/internal/adapters/storage"
	"github.com/mwmardis/ListingIQ/internal/application/alert"
	"github.com/mwmardis/ListingIQ/internal/application/scanner"
	"github.com/mwmardis/ListingIQ/internal/application/tracker"
	"github.com/mwmardis/ListingIQ/internal/domain/strategy"
	"github.com/mwmardis/ListingIQ/internal/ports"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	once := flag.Bool("once", false, "run one scan cycle and exit")
	dryRun := flag.Bool("dry-run", false, "in-memory storage + fixture source if configured")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}

	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	setupLogger(cfg.Log)
	log := slog.Default()

	slog.Info("listingiq starting",
		"config", *configPath,
		"interval", cfg.ScanInterval(),
		"region", cfg.Search.Region,
		"dry_run", *dryRun,
		"once", *once,
	)

	dsn := cfg.Storage.DSN
	if *dryRun {
		dsn = ":memory:"
	}
	repo, err := storage.NewSQLiteRepository(dsn, cfg.Storage.Retention)
	if err != nil {
		slog.Error("failed to open storage", "err", err, "dsn", dsn)
		os.Exit(1)
	}
	defer repo.Close()

	srcs := buildSources(cfg, log)
	if len(srcs) == 0 {
		slog.Error("no sources configured")
		os.Exit(1)
	}

	channels := []ports.Channel{notify.NewConsole()}
	if len(cfg.Alerts.WebhookURLs) > 0 {
		channels = append(channels, notify.NewWebhook(cfg.Alerts.WebhookURLs))
	}
	dispatcher := alert.NewDispatcher(channels, log)
	defer dispatcher.Stop()

	analyzer := scanner.NewAnalyzer([]strategy.Strategy{
		strategy.NewCashFlow(cfg.Strategies.CashFlow),
		strategy.NewBRRR(cfg.Strategies.BRRR, cfg.Strategies.CashFlow),
		strategy.NewFlip(cfg.Strategies.Flip),
	}, strategy.NewOfferCalculator(cfg.Offer), log)

	s := scanner.New(
		scanner.Config{
			ScanInterval:    cfg.ScanInterval(),
			Filter:          cfg.Search,
			AnalysisWorkers: cfg.Scanner.AnalysisWorkers,
			Once:            *once,
		},
		srcs,
		repo,
		tracker.New(repo, log),
		alert.NewGate(cfg.Alerts.Gate),
		dispatcher,
		analyzer,
		log,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := s.Run(ctx); err != nil {
		slog.Error("scanner exited with error", "err", err)
		os.Exit(1)
	}

	slog.Info("listingiq stopped cleanly")
}

// buildSources arma los adapters activos. Con fixture_path configurado la
// fixture reemplaza a las fuentes de red.
func buildSources(cfg *config.Config, log *slog.Logger) []ports.SourceAdapter {
	if cfg.Sources.FixturePath != "" {
		f, err := sources.NewFixture(cfg.Sources.FixturePath)
		if err != nil {
			slog.Error("failed to load fixture", "err", err, "path", cfg.Sources.FixturePath)
			os.Exit(1)
		}
		return []ports.SourceAdapter{f}
	}

	var srcs []ports.SourceAdapter
	if cfg.Sources.Redfin.Enabled {
		srcs = append(srcs, sources.NewRedfin(cfg.Sources.Redfin.Base, log))
	}
	return srcs
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
