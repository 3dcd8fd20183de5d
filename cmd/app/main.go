package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fxlink/internal/app"
	"fxlink/internal/domain"
	"fxlink/internal/engine"
	"fxlink/internal/event"
	"fxlink/internal/indicator"
	"fxlink/internal/infra"
	"fxlink/internal/market"

	"github.com/joho/godotenv"

	_ "net/http/pprof" // For pprof profiling
)

func main() {
	// 1. Pprof Server (for performance profiling)
	go func() {
		// Localhost only for security
		slog.Info("🕵️ Pprof server started on localhost:6060")
		if err := http.ListenAndServe("localhost:6060", nil); err != nil {
			slog.Error("Pprof server failed", slog.Any("error", err))
		}
	}()

	// .env is optional; deployments usually set the environment directly
	godotenv.Load()

	// 2. System Bootstrapping
	bootstrap := app.NewBootstrap()
	if err := bootstrap.Initialize(); err != nil {
		slog.Error("❌ Bootstrapping failed", slog.Any("error", err))
		os.Exit(1)
	}
	cfg := bootstrap.Config

	// 3. Graceful Shutdown Context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 4. Sequencer (the single consumer of all events)
	seq := engine.NewSequencer(1024, bootstrap.Storage, engine.QualityConfig{
		MaxSpreadPoints: cfg.Watch.MaxSpreadPoints,
		StaleAfter:      time.Duration(cfg.Watch.StaleAfterSec) * time.Second,
		MaxFailStreak:   cfg.Watch.MaxFailStreak,
	})
	emitter := event.NewEmitter(seq.Inbox())

	// 5. Terminal provider (sim walk or live bridge)
	provider, err := app.NewProvider(cfg, emitter)
	if err != nil {
		slog.Error("❌ Terminal setup failed", slog.Any("error", err))
		os.Exit(1)
	}

	tf := domain.TimeframeM1
	if cfg.Watch.Timeframe != "" {
		tf, _ = domain.ParseTimeframe(cfg.Watch.Timeframe)
	}

	// 6. Watched symbols and their indicators
	symbols := make(map[string]*market.SymbolInfo, len(cfg.Terminal.Symbols))
	for _, symbol := range cfg.Terminal.Symbols {
		info := market.NewSymbolInfo(provider, symbol, cfg.Watch.HistoryLimit, nil)
		symbols[symbol] = info
		seq.Watch(info)

		ao := indicator.NewAwesomeOscillator(provider, symbol, tf, nil)
		stoch := indicator.NewStochastic(provider, symbol, tf, cfg.Watch.SignalPeriod, nil)
		seq.Subscribe(app.NewIndicatorProbe(symbol, ao, stoch))
	}
	slog.Info("✅ Watching symbols", slog.Int("count", len(symbols)), slog.String("timeframe", tf.String()))

	// 7. Preload tick history before the hotpath starts consuming
	bootstrap.WarmStart(ctx, symbols)

	// 8. Periodic snapshot timer
	if cfg.Watch.SnapshotIntervalMS > 0 {
		go func() {
			ticker := time.NewTicker(time.Duration(cfg.Watch.SnapshotIntervalMS) * time.Millisecond)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					emitter.Emit(ctx, &event.TimerEvent{})
				}
			}
		}()
	}

	// Start Sequencer in its own goroutine (The Hotpath Loop)
	go seq.Run(ctx)
	slog.InfoContext(ctx, "✅ Sequencer (Hotpath) started")

	// 9. Connect the terminal feed
	if err := provider.Connect(ctx); err != nil {
		slog.Error("Failed to connect terminal", slog.Any("error", err))
	}
	defer provider.Disconnect()

	// 10. Instrument metadata refresher
	refresher := infra.NewInstrumentRefresher(provider, bootstrap.Storage, cfg.Terminal.Symbols, cfg.Watch.RefreshIntervalSec, nil)
	if err := refresher.Start(ctx); err != nil {
		slog.Error("Failed to start instrument refresher", slog.Any("error", err))
	}
	defer refresher.Stop()

	slog.InfoContext(ctx, "✨ FXLink fully operational. Press Ctrl+C to exit.",
		slog.String("mode", cfg.Terminal.Mode))

	// Wait for shutdown signal
	<-ctx.Done()

	slog.Info("👋 Shutting down gracefully...")

	snap := infra.GlobalMetrics.Snapshot()
	slog.Info("Final session metrics",
		slog.Uint64("events", snap.EventsProcessed),
		slog.Uint64("ticks_fetched", snap.TicksFetched),
		slog.Uint64("fetch_failures", snap.FetchFailures),
		slog.Uint64("stale_serves", snap.StaleServes),
		slog.Uint64("indicator_reads", snap.IndicatorReads),
		slog.Uint64("history_saves", snap.HistorySaves),
		slog.Uint64("archive_writes", snap.ArchiveWrites),
		slog.Uint64("quality_alerts", snap.QualityAlerts))
}
