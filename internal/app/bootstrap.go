package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"fxlink/internal/domain"
	"fxlink/internal/event"
	"fxlink/internal/infra"
	"fxlink/internal/infra/bridge"
	"fxlink/internal/infra/sim"
	"fxlink/internal/infra/storage"
	"fxlink/internal/market"
)

// Bootstrap orchestrates the application startup sequence
type Bootstrap struct {
	Config  *infra.Config
	Storage *storage.Storage
}

// NewBootstrap creates a new Bootstrap instance
func NewBootstrap() *Bootstrap {
	return &Bootstrap{}
}

// Initialize performs core system initialization (config, logger, DB)
func (b *Bootstrap) Initialize() error {
	slog.Info("🚀 Bootstrapping FXLink...")

	// 1. Load Config
	cfg, err := infra.LoadConfig("configs/config.yaml")
	if err != nil {
		return err // Let main handle the error
	}
	b.Config = cfg

	// 2. Setup Logger
	logger := infra.NewLogger(cfg)
	slog.SetDefault(logger)

	// 3. Initialize Storage (DB)
	if cfg.Storage.Enabled {
		store, err := storage.NewStorage(cfg.Storage.Path)
		if err != nil {
			return err
		}
		b.Storage = store
		slog.Info("✅ Tick archive initialized", slog.String("path", cfg.Storage.Path))
	}

	// 4. Warm the event pool
	event.Warmup()
	slog.Info("✅ Event pool warmed")

	return nil
}

// NewProvider builds the terminal provider selected by the config.
func NewProvider(cfg *infra.Config, em *event.Emitter) (domain.TerminalProvider, error) {
	switch cfg.Terminal.Mode {
	case "sim":
		instruments := make([]sim.InstrumentConfig, 0, len(cfg.Terminal.Sim.Instruments))
		for _, ic := range cfg.Terminal.Sim.Instruments {
			instruments = append(instruments, sim.InstrumentConfig{
				Spec: domain.InstrumentSpec{
					Symbol:            ic.Symbol,
					Digits:            ic.Digits,
					SpreadPoints:      ic.SpreadPoints,
					ContractSize:      ic.ContractSize,
					TickValue:         ic.TickValue,
					TickValueProfit:   ic.TickValueProfit,
					TickValueLoss:     ic.TickValueLoss,
					VolumeMin:         ic.VolumeMin,
					VolumeMax:         ic.VolumeMax,
					VolumeStep:        ic.VolumeStep,
					MarginInitial:     ic.MarginInitial,
					MarginMaintenance: ic.MarginMaintenance,
					StopsLevel:        ic.StopsLevel,
					FreezeLevel:       ic.FreezeLevel,
				},
				BasePrice:  ic.BasePrice,
				Volatility: ic.Volatility,
			})
		}
		t := sim.NewTerminal(instruments,
			time.Duration(cfg.Terminal.Sim.TickIntervalMS)*time.Millisecond,
			cfg.Terminal.Sim.Seed, em)
		return t, nil

	case "bridge":
		return bridge.NewClient(bridge.Config{
			URL:          cfg.Terminal.Bridge.WSURL,
			AuthToken:    cfg.Terminal.Bridge.AuthToken,
			Symbols:      cfg.Terminal.Symbols,
			ReqTimeout:   time.Duration(cfg.Terminal.Bridge.ReqTimeoutMS) * time.Millisecond,
			PingInterval: time.Duration(cfg.Terminal.Bridge.PingInterval) * time.Second,
			ReadTimeout:  time.Duration(cfg.Terminal.Bridge.ReadTimeout) * time.Second,
		}, em), nil

	default:
		return nil, fmt.Errorf("unknown terminal mode: %q", cfg.Terminal.Mode)
	}
}

// WarmStart replays recently archived ticks into the in-memory tick
// histories so history depth is available right away. SaveTick also
// primes the last-quote cache with the newest archived tick.
func (b *Bootstrap) WarmStart(ctx context.Context, symbols map[string]*market.SymbolInfo) {
	if b.Storage == nil || b.Config.Storage.RecentPreload <= 0 {
		return
	}
	slog.Info("🔄 Preloading tick history...")

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, 5) // Limit concurrent DB reads

	for name, info := range symbols {
		wg.Add(1)
		go func(sym string, si *market.SymbolInfo) {
			defer wg.Done()
			select {
			case <-ctx.Done():
				return
			case semaphore <- struct{}{}: // Acquire
			}
			defer func() { <-semaphore }() // Release

			ticks, err := b.Storage.RecentTicks(sym, b.Config.Storage.RecentPreload)
			if err != nil {
				slog.Error("Failed to preload ticks", slog.String("symbol", sym), slog.Any("error", err))
				return
			}

			saved := 0
			for _, t := range ticks {
				if si.SaveTick(t) {
					saved++
				}
			}
			if saved > 0 {
				slog.Info("Tick history preloaded", slog.String("symbol", sym), slog.Int("ticks", saved))
			}
		}(name, info)
	}

	wg.Wait()
	slog.Info("✨ Tick history preload completed")
}
