package infra

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"fxlink/internal/domain"
	"fxlink/internal/infra/storage"

	"github.com/shopspring/decimal"
)

// InstrumentRefresher polls instrument metadata from the terminal and
// keeps the persisted copy current. Brokers adjust contract specs
// (spread, stops level, margins) during the session, so a one-time
// fetch at startup goes stale.
type InstrumentRefresher struct {
	provider domain.MarketDataProvider
	store    *storage.Storage // nil disables persistence
	onUpdate func(domain.InstrumentSpec)

	symbols      []string
	specs        map[string]domain.InstrumentSpec
	mu           sync.RWMutex
	pollInterval time.Duration
	cancel       context.CancelFunc
	wg           sync.WaitGroup
}

// NewInstrumentRefresher creates a refresher for the given symbols.
// A non-positive pollIntervalSec falls back to one minute.
func NewInstrumentRefresher(provider domain.MarketDataProvider, store *storage.Storage, symbols []string, pollIntervalSec int, onUpdate func(domain.InstrumentSpec)) *InstrumentRefresher {
	interval := time.Duration(pollIntervalSec) * time.Second
	if pollIntervalSec <= 0 {
		interval = 60 * time.Second
	}
	return &InstrumentRefresher{
		provider:     provider,
		store:        store,
		onUpdate:     onUpdate,
		symbols:      symbols,
		specs:        make(map[string]domain.InstrumentSpec),
		pollInterval: interval,
	}
}

// Start begins polling for metadata updates
func (r *InstrumentRefresher) Start(ctx context.Context) error {
	// Create a cancellable context
	ctx, r.cancel = context.WithCancel(ctx)

	// Fetch immediately on start
	if err := r.refreshAll(ctx); err != nil {
		slog.Warn("Initial instrument refresh failed", slog.Any("error", err))
		// Continue anyway - will retry on next tick
	}

	// Start polling goroutine
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				slog.Error("Instrument refresh panic recovered", slog.Any("panic", rec))
			}
		}()

		ticker := time.NewTicker(r.pollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				slog.Info("Instrument refresh stopped")
				return
			case <-ticker.C:
				if err := r.refreshAll(ctx); err != nil {
					slog.Warn("Instrument refresh failed", slog.Any("error", err))
				}
			}
		}
	}()

	return nil
}

// refreshAll refreshes every watched symbol. Returns the last error so
// a single bad symbol does not block the rest.
func (r *InstrumentRefresher) refreshAll(ctx context.Context) error {
	var lastErr error
	for _, symbol := range r.symbols {
		if err := r.refreshSymbol(ctx, symbol); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// refreshSymbol fetches one symbol's metadata with retry logic
func (r *InstrumentRefresher) refreshSymbol(ctx context.Context, symbol string) error {
	var lastErr error
	for i := 0; i < 3; i++ {
		if i > 0 {
			// Exponential backoff: 1s, 2s
			delay := time.Duration(1<<uint(i-1)) * time.Second
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		err := r.doRefresh(symbol)
		if err == nil {
			return nil
		}
		lastErr = err
		slog.Warn("Instrument refresh attempt failed",
			slog.String("symbol", symbol),
			slog.Int("attempt", i+1),
			slog.Any("error", err))
	}
	return lastErr
}

func (r *InstrumentRefresher) doRefresh(symbol string) error {
	spec, err := r.fetchSpec(symbol)
	if err != nil {
		return err
	}

	r.mu.Lock()
	old, known := r.specs[symbol]
	r.specs[symbol] = spec
	r.mu.Unlock()

	// Notify and persist only on change
	if known && old.Equal(&spec) {
		return nil
	}

	slog.Info("Instrument metadata updated",
		slog.String("symbol", symbol),
		slog.Int("digits", spec.Digits),
		slog.Int64("spread_points", spec.SpreadPoints))

	if r.store != nil {
		if err := r.store.UpsertInstrument(spec); err != nil {
			slog.Warn("Failed to persist instrument metadata",
				slog.String("symbol", symbol), slog.Any("error", err))
		}
	}
	if r.onUpdate != nil {
		r.onUpdate(spec)
	}
	return nil
}

func (r *InstrumentRefresher) fetchSpec(symbol string) (domain.InstrumentSpec, error) {
	spec := domain.InstrumentSpec{Symbol: symbol}

	digits, err := r.provider.FetchInteger(symbol, domain.FieldDigits)
	if err != nil {
		return spec, err
	}
	spec.Digits = int(digits)

	ints := []struct {
		field domain.IntegerField
		dst   *int64
	}{
		{domain.FieldSpread, &spec.SpreadPoints},
		{domain.FieldStopsLevel, &spec.StopsLevel},
		{domain.FieldFreezeLevel, &spec.FreezeLevel},
	}
	for _, f := range ints {
		v, err := r.provider.FetchInteger(symbol, f.field)
		if err != nil {
			return spec, err
		}
		*f.dst = v
	}

	doubles := []struct {
		field domain.DoubleField
		dst   *decimal.Decimal
	}{
		{domain.FieldPointSize, &spec.PointSize},
		{domain.FieldTickSize, &spec.TickSize},
		{domain.FieldTickValue, &spec.TickValue},
		{domain.FieldTickValueProfit, &spec.TickValueProfit},
		{domain.FieldTickValueLoss, &spec.TickValueLoss},
		{domain.FieldContractSize, &spec.ContractSize},
		{domain.FieldVolumeMin, &spec.VolumeMin},
		{domain.FieldVolumeMax, &spec.VolumeMax},
		{domain.FieldVolumeStep, &spec.VolumeStep},
		{domain.FieldMarginInitial, &spec.MarginInitial},
		{domain.FieldMarginMaintenance, &spec.MarginMaintenance},
	}
	for _, f := range doubles {
		v, err := r.provider.FetchDouble(symbol, f.field)
		if err != nil {
			return spec, err
		}
		*f.dst = v
	}

	return spec, nil
}

// Stop stops the polling
func (r *InstrumentRefresher) Stop() {
	if r.cancel != nil {
		r.cancel()
		r.wg.Wait()
	}
}

// GetSpec returns the most recently fetched metadata for a symbol
func (r *InstrumentRefresher) GetSpec(symbol string) (domain.InstrumentSpec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	spec, ok := r.specs[symbol]
	return spec, ok
}
