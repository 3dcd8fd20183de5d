package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"fxlink/internal/domain"
	"fxlink/internal/event"
	"fxlink/internal/infra"
	"fxlink/internal/infra/storage"
	"fxlink/internal/market"
)

// QuoteObserver is notified after a quote event has been handled:
// the fresh tick pulled, recorded and archived. Runs on the sequencer
// goroutine, so implementations may read symbol state freely but must
// return quickly.
type QuoteObserver interface {
	OnQuote(sym *market.SymbolInfo, tick domain.Tick)
}

// QualityConfig bounds what a healthy quote stream looks like. A zero
// field disables that check.
type QualityConfig struct {
	MaxSpreadPoints int64
	StaleAfter      time.Duration
	MaxFailStreak   int
}

// Sequencer is the core single-threaded event processor. Every quote
// doorbell and timer goes through its inbox in sequence order; all
// symbol state is owned by the Run goroutine.
type Sequencer struct {
	inbox   chan event.Event
	symbols map[string]*market.SymbolInfo
	nextSeq uint64
	store   *storage.Storage // nil disables archival

	observers []QuoteObserver
	checks    QualityConfig

	mu sync.RWMutex // Used only for external reads (e.g. setup, tests)
}

// NewSequencer creates a new sequencer instance.
func NewSequencer(inboxSize int, store *storage.Storage, checks QualityConfig) *Sequencer {
	return &Sequencer{
		inbox:   make(chan event.Event, inboxSize),
		symbols: make(map[string]*market.SymbolInfo),
		nextSeq: 1,
		store:   store,
		checks:  checks,
	}
}

// Watch registers a symbol before Run starts. Quote events for
// unwatched symbols are dropped with a warning.
func (s *Sequencer) Watch(sym *market.SymbolInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.symbols[sym.Symbol()] = sym
}

// Subscribe adds an observer. Call before Run starts.
func (s *Sequencer) Subscribe(obs QuoteObserver) {
	s.observers = append(s.observers, obs)
}

// Symbol returns a watched symbol. After Run starts the returned
// facade belongs to the sequencer goroutine.
func (s *Sequencer) Symbol(name string) (*market.SymbolInfo, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sym, ok := s.symbols[name]
	return sym, ok
}

// Inbox returns the event channel. The emitter delivers events here.
func (s *Sequencer) Inbox() chan<- event.Event {
	return s.inbox
}

// Run starts the main event loop. This MUST be run in a single goroutine.
func (s *Sequencer) Run(ctx context.Context) {
	slog.Info("Sequencer started (Single-Thread Hotpath)")

	defer func() {
		if r := recover(); r != nil {
			slog.Error("CRITICAL_PANIC_DETECTED", slog.Any("panic", r))
			s.DumpState("panic_dump.json")
			// Halt after dump: a corrupted stream must not keep running.
			panic(fmt.Sprintf("HALTED: %v", r))
		}
	}()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Sequencer stopping...")
			return
		case ev := <-s.inbox:
			s.processEvent(ev)
		}
	}
}

func (s *Sequencer) processEvent(ev event.Event) {
	// 1. Sequence Gap Check (Halt Policy)
	if ev.GetSeq() != s.nextSeq {
		panic(fmt.Sprintf("SEQUENCE_GAP_DETECTED: expected %d, got %d", s.nextSeq, ev.GetSeq()))
	}

	// 2. Logic Dispatch
	switch e := ev.(type) {
	case *event.QuoteEvent:
		s.handleQuote(e)
		event.ReleaseQuoteEvent(e)
	case *event.TimerEvent:
		s.handleTimer(e)
	default:
		slog.Warn("Unknown event type", slog.Any("type", ev.GetType()))
	}

	// 3. Increment Sequence
	s.nextSeq++
}

func (s *Sequencer) handleQuote(e *event.QuoteEvent) {
	sym, ok := s.symbols[e.Symbol]
	if !ok {
		slog.Warn("Quote for unwatched symbol", slog.String("symbol", e.Symbol))
		return
	}

	start := time.Now()

	// 1. Pull the fresh quote. A failed pull serves the cached one.
	tick := sym.GetTick()
	if tick.IsZero() {
		// No quote has ever arrived for this symbol.
		return
	}

	// 2. Record and archive, but only a genuinely fresh tick. A failed
	// pull re-serves the cached tick, which is already in the history.
	if sym.ConsecutiveFailures() == 0 {
		if !sym.SaveTick(tick) {
			slog.Debug("Tick history full", slog.String("symbol", e.Symbol))
		}
		if s.store != nil {
			if err := s.store.ArchiveTick(e.Symbol, tick); err != nil {
				slog.Error("Failed to archive tick",
					slog.String("symbol", e.Symbol), slog.Any("error", err))
				infra.GlobalMetrics.RecordArchiveFailure()
			} else {
				infra.GlobalMetrics.RecordArchiveWrite()
			}
		}
	}

	// 3. Quality checks
	s.runChecks(sym, tick)

	// 4. Observers (indicator probes etc.)
	for _, obs := range s.observers {
		obs.OnQuote(sym, tick)
	}

	infra.GlobalMetrics.RecordEvent(time.Since(start).Nanoseconds())
}

func (s *Sequencer) runChecks(sym *market.SymbolInfo, tick domain.Tick) {
	if s.checks.MaxSpreadPoints > 0 {
		if spread := sym.RealSpreadFor(tick); spread > s.checks.MaxSpreadPoints {
			slog.Warn("Spread above limit",
				slog.String("symbol", sym.Symbol()),
				slog.Int64("spread_points", spread),
				slog.Int64("limit", s.checks.MaxSpreadPoints))
			infra.GlobalMetrics.RecordQualityAlert()
		}
	}

	if s.checks.StaleAfter > 0 && !tick.Time.IsZero() {
		if age := time.Since(tick.Time); age > s.checks.StaleAfter {
			slog.Warn("Quote is stale",
				slog.String("symbol", sym.Symbol()),
				slog.Duration("age", age))
			infra.GlobalMetrics.RecordQualityAlert()
		}
	}

	if s.checks.MaxFailStreak > 0 && sym.ConsecutiveFailures() >= s.checks.MaxFailStreak {
		slog.Warn("Fetch failure streak",
			slog.String("symbol", sym.Symbol()),
			slog.Int("streak", sym.ConsecutiveFailures()))
		infra.GlobalMetrics.RecordQualityAlert()
	}
}

func (s *Sequencer) handleTimer(_ *event.TimerEvent) {
	snap := infra.GlobalMetrics.Snapshot()
	slog.Info("Snapshot",
		slog.Uint64("events", snap.EventsProcessed),
		slog.Uint64("ticks_fetched", snap.TicksFetched),
		slog.Uint64("fetch_failures", snap.FetchFailures),
		slog.Uint64("stale_serves", snap.StaleServes),
		slog.Uint64("history_saves", snap.HistorySaves),
		slog.Uint64("quality_alerts", snap.QualityAlerts),
		slog.Int64("avg_latency_ns", snap.AvgLatencyNs))

	for _, sym := range s.symbols {
		slog.Debug("Symbol state\n" + sym.Describe())
	}
}

type symbolDump struct {
	Symbol     string      `json:"symbol"`
	LastTick   domain.Tick `json:"last_tick"`
	TicksSaved int         `json:"ticks_saved"`
	FailStreak int         `json:"fail_streak"`
}

// DumpState writes the entire internal state to a file (for post-mortem).
func (s *Sequencer) DumpState(filename string) {
	slog.Info("Dumping internal state...", slog.String("file", filename))

	symbols := make(map[string]symbolDump, len(s.symbols))
	for name, sym := range s.symbols {
		symbols[name] = symbolDump{
			Symbol:     name,
			LastTick:   sym.GetLastTick(),
			TicksSaved: sym.GetTicksCount(),
			FailStreak: sym.ConsecutiveFailures(),
		}
	}

	data := struct {
		NextSeq uint64                `json:"next_seq"`
		Symbols map[string]symbolDump `json:"symbols"`
		Metrics infra.MetricsSnapshot `json:"metrics"`
	}{
		NextSeq: s.nextSeq,
		Symbols: symbols,
		Metrics: infra.GlobalMetrics.Snapshot(),
	}

	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		slog.Error("Failed to marshal state", slog.Any("error", err))
		return
	}

	err = os.WriteFile(filename, b, 0644)
	if err != nil {
		slog.Error("Failed to write state dump", slog.Any("error", err))
	}
}
