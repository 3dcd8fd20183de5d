package market

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"fxlink/internal/domain"
	"fxlink/internal/infra"

	"github.com/shopspring/decimal"
)

var ten = decimal.NewFromInt(10)

// SymbolInfo is the per-instrument facade over the terminal: quote
// access with a stale-on-failure cache, metadata reads with unit
// conversions, and the saved tick history. Construction performs no
// terminal calls, so ad-hoc queries can build one on the spot.
//
// All methods are meant to be called from a single goroutine (the
// engine loop); the terminal adapter behind the provider handles its
// own concurrency.
type SymbolInfo struct {
	symbol     string
	provider   domain.MarketDataProvider
	last       domain.Tick
	history    *TickHistory
	failStreak int
	log        *slog.Logger
}

// NewSymbolInfo creates a facade for symbol. maxTicks caps the saved
// history (0 = unbounded).
func NewSymbolInfo(provider domain.MarketDataProvider, symbol string, maxTicks int, log *slog.Logger) *SymbolInfo {
	if log == nil {
		log = slog.Default()
	}
	return &SymbolInfo{
		symbol:   symbol,
		provider: provider,
		history:  NewTickHistory(maxTicks, log),
		log:      log,
	}
}

// Symbol returns the instrument identifier
func (s *SymbolInfo) Symbol() string {
	return s.symbol
}

// ==================================================
// Quote access
// ==================================================

// GetTick fetches a fresh quote. On success the quote becomes the
// cached last tick. On failure the previous cached tick is returned
// unchanged, so callers keep evaluating on slightly stale data instead
// of crashing mid-session.
func (s *SymbolInfo) GetTick() domain.Tick {
	tick, err := s.provider.FetchTick(s.symbol)
	if err != nil {
		s.failStreak++
		infra.GlobalMetrics.RecordFetchFailure()
		infra.GlobalMetrics.RecordStaleServe()
		s.log.Warn("tick fetch failed, serving cached quote",
			slog.String("symbol", s.symbol),
			slog.Int("streak", s.failStreak),
			slog.Any("error", err))
		return s.last
	}

	infra.GlobalMetrics.RecordFetch()
	s.failStreak = 0
	s.last = tick
	return tick
}

// GetLastTick returns the cached tick without any terminal call
func (s *SymbolInfo) GetLastTick() domain.Tick {
	return s.last
}

// GetAsk fetches a fresh quote and returns its ask price
func (s *SymbolInfo) GetAsk() decimal.Decimal {
	return s.GetTick().Ask
}

// GetBid fetches a fresh quote and returns its bid price
func (s *SymbolInfo) GetBid() decimal.Decimal {
	return s.GetTick().Bid
}

// GetLastAsk returns the cached ask price. No terminal call.
func (s *SymbolInfo) GetLastAsk() decimal.Decimal {
	return s.last.Ask
}

// GetLastBid returns the cached bid price. No terminal call.
func (s *SymbolInfo) GetLastBid() decimal.Decimal {
	return s.last.Bid
}

// GetLastVolume returns the cached tick volume. No terminal call.
func (s *SymbolInfo) GetLastVolume() uint64 {
	return s.last.Volume
}

// GetLastTime returns the terminal time of the cached tick. No terminal call.
func (s *SymbolInfo) GetLastTime() time.Time {
	return s.last.Time
}

// GetOpenOffer fetches a fresh quote and returns the price a position
// of the given side would open at: buys lift the ask, sells hit the bid.
func (s *SymbolInfo) GetOpenOffer(side domain.Side) decimal.Decimal {
	tick := s.GetTick()
	if side == domain.SideBuy {
		return tick.Ask
	}
	return tick.Bid
}

// GetCloseOffer fetches a fresh quote and returns the price a position
// of the given side would close at: the mirror of GetOpenOffer.
func (s *SymbolInfo) GetCloseOffer(side domain.Side) decimal.Decimal {
	tick := s.GetTick()
	if side == domain.SideBuy {
		return tick.Bid
	}
	return tick.Ask
}

// ConsecutiveFailures returns the current run of failed fetches
func (s *SymbolInfo) ConsecutiveFailures() int {
	return s.failStreak
}

// ==================================================
// Metadata access
// ==================================================

// GetDigits returns the number of price digits (0 on failure)
func (s *SymbolInfo) GetDigits() int {
	return int(s.integerField(domain.FieldDigits))
}

// GetPointSize returns the smallest price increment
func (s *SymbolInfo) GetPointSize() decimal.Decimal {
	return s.doubleField(domain.FieldPointSize)
}

// GetPipSize derives the pip from digit parity: odd-digit instruments
// use the point directly, even-digit ones ten points. This is the
// platform's own FX convention and is unreliable for metals.
func (s *SymbolInfo) GetPipSize() decimal.Decimal {
	point := s.GetPointSize()
	if s.GetDigits()%2 == 1 {
		return point
	}
	return point.Mul(ten)
}

// GetSpread returns the terminal-reported spread in points
func (s *SymbolInfo) GetSpread() int64 {
	return s.integerField(domain.FieldSpread)
}

// GetRealSpread computes the spread of a fresh quote in points,
// rounded half away from zero.
func (s *SymbolInfo) GetRealSpread() int64 {
	return s.RealSpreadFor(s.GetTick())
}

// RealSpreadFor computes the spread of the given tick in points
func (s *SymbolInfo) RealSpreadFor(t domain.Tick) int64 {
	scale := decimal.New(1, int32(s.GetDigits()))
	return t.Ask.Sub(t.Bid).Mul(scale).Round(0).IntPart()
}

// GetTickSize returns the minimal price change of the instrument
func (s *SymbolInfo) GetTickSize() decimal.Decimal {
	return s.doubleField(domain.FieldTickSize)
}

// GetTickValue returns the monetary value of one tick. Brokers report
// zero or negative values here often enough that the read falls back to
// the profit-side value and finally to 1, so position arithmetic
// degrades to price units instead of zeroing out.
func (s *SymbolInfo) GetTickValue() decimal.Decimal {
	v, err := s.provider.FetchDouble(s.symbol, domain.FieldTickValue)
	if err != nil {
		s.logFieldError(domain.FieldTickValue.String(), err)
	} else if v.IsPositive() {
		return v
	}

	profit, err := s.provider.FetchDouble(s.symbol, domain.FieldTickValueProfit)
	if err != nil {
		s.logFieldError(domain.FieldTickValueProfit.String(), err)
	} else if profit.IsPositive() {
		return profit
	}

	return decimal.NewFromInt(1)
}

// GetTradeContractSize returns the contract size of one lot
func (s *SymbolInfo) GetTradeContractSize() decimal.Decimal {
	return s.doubleField(domain.FieldContractSize)
}

// GetVolumeMin returns the minimal tradable volume in lots
func (s *SymbolInfo) GetVolumeMin() decimal.Decimal {
	return s.doubleField(domain.FieldVolumeMin)
}

// GetVolumeMax returns the maximal tradable volume in lots
func (s *SymbolInfo) GetVolumeMax() decimal.Decimal {
	return s.doubleField(domain.FieldVolumeMax)
}

// GetVolumeStep returns the volume step in lots
func (s *SymbolInfo) GetVolumeStep() decimal.Decimal {
	return s.doubleField(domain.FieldVolumeStep)
}

// GetTradeStopsLevel returns the minimal stop distance in points
func (s *SymbolInfo) GetTradeStopsLevel() int64 {
	return s.integerField(domain.FieldStopsLevel)
}

// GetFreezeLevel returns the order freeze distance in points
func (s *SymbolInfo) GetFreezeLevel() int64 {
	return s.integerField(domain.FieldFreezeLevel)
}

// GetMarginInit returns the initial margin requirement
func (s *SymbolInfo) GetMarginInit() decimal.Decimal {
	return s.doubleField(domain.FieldMarginInitial)
}

// GetMarginMaintenance returns the maintenance margin requirement
func (s *SymbolInfo) GetMarginMaintenance() decimal.Decimal {
	return s.doubleField(domain.FieldMarginMaintenance)
}

func (s *SymbolInfo) doubleField(f domain.DoubleField) decimal.Decimal {
	v, err := s.provider.FetchDouble(s.symbol, f)
	if err != nil {
		s.logFieldError(f.String(), err)
		return decimal.Zero
	}
	return v
}

func (s *SymbolInfo) integerField(f domain.IntegerField) int64 {
	v, err := s.provider.FetchInteger(s.symbol, f)
	if err != nil {
		s.logFieldError(f.String(), err)
		return 0
	}
	return v
}

func (s *SymbolInfo) logFieldError(field string, err error) {
	infra.GlobalMetrics.RecordFetchFailure()
	s.log.Warn("metadata fetch failed",
		slog.String("symbol", s.symbol),
		slog.String("field", field),
		slog.Any("error", err))
}

// ==================================================
// Tick history
// ==================================================

// SaveTick appends t to the history and, on success, makes it the
// cached last tick. It reports false when the history rejected the
// append; prior state is untouched then.
func (s *SymbolInfo) SaveTick(t domain.Tick) bool {
	if !s.history.Append(t) {
		infra.GlobalMetrics.RecordHistoryDrop()
		return false
	}
	infra.GlobalMetrics.RecordHistorySave()
	s.last = t
	return true
}

// GetTicksCount returns the number of saved ticks
func (s *SymbolInfo) GetTicksCount() int {
	return s.history.Len()
}

// TickAt returns the i-th saved tick; index 0 is the oldest
func (s *SymbolInfo) TickAt(i int) (domain.Tick, bool) {
	return s.history.At(i)
}

// ResetTicks drops the saved history. The cached last tick survives.
func (s *SymbolInfo) ResetTicks() {
	s.history.Reset()
}

// History exposes the underlying tick store
func (s *SymbolInfo) History() *TickHistory {
	return s.history
}

// Describe renders a fixed-format diagnostic dump of the symbol state.
// Metadata lines query the terminal; the quote line uses the cache.
func (s *SymbolInfo) Describe() string {
	var b strings.Builder
	last := s.GetLastTick()
	fmt.Fprintf(&b, "%s: bid=%s ask=%s vol=%d at=%s\n",
		s.symbol, last.Bid, last.Ask, last.Volume, last.Time.Format("2006-01-02 15:04:05.000"))
	fmt.Fprintf(&b, "  digits=%d point=%s pip=%s spread=%d real_spread=%d\n",
		s.GetDigits(), s.GetPointSize(), s.GetPipSize(), s.GetSpread(), s.RealSpreadFor(last))
	fmt.Fprintf(&b, "  tick_size=%s tick_value=%s contract=%s\n",
		s.GetTickSize(), s.GetTickValue(), s.GetTradeContractSize())
	fmt.Fprintf(&b, "  volume_min=%s volume_step=%s volume_max=%s stops=%d freeze=%d\n",
		s.GetVolumeMin(), s.GetVolumeStep(), s.GetVolumeMax(), s.GetTradeStopsLevel(), s.GetFreezeLevel())
	fmt.Fprintf(&b, "  margin_init=%s margin_maint=%s ticks_saved=%d fail_streak=%d",
		s.GetMarginInit(), s.GetMarginMaintenance(), s.GetTicksCount(), s.failStreak)
	return b.String()
}
