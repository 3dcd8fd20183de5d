package app

import (
	"log/slog"

	"fxlink/internal/domain"
	"fxlink/internal/indicator"
	"fxlink/internal/market"
)

// IndicatorProbe reads the oscillators after each quote of its symbol
// and logs the values at debug level. Readings use the last closed bar
// (shift 1) so they are stable between bar boundaries.
type IndicatorProbe struct {
	symbol string
	ao     *indicator.AwesomeOscillator
	stoch  *indicator.Stochastic
}

func NewIndicatorProbe(symbol string, ao *indicator.AwesomeOscillator, stoch *indicator.Stochastic) *IndicatorProbe {
	return &IndicatorProbe{symbol: symbol, ao: ao, stoch: stoch}
}

// OnQuote implements engine.QuoteObserver.
func (p *IndicatorProbe) OnQuote(sym *market.SymbolInfo, _ domain.Tick) {
	if sym.Symbol() != p.symbol {
		return
	}

	ao := p.ao.GetValue(1)
	main := p.stoch.GetMain(1)
	signal := p.stoch.GetSignal(1)

	if domain.IsEmptyValue(ao) && domain.IsEmptyValue(main) {
		return // not enough bars yet, or terminal unreachable
	}

	slog.Debug("Indicator probe",
		slog.String("symbol", p.symbol),
		slog.Float64("ao", ao),
		slog.Float64("stoch_main", main),
		slog.Float64("stoch_signal", signal))
}
