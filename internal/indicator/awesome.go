package indicator

import (
	"log/slog"

	"fxlink/internal/domain"
)

// AwesomeOscillator is Bill Williams' Awesome Oscillator: the 5-period
// SMA of the bar median minus the 34-period SMA. The terminal computes
// it; we only read values back, one direct call per read.
type AwesomeOscillator struct {
	Indicator
}

func NewAwesomeOscillator(api domain.DirectIndicatorAPI, symbol string, tf domain.Timeframe, log *slog.Logger) *AwesomeOscillator {
	spec := domain.IndicatorSpec{Kind: domain.IndicatorAwesome}
	return &AwesomeOscillator{
		Indicator: newIndicator("awesome", symbol, tf, spec, newDirectSource(api, symbol, tf, spec), log),
	}
}

// GetValue returns the oscillator value at the given bar shift.
// Shift 0 is the forming bar, 1 the last closed bar. Returns
// EmptyValue when the terminal cannot produce the value.
func (a *AwesomeOscillator) GetValue(shift int) float64 {
	return a.value(0, shift)
}
