package indicator

import (
	"log/slog"

	"fxlink/internal/domain"
)

// StochasticLine selects which of the two stochastic lines to read.
type StochasticLine int

const (
	LineMain   StochasticLine = iota // %K after slowing
	LineSignal                       // SMA of the main line
)

const (
	defaultKPeriod      = 5
	defaultSlowing      = 3
	defaultSignalPeriod = 3
)

// Stochastic is the stochastic oscillator (5,3,3 by default). It runs
// against handle-and-copy terminals: the handle is keyed by the
// parameters and re-obtained whenever the terminal drops it or the
// signal period changes.
type Stochastic struct {
	Indicator
}

// NewStochastic builds a stochastic reader. A non-positive signalPeriod
// falls back to the default.
func NewStochastic(api domain.BufferIndicatorAPI, symbol string, tf domain.Timeframe, signalPeriod int, log *slog.Logger) *Stochastic {
	if signalPeriod <= 0 {
		signalPeriod = defaultSignalPeriod
	}
	spec := domain.IndicatorSpec{
		Kind:    domain.IndicatorStochastic,
		KPeriod: defaultKPeriod,
		DPeriod: signalPeriod,
		Slowing: defaultSlowing,
	}
	return &Stochastic{
		Indicator: newIndicator("stochastic", symbol, tf, spec, newBufferedSource(api, symbol, tf, spec), log),
	}
}

// GetValue reads one line at the given bar shift. Returns EmptyValue
// when the terminal cannot produce the value.
func (s *Stochastic) GetValue(line StochasticLine, shift int) float64 {
	return s.value(int(line), shift)
}

func (s *Stochastic) GetMain(shift int) float64 {
	return s.GetValue(LineMain, shift)
}

func (s *Stochastic) GetSignal(shift int) float64 {
	return s.GetValue(LineSignal, shift)
}

func (s *Stochastic) GetSignalPeriod() int {
	return s.spec.DPeriod
}

// SetSignalPeriod changes the signal smoothing period. Non-positive
// values are ignored. The change applies from the next read; the old
// handle is released.
func (s *Stochastic) SetSignalPeriod(period int) {
	if period <= 0 {
		return
	}
	spec := s.spec
	spec.DPeriod = period
	s.setSpec(spec)
}
