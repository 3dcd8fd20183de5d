package sim

import (
	"math"
	"testing"
	"time"

	"fxlink/internal/domain"
)

// seriesWithCloses builds an M1 series with one update per bar, so
// every bar has open = high = low = close.
func seriesWithCloses(closes ...float64) *barSeries {
	s := newBarSeries(domain.TimeframeM1)
	base := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
	for i, c := range closes {
		s.update(base.Add(time.Duration(i)*time.Minute), c)
	}
	return s
}

func TestBarSeries_Bucketing(t *testing.T) {
	s := newBarSeries(domain.TimeframeM1)
	base := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)

	s.update(base, 10)
	s.update(base.Add(10*time.Second), 14)
	s.update(base.Add(50*time.Second), 8)

	if s.size() != 1 {
		t.Fatalf("bars = %d, want 1 (same minute)", s.size())
	}
	candle, _ := s.at(0)
	if candle.open != 10 || candle.high != 14 || candle.low != 8 || candle.closePx != 8 {
		t.Errorf("forming bar = %+v", candle)
	}

	// Crossing the minute boundary opens a new bar.
	s.update(base.Add(61*time.Second), 12)
	if s.size() != 2 {
		t.Fatalf("bars = %d, want 2", s.size())
	}
	closed, _ := s.at(1)
	if closed.closePx != 8 {
		t.Errorf("closed bar close = %v, want 8", closed.closePx)
	}
}

func TestBarSeries_At(t *testing.T) {
	s := seriesWithCloses(1, 2, 3)

	if candle, ok := s.at(0); !ok || candle.closePx != 3 {
		t.Error("shift 0 should be the newest bar")
	}
	if candle, ok := s.at(2); !ok || candle.closePx != 1 {
		t.Error("shift 2 should be the oldest bar")
	}
	if _, ok := s.at(3); ok {
		t.Error("shift beyond history should fail")
	}
	if _, ok := s.at(-1); ok {
		t.Error("negative shift should fail")
	}
}

func TestBarSeries_Awesome(t *testing.T) {
	closes := make([]float64, 40)
	for i := range closes {
		closes[i] = float64(i + 1)
	}
	s := seriesWithCloses(closes...)

	// Medians equal closes here. Fast SMA over 36..40 is 38, slow SMA
	// over 7..40 is 23.5.
	v, ok := s.awesome(0)
	if !ok {
		t.Fatal("awesome(0) not computable with 40 bars")
	}
	if math.Abs(v-14.5) > 1e-9 {
		t.Errorf("awesome(0) = %v, want 14.5", v)
	}
}

func TestBarSeries_AwesomeInsufficientHistory(t *testing.T) {
	s := seriesWithCloses(make([]float64, 33)...)
	if _, ok := s.awesome(0); ok {
		t.Error("awesome with 33 bars should not be computable")
	}
	s.update(time.Date(2025, 6, 2, 13, 0, 0, 0, time.UTC), 1)
	if _, ok := s.awesome(0); !ok {
		t.Error("awesome with 34 bars should be computable")
	}
	if _, ok := s.awesome(1); ok {
		t.Error("awesome at shift 1 needs 35 bars")
	}
}

func TestBarSeries_StochasticFlat(t *testing.T) {
	s := seriesWithCloses(5, 5, 5, 5, 5, 5, 5, 5, 5)
	spec := domain.IndicatorSpec{Kind: domain.IndicatorStochastic, KPeriod: 5, DPeriod: 3, Slowing: 3}

	main, ok := s.stochMain(0, spec)
	if !ok || main != 50.0 {
		t.Errorf("flat main = %v, want 50", main)
	}
	signal, ok := s.stochSignal(0, spec)
	if !ok || signal != 50.0 {
		t.Errorf("flat signal = %v, want 50", signal)
	}
}

func TestBarSeries_StochasticExtremes(t *testing.T) {
	spec := domain.IndicatorSpec{Kind: domain.IndicatorStochastic, KPeriod: 5, DPeriod: 1, Slowing: 1}

	rising := seriesWithCloses(1, 2, 3, 4, 5, 6, 7, 8)
	if v, ok := rising.stochMain(0, spec); !ok || v != 100.0 {
		t.Errorf("rising main = %v, want 100", v)
	}

	falling := seriesWithCloses(8, 7, 6, 5, 4, 3, 2, 1)
	if v, ok := falling.stochMain(0, spec); !ok || v != 0.0 {
		t.Errorf("falling main = %v, want 0", v)
	}
}

func TestBarSeries_StochasticHandComputed(t *testing.T) {
	s := seriesWithCloses(10, 20, 30, 20, 10, 20)
	spec := domain.IndicatorSpec{Kind: domain.IndicatorStochastic, KPeriod: 3, DPeriod: 2, Slowing: 3}

	// Raw %K at shifts 0..3 is 100, 0, 0, 100; slowing 3 averages the
	// first three to 100/3 for the main line at shift 0.
	want := 100.0 / 3
	main, ok := s.stochMain(0, spec)
	if !ok {
		t.Fatal("main not computable")
	}
	if math.Abs(main-want) > 1e-9 {
		t.Errorf("main = %v, want %v", main, want)
	}

	signal, ok := s.stochSignal(0, spec)
	if !ok {
		t.Fatal("signal not computable")
	}
	if math.Abs(signal-want) > 1e-9 {
		t.Errorf("signal = %v, want %v", signal, want)
	}
}

func TestBarSeries_StochasticInsufficientHistory(t *testing.T) {
	s := seriesWithCloses(1, 2)
	spec := domain.IndicatorSpec{Kind: domain.IndicatorStochastic, KPeriod: 5, DPeriod: 3, Slowing: 3}
	if _, ok := s.stochMain(0, spec); ok {
		t.Error("main with 2 bars should not be computable")
	}
}
