package market

import (
	"strings"
	"testing"
	"time"

	"fxlink/internal/domain"

	"github.com/shopspring/decimal"
)

// fakeProvider is a scriptable MarketDataProvider. Fields absent from
// the maps fail their reads.
type fakeProvider struct {
	tick       domain.Tick
	tickErr    error
	doubles    map[domain.DoubleField]decimal.Decimal
	integers   map[domain.IntegerField]int64
	fetchCalls int
}

func (f *fakeProvider) FetchTick(symbol string) (domain.Tick, error) {
	f.fetchCalls++
	if f.tickErr != nil {
		return domain.Tick{}, f.tickErr
	}
	return f.tick, nil
}

func (f *fakeProvider) FetchDouble(symbol string, field domain.DoubleField) (decimal.Decimal, error) {
	v, ok := f.doubles[field]
	if !ok {
		return decimal.Zero, domain.NewTerminalError("fetch_double", symbol, domain.ErrUnknownField)
	}
	return v, nil
}

func (f *fakeProvider) FetchInteger(symbol string, field domain.IntegerField) (int64, error) {
	v, ok := f.integers[field]
	if !ok {
		return 0, domain.NewTerminalError("fetch_integer", symbol, domain.ErrUnknownField)
	}
	return v, nil
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func testTick(ask, bid string) domain.Tick {
	return domain.Tick{
		Ask:    d(ask),
		Bid:    d(bid),
		Volume: 7,
		Time:   time.Date(2025, 6, 2, 10, 30, 0, 0, time.UTC),
	}
}

func fiveDigitProvider() *fakeProvider {
	return &fakeProvider{
		tick: testTick("1.10052", "1.10047"),
		doubles: map[domain.DoubleField]decimal.Decimal{
			domain.FieldPointSize: d("0.00001"),
		},
		integers: map[domain.IntegerField]int64{
			domain.FieldDigits: 5,
			domain.FieldSpread: 5,
		},
	}
}

func TestSymbolInfo_PipSize(t *testing.T) {
	cases := []struct {
		name   string
		digits int64
		point  string
		want   string
	}{
		{"five digit fx", 5, "0.00001", "0.00001"},
		{"four digit fx", 4, "0.0001", "0.001"},
		{"three digit jpy", 3, "0.001", "0.001"},
		{"two digit metal", 2, "0.01", "0.1"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := &fakeProvider{
				doubles:  map[domain.DoubleField]decimal.Decimal{domain.FieldPointSize: d(tc.point)},
				integers: map[domain.IntegerField]int64{domain.FieldDigits: tc.digits},
			}
			s := NewSymbolInfo(p, "TEST", 0, nil)

			if pip := s.GetPipSize(); !pip.Equal(d(tc.want)) {
				t.Errorf("pip = %s, want %s", pip, tc.want)
			}
		})
	}
}

func TestSymbolInfo_GetTickCachesQuote(t *testing.T) {
	p := fiveDigitProvider()
	s := NewSymbolInfo(p, "EURUSD", 0, nil)

	got := s.GetTick()
	if !got.Ask.Equal(d("1.10052")) {
		t.Fatalf("GetTick ask = %s", got.Ask)
	}
	if p.fetchCalls != 1 {
		t.Fatalf("fetch calls = %d, want 1", p.fetchCalls)
	}

	// Cached reads never touch the provider.
	for i := 0; i < 3; i++ {
		last := s.GetLastTick()
		if !last.Ask.Equal(got.Ask) || !last.Bid.Equal(got.Bid) {
			t.Fatal("GetLastTick differs from the fetched tick")
		}
	}
	if s.GetLastVolume() != 7 {
		t.Errorf("last volume = %d", s.GetLastVolume())
	}
	if p.fetchCalls != 1 {
		t.Errorf("cached reads performed provider calls: %d", p.fetchCalls)
	}
}

func TestSymbolInfo_StaleOnFailure(t *testing.T) {
	p := fiveDigitProvider()
	s := NewSymbolInfo(p, "EURUSD", 0, nil)

	cached := s.GetTick()

	// Provider goes dark; three fetches serve the same cached quote.
	p.tickErr = domain.NewTerminalError("fetch_tick", "EURUSD", domain.ErrOffline)
	for i := 0; i < 3; i++ {
		got := s.GetTick()
		if !got.Ask.Equal(cached.Ask) || !got.Bid.Equal(cached.Bid) || !got.Time.Equal(cached.Time) {
			t.Fatalf("failed fetch %d mutated the served quote", i+1)
		}
	}
	if s.ConsecutiveFailures() != 3 {
		t.Errorf("fail streak = %d, want 3", s.ConsecutiveFailures())
	}

	// Recovery resets the streak and refreshes the cache.
	p.tickErr = nil
	p.tick = testTick("1.10060", "1.10055")
	got := s.GetTick()
	if !got.Ask.Equal(d("1.10060")) {
		t.Errorf("recovered fetch ask = %s", got.Ask)
	}
	if s.ConsecutiveFailures() != 0 {
		t.Errorf("fail streak after recovery = %d", s.ConsecutiveFailures())
	}
}

func TestSymbolInfo_OfferMapping(t *testing.T) {
	p := fiveDigitProvider()
	s := NewSymbolInfo(p, "EURUSD", 0, nil)

	if !s.GetOpenOffer(domain.SideBuy).Equal(s.GetAsk()) {
		t.Error("open buy should be the ask")
	}
	if !s.GetOpenOffer(domain.SideSell).Equal(s.GetBid()) {
		t.Error("open sell should be the bid")
	}
	if !s.GetCloseOffer(domain.SideBuy).Equal(s.GetBid()) {
		t.Error("close buy should be the bid")
	}
	if !s.GetCloseOffer(domain.SideSell).Equal(s.GetAsk()) {
		t.Error("close sell should be the ask")
	}
}

func TestSymbolInfo_RealSpread(t *testing.T) {
	t.Run("five points", func(t *testing.T) {
		s := NewSymbolInfo(fiveDigitProvider(), "EURUSD", 0, nil)
		if got := s.GetRealSpread(); got != 5 {
			t.Errorf("real spread = %d, want 5", got)
		}
	})

	t.Run("rounds half away from zero", func(t *testing.T) {
		p := fiveDigitProvider()
		p.integers[domain.FieldDigits] = 4
		p.tick = testTick("1.00015", "1.00000") // 1.5 points at 4 digits
		s := NewSymbolInfo(p, "EURUSD", 0, nil)
		if got := s.GetRealSpread(); got != 2 {
			t.Errorf("real spread = %d, want 2", got)
		}
	})
}

func TestSymbolInfo_TickValueFallback(t *testing.T) {
	base := func() *fakeProvider {
		p := fiveDigitProvider()
		return p
	}

	t.Run("primary positive wins", func(t *testing.T) {
		p := base()
		p.doubles[domain.FieldTickValue] = d("0.92")
		p.doubles[domain.FieldTickValueProfit] = d("0.5")
		s := NewSymbolInfo(p, "EURUSD", 0, nil)
		if v := s.GetTickValue(); !v.Equal(d("0.92")) {
			t.Errorf("tick value = %s, want 0.92", v)
		}
	})

	t.Run("profit side on non-positive primary", func(t *testing.T) {
		p := base()
		p.doubles[domain.FieldTickValue] = d("-1")
		p.doubles[domain.FieldTickValueProfit] = d("0.87")
		s := NewSymbolInfo(p, "EURUSD", 0, nil)
		if v := s.GetTickValue(); !v.Equal(d("0.87")) {
			t.Errorf("tick value = %s, want 0.87", v)
		}
	})

	t.Run("profit side on failed primary", func(t *testing.T) {
		p := base()
		p.doubles[domain.FieldTickValueProfit] = d("0.75")
		s := NewSymbolInfo(p, "EURUSD", 0, nil)
		if v := s.GetTickValue(); !v.Equal(d("0.75")) {
			t.Errorf("tick value = %s, want 0.75", v)
		}
	})

	t.Run("neutral one when both fail", func(t *testing.T) {
		p := base()
		p.doubles[domain.FieldTickValue] = d("0")
		p.doubles[domain.FieldTickValueProfit] = d("0")
		s := NewSymbolInfo(p, "EURUSD", 0, nil)
		if v := s.GetTickValue(); !v.Equal(d("1")) {
			t.Errorf("tick value = %s, want 1", v)
		}
	})
}

func TestSymbolInfo_MetadataFailureReturnsZero(t *testing.T) {
	p := &fakeProvider{} // nothing stubbed, every metadata read fails
	s := NewSymbolInfo(p, "EURUSD", 0, nil)

	if !s.GetPointSize().IsZero() {
		t.Error("point size on failure should be zero")
	}
	if s.GetDigits() != 0 {
		t.Error("digits on failure should be zero")
	}
	if s.GetTradeStopsLevel() != 0 {
		t.Error("stops level on failure should be zero")
	}
}

func TestSymbolInfo_SaveTick(t *testing.T) {
	p := fiveDigitProvider()
	s := NewSymbolInfo(p, "EURUSD", 0, nil)

	t1 := testTick("1.10001", "1.10000")
	t2 := testTick("1.10003", "1.10002")

	if !s.SaveTick(t1) || !s.SaveTick(t2) {
		t.Fatal("SaveTick rejected")
	}

	// SaveTick also refreshes the cached quote without any fetch.
	if !s.GetLastTick().Ask.Equal(t2.Ask) {
		t.Error("SaveTick did not update the cached tick")
	}
	if p.fetchCalls != 0 {
		t.Errorf("SaveTick performed provider calls: %d", p.fetchCalls)
	}

	if s.GetTicksCount() != 2 {
		t.Fatalf("ticks count = %d, want 2", s.GetTicksCount())
	}
	first, _ := s.TickAt(0)
	if !first.Ask.Equal(t1.Ask) {
		t.Error("history order broken: index 0 should be the oldest")
	}
}

func TestSymbolInfo_SaveTickBudget(t *testing.T) {
	p := fiveDigitProvider()
	s := NewSymbolInfo(p, "EURUSD", 2, nil)

	t1 := testTick("1.1", "1.0")
	t2 := testTick("1.2", "1.1")
	t3 := testTick("1.3", "1.2")

	s.SaveTick(t1)
	s.SaveTick(t2)

	if s.SaveTick(t3) {
		t.Fatal("SaveTick beyond the budget should report false")
	}
	if s.GetTicksCount() != 2 {
		t.Errorf("count after rejection = %d, want 2", s.GetTicksCount())
	}
	// The rejected tick must not become the cached quote.
	if !s.GetLastTick().Ask.Equal(t2.Ask) {
		t.Error("rejected SaveTick mutated the cached tick")
	}
}

func TestSymbolInfo_ResetTicks(t *testing.T) {
	s := NewSymbolInfo(fiveDigitProvider(), "EURUSD", 0, nil)

	saved := testTick("1.5", "1.4")
	for i := 0; i < 10; i++ {
		s.SaveTick(saved)
	}
	s.ResetTicks()

	if s.GetTicksCount() != 0 {
		t.Errorf("count after reset = %d, want 0", s.GetTicksCount())
	}
	// The cached quote is not part of the history.
	if !s.GetLastTick().Ask.Equal(saved.Ask) {
		t.Error("ResetTicks cleared the cached tick")
	}
}

func TestSymbolInfo_Describe(t *testing.T) {
	s := NewSymbolInfo(fiveDigitProvider(), "EURUSD", 0, nil)
	s.GetTick()

	out := s.Describe()
	for _, want := range []string{"EURUSD", "digits=5", "pip=0.00001", "ticks_saved=0"} {
		if !strings.Contains(out, want) {
			t.Errorf("Describe() missing %q:\n%s", want, out)
		}
	}
}
