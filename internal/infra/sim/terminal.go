// Package sim is an in-process trading terminal. It random-walks
// quotes for a configured set of instruments, builds bars, computes
// the indicators itself and rings the quote doorbell, so the whole
// engine runs without a broker connection.
package sim

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"

	"fxlink/internal/domain"
	"fxlink/internal/event"
	"fxlink/internal/infra"

	"github.com/shopspring/decimal"
)

const barPreload = 128

// InstrumentConfig seeds one simulated instrument. Zero fields fall
// back to defaults in NewTerminal.
type InstrumentConfig struct {
	Spec       domain.InstrumentSpec
	BasePrice  decimal.Decimal
	Volatility decimal.Decimal // max per-step price move
}

type instrumentState struct {
	spec       domain.InstrumentSpec
	volatility decimal.Decimal
	price      decimal.Decimal // mid price of the walk
	last       domain.Tick
	offline    bool
	bars       map[domain.Timeframe]*barSeries
}

type handleKey struct {
	symbol string
	tf     domain.Timeframe
	spec   domain.IndicatorSpec
}

// Terminal implements domain.TerminalProvider against simulated
// markets. All state is guarded by one mutex: the pump goroutine steps
// prices while the sequencer goroutine fetches.
type Terminal struct {
	mu          sync.Mutex
	instruments map[string]*instrumentState
	symbols     []string
	rng         *rand.Rand

	handles    map[domain.IndicatorHandle]handleKey
	byKey      map[handleKey]domain.IndicatorHandle
	nextHandle domain.IndicatorHandle

	emitter      *event.Emitter // nil disables doorbell events
	tickInterval time.Duration

	connected bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// NewTerminal creates a simulated terminal. Seed 0 derives one from
// the clock; any other value makes the walk reproducible.
func NewTerminal(instruments []InstrumentConfig, tickInterval time.Duration, seed int64, emitter *event.Emitter) *Terminal {
	if tickInterval <= 0 {
		tickInterval = 250 * time.Millisecond
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	t := &Terminal{
		instruments:  make(map[string]*instrumentState, len(instruments)),
		rng:          rand.New(rand.NewSource(seed)),
		handles:      make(map[domain.IndicatorHandle]handleKey),
		byKey:        make(map[handleKey]domain.IndicatorHandle),
		nextHandle:   1,
		emitter:      emitter,
		tickInterval: tickInterval,
	}

	now := time.Now()
	for _, cfg := range instruments {
		cfg = defaulted(cfg)
		st := &instrumentState{
			spec:       cfg.Spec,
			volatility: cfg.Volatility,
			price:      cfg.BasePrice,
			bars:       make(map[domain.Timeframe]*barSeries),
		}
		// First quote exists before the pump ever runs.
		st.last = t.quoteLocked(st, now)
		t.instruments[cfg.Spec.Symbol] = st
		t.symbols = append(t.symbols, cfg.Spec.Symbol)
	}
	sort.Strings(t.symbols)
	return t
}

func defaulted(cfg InstrumentConfig) InstrumentConfig {
	spec := cfg.Spec
	if spec.Digits <= 0 {
		spec.Digits = 5
	}
	if spec.PointSize.IsZero() {
		spec.PointSize = decimal.New(1, -int32(spec.Digits))
	}
	if spec.TickSize.IsZero() {
		spec.TickSize = spec.PointSize
	}
	if spec.TickValue.IsZero() {
		spec.TickValue = decimal.NewFromInt(1)
	}
	if spec.TickValueProfit.IsZero() {
		spec.TickValueProfit = spec.TickValue
	}
	if spec.TickValueLoss.IsZero() {
		spec.TickValueLoss = spec.TickValue
	}
	if spec.ContractSize.IsZero() {
		spec.ContractSize = decimal.NewFromInt(100000)
	}
	if spec.VolumeMin.IsZero() {
		spec.VolumeMin = decimal.RequireFromString("0.01")
	}
	if spec.VolumeMax.IsZero() {
		spec.VolumeMax = decimal.NewFromInt(500)
	}
	if spec.VolumeStep.IsZero() {
		spec.VolumeStep = spec.VolumeMin
	}
	if spec.SpreadPoints <= 0 {
		spec.SpreadPoints = 2
	}
	cfg.Spec = spec
	if cfg.BasePrice.IsZero() {
		cfg.BasePrice = decimal.NewFromInt(1)
	}
	if cfg.Volatility.IsZero() {
		cfg.Volatility = spec.PointSize.Mul(decimal.NewFromInt(20))
	}
	return cfg
}

// ==================================================
// Feed lifecycle
// ==================================================

// Connect starts the quote pump. Idempotent.
func (s *Terminal) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.connected {
		s.mu.Unlock()
		return nil
	}
	s.connected = true
	ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	infra.GlobalMetrics.IncrementConnections()
	slog.Info("Sim terminal connected",
		slog.Int("instruments", len(s.symbols)),
		slog.Duration("tick_interval", s.tickInterval))

	s.wg.Add(1)
	go s.pump(ctx)
	return nil
}

func (s *Terminal) pump(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			for _, symbol := range s.step(now) {
				if s.emitter == nil {
					continue
				}
				ev := event.AcquireQuoteEvent()
				ev.Symbol = symbol
				if !s.emitter.Emit(ctx, ev) {
					event.ReleaseQuoteEvent(ev)
					return
				}
			}
		}
	}
}

// Disconnect stops the pump and waits for it to exit.
func (s *Terminal) Disconnect() {
	s.mu.Lock()
	if !s.connected {
		s.mu.Unlock()
		return
	}
	s.connected = false
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
	infra.GlobalMetrics.DecrementConnections()
	slog.Info("Sim terminal disconnected")
}

func (s *Terminal) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// Advance steps every instrument once without emitting events. Tests
// drive the walk deterministically with it.
func (s *Terminal) Advance() {
	s.step(time.Now())
}

// SetOffline toggles a per-symbol outage: fetches fail, the doorbell
// stays silent, live indicator handles survive.
func (s *Terminal) SetOffline(symbol string, offline bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.instruments[symbol]
	if !ok {
		return domain.NewFatalTerminalError("set_offline", symbol, domain.ErrUnknownSymbol)
	}
	st.offline = offline
	return nil
}

func (s *Terminal) step(now time.Time) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	stepped := make([]string, 0, len(s.symbols))
	for _, symbol := range s.symbols {
		st := s.instruments[symbol]
		if st.offline {
			continue
		}
		s.stepLocked(st, now)
		stepped = append(stepped, symbol)
	}
	return stepped
}

func (s *Terminal) stepLocked(st *instrumentState, now time.Time) {
	delta := st.volatility.Mul(decimal.NewFromFloat(s.rng.Float64()*2 - 1))
	price := st.price.Add(delta).Round(int32(st.spec.Digits))
	if !price.IsPositive() {
		price = st.spec.PointSize
	}
	st.price = price
	st.last = s.quoteLocked(st, now)

	f, _ := price.Float64()
	for _, series := range st.bars {
		series.update(now, f)
	}
}

func (s *Terminal) quoteLocked(st *instrumentState, now time.Time) domain.Tick {
	bid := st.price
	ask := bid.Add(st.spec.PointSize.Mul(decimal.NewFromInt(st.spec.SpreadPoints)))
	return domain.Tick{
		Ask:    ask,
		Bid:    bid,
		Volume: uint64(1 + s.rng.Intn(100)),
		Time:   now,
	}
}

// ==================================================
// Market data
// ==================================================

func (s *Terminal) lookupLocked(op, symbol string) (*instrumentState, error) {
	st, ok := s.instruments[symbol]
	if !ok {
		return nil, domain.NewFatalTerminalError(op, symbol, domain.ErrUnknownSymbol)
	}
	if st.offline {
		return nil, domain.NewTerminalError(op, symbol, domain.ErrOffline)
	}
	return st, nil
}

func (s *Terminal) FetchTick(symbol string) (domain.Tick, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, err := s.lookupLocked("fetch_tick", symbol)
	if err != nil {
		return domain.Tick{}, err
	}
	return st.last, nil
}

func (s *Terminal) FetchDouble(symbol string, field domain.DoubleField) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, err := s.lookupLocked("fetch_double", symbol)
	if err != nil {
		return decimal.Zero, err
	}
	v, err := st.spec.DoubleField(field)
	if err != nil {
		return decimal.Zero, domain.NewFatalTerminalError("fetch_double", symbol, err)
	}
	return v, nil
}

func (s *Terminal) FetchInteger(symbol string, field domain.IntegerField) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, err := s.lookupLocked("fetch_integer", symbol)
	if err != nil {
		return 0, err
	}
	v, err := st.spec.IntegerField(field)
	if err != nil {
		return 0, domain.NewFatalTerminalError("fetch_integer", symbol, err)
	}
	return v, nil
}

// ==================================================
// Indicators
// ==================================================

func (s *Terminal) FetchIndicatorDirect(symbol string, tf domain.Timeframe, spec domain.IndicatorSpec, line, shift int) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, err := s.lookupLocked("indicator_direct", symbol)
	if err != nil {
		return 0, err
	}
	return computeLine(s.seriesForLocked(st, tf), spec, line, shift)
}

func (s *Terminal) ObtainIndicatorHandle(symbol string, tf domain.Timeframe, spec domain.IndicatorSpec) (domain.IndicatorHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, err := s.lookupLocked("obtain_handle", symbol)
	if err != nil {
		return domain.InvalidHandle, err
	}

	key := handleKey{symbol: symbol, tf: tf, spec: spec}
	if h, ok := s.byKey[key]; ok {
		return h, nil
	}

	// History starts loading the moment the handle exists.
	s.seriesForLocked(st, tf)

	h := s.nextHandle
	s.nextHandle++
	s.handles[h] = key
	s.byKey[key] = h
	return h, nil
}

func (s *Terminal) CopyBuffer(handle domain.IndicatorHandle, line, shift, count int) ([]float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key, ok := s.handles[handle]
	if !ok {
		return nil, domain.ErrInvalidHandle
	}
	st, err := s.lookupLocked("copy_buffer", key.symbol)
	if err != nil {
		return nil, err
	}
	series := s.seriesForLocked(st, key.tf)

	values := make([]float64, 0, count)
	for i := 0; i < count; i++ {
		v, err := computeLine(series, key.spec, line, shift+i)
		if err != nil {
			return nil, err
		}
		if domain.IsEmptyValue(v) {
			// Ran out of history: a short copy, not an error.
			break
		}
		values = append(values, v)
	}
	return values, nil
}

func (s *Terminal) ReleaseIndicatorHandle(handle domain.IndicatorHandle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key, ok := s.handles[handle]
	if !ok {
		return domain.ErrInvalidHandle
	}
	delete(s.handles, handle)
	if s.byKey[key] == handle {
		delete(s.byKey, key)
	}
	return nil
}

func computeLine(series *barSeries, spec domain.IndicatorSpec, line, shift int) (float64, error) {
	switch spec.Kind {
	case domain.IndicatorAwesome:
		if line != 0 {
			return 0, fmt.Errorf("awesome oscillator has a single line, got %d", line)
		}
		if v, ok := series.awesome(shift); ok {
			return v, nil
		}
		return domain.EmptyValue, nil

	case domain.IndicatorStochastic:
		var v float64
		var ok bool
		switch line {
		case 0:
			v, ok = series.stochMain(shift, spec)
		case 1:
			v, ok = series.stochSignal(shift, spec)
		default:
			return 0, fmt.Errorf("stochastic line %d out of range", line)
		}
		if !ok {
			return domain.EmptyValue, nil
		}
		return v, nil

	default:
		return 0, fmt.Errorf("unsupported indicator kind %d", spec.Kind)
	}
}

// seriesForLocked returns the bar series for a timeframe, creating and
// seeding it on first use.
func (s *Terminal) seriesForLocked(st *instrumentState, tf domain.Timeframe) *barSeries {
	if series, ok := st.bars[tf]; ok {
		return series
	}
	series := newBarSeries(tf)
	s.seedHistory(st, series)
	st.bars[tf] = series
	return series
}

// seedHistory synthesizes closed bars behind the live price so
// indicator reads work right after connect instead of waiting half an
// hour of wall time for real bars.
func (s *Terminal) seedHistory(st *instrumentState, series *barSeries) {
	price, _ := st.price.Float64()
	vol, _ := st.volatility.Float64()

	// Chain closes backward from the live price so the history joins
	// the walk without a gap.
	closes := make([]float64, barPreload)
	closes[barPreload-1] = price
	for i := barPreload - 2; i >= 0; i-- {
		closes[i] = closes[i+1] - (s.rng.Float64()*2-1)*vol*3
	}

	step := series.tf.Duration()
	start := time.Now().Add(-time.Duration(barPreload) * step)
	for i, c := range closes {
		open := c
		if i > 0 {
			open = closes[i-1]
		}
		series.append(bar{
			bucket:  bucketFor(start.Add(time.Duration(i)*step), series.tf),
			open:    open,
			high:    math.Max(open, c) + s.rng.Float64()*vol,
			low:     math.Min(open, c) - s.rng.Float64()*vol,
			closePx: c,
		})
	}
}
