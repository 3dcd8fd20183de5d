// Package indicator reads terminal-computed technical indicators.
//
// Terminals expose indicators in one of two styles: older builds return
// a value per call, newer builds hand out an indicator handle whose
// buffers are copied one value at a time. Both styles are wrapped
// behind ValueSource so the concrete indicators never care which
// terminal they run against.
package indicator

import (
	"errors"
	"log/slog"

	"fxlink/internal/domain"
	"fxlink/internal/infra"
)

// ValueSource yields a single indicator value per read.
type ValueSource interface {
	Value(line, shift int) (float64, error)
	// UpdateSpec swaps the indicator parameters. Takes effect on the
	// next read.
	UpdateSpec(spec domain.IndicatorSpec)
}

// ==================================================
// Direct source (call-per-value terminals)
// ==================================================

type directSource struct {
	api    domain.DirectIndicatorAPI
	symbol string
	tf     domain.Timeframe
	spec   domain.IndicatorSpec
}

func newDirectSource(api domain.DirectIndicatorAPI, symbol string, tf domain.Timeframe, spec domain.IndicatorSpec) *directSource {
	return &directSource{api: api, symbol: symbol, tf: tf, spec: spec}
}

func (d *directSource) Value(line, shift int) (float64, error) {
	return d.api.FetchIndicatorDirect(d.symbol, d.tf, d.spec, line, shift)
}

func (d *directSource) UpdateSpec(spec domain.IndicatorSpec) {
	d.spec = spec
}

// ==================================================
// Buffered source (handle-and-copy terminals)
// ==================================================

type bufferedSource struct {
	api    domain.BufferIndicatorAPI
	symbol string
	tf     domain.Timeframe
	spec   domain.IndicatorSpec

	handle domain.IndicatorHandle
	valid  bool
}

func newBufferedSource(api domain.BufferIndicatorAPI, symbol string, tf domain.Timeframe, spec domain.IndicatorSpec) *bufferedSource {
	return &bufferedSource{
		api:    api,
		symbol: symbol,
		tf:     tf,
		spec:   spec,
		handle: domain.InvalidHandle,
	}
}

func (b *bufferedSource) Value(line, shift int) (float64, error) {
	// 1. Make sure we hold a live handle
	if !b.valid {
		h, err := b.api.ObtainIndicatorHandle(b.symbol, b.tf, b.spec)
		if err != nil {
			return 0, err
		}
		b.handle = h
		b.valid = true
	}

	// 2. Copy exactly one value out of the terminal buffer
	values, err := b.api.CopyBuffer(b.handle, line, shift, 1)
	if err != nil {
		// A dead handle is re-obtained on the next read. Data errors
		// (missing history etc.) keep the handle.
		if errors.Is(err, domain.ErrInvalidHandle) {
			b.valid = false
			b.handle = domain.InvalidHandle
		}
		return 0, err
	}
	if len(values) < 1 {
		return 0, domain.ErrShortBuffer
	}
	return values[0], nil
}

func (b *bufferedSource) UpdateSpec(spec domain.IndicatorSpec) {
	// The handle is keyed by the parameters, so it cannot survive a
	// parameter change. Release is best-effort.
	if b.valid {
		_ = b.api.ReleaseIndicatorHandle(b.handle)
	}
	b.spec = spec
	b.valid = false
	b.handle = domain.InvalidHandle
}

// ==================================================
// Indicator base
// ==================================================

// Indicator is the shared core of every concrete indicator. It owns the
// identity (symbol, timeframe, parameters) and turns source errors into
// the EmptyValue sentinel so callers branch on the value alone.
//
// Not safe for concurrent use. Reads happen on the sequencer goroutine.
type Indicator struct {
	name   string
	symbol string
	tf     domain.Timeframe
	spec   domain.IndicatorSpec
	src    ValueSource
	log    *slog.Logger
}

func newIndicator(name, symbol string, tf domain.Timeframe, spec domain.IndicatorSpec, src ValueSource, log *slog.Logger) Indicator {
	if log == nil {
		log = slog.Default()
	}
	return Indicator{
		name:   name,
		symbol: symbol,
		tf:     tf,
		spec:   spec,
		src:    src,
		log:    log,
	}
}

func (i *Indicator) Name() string              { return i.name }
func (i *Indicator) Symbol() string            { return i.symbol }
func (i *Indicator) Timeframe() domain.Timeframe { return i.tf }
func (i *Indicator) Spec() domain.IndicatorSpec  { return i.spec }

// value reads one indicator value. Any failure is logged and collapsed
// into EmptyValue; the indicator state is left untouched.
func (i *Indicator) value(line, shift int) float64 {
	v, err := i.src.Value(line, shift)
	if err != nil {
		infra.GlobalMetrics.RecordIndicatorFailure()
		i.log.Warn("indicator read failed",
			slog.String("indicator", i.name),
			slog.String("symbol", i.symbol),
			slog.Int("line", line),
			slog.Int("shift", shift),
			slog.Any("error", err))
		return domain.EmptyValue
	}
	infra.GlobalMetrics.RecordIndicatorRead()
	return v
}

func (i *Indicator) setSpec(spec domain.IndicatorSpec) {
	i.spec = spec
	i.src.UpdateSpec(spec)
}
