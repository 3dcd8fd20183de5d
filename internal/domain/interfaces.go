package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// MarketDataProvider is the quote and metadata boundary to the terminal.
// Calls either succeed promptly or fail promptly; there is no caller-side
// cancellation at this level.
type MarketDataProvider interface {
	FetchTick(symbol string) (Tick, error)
	FetchDouble(symbol string, field DoubleField) (decimal.Decimal, error)
	FetchInteger(symbol string, field IntegerField) (int64, error)
}

// DirectIndicatorAPI is the first-generation indicator convention: one
// synchronous call returns one value. shift counts bars back from the
// forming bar (shift 0).
type DirectIndicatorAPI interface {
	FetchIndicatorDirect(symbol string, tf Timeframe, spec IndicatorSpec, line, shift int) (float64, error)
}

// BufferIndicatorAPI is the second-generation convention: obtain a
// process-wide handle for a computation, then copy values out of its
// line buffers. CopyBuffer returns values[i] at shift+i, so values[0]
// is the requested shift and later entries walk back in time.
type BufferIndicatorAPI interface {
	ObtainIndicatorHandle(symbol string, tf Timeframe, spec IndicatorSpec) (IndicatorHandle, error)
	CopyBuffer(handle IndicatorHandle, line, shift, count int) ([]float64, error)
	ReleaseIndicatorHandle(handle IndicatorHandle) error
}

// TerminalFeed manages the lifecycle of a terminal connection
type TerminalFeed interface {
	Connect(ctx context.Context) error
	Disconnect()
	IsConnected() bool
}

// TerminalProvider is the full surface a terminal implementation exposes
type TerminalProvider interface {
	MarketDataProvider
	DirectIndicatorAPI
	BufferIndicatorAPI
	TerminalFeed
}
