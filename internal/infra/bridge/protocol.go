package bridge

import (
	"time"

	"fxlink/internal/domain"

	"github.com/shopspring/decimal"
)

// Wire format of the terminal bridge: JSON text frames over one
// WebSocket. The bridge plugin inside the terminal pushes "tick" and
// "spec" frames on its own; everything else is request/response
// correlated by ID.

const (
	frameTick     = "tick"
	frameSpec     = "spec"
	frameResponse = "response"
)

const (
	opSubscribe       = "subscribe"
	opIndicatorDirect = "indicator"
	opObtainHandle    = "handle_obtain"
	opCopyBuffer      = "buffer_copy"
	opReleaseHandle   = "handle_release"
)

// Error codes the bridge returns in a failed response.
const (
	codeInvalidHandle = "invalid_handle"
	codeUnknownSymbol = "unknown_symbol"
	codeOffline       = "offline"
)

type tickPayload struct {
	Symbol string          `json:"symbol"`
	Ask    decimal.Decimal `json:"ask"`
	Bid    decimal.Decimal `json:"bid"`
	Volume uint64          `json:"volume"`
	Ts     int64           `json:"ts"` // unix milliseconds
}

func (p *tickPayload) tick() domain.Tick {
	return domain.Tick{
		Ask:    p.Ask,
		Bid:    p.Bid,
		Volume: p.Volume,
		Time:   time.UnixMilli(p.Ts),
	}
}

// serverFrame is the envelope every inbound message parses into.
// Unused fields stay nil for a given frame type.
type serverFrame struct {
	Type string `json:"type"`
	ID   string `json:"id,omitempty"`

	Tick *tickPayload           `json:"tick,omitempty"`
	Spec *domain.InstrumentSpec `json:"spec,omitempty"`

	OK     bool      `json:"ok,omitempty"`
	Error  string    `json:"error,omitempty"`
	Value  *float64  `json:"value,omitempty"`
	Values []float64 `json:"values,omitempty"`
	Handle *int64    `json:"handle,omitempty"`
}

// request is the envelope for every outbound message.
type request struct {
	Op string `json:"op"`
	ID string `json:"id,omitempty"`

	// subscribe
	Symbols []string `json:"symbols,omitempty"`
	Token   string   `json:"token,omitempty"`

	// indicator ops. Line and Shift zero are meaningful, so no
	// omitempty on those.
	Symbol    string `json:"symbol,omitempty"`
	Timeframe string `json:"timeframe,omitempty"`
	Kind      string `json:"kind,omitempty"`
	KPeriod   int    `json:"k_period,omitempty"`
	DPeriod   int    `json:"d_period,omitempty"`
	Slowing   int    `json:"slowing,omitempty"`
	Line      int    `json:"line"`
	Shift     int    `json:"shift"`
	Count     int    `json:"count,omitempty"`
	Handle    int64  `json:"handle,omitempty"`
}
