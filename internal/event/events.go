package event

// Type discriminates events in the sequencer's type switch.
type Type int

const (
	TypeQuote Type = iota + 1
	TypeTimer
)

func (t Type) String() string {
	switch t {
	case TypeQuote:
		return "QUOTE"
	case TypeTimer:
		return "TIMER"
	default:
		return "UNKNOWN"
	}
}

// Event is what flows through the sequencer inbox. Seq and Ts are
// stamped by the Emitter, never by producers.
type Event interface {
	GetSeq() uint64
	GetTs() int64
	GetType() Type
	SetSeq(seq uint64)
	SetTs(ts int64)
}

// BaseEvent carries the fields every event shares. Ts is unix
// milliseconds at emit time.
type BaseEvent struct {
	Seq uint64
	Ts  int64
}

func (e *BaseEvent) GetSeq() uint64    { return e.Seq }
func (e *BaseEvent) GetTs() int64      { return e.Ts }
func (e *BaseEvent) SetSeq(seq uint64) { e.Seq = seq }
func (e *BaseEvent) SetTs(ts int64)    { e.Ts = ts }

// QuoteEvent is a doorbell: a fresh quote exists for Symbol. It
// carries no prices; the handler pulls the quote itself so it always
// reads the newest state, not a stale payload.
type QuoteEvent struct {
	BaseEvent
	Symbol string
}

func (e *QuoteEvent) GetType() Type { return TypeQuote }

// TimerEvent drives periodic housekeeping.
type TimerEvent struct {
	BaseEvent
}

func (e *TimerEvent) GetType() Type { return TypeTimer }
