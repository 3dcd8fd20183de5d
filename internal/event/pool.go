package event

import (
	"sync"
)

// quoteEventPool recycles QuoteEvents, the only high-rate event type.
// Use this to reduce GC pressure in the hotpath.
//
// Usage:
//
//	ev := AcquireQuoteEvent()
//	ev.Symbol = "EURUSD"
//	// ... emit and process ...
//	ReleaseQuoteEvent(ev)  // Return to pool after processing
var quoteEventPool = sync.Pool{
	New: func() interface{} {
		return &QuoteEvent{}
	},
}

// AcquireQuoteEvent gets a QuoteEvent from the pool.
// The returned event has zero values and must be initialized.
func AcquireQuoteEvent() *QuoteEvent {
	return quoteEventPool.Get().(*QuoteEvent)
}

// ReleaseQuoteEvent returns a QuoteEvent to the pool.
// The event is reset to zero values before being pooled.
func ReleaseQuoteEvent(ev *QuoteEvent) {
	if ev == nil {
		return
	}
	// Reset all fields to zero values
	ev.Seq = 0
	ev.Ts = 0
	ev.Symbol = ""

	quoteEventPool.Put(ev)
}

// Warmup pre-allocates event objects to reduce GC pressure at startup.
// It acquires and releases a batch of events. TimerEvents fire once a
// snapshot interval and are not pooled.
func Warmup() {
	const batchSize = 1000

	evs := make([]*QuoteEvent, 0, batchSize)
	for i := 0; i < batchSize; i++ {
		evs = append(evs, AcquireQuoteEvent())
	}
	for _, ev := range evs {
		ReleaseQuoteEvent(ev)
	}
}
