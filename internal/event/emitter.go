package event

import (
	"context"
	"sync"
	"time"
)

// Emitter assigns contiguous sequence numbers and delivers events to
// the sequencer inbox. Every producer goes through the same Emitter;
// the mutex holds seq assignment and delivery together so the
// sequencer never observes a gap.
type Emitter struct {
	mu    sync.Mutex
	next  uint64
	inbox chan<- Event
}

// NewEmitter wires an emitter to the sequencer inbox. Sequence numbers
// start at 1.
func NewEmitter(inbox chan<- Event) *Emitter {
	return &Emitter{next: 1, inbox: inbox}
}

// Emit stamps ev and delivers it. Blocks while the inbox is full.
// Returns false only when ctx ends first; the sequence number is not
// consumed in that case.
func (e *Emitter) Emit(ctx context.Context, ev Event) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	ev.SetSeq(e.next)
	ev.SetTs(time.Now().UnixMilli())

	select {
	case e.inbox <- ev:
		e.next++
		return true
	case <-ctx.Done():
		return false
	}
}
