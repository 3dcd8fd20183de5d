package market

import (
	"log/slog"

	"fxlink/internal/domain"
	"fxlink/internal/infra"
)

// tickBlock is the allocation granularity of the history buffer
const tickBlock = 100

// TickHistory is an append-only store of observed ticks. The backing
// buffer grows by whole blocks only when the append cursor reaches
// capacity, so sustained appends reallocate rarely. A configurable
// budget caps retention; allocator failure itself is not recoverable.
type TickHistory struct {
	buf      []domain.Tick
	next     int // append cursor; equals the number of saved ticks
	maxTicks int // retention budget, 0 = unbounded
	reallocs uint64
	warned   bool
	log      *slog.Logger
}

// NewTickHistory creates a history with one block pre-allocated.
// maxTicks limits how many ticks may be retained (0 = unbounded).
func NewTickHistory(maxTicks int, log *slog.Logger) *TickHistory {
	if log == nil {
		log = slog.Default()
	}
	return &TickHistory{
		buf:      make([]domain.Tick, tickBlock),
		maxTicks: maxTicks,
		log:      log,
	}
}

// Append stores t at the cursor and advances it. It reports false when
// the retention budget is exhausted; stored ticks stay untouched then.
func (h *TickHistory) Append(t domain.Tick) bool {
	if h.maxTicks > 0 && h.next >= h.maxTicks {
		if !h.warned {
			h.log.Warn("tick history budget exhausted, dropping ticks",
				slog.Int("len", h.next),
				slog.Int("max", h.maxTicks))
			h.warned = true
		} else {
			h.log.Debug("tick history full, tick dropped", slog.Int("max", h.maxTicks))
		}
		return false
	}

	if h.next == len(h.buf) {
		h.grow()
	}

	h.buf[h.next] = t
	h.next++
	return true
}

func (h *TickHistory) grow() {
	next := make([]domain.Tick, len(h.buf)+tickBlock)
	copy(next, h.buf)
	h.buf = next
	h.reallocs++
	infra.GlobalMetrics.RecordHistoryRealloc()
}

// Len returns the number of saved ticks
func (h *TickHistory) Len() int {
	return h.next
}

// Cap returns the current buffer capacity in ticks
func (h *TickHistory) Cap() int {
	return len(h.buf)
}

// At returns the i-th saved tick; index 0 is the oldest
func (h *TickHistory) At(i int) (domain.Tick, bool) {
	if i < 0 || i >= h.next {
		return domain.Tick{}, false
	}
	return h.buf[i], true
}

// Reallocs returns how many block growths have happened since creation
func (h *TickHistory) Reallocs() uint64 {
	return h.reallocs
}

// Reset drops all saved ticks and shrinks capacity back to one block
func (h *TickHistory) Reset() {
	h.buf = make([]domain.Tick, tickBlock)
	h.next = 0
	h.warned = false
}
