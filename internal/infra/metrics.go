package infra

import (
	"sync/atomic"
	"time"
)

// Metrics provides lightweight observability without external dependencies.
// Uses atomic operations for thread-safety.
type Metrics struct {
	// Counters
	eventsProcessed   atomic.Uint64
	ticksFetched      atomic.Uint64
	fetchFailures     atomic.Uint64
	staleServes       atomic.Uint64
	indicatorReads    atomic.Uint64
	indicatorFailures atomic.Uint64
	historySaves      atomic.Uint64
	historyDrops      atomic.Uint64
	historyReallocs   atomic.Uint64
	archiveWrites     atomic.Uint64
	archiveFailures   atomic.Uint64
	qualityAlerts     atomic.Uint64

	// Latency tracking (provider fetch round trips)
	latencySumNs atomic.Int64
	latencyCount atomic.Uint64

	// Gauges
	activeConnections atomic.Int32
}

// GlobalMetrics is the singleton metrics instance.
var GlobalMetrics = &Metrics{}

// RecordEvent records one processed engine event with its handling latency.
func (m *Metrics) RecordEvent(latencyNs int64) {
	m.eventsProcessed.Add(1)
	m.latencySumNs.Add(latencyNs)
	m.latencyCount.Add(1)
}

// RecordFetch records a successful provider fetch.
func (m *Metrics) RecordFetch() {
	m.ticksFetched.Add(1)
}

// RecordFetchFailure records a failed provider fetch.
func (m *Metrics) RecordFetchFailure() {
	m.fetchFailures.Add(1)
}

// RecordStaleServe records a read answered with a cached quote after a failed fetch.
func (m *Metrics) RecordStaleServe() {
	m.staleServes.Add(1)
}

// RecordIndicatorRead records a successful indicator value read.
func (m *Metrics) RecordIndicatorRead() {
	m.indicatorReads.Add(1)
}

// RecordIndicatorFailure records an indicator read answered with the sentinel.
func (m *Metrics) RecordIndicatorFailure() {
	m.indicatorFailures.Add(1)
}

// RecordHistorySave records a tick appended to an in-memory history.
func (m *Metrics) RecordHistorySave() {
	m.historySaves.Add(1)
}

// RecordHistoryDrop records a tick rejected by a full history.
func (m *Metrics) RecordHistoryDrop() {
	m.historyDrops.Add(1)
}

// RecordHistoryRealloc records a block growth of a history buffer.
func (m *Metrics) RecordHistoryRealloc() {
	m.historyReallocs.Add(1)
}

// RecordArchiveWrite records a tick persisted to storage.
func (m *Metrics) RecordArchiveWrite() {
	m.archiveWrites.Add(1)
}

// RecordArchiveFailure records a failed storage write.
func (m *Metrics) RecordArchiveFailure() {
	m.archiveFailures.Add(1)
}

// RecordQualityAlert records a quote quality warning (spread, staleness).
func (m *Metrics) RecordQualityAlert() {
	m.qualityAlerts.Add(1)
}

// IncrementConnections increments active connections by 1.
func (m *Metrics) IncrementConnections() {
	m.activeConnections.Add(1)
}

// DecrementConnections decrements active connections by 1.
func (m *Metrics) DecrementConnections() {
	m.activeConnections.Add(-1)
}

// MetricsSnapshot is a point-in-time view of all metrics.
type MetricsSnapshot struct {
	EventsProcessed   uint64    `json:"events_processed"`
	TicksFetched      uint64    `json:"ticks_fetched"`
	FetchFailures     uint64    `json:"fetch_failures"`
	StaleServes       uint64    `json:"stale_serves"`
	IndicatorReads    uint64    `json:"indicator_reads"`
	IndicatorFailures uint64    `json:"indicator_failures"`
	HistorySaves      uint64    `json:"history_saves"`
	HistoryDrops      uint64    `json:"history_drops"`
	HistoryReallocs   uint64    `json:"history_reallocs"`
	ArchiveWrites     uint64    `json:"archive_writes"`
	ArchiveFailures   uint64    `json:"archive_failures"`
	QualityAlerts     uint64    `json:"quality_alerts"`
	AvgLatencyNs      int64     `json:"avg_latency_ns"`
	ActiveConnections int32     `json:"active_connections"`
	Timestamp         time.Time `json:"timestamp"`
}

// Snapshot returns current metrics as a snapshot.
func (m *Metrics) Snapshot() MetricsSnapshot {
	var avgLatency int64
	count := m.latencyCount.Load()
	if count > 0 {
		avgLatency = m.latencySumNs.Load() / int64(count)
	}

	return MetricsSnapshot{
		EventsProcessed:   m.eventsProcessed.Load(),
		TicksFetched:      m.ticksFetched.Load(),
		FetchFailures:     m.fetchFailures.Load(),
		StaleServes:       m.staleServes.Load(),
		IndicatorReads:    m.indicatorReads.Load(),
		IndicatorFailures: m.indicatorFailures.Load(),
		HistorySaves:      m.historySaves.Load(),
		HistoryDrops:      m.historyDrops.Load(),
		HistoryReallocs:   m.historyReallocs.Load(),
		ArchiveWrites:     m.archiveWrites.Load(),
		ArchiveFailures:   m.archiveFailures.Load(),
		QualityAlerts:     m.qualityAlerts.Load(),
		AvgLatencyNs:      avgLatency,
		ActiveConnections: m.activeConnections.Load(),
		Timestamp:         time.Now(),
	}
}

// Reset clears all metrics (for testing).
func (m *Metrics) Reset() {
	m.eventsProcessed.Store(0)
	m.ticksFetched.Store(0)
	m.fetchFailures.Store(0)
	m.staleServes.Store(0)
	m.indicatorReads.Store(0)
	m.indicatorFailures.Store(0)
	m.historySaves.Store(0)
	m.historyDrops.Store(0)
	m.historyReallocs.Store(0)
	m.archiveWrites.Store(0)
	m.archiveFailures.Store(0)
	m.qualityAlerts.Store(0)
	m.latencySumNs.Store(0)
	m.latencyCount.Store(0)
	m.activeConnections.Store(0)
}
