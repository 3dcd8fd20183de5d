package infra

import (
	"testing"
)

func TestMetrics_RecordEvent(t *testing.T) {
	m := &Metrics{}

	m.RecordEvent(1000)
	m.RecordEvent(2000)
	m.RecordEvent(3000)

	snap := m.Snapshot()

	if snap.EventsProcessed != 3 {
		t.Errorf("Expected 3 events, got %d", snap.EventsProcessed)
	}

	// Average latency: (1000 + 2000 + 3000) / 3 = 2000
	if snap.AvgLatencyNs != 2000 {
		t.Errorf("Expected avg latency 2000, got %d", snap.AvgLatencyNs)
	}
}

func TestMetrics_FetchCounters(t *testing.T) {
	m := &Metrics{}

	m.RecordFetch()
	m.RecordFetch()
	m.RecordFetchFailure()
	m.RecordStaleServe()

	snap := m.Snapshot()
	if snap.TicksFetched != 2 {
		t.Errorf("Expected 2 fetches, got %d", snap.TicksFetched)
	}
	if snap.FetchFailures != 1 {
		t.Errorf("Expected 1 failure, got %d", snap.FetchFailures)
	}
	if snap.StaleServes != 1 {
		t.Errorf("Expected 1 stale serve, got %d", snap.StaleServes)
	}
}

func TestMetrics_HistoryCounters(t *testing.T) {
	m := &Metrics{}

	m.RecordHistorySave()
	m.RecordHistorySave()
	m.RecordHistoryDrop()

	snap := m.Snapshot()
	if snap.HistorySaves != 2 || snap.HistoryDrops != 1 {
		t.Errorf("history counters = %d/%d, want 2/1", snap.HistorySaves, snap.HistoryDrops)
	}
}

func TestMetrics_Connections(t *testing.T) {
	m := &Metrics{}

	m.IncrementConnections()
	m.IncrementConnections()
	m.IncrementConnections()

	snap := m.Snapshot()
	if snap.ActiveConnections != 3 {
		t.Errorf("Expected 3 connections, got %d", snap.ActiveConnections)
	}

	m.DecrementConnections()
	snap = m.Snapshot()
	if snap.ActiveConnections != 2 {
		t.Errorf("Expected 2 connections, got %d", snap.ActiveConnections)
	}
}

func TestMetrics_Reset(t *testing.T) {
	m := &Metrics{}

	m.RecordEvent(1000)
	m.RecordFetchFailure()
	m.RecordIndicatorRead()
	m.RecordQualityAlert()
	m.IncrementConnections()

	m.Reset()
	snap := m.Snapshot()

	if snap.EventsProcessed != 0 {
		t.Error("Expected 0 events after reset")
	}
	if snap.FetchFailures != 0 {
		t.Error("Expected 0 fetch failures after reset")
	}
	if snap.IndicatorReads != 0 {
		t.Error("Expected 0 indicator reads after reset")
	}
	if snap.QualityAlerts != 0 {
		t.Error("Expected 0 quality alerts after reset")
	}
	if snap.ActiveConnections != 0 {
		t.Error("Expected 0 connections after reset")
	}
}
