package service

import (
	"sync/atomic"
)

// Metrics counts how requests were served.
type Metrics struct {
	localHits   atomic.Uint64
	localMisses atomic.Uint64

	networkFetches atomic.Uint64
	networkErrors  atomic.Uint64
	storeErrors    atomic.Uint64

	queuedWrites   atomic.Uint64
	replayedWrites atomic.Uint64
	failedReplays  atomic.Uint64
}

func NewMetrics() *Metrics {
	return &Metrics{}
}

func (m *Metrics) RecordLocalHit()     { m.localHits.Add(1) }
func (m *Metrics) RecordLocalMiss()    { m.localMisses.Add(1) }
func (m *Metrics) RecordNetworkFetch() { m.networkFetches.Add(1) }
func (m *Metrics) RecordNetworkError() { m.networkErrors.Add(1) }
func (m *Metrics) RecordStoreError()   { m.storeErrors.Add(1) }
func (m *Metrics) RecordQueuedWrite()  { m.queuedWrites.Add(1) }
func (m *Metrics) RecordReplay()       { m.replayedWrites.Add(1) }
func (m *Metrics) RecordFailedReplay() { m.failedReplays.Add(1) }

// GetSnapshot returns a snapshot of current metrics
func (m *Metrics) GetSnapshot() MetricsSnapshot {
	hits := m.localHits.Load()
	misses := m.localMisses.Load()

	var hitRate float64
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}

	return MetricsSnapshot{
		LocalHits:      hits,
		LocalMisses:    misses,
		LocalHitRate:   hitRate,
		NetworkFetches: m.networkFetches.Load(),
		NetworkErrors:  m.networkErrors.Load(),
		StoreErrors:    m.storeErrors.Load(),
		QueuedWrites:   m.queuedWrites.Load(),
		ReplayedWrites: m.replayedWrites.Load(),
		FailedReplays:  m.failedReplays.Load(),
	}
}

// MetricsSnapshot represents a point-in-time snapshot of metrics
type MetricsSnapshot struct {
	LocalHits    uint64  `json:"local_hits"`
	LocalMisses  uint64  `json:"local_misses"`
	LocalHitRate float64 `json:"local_hit_rate"` // percentage

	NetworkFetches uint64 `json:"network_fetches"`
	NetworkErrors  uint64 `json:"network_errors"`
	StoreErrors    uint64 `json:"store_errors"`

	QueuedWrites   uint64 `json:"queued_writes"`
	ReplayedWrites uint64 `json:"replayed_writes"`
	FailedReplays  uint64 `json:"failed_replays"`
}
