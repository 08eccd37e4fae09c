// Package daemon implements the pktmond capture pipeline.
package daemon

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/wellsgz/pktmon/internal/types"
)

// Aggregator accumulates running totals and per-protocol counts.
// Record and Snapshot are safe for concurrent use.
type Aggregator struct {
	now     func() time.Time
	started time.Time

	packets atomic.Uint64
	bytes   atomic.Uint64

	mu        sync.Mutex
	network   map[string]uint64
	transport map[string]uint64
}

// NewAggregator creates an aggregator whose rate clock starts now.
func NewAggregator() *Aggregator {
	return newAggregatorWithClock(time.Now)
}

func newAggregatorWithClock(now func() time.Time) *Aggregator {
	return &Aggregator{
		now:       now,
		started:   now(),
		network:   make(map[string]uint64),
		transport: make(map[string]uint64),
	}
}

// Record counts one decoded frame.
func (a *Aggregator) Record(rec types.PacketRecord) {
	a.packets.Add(1)
	a.bytes.Add(uint64(rec.FrameSize()))

	if rec.Network == nil && rec.Transport == nil {
		return
	}

	a.mu.Lock()
	if rec.Network != nil {
		a.network[string(rec.Network.Protocol)]++
	}
	if rec.Transport != nil {
		a.transport[string(rec.Transport.Protocol)]++
	}
	a.mu.Unlock()
}

// Snapshot returns a copy of the current counters.
func (a *Aggregator) Snapshot() types.StatisticsSnapshot {
	now := a.now()

	snap := types.StatisticsSnapshot{
		StartedAt:    a.started,
		TakenAt:      now,
		Elapsed:      now.Sub(a.started),
		TotalPackets: a.packets.Load(),
		TotalBytes:   a.bytes.Load(),
	}

	a.mu.Lock()
	snap.Network = make(map[string]uint64, len(a.network))
	for k, v := range a.network {
		snap.Network[k] = v
	}
	snap.Transport = make(map[string]uint64, len(a.transport))
	for k, v := range a.transport {
		snap.Transport[k] = v
	}
	a.mu.Unlock()

	if secs := snap.Elapsed.Seconds(); secs > 0 {
		snap.PacketRate = float64(snap.TotalPackets) / secs
	}
	return snap
}
