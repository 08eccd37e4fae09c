package daemon

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wellsgz/pktmon/internal/decoder"
	"github.com/wellsgz/pktmon/internal/testframes"
	"github.com/wellsgz/pktmon/internal/types"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func scenarioRecords() []types.PacketRecord {
	ts := time.Now()
	return []types.PacketRecord{
		decoder.Decode(testframes.ARP(), ts),
		decoder.Decode(testframes.IPv4TCP(51000, 443, testframes.Payload(6)), ts),
		decoder.Decode(testframes.IPv6UDP(5353, 53, testframes.Payload(18)), ts),
	}
}

func TestAggregatorTotals(t *testing.T) {
	agg := NewAggregator()
	for _, rec := range scenarioRecords() {
		agg.Record(rec)
	}

	snap := agg.Snapshot()
	assert.Equal(t, uint64(3), snap.TotalPackets)
	assert.Equal(t, uint64(60+60+80), snap.TotalBytes)
	assert.Equal(t, map[string]uint64{"IPv4": 1, "IPv6": 1}, snap.Network)
	assert.Equal(t, map[string]uint64{"ARP": 1, "TCP": 1, "UDP": 1}, snap.Transport)
}

func TestAggregatorEmptyRecord(t *testing.T) {
	agg := NewAggregator()
	agg.Record(decoder.Decode([]byte{1, 2, 3}, time.Now()))

	snap := agg.Snapshot()
	assert.Equal(t, uint64(1), snap.TotalPackets)
	assert.Zero(t, snap.TotalBytes)
	assert.Empty(t, snap.Network)
	assert.Empty(t, snap.Transport)
}

func TestAggregatorConcurrentRecord(t *testing.T) {
	agg := NewAggregator()
	records := scenarioRecords()

	const workers, perWorker = 8, 500
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				agg.Record(records[i%len(records)])
				if i%100 == 0 {
					agg.Snapshot()
				}
			}
		}()
	}
	wg.Wait()

	snap := agg.Snapshot()
	assert.Equal(t, uint64(workers*perWorker), snap.TotalPackets)

	var transport uint64
	for _, n := range snap.Transport {
		transport += n
	}
	assert.Equal(t, snap.TotalPackets, transport)
}

func TestAggregatorRate(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)}
	agg := newAggregatorWithClock(clock.Now)

	assert.Zero(t, agg.Snapshot().PacketRate, "no time elapsed")

	for i := 0; i < 30; i++ {
		agg.Record(scenarioRecords()[1])
	}
	clock.Advance(10 * time.Second)

	snap := agg.Snapshot()
	assert.Equal(t, 10*time.Second, snap.Elapsed)
	assert.InDelta(t, 3.0, snap.PacketRate, 1e-9)

	clock.Advance(20 * time.Second)
	assert.InDelta(t, 1.0, agg.Snapshot().PacketRate, 1e-9)
}

func TestAggregatorSnapshotIsCopy(t *testing.T) {
	agg := NewAggregator()
	agg.Record(scenarioRecords()[1])

	snap := agg.Snapshot()
	snap.Network["IPv4"] = 100

	require.Equal(t, uint64(1), agg.Snapshot().Network["IPv4"])
}
