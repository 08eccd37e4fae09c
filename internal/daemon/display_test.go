package daemon

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestDisplayRender(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 3, 14, 9, 26, 50, 0, time.Local)}
	agg := newAggregatorWithClock(clock.Now)
	for _, rec := range scenarioRecords() {
		agg.Record(rec)
	}
	clock.Advance(3 * time.Second)

	d := NewDisplay(agg, "eth0", time.Second, &bytes.Buffer{})
	out := d.Render(agg.Snapshot(), clock.Now())

	assert.Contains(t, out, "eth0")
	assert.Contains(t, out, "2025-03-14 09:26:53")
	assert.Contains(t, out, "Total packets:  3")
	assert.Contains(t, out, "Total bytes:    200 (200 B)")
	assert.Contains(t, out, "Rate:           1.00 packets/s")
	assert.Contains(t, out, "IPv4   1")
	assert.Contains(t, out, "IPv6   1")
	assert.Contains(t, out, "ARP    1")
	assert.Contains(t, out, "TCP    1")
	assert.Contains(t, out, "UDP    1")
	assert.Less(t, strings.Index(out, "Network"), strings.Index(out, "Transport"))
}

func TestDisplayRenderEmpty(t *testing.T) {
	agg := NewAggregator()
	d := NewDisplay(agg, "eth0", time.Second, &bytes.Buffer{})
	out := d.Render(agg.Snapshot(), time.Now())

	assert.Contains(t, out, "Total packets:  0")
	assert.Contains(t, out, "(none)")
}

func TestDisplayRunUntilCancelled(t *testing.T) {
	agg := NewAggregator()
	agg.Record(scenarioRecords()[0])

	var buf syncBuffer
	d := NewDisplay(agg, "eth0", 5*time.Millisecond, &buf)
	require.False(t, d.clear, "buffer is not a terminal")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return strings.Count(buf.String(), "Packet Monitor") >= 2
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("display did not stop")
	}

	assert.NotContains(t, buf.String(), clearScreen)
	assert.Contains(t, buf.String(), "Press Ctrl+C")
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, assert.AnError
}

func TestDisplayTickSurvivesFailures(t *testing.T) {
	d := NewDisplay(NewAggregator(), "eth0", time.Second, failingWriter{})
	assert.NotPanics(t, d.tick)

	d = NewDisplay(nil, "eth0", time.Second, &bytes.Buffer{})
	assert.NotPanics(t, d.tick, "nil aggregator panics inside the cycle")
}
