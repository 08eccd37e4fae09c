package daemon

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"github.com/wellsgz/pktmon/internal/types"
)

const clearScreen = "\x1b[H\x1b[2J"

var panelStyle = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	Padding(0, 1)

// Display periodically prints an aggregator summary.
type Display struct {
	agg      *Aggregator
	iface    string
	interval time.Duration
	out      io.Writer
	clear    bool
	now      func() time.Time
}

// NewDisplay creates a renderer for agg that writes to out every interval.
func NewDisplay(agg *Aggregator, iface string, interval time.Duration, out io.Writer) *Display {
	return &Display{
		agg:      agg,
		iface:    iface,
		interval: interval,
		out:      out,
		clear:    isTerminal(out),
		now:      time.Now,
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(interface{ Fd() uintptr })
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Run renders on every tick until ctx is cancelled.
func (d *Display) Run(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	slog.Debug("display started", "interval", d.interval)

	for {
		select {
		case <-ctx.Done():
			slog.Debug("display stopped")
			return
		case <-ticker.C:
			d.tick()
		}
	}
}

// tick renders one cycle. A failing cycle never ends the loop.
func (d *Display) tick() {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("display cycle panicked", "panic", r)
		}
	}()

	var b strings.Builder
	if d.clear {
		b.WriteString(clearScreen)
	}
	b.WriteString(d.Render(d.agg.Snapshot(), d.now()))
	b.WriteString("\nPress Ctrl+C to stop the monitor...\n")

	if _, err := io.WriteString(d.out, b.String()); err != nil {
		slog.Error("failed to write statistics", "error", err)
	}
}

// Render formats snap as a bordered text panel.
func (d *Display) Render(snap types.StatisticsSnapshot, now time.Time) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Packet Monitor  %s  %s\n\n", d.iface, now.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Total packets:  %s\n", humanize.Comma(int64(snap.TotalPackets)))
	fmt.Fprintf(&b, "Total bytes:    %d (%s)\n", snap.TotalBytes, humanize.Bytes(snap.TotalBytes))
	fmt.Fprintf(&b, "Rate:           %.2f packets/s\n", snap.PacketRate)

	writeCounts(&b, "Network", snap.NetworkCounts())
	writeCounts(&b, "Transport", snap.TransportCounts())

	return panelStyle.Render(strings.TrimRight(b.String(), "\n"))
}

func writeCounts(b *strings.Builder, title string, counts []types.ProtocolCount) {
	fmt.Fprintf(b, "\n%s\n", title)
	if len(counts) == 0 {
		b.WriteString("  (none)\n")
		return
	}
	for _, c := range counts {
		fmt.Fprintf(b, "  %-6s %s\n", c.Protocol, humanize.Comma(int64(c.Count)))
	}
}
