package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/wellsgz/pktmon/api"
)

// viewDashboard renders the main dashboard
func (m Model) viewDashboard() string {
	var b strings.Builder

	// Header
	b.WriteString(m.renderHeader())
	b.WriteString("\n")

	if m.connected && m.stats != nil {
		b.WriteString(panelStyle.Width(m.width - 2).Render(m.renderTotals()))
		b.WriteString("\n")

		// Breakdowns side by side
		leftWidth := m.width/2 - 2
		rightWidth := m.width - leftWidth - 4

		network := panelStyle.Width(leftWidth).Render(
			m.renderBreakdown("Network", m.stats.Network, leftWidth-4, networkBarStyle))
		transport := panelStyle.Width(rightWidth).Render(
			m.renderBreakdown("Transport", m.stats.Transport, rightWidth-4, transportBarStyle))

		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, network, " ", transport))
	} else {
		errMsg := alertStyle.Render("⚠ Not connected to daemon")
		if m.lastError != "" {
			errMsg += "\n" + labelStyle.Render(m.lastError)
		}
		b.WriteString(panelStyle.Width(m.width - 2).Render(errMsg))
	}

	b.WriteString("\n")

	// Help bar
	b.WriteString(m.renderHelpBar())

	return b.String()
}

// renderHeader renders the top header bar
func (m Model) renderHeader() string {
	var parts []string

	parts = append(parts, titleStyle.Render("pktmon"))

	if m.daemonStatus != nil && m.daemonStatus.Source != "" {
		parts = append(parts, labelStyle.Render("Source: ")+valueStyle.Render(m.daemonStatus.Source))
	}

	// Connection status
	if m.connected {
		state := "Connected"
		if m.daemonStatus != nil {
			state = m.daemonStatus.State
		}
		parts = append(parts, upStyle.Render(glyphUp+" "+state))
	} else {
		parts = append(parts, downStyle.Render(glyphDown+" Disconnected"))
	}

	// Uptime
	if m.daemonStatus != nil && m.daemonStatus.Uptime != "" {
		parts = append(parts, labelStyle.Render("Uptime: ")+valueStyle.Render(m.daemonStatus.Uptime))
	}

	return lipgloss.JoinHorizontal(lipgloss.Center, "  "+strings.Join(parts, "  │  "))
}

// renderTotals renders the session totals panel
func (m Model) renderTotals() string {
	var b strings.Builder

	b.WriteString(panelTitleStyle.Render("Totals"))
	b.WriteString("\n\n")

	stats := m.stats
	b.WriteString(fmt.Sprintf("  Packets: %s\n", valueStyle.Render(humanize.Comma(int64(stats.TotalPackets)))))
	b.WriteString(fmt.Sprintf("  Bytes:   %s\n", valueStyle.Render(FormatBytes(stats.TotalBytes))))
	b.WriteString(fmt.Sprintf("  Rate:    %s\n", rateStyle.Render(FormatRate(stats.PacketRate))))

	if st := m.daemonStatus; st != nil && st.FailedFrames > 0 {
		b.WriteString(fmt.Sprintf("  Failed:  %s\n", alertStyle.Render(humanize.Comma(int64(st.FailedFrames)))))
	}

	return strings.TrimRight(b.String(), "\n")
}

// renderBreakdown renders per-protocol counts with bars proportional to
// the busiest protocol.
func (m Model) renderBreakdown(title string, counts []api.ProtocolCount, width int, bar lipgloss.Style) string {
	var b strings.Builder

	b.WriteString(panelTitleStyle.Render(title))
	b.WriteString("\n\n")

	if len(counts) == 0 {
		b.WriteString(labelStyle.Render("No packets"))
		return b.String()
	}

	var maxCount uint64
	for _, c := range counts {
		if c.Count > maxCount {
			maxCount = c.Count
		}
	}

	// Leave room for the protocol label and the count
	barWidth := width - 20
	if barWidth < 10 {
		barWidth = 10
	}

	for _, c := range counts {
		n := int(float64(c.Count) / float64(maxCount) * float64(barWidth))
		if n == 0 && c.Count > 0 {
			n = 1
		}
		b.WriteString(fmt.Sprintf("  %s %s%s %s\n",
			labelStyle.Render(fmt.Sprintf("%-6s", c.Protocol)),
			bar.Render(strings.Repeat(glyphBar, n)),
			labelStyle.Render(strings.Repeat(glyphTrack, barWidth-n)),
			valueStyle.Render(humanize.Comma(int64(c.Count)))))
	}

	return strings.TrimRight(b.String(), "\n")
}

// renderHelpBar renders the bottom help bar
func (m Model) renderHelpBar() string {
	keys := []string{
		keyStyle.Render("q") + hintStyle.Render(" quit"),
		keyStyle.Render("r") + hintStyle.Render(" refresh"),
		keyStyle.Render("?") + hintStyle.Render(" help"),
	}
	return "  " + strings.Join(keys, "  ")
}
