// Package tui provides the terminal dashboard for pktmon.
package tui

import "github.com/charmbracelet/lipgloss"

var (
	colorBrand   = lipgloss.Color("#7C3AED")
	colorNetwork = lipgloss.Color("#10B981")
	colorLayer4  = lipgloss.Color("#F59E0B")
	colorAlert   = lipgloss.Color("#EF4444")
	colorDim     = lipgloss.Color("#6B7280")
	colorText    = lipgloss.Color("#F3F4F6")
	colorSurface = lipgloss.Color("#1F2937")
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).
			Foreground(colorBrand).Background(colorSurface).Padding(0, 1)

	upStyle   = lipgloss.NewStyle().Bold(true).Foreground(colorNetwork)
	downStyle = lipgloss.NewStyle().Bold(true).Foreground(colorAlert)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).BorderForeground(colorDim).Padding(0, 1)
	panelTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(colorBrand)

	labelStyle = lipgloss.NewStyle().Foreground(colorDim)
	valueStyle = lipgloss.NewStyle().Bold(true).Foreground(colorText)
	rateStyle  = lipgloss.NewStyle().Bold(true).Foreground(colorLayer4)
	alertStyle = lipgloss.NewStyle().Bold(true).Foreground(colorAlert)

	// Bar colours follow the layer being shown.
	networkBarStyle   = lipgloss.NewStyle().Foreground(colorNetwork)
	transportBarStyle = lipgloss.NewStyle().Foreground(colorLayer4)

	keyStyle  = lipgloss.NewStyle().Bold(true).Foreground(colorBrand)
	hintStyle = lipgloss.NewStyle().Foreground(colorDim)

	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).BorderForeground(colorBrand).
			Padding(1, 2).Background(colorSurface)
	modalTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(colorBrand).MarginBottom(1)
)

const (
	glyphUp    = "●"
	glyphDown  = "○"
	glyphBar   = "█"
	glyphTrack = "░"
)
