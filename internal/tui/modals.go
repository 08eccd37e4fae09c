package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"
)

func (m Model) viewHelp() string {
	bindings := []key.Binding{m.keys.Refresh, m.keys.Help, m.keys.Escape, m.keys.Quit}

	lines := []string{modalTitleStyle.Render("Keyboard Shortcuts")}
	for _, kb := range bindings {
		h := kb.Help()
		lines = append(lines, "  "+keyStyle.Width(6).Render(h.Key)+"  "+hintStyle.Render(h.Desc))
	}
	lines = append(lines, "", hintStyle.Render("Statistics refresh every second"))

	return m.centered(modalStyle.Render(strings.Join(lines, "\n")))
}

// centered places a rendered modal in the middle of the window.
func (m Model) centered(modal string) string {
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal)
}
