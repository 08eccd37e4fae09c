package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"

	"github.com/wellsgz/pktmon/api"
	"github.com/wellsgz/pktmon/internal/client"
)

// pollInterval matches the daemon's default display refresh.
const pollInterval = time.Second

// View selects which screen is drawn.
type View int

const (
	ViewDashboard View = iota
	ViewHelp
)

// KeyMap holds the dashboard key bindings.
type KeyMap struct {
	Quit    key.Binding
	Refresh key.Binding
	Help    key.Binding
	Escape  key.Binding
}

var DefaultKeyMap = KeyMap{
	Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	Refresh: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh now")),
	Help:    key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "toggle help")),
	Escape:  key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "close help")),
}

type pollMsg time.Time

// statsMsg carries one poll result; err is set when the daemon could not
// be reached.
type statsMsg struct {
	stats  *api.StatsResult
	status *api.StatusResult
	err    error
}

// Model is the bubbletea model of the live dashboard.
type Model struct {
	client *client.Client
	keys   KeyMap

	currentView   View
	width, height int

	connected    bool
	lastError    string
	stats        *api.StatsResult
	daemonStatus *api.StatusResult
}

// New returns a dashboard polling the daemon at socketPath.
func New(socketPath string) Model {
	return Model{
		client:      client.New(socketPath),
		keys:        DefaultKeyMap,
		currentView: ViewDashboard,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(poll(m.client), schedulePoll())
}

func schedulePoll() tea.Cmd {
	return tea.Tick(pollInterval, func(t time.Time) tea.Msg { return pollMsg(t) })
}

// poll fetches status and totals. Connect redials after the daemon has
// dropped the connection.
func poll(c *client.Client) tea.Cmd {
	return func() tea.Msg {
		if err := c.Connect(); err != nil {
			return statsMsg{err: err}
		}
		var msg statsMsg
		if msg.status, msg.err = c.GetStatus(); msg.err != nil {
			return msg
		}
		msg.stats, msg.err = c.GetStats()
		return msg
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
	case pollMsg:
		return m, tea.Batch(poll(m.client), schedulePoll())
	case statsMsg:
		m.apply(msg)
	case tea.KeyMsg:
		if m.currentView == ViewHelp {
			if key.Matches(msg, m.keys.Escape, m.keys.Help, m.keys.Quit) {
				m.currentView = ViewDashboard
			}
			return m, nil
		}
		return m.onDashboardKey(msg)
	}
	return m, nil
}

func (m *Model) apply(msg statsMsg) {
	m.connected = msg.err == nil
	if msg.err != nil {
		m.lastError = msg.err.Error()
		return
	}
	m.lastError = ""
	m.stats, m.daemonStatus = msg.stats, msg.status
}

func (m Model) onDashboardKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.client.Close()
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.currentView = ViewHelp
	case key.Matches(msg, m.keys.Refresh):
		return m, poll(m.client)
	}
	return m, nil
}

func (m Model) View() string {
	switch {
	case m.width == 0:
		return "Loading..."
	case m.currentView == ViewHelp:
		return m.viewHelp()
	default:
		return m.viewDashboard()
	}
}

// FormatBytes renders a byte count in SI units.
func FormatBytes(b uint64) string {
	return humanize.Bytes(b)
}

// FormatRate renders a packet rate.
func FormatRate(r float64) string {
	return fmt.Sprintf("%s pkt/s", humanize.CommafWithDigits(r, 2))
}
