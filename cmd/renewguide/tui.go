package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/kart-io/logger"
	"github.com/kart-io/logger/core"

	"renewguide/internal/chat"
	"renewguide/internal/config"
	"renewguide/internal/status"
)

// backend is everything the panels call on the API client.
type backend interface {
	chat.Backend
	status.Backend
}

type model struct {
	cfg     config.Config
	backend backend
	log     core.Logger

	activeTab tabID
	// mountGen increments on every panel mount. Messages tagged with an older
	// generation belong to a torn-down panel and are ignored.
	mountGen    int
	mountCtx    context.Context
	mountCancel context.CancelFunc

	poller      *status.Poller
	pollInbound chan tea.Msg
	snapshot    status.Snapshot

	session *chat.Session

	statusLine  string
	quitConfirm bool

	width  int
	height int

	input      textinput.Model
	transcript viewport.Model
	spinner    spinner.Model

	theme uiTheme
}

type snapshotMsg struct {
	gen  int
	snap status.Snapshot
	// fromPoller marks updates read from pollInbound. Only those re-arm the
	// listener, so the channel never has more than one reader.
	fromPoller bool
}

type chatDoneMsg struct {
	gen      int
	accepted bool
}

func newModel(cfg config.Config, b backend, log core.Logger, initial tabID) model {
	input := textinput.New()
	input.Prompt = "❯ "
	input.CharLimit = 2000
	input.Placeholder = "Type your question..."

	sp := spinner.New()
	sp.Spinner = spinner.Points
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#22c55e"))

	transcript := viewport.New(0, 0)
	transcript.MouseWheelEnabled = true
	transcript.MouseWheelDelta = 4

	if !initial.valid() {
		initial = tabDashboard
	}
	if log == nil {
		log = logger.Global()
	}
	return model{
		cfg:        cfg,
		backend:    b,
		log:        log,
		activeTab:  initial,
		statusLine: "starting...",
		input:      input,
		transcript: transcript,
		spinner:    sp,
		theme:      newTheme(),
	}
}

// Init mounts the initial panel. bubbletea discards the model returned from
// Init, so the mount runs as the first message instead.
func (m model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		func() tea.Msg { return mountMsg{tab: m.activeTab} },
	)
}

type mountMsg struct {
	tab tabID
}

func waitPollMsg(ch <-chan tea.Msg) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		msg, ok := <-ch
		if !ok {
			return nil
		}
		return msg
	}
}

// mount builds the state owned by the active panel and starts its background
// work.
func (m *model) mount() tea.Cmd {
	m.mountGen++
	gen := m.mountGen
	m.mountCtx, m.mountCancel = context.WithCancel(context.Background())

	switch m.activeTab {
	case tabDashboard:
		inbound := make(chan tea.Msg, 32)
		p := status.NewPoller(m.backend,
			status.WithInterval(m.cfg.PollInterval),
			status.WithLogger(m.log),
			status.WithOnUpdate(func(snap status.Snapshot) {
				select {
				case inbound <- snapshotMsg{gen: gen, snap: snap, fromPoller: true}:
				default:
					// UI is behind; the next update carries newer state.
				}
			}),
		)
		m.poller = p
		m.pollInbound = inbound
		m.snapshot = p.Snapshot()
		if err := p.Start(m.mountCtx); err != nil {
			m.logError(err)
		}
		m.statusLine = "dashboard · checking system status"
		return waitPollMsg(inbound)
	case tabChatbot:
		m.session = chat.NewSession(m.backend, chat.WithLogger(m.log))
		m.input.Reset()
		m.resize()
		m.renderTranscript()
		m.statusLine = "chatbot ready"
		return m.input.Focus()
	default:
		m.statusLine = m.activeTab.info().label
	}
	return nil
}

// unmount tears down the active panel. The poller is stopped before its
// channel closes so no update is sent on a closed channel.
func (m *model) unmount() {
	if m.mountCancel != nil {
		m.mountCancel()
		m.mountCancel = nil
	}
	if m.poller != nil {
		m.poller.Stop()
		close(m.pollInbound)
		m.poller = nil
		m.pollInbound = nil
	}
	m.session = nil
	m.input.Blur()
}

func (m *model) switchTab(next tabID) tea.Cmd {
	if !next.valid() {
		next = tabDashboard
	}
	if next == m.activeTab && m.mountCancel != nil {
		return nil
	}
	m.unmount()
	m.activeTab = next
	m.log.Debugw("panel mounted", "panel", next.info().key)
	return m.mount()
}

// shutdown releases whatever the active panel holds. Called once the program exits.
func (m *model) shutdown() {
	m.unmount()
}

func (m model) refreshCmd() tea.Cmd {
	p, ctx, gen := m.poller, m.mountCtx, m.mountGen
	if p == nil {
		return nil
	}
	return func() tea.Msg {
		return snapshotMsg{gen: gen, snap: p.Refresh(ctx)}
	}
}

func (m model) completeCmd(turn chat.Turn) tea.Cmd {
	s, ctx, gen := m.session, m.mountCtx, m.mountGen
	return func() tea.Msg {
		return chatDoneMsg{gen: gen, accepted: s.Complete(ctx, turn)}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	switch msg := msg.(type) {
	case mountMsg:
		if m.mountCancel == nil {
			m.activeTab = msg.tab
			cmds = append(cmds, m.mount())
		}
	case snapshotMsg:
		if msg.gen != m.mountGen || m.poller == nil {
			break
		}
		m.snapshot = msg.snap
		switch {
		case msg.snap.Loading:
			m.statusLine = "checking system status..."
		case msg.snap.Error != "":
			m.statusLine = "status check failed: " + compactSingleLine(msg.snap.Error, 120)
		default:
			m.statusLine = "status updated " + shortTime(msg.snap.CheckedAt)
		}
		if msg.fromPoller {
			cmds = append(cmds, waitPollMsg(m.pollInbound))
		}
	case chatDoneMsg:
		if msg.gen != m.mountGen || m.session == nil {
			break
		}
		if !msg.accepted {
			m.log.Debugw("chat reply discarded", "gen", msg.gen)
		}
		if errText := m.session.LastError(); errText != "" {
			m.statusLine = "chat error: " + compactSingleLine(errText, 120)
		} else {
			m.statusLine = "reply received"
		}
		m.renderTranscript()
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
		if m.session != nil && m.session.InFlight() {
			m.renderTranscript()
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		m.renderTranscript()
	case tea.MouseMsg:
		if m.activeTab == tabChatbot {
			var cmd tea.Cmd
			m.transcript, cmd = m.transcript.Update(msg)
			cmds = append(cmds, cmd)
		}
	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, tea.Batch(cmds...)
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if key == "ctrl+c" {
		return m, tea.Quit
	}
	if m.quitConfirm {
		switch key {
		case "y", "Y", "enter":
			return m, tea.Quit
		case "n", "N", "esc":
			m.quitConfirm = false
			m.statusLine = "quit canceled"
		}
		return m, nil
	}

	switch key {
	case "tab":
		return m, m.switchTab((m.activeTab + 1) % tabCount)
	case "shift+tab":
		return m, m.switchTab((m.activeTab + tabCount - 1) % tabCount)
	}

	if m.activeTab == tabChatbot {
		return m.handleChatKey(msg)
	}

	switch key {
	case "q", "esc":
		m.beginQuitConfirm()
	case "up", "k":
		return m, m.switchTab((m.activeTab + tabCount - 1) % tabCount)
	case "down", "j":
		return m, m.switchTab((m.activeTab + 1) % tabCount)
	case "1", "2", "3", "4", "5", "6":
		return m, m.switchTab(tabID(key[0] - '1'))
	case "r":
		if m.activeTab == tabDashboard && m.poller != nil {
			m.snapshot.Loading = true
			m.statusLine = "refreshing..."
			return m, m.refreshCmd()
		}
	}
	return m, nil
}

func (m model) handleChatKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.session == nil {
		return m, nil
	}
	switch msg.String() {
	case "enter":
		turn, ok := m.session.Begin(m.input.Value())
		if !ok {
			return m, nil
		}
		m.input.SetValue("")
		m.statusLine = "generating an answer..."
		m.renderTranscript()
		return m, m.completeCmd(turn)
	case "ctrl+l":
		m.session.Clear()
		m.statusLine = "conversation cleared"
		m.renderTranscript()
		return m, nil
	case "esc":
		m.beginQuitConfirm()
		return m, nil
	case "pgup", "ctrl+b":
		m.transcript.LineUp(8)
		return m, nil
	case "pgdown", "ctrl+f":
		m.transcript.LineDown(8)
		return m, nil
	case "up":
		if strings.TrimSpace(m.input.Value()) == "" {
			m.transcript.LineUp(4)
			return m, nil
		}
	case "down":
		if strings.TrimSpace(m.input.Value()) == "" {
			m.transcript.LineDown(4)
			return m, nil
		}
	case "home":
		m.transcript.GotoTop()
		return m, nil
	case "end":
		m.transcript.GotoBottom()
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *model) beginQuitConfirm() {
	m.quitConfirm = true
	m.statusLine = "quit renewguide?"
}

func (m *model) logError(err error) {
	if err == nil {
		return
	}
	m.log.Errorw("ui error", "panel", m.activeTab.info().key, "error", err.Error())
	m.statusLine = "error: " + compactSingleLine(err.Error(), 160)
}

func (m *model) resize() {
	_, contentWidth := m.layoutWidths()
	m.input.Width = maxInt(20, contentWidth-8)
	m.transcript.Width = maxInt(20, contentWidth-4)
	m.transcript.Height = maxInt(5, m.contentHeight()-7)
}

func (m *model) renderTranscript() {
	if m.session == nil {
		m.transcript.SetContent("")
		return
	}
	atBottom := m.transcript.AtBottom()
	offset := m.transcript.YOffset
	m.transcript.SetContent(m.renderEntries(m.session.Transcript(), m.session.InFlight()))
	if atBottom {
		m.transcript.GotoBottom()
	} else {
		m.transcript.SetYOffset(offset)
	}
}

func (m *model) renderEntries(entries []chat.Entry, pending bool) string {
	if len(entries) == 0 && !pending {
		return m.theme.helpText.Render("Ask a question about renewable energy.")
	}
	width := maxInt(20, m.transcript.Width-2)
	var b strings.Builder
	for _, entry := range entries {
		style := m.theme.botLabel
		label := "guide"
		if entry.Role == chat.RoleUser {
			style = m.theme.userLabel
			label = "you"
		}
		b.WriteString(style.Render(fmt.Sprintf("%s [%s]", shortTime(entry.CreatedAt), label)))
		b.WriteString("\n")
		b.WriteString(wrapText(entry.Content, width))
		b.WriteString("\n\n")
	}
	if pending {
		b.WriteString(m.theme.helpText.Render(m.spinner.View() + " generating an answer..."))
	}
	return strings.TrimRight(b.String(), "\n")
}
