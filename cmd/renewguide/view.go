package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"renewguide/internal/status"
)

const sidebarWidth = 26

type uiTheme struct {
	root         lipgloss.Style
	header       lipgloss.Style
	title        lipgloss.Style
	navActive    lipgloss.Style
	navInactive  lipgloss.Style
	panel        lipgloss.Style
	panelTitle   lipgloss.Style
	card         lipgloss.Style
	cardValue    lipgloss.Style
	footer       lipgloss.Style
	status       lipgloss.Style
	errorStatus  lipgloss.Style
	inputPanel   lipgloss.Style
	helpText     lipgloss.Style
	userLabel    lipgloss.Style
	botLabel     lipgloss.Style
	badge        map[status.Indicator]lipgloss.Style
	badgeUnknown lipgloss.Style
	modal        lipgloss.Style
}

func newTheme() uiTheme {
	green := lipgloss.Color("#22c55e")
	teal := lipgloss.Color("#14b8a6")
	amber := lipgloss.Color("#f59e0b")
	red := lipgloss.Color("#ef4444")
	bg := lipgloss.Color("#0b1a12")
	panelBg := lipgloss.Color("#10261a")
	text := lipgloss.Color("#ecfdf5")
	muted := lipgloss.Color("#94a3b8")

	badge := func(fg lipgloss.Color) lipgloss.Style {
		return lipgloss.NewStyle().Foreground(lipgloss.Color("#052e16")).Background(fg).Bold(true).Padding(0, 1)
	}

	return uiTheme{
		root: lipgloss.NewStyle().
			Background(bg).
			Foreground(text).
			Padding(0, 1),
		header: lipgloss.NewStyle().
			Background(panelBg).
			Foreground(text).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(teal).
			Padding(0, 1),
		title: lipgloss.NewStyle().
			Foreground(green).
			Bold(true),
		navActive: lipgloss.NewStyle().
			Background(green).
			Foreground(lipgloss.Color("#052e16")).
			Bold(true).
			Padding(0, 1),
		navInactive: lipgloss.NewStyle().
			Foreground(muted).
			Padding(0, 1),
		panel: lipgloss.NewStyle().
			Background(panelBg).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(teal).
			Padding(0, 1),
		panelTitle: lipgloss.NewStyle().
			Foreground(green).
			Bold(true),
		card: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(green).
			Padding(0, 1),
		cardValue: lipgloss.NewStyle().Foreground(text).Bold(true),
		footer: lipgloss.NewStyle().
			Background(panelBg).
			Foreground(muted).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(green).
			Padding(0, 1),
		status:      lipgloss.NewStyle().Foreground(teal).Bold(true),
		errorStatus: lipgloss.NewStyle().Foreground(red).Bold(true),
		inputPanel: lipgloss.NewStyle().
			Background(panelBg).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(green).
			Padding(0, 1),
		helpText:  lipgloss.NewStyle().Foreground(muted),
		userLabel: lipgloss.NewStyle().Foreground(green).Bold(true),
		botLabel:  lipgloss.NewStyle().Foreground(teal).Bold(true),
		badge: map[status.Indicator]lipgloss.Style{
			status.Healthy:  badge(green),
			status.Failing:  badge(red),
			status.Checking: badge(amber),
		},
		badgeUnknown: badge(muted),
		modal: lipgloss.NewStyle().
			Background(panelBg).
			BorderStyle(lipgloss.ThickBorder()).
			BorderForeground(red).
			Padding(1, 2),
	}
}

func (m model) View() string {
	if m.quitConfirm {
		return m.theme.root.Render(m.renderQuitModal())
	}
	header := m.renderHeader()
	body := lipgloss.JoinHorizontal(lipgloss.Top, m.renderSidebar(), " ", m.renderContent())
	footer := m.renderFooter()
	return m.theme.root.Render(lipgloss.JoinVertical(lipgloss.Left, header, body, footer))
}

func (m *model) layoutWidths() (total, content int) {
	total = maxInt(60, m.width-4)
	content = maxInt(30, total-sidebarWidth-1)
	return total, content
}

func (m *model) contentHeight() int {
	return maxInt(14, m.height-10)
}

func (m *model) renderHeader() string {
	total, _ := m.layoutWidths()
	title := m.theme.title.Render("Renewable Energy AI Guide")
	meta := m.theme.helpText.Render(fmt.Sprintf("  api: %s", nullCoalesce(m.cfg.APIURL, "n/a")))
	if m.activeTab == tabChatbot && m.session != nil {
		stats := m.session.Stats()
		meta += m.theme.helpText.Render(fmt.Sprintf(" · %d messages", stats.TotalMessages))
	}
	return m.theme.header.Width(total).Render(title + meta)
}

func (m *model) renderSidebar() string {
	lines := make([]string, 0, len(panels))
	for i, p := range panels {
		label := padRight(fmt.Sprintf("%d %s", i+1, p.label), sidebarWidth-6)
		if p.id == m.activeTab {
			lines = append(lines, m.theme.navActive.Render(label))
			continue
		}
		lines = append(lines, m.theme.navInactive.Render(label))
	}
	return m.theme.panel.
		Width(sidebarWidth - 2).
		Height(m.contentHeight()).
		Render(strings.Join(lines, "\n"))
}

func (m *model) renderContent() string {
	_, width := m.layoutWidths()
	var body string
	switch m.activeTab {
	case tabDashboard:
		body = m.renderDashboard(width - 4)
	case tabChatbot:
		body = m.renderChatbot()
	default:
		body = m.renderStatic(staticPanels[m.activeTab], width-4)
	}
	return m.theme.panel.Width(width).Height(m.contentHeight()).Render(body)
}

func (m *model) renderDashboard(width int) string {
	snap := m.snapshot
	heading := m.theme.panelTitle.Render("Dashboard") + "\n" +
		m.theme.helpText.Render("Renewable Energy AI Guide system overview")
	if snap.Loading {
		heading += "  " + m.spinner.View() + m.theme.helpText.Render(" refreshing")
	}

	cardWidth := maxInt(16, (width-4)/len(dashboardCards)-2)
	cards := make([]string, 0, len(dashboardCards))
	for _, c := range dashboardCards {
		cards = append(cards, m.theme.card.Width(cardWidth).Render(
			m.theme.helpText.Render(c.label)+"\n"+m.theme.cardValue.Render(c.value)))
	}
	cardRow := lipgloss.JoinHorizontal(lipgloss.Top, cards...)

	var activityLines []string
	activityLines = append(activityLines, m.theme.panelTitle.Render("Recent activity"))
	for _, a := range recentActivity {
		activityLines = append(activityLines, "• "+a)
	}

	statusLines := []string{
		m.theme.panelTitle.Render("System status"),
		padRight("FastAPI server", 16) + m.renderBadge(snap.Indicators.FastAPI),
		padRight("Chroma DB", 16) + m.renderBadge(snap.Indicators.Chroma),
		padRight("ML model", 16) + m.renderBadge(snap.Indicators.ML),
	}
	if info := snap.SystemInfo; info != nil {
		statusLines = append(statusLines,
			"",
			m.theme.panelTitle.Render("System info"),
			m.theme.helpText.Render("Embedding model: "+info.ModelLabel()),
			m.theme.helpText.Render("Vector store: "+info.CollectionName),
		)
	}

	colWidth := maxInt(24, width/2-1)
	columns := lipgloss.JoinHorizontal(lipgloss.Top,
		lipgloss.NewStyle().Width(colWidth).Render(strings.Join(activityLines, "\n")),
		" ",
		lipgloss.NewStyle().Width(colWidth).Render(strings.Join(statusLines, "\n")),
	)

	parts := []string{heading, "", cardRow, ""}
	if snap.Error != "" {
		parts = append(parts, m.theme.errorStatus.Render("Status check failed: "+compactSingleLine(snap.Error, width-22)), "")
	}
	parts = append(parts, columns)
	return strings.Join(parts, "\n")
}

func (m *model) renderBadge(ind status.Indicator) string {
	labels := map[status.Indicator]string{
		status.Healthy:  "OK",
		status.Failing:  "Error",
		status.Checking: "Checking",
	}
	style, ok := m.theme.badge[ind]
	if !ok {
		return m.theme.badgeUnknown.Render("Unknown")
	}
	return style.Render(labels[ind])
}

func (m *model) renderChatbot() string {
	heading := m.theme.panelTitle.Render("AI Chatbot") + "\n" +
		m.theme.helpText.Render("Answers to your renewable energy questions")
	if m.session != nil {
		if errText := m.session.LastError(); errText != "" {
			heading += "\n" + m.theme.errorStatus.Render("error: "+compactSingleLine(errText, 120))
		}
	}
	inputView := m.input.View()
	if m.session != nil && m.session.InFlight() {
		inputView = m.spinner.View() + " sending... " + inputView
	}
	_, width := m.layoutWidths()
	input := m.theme.inputPanel.Width(maxInt(20, width-4)).Render(inputView)
	return lipgloss.JoinVertical(lipgloss.Left, heading, "", m.transcript.View(), input)
}

func (m *model) renderStatic(p staticPanel, width int) string {
	body := make([]string, 0, len(p.lines))
	for _, line := range p.lines {
		body = append(body, wrapText(line, width))
	}
	return strings.Join([]string{
		m.theme.panelTitle.Render(p.title),
		m.theme.helpText.Render(p.subtitle),
		"",
		m.theme.title.Render(p.section),
		strings.Join(body, "\n"),
	}, "\n")
}

func (m *model) renderFooter() string {
	total, _ := m.layoutWidths()
	statusStyle := m.theme.status
	lower := strings.ToLower(m.statusLine)
	if strings.Contains(lower, "failed") || strings.Contains(lower, "error") {
		statusStyle = m.theme.errorStatus
	}
	line := statusStyle.Render(compactSingleLine(m.statusLine, 180))
	hints := "Keys: Tab/Shift+Tab or ↑/↓ switch panel · 1-6 jump · r refresh · q quit · Ctrl+C exit"
	if m.activeTab == tabChatbot {
		hints = "Keys: Enter send · Ctrl+L clear · PgUp/PgDn scroll · Tab/Shift+Tab switch panel · Esc quit · Ctrl+C exit"
	}
	return m.theme.footer.Width(total).Render(line + "\n" + m.theme.helpText.Render(hints))
}

func (m *model) renderQuitModal() string {
	total, _ := m.layoutWidths()
	canvasHeight := maxInt(12, m.height-4)
	modalWidth := clampInt(total/2, 36, 64)
	body := strings.Join([]string{
		m.theme.errorStatus.Render("Quit renewguide?"),
		"",
		m.theme.status.Render("[Y / Enter] Quit") + "    " + m.theme.helpText.Render("[N / Esc] Return"),
	}, "\n")
	return lipgloss.Place(
		total,
		canvasHeight,
		lipgloss.Center,
		lipgloss.Center,
		m.theme.modal.Width(modalWidth).Render(body),
		lipgloss.WithWhitespaceBackground(lipgloss.Color("#0b1a12")),
	)
}
