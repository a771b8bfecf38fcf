package ask

import (
	"context"
	"fmt"
	"strings"

	"jawabbot/pkg/answer"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type mode int

const (
	modeInteractive mode = iota
	modeOneShot
)

const mouseWheelLines = 3

type entryKind int

const (
	entryQuery entryKind = iota
	entryPayload
	entryInline
	entryEmpty
	entryError
)

type entry struct {
	kind  entryKind
	title string
	body  string
	media string
}

type askResultMsg struct {
	result Result
	err    error
}

type model struct {
	ctx        context.Context
	askFn      AskFunc
	mode       mode
	firstQuery string
	info       Info

	theme     theme
	spinner   spinner.Model
	input     textinput.Model
	viewport  viewport.Model
	entries   []entry
	width     int
	height    int
	isReady   bool
	isLoading bool
	lastErr   string
	followLog bool
	questions int
	messages  int
}

func newModel(ctx context.Context, askFn AskFunc, runMode mode, query string, info Info) *model {
	spin := spinner.New()
	spin.Spinner = spinner.Points
	spin.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))

	in := textinput.New()
	in.Prompt = ""
	in.Placeholder = "Tulis pertanyaan..."
	in.Focus()
	in.CharLimit = 0

	return &model{
		ctx:        ctx,
		askFn:      askFn,
		mode:       runMode,
		firstQuery: strings.TrimSpace(query),
		info:       info,
		theme:      defaultTheme(),
		spinner:    spin,
		input:      in,
		viewport:   viewport.New(80, 12),
		width:      100,
		height:     28,
		followLog:  true,
	}
}

func (m *model) Init() tea.Cmd {
	if m.firstQuery != "" {
		return m.submit(m.firstQuery)
	}

	return textinput.Blink
}

func (m *model) submit(query string) tea.Cmd {
	m.lastErr = ""
	m.questions++
	m.entries = append(m.entries, entry{kind: entryQuery, body: query})
	m.isLoading = true
	m.followLog = true
	m.refreshViewport(true)

	return tea.Batch(m.spinner.Tick, askCmd(m.ctx, m.askFn, query))
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch typed := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = typed.Width
		m.height = typed.Height
		m.resizeComponents()
		m.refreshViewport(false)
		m.isReady = true
		return m, nil
	case tea.MouseMsg:
		if m.mode == modeInteractive {
			m.handleViewportMouse(typed)
		}
		return m, nil
	case tea.KeyMsg:
		switch typed.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit
		}

		if m.mode == modeOneShot {
			return m, nil
		}

		if handled := m.handleViewportKey(typed); handled {
			return m, nil
		}

		if typed.String() == "enter" {
			if m.isLoading {
				return m, nil
			}

			query := strings.TrimSpace(m.input.Value())
			if query == "" {
				return m, nil
			}
			if isExitCommand(query) {
				return m, tea.Quit
			}

			m.input.SetValue("")
			return m, m.submit(query)
		}
	case spinner.TickMsg:
		if !m.isLoading {
			return m, nil
		}
		m.spinner, cmd = m.spinner.Update(typed)
		return m, cmd
	case askResultMsg:
		m.isLoading = false
		m.appendResult(typed.result, typed.err)
		m.refreshViewport(false)
		if m.mode == modeOneShot {
			return m, tea.Quit
		}
		return m, nil
	}

	if m.mode == modeInteractive {
		m.input, cmd = m.input.Update(msg)
	}

	return m, cmd
}

// appendResult turns one pipeline outcome into cards, in delivery order.
func (m *model) appendResult(result Result, err error) {
	if err != nil {
		kind := answer.ErrorKind(err)
		m.lastErr = err.Error()
		m.entries = append(m.entries, entry{kind: entryError, title: kind, body: err.Error()})
		return
	}

	m.lastErr = ""
	switch {
	case len(result.Payloads) > 0:
		for i, payload := range result.Payloads {
			m.entries = append(m.entries, entry{
				kind:  entryPayload,
				title: fmt.Sprintf("📨 %d/%d %s", i+1, len(result.Payloads), payload.Mode),
				body:  payload.Text,
				media: payload.MediaURL,
			})
		}
		m.messages += len(result.Payloads)
	case len(result.Inline) > 0:
		for _, item := range result.Inline {
			m.entries = append(m.entries, inlineEntry(item))
		}
		m.messages += len(result.Inline)
	default:
		m.entries = append(m.entries, entry{kind: entryEmpty, body: "Tidak ada hasil."})
	}
}

func inlineEntry(item answer.InlineResult) entry {
	if item.Kind == answer.InlinePhoto {
		return entry{
			kind:  entryInline,
			title: fmt.Sprintf("#%s photo", item.ID),
			body:  item.Caption,
			media: item.PhotoURL,
		}
	}

	return entry{
		kind:  entryInline,
		title: fmt.Sprintf("#%s %s", item.ID, item.Title),
		body:  item.Body,
	}
}

func (m *model) View() string {
	if !m.isReady {
		m.resizeComponents()
		m.refreshViewport(false)
	}
	if m.mode == modeOneShot {
		return m.oneShotView()
	}

	header := m.theme.header.Width(m.width - 2).Render("📚 Jawabbot Preview")
	meta := m.theme.headerMeta.Render(fmt.Sprintf(
		"mode:%s · corpus:%s · questions:%d · messages:%d",
		displayOrNA(m.info.Mode),
		displayOrNA(m.info.Corpus),
		m.questions,
		m.messages,
	))
	line := m.theme.divider.Width(m.width - 2).Render(strings.Repeat("═", max(8, m.width-2)))

	status := m.theme.status.Render("💡 Enter kirim  ·  PgUp/PgDn gulir  ·  End terbaru  ·  🛑 Ctrl+C/Esc keluar")
	if m.isLoading {
		status = m.theme.statusBusy.Render(fmt.Sprintf("%s 🔎 mencari jawaban...", m.spinner.View()))
	}
	if m.lastErr != "" {
		status = m.theme.statusErr.Render("🚨 pencarian terakhir gagal - coba lagi")
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		meta,
		line,
		m.theme.viewport.Width(m.width-2).Render(m.viewport.View()),
		status,
		m.theme.inputLabel.Render("❓ Pertanyaan")+" "+m.theme.hint.Render("(ketik /exit, quit, atau :q)"),
		m.theme.input.Width(m.width-2).Render(m.input.View()),
	)
}

func (m *model) resizeComponents() {
	w := max(50, m.width-6)
	h := m.height - 10
	if m.mode == modeOneShot {
		h = m.height - 6
	}

	m.viewport.Width = w
	m.viewport.Height = max(8, h)
	m.input.Width = w - 2
}

func (m *model) refreshViewport(forceBottom bool) {
	previousOffset := m.viewport.YOffset
	sections := make([]string, 0, len(m.entries))
	for _, item := range m.entries {
		sections = append(sections, m.renderEntry(item, m.viewport.Width))
	}

	m.viewport.SetContent(strings.Join(sections, "\n\n"))
	if m.followLog || forceBottom {
		m.viewport.GotoBottom()
		m.followLog = true
		return
	}

	maxOffset := max(0, m.viewport.TotalLineCount()-m.viewport.Height)
	m.viewport.SetYOffset(min(previousOffset, maxOffset))
}

func (m *model) renderEntry(item entry, width int) string {
	body := strings.TrimSpace(item.body)
	if item.media != "" {
		body = strings.TrimSpace(body + "\n\n" + m.theme.media.Render("🖼 "+item.media))
	}

	switch item.kind {
	case entryQuery:
		return renderCard(m.theme.queryTitle.Render("▛▚ [ ❓ ] ▞▜"), m.theme.queryBox.Width(width).Render(body))
	case entryPayload:
		return renderCard(m.theme.payloadTitle.Render("▛▚ [ "+item.title+" ] ▞▜"), m.theme.payloadBox.Width(width).Render(body))
	case entryInline:
		return renderCard(m.theme.inlineTitle.Render("▛▚ [ "+item.title+" ] ▞▜"), m.theme.inlineBox.Width(width).Render(body))
	case entryEmpty:
		return m.theme.hint.Render(body)
	default:
		return renderCard(m.theme.errorTitle.Render("▛▚ [ERROR "+item.title+"] ▞▜"), m.theme.errorBox.Width(width).Render(body))
	}
}

func renderCard(title string, body string) string {
	return lipgloss.JoinVertical(lipgloss.Left, title, body)
}

func (m *model) oneShotView() string {
	contentWidth := max(40, m.width-6)
	parts := make([]string, 0, len(m.entries)+1)
	for _, item := range m.entries {
		parts = append(parts, m.renderEntry(item, contentWidth))
	}

	if m.isLoading {
		parts = append(parts, m.theme.statusBusy.Render(fmt.Sprintf("%s 🔎 mencari jawaban...", m.spinner.View())))
		return lipgloss.JoinVertical(lipgloss.Left, parts...) + "\n"
	}

	return lipgloss.JoinVertical(lipgloss.Left, parts...) + "\n\n"
}

func (m *model) handleViewportKey(msg tea.KeyMsg) bool {
	switch msg.String() {
	case "pgup", "ctrl+b", "alt+up", "ctrl+up":
		m.viewport.PageUp()
		m.followLog = false
		return true
	case "pgdown", "ctrl+f", "alt+down", "ctrl+down":
		m.viewport.PageDown()
		if m.viewport.AtBottom() {
			m.followLog = true
		}
		return true
	case "home":
		m.viewport.GotoTop()
		m.followLog = false
		return true
	case "end":
		m.viewport.GotoBottom()
		m.followLog = true
		return true
	default:
		return false
	}
}

// handleViewportMouse scrolls on wheel events; following resumes once the bottom is reached.
func (m *model) handleViewportMouse(msg tea.MouseMsg) bool {
	if msg.Action != tea.MouseActionPress {
		return false
	}

	switch msg.Button {
	case tea.MouseButtonWheelUp:
		m.viewport.ScrollUp(mouseWheelLines)
		m.followLog = false
		return true
	case tea.MouseButtonWheelDown:
		m.viewport.ScrollDown(mouseWheelLines)
		if m.viewport.AtBottom() {
			m.followLog = true
		}
		return true
	default:
		return false
	}
}

func askCmd(ctx context.Context, askFn AskFunc, query string) tea.Cmd {
	return func() tea.Msg {
		result, err := askFn(ctx, query)
		return askResultMsg{result: result, err: err}
	}
}

func displayOrNA(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "n/a"
	}

	return trimmed
}

func isExitCommand(input string) bool {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "exit", "/exit", "quit", ":q":
		return true
	default:
		return false
	}
}
