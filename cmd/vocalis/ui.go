package main

import (
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"
)

type speaker int

const (
	speakerUser speaker = iota
	speakerAssistant
)

// Messages the session feeds into the program.

type transcriptMsg struct {
	speaker speaker
	text    string
}

type noticeMsg struct {
	text    string
	isError bool
}

type stateMsg struct {
	previous string
	current  string
	muted    bool
}

type meterMsg struct {
	energy float64
	voice  bool
}

type processingMsg struct{ active bool }

type statusMsg struct{ status string }

type historyClearedMsg struct{}

type disconnectedMsg struct{}

// sessionControls is the slice of the session the key bindings drive.
type sessionControls interface {
	ToggleMute() bool
	ToggleRecording() error
	Interrupt()
	ClearHistory() error
	RequestGreeting() error
	RequestSystemPrompt() error
}

type keyMap struct {
	Mute         key.Binding
	Record       key.Binding
	Interrupt    key.Binding
	ClearHistory key.Binding
	Greeting     key.Binding
	SystemPrompt key.Binding
	Quit         key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Mute:         key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "mute")),
		Record:       key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "mic on/off")),
		Interrupt:    key.NewBinding(key.WithKeys("i", "esc"), key.WithHelp("i", "interrupt")),
		ClearHistory: key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "clear history")),
		Greeting:     key.NewBinding(key.WithKeys("g"), key.WithHelp("g", "greeting")),
		SystemPrompt: key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "system prompt")),
		Quit:         key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Mute, k.Interrupt, k.Greeting, k.ClearHistory, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Mute, k.Record, k.Interrupt},
		{k.Greeting, k.ClearHistory, k.SystemPrompt, k.Quit},
	}
}

var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	serverStyle    = lipgloss.NewStyle().Faint(true)
	userStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	assistantStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	noticeStyle    = lipgloss.NewStyle().Faint(true)
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	mutedStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	meterOnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	meterOffStyle  = lipgloss.NewStyle().Faint(true)

	stateStyles = map[string]lipgloss.Style{
		"inactive":    lipgloss.NewStyle().Faint(true),
		"recording":   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("46")),
		"playing":     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		"speaking":    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212")),
		"interrupted": lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214")),
	}
)

const meterWidth = 12

type transcriptEntry struct {
	speaker speaker
	text    string
}

type uiModel struct {
	controls sessionControls
	keys     keyMap

	viewport viewport.Model
	spinner  spinner.Model
	help     help.Model

	serverURL string
	entries   []transcriptEntry

	ready  bool
	width  int
	height int

	state      string
	muted      bool
	energy     float64
	voice      bool
	processing bool
	status     string

	notice        string
	noticeIsError bool
}

func newUIModel(config Config, controls sessionControls) uiModel {
	s := spinner.New()
	s.Spinner = spinner.MiniDot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("212"))

	return uiModel{
		controls:  controls,
		keys:      defaultKeyMap(),
		spinner:   s,
		help:      help.New(),
		serverURL: config.Server.URL,
		state:     "inactive",
	}
}

func (m uiModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m uiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width

		viewportHeight := msg.Height - chromeHeight
		if viewportHeight < 1 {
			viewportHeight = 1
		}
		if !m.ready {
			m.viewport = viewport.New(msg.Width, viewportHeight)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = viewportHeight
		}
		m.refreshTranscript()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case transcriptMsg:
		m.entries = append(m.entries, transcriptEntry{speaker: msg.speaker, text: msg.text})
		m.refreshTranscript()
		m.viewport.GotoBottom()
		return m, nil

	case noticeMsg:
		m.notice = msg.text
		m.noticeIsError = msg.isError
		return m, nil

	case stateMsg:
		m.state = msg.current
		m.muted = msg.muted
		return m, nil

	case meterMsg:
		m.energy = msg.energy
		m.voice = msg.voice
		return m, nil

	case processingMsg:
		m.processing = msg.active
		if !msg.active {
			m.status = ""
		}
		return m, nil

	case statusMsg:
		m.status = msg.status
		return m, nil

	case historyClearedMsg:
		m.entries = nil
		m.notice = ""
		m.refreshTranscript()
		return m, nil

	case disconnectedMsg:
		m.notice = "connection to backend lost"
		m.noticeIsError = true
		return m, nil
	}

	return m, nil
}

func (m uiModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Mute):
		m.muted = m.controls.ToggleMute()
		return m, nil

	case key.Matches(msg, m.keys.Record):
		if err := m.controls.ToggleRecording(); err != nil {
			m.notice = err.Error()
			m.noticeIsError = true
		}
		return m, nil

	case key.Matches(msg, m.keys.Interrupt):
		m.controls.Interrupt()
		return m, nil

	case key.Matches(msg, m.keys.ClearHistory):
		if err := m.controls.ClearHistory(); err != nil {
			m.notice = err.Error()
			m.noticeIsError = true
		}
		return m, nil

	case key.Matches(msg, m.keys.Greeting):
		if err := m.controls.RequestGreeting(); err != nil {
			m.notice = err.Error()
			m.noticeIsError = true
		}
		return m, nil

	case key.Matches(msg, m.keys.SystemPrompt):
		if err := m.controls.RequestSystemPrompt(); err != nil {
			m.notice = err.Error()
			m.noticeIsError = true
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// chromeHeight is the fixed rows around the transcript viewport: title,
// status, notice, and help.
const chromeHeight = 4

func (m *uiModel) refreshTranscript() {
	if !m.ready {
		return
	}

	wrapWidth := m.viewport.Width - 2
	if wrapWidth < 8 {
		wrapWidth = 8
	}

	var b strings.Builder
	for i, entry := range m.entries {
		if i > 0 {
			b.WriteString("\n\n")
		}

		switch entry.speaker {
		case speakerUser:
			b.WriteString(userStyle.Render("You"))
		case speakerAssistant:
			b.WriteString(assistantStyle.Render("Vocalis"))
		}
		b.WriteString("\n")
		b.WriteString(wordwrap.String(entry.text, wrapWidth))
	}

	m.viewport.SetContent(b.String())
}

func (m uiModel) View() string {
	if !m.ready {
		return "starting..."
	}

	title := titleStyle.Render("Vocalis") + serverStyle.Render(" · "+m.serverURL)

	return strings.Join([]string{
		title,
		m.viewport.View(),
		m.statusLine(),
		m.noticeLine(),
		m.help.View(m.keys),
	}, "\n")
}

func (m uiModel) statusLine() string {
	style, ok := stateStyles[m.state]
	if !ok {
		style = noticeStyle
	}

	parts := []string{style.Render(strings.ToUpper(m.state)), m.meter()}
	if m.muted {
		parts = append(parts, mutedStyle.Render("MUTED"))
	}
	if m.processing {
		parts = append(parts, m.spinner.View()+" "+statusLabel(m.status))
	}

	return strings.Join(parts, "  ")
}

func (m uiModel) noticeLine() string {
	if m.notice == "" {
		return ""
	}
	if m.noticeIsError {
		return errorStyle.Render(m.notice)
	}
	return noticeStyle.Render(m.notice)
}

// meter draws the capture level as a fixed-width bar. Speech energy rarely
// passes 0.35 RMS, so the scale tops out there.
func (m uiModel) meter() string {
	filled := int(m.energy / 0.35 * meterWidth)
	if filled > meterWidth {
		filled = meterWidth
	}
	if filled < 0 {
		filled = 0
	}

	bar := strings.Repeat("█", filled) + strings.Repeat("░", meterWidth-filled)
	if m.voice {
		return meterOnStyle.Render(bar)
	}
	return meterOffStyle.Render(bar)
}

func statusLabel(status string) string {
	switch status {
	case "connected":
		return "Connected"
	case "audio_processing":
		return "Receiving audio"
	case "transcribing":
		return "Transcribing"
	case "processing_llm":
		return "Thinking"
	case "generating_speech":
		return "Synthesizing"
	case "interrupted":
		return "Interrupted"
	case "history_cleared":
		return "History cleared"
	case "":
		return "Working"
	}
	return status
}
