// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat is the interactive chat screen: a Bubble Tea model wired to
// the dispatch controller.
package chat

import (
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/rigchat-tui/internal/dispatch"
	"github.com/jeranaias/rigchat-tui/internal/ui/styles"
	"github.com/jeranaias/rigchat-tui/internal/util"
)

// refreshMsg is posted by the controller's OnUpdate hook whenever observable
// dispatch state changed.
type refreshMsg struct{}

// noticeExpiredMsg clears a transient failure notice.
type noticeExpiredMsg struct{}

// Model is the Bubble Tea model for the chat screen.
type Model struct {
	theme      *styles.Theme
	controller *dispatch.Controller
	renderer   *transcriptRenderer

	viewport viewport.Model
	input    textarea.Model
	spinner  spinner.Model

	width  int
	height int
	ready  bool

	notice string
}

// New creates the chat screen over a controller.
func New(theme *styles.Theme, ctrl *dispatch.Controller) *Model {
	input := textarea.New()
	input.Placeholder = "Type a message..."
	input.Prompt = "┃ "
	input.CharLimit = 0
	input.SetHeight(3)
	input.ShowLineNumbers = false
	input.Focus()

	sp := spinner.New(spinner.WithSpinner(spinner.Dot))
	sp.Style = theme.Spinner

	return &Model{
		theme:      theme,
		controller: ctrl,
		renderer:   newTranscriptRenderer(theme),
		input:      input,
		spinner:    sp,
	}
}

// Refresh returns the message the controller's OnUpdate hook should post.
func Refresh() tea.Msg {
	return refreshMsg{}
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.spinner.Tick)
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.theme.Resize(msg.Width, msg.Height)
		m.renderer.setWidth(msg.Width)
		m.layout()
		m.refreshTranscript()
		m.ready = true

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.controller.Cancel()
			return m, tea.Quit

		case "esc":
			// Esc interrupts the in-flight response; silent by design.
			m.controller.Cancel()
			return m, nil

		case "ctrl+l":
			m.controller.ClearConversation()
			return m, nil

		case "enter":
			text := strings.TrimSpace(m.input.Value())
			if text == "" {
				return m, nil
			}
			m.input.Reset() // clear the input buffer before dispatch
			m.controller.SendText(text)
			return m, nil

		case "ctrl+j":
			// Literal newline inside the input.
			m.input.SetValue(m.input.Value() + "\n")
			return m, nil
		}

	case refreshMsg:
		m.refreshTranscript()
		if notice, ok := m.controller.TakeNotice(); ok {
			m.notice = notice
			cmds = append(cmds, expireNotice())
		}

	case noticeExpiredMsg:
		m.notice = ""

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// View implements tea.Model.
func (m *Model) View() string {
	if !m.ready {
		return "Starting rigchat..."
	}

	var b strings.Builder
	b.WriteString(m.headerView())
	b.WriteString("\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n")
	b.WriteString(m.statusView())
	return b.String()
}

func (m *Model) layout() {
	headerHeight := 1
	inputHeight := m.input.Height()
	statusHeight := 1
	vpHeight := m.height - headerHeight - inputHeight - statusHeight - 2
	if vpHeight < 1 {
		vpHeight = 1
	}
	if m.viewport.Width == 0 {
		m.viewport = viewport.New(m.width, vpHeight)
	} else {
		m.viewport.Width = m.width
		m.viewport.Height = vpHeight
	}
	m.input.SetWidth(m.width - 2)
}

func (m *Model) refreshTranscript() {
	m.viewport.SetContent(m.renderer.render(m.controller.Messages(), m.controller.IsSending()))
	m.viewport.GotoBottom()
}

func (m *Model) headerView() string {
	title := "rigchat"
	if ep := m.controller.ActiveEndpoint(); ep != nil {
		title += "  " + ep.Name
		if model := m.controller.SelectedModel(); model != "" {
			title += " (" + model + ")"
		}
	}
	return m.theme.Header.Width(m.width).Render(util.TruncateWidth(title, m.width-2))
}

func (m *Model) statusView() string {
	if m.notice != "" {
		return m.theme.Notice.Width(m.width).Render(util.TruncateWidth(m.notice, m.width-2))
	}
	if status, bad := m.controller.Status(); bad {
		return m.theme.Notice.Width(m.width).Render(status)
	}

	var left string
	if m.controller.IsSending() {
		left = m.spinner.View() + " thinking... (esc to cancel)"
	} else {
		left = "enter send · ctrl+j newline · ctrl+l clear · ctrl+c quit"
	}
	return m.theme.StatusBar.Width(m.width).Render(util.TruncateWidth(left, m.width-2))
}

// expireNotice schedules the transient notice to clear.
func expireNotice() tea.Cmd {
	return tea.Tick(4*time.Second, func(time.Time) tea.Msg {
		return noticeExpiredMsg{}
	})
}

var _ tea.Model = (*Model)(nil)
