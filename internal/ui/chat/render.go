// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/jeranaias/rigchat-tui/internal/model"
	"github.com/jeranaias/rigchat-tui/internal/ui/styles"
)

// =============================================================================
// TRANSCRIPT RENDERING
// =============================================================================

// transcriptRenderer turns the message sequence into the viewport content.
// Assistant messages render as markdown through glamour; everything else is
// plain styled text.
type transcriptRenderer struct {
	theme    *styles.Theme
	markdown *glamour.TermRenderer
	width    int
}

func newTranscriptRenderer(theme *styles.Theme) *transcriptRenderer {
	r := &transcriptRenderer{theme: theme, width: 80}
	r.rebuildMarkdown()
	return r
}

func (r *transcriptRenderer) setWidth(width int) {
	if width == r.width || width <= 0 {
		return
	}
	r.width = width
	r.rebuildMarkdown()
}

func (r *transcriptRenderer) rebuildMarkdown() {
	wrap := r.width - 6
	if wrap < 20 {
		wrap = 20
	}
	md, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(wrap),
	)
	if err != nil {
		// Fall back to plain text rendering.
		md = nil
	}
	r.markdown = md
}

func (r *transcriptRenderer) render(msgs []model.Message, sending bool) string {
	if len(msgs) == 0 {
		return r.theme.Hint.Render("\n  Start the conversation by typing below.\n")
	}

	var b strings.Builder
	for i, m := range msgs {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(r.renderMessage(m, sending && i == len(msgs)-1))
		b.WriteString("\n")
	}
	return b.String()
}

func (r *transcriptRenderer) renderMessage(m model.Message, streaming bool) string {
	label := r.theme.RoleLabel.Render(m.Role.DisplayName())
	stamp := r.theme.Timestamp.Render(m.Timestamp.Format("15:04"))
	head := label + " " + stamp

	body := m.Content.Display()
	if body == "" && streaming {
		body = "..."
	}

	var bubble string
	switch {
	case m.IsError:
		bubble = r.theme.ErrorBubble.Render(body)
	case m.Role == model.RoleAssistant:
		bubble = r.theme.AssistantBubble.Render(r.renderAssistant(body, streaming))
	default:
		bubble = r.theme.UserBubble.Render(body)
	}
	return head + "\n" + bubble
}

// renderAssistant renders assistant text as markdown. While a response is
// still streaming the raw text is shown; re-rendering partial markdown every
// delta flickers badly on fenced blocks.
func (r *transcriptRenderer) renderAssistant(text string, streaming bool) string {
	if streaming || r.markdown == nil {
		return text
	}
	out, err := r.markdown.Render(text)
	if err != nil {
		return highlightFences(text)
	}
	return strings.TrimRight(out, "\n")
}
