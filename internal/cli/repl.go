// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the plain-terminal chat REPL, for sessions where a
// full-screen TUI is unwanted (dumb terminals, scripting, ssh).
package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/peterh/liner"

	"github.com/jeranaias/rigchat-tui/internal/dispatch"
	"github.com/jeranaias/rigchat-tui/internal/endpoint"
	"github.com/jeranaias/rigchat-tui/internal/model"
	"github.com/jeranaias/rigchat-tui/internal/store"
	"github.com/jeranaias/rigchat-tui/internal/ui/styles"
)

// =============================================================================
// STYLES
// =============================================================================

var (
	promptStyle = lipgloss.NewStyle().
			Foreground(styles.Cyan).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(styles.TextSecondary)

	errorStyle = lipgloss.NewStyle().
			Foreground(styles.Rose).
			Bold(true)

	commandStyle = lipgloss.NewStyle().
			Foreground(styles.Emerald)
)

// =============================================================================
// INPUT HISTORY
// =============================================================================

const historyFileName = "chat_history"

// input wraps liner with persistent history.
// USABILITY: Supports arrow keys for history navigation and line editing.
type input struct {
	line        *liner.State
	historyFile string
}

func newInput(configDir string) *input {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	in := &input{
		line:        line,
		historyFile: filepath.Join(configDir, historyFileName),
	}
	if f, err := os.Open(in.historyFile); err == nil {
		in.line.ReadHistory(f)
		f.Close()
	}
	return in
}

func (in *input) read(prompt string) (string, error) {
	text, err := in.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) != "" {
		in.line.AppendHistory(text)
	}
	return text, nil
}

func (in *input) close() {
	if f, err := os.OpenFile(in.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600); err == nil {
		in.line.WriteHistory(f)
		f.Close()
	}
	in.line.Close()
}

// =============================================================================
// REPL
// =============================================================================

// Session holds the collaborators the REPL drives.
type Session struct {
	Controller *dispatch.Controller
	Settings   *store.Settings
	Vault      *store.TokenVault
	ConfigDir  string
}

// RunREPL runs the interactive plain-terminal loop until the user quits.
func RunREPL(s *Session) error {
	in := newInput(s.ConfigDir)
	defer in.close()

	markdown, _ := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)

	fmt.Println(infoStyle.Render("rigchat - type /help for commands, /quit to exit"))
	printStatus(s.Controller)

	for {
		text, err := in.read(promptStyle.Render("you> "))
		if err != nil {
			if err == liner.ErrPromptAborted {
				// Ctrl+C at the prompt exits; mid-response it cancels.
				fmt.Println()
				return nil
			}
			fmt.Println()
			return nil
		}

		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		if strings.HasPrefix(text, "/") {
			if !handleCommand(s, text) {
				return nil
			}
			continue
		}

		s.Controller.SendText(text)
		awaitResponse(s.Controller)

		if notice, ok := s.Controller.TakeNotice(); ok {
			fmt.Fprintln(os.Stderr, errorStyle.Render("[Error] "+notice))
			continue
		}
		printLastReply(s.Controller, markdown)
	}
}

// awaitResponse blocks until the in-flight send settles.
func awaitResponse(ctrl *dispatch.Controller) {
	for ctrl.IsSending() {
		time.Sleep(50 * time.Millisecond)
	}
}

func printLastReply(ctrl *dispatch.Controller, markdown *glamour.TermRenderer) {
	msgs := ctrl.Messages()
	if len(msgs) == 0 {
		return
	}
	last := msgs[len(msgs)-1]
	if last.Role != model.RoleAssistant {
		return
	}
	body := last.Content.Display()
	if last.IsError {
		fmt.Fprintln(os.Stderr, errorStyle.Render(body))
		return
	}
	if markdown != nil {
		if out, err := markdown.Render(body); err == nil {
			fmt.Print(out)
			return
		}
	}
	fmt.Println(body)
}

// =============================================================================
// SLASH COMMANDS
// =============================================================================

// handleCommand executes a slash command. Returns false when the session
// should end.
func handleCommand(s *Session, text string) bool {
	fields := strings.Fields(text)
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "/quit", "/q", "/exit":
		return false

	case "/help", "/h":
		printHelp()

	case "/clear", "/c":
		s.Controller.ClearConversation()
		fmt.Println(infoStyle.Render("Conversation cleared."))

	case "/status", "/s":
		printStatus(s.Controller)

	case "/models":
		for _, m := range s.Controller.AvailableModels() {
			marker := "  "
			if m == s.Controller.SelectedModel() {
				marker = "* "
			}
			fmt.Println(marker + m)
		}

	case "/model":
		if len(args) == 0 {
			fmt.Println(infoStyle.Render("Model: " + s.Controller.SelectedModel()))
			break
		}
		s.Controller.SelectModel(args[0])
		fmt.Println(infoStyle.Render("Model: " + s.Controller.SelectedModel()))

	case "/endpoints":
		def := s.Settings.DefaultEndpointID()
		for _, ep := range s.Settings.SavedEndpoints() {
			marker := "  "
			if ep.ID == def {
				marker = "* "
			}
			fmt.Printf("%s%s  [%s]  %s\n", marker, ep.Name, ep.Type, ep.URL)
		}

	case "/endpoint":
		if len(args) == 0 {
			fmt.Fprintln(os.Stderr, errorStyle.Render("usage: /endpoint <name>"))
			break
		}
		selectEndpoint(s, strings.Join(args, " "))

	case "/prompts":
		def := s.Settings.DefaultPromptID()
		for _, p := range s.Settings.SavedPrompts() {
			marker := "  "
			if p.ID == def {
				marker = "* "
			}
			fmt.Println(marker + p.Name)
		}

	case "/language":
		if len(args) == 0 {
			fmt.Println(infoStyle.Render("Language: " + s.Settings.PreferredLanguage()))
			break
		}
		if err := s.Settings.SetPreferredLanguage(args[0]); err != nil {
			fmt.Fprintln(os.Stderr, errorStyle.Render(err.Error()))
		}

	case "/token":
		setToken(s)

	default:
		fmt.Fprintln(os.Stderr, errorStyle.Render("Unknown command: "+cmd))
	}
	return true
}

// selectEndpoint switches the default endpoint by name or ID.
func selectEndpoint(s *Session, name string) {
	var match *endpoint.Config
	for _, ep := range s.Settings.SavedEndpoints() {
		if ep.ID == name || strings.EqualFold(ep.Name, name) {
			match = ep
			break
		}
	}
	if match == nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("No such endpoint: "+name))
		return
	}
	if err := s.Settings.SetDefaultEndpoint(match.ID); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render(err.Error()))
		return
	}
	// The settings change notification also triggers this, but resolving
	// here keeps the printed status current.
	s.Controller.Resolve()
	printStatus(s.Controller)
}

// setToken prompts for and stores the API token for the active endpoint.
func setToken(s *Session) {
	ep := s.Controller.ActiveEndpoint()
	if ep == nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("No endpoint selected."))
		return
	}
	token, err := promptToken("API token for " + ep.Name + ": ")
	if err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render(err.Error()))
		return
	}
	if err := s.Vault.SetToken(ep.ID, token); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render(err.Error()))
		return
	}
	s.Controller.Resolve()
	fmt.Println(infoStyle.Render("Token stored."))
}

func printStatus(ctrl *dispatch.Controller) {
	if msg, bad := ctrl.Status(); bad {
		fmt.Println(errorStyle.Render(msg))
		return
	}
	ep := ctrl.ActiveEndpoint()
	if ep == nil {
		fmt.Println(infoStyle.Render("No endpoint selected. Use /endpoints and /endpoint <name>."))
		return
	}
	fmt.Println(infoStyle.Render(fmt.Sprintf("Endpoint: %s  Model: %s", ep.Name, ctrl.SelectedModel())))
}

func printHelp() {
	help := [][2]string{
		{"/help, /h", "Show this help"},
		{"/status, /s", "Show endpoint and model"},
		{"/models", "List available models"},
		{"/model NAME", "Switch model"},
		{"/endpoints", "List configured endpoints"},
		{"/endpoint NAME", "Switch endpoint"},
		{"/prompts", "List saved prompts"},
		{"/language TAG", "Set preferred response language"},
		{"/token", "Store an API token for the active endpoint"},
		{"/clear, /c", "Clear the conversation"},
		{"/quit, /q", "Exit"},
	}
	for _, h := range help {
		fmt.Printf("  %s %s\n", commandStyle.Render(fmt.Sprintf("%-16s", h[0])), h[1])
	}
}
