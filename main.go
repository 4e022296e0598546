// rigchat TUI - a terminal client for OpenAI-compatible chat endpoints.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/rigchat-tui/internal/cli"
	"github.com/jeranaias/rigchat-tui/internal/dispatch"
	"github.com/jeranaias/rigchat-tui/internal/notify"
	"github.com/jeranaias/rigchat-tui/internal/store"
	"github.com/jeranaias/rigchat-tui/internal/ui/chat"
	"github.com/jeranaias/rigchat-tui/internal/ui/styles"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Global program reference for async refresh from the dispatch controller.
var (
	programRef *tea.Program
	programMu  sync.Mutex
)

func main() {
	var (
		configDir = flag.String("config", "", "config directory (default ~/.rigchat)")
		plain     = flag.Bool("plain", false, "run the plain-terminal REPL instead of the TUI")
		version   = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()

	if *version {
		fmt.Printf("rigchat %s (%s, built %s)\n", Version, GitCommit, BuildDate)
		return
	}

	dir := *configDir
	if dir == "" {
		var err error
		dir, err = store.DefaultDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}

	if err := run(dir, *plain); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(dir string, plain bool) error {
	bus := notify.NewBus()
	defer bus.Close()

	settings, err := store.OpenSettings(dir, bus)
	if err != nil {
		return err
	}

	// Diagnostics go to a file, not the terminal the UI owns.
	if f, err := os.OpenFile(filepath.Join(dir, "rigchat.log"),
		os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600); err == nil {
		log.SetOutput(f)
		defer f.Close()
	}
	vault, err := store.OpenTokenVault(dir)
	if err != nil {
		return err
	}
	conversations, err := store.OpenConversationStore(filepath.Join(dir, "conversations.db"))
	if err != nil {
		return err
	}
	defer conversations.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if _, err := store.WatchSettings(ctx, settings); err != nil {
		log.Printf("settings watcher unavailable: %v", err)
	}

	controller := dispatch.NewController(dispatch.Options{
		Storage:   settings,
		Tokens:    vault,
		Persister: conversations,
		OnUpdate: func() {
			programMu.Lock()
			p := programRef
			programMu.Unlock()
			if p != nil {
				p.Send(chat.Refresh())
			}
		},
	})
	go controller.Run(ctx, bus.Subscribe())

	if plain {
		return cli.RunREPL(&cli.Session{
			Controller: controller,
			Settings:   settings,
			Vault:      vault,
			ConfigDir:  dir,
		})
	}

	m := chat.New(styles.NewTheme(), controller)
	p := tea.NewProgram(
		m,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)

	programMu.Lock()
	programRef = p
	programMu.Unlock()

	_, err = p.Run()
	return err
}
