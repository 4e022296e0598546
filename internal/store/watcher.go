// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"context"
	"log"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/jeranaias/rigchat-tui/internal/notify"
)

// =============================================================================
// SETTINGS WATCHER
// =============================================================================

// watchDebounce coalesces the write/rename bursts editors produce into a
// single reload.
const watchDebounce = 250 * time.Millisecond

// Watcher reloads settings when the file changes on disk (external edits)
// and announces the change on the bus.
type Watcher struct {
	settings *Settings
	watcher  *fsnotify.Watcher
}

// WatchSettings starts watching the settings file's directory. The watcher
// runs until ctx is cancelled.
func WatchSettings(ctx context.Context, settings *Settings) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// Watch the directory, not the file: atomic saves replace the inode.
	if err := fw.Add(filepath.Dir(settings.Path())); err != nil {
		fw.Close()
		return nil, err
	}

	w := &Watcher{settings: settings, watcher: fw}
	go w.run(ctx)
	return w, nil
}

func (w *Watcher) run(ctx context.Context) {
	defer w.watcher.Close()

	target := filepath.Base(w.settings.Path())
	var timer *time.Timer
	var pending <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != target {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(watchDebounce)
			} else {
				timer.Reset(watchDebounce)
			}
			pending = timer.C
		case <-pending:
			pending = nil
			w.reload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("settings watcher: %v", err)
		}
	}
}

// reload re-reads settings and announces the externally-changed state. The
// file changed wholesale, so every selection may have moved.
func (w *Watcher) reload() {
	if err := w.settings.Reload(); err != nil {
		log.Printf("settings reload failed: %v", err)
		return
	}
	w.settings.publish(notify.EventEndpointUpdated, "")
	w.settings.publish(notify.EventDefaultEndpointChanged, w.settings.DefaultEndpointID())
	w.settings.publish(notify.EventDefaultPromptChanged, w.settings.DefaultPromptID())
	w.settings.publish(notify.EventLanguageChanged, w.settings.PreferredLanguage())
}
