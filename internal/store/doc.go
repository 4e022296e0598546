// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package store persists rigchat state under the config directory:
//
//   - config.toml — endpoints, saved prompts, defaults, language (TOML)
//   - tokens.json — per-endpoint API tokens, encrypted with AES-GCM
//   - conversations.db — completed conversations (SQLite)
//
// Settings mutations publish notify events so the dispatch controller can
// re-resolve its active endpoint, service, and prompts. A filesystem
// watcher covers edits made outside the process.
package store
