// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package endpoint defines configured LLM backend targets (remote API, local
// model, custom API), saved prompt pairs, and the pure status function that
// translates the current selection state into a user-facing message.
package endpoint
