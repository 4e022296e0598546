// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package dispatch contains the controller that orchestrates a chat turn:
// it resolves the active endpoint into a service, computes the effective
// prompts, issues the streaming request, reconciles deltas with the
// transcript under a single-in-flight-request policy, and translates
// failures into transcript entries.
package dispatch
