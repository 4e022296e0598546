// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package prompt computes the effective system/user prompt text for a chat
// turn, applying a fixed precedence order (chat selection, endpoint default,
// global default) and an unconditional trailing language augmentation step.
package prompt
