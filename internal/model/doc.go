// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for chat transcripts.
//
// A Transcript is an append-only ordered sequence of Messages. Each Message
// carries a role (user or assistant), a content variant (text or base64
// image), and an error flag. The only in-place mutation permitted is on the
// most recently appended assistant entry while a response streams in, and the
// only destruction path is clearing the whole transcript.
package model
