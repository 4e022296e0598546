// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package service implements the chat backend abstraction.
//
// A Service sends one chat turn and streams back text deltas, lists the
// models its endpoint offers, and cancels its in-flight request. The factory
// selects one concrete implementation per endpoint type at construction time
// (remote API, local model, custom API); no runtime type inspection happens
// elsewhere.
//
// The wire protocol is the OpenAI-compatible chat completions API: a POSTed
// JSON body with stream:true, answered either by a single JSON object or by
// an SSE stream of "data: {...}" lines terminated by "data: [DONE]".
package service
