// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package service

import (
	"context"
	"sync"

	"github.com/jeranaias/rigchat-tui/internal/model"
)

// =============================================================================
// SERVICE INTERFACE
// =============================================================================

// Delta is one streamed fragment of assistant text. A Delta with Err set
// terminates the stream; Err carries the failure (or context.Canceled).
type Delta struct {
	Text string
	Err  error
}

// SendOptions carries everything a Service needs for one chat turn.
type SendOptions struct {
	// Content is the new user input, text or base64 image.
	Content model.Content

	// SystemPrompt and UserPrompt are the resolved prompt texts. UserPrompt,
	// when set, is prepended to the user input text.
	SystemPrompt string
	UserPrompt   string

	// Model is the model identifier to request.
	Model string

	// Temperature in [0,2]; 0 means use the endpoint default.
	Temperature float64

	// MaxTokens caps the response length; 0 means no explicit cap.
	MaxTokens int

	// History is the prior conversation context, oldest first.
	History []model.HistoryEntry
}

// Service is the capability set every concrete LLM backend implements.
//
// SendMessage initiates the network call and returns a lazy, forward-only
// delta channel. The channel is closed on normal end of stream; consumers may
// stop pulling at any time. AvailableModels failures must be treated by
// callers as "fall back to configured defaults", never as fatal.
// CancelRequest is idempotent and aborts any in-flight operation owned by
// this service instance.
type Service interface {
	SendMessage(ctx context.Context, opts SendOptions) (<-chan Delta, error)
	AvailableModels(ctx context.Context) ([]string, error)
	CancelRequest()
}

// =============================================================================
// CANCEL MANAGEMENT (THREAD-SAFE)
// =============================================================================

// cancelManager guards the cancel function for the service's in-flight
// request. Streaming happens in a goroutine while cancellation may arrive
// from the dispatch loop, so access is mutex protected.
type cancelManager struct {
	mu         sync.Mutex
	cancelFunc context.CancelFunc
}

// set stores a new cancel function, cancelling any previous one first so the
// prior request's context is never leaked.
func (cm *cancelManager) set(fn context.CancelFunc) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if cm.cancelFunc != nil {
		cm.cancelFunc()
	}
	cm.cancelFunc = fn
}

// cancel invokes the stored cancel function and clears it.
// Safe to call multiple times or with no cancel function set.
func (cm *cancelManager) cancel() {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if cm.cancelFunc != nil {
		cm.cancelFunc()
		cm.cancelFunc = nil
	}
}
