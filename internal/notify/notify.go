// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package notify carries settings-change events between the store and the
// dispatch controller.
package notify

import (
	"sync"
)

// =============================================================================
// EVENTS
// =============================================================================

// Event names one kind of settings change.
type Event int

const (
	// EventDefaultEndpointChanged fires when the default endpoint selection
	// changes.
	EventDefaultEndpointChanged Event = iota
	// EventEndpointUpdated fires after any edit to an endpoint config.
	EventEndpointUpdated
	// EventDefaultPromptChanged fires when the default prompt selection
	// changes.
	EventDefaultPromptChanged
	// EventLanguageChanged fires when the preferred language changes.
	EventLanguageChanged
)

// String returns the event name.
func (e Event) String() string {
	switch e {
	case EventDefaultEndpointChanged:
		return "default-endpoint-changed"
	case EventEndpointUpdated:
		return "endpoint-updated"
	case EventDefaultPromptChanged:
		return "default-prompt-changed"
	case EventLanguageChanged:
		return "language-changed"
	default:
		return "unknown"
	}
}

// Notification is one delivered event, carrying the changed identifier.
type Notification struct {
	Event Event
	// ID is the changed endpoint/prompt identifier, or the new language tag
	// for EventLanguageChanged. May be empty when the whole collection
	// changed.
	ID string
}

// =============================================================================
// BUS
// =============================================================================

// subscriberBuffer is the per-subscriber channel depth. Publish never
// blocks; a subscriber that falls this far behind loses events and is
// expected to re-resolve from the store anyway.
const subscriberBuffer = 16

// Bus is an in-process fan-out of settings notifications.
type Bus struct {
	mu     sync.Mutex
	subs   []chan Notification
	closed bool
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers a new subscriber and returns its delivery channel.
// The channel is closed when the bus closes.
func (b *Bus) Subscribe() <-chan Notification {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan Notification, subscriberBuffer)
	if b.closed {
		close(ch)
		return ch
	}
	b.subs = append(b.subs, ch)
	return ch
}

// Publish delivers a notification to every subscriber without blocking.
func (b *Bus) Publish(n Notification) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for _, ch := range b.subs {
		select {
		case ch <- n:
		default:
		}
	}
}

// Close shuts the bus down and closes all subscriber channels. Idempotent.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, ch := range b.subs {
		close(ch)
	}
	b.subs = nil
}
