// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"crypto/rand"
	"encoding/hex"
	"time"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Assistant"
	case RoleSystem:
		return "System"
	default:
		return string(r)
	}
}

// =============================================================================
// CONTENT TYPE
// =============================================================================

// ContentKind discriminates the message content variant.
type ContentKind int

const (
	// ContentText is plain UTF-8 text.
	ContentText ContentKind = iota
	// ContentImage is a base64-encoded image payload.
	ContentImage
)

// Content is the message payload: either text or a base64 image.
type Content struct {
	Kind ContentKind `json:"kind"`
	// Text holds the message text for ContentText, or the accumulated
	// assistant response during streaming.
	Text string `json:"text,omitempty"`
	// Image holds the base64 payload for ContentImage.
	Image string `json:"image,omitempty"`
}

// TextContent creates a text content value.
func TextContent(s string) Content {
	return Content{Kind: ContentText, Text: s}
}

// ImageContent creates an image content value from a base64 payload.
func ImageContent(b64 string) Content {
	return Content{Kind: ContentImage, Image: b64}
}

// IsEmpty returns true if the content carries neither text nor an image.
func (c Content) IsEmpty() bool {
	if c.Kind == ContentImage {
		return c.Image == ""
	}
	return c.Text == ""
}

// Display returns the content as shown in the transcript.
// Images render as a fixed placeholder since the terminal cannot show pixels.
func (c Content) Display() string {
	if c.Kind == ContentImage {
		return "[image]"
	}
	return c.Text
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message represents a single entry in the transcript. Entries are immutable
// once appended, except for the most recently appended assistant entry, whose
// content is replaced in place while a response streams in.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   Content   `json:"content"`
	IsError   bool      `json:"is_error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewMessage creates a new message with a generated ID.
func NewMessage(role Role, content Content) *Message {
	return &Message{
		ID:        generateID(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// NewUserMessage creates a new user text message.
func NewUserMessage(text string) *Message {
	return NewMessage(RoleUser, TextContent(text))
}

// NewUserImageMessage creates a new user message carrying a base64 image.
func NewUserImageMessage(b64 string) *Message {
	return NewMessage(RoleUser, ImageContent(b64))
}

// NewAssistantPlaceholder creates the empty assistant entry that streaming
// deltas are written into.
func NewAssistantPlaceholder() *Message {
	return NewMessage(RoleAssistant, TextContent(""))
}

// SetText replaces the message content with the given text.
// Streaming uses replacement semantics: each delta application overwrites the
// stored content with the full accumulated response so far.
func (m *Message) SetText(text string) {
	m.Content = TextContent(text)
}

// SetError overwrites the message content with a display error string and
// flags the entry as an error.
func (m *Message) SetError(display string) {
	m.Content = TextContent(display)
	m.IsError = true
}

// IsEmpty returns true if the message has no content.
func (m *Message) IsEmpty() bool {
	return m.Content.IsEmpty()
}

// =============================================================================
// TRANSCRIPT TYPE
// =============================================================================

// Transcript is the ordered message sequence for the current conversation.
// Ordering is append order; entries are never reordered.
type Transcript struct {
	messages []*Message
}

// NewTranscript creates an empty transcript.
func NewTranscript() *Transcript {
	return &Transcript{messages: make([]*Message, 0)}
}

// Append adds a message to the end of the transcript.
func (t *Transcript) Append(m *Message) {
	t.messages = append(t.messages, m)
}

// Last returns the most recently appended message, or nil when empty.
func (t *Transcript) Last() *Message {
	if len(t.messages) == 0 {
		return nil
	}
	return t.messages[len(t.messages)-1]
}

// Len returns the number of messages.
func (t *Transcript) Len() int {
	return len(t.messages)
}

// Messages returns the messages in append order. The returned slice is a
// copy; the pointed-to messages are shared.
func (t *Transcript) Messages() []*Message {
	out := make([]*Message, len(t.messages))
	copy(out, t.messages)
	return out
}

// Snapshot returns value copies of the messages in append order. Readers on
// other goroutines must use this rather than Messages: the trailing assistant
// entry is rewritten in place while a response streams in, and a shared
// pointer would expose that write mid-flight.
func (t *Transcript) Snapshot() []Message {
	out := make([]Message, len(t.messages))
	for i, m := range t.messages {
		out[i] = *m
	}
	return out
}

// Clear empties the whole transcript. This is the only destruction path for
// appended messages.
func (t *Transcript) Clear() {
	t.messages = t.messages[:0]
}

// History converts the transcript into the role/content pairs sent on the
// wire, excluding error entries and the trailing empty placeholder.
func (t *Transcript) History() []HistoryEntry {
	out := make([]HistoryEntry, 0, len(t.messages))
	for _, m := range t.messages {
		if m.IsError || m.IsEmpty() {
			continue
		}
		out = append(out, HistoryEntry{Role: m.Role, Content: m.Content})
	}
	return out
}

// HistoryEntry is one role/content pair of prior conversation context.
type HistoryEntry struct {
	Role    Role
	Content Content
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// generateID creates a unique message ID.
func generateID() string {
	bytes := make([]byte, 8)
	rand.Read(bytes)
	return "msg_" + hex.EncodeToString(bytes)
}
