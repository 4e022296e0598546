// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package service

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"strings"
)

// =============================================================================
// STREAM DECODER
// =============================================================================

// MaxLineSize is the maximum allowed size for a single SSE line (64KB).
const MaxLineSize = 64 * 1024

const (
	dataPrefix   = "data: "
	doneSentinel = "[DONE]"
)

// streamChunk is one decoded SSE payload from a chat-completions stream.
type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// DecodeLine turns one raw line of an SSE chat stream into a text delta.
//
// Returns (delta, done, ok):
//   - done is true when the line contains the [DONE] terminator; it produces
//     no delta and signals normal stream end.
//   - ok is true only when the line yielded a delta.
//
// Empty lines, malformed JSON (expected at chunk boundaries), and chunks
// without an incremental content field all yield (_, false, false).
func DecodeLine(line string) (delta string, done bool, ok bool) {
	line = strings.TrimRight(line, "\r\n")
	if strings.TrimSpace(line) == "" {
		return "", false, false
	}
	if strings.Contains(line, doneSentinel) {
		return "", true, false
	}
	line = strings.TrimPrefix(line, dataPrefix)

	var chunk streamChunk
	if err := json.Unmarshal([]byte(line), &chunk); err != nil {
		// Partial or malformed lines are expected; skip silently.
		return "", false, false
	}
	if len(chunk.Choices) == 0 {
		return "", false, false
	}
	content := chunk.Choices[0].Delta.Content
	if content == "" {
		return "", false, false
	}
	return content, false, true
}

// decodeStream reads raw lines from body and sends one Delta per extracted
// content fragment, in input line order. It returns on end of input, on the
// [DONE] terminator, or when ctx is cancelled. The caller owns closing out.
func decodeStream(ctx context.Context, body io.Reader, out chan<- Delta) error {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 4096), MaxLineSize)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		delta, done, ok := DecodeLine(scanner.Text())
		if done {
			return nil
		}
		if !ok {
			continue
		}

		select {
		case out <- Delta{Text: delta}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return scanner.Err()
}
