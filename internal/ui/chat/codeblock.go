// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	chromaStyles "github.com/alecthomas/chroma/v2/styles"
)

// =============================================================================
// CODE HIGHLIGHTING
// =============================================================================

// Highlight applies ANSI syntax highlighting to code. Returns the input
// unchanged when the language is unknown or highlighting fails.
func Highlight(code, language string) string {
	lexer := lexers.Get(language)
	if lexer == nil {
		lexer = lexers.Analyse(code)
	}
	if lexer == nil {
		return code
	}
	lexer = chroma.Coalesce(lexer)

	style := chromaStyles.Get("monokai")
	if style == nil {
		style = chromaStyles.Fallback
	}
	formatter := formatters.Get("terminal256")
	if formatter == nil {
		return code
	}

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return code
	}
	var b strings.Builder
	if err := formatter.Format(&b, style, iterator); err != nil {
		return code
	}
	return strings.TrimRight(b.String(), "\n")
}

// highlightFences highlights fenced code blocks in otherwise plain text.
// Used as the fallback when full markdown rendering is unavailable.
func highlightFences(text string) string {
	lines := strings.Split(text, "\n")
	var (
		out      []string
		inFence  bool
		language string
		block    []string
	)
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") {
			if inFence {
				out = append(out, Highlight(strings.Join(block, "\n"), language))
				block = block[:0]
				inFence = false
			} else {
				language = strings.TrimPrefix(trimmed, "```")
				inFence = true
			}
			continue
		}
		if inFence {
			block = append(block, line)
			continue
		}
		out = append(out, line)
	}
	if inFence {
		// Unterminated fence: emit what we have, unhighlighted.
		out = append(out, block...)
	}
	return strings.Join(out, "\n")
}
