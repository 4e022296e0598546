// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package prompt

import (
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"github.com/jeranaias/rigchat-tui/internal/endpoint"
)

// SystemLanguage is the PreferredLanguage value meaning "use the system
// default"; it produces no language augmentation. An empty value means the
// same thing.
const SystemLanguage = "system"

// =============================================================================
// PROMPT RESOLUTION
// =============================================================================

// Resolved is the derived prompt context for one send. Computed fresh per
// send, never stored.
type Resolved struct {
	System string
	User   string
}

// Lookup resolves a saved prompt by ID. Returns false when the ID does not
// resolve (unknown or deleted prompt).
type Lookup func(id string) (*endpoint.Prompt, bool)

// Input carries everything resolution depends on.
type Input struct {
	// ChatPromptID is the prompt explicitly selected for this chat, if any.
	ChatPromptID string

	// EndpointPromptID is the active endpoint's default prompt, if any.
	EndpointPromptID string

	// GlobalSystem and GlobalUser are the global default prompt texts.
	GlobalSystem string
	GlobalUser   string

	// PreferredLanguage is a BCP-47 tag ("de", "ja", ...), or
	// SystemLanguage / empty for no augmentation.
	PreferredLanguage string

	// Lookup resolves saved prompt IDs. Nil behaves as "nothing resolves".
	Lookup Lookup
}

// Resolve computes the effective prompt text with strict precedence:
//
//  1. the chat's explicitly selected prompt, when it resolves
//  2. the active endpoint's default prompt, when it resolves
//  3. the global default system/user text
//
// The language instruction, when one exists, is appended to the system text
// last, after a blank line, regardless of which branch produced it.
func Resolve(in Input) Resolved {
	res := Resolved{System: in.GlobalSystem, User: in.GlobalUser}

	if p, ok := lookup(in.Lookup, in.ChatPromptID); ok {
		res.System = p.SystemPrompt
		res.User = p.UserPrompt
	} else if p, ok := lookup(in.Lookup, in.EndpointPromptID); ok {
		res.System = p.SystemPrompt
		res.User = p.UserPrompt
	}

	if instr := LanguageInstruction(in.PreferredLanguage); instr != "" {
		if res.System == "" {
			res.System = instr
		} else {
			res.System = res.System + "\n\n" + instr
		}
	}
	return res
}

// lookup resolves an ID, tolerating a nil lookup and blank IDs.
func lookup(fn Lookup, id string) (*endpoint.Prompt, bool) {
	if fn == nil || id == "" {
		return nil, false
	}
	p, ok := fn(id)
	if !ok || p == nil {
		return nil, false
	}
	return p, true
}

// =============================================================================
// LANGUAGE AUGMENTATION
// =============================================================================

// LanguageInstruction returns the instruction sentence for a preferred
// language tag, or "" when the tag is the system default, empty, or does not
// name a displayable language.
func LanguageInstruction(tag string) string {
	if tag == "" || tag == SystemLanguage {
		return ""
	}
	t, err := language.Parse(tag)
	if err != nil || t == language.Und {
		return ""
	}
	name := display.English.Languages().Name(t)
	if name == "" {
		return ""
	}
	return "Please respond in " + name + "."
}
