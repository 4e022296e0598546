// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jeranaias/rigchat-tui/internal/endpoint"
)

func testLookup(prompts ...*endpoint.Prompt) Lookup {
	byID := make(map[string]*endpoint.Prompt, len(prompts))
	for _, p := range prompts {
		byID[p.ID] = p
	}
	return func(id string) (*endpoint.Prompt, bool) {
		p, ok := byID[id]
		return p, ok
	}
}

func TestResolve_ChatPromptWins(t *testing.T) {
	chatPrompt := endpoint.NewPrompt("chat", "chat system", "chat user")
	endpointPrompt := endpoint.NewPrompt("ep", "ep system", "ep user")

	res := Resolve(Input{
		ChatPromptID:     chatPrompt.ID,
		EndpointPromptID: endpointPrompt.ID,
		GlobalSystem:     "global system",
		GlobalUser:       "global user",
		Lookup:           testLookup(chatPrompt, endpointPrompt),
	})
	assert.Equal(t, "chat system", res.System)
	assert.Equal(t, "chat user", res.User)
}

func TestResolve_EndpointDefaultBeatsGlobal(t *testing.T) {
	endpointPrompt := endpoint.NewPrompt("ep", "ep system", "ep user")

	res := Resolve(Input{
		EndpointPromptID: endpointPrompt.ID,
		GlobalSystem:     "global system",
		GlobalUser:       "global user",
		Lookup:           testLookup(endpointPrompt),
	})
	assert.Equal(t, "ep system", res.System)
	assert.Equal(t, "ep user", res.User)
}

func TestResolve_FallsBackToGlobal(t *testing.T) {
	res := Resolve(Input{
		GlobalSystem: "global system",
		GlobalUser:   "global user",
		Lookup:       testLookup(),
	})
	assert.Equal(t, "global system", res.System)
	assert.Equal(t, "global user", res.User)
}

func TestResolve_UnresolvableIDsFallThrough(t *testing.T) {
	endpointPrompt := endpoint.NewPrompt("ep", "ep system", "ep user")

	// Chat prompt ID set but deleted from the store: endpoint default wins.
	res := Resolve(Input{
		ChatPromptID:     "gone",
		EndpointPromptID: endpointPrompt.ID,
		GlobalSystem:     "global system",
		Lookup:           testLookup(endpointPrompt),
	})
	assert.Equal(t, "ep system", res.System)

	// Both unresolvable: global wins. Nil lookup tolerated.
	res = Resolve(Input{
		ChatPromptID:     "gone",
		EndpointPromptID: "also gone",
		GlobalSystem:     "global system",
	})
	assert.Equal(t, "global system", res.System)
}

func TestResolve_LanguageAppendedOnceAfterResolution(t *testing.T) {
	chatPrompt := endpoint.NewPrompt("chat", "chat system", "")

	res := Resolve(Input{
		ChatPromptID:      chatPrompt.ID,
		GlobalSystem:      "global system",
		PreferredLanguage: "de",
		Lookup:            testLookup(chatPrompt),
	})

	// Appended to the winning source, after a blank line, exactly once.
	assert.Equal(t, "chat system\n\nPlease respond in German.", res.System)
	assert.Equal(t, 1, strings.Count(res.System, "Please respond in"))
}

func TestResolve_LanguageOnEmptySystem(t *testing.T) {
	res := Resolve(Input{PreferredLanguage: "ja"})
	assert.Equal(t, "Please respond in Japanese.", res.System)
}

func TestResolve_SystemLanguageNoAugmentation(t *testing.T) {
	for _, tag := range []string{"", SystemLanguage, "not-a-tag-at-all-!!"} {
		res := Resolve(Input{GlobalSystem: "global system", PreferredLanguage: tag})
		assert.Equal(t, "global system", res.System, "tag %q", tag)
	}
}

func TestLanguageInstruction(t *testing.T) {
	assert.Equal(t, "Please respond in German.", LanguageInstruction("de"))
	assert.Equal(t, "Please respond in French.", LanguageInstruction("fr"))
	assert.Equal(t, "", LanguageInstruction(""))
	assert.Equal(t, "", LanguageInstruction(SystemLanguage))
	assert.Equal(t, "", LanguageInstruction("!!bad tag!!"))
}
