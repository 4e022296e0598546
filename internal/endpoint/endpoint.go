// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package endpoint

import (
	"strings"

	"github.com/google/uuid"
)

// =============================================================================
// ENDPOINT TYPE
// =============================================================================

// Type identifies the kind of backend an endpoint points at.
type Type string

const (
	// TypeRemoteAPI is a hosted chat-completions API.
	TypeRemoteAPI Type = "remote_api"
	// TypeLocalModel is a model file served by a local runtime.
	TypeLocalModel Type = "local_model"
	// TypeCustomAPI is a self-hosted OpenAI-compatible server.
	TypeCustomAPI Type = "custom_api"
)

// String returns the string representation of the type.
func (t Type) String() string {
	return string(t)
}

// Valid reports whether the type is one of the known endpoint kinds.
func (t Type) Valid() bool {
	switch t {
	case TypeRemoteAPI, TypeLocalModel, TypeCustomAPI:
		return true
	}
	return false
}

// =============================================================================
// ENDPOINT CONFIG
// =============================================================================

// Config describes one configured backend target. Owned by the store; the
// dispatch core only reads it.
type Config struct {
	ID   string `toml:"id" json:"id"`
	Name string `toml:"name" json:"name"`

	// URL is the base URL for API endpoints, or the model file path for
	// local model endpoints.
	URL string `toml:"url" json:"url"`

	Type         Type `toml:"type" json:"type"`
	RequiresAuth bool `toml:"requires_auth" json:"requires_auth"`

	// DefaultModel is used when no live model list is available.
	DefaultModel string `toml:"default_model" json:"default_model"`

	// AvailableModels is the stored model list, possibly empty.
	AvailableModels []string `toml:"available_models" json:"available_models"`

	// DefaultPromptID optionally references a saved prompt.
	DefaultPromptID string `toml:"default_prompt_id" json:"default_prompt_id,omitempty"`

	// OrganizationID is sent as the OpenAI-Organization header when set.
	OrganizationID string `toml:"organization_id" json:"organization_id,omitempty"`
}

// NewConfig creates an endpoint config with a generated ID.
func NewConfig(name string, typ Type, url string) *Config {
	return &Config{
		ID:   uuid.NewString(),
		Name: name,
		Type: typ,
		URL:  url,
	}
}

// BaseURL returns the URL with any trailing slash stripped, ready for path
// concatenation.
func (c *Config) BaseURL() string {
	return strings.TrimSuffix(strings.TrimSpace(c.URL), "/")
}

// HasURL reports whether a non-blank URL (or model path) is configured.
func (c *Config) HasURL() bool {
	return strings.TrimSpace(c.URL) != ""
}

// =============================================================================
// PROMPT CONFIG
// =============================================================================

// Prompt is a named, selectable pair of system/user instruction text.
// Owned by the store; read-only to the dispatch core.
type Prompt struct {
	ID           string `toml:"id" json:"id"`
	Name         string `toml:"name" json:"name"`
	SystemPrompt string `toml:"system_prompt" json:"system_prompt"`
	UserPrompt   string `toml:"user_prompt" json:"user_prompt"`
}

// NewPrompt creates a prompt config with a generated ID.
func NewPrompt(name, system, user string) *Prompt {
	return &Prompt{
		ID:           uuid.NewString(),
		Name:         name,
		SystemPrompt: system,
		UserPrompt:   user,
	}
}
