// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/rigchat-tui/internal/endpoint"
	"github.com/jeranaias/rigchat-tui/internal/notify"
	"github.com/jeranaias/rigchat-tui/internal/prompt"
)

// =============================================================================
// DEFAULTS
// =============================================================================

const (
	// DefaultSystemPrompt is the global fallback system prompt.
	DefaultSystemPrompt = "You are a helpful assistant."

	// DefaultTemperature is used when the settings file does not set one.
	DefaultTemperature = 0.7

	// settingsFileName is the settings file under the config directory.
	settingsFileName = "config.toml"
)

// ErrNotFound indicates a referenced endpoint or prompt does not exist.
var ErrNotFound = errors.New("not found")

// DefaultDir returns the rigchat configuration directory (~/.rigchat).
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, ".rigchat"), nil
}

// =============================================================================
// SETTINGS FILE
// =============================================================================

// settingsFile is the on-disk TOML shape.
type settingsFile struct {
	DefaultEndpointID string  `toml:"default_endpoint_id"`
	DefaultPromptID   string  `toml:"default_prompt_id"`
	SystemPrompt      string  `toml:"system_prompt"`
	UserPrompt        string  `toml:"user_prompt"`
	PreferredLanguage string  `toml:"preferred_language"`
	Temperature       float64 `toml:"temperature"`
	MaxTokens         int     `toml:"max_tokens"`

	Endpoints []*endpoint.Config `toml:"endpoints"`
	Prompts   []*endpoint.Prompt `toml:"prompts"`
}

func defaultSettings() settingsFile {
	return settingsFile{
		SystemPrompt:      DefaultSystemPrompt,
		PreferredLanguage: prompt.SystemLanguage,
		Temperature:       DefaultTemperature,
	}
}

// Settings is the mutable, mutex-guarded settings store. Every mutation is
// persisted atomically and announced on the notification bus.
type Settings struct {
	mu   sync.RWMutex
	path string
	data settingsFile
	bus  *notify.Bus
}

// OpenSettings loads (or initializes) the settings file in dir and binds the
// given notification bus. A missing file is not an error; defaults apply.
func OpenSettings(dir string, bus *notify.Bus) (*Settings, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create config dir: %w", err)
	}

	s := &Settings{
		path: filepath.Join(dir, settingsFileName),
		data: defaultSettings(),
		bus:  bus,
	}
	if err := s.Reload(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	return s, nil
}

// Path returns the settings file path (used by the watcher).
func (s *Settings) Path() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.path
}

// Reload re-reads the settings file from disk.
func (s *Settings) Reload() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}

	data := defaultSettings()
	if err := toml.Unmarshal(raw, &data); err != nil {
		return fmt.Errorf("failed to parse %s: %w", s.path, err)
	}
	s.data = data
	return nil
}

// save writes the settings file atomically. Caller must hold the lock.
func (s *Settings) save() error {
	tmp := s.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}
	if err := toml.NewEncoder(f).Encode(s.data); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, s.path)
}

// publish announces a change, tolerating a nil bus.
func (s *Settings) publish(event notify.Event, id string) {
	if s.bus != nil {
		s.bus.Publish(notify.Notification{Event: event, ID: id})
	}
}

// =============================================================================
// READ SIDE (consumed by the dispatch controller)
// =============================================================================

// SavedEndpoints returns the configured endpoints in stored order.
func (s *Settings) SavedEndpoints() []*endpoint.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*endpoint.Config, len(s.data.Endpoints))
	copy(out, s.data.Endpoints)
	return out
}

// SavedPrompts returns the saved prompts in stored order.
func (s *Settings) SavedPrompts() []*endpoint.Prompt {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*endpoint.Prompt, len(s.data.Prompts))
	copy(out, s.data.Prompts)
	return out
}

// EndpointByID resolves an endpoint reference. Absence is a lookup miss, not
// a crash.
func (s *Settings) EndpointByID(id string) (*endpoint.Config, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.data.Endpoints {
		if e.ID == id {
			return e, true
		}
	}
	return nil, false
}

// PromptByID resolves a saved prompt reference.
func (s *Settings) PromptByID(id string) (*endpoint.Prompt, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.data.Prompts {
		if p.ID == id {
			return p, true
		}
	}
	return nil, false
}

// DefaultEndpointID returns the default endpoint reference, possibly empty.
func (s *Settings) DefaultEndpointID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.DefaultEndpointID
}

// DefaultPromptID returns the default prompt reference, possibly empty.
func (s *Settings) DefaultPromptID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.DefaultPromptID
}

// SystemPrompt returns the global system prompt text.
func (s *Settings) SystemPrompt() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.SystemPrompt
}

// UserPrompt returns the global user prompt text.
func (s *Settings) UserPrompt() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.UserPrompt
}

// PreferredLanguage returns the preferred response language tag.
func (s *Settings) PreferredLanguage() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.PreferredLanguage
}

// Temperature returns the sampling temperature for sends.
func (s *Settings) Temperature() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.Temperature
}

// MaxTokens returns the response length cap, 0 for none.
func (s *Settings) MaxTokens() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.MaxTokens
}

// =============================================================================
// WRITE SIDE (endpoint/prompt management)
// =============================================================================

// AddEndpoint appends an endpoint and persists.
func (s *Settings) AddEndpoint(cfg *endpoint.Config) error {
	s.mu.Lock()
	s.data.Endpoints = append(s.data.Endpoints, cfg)
	err := s.save()
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.publish(notify.EventEndpointUpdated, cfg.ID)
	return nil
}

// UpdateEndpoint replaces the stored endpoint with the same ID and persists.
func (s *Settings) UpdateEndpoint(cfg *endpoint.Config) error {
	s.mu.Lock()
	found := false
	for i, e := range s.data.Endpoints {
		if e.ID == cfg.ID {
			s.data.Endpoints[i] = cfg
			found = true
			break
		}
	}
	if !found {
		s.mu.Unlock()
		return fmt.Errorf("%w: endpoint %s", ErrNotFound, cfg.ID)
	}
	err := s.save()
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.publish(notify.EventEndpointUpdated, cfg.ID)
	return nil
}

// RemoveEndpoint deletes an endpoint, clearing the default reference when it
// pointed at the removed entry.
func (s *Settings) RemoveEndpoint(id string) error {
	s.mu.Lock()
	kept := s.data.Endpoints[:0]
	for _, e := range s.data.Endpoints {
		if e.ID != id {
			kept = append(kept, e)
		}
	}
	s.data.Endpoints = kept
	if s.data.DefaultEndpointID == id {
		s.data.DefaultEndpointID = ""
	}
	err := s.save()
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.publish(notify.EventEndpointUpdated, id)
	return nil
}

// SetDefaultEndpoint changes the default endpoint selection and persists.
func (s *Settings) SetDefaultEndpoint(id string) error {
	s.mu.Lock()
	s.data.DefaultEndpointID = id
	err := s.save()
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.publish(notify.EventDefaultEndpointChanged, id)
	return nil
}

// AddPrompt appends a saved prompt and persists.
func (s *Settings) AddPrompt(p *endpoint.Prompt) error {
	s.mu.Lock()
	s.data.Prompts = append(s.data.Prompts, p)
	err := s.save()
	s.mu.Unlock()
	return err
}

// SetDefaultPrompt changes the default prompt selection and persists.
func (s *Settings) SetDefaultPrompt(id string) error {
	s.mu.Lock()
	s.data.DefaultPromptID = id
	err := s.save()
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.publish(notify.EventDefaultPromptChanged, id)
	return nil
}

// SetPreferredLanguage changes the preferred language tag and persists.
func (s *Settings) SetPreferredLanguage(tag string) error {
	s.mu.Lock()
	s.data.PreferredLanguage = tag
	err := s.save()
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.publish(notify.EventLanguageChanged, tag)
	return nil
}
