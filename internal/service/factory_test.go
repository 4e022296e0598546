// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/rigchat-tui/internal/endpoint"
)

func TestCreate_RemoteAPI(t *testing.T) {
	cfg := endpoint.NewConfig("hosted", endpoint.TypeRemoteAPI, "https://api.example.com/")
	cfg.RequiresAuth = true

	svc, err := Create(cfg, "tok-test", FactoryOptions{})
	require.NoError(t, err)
	require.IsType(t, &RemoteService{}, svc)
}

func TestCreate_RemoteAPI_MissingToken(t *testing.T) {
	cfg := endpoint.NewConfig("hosted", endpoint.TypeRemoteAPI, "https://api.example.com")
	cfg.RequiresAuth = true

	_, err := Create(cfg, "", FactoryOptions{})
	assert.ErrorIs(t, err, ErrInvalidEndpoint)

	_, err = Create(cfg, "   ", FactoryOptions{})
	assert.ErrorIs(t, err, ErrInvalidEndpoint)
}

func TestCreate_RemoteAPI_NoAuthRequired(t *testing.T) {
	cfg := endpoint.NewConfig("open", endpoint.TypeRemoteAPI, "https://api.example.com")
	svc, err := Create(cfg, "", FactoryOptions{})
	require.NoError(t, err)
	assert.NotNil(t, svc)
}

func TestCreate_InvalidURL(t *testing.T) {
	tests := []struct {
		name string
		url  string
	}{
		{"empty", ""},
		{"whitespace", "   "},
		{"no scheme", "api.example.com"},
		{"bad scheme", "ftp://api.example.com"},
		{"no host", "https://"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := endpoint.NewConfig("bad", endpoint.TypeRemoteAPI, tt.url)
			_, err := Create(cfg, "tok", FactoryOptions{})
			assert.ErrorIs(t, err, ErrInvalidEndpointURL)
		})
	}
}

func TestCreate_LocalModel(t *testing.T) {
	cfg := endpoint.NewConfig("local", endpoint.TypeLocalModel, "/models/llama-3.gguf")

	svc, err := Create(cfg, "", FactoryOptions{})
	require.NoError(t, err)
	local, ok := svc.(*LocalService)
	require.True(t, ok)
	assert.Equal(t, "/models/llama-3.gguf", local.ModelPath())

	// Exactly the one loaded model, derived from the file name.
	models, err := svc.AvailableModels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"llama-3"}, models)
}

func TestCreate_LocalModel_DefaultModelWins(t *testing.T) {
	cfg := endpoint.NewConfig("local", endpoint.TypeLocalModel, "/models/llama-3.gguf")
	cfg.DefaultModel = "llama3:8b"

	svc, err := Create(cfg, "", FactoryOptions{})
	require.NoError(t, err)
	models, err := svc.AvailableModels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"llama3:8b"}, models)
}

func TestCreate_LocalModel_NoPath(t *testing.T) {
	cfg := endpoint.NewConfig("local", endpoint.TypeLocalModel, "")
	_, err := Create(cfg, "", FactoryOptions{})
	assert.ErrorIs(t, err, ErrInvalidEndpointURL)
}

func TestCreate_CustomAPI(t *testing.T) {
	cfg := endpoint.NewConfig("custom", endpoint.TypeCustomAPI, "http://10.0.0.5:8000")
	svc, err := Create(cfg, "", FactoryOptions{})
	require.NoError(t, err)
	require.IsType(t, &CustomService{}, svc)
}

func TestCreate_NilAndUnknown(t *testing.T) {
	_, err := Create(nil, "", FactoryOptions{})
	assert.ErrorIs(t, err, ErrNoEndpointSelected)

	cfg := endpoint.NewConfig("weird", endpoint.Type("websocket"), "https://x.example.com")
	_, err = Create(cfg, "", FactoryOptions{})
	assert.ErrorIs(t, err, ErrInvalidEndpoint)
}
