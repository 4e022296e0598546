// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package service

import (
	"context"
	"path/filepath"
	"strings"
)

// =============================================================================
// LOCAL MODEL SERVICE
// =============================================================================

// DefaultLocalRuntimeURL is the base URL of the local inference runtime.
// Uses the explicit IPv4 address instead of localhost to avoid IPv6
// resolution issues on Windows.
const DefaultLocalRuntimeURL = "http://127.0.0.1:8080"

// LocalService serves chat from a model file loaded by a local
// OpenAI-compatible runtime. The endpoint URL field holds the model file
// path, not a network address.
type LocalService struct {
	client    *apiClient
	modelPath string
	modelName string
}

// newLocalService constructs the local-model implementation. runtimeURL may
// be empty, in which case the default local runtime address is used.
func newLocalService(modelPath, defaultModel, runtimeURL string) *LocalService {
	if runtimeURL == "" {
		runtimeURL = DefaultLocalRuntimeURL
	}
	name := defaultModel
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(modelPath), filepath.Ext(modelPath))
	}
	return &LocalService{
		client:    newAPIClient(runtimeURL, "", ""),
		modelPath: modelPath,
		modelName: name,
	}
}

// SendMessage implements Service. The model field always names the loaded
// local model regardless of what the caller resolved.
func (s *LocalService) SendMessage(ctx context.Context, opts SendOptions) (<-chan Delta, error) {
	opts.Model = s.modelName
	return s.client.stream(ctx, opts)
}

// AvailableModels implements Service. A local endpoint exposes exactly the
// one loaded model; no network call is made.
func (s *LocalService) AvailableModels(ctx context.Context) ([]string, error) {
	return []string{s.modelName}, nil
}

// CancelRequest implements Service. Idempotent.
func (s *LocalService) CancelRequest() {
	s.client.cancelRequest()
}

// ModelPath returns the configured model file path.
func (s *LocalService) ModelPath() string {
	return s.modelPath
}
