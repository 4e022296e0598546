// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package service

import (
	"context"
)

// =============================================================================
// CUSTOM API SERVICE
// =============================================================================

// CustomService talks to a self-hosted OpenAI-compatible server. Unlike the
// remote service a credential is optional, and operators commonly pin the
// model list in the endpoint config instead of exposing a models route.
type CustomService struct {
	client *apiClient
}

// newCustomService constructs the custom-API implementation.
func newCustomService(baseURL, token, orgID string) *CustomService {
	return &CustomService{client: newAPIClient(baseURL, token, orgID)}
}

// SendMessage implements Service.
func (s *CustomService) SendMessage(ctx context.Context, opts SendOptions) (<-chan Delta, error) {
	return s.client.stream(ctx, opts)
}

// AvailableModels implements Service. Many custom servers do not implement
// the models route; callers treat failure as "use the stored list".
func (s *CustomService) AvailableModels(ctx context.Context) ([]string, error) {
	return s.client.listModels(ctx)
}

// CancelRequest implements Service. Idempotent.
func (s *CustomService) CancelRequest() {
	s.client.cancelRequest()
}
