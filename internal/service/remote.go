// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package service

import (
	"context"
)

// =============================================================================
// REMOTE API SERVICE
// =============================================================================

// RemoteService talks to a hosted chat-completions API over HTTPS with
// bearer-token authentication.
type RemoteService struct {
	client *apiClient
}

// newRemoteService constructs the remote implementation. The factory has
// already validated the URL and credential.
func newRemoteService(baseURL, token, orgID string) *RemoteService {
	return &RemoteService{client: newAPIClient(baseURL, token, orgID)}
}

// SendMessage implements Service.
func (s *RemoteService) SendMessage(ctx context.Context, opts SendOptions) (<-chan Delta, error) {
	return s.client.stream(ctx, opts)
}

// AvailableModels implements Service. Failure means "use configured
// defaults", never fatal.
func (s *RemoteService) AvailableModels(ctx context.Context) ([]string, error) {
	return s.client.listModels(ctx)
}

// CancelRequest implements Service. Idempotent.
func (s *RemoteService) CancelRequest() {
	s.client.cancelRequest()
}
