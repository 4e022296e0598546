// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package service

import (
	"context"
	"errors"
	"fmt"
)

// =============================================================================
// ERROR TAXONOMY
// =============================================================================

// Sentinel errors for the dispatch pipeline.
var (
	// ErrNoServiceAvailable indicates no chat service has been constructed.
	ErrNoServiceAvailable = errors.New("no chat service available")

	// ErrNoEndpointsConfigured indicates the store holds no endpoints.
	ErrNoEndpointsConfigured = errors.New("no endpoints configured")

	// ErrNoEndpointSelected indicates no endpoint is currently selected.
	ErrNoEndpointSelected = errors.New("no endpoint selected")

	// ErrInvalidEndpoint indicates the endpoint configuration is incomplete
	// or inconsistent for its type.
	ErrInvalidEndpoint = errors.New("invalid endpoint")

	// ErrInvalidEndpointURL indicates the endpoint URL is empty or malformed.
	ErrInvalidEndpointURL = errors.New("invalid endpoint URL")

	// ErrUnauthorized indicates the endpoint rejected the credential.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalidResponse indicates the endpoint returned a body that could
	// not be interpreted as a chat response.
	ErrInvalidResponse = errors.New("invalid response from endpoint")

	// ErrInvalidModel indicates no usable model identifier was resolved for
	// a send.
	ErrInvalidModel = errors.New("invalid model")
)

// APIError represents a structured error reported by the endpoint itself.
type APIError struct {
	Code    string
	Message string
	Status  int
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error [%s] (HTTP %d): %s", e.Code, e.Status, e.Message)
	}
	return fmt.Sprintf("api error (HTTP %d): %s", e.Status, e.Message)
}

// =============================================================================
// ERROR CLASSIFICATION
// =============================================================================

// IsCancellation reports whether err represents a user-initiated interrupt
// rather than a failure. Cancellation must never surface as a displayed
// error.
func IsCancellation(err error) bool {
	return errors.Is(err, context.Canceled)
}

// DisplayMessage maps an error to the string shown in the failing transcript
// entry. Transport and decoding errors pass through with their own text.
func DisplayMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized - check the API token for this endpoint"
	case errors.Is(err, ErrInvalidResponse):
		return "the endpoint returned an unreadable response"
	case errors.Is(err, ErrInvalidModel):
		return "no model is selected for this endpoint"
	case errors.Is(err, ErrNoServiceAvailable):
		return "no chat service is available"
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return err.Error()
}
