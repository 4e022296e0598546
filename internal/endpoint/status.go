// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package endpoint

// =============================================================================
// ENDPOINT STATUS
// =============================================================================

// Status messages shown when the chat service cannot be used.
const (
	StatusNoEndpoints    = "No endpoints configured."
	StatusNoModelFile    = "Local model file not selected."
	StatusTokenRequired  = "API token required for this endpoint."
	StatusServiceFailure = "Could not initialize chat service."
)

// StatusInput is a snapshot of the selection state the status function is
// computed over.
type StatusInput struct {
	// EndpointCount is the number of configured endpoints.
	EndpointCount int

	// Selected is the currently selected endpoint, nil when none.
	Selected *Config

	// HasToken reports whether a credential is stored for the selected
	// endpoint.
	HasToken bool

	// ServiceReady reports whether a service was successfully constructed
	// for the selected endpoint.
	ServiceReady bool
}

// ComputeStatus returns the user-facing status message for the given state,
// or ("", false) when there is nothing wrong. It is a pure function of its
// input; priority order, first match wins:
//
//  1. no endpoints exist at all
//  2. selected local model endpoint has no file path
//  3. selected endpoint requires auth and no token is stored
//  4. endpoint selected but service construction failed anyway
//  5. nothing selected (valid idle state, no error)
//  6. service available, no error
func ComputeStatus(in StatusInput) (string, bool) {
	if in.EndpointCount == 0 {
		return StatusNoEndpoints, true
	}
	if in.Selected != nil {
		if in.Selected.Type == TypeLocalModel && !in.Selected.HasURL() {
			return StatusNoModelFile, true
		}
		if in.Selected.RequiresAuth && !in.HasToken {
			return StatusTokenRequired, true
		}
		if !in.ServiceReady {
			return StatusServiceFailure, true
		}
	}
	return "", false
}
