// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package service

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/jeranaias/rigchat-tui/internal/endpoint"
)

// =============================================================================
// SERVICE FACTORY
// =============================================================================

// FactoryOptions tune service construction.
type FactoryOptions struct {
	// LocalRuntimeURL overrides the local inference runtime address.
	// Empty means DefaultLocalRuntimeURL.
	LocalRuntimeURL string
}

// Create constructs the concrete Service for the endpoint configuration.
// Construction is pure with respect to network I/O: no request is made.
//
// Fails with ErrInvalidEndpointURL when the URL is empty or malformed for a
// type that requires one, and with ErrInvalidEndpoint when the endpoint
// requires auth and no token is supplied.
func Create(cfg *endpoint.Config, apiToken string, opts FactoryOptions) (Service, error) {
	if cfg == nil {
		return nil, ErrNoEndpointSelected
	}

	switch cfg.Type {
	case endpoint.TypeLocalModel:
		if !cfg.HasURL() {
			return nil, fmt.Errorf("%w: local model file not set", ErrInvalidEndpointURL)
		}
		return newLocalService(cfg.URL, cfg.DefaultModel, opts.LocalRuntimeURL), nil

	case endpoint.TypeRemoteAPI:
		if err := validateHTTPURL(cfg.URL); err != nil {
			return nil, err
		}
		if cfg.RequiresAuth && strings.TrimSpace(apiToken) == "" {
			return nil, fmt.Errorf("%w: endpoint requires an API token", ErrInvalidEndpoint)
		}
		return newRemoteService(cfg.BaseURL(), apiToken, cfg.OrganizationID), nil

	case endpoint.TypeCustomAPI:
		if err := validateHTTPURL(cfg.URL); err != nil {
			return nil, err
		}
		if cfg.RequiresAuth && strings.TrimSpace(apiToken) == "" {
			return nil, fmt.Errorf("%w: endpoint requires an API token", ErrInvalidEndpoint)
		}
		return newCustomService(cfg.BaseURL(), apiToken, cfg.OrganizationID), nil

	default:
		return nil, fmt.Errorf("%w: unknown endpoint type %q", ErrInvalidEndpoint, cfg.Type)
	}
}

// validateHTTPURL checks that the value parses as an absolute http(s) URL.
func validateHTTPURL(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fmt.Errorf("%w: URL is empty", ErrInvalidEndpointURL)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEndpointURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %s", ErrInvalidEndpointURL, raw)
	}
	return nil
}
