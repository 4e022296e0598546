// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package service

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/jeranaias/rigchat-tui/internal/model"
)

// =============================================================================
// HTTP CONFIGURATION
// =============================================================================

const (
	// DefaultTimeout is the timeout for non-streaming API requests.
	DefaultTimeout = 60 * time.Second

	// MaxResponseSize caps non-streaming response bodies.
	MaxResponseSize = 10 * 1024 * 1024 // 10MB

	// completionsPath is the chat completions endpoint path.
	completionsPath = "/v1/chat/completions"

	// modelsPath is the model listing endpoint path.
	modelsPath = "/models"

	userAgent = "rigchat/0.1.0"
)

var (
	// Shared HTTP client with connection pooling for all non-streaming
	// requests.
	sharedHTTPClient = &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
		},
		Timeout: DefaultTimeout,
	}

	// sharedStreamingClient has no client timeout; streaming lifetime is
	// controlled through the request context.
	sharedStreamingClient = &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
		},
	}
)

// =============================================================================
// WIRE TYPES
// =============================================================================

// wireMessage is one role/content pair on the wire. Content is either a
// plain string or a list of typed content parts (text / image_url).
type wireMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

// contentPart is one element of a multi-part message content.
type contentPart struct {
	Type     string        `json:"type"`
	Text     string        `json:"text,omitempty"`
	ImageURL *imagePayload `json:"image_url,omitempty"`
}

// imagePayload carries a base64 image as a data URL.
type imagePayload struct {
	URL string `json:"url"`
}

// chatRequest is the body POSTed to the chat completions endpoint.
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []wireMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Stream      bool          `json:"stream"`
}

// chatResponse is a complete (non-streamed) chat completions response.
type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// modelsResponse is the body of the model listing endpoint.
type modelsResponse struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
}

// apiErrorResponse is the error envelope returned by the API.
type apiErrorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// =============================================================================
// API CLIENT
// =============================================================================

// apiClient is the OpenAI-compatible HTTP client shared by the remote and
// custom service implementations.
type apiClient struct {
	baseURL string
	token   string
	orgID   string

	// limiter paces outbound sends so rapid resends cannot hammer the
	// endpoint. Advisory only; a blocked Wait still honors ctx.
	limiter *rate.Limiter

	cancelMgr cancelManager
}

// newAPIClient creates a client for the given base URL. The base URL is
// stored with any trailing slash stripped.
func newAPIClient(baseURL, token, orgID string) *apiClient {
	return &apiClient{
		baseURL: strings.TrimSuffix(strings.TrimSpace(baseURL), "/"),
		token:   strings.TrimSpace(token),
		orgID:   orgID,
		limiter: rate.NewLimiter(rate.Limit(2), 4),
	}
}

// setHeaders sets the required headers for API requests.
func (c *apiClient) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.orgID != "" {
		req.Header.Set("OpenAI-Organization", c.orgID)
	}
}

// cancelRequest aborts the in-flight request, if any. Idempotent.
func (c *apiClient) cancelRequest() {
	c.cancelMgr.cancel()
}

// =============================================================================
// CHAT STREAMING
// =============================================================================

// stream issues the chat completions request and returns a lazy delta
// channel. The HTTP call itself happens synchronously so construction-time
// failures (auth, transport) surface as an ordinary error return.
func (c *apiClient) stream(ctx context.Context, opts SendOptions) (<-chan Delta, error) {
	if strings.TrimSpace(opts.Model) == "" {
		return nil, ErrInvalidModel
	}

	ctx, cancel := context.WithCancel(ctx)
	c.cancelMgr.set(cancel)

	if err := c.limiter.Wait(ctx); err != nil {
		cancel()
		return nil, err
	}

	bodyBytes, err := json.Marshal(buildChatRequest(opts))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+completionsPath, bytes.NewReader(bodyBytes))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := sharedStreamingClient.Do(req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := readResponse(resp)
		resp.Body.Close()
		cancel()
		return nil, handleErrorResponse(resp.StatusCode, body)
	}

	out := make(chan Delta, 64)
	go func() {
		defer close(out)
		defer resp.Body.Close()

		// A non-SSE response is a single JSON object; yield its content as
		// one delta.
		if !strings.Contains(resp.Header.Get("Content-Type"), "text/event-stream") {
			c.emitSingleResponse(ctx, resp, out)
			return
		}

		if err := decodeStream(ctx, resp.Body, out); err != nil {
			select {
			case out <- Delta{Err: err}:
			case <-ctx.Done():
			}
		}
	}()
	return out, nil
}

// emitSingleResponse parses a complete chat response body and yields its
// content as a single delta.
func (c *apiClient) emitSingleResponse(ctx context.Context, resp *http.Response, out chan<- Delta) {
	body, err := readResponse(resp)
	if err != nil {
		sendDelta(ctx, out, Delta{Err: err})
		return
	}

	var chatResp chatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		sendDelta(ctx, out, Delta{Err: fmt.Errorf("%w: %v", ErrInvalidResponse, err)})
		return
	}
	if len(chatResp.Choices) == 0 {
		sendDelta(ctx, out, Delta{Err: ErrInvalidResponse})
		return
	}
	sendDelta(ctx, out, Delta{Text: chatResp.Choices[0].Message.Content})
}

// sendDelta delivers a delta unless the context has been cancelled.
func sendDelta(ctx context.Context, out chan<- Delta, d Delta) {
	select {
	case out <- d:
	case <-ctx.Done():
	}
}

// buildChatRequest assembles the wire body for one chat turn. The resolved
// system prompt leads the message list; the resolved user prompt text is
// prepended to the new user input.
func buildChatRequest(opts SendOptions) chatRequest {
	messages := make([]wireMessage, 0, len(opts.History)+2)

	if opts.SystemPrompt != "" {
		messages = append(messages, wireMessage{Role: "system", Content: opts.SystemPrompt})
	}

	for _, h := range opts.History {
		messages = append(messages, toWireMessage(string(h.Role), h.Content, ""))
	}

	messages = append(messages, toWireMessage("user", opts.Content, opts.UserPrompt))

	return chatRequest{
		Model:       opts.Model,
		Messages:    messages,
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
		Stream:      true,
	}
}

// toWireMessage converts a content variant into its wire form. Text goes out
// as a plain string; images go out as an image_url content part carrying a
// data URL. A non-empty prefix (the resolved user prompt) is prepended to
// text content, or added as a leading text part for images.
func toWireMessage(role string, content model.Content, prefix string) wireMessage {
	if content.Kind == model.ContentImage {
		parts := []contentPart{}
		if prefix != "" {
			parts = append(parts, contentPart{Type: "text", Text: prefix})
		}
		parts = append(parts, contentPart{
			Type:     "image_url",
			ImageURL: &imagePayload{URL: "data:image/jpeg;base64," + content.Image},
		})
		return wireMessage{Role: role, Content: parts}
	}

	text := content.Text
	if prefix != "" {
		text = prefix + "\n\n" + text
	}
	return wireMessage{Role: role, Content: text}
}

// =============================================================================
// MODEL LISTING
// =============================================================================

// listModels retrieves the available model identifiers, sorted
// lexicographically. Failures are ordinary errors; callers fall back to the
// configured defaults.
func (c *apiClient) listModels(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+modelsPath, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := sharedHTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := readResponse(resp)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, handleErrorResponse(resp.StatusCode, body)
	}

	var modelsResp modelsResponse
	if err := json.Unmarshal(body, &modelsResp); err != nil {
		return nil, fmt.Errorf("failed to parse models response: %w", err)
	}

	models := make([]string, 0, len(modelsResp.Data))
	for _, m := range modelsResp.Data {
		if m.ID != "" {
			models = append(models, m.ID)
		}
	}
	sort.Strings(models)
	return models, nil
}

// =============================================================================
// ERROR HANDLING
// =============================================================================

// readResponse reads a response body with a size limit.
func readResponse(resp *http.Response) ([]byte, error) {
	limitedReader := io.LimitReader(resp.Body, MaxResponseSize)
	body, err := io.ReadAll(limitedReader)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if int64(len(body)) == MaxResponseSize {
		return nil, fmt.Errorf("response exceeded maximum size of %d bytes", MaxResponseSize)
	}
	return body, nil
}

// handleErrorResponse converts HTTP error responses to taxonomy errors.
func handleErrorResponse(statusCode int, body []byte) error {
	var apiErr apiErrorResponse
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
		if statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden {
			return fmt.Errorf("%w: %s", ErrUnauthorized, apiErr.Error.Message)
		}
		return &APIError{
			Code:    apiErr.Error.Code,
			Message: apiErr.Error.Message,
			Status:  statusCode,
		}
	}

	if statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden {
		return ErrUnauthorized
	}
	return &APIError{
		Message: strings.TrimSpace(string(body)),
		Status:  statusCode,
	}
}
