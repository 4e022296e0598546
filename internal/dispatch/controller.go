// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package dispatch

import (
	"context"
	"log"
	"strings"
	"sync"

	"github.com/jeranaias/rigchat-tui/internal/endpoint"
	"github.com/jeranaias/rigchat-tui/internal/model"
	"github.com/jeranaias/rigchat-tui/internal/notify"
	"github.com/jeranaias/rigchat-tui/internal/prompt"
	"github.com/jeranaias/rigchat-tui/internal/service"
	"github.com/jeranaias/rigchat-tui/internal/store"
)

// =============================================================================
// COLLABORATOR INTERFACES
// =============================================================================

// Storage is the read side of the settings store the controller depends on.
type Storage interface {
	SavedEndpoints() []*endpoint.Config
	EndpointByID(id string) (*endpoint.Config, bool)
	PromptByID(id string) (*endpoint.Prompt, bool)
	DefaultEndpointID() string
	DefaultPromptID() string
	SystemPrompt() string
	UserPrompt() string
	PreferredLanguage() string
	Temperature() float64
	MaxTokens() int
}

// TokenSource yields the stored credential for an endpoint, if any.
type TokenSource interface {
	GetToken(endpointID string) (string, bool)
}

// Persister receives the finished transcript after a completed send.
type Persister interface {
	SaveConversation(ctx context.Context, rec *store.ConversationRecord) (string, error)
}

// Factory builds the concrete service for an endpoint configuration.
type Factory func(cfg *endpoint.Config, apiToken string) (service.Service, error)

// Options configure a Controller.
type Options struct {
	Storage   Storage
	Tokens    TokenSource
	Persister Persister

	// Factory overrides service construction; nil uses the default factory.
	Factory Factory

	// OnUpdate is invoked (outside the controller lock) whenever observable
	// state changed. Used by the UI to trigger a refresh.
	OnUpdate func()
}

// =============================================================================
// DISPATCH CONTROLLER
// =============================================================================

// Controller owns the active request lifecycle: transcript mutation,
// cancellation, prompt/service/model resolution, and error-to-transcript
// translation. At most one request is in flight at any time; starting a new
// send cancels and replaces any active one.
//
// All state lives behind one mutex. Streaming goroutines re-enter through
// applyDelta/finish, which check the send generation under the lock before
// touching anything, so a delta arriving after cancellation is dropped
// rather than applied.
type Controller struct {
	mu sync.Mutex

	storage  Storage
	tokens   TokenSource
	persist  Persister
	factory  Factory
	onUpdate func()

	transcript *model.Transcript
	convID     string

	svc             service.Service
	active          *endpoint.Config
	availableModels []string
	selectedModel   string
	chatPromptID    string

	statusMessage   string
	hasServiceError bool

	sending bool
	sendSvc service.Service
	cancel  context.CancelFunc

	// gen identifies the current send; resolveGen the current endpoint
	// resolution. A goroutine carrying a stale generation must not write.
	gen        uint64
	resolveGen uint64

	notice    string
	hasNotice bool
}

// NewController creates a controller over the given collaborators. Call
// Resolve (or Run) afterwards to bind the default endpoint.
func NewController(opts Options) *Controller {
	factory := opts.Factory
	if factory == nil {
		factory = func(cfg *endpoint.Config, token string) (service.Service, error) {
			return service.Create(cfg, token, service.FactoryOptions{})
		}
	}
	return &Controller{
		storage:    opts.Storage,
		tokens:     opts.Tokens,
		persist:    opts.Persister,
		factory:    factory,
		onUpdate:   opts.OnUpdate,
		transcript: model.NewTranscript(),
	}
}

// Run resolves the default endpoint, then re-resolves on every settings
// notification until ctx is cancelled or the event channel closes.
func (c *Controller) Run(ctx context.Context, events <-chan notify.Notification) {
	c.Resolve()
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-events:
			if !ok {
				return
			}
			c.Resolve()
		}
	}
}

// =============================================================================
// ENDPOINT / SERVICE / MODEL RESOLUTION
// =============================================================================

// Resolve is the single re-resolution entry point: every trigger (initial
// load, endpoint selection change, external update notification) funnels
// here, so service, model, and status state can only go stale in one place.
func (c *Controller) Resolve() {
	c.mu.Lock()
	c.resolveGen++

	eps := c.storage.SavedEndpoints()
	var selected *endpoint.Config
	if id := c.storage.DefaultEndpointID(); id != "" {
		selected, _ = c.storage.EndpointByID(id)
	}

	token, hasToken := "", false
	if selected != nil && c.tokens != nil {
		token, hasToken = c.tokens.GetToken(selected.ID)
	}

	// On any construction failure the service reference is cleared, never
	// left stale.
	var svc service.Service
	if selected != nil {
		built, err := c.factory(selected, token)
		if err != nil {
			log.Printf("service init for %q failed: %v", selected.Name, err)
		} else {
			svc = built
		}
	}
	c.svc = svc
	c.active = selected

	c.statusMessage, c.hasServiceError = endpoint.ComputeStatus(endpoint.StatusInput{
		EndpointCount: len(eps),
		Selected:      selected,
		HasToken:      hasToken,
		ServiceReady:  svc != nil,
	})

	c.updateModelsLocked()
	c.mu.Unlock()
	c.poke()
}

// updateModelsLocked applies the three-tier model fallback so that
// availableModels is never left empty while an endpoint is selected:
//
//   - local model endpoints expose exactly the configured model
//   - custom API endpoints with a stored list use it verbatim
//   - everything else gets the stored-or-default fallback immediately and a
//     background live fetch that replaces it on success
func (c *Controller) updateModelsLocked() {
	ep := c.active
	if ep == nil {
		c.availableModels = nil
		c.selectedModel = ""
		return
	}

	switch {
	case ep.Type == endpoint.TypeLocalModel && c.svc != nil:
		// No network involved for local services.
		models, err := c.svc.AvailableModels(context.Background())
		if err != nil || len(models) == 0 {
			models = fallbackModels(ep)
		}
		c.setModelsLocked(models)

	case ep.Type == endpoint.TypeCustomAPI && len(ep.AvailableModels) > 0:
		c.setModelsLocked(fallbackModels(ep))

	default:
		c.setModelsLocked(fallbackModels(ep))
		if c.svc != nil {
			go c.refreshModels(c.resolveGen, c.svc)
		}
	}
}

// refreshModels fetches the live model list. Failure or an empty result is
// recovered locally: the fallback installed by updateModelsLocked stands.
func (c *Controller) refreshModels(gen uint64, svc service.Service) {
	models, err := svc.AvailableModels(context.Background())
	if err != nil {
		log.Printf("model list refresh failed: %v", err)
		return
	}
	if len(models) == 0 {
		return
	}

	c.mu.Lock()
	if gen != c.resolveGen {
		// Endpoint changed while the fetch was in flight.
		c.mu.Unlock()
		return
	}
	c.setModelsLocked(models)
	c.mu.Unlock()
	c.poke()
}

// setModelsLocked installs a model list and picks the selection: the
// endpoint default when present in the list, else the first entry.
func (c *Controller) setModelsLocked(models []string) {
	c.availableModels = models
	c.selectedModel = ""
	if len(models) == 0 {
		return
	}
	c.selectedModel = models[0]
	if c.active == nil {
		return
	}
	for _, m := range models {
		if m == c.active.DefaultModel {
			c.selectedModel = m
			break
		}
	}
}

// fallbackModels returns the endpoint's stored list, or the singleton
// default-model list when nothing is stored.
func fallbackModels(ep *endpoint.Config) []string {
	if len(ep.AvailableModels) > 0 {
		out := make([]string, len(ep.AvailableModels))
		copy(out, ep.AvailableModels)
		return out
	}
	return []string{ep.DefaultModel}
}

// =============================================================================
// SEND LIFECYCLE
// =============================================================================

// SendText dispatches a text message. Blank input is a no-op.
func (c *Controller) SendText(text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	c.send(model.NewUserMessage(text))
}

// SendImage dispatches a base64-encoded image message.
func (c *Controller) SendImage(b64 string) {
	if b64 == "" {
		return
	}
	c.send(model.NewUserImageMessage(b64))
}

func (c *Controller) send(userMsg *model.Message) {
	c.mu.Lock()
	svc := c.svc
	if svc == nil {
		c.noticeLocked(service.DisplayMessage(service.ErrNoServiceAvailable))
		c.mu.Unlock()
		c.poke()
		return
	}

	// History excludes the message being sent; it travels as the request
	// content.
	history := c.transcript.History()
	c.transcript.Append(userMsg)

	// Cancel any prior in-flight request, network level first, then the
	// local task, before issuing the new call.
	if c.sending {
		if c.sendSvc != nil {
			c.sendSvc.CancelRequest()
		}
		if c.cancel != nil {
			c.cancel()
			c.cancel = nil
		}
	}

	placeholder := model.NewAssistantPlaceholder()
	c.transcript.Append(placeholder)

	var epPromptID, epID string
	if c.active != nil {
		epPromptID = c.active.DefaultPromptID
		epID = c.active.ID
	}
	resolved := prompt.Resolve(prompt.Input{
		ChatPromptID:      c.chatPromptID,
		EndpointPromptID:  epPromptID,
		GlobalSystem:      c.storage.SystemPrompt(),
		GlobalUser:        c.storage.UserPrompt(),
		PreferredLanguage: c.storage.PreferredLanguage(),
		Lookup:            c.storage.PromptByID,
	})

	opts := service.SendOptions{
		Content:      userMsg.Content,
		SystemPrompt: resolved.System,
		UserPrompt:   resolved.User,
		Model:        c.selectedModel,
		Temperature:  c.storage.Temperature(),
		MaxTokens:    c.storage.MaxTokens(),
		History:      history,
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.gen++
	gen := c.gen
	c.cancel = cancel
	c.sending = true
	c.sendSvc = svc
	meta := sendMeta{opts: opts, endpointID: epID, language: c.storage.PreferredLanguage()}
	c.mu.Unlock()
	c.poke()

	go c.consume(ctx, gen, svc, meta, placeholder)
}

// sendMeta carries the resolved send parameters through to persistence.
type sendMeta struct {
	opts       service.SendOptions
	endpointID string
	language   string
}

// consume pulls the delta stream for one send. It stops pulling as soon as
// the send is superseded or cancelled.
func (c *Controller) consume(ctx context.Context, gen uint64, svc service.Service, meta sendMeta, target *model.Message) {
	ch, err := svc.SendMessage(ctx, meta.opts)
	if err != nil {
		c.finish(gen, meta, target, err)
		return
	}

	var acc strings.Builder
	for d := range ch {
		if d.Err != nil {
			c.finish(gen, meta, target, d.Err)
			return
		}
		acc.WriteString(d.Text)
		if !c.applyDelta(gen, target, acc.String()) {
			return
		}
	}
	c.finish(gen, meta, target, nil)
}

// applyDelta writes the accumulated response into the placeholder message
// (replacement, not append). Returns false when the send is no longer
// current, in which case the delta is dropped and the caller stops pulling.
func (c *Controller) applyDelta(gen uint64, target *model.Message, full string) bool {
	c.mu.Lock()
	if gen != c.gen || !c.sending {
		c.mu.Unlock()
		return false
	}
	target.SetText(full)
	c.mu.Unlock()
	c.poke()
	return true
}

// finish closes out a send: Completed persists the transcript, Cancelled is
// silent, Failed writes the error into the placeholder and raises the
// one-shot notice.
func (c *Controller) finish(gen uint64, meta sendMeta, target *model.Message, err error) {
	c.mu.Lock()
	if gen != c.gen || !c.sending {
		c.mu.Unlock()
		return
	}
	c.sending = false
	c.sendSvc = nil
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}

	switch {
	case err == nil:
		c.persistLocked(meta)
	case service.IsCancellation(err):
		// User-initiated interrupt, not a failure. No error message, no
		// persistence.
	default:
		display := service.DisplayMessage(err)
		target.SetError("Error: " + display)
		c.noticeLocked(display)
	}
	c.mu.Unlock()
	c.poke()
}

// persistLocked hands the finished transcript to the persistence
// collaborator. Failure is logged, not surfaced: the response itself
// already succeeded.
func (c *Controller) persistLocked(meta sendMeta) {
	if c.persist == nil {
		return
	}
	rec := &store.ConversationRecord{
		ID:           c.convID,
		Model:        meta.opts.Model,
		SystemPrompt: meta.opts.SystemPrompt,
		UserPrompt:   meta.opts.UserPrompt,
		Language:     meta.language,
		EndpointID:   meta.endpointID,
		Messages:     c.transcript.Messages(),
	}
	id, err := c.persist.SaveConversation(context.Background(), rec)
	if err != nil {
		log.Printf("conversation save failed: %v", err)
		return
	}
	c.convID = id
}

// Cancel aborts the in-flight send, if any. Idempotent; a send that already
// finished is left untouched. Partial response text stays in the transcript.
func (c *Controller) Cancel() {
	c.mu.Lock()
	if !c.sending {
		c.mu.Unlock()
		return
	}
	if c.sendSvc != nil {
		c.sendSvc.CancelRequest()
	}
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.gen++ // late-arriving deltas carry the old generation and are dropped
	c.sending = false
	c.sendSvc = nil
	c.mu.Unlock()
	c.poke()
}

// ClearConversation cancels any in-flight send and empties the transcript,
// starting a fresh conversation.
func (c *Controller) ClearConversation() {
	c.Cancel()
	c.mu.Lock()
	c.transcript.Clear()
	c.convID = ""
	c.mu.Unlock()
	c.poke()
}

// =============================================================================
// OBSERVABLE STATE
// =============================================================================

// Messages returns the transcript in append order. Entries are value
// snapshots taken under the lock; the UI goroutine reads them while the
// streaming goroutine keeps rewriting the live placeholder, so shared
// pointers must never escape here.
func (c *Controller) Messages() []model.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transcript.Snapshot()
}

// IsSending reports whether a request is in flight.
func (c *Controller) IsSending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sending
}

// Status returns the endpoint status message and whether it represents a
// service error. Empty message means chat is available (or nothing is
// selected yet).
func (c *Controller) Status() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statusMessage, c.hasServiceError
}

// ActiveEndpoint returns the resolved endpoint, nil when none is selected.
func (c *Controller) ActiveEndpoint() *endpoint.Config {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// AvailableModels returns the current model list.
func (c *Controller) AvailableModels() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.availableModels))
	copy(out, c.availableModels)
	return out
}

// SelectedModel returns the model the next send will request.
func (c *Controller) SelectedModel() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selectedModel
}

// SelectModel picks a model from the available list. Unknown names are
// ignored.
func (c *Controller) SelectModel(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, m := range c.availableModels {
		if m == name {
			c.selectedModel = name
			return
		}
	}
}

// SelectPrompt sets the chat-level prompt selection, which takes precedence
// over the endpoint and global defaults. Empty clears it.
func (c *Controller) SelectPrompt(id string) {
	c.mu.Lock()
	c.chatPromptID = id
	c.mu.Unlock()
}

// TakeNotice returns and clears the one-shot failure notice.
func (c *Controller) TakeNotice() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	msg, ok := c.notice, c.hasNotice
	c.notice, c.hasNotice = "", false
	return msg, ok
}

func (c *Controller) noticeLocked(msg string) {
	c.notice = msg
	c.hasNotice = true
}

func (c *Controller) poke() {
	if c.onUpdate != nil {
		c.onUpdate()
	}
}
