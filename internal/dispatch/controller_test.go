// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package dispatch

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/rigchat-tui/internal/endpoint"
	"github.com/jeranaias/rigchat-tui/internal/model"
	"github.com/jeranaias/rigchat-tui/internal/service"
	"github.com/jeranaias/rigchat-tui/internal/store"
)

// =============================================================================
// TEST DOUBLES
// =============================================================================

type fakeStorage struct {
	endpoints  []*endpoint.Config
	prompts    []*endpoint.Prompt
	defaultEP  string
	defaultPr  string
	system     string
	user       string
	language   string
	temp       float64
	maxTokens  int
}

func (f *fakeStorage) SavedEndpoints() []*endpoint.Config { return f.endpoints }
func (f *fakeStorage) EndpointByID(id string) (*endpoint.Config, bool) {
	for _, e := range f.endpoints {
		if e.ID == id {
			return e, true
		}
	}
	return nil, false
}
func (f *fakeStorage) PromptByID(id string) (*endpoint.Prompt, bool) {
	for _, p := range f.prompts {
		if p.ID == id {
			return p, true
		}
	}
	return nil, false
}
func (f *fakeStorage) DefaultEndpointID() string { return f.defaultEP }
func (f *fakeStorage) DefaultPromptID() string   { return f.defaultPr }
func (f *fakeStorage) SystemPrompt() string      { return f.system }
func (f *fakeStorage) UserPrompt() string        { return f.user }
func (f *fakeStorage) PreferredLanguage() string { return f.language }
func (f *fakeStorage) Temperature() float64      { return f.temp }
func (f *fakeStorage) MaxTokens() int            { return f.maxTokens }

type fakeTokens struct{ tokens map[string]string }

func (f *fakeTokens) GetToken(id string) (string, bool) {
	t, ok := f.tokens[id]
	return t, ok
}

// fakeService streams a scripted delta sequence. release gates the stream so
// tests can hold a send in flight. The script is snapshotted at SendMessage
// time so tests may rescript between sends.
type fakeService struct {
	mu        sync.Mutex
	deltas    []service.Delta
	sendErr   error
	models    []string
	modelsErr error
	release   chan struct{}
	lastOpts  service.SendOptions

	cancelCount atomic.Int64
}

func (f *fakeService) SendMessage(ctx context.Context, opts service.SendOptions) (<-chan service.Delta, error) {
	f.mu.Lock()
	f.lastOpts = opts
	deltas := append([]service.Delta(nil), f.deltas...)
	release := f.release
	sendErr := f.sendErr
	f.mu.Unlock()

	if sendErr != nil {
		return nil, sendErr
	}
	ch := make(chan service.Delta)
	go func() {
		defer close(ch)
		if release != nil {
			select {
			case <-release:
			case <-ctx.Done():
				return
			}
		}
		for _, d := range deltas {
			select {
			case ch <- d:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

func (f *fakeService) setScript(deltas []service.Delta, release chan struct{}) {
	f.mu.Lock()
	f.deltas = deltas
	f.release = release
	f.mu.Unlock()
}

func (f *fakeService) AvailableModels(ctx context.Context) ([]string, error) {
	return f.models, f.modelsErr
}

func (f *fakeService) CancelRequest() { f.cancelCount.Add(1) }

func (f *fakeService) sentOpts() service.SendOptions {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastOpts
}

type fakePersister struct {
	mu   sync.Mutex
	recs []*store.ConversationRecord
}

func (f *fakePersister) SaveConversation(ctx context.Context, rec *store.ConversationRecord) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	snapshot := *rec
	f.recs = append(f.recs, &snapshot)
	if rec.ID != "" {
		return rec.ID, nil
	}
	return "conv-1", nil
}

func (f *fakePersister) saved() []*store.ConversationRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.recs
}

func textDeltas(parts ...string) []service.Delta {
	out := make([]service.Delta, len(parts))
	for i, p := range parts {
		out[i] = service.Delta{Text: p}
	}
	return out
}

func newTestController(t *testing.T, storage *fakeStorage, svc service.Service, persist Persister) *Controller {
	t.Helper()
	c := NewController(Options{
		Storage:   storage,
		Tokens:    &fakeTokens{},
		Persister: persist,
		Factory: func(cfg *endpoint.Config, token string) (service.Service, error) {
			return svc, nil
		},
	})
	c.Resolve()
	return c
}

func remoteStorage() *fakeStorage {
	ep := &endpoint.Config{
		ID:           "ep-1",
		Name:         "test",
		URL:          "https://api.example.com",
		Type:         endpoint.TypeRemoteAPI,
		DefaultModel: "m-default",
	}
	return &fakeStorage{
		endpoints: []*endpoint.Config{ep},
		defaultEP: "ep-1",
		system:    "You are a helpful assistant.",
		temp:      0.7,
	}
}

func waitIdle(t *testing.T, c *Controller) {
	t.Helper()
	require.Eventually(t, func() bool { return !c.IsSending() },
		2*time.Second, 5*time.Millisecond)
}

// =============================================================================
// SEND LIFECYCLE
// =============================================================================

func TestSendStreamsIntoPlaceholder(t *testing.T) {
	svc := &fakeService{deltas: textDeltas("He", "llo ", "there")}
	persist := &fakePersister{}
	c := newTestController(t, remoteStorage(), svc, persist)

	c.SendText("hello")
	waitIdle(t, c)

	msgs := c.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, model.RoleUser, msgs[0].Role)
	assert.Equal(t, "hello", msgs[0].Content.Text)

	last := msgs[1]
	assert.Equal(t, model.RoleAssistant, last.Role)
	assert.Equal(t, "Hello there", last.Content.Text)
	assert.False(t, last.IsError)

	// Completed sends are handed to the persistence collaborator.
	require.Eventually(t, func() bool { return len(persist.saved()) == 1 },
		time.Second, 5*time.Millisecond)
	rec := persist.saved()[0]
	assert.Equal(t, "ep-1", rec.EndpointID)
	assert.Equal(t, "m-default", rec.Model)
	assert.Len(t, rec.Messages, 2)
}

// Transcript reads are value snapshots taken under the controller lock: a
// goroutine polling Messages while deltas rewrite the live placeholder must
// never observe a torn write. Meaningful under the race detector.
func TestMessagesSafeToReadWhileStreaming(t *testing.T) {
	parts := make([]string, 200)
	for i := range parts {
		parts[i] = "x"
	}
	svc := &fakeService{deltas: textDeltas(parts...)}
	c := newTestController(t, remoteStorage(), svc, nil)

	stop := make(chan struct{})
	var reader sync.WaitGroup
	reader.Add(1)
	go func() {
		defer reader.Done()
		for {
			msgs := c.Messages()
			if n := len(msgs); n > 0 {
				_ = len(msgs[n-1].Content.Text)
			}
			select {
			case <-stop:
				return
			default:
			}
		}
	}()

	c.SendText("go")
	waitIdle(t, c)
	close(stop)
	reader.Wait()

	msgs := c.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, strings.Repeat("x", 200), msgs[1].Content.Text)
}

func TestSendImageContent(t *testing.T) {
	svc := &fakeService{deltas: textDeltas("a cat")}
	c := newTestController(t, remoteStorage(), svc, nil)

	c.SendImage("aGVsbG8=")
	waitIdle(t, c)

	msgs := c.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, model.ContentImage, msgs[0].Content.Kind)
	assert.Equal(t, "a cat", msgs[1].Content.Text)

	opts := svc.sentOpts()
	assert.Equal(t, model.ImageContent("aGVsbG8="), opts.Content)
}

func TestSendBlankInputIsNoOp(t *testing.T) {
	svc := &fakeService{}
	c := newTestController(t, remoteStorage(), svc, nil)

	c.SendText("   ")
	assert.Empty(t, c.Messages())
	assert.False(t, c.IsSending())
}

func TestSendWhileInFlightCancelsPrevious(t *testing.T) {
	release := make(chan struct{})
	svc := &fakeService{deltas: textDeltas("never applied"), release: release}
	c := newTestController(t, remoteStorage(), svc, nil)

	c.SendText("first")
	require.Eventually(t, func() bool { return c.IsSending() },
		time.Second, time.Millisecond)

	// Second send supersedes the first: the previous request is cancelled
	// exactly once before the new one is issued.
	svc.setScript(textDeltas("second reply"), nil)
	c.SendText("second")
	waitIdle(t, c)

	assert.Equal(t, int64(1), svc.cancelCount.Load())

	msgs := c.Messages()
	require.Len(t, msgs, 4)
	// The superseded placeholder stays empty: no deltas from the cancelled
	// stream may be applied.
	assert.Equal(t, "", msgs[1].Content.Text)
	assert.False(t, msgs[1].IsError)
	assert.Equal(t, "second reply", msgs[3].Content.Text)
}

func TestCancelIsSilent(t *testing.T) {
	release := make(chan struct{})
	svc := &fakeService{deltas: textDeltas("late"), release: release}
	persist := &fakePersister{}
	c := newTestController(t, remoteStorage(), svc, persist)

	c.SendText("question")
	require.Eventually(t, func() bool { return c.IsSending() },
		time.Second, time.Millisecond)

	c.Cancel()
	c.Cancel() // idempotent
	close(release)

	assert.False(t, c.IsSending())
	assert.Equal(t, int64(1), svc.cancelCount.Load())

	// Cancellation produces no error entry and persists nothing.
	time.Sleep(20 * time.Millisecond)
	msgs := c.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "", msgs[1].Content.Text)
	assert.False(t, msgs[1].IsError)
	assert.Empty(t, persist.saved())

	_, hasNotice := c.TakeNotice()
	assert.False(t, hasNotice)
}

func TestSendFailureWritesErrorMessage(t *testing.T) {
	svc := &fakeService{sendErr: service.ErrUnauthorized}
	persist := &fakePersister{}
	c := newTestController(t, remoteStorage(), svc, persist)

	c.SendText("hello")
	waitIdle(t, c)

	msgs := c.Messages()
	require.Len(t, msgs, 2)
	last := msgs[1]
	assert.True(t, last.IsError)
	assert.Contains(t, last.Content.Text, "Error: ")

	notice, ok := c.TakeNotice()
	require.True(t, ok)
	assert.NotEmpty(t, notice)
	// One-shot: a second read comes back empty.
	_, ok = c.TakeNotice()
	assert.False(t, ok)

	assert.Empty(t, persist.saved())
}

func TestSendMidStreamErrorWritesErrorMessage(t *testing.T) {
	svc := &fakeService{deltas: []service.Delta{
		{Text: "partial"},
		{Err: &service.APIError{Code: "overloaded", Message: "try later", Status: 503}},
	}}
	c := newTestController(t, remoteStorage(), svc, nil)

	c.SendText("hello")
	waitIdle(t, c)

	last := c.Messages()[1]
	assert.True(t, last.IsError)
	assert.Contains(t, last.Content.Text, "Error: ")
}

func TestSendWithoutServiceRaisesNotice(t *testing.T) {
	c := NewController(Options{Storage: &fakeStorage{}, Tokens: &fakeTokens{}})
	c.Resolve()

	c.SendText("hello")

	assert.Empty(t, c.Messages())
	_, ok := c.TakeNotice()
	assert.True(t, ok)
}

func TestClearConversation(t *testing.T) {
	svc := &fakeService{deltas: textDeltas("reply")}
	c := newTestController(t, remoteStorage(), svc, nil)

	c.SendText("hello")
	waitIdle(t, c)
	require.NotEmpty(t, c.Messages())

	c.ClearConversation()
	assert.Empty(t, c.Messages())
}

// =============================================================================
// PROMPT AND HISTORY WIRING
// =============================================================================

func TestSendUsesResolvedPrompts(t *testing.T) {
	storage := remoteStorage()
	storage.prompts = []*endpoint.Prompt{
		{ID: "p-1", Name: "pirate", SystemPrompt: "Talk like a pirate.", UserPrompt: "Arr."},
	}
	storage.language = "de"
	svc := &fakeService{deltas: textDeltas("ok")}
	c := newTestController(t, storage, svc, nil)
	c.SelectPrompt("p-1")

	c.SendText("hello")
	waitIdle(t, c)

	opts := svc.sentOpts()
	assert.Equal(t, "Talk like a pirate.\n\nPlease respond in German.", opts.SystemPrompt)
	assert.Equal(t, "Arr.", opts.UserPrompt)
}

func TestSendHistoryExcludesCurrentInput(t *testing.T) {
	svc := &fakeService{deltas: textDeltas("first reply")}
	c := newTestController(t, remoteStorage(), svc, nil)

	c.SendText("first")
	waitIdle(t, c)

	svc.setScript(textDeltas("second reply"), nil)
	c.SendText("second")
	waitIdle(t, c)

	opts := svc.sentOpts()
	require.Len(t, opts.History, 2)
	assert.Equal(t, "first", opts.History[0].Content.Text)
	assert.Equal(t, "first reply", opts.History[1].Content.Text)
	assert.Equal(t, model.TextContent("second"), opts.Content)
}

// =============================================================================
// MODEL RESOLUTION
// =============================================================================

func TestModelsLiveFetchWins(t *testing.T) {
	svc := &fakeService{models: []string{"m-a", "m-default", "m-z"}}
	c := newTestController(t, remoteStorage(), svc, nil)

	require.Eventually(t, func() bool { return len(c.AvailableModels()) == 3 },
		time.Second, time.Millisecond)
	assert.Equal(t, []string{"m-a", "m-default", "m-z"}, c.AvailableModels())
	// The endpoint default is present in the fetched list, so it is selected.
	assert.Equal(t, "m-default", c.SelectedModel())
}

func TestModelsFetchFailureFallsBackToStored(t *testing.T) {
	storage := remoteStorage()
	storage.endpoints[0].AvailableModels = []string{"stored-1", "stored-2"}
	svc := &fakeService{modelsErr: assert.AnError}
	c := newTestController(t, storage, svc, nil)

	time.Sleep(20 * time.Millisecond) // let the failed refresh settle
	assert.Equal(t, []string{"stored-1", "stored-2"}, c.AvailableModels())
	assert.Equal(t, "stored-1", c.SelectedModel())
}

func TestModelsFetchFailureFallsBackToDefault(t *testing.T) {
	svc := &fakeService{modelsErr: assert.AnError}
	c := newTestController(t, remoteStorage(), svc, nil)

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, []string{"m-default"}, c.AvailableModels())
	assert.Equal(t, "m-default", c.SelectedModel())
}

func TestModelsEmptyFetchKeepsFallback(t *testing.T) {
	svc := &fakeService{models: []string{}}
	c := newTestController(t, remoteStorage(), svc, nil)

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, []string{"m-default"}, c.AvailableModels())
}

func TestModelsCustomAPIUsesStoredListVerbatim(t *testing.T) {
	storage := remoteStorage()
	storage.endpoints[0].Type = endpoint.TypeCustomAPI
	storage.endpoints[0].AvailableModels = []string{"custom-b", "custom-a"}
	// A live fetch would return something else; it must not be consulted.
	svc := &fakeService{models: []string{"live-1"}}
	c := newTestController(t, storage, svc, nil)

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, []string{"custom-b", "custom-a"}, c.AvailableModels())
}

func TestModelsLocalEndpoint(t *testing.T) {
	storage := remoteStorage()
	storage.endpoints[0].Type = endpoint.TypeLocalModel
	storage.endpoints[0].URL = "/models/tiny.gguf"
	svc := &fakeService{models: []string{"tiny"}}
	c := newTestController(t, storage, svc, nil)

	assert.Equal(t, []string{"tiny"}, c.AvailableModels())
	assert.Equal(t, "tiny", c.SelectedModel())
}

func TestSelectModelRejectsUnknown(t *testing.T) {
	svc := &fakeService{models: []string{"m-a", "m-default"}}
	c := newTestController(t, remoteStorage(), svc, nil)
	require.Eventually(t, func() bool { return len(c.AvailableModels()) == 2 },
		time.Second, time.Millisecond)

	c.SelectModel("m-a")
	assert.Equal(t, "m-a", c.SelectedModel())

	c.SelectModel("no-such-model")
	assert.Equal(t, "m-a", c.SelectedModel())
}

// =============================================================================
// STATUS RESOLUTION
// =============================================================================

func TestStatusNoEndpoints(t *testing.T) {
	c := NewController(Options{Storage: &fakeStorage{}, Tokens: &fakeTokens{}})
	c.Resolve()

	msg, hasErr := c.Status()
	assert.Equal(t, endpoint.StatusNoEndpoints, msg)
	assert.True(t, hasErr)
}

func TestStatusTokenRequired(t *testing.T) {
	storage := remoteStorage()
	storage.endpoints[0].RequiresAuth = true
	c := NewController(Options{
		Storage: storage,
		Tokens:  &fakeTokens{},
		Factory: func(cfg *endpoint.Config, token string) (service.Service, error) {
			return service.Create(cfg, token, service.FactoryOptions{})
		},
	})
	c.Resolve()

	msg, hasErr := c.Status()
	assert.Equal(t, endpoint.StatusTokenRequired, msg)
	assert.True(t, hasErr)
}

func TestStatusNothingSelectedIsNotAnError(t *testing.T) {
	storage := remoteStorage()
	storage.defaultEP = ""
	c := newTestController(t, storage, &fakeService{}, nil)

	msg, hasErr := c.Status()
	assert.Empty(t, msg)
	assert.False(t, hasErr)
}

func TestStatusServiceAvailable(t *testing.T) {
	c := newTestController(t, remoteStorage(), &fakeService{}, nil)

	msg, hasErr := c.Status()
	assert.Empty(t, msg)
	assert.False(t, hasErr)
}
