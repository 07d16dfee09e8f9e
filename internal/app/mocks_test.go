package app

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.aimuz.me/murmur/config"
	"go.aimuz.me/murmur/feedback"
	"go.aimuz.me/murmur/internal/types"
	"go.aimuz.me/murmur/llm"
	"go.aimuz.me/murmur/transform"
)

// eventLog records collaborator calls in the order they happen.
type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) add(e string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) list() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.events)
}

func (l *eventLog) has(e string) bool {
	return slices.Contains(l.list(), e)
}

// assertOrder checks that the events occur as a subsequence of the log.
func (l *eventLog) assertOrder(t *testing.T, want ...string) {
	t.Helper()
	got := l.list()
	pos := 0
	for _, w := range want {
		idx := slices.Index(got[pos:], w)
		if idx == -1 {
			t.Errorf("event %q missing or out of order in %v", w, got)
			return
		}
		pos += idx + 1
	}
}

type mockRecorder struct {
	log     *eventLog
	startOK bool
	samples []float32
}

func (m *mockRecorder) TryStartRecording(string) bool {
	m.log.add("record:start")
	return m.startOK
}

func (m *mockRecorder) StopRecording(string) []float32 {
	m.log.add("record:stop")
	return m.samples
}

func (m *mockRecorder) Cancel()     { m.log.add("record:cancel") }
func (m *mockRecorder) ApplyMute()  { m.log.add("mute") }
func (m *mockRecorder) RemoveMute() { m.log.add("unmute") }

type mockTranscriber struct {
	log   *eventLog
	text  string
	err   error
	block bool          // wait for cancellation
	gate  chan struct{} // when set, wait until closed
	loads atomic.Int32
	heard int // length of the last clip
}

func (m *mockTranscriber) InitiateModelLoad() { m.loads.Add(1) }

func (m *mockTranscriber) Transcribe(ctx context.Context, samples []float32) (string, error) {
	m.log.add("transcribe:local")
	m.heard = len(samples)
	if m.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if m.gate != nil {
		select {
		case <-m.gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return m.text, m.err
}

func (m *mockTranscriber) Cancel() { m.log.add("transcribe:cancel") }

type mockCloud struct {
	log                            *eventLog
	text                           string
	provider, key, model, language string
}

func (m *mockCloud) Transcribe(_ context.Context, provider, apiKey string, _ []float32, model, language string) (string, error) {
	m.log.add("transcribe:cloud")
	m.provider, m.key, m.model, m.language = provider, apiKey, model, language
	return m.text, nil
}

type savedEntry struct {
	samples    int
	raw        string
	processed  *string
	promptUsed *string
}

type mockHistory struct {
	mu    sync.Mutex
	saved []savedEntry
}

func (m *mockHistory) Save(_ context.Context, samples []float32, raw string, processed, promptUsed *string) (types.HistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = append(m.saved, savedEntry{len(samples), raw, processed, promptUsed})
	return types.HistoryEntry{TranscriptionText: raw}, nil
}

type mockPaster struct {
	log    *eventLog
	err    error
	pasted []string
}

func (m *mockPaster) Paste(text string) error {
	m.log.add("paste")
	m.pasted = append(m.pasted, text)
	return m.err
}

type mockFeedback struct{ log *eventLog }

func (m *mockFeedback) Play(k feedback.Kind)         { m.log.add("play:" + k.String()) }
func (m *mockFeedback) PlayBlocking(k feedback.Kind) { m.log.add("cue:" + k.String()) }

type mockUI struct {
	log *eventLog

	mu      sync.Mutex
	state   types.TrayState
	emitted map[string]any
}

func (m *mockUI) SetState(st types.TrayState) {
	m.log.add("ui:" + string(st))
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = st
}

func (m *mockUI) OnUIThread(fn func()) {
	m.log.add("ui-thread")
	fn()
}

func (m *mockUI) Emit(name string, data any) {
	m.log.add("emit:" + name)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.emitted == nil {
		m.emitted = map[string]any{}
	}
	m.emitted[name] = data
}

func (m *mockUI) current() types.TrayState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

type mockHotkeys struct{ log *eventLog }

func (m *mockHotkeys) Register(id string)   { m.log.add("register:" + id) }
func (m *mockHotkeys) Unregister(id string) { m.log.add("unregister:" + id) }

type mockResolver struct{ ctx types.DetectedContext }

func (m mockResolver) Resolve(config.Settings) types.DetectedContext { return m.ctx }

// mockCompleter implements llm.Completer for testing.
type mockCompleter struct {
	log      *eventLog
	response string
	err      error

	mu     sync.Mutex
	prompt string
}

func (m *mockCompleter) Complete(_ context.Context, msgs []llm.Message) (string, types.Usage, error) {
	m.log.add("rewrite")
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(msgs) > 0 {
		m.prompt = msgs[len(msgs)-1].Content
	}
	return m.response, types.Usage{}, m.err
}

// harness wires Actions to mocks around a real post-processor.
type harness struct {
	log       *eventLog
	store     *config.Store
	recorder  *mockRecorder
	local     *mockTranscriber
	cloud     *mockCloud
	history   *mockHistory
	paster    *mockPaster
	ui        *mockUI
	completer *mockCompleter
	notices   []string
	actions   *Actions
	registry  *Registry
}

func testSettings() config.Settings {
	s := config.Defaults()
	s.PushToTalk = true
	s.SelectedLanguage = "auto"
	s.CloudSTTEnabled = false
	s.PostProcessEnabled = true
	s.PostProcessProviderID = "openai"
	s.PostProcessModels["openai"] = "gpt-4o-mini"
	s.PostProcessPrompts = []types.LLMPrompt{{ID: "p1", Name: "P1", Prompt: "Fix: ${output}"}}
	id := "p1"
	s.PostProcessSelectedPromptID = &id
	s.PostProcessCache = false
	return s
}

func newHarness(t *testing.T, modify func(*config.Settings)) *harness {
	t.Helper()
	s := testSettings()
	if modify != nil {
		modify(&s)
	}

	log := &eventLog{}
	h := &harness{
		log:       log,
		store:     config.NewMemoryStore(s),
		recorder:  &mockRecorder{log: log, startOK: true, samples: []float32{0.1, 0.2}},
		local:     &mockTranscriber{log: log, text: "hello world"},
		cloud:     &mockCloud{log: log, text: "cloud text"},
		history:   &mockHistory{},
		paster:    &mockPaster{log: log},
		ui:        &mockUI{log: log, state: types.TrayIdle},
		completer: &mockCompleter{log: log, response: "Hello, world."},
	}

	factory := func(types.PostProcessProvider, string, string) llm.Completer { return h.completer }
	h.actions = NewActions(Deps{
		Settings: h.store.Snapshot,
		Recorder: h.recorder,
		Local:    h.local,
		Cloud:    h.cloud,
		History:  h.history,
		Paster:   h.paster,
		Feedback: &mockFeedback{log: log},
		UI:       h.ui,
		Hotkeys:  &mockHotkeys{log: log},
		Resolver: mockResolver{ctx: types.FallbackContext()},
		Rewriter: transform.NewPostProcessor(factory, nil, nil),
		Notify: func(title, message string) error {
			h.notices = append(h.notices, title+": "+message)
			return nil
		},
		SettleDelay: 1,
	})
	h.registry = NewRegistry(h.actions)
	return h
}

// dictate presses and releases a binding and waits for the pipeline.
func (h *harness) dictate(bindingID string) {
	h.registry.Dispatch(bindingID, "ctrl+space", true)
	h.registry.Dispatch(bindingID, "ctrl+space", false)
	h.actions.Wait()
}

// waitForEvent polls the log until e appears.
func (h *harness) waitForEvent(t *testing.T, e string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !h.log.has(e) {
		if time.Now().After(deadline) {
			t.Fatalf("event %q never happened: %v", e, h.log.list())
		}
		time.Sleep(time.Millisecond)
	}
}

func (h *harness) count(e string) int {
	n := 0
	for _, got := range h.log.list() {
		if got == e {
			n++
		}
	}
	return n
}

func (h *harness) assertFinished(t *testing.T, bindingID string) {
	t.Helper()
	if st := h.ui.current(); st != types.TrayIdle {
		t.Errorf("tray state = %q, want %q", st, types.TrayIdle)
	}
	if h.actions.Toggles.Get(bindingID) {
		t.Errorf("toggle for %s still set", bindingID)
	}
}
