package app

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"

	"go.aimuz.me/murmur/audiocapture"
	"go.aimuz.me/murmur/config"
	"go.aimuz.me/murmur/feedback"
	"go.aimuz.me/murmur/internal/types"
	"go.aimuz.me/murmur/stt"
)

// Binding ids understood by the registry.
const (
	BindingTranscribe            = "transcribe"
	BindingTranscribeWithContext = "transcribe_with_context"
	BindingCancel                = "cancel"
	BindingTest                  = "test"
)

// recordingSettleDelay lets an on-demand stream stabilize before the start cue.
const recordingSettleDelay = 100 * time.Millisecond

// ActionKind is the fixed set of hotkey actions.
type ActionKind int

const (
	ActionTranscribe ActionKind = iota
	ActionTranscribeWithContext
	ActionCancel
	ActionDiagnostic
)

func (k ActionKind) String() string {
	switch k {
	case ActionTranscribe:
		return "transcribe"
	case ActionTranscribeWithContext:
		return "transcribe_with_context"
	case ActionCancel:
		return "cancel"
	case ActionDiagnostic:
		return "diagnostic"
	default:
		return "unknown"
	}
}

// Action binds an ActionKind to the pipeline that runs it.
type Action struct {
	Kind    ActionKind
	actions *Actions
}

// Start runs the key-down half of the action.
func (a Action) Start(bindingID, shortcut string) {
	switch a.Kind {
	case ActionTranscribe, ActionTranscribeWithContext:
		a.actions.startTranscribe(bindingID)
	case ActionCancel:
		a.actions.CancelOperation()
	case ActionDiagnostic:
		slog.Info("shortcut pressed", "binding", bindingID, "shortcut", shortcut)
	}
}

// Stop runs the key-up half of the action.
func (a Action) Stop(bindingID, shortcut string) {
	switch a.Kind {
	case ActionTranscribe:
		a.actions.stopTranscribe(bindingID, false)
	case ActionTranscribeWithContext:
		a.actions.stopTranscribe(bindingID, true)
	case ActionCancel:
	case ActionDiagnostic:
		slog.Info("shortcut released", "binding", bindingID, "shortcut", shortcut)
		a.actions.Toggles.Set(bindingID, false)
	}
}

// Deps are the collaborators used by Actions. Local, Resolver and Notify
// may be nil.
type Deps struct {
	Settings func() config.Settings
	Toggles  *ToggleState
	Recorder Recorder
	Local    Transcriber
	Cloud    CloudTranscriber
	History  HistorySaver
	Paster   Paster
	Feedback Feedback
	UI       UI
	Hotkeys  Hotkeys
	Resolver ContextResolver
	Rewriter Rewriter
	Notify   Notifier
	Meter    metric.Meter

	// SettleDelay overrides the on-demand start delay.
	SettleDelay time.Duration
}

// Actions runs the dictation pipeline for every transcribe binding.
type Actions struct {
	Deps
	metrics *pipelineMetrics

	// wg tracks background work: start cues, stop runs, history saves.
	wg sync.WaitGroup

	mu      sync.Mutex
	nextRun uint64
	runs    map[uint64]context.CancelFunc
}

// NewActions creates the action pipeline.
func NewActions(d Deps) *Actions {
	if d.Toggles == nil {
		d.Toggles = NewToggleState()
	}
	if d.SettleDelay == 0 {
		d.SettleDelay = recordingSettleDelay
	}
	return &Actions{
		Deps:    d,
		metrics: newPipelineMetrics(d.Meter),
		runs:    make(map[uint64]context.CancelFunc),
	}
}

// Wait blocks until all background work has finished.
func (a *Actions) Wait() {
	a.wg.Wait()
}

func (a *Actions) goTracked(fn func()) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		fn()
	}()
}

// ─────────────────────────────────────────────────────────────────────────────
// Start
// ─────────────────────────────────────────────────────────────────────────────

func (a *Actions) startTranscribe(bindingID string) {
	s := a.Settings()

	if !s.CloudSTTEnabled && a.Local != nil {
		go a.Local.InitiateModelLoad()
	}

	a.UI.SetState(types.TrayRecording)

	var started bool
	if s.AlwaysOnMicrophone {
		// The stream is already open, so the cue can play right away.
		a.goTracked(a.cueThenMute)
		started = a.Recorder.TryStartRecording(bindingID)
	} else {
		started = a.Recorder.TryStartRecording(bindingID)
		if started {
			a.goTracked(func() {
				time.Sleep(a.SettleDelay)
				a.cueThenMute()
			})
		}
	}

	if !started {
		slog.Error("start recording", "binding", bindingID)
		a.UI.SetState(types.TrayIdle)
		a.Toggles.Set(bindingID, false)
		return
	}
	a.Hotkeys.Register(BindingCancel)
}

// cueThenMute plays the start sound and mutes output once it has finished.
// Both steps always run; PlayBlocking returns at once when feedback is off.
func (a *Actions) cueThenMute() {
	a.Feedback.PlayBlocking(feedback.Start)
	a.Recorder.ApplyMute()
}

// ─────────────────────────────────────────────────────────────────────────────
// Stop
// ─────────────────────────────────────────────────────────────────────────────

func (a *Actions) stopTranscribe(bindingID string, withContext bool) {
	began := time.Now()

	a.Hotkeys.Unregister(BindingCancel)
	a.UI.SetState(types.TrayTranscribing)
	a.Recorder.RemoveMute()
	a.Feedback.Play(feedback.Stop)

	session := a.Toggles.Session(bindingID)
	ctx, done := a.beginRun()
	a.goTracked(func() {
		defer a.Toggles.Release(bindingID, session)
		defer done()
		defer a.metrics.stopped(context.Background(), began)
		a.runStop(ctx, bindingID, session, withContext)
	})
}

func (a *Actions) runStop(ctx context.Context, bindingID string, session uint64, withContext bool) {
	idle := func() { a.restoreIdle(bindingID, session) }

	// History keeps the full capture; only transcription sees the trimmed clip.
	recording := a.Recorder.StopRecording(bindingID)
	samples := audiocapture.TrimSilence(recording, audiocapture.SampleRate)
	if len(samples) == 0 {
		slog.Warn("no samples recorded", "binding", bindingID)
		a.metrics.transcription(context.Background(), outcomeNoSamples)
		idle()
		return
	}

	s := a.Settings()

	var contextPrompt *string
	if withContext {
		contextPrompt = a.resolveContextPrompt(s)
	}

	text, err := a.transcribe(ctx, s, samples)
	switch {
	case ctx.Err() != nil:
		slog.Info("transcription cancelled", "binding", bindingID)
		a.metrics.transcription(context.Background(), outcomeCancelled)
		idle()
		return
	case err != nil:
		slog.Error("transcribe audio", "binding", bindingID, "error", err)
		a.metrics.transcription(context.Background(), outcomeError)
		a.notify("Transcription failed", err.Error())
		idle()
		return
	case strings.TrimSpace(text) == "":
		slog.Info("empty transcription", "binding", bindingID)
		a.metrics.transcription(context.Background(), outcomeEmpty)
		idle()
		return
	}
	a.metrics.transcription(context.Background(), outcomeOK)

	res := a.Rewriter.Run(ctx, s, text, contextPrompt)
	a.metrics.rewrite(context.Background(), res.Outcome)

	if ctx.Err() != nil {
		slog.Info("transcription cancelled", "binding", bindingID)
		idle()
		return
	}

	a.goTracked(func() {
		if _, err := a.History.Save(context.Background(), recording, text, res.Processed, res.PromptUsed); err != nil {
			slog.Error("save history", "error", err)
		}
	})

	a.UI.OnUIThread(func() {
		if err := a.Paster.Paste(res.Final); err != nil {
			slog.Error("paste text", "error", err)
		}
	})
	idle()
}

// resolveContextPrompt detects the foreground app, reports it to the
// overlay and returns the prompt for its style, if one is configured.
func (a *Actions) resolveContextPrompt(s config.Settings) *string {
	dc := types.FallbackContext()
	if a.Resolver != nil {
		dc = a.Resolver.Resolve(s)
	}
	a.UI.Emit(EventContextDetected, dc)
	slog.Info("context detected", "app", dc.AppID, "style", dc.ContextStyle, "source", dc.Source, "confidence", dc.Confidence)

	p, ok := s.ContextStylePrompt(dc.ContextStyle)
	if !ok || strings.TrimSpace(p.Prompt) == "" {
		slog.Debug("no prompt for context style", "style", dc.ContextStyle)
		return nil
	}
	return &p.Prompt
}

func (a *Actions) transcribe(ctx context.Context, s config.Settings, samples []float32) (string, error) {
	if s.CloudSTTEnabled {
		req, err := stt.ResolveRequest(s)
		if err != nil {
			return "", err
		}
		return a.Cloud.Transcribe(ctx, req.Provider, req.APIKey, samples, req.Model, req.Language)
	}
	if a.Local == nil {
		return "", errLocalUnavailable
	}
	return a.Local.Transcribe(ctx, samples)
}

var errLocalUnavailable = errors.New("local transcription engine unavailable")

// restoreIdle returns the tray to idle unless a newer recording has started
// on the binding since session was stopped.
func (a *Actions) restoreIdle(bindingID string, session uint64) {
	if a.Toggles.Get(bindingID) && a.Toggles.Session(bindingID) != session {
		return
	}
	a.UI.SetState(types.TrayIdle)
}

func (a *Actions) notify(title, message string) {
	if a.Notify == nil {
		return
	}
	if err := a.Notify(title, message); err != nil {
		slog.Debug("send notification", "error", err)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Cancel
// ─────────────────────────────────────────────────────────────────────────────

// CancelOperation aborts the recording and any transcription in flight.
// An aborted run never reaches paste.
func (a *Actions) CancelOperation() {
	slog.Info("cancel operation")

	a.Recorder.Cancel()
	a.mu.Lock()
	for _, cancel := range a.runs {
		cancel()
	}
	a.mu.Unlock()
	if a.Local != nil {
		a.Local.Cancel()
	}

	a.Hotkeys.Unregister(BindingCancel)
	a.Recorder.RemoveMute()
	a.UI.SetState(types.TrayIdle)
	a.Toggles.Reset()
}

func (a *Actions) beginRun() (context.Context, func()) {
	ctx, cancel := context.WithCancel(context.Background())
	a.mu.Lock()
	id := a.nextRun
	a.nextRun++
	a.runs[id] = cancel
	a.mu.Unlock()

	return ctx, func() {
		a.mu.Lock()
		delete(a.runs, id)
		a.mu.Unlock()
		cancel()
	}
}
