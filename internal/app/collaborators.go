package app

import (
	"context"

	"go.aimuz.me/murmur/config"
	"go.aimuz.me/murmur/feedback"
	"go.aimuz.me/murmur/internal/types"
	"go.aimuz.me/murmur/transform"
)

// Recorder is the microphone session owner.
type Recorder interface {
	TryStartRecording(bindingID string) bool
	StopRecording(bindingID string) []float32
	Cancel()
	ApplyMute()
	RemoveMute()
}

// Transcriber is the local speech-to-text engine.
type Transcriber interface {
	InitiateModelLoad()
	Transcribe(ctx context.Context, samples []float32) (string, error)
	Cancel()
}

// CloudTranscriber sends audio to a hosted transcription provider.
type CloudTranscriber interface {
	Transcribe(ctx context.Context, provider, apiKey string, samples []float32, model, language string) (string, error)
}

// HistorySaver persists finished transcriptions.
type HistorySaver interface {
	Save(ctx context.Context, samples []float32, raw string, processed, promptUsed *string) (types.HistoryEntry, error)
}

// Paster types text into the focused application.
type Paster interface {
	Paste(text string) error
}

// Feedback plays the start and stop cues.
type Feedback interface {
	Play(kind feedback.Kind)
	PlayBlocking(kind feedback.Kind)
}

// UI is the tray icon and overlay window.
type UI interface {
	SetState(state types.TrayState)
	// OnUIThread runs fn on the thread that owns the UI and waits for it.
	OnUIThread(fn func())
	Emit(name string, data any)
}

// Hotkeys toggles the transient cancel binding.
type Hotkeys interface {
	Register(bindingID string)
	Unregister(bindingID string)
}

// ContextResolver reports the foreground application's rewrite style.
type ContextResolver interface {
	Resolve(s config.Settings) types.DetectedContext
}

// Rewriter applies script conversion and post-processing.
type Rewriter interface {
	Run(ctx context.Context, s config.Settings, text string, contextPrompt *string) transform.Result
}

// Notifier raises a desktop notification.
type Notifier func(title, message string) error
