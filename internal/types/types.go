// Package types provides shared type definitions for the application.
package types

import "time"

// ContextSource identifies how a DetectedContext was produced.
type ContextSource string

const (
	SourceOS               ContextSource = "os_detection"
	SourceBrowserExtension ContextSource = "browser_extension"
	SourceLLMInference     ContextSource = "llm_inference"
	SourceFallback         ContextSource = "fallback"
)

// FallbackStyle is the context style used when nothing more specific applies.
const FallbackStyle = "correction"

// DetectedContext describes the foreground application and the rewrite style
// selected for it. Produced fresh on every resolution, never persisted.
type DetectedContext struct {
	Source       ContextSource `json:"source"`
	AppID        string        `json:"appId"`
	AppName      string        `json:"appName"`
	ContextStyle string        `json:"contextStyle"`
	Confidence   float64       `json:"confidence"` // 0.0 - 1.0
}

// FallbackContext returns the context reported when detection yields nothing.
func FallbackContext() DetectedContext {
	return DetectedContext{
		Source:       SourceFallback,
		AppID:        "unknown",
		AppName:      "Unknown",
		ContextStyle: FallbackStyle,
		Confidence:   0.5,
	}
}

// BrowserContext is the foreground-tab snapshot sent by the browser extension.
// Field names match the extension's wire format.
type BrowserContext struct {
	Browser     string `json:"browser"`
	URL         string `json:"url"`
	Domain      string `json:"domain"`
	PageTitle   string `json:"page_title"`
	DetectedApp string `json:"detected_app,omitempty"`
}

// BridgeStatus reports the state of the browser bridge listener.
type BridgeStatus struct {
	Listening  bool            `json:"listening"`
	Addr       string          `json:"addr"`
	Clients    int             `json:"clients"`
	HasContext bool            `json:"hasContext"`
	Context    *BrowserContext `json:"context,omitempty"`
}

// ContextStylePrompt is a rewrite prompt bound to a context style.
// Prompt must contain the ${output} placeholder.
type ContextStylePrompt struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Prompt      string `json:"prompt"`
	IsBuiltin   bool   `json:"is_builtin"`
}

// ContextMapping is a user override assigning a context style to an app id.
type ContextMapping struct {
	AppID        string `json:"app_id"`
	ContextStyle string `json:"context_style"`
}

// LLMPrompt is a generic post-processing prompt selectable by id.
type LLMPrompt struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Prompt string `json:"prompt"`
}

// PostProcessProvider describes an LLM endpoint usable for post-processing.
type PostProcessProvider struct {
	ID               string `json:"id"`
	Label            string `json:"label"`
	BaseURL          string `json:"base_url"`
	AllowBaseURLEdit bool   `json:"allow_base_url_edit"`
	ModelsEndpoint   string `json:"models_endpoint,omitempty"`
}

// Binding is a named hotkey-triggered action configuration.
type Binding struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Description    string `json:"description"`
	DefaultBinding string `json:"default_binding"`
	CurrentBinding string `json:"current_binding"`
}

// TrayState is the recording state shown by the tray icon and overlay.
type TrayState string

const (
	TrayIdle         TrayState = "idle"
	TrayRecording    TrayState = "recording"
	TrayTranscribing TrayState = "transcribing"
)

// Usage represents token usage statistics from LLM API calls.
type Usage struct {
	PromptTokens     int  `json:"promptTokens"`
	CompletionTokens int  `json:"completionTokens"`
	TotalTokens      int  `json:"totalTokens"`
	CacheHit         bool `json:"cacheHit"`
}

// HistoryEntry is a persisted transcription.
type HistoryEntry struct {
	ID                string    `json:"id"`
	FileName          string    `json:"fileName"`
	Timestamp         time.Time `json:"timestamp"`
	Saved             bool      `json:"saved"`
	Title             string    `json:"title"`
	TranscriptionText string    `json:"transcriptionText"`
	PostProcessedText *string   `json:"postProcessedText,omitempty"`
	PostProcessPrompt *string   `json:"postProcessPrompt,omitempty"`
	DetectedLanguage  string    `json:"detectedLanguage,omitempty"`
	DurationMillis    int64     `json:"durationMillis"`
}

// CloudSTTProviderInfo describes a cloud transcription provider.
type CloudSTTProviderInfo struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	DefaultModel string   `json:"defaultModel"`
	Models       []string `json:"models"`
}
