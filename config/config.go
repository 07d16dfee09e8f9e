// Package config handles application settings.
package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"go.aimuz.me/murmur/internal/types"
)

const (
	appName          = "murmur"
	settingsFileName = "settings.json"

	// EnvConfigDir overrides the directory holding settings, history and logs.
	EnvConfigDir = "MURMUR_CONFIG_DIR"
)

// SoundTheme selects the feedback sound pair.
type SoundTheme string

const (
	SoundMarimba SoundTheme = "marimba"
	SoundPop     SoundTheme = "pop"
	SoundCustom  SoundTheme = "custom"
)

// PasteMethod selects how text is injected into the focused application.
type PasteMethod string

const (
	PasteCtrlV       PasteMethod = "ctrl_v"
	PasteDirect      PasteMethod = "direct"
	PasteNone        PasteMethod = "none"
	PasteShiftInsert PasteMethod = "shift_insert"
	PasteCtrlShiftV  PasteMethod = "ctrl_shift_v"
)

// ClipboardHandling controls whether pasted text stays on the clipboard.
type ClipboardHandling string

const (
	ClipboardDontModify ClipboardHandling = "dont_modify"
	ClipboardCopy       ClipboardHandling = "copy_to_clipboard"
)

// RetentionPeriod controls how long history recordings are kept.
type RetentionPeriod string

const (
	RetainNever         RetentionPeriod = "never"
	RetainPreserveLimit RetentionPeriod = "preserve_limit"
	RetainDays3         RetentionPeriod = "days_3"
	RetainWeeks2        RetentionPeriod = "weeks_2"
	RetainMonths3       RetentionPeriod = "months_3"
)

// Settings is the persisted application configuration.
type Settings struct {
	Bindings            []types.Binding `json:"bindings"`
	PushToTalk          bool            `json:"push_to_talk"`
	AudioFeedback       bool            `json:"audio_feedback"`
	AudioFeedbackVolume float64         `json:"audio_feedback_volume"`
	SoundTheme          SoundTheme      `json:"sound_theme"`
	AlwaysOnMicrophone  bool            `json:"always_on_microphone"`
	MuteWhileRecording  bool            `json:"mute_while_recording"`
	SelectedLanguage    string          `json:"selected_language"`
	LocalModel          string          `json:"local_model"`

	HistoryLimit             int             `json:"history_limit"`
	RecordingRetentionPeriod RetentionPeriod `json:"recording_retention_period"`

	PasteMethod         PasteMethod       `json:"paste_method"`
	ClipboardHandling   ClipboardHandling `json:"clipboard_handling"`
	AppendTrailingSpace bool              `json:"append_trailing_space"`

	PostProcessEnabled          bool                        `json:"post_process_enabled"`
	PostProcessProviderID       string                      `json:"post_process_provider_id"`
	PostProcessProviders        []types.PostProcessProvider `json:"post_process_providers"`
	PostProcessAPIKeys          map[string]string           `json:"post_process_api_keys"`
	PostProcessModels           map[string]string           `json:"post_process_models"`
	PostProcessPrompts          []types.LLMPrompt           `json:"post_process_prompts"`
	PostProcessSelectedPromptID *string                     `json:"post_process_selected_prompt_id"`
	PostProcessCache            bool                        `json:"post_process_cache"`

	CloudSTTEnabled  bool              `json:"cloud_stt_enabled"`
	CloudSTTProvider *string           `json:"cloud_stt_provider"`
	CloudSTTAPIKeys  map[string]string `json:"cloud_stt_api_keys"`
	CloudSTTModels   map[string]string `json:"cloud_stt_models"`

	ContextMappings     []types.ContextMapping     `json:"context_mappings"`
	ContextStylePrompts []types.ContextStylePrompt `json:"context_style_prompts"`

	BrowserBridgeEnabled bool   `json:"browser_bridge_enabled"`
	BrowserBridgeAddr    string `json:"browser_bridge_addr"`

	MetricsAddr string `json:"metrics_addr,omitempty"`
	LogLevel    string `json:"log_level"`
	LogFormat   string `json:"log_format"`
}

// ActivePostProcessProvider returns the selected post-processing provider.
func (s Settings) ActivePostProcessProvider() (types.PostProcessProvider, bool) {
	idx := slices.IndexFunc(s.PostProcessProviders, func(p types.PostProcessProvider) bool {
		return p.ID == s.PostProcessProviderID
	})
	if idx == -1 {
		return types.PostProcessProvider{}, false
	}
	return s.PostProcessProviders[idx], true
}

// PostProcessPrompt returns the generic prompt with the given id.
func (s Settings) PostProcessPrompt(id string) (types.LLMPrompt, bool) {
	idx := slices.IndexFunc(s.PostProcessPrompts, func(p types.LLMPrompt) bool { return p.ID == id })
	if idx == -1 {
		return types.LLMPrompt{}, false
	}
	return s.PostProcessPrompts[idx], true
}

// ContextStylePrompt returns the context style prompt with the given id.
func (s Settings) ContextStylePrompt(id string) (types.ContextStylePrompt, bool) {
	idx := slices.IndexFunc(s.ContextStylePrompts, func(p types.ContextStylePrompt) bool { return p.ID == id })
	if idx == -1 {
		return types.ContextStylePrompt{}, false
	}
	return s.ContextStylePrompts[idx], true
}

// ContextOverride returns the user's style override for an app id.
func (s Settings) ContextOverride(appID string) (string, bool) {
	for _, m := range s.ContextMappings {
		if m.AppID == appID {
			return m.ContextStyle, true
		}
	}
	return "", false
}

// Binding returns the binding with the given id.
func (s Settings) Binding(id string) (types.Binding, bool) {
	idx := slices.IndexFunc(s.Bindings, func(b types.Binding) bool { return b.ID == id })
	if idx == -1 {
		return types.Binding{}, false
	}
	return s.Bindings[idx], true
}

// Store guards the settings and persists every change.
type Store struct {
	mu       sync.RWMutex
	path     string
	settings Settings
}

// Dir returns the application data directory.
func Dir() (string, error) {
	if dir := strings.TrimSpace(os.Getenv(EnvConfigDir)); dir != "" {
		return dir, nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("get user config dir: %w", err)
	}
	return filepath.Join(dir, appName), nil
}

// Load reads settings from the application data directory.
// A missing file yields defaults.
func Load() (*Store, error) {
	dir, err := Dir()
	if err != nil {
		return nil, err
	}
	return Open(filepath.Join(dir, settingsFileName))
}

// Open reads settings from path. A missing file yields defaults.
func Open(path string) (*Store, error) {
	st := &Store{path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			st.settings = Defaults()
			return st, nil
		}
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var s Settings
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}
	changed := s.applyDefaults()
	s.Validate()
	st.settings = s

	if changed {
		if err := st.save(); err != nil {
			slog.Warn("save migrated settings", "error", err)
		}
	}
	return st, nil
}

// NewMemoryStore returns a store that never touches disk.
func NewMemoryStore(s Settings) *Store {
	return &Store{settings: s.clone()}
}

// Snapshot returns a deep copy of the current settings.
func (st *Store) Snapshot() Settings {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.settings.clone()
}

// Update applies fn to the settings and persists the result.
// If fn returns an error nothing is changed.
func (st *Store) Update(fn func(*Settings) error) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	next := st.settings.clone()
	if err := fn(&next); err != nil {
		return err
	}
	next.Validate()

	prev := st.settings
	st.settings = next
	if err := st.save(); err != nil {
		st.settings = prev
		return err
	}
	return nil
}

// save writes the settings file atomically. Caller holds the lock.
func (st *Store) save() error {
	if st.path == "" {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(st.path), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := json.MarshalIndent(st.settings, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	tmp := st.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	if err := os.Rename(tmp, st.path); err != nil {
		return fmt.Errorf("replace settings: %w", err)
	}
	return nil
}
