package config

import (
	_ "embed"
	"fmt"
	"maps"
	"runtime"
	"slices"

	"go.aimuz.me/murmur/internal/types"
	"gopkg.in/yaml.v3"
)

// Provider ids with special handling.
const (
	AppleIntelligenceProviderID   = "apple_intelligence"
	AppleIntelligenceDefaultModel = "apple-intelligence"
	DefaultPromptID               = "default_improve_transcriptions"
)

// Binding ids dispatched by the action registry.
const (
	BindingTranscribe            = "transcribe"
	BindingTranscribeWithContext = "transcribe_with_context"
	BindingCancel                = "cancel"
	BindingTest                  = "test"
)

//go:embed builtin_prompts.yaml
var builtinPromptsYAML []byte

type builtinPrompts struct {
	PostProcessPrompts []struct {
		ID     string `yaml:"id"`
		Name   string `yaml:"name"`
		Prompt string `yaml:"prompt"`
	} `yaml:"post_process_prompts"`
	ContextStylePrompts []struct {
		ID          string `yaml:"id"`
		Name        string `yaml:"name"`
		Description string `yaml:"description"`
		Prompt      string `yaml:"prompt"`
	} `yaml:"context_style_prompts"`
}

var builtins = mustParseBuiltins(builtinPromptsYAML)

func mustParseBuiltins(data []byte) builtinPrompts {
	b, err := parseBuiltins(data)
	if err != nil {
		panic(err)
	}
	return b
}

func parseBuiltins(data []byte) (builtinPrompts, error) {
	var b builtinPrompts
	if err := yaml.Unmarshal(data, &b); err != nil {
		return b, fmt.Errorf("parse builtin prompts: %w", err)
	}
	for _, p := range b.ContextStylePrompts {
		if p.ID == "" {
			return b, fmt.Errorf("builtin context prompt without id")
		}
	}
	return b, nil
}

// DefaultContextStylePrompts returns the built-in context style prompts.
func DefaultContextStylePrompts() []types.ContextStylePrompt {
	out := make([]types.ContextStylePrompt, 0, len(builtins.ContextStylePrompts))
	for _, p := range builtins.ContextStylePrompts {
		out = append(out, types.ContextStylePrompt{
			ID:          p.ID,
			Name:        p.Name,
			Description: p.Description,
			Prompt:      p.Prompt,
			IsBuiltin:   true,
		})
	}
	return out
}

// DefaultContextStylePrompt returns the built-in prompt with the given id.
func DefaultContextStylePrompt(id string) (types.ContextStylePrompt, bool) {
	prompts := DefaultContextStylePrompts()
	idx := slices.IndexFunc(prompts, func(p types.ContextStylePrompt) bool { return p.ID == id })
	if idx == -1 {
		return types.ContextStylePrompt{}, false
	}
	return prompts[idx], true
}

func defaultPostProcessPrompts() []types.LLMPrompt {
	out := make([]types.LLMPrompt, 0, len(builtins.PostProcessPrompts))
	for _, p := range builtins.PostProcessPrompts {
		out = append(out, types.LLMPrompt{ID: p.ID, Name: p.Name, Prompt: p.Prompt})
	}
	return out
}

// DefaultPostProcessProviders returns the providers offered for post-processing.
// Apple Intelligence is only listed on darwin/arm64.
func DefaultPostProcessProviders() []types.PostProcessProvider {
	providers := []types.PostProcessProvider{
		{ID: "gemini", Label: "Google Gemini", BaseURL: "https://generativelanguage.googleapis.com/v1beta"},
		{ID: "openai", Label: "OpenAI", BaseURL: "https://api.openai.com/v1", ModelsEndpoint: "/models"},
		{ID: "openrouter", Label: "OpenRouter", BaseURL: "https://openrouter.ai/api/v1", ModelsEndpoint: "/models"},
		{ID: "anthropic", Label: "Anthropic", BaseURL: "https://api.anthropic.com/v1", ModelsEndpoint: "/models"},
		{ID: "groq", Label: "Groq", BaseURL: "https://api.groq.com/openai/v1", ModelsEndpoint: "/models"},
		{ID: "cerebras", Label: "Cerebras", BaseURL: "https://api.cerebras.ai/v1", ModelsEndpoint: "/models"},
	}
	if runtime.GOOS == "darwin" && runtime.GOARCH == "arm64" {
		providers = append(providers, types.PostProcessProvider{
			ID:      AppleIntelligenceProviderID,
			Label:   "Apple Intelligence",
			BaseURL: "apple-intelligence://local",
		})
	}
	// Custom always comes last.
	return append(providers, types.PostProcessProvider{
		ID:               "custom",
		Label:            "Custom",
		BaseURL:          "http://localhost:11434/v1",
		AllowBaseURLEdit: true,
		ModelsEndpoint:   "/models",
	})
}

func defaultModelForProvider(id string) string {
	switch id {
	case "gemini":
		return "gemini-2.5-flash"
	case "openai":
		return "gpt-4o-mini"
	case "anthropic":
		return "claude-3-5-sonnet-20241022"
	case "groq":
		return "llama-3.3-70b-versatile"
	case "cerebras":
		return "llama-3.3-70b"
	case AppleIntelligenceProviderID:
		return AppleIntelligenceDefaultModel
	default:
		return ""
	}
}

// DefaultCloudSTTModels maps cloud transcription providers to their default model.
func DefaultCloudSTTModels() map[string]string {
	return map[string]string{
		"openai": "whisper-1",
		"gemini": "gemini-2.0-flash",
	}
}

func defaultBindings() []types.Binding {
	transcribe, withContext := "ctrl+space", "ctrl+alt+space"
	if runtime.GOOS == "darwin" {
		transcribe, withContext = "option+space", "option+shift+space"
	}
	return []types.Binding{
		{
			ID:             BindingTranscribe,
			Name:           "Transcribe",
			Description:    "Converts your speech into text.",
			DefaultBinding: transcribe,
			CurrentBinding: transcribe,
		},
		{
			ID:             BindingTranscribeWithContext,
			Name:           "Transcribe with Context",
			Description:    "Converts your speech into text and rewrites it for the application in front.",
			DefaultBinding: withContext,
			CurrentBinding: withContext,
		},
		{
			ID:             BindingCancel,
			Name:           "Cancel",
			Description:    "Cancels the current recording.",
			DefaultBinding: "escape",
			CurrentBinding: "escape",
		},
	}
}

func defaultPasteMethod() PasteMethod {
	if runtime.GOOS == "linux" {
		return PasteDirect
	}
	return PasteCtrlV
}

// Defaults returns the settings used when no settings file exists.
func Defaults() Settings {
	s := Settings{
		Bindings:                 defaultBindings(),
		PushToTalk:               true,
		AudioFeedback:            false,
		AudioFeedbackVolume:      1.0,
		SoundTheme:               SoundMarimba,
		SelectedLanguage:         "auto",
		HistoryLimit:             5,
		RecordingRetentionPeriod: RetainPreserveLimit,
		PasteMethod:              defaultPasteMethod(),
		ClipboardHandling:        ClipboardDontModify,
		LocalModel:               "base",
		PostProcessEnabled:       true,
		PostProcessProviderID:    "gemini",
		PostProcessProviders:     DefaultPostProcessProviders(),
		PostProcessAPIKeys:       map[string]string{},
		PostProcessModels:        map[string]string{},
		PostProcessPrompts:       defaultPostProcessPrompts(),
		PostProcessCache:         true,
		CloudSTTAPIKeys:          map[string]string{},
		CloudSTTModels:           DefaultCloudSTTModels(),
		ContextMappings:          []types.ContextMapping{},
		ContextStylePrompts:      DefaultContextStylePrompts(),
		BrowserBridgeEnabled:     true,
		BrowserBridgeAddr:        "127.0.0.1:9876",
		LogLevel:                 "info",
		LogFormat:                "text",
	}
	selected := DefaultPromptID
	s.PostProcessSelectedPromptID = &selected
	for _, p := range s.PostProcessProviders {
		s.PostProcessAPIKeys[p.ID] = ""
		s.PostProcessModels[p.ID] = defaultModelForProvider(p.ID)
	}
	return s
}

// applyDefaults fills fields missing from an older or hand-edited settings file.
// It reports whether anything changed.
func (s *Settings) applyDefaults() bool {
	def := Defaults()
	changed := false

	if len(s.Bindings) == 0 {
		s.Bindings = def.Bindings
		changed = true
	}
	for _, b := range def.Bindings {
		if !slices.ContainsFunc(s.Bindings, func(x types.Binding) bool { return x.ID == b.ID }) {
			s.Bindings = append(s.Bindings, b)
			changed = true
		}
	}

	if s.PostProcessAPIKeys == nil {
		s.PostProcessAPIKeys = map[string]string{}
	}
	if s.PostProcessModels == nil {
		s.PostProcessModels = map[string]string{}
	}
	for _, p := range def.PostProcessProviders {
		if !slices.ContainsFunc(s.PostProcessProviders, func(x types.PostProcessProvider) bool { return x.ID == p.ID }) {
			s.PostProcessProviders = append(s.PostProcessProviders, p)
			changed = true
		}
		if _, ok := s.PostProcessAPIKeys[p.ID]; !ok {
			s.PostProcessAPIKeys[p.ID] = ""
			changed = true
		}
		if m, ok := s.PostProcessModels[p.ID]; !ok || (m == "" && def.PostProcessModels[p.ID] != "") {
			s.PostProcessModels[p.ID] = def.PostProcessModels[p.ID]
			changed = true
		}
	}

	if len(s.PostProcessPrompts) == 0 {
		s.PostProcessPrompts = def.PostProcessPrompts
		changed = true
	}

	if s.CloudSTTAPIKeys == nil {
		s.CloudSTTAPIKeys = map[string]string{}
		changed = true
	}
	if s.CloudSTTModels == nil {
		s.CloudSTTModels = map[string]string{}
	}
	for id, m := range def.CloudSTTModels {
		if _, ok := s.CloudSTTModels[id]; !ok {
			s.CloudSTTModels[id] = m
			changed = true
		}
	}

	if s.ContextMappings == nil {
		s.ContextMappings = []types.ContextMapping{}
		changed = true
	}
	// Built-ins can be edited but never removed; restore any that are missing.
	for _, p := range def.ContextStylePrompts {
		if !slices.ContainsFunc(s.ContextStylePrompts, func(x types.ContextStylePrompt) bool { return x.ID == p.ID }) {
			s.ContextStylePrompts = append(s.ContextStylePrompts, p)
			changed = true
		}
	}

	if s.SelectedLanguage == "" {
		s.SelectedLanguage = def.SelectedLanguage
		changed = true
	}
	if s.BrowserBridgeAddr == "" {
		s.BrowserBridgeAddr = def.BrowserBridgeAddr
		changed = true
	}
	if s.LocalModel == "" {
		s.LocalModel = def.LocalModel
		changed = true
	}
	return changed
}

// Validate resets out-of-range values to their defaults.
func (s *Settings) Validate() {
	def := Defaults()
	if s.AudioFeedbackVolume < 0 || s.AudioFeedbackVolume > 1 {
		s.AudioFeedbackVolume = min(max(s.AudioFeedbackVolume, 0), 1)
	}
	if s.HistoryLimit < 1 {
		s.HistoryLimit = def.HistoryLimit
	}
	if !slices.Contains([]SoundTheme{SoundMarimba, SoundPop, SoundCustom}, s.SoundTheme) {
		s.SoundTheme = def.SoundTheme
	}
	if !slices.Contains([]PasteMethod{PasteCtrlV, PasteDirect, PasteNone, PasteShiftInsert, PasteCtrlShiftV}, s.PasteMethod) {
		s.PasteMethod = def.PasteMethod
	}
	if !slices.Contains([]ClipboardHandling{ClipboardDontModify, ClipboardCopy}, s.ClipboardHandling) {
		s.ClipboardHandling = def.ClipboardHandling
	}
	if !slices.Contains([]RetentionPeriod{RetainNever, RetainPreserveLimit, RetainDays3, RetainWeeks2, RetainMonths3}, s.RecordingRetentionPeriod) {
		s.RecordingRetentionPeriod = def.RecordingRetentionPeriod
	}
	if !slices.Contains([]string{"debug", "info", "warn", "error"}, s.LogLevel) {
		s.LogLevel = def.LogLevel
	}
	if s.LogFormat != "json" {
		s.LogFormat = "text"
	}
}

// clone returns a deep copy so snapshots never alias the store's maps and slices.
func (s Settings) clone() Settings {
	c := s
	c.Bindings = slices.Clone(s.Bindings)
	c.PostProcessProviders = slices.Clone(s.PostProcessProviders)
	c.PostProcessAPIKeys = maps.Clone(s.PostProcessAPIKeys)
	c.PostProcessModels = maps.Clone(s.PostProcessModels)
	c.PostProcessPrompts = slices.Clone(s.PostProcessPrompts)
	c.CloudSTTAPIKeys = maps.Clone(s.CloudSTTAPIKeys)
	c.CloudSTTModels = maps.Clone(s.CloudSTTModels)
	c.ContextMappings = slices.Clone(s.ContextMappings)
	c.ContextStylePrompts = slices.Clone(s.ContextStylePrompts)
	if s.PostProcessSelectedPromptID != nil {
		id := *s.PostProcessSelectedPromptID
		c.PostProcessSelectedPromptID = &id
	}
	if s.CloudSTTProvider != nil {
		id := *s.CloudSTTProvider
		c.CloudSTTProvider = &id
	}
	return c
}
