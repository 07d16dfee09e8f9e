// Package transform turns a raw transcript into the text that gets pasted:
// optional Chinese script conversion followed by an optional LLM rewrite.
package transform

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"go.aimuz.me/murmur/cache"
	"go.aimuz.me/murmur/config"
	"go.aimuz.me/murmur/internal/types"
	"go.aimuz.me/murmur/llm"
)

// OutputVar is replaced with the working text in every prompt template.
const OutputVar = "${output}"

// ErrUnavailable reports that on-device processing cannot run on this machine.
var ErrUnavailable = errors.New("on-device text processing unavailable")

// Outcome describes what the rewrite step did.
type Outcome string

const (
	OutcomeRewritten Outcome = "rewritten"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeFailed    Outcome = "failed"
)

// CompleterFactory builds the chat client for a provider.
type CompleterFactory func(provider types.PostProcessProvider, apiKey, model string) llm.Completer

// Rewrite is a successful post-processing result.
type Rewrite struct {
	Text   string
	Prompt string
	Usage  types.Usage
}

// PostProcessor rewrites transcripts with the configured provider.
type PostProcessor struct {
	newCompleter CompleterFactory
	onDevice     OnDevice
	cache        *cache.Cache
}

// NewPostProcessor creates a PostProcessor. A nil factory uses llm.NewCompleter,
// a nil onDevice is treated as unavailable and a nil cache disables caching.
func NewPostProcessor(factory CompleterFactory, onDevice OnDevice, c *cache.Cache) *PostProcessor {
	if factory == nil {
		factory = func(p types.PostProcessProvider, apiKey, model string) llm.Completer {
			return llm.NewCompleter(p, apiKey, model, llm.Options{})
		}
	}
	if onDevice == nil {
		onDevice = unavailableOnDevice{}
	}
	return &PostProcessor{newCompleter: factory, onDevice: onDevice, cache: c}
}

// Process rewrites text with the prompt chosen from contextPrompt or the
// globally selected prompt. It reports false when the step is disabled,
// not fully configured, or fails; callers keep the input text in that case.
func (p *PostProcessor) Process(ctx context.Context, s config.Settings, text string, contextPrompt *string) (Rewrite, bool) {
	rw, outcome := p.process(ctx, s, text, contextPrompt)
	return rw, outcome == OutcomeRewritten
}

func (p *PostProcessor) process(ctx context.Context, s config.Settings, text string, contextPrompt *string) (Rewrite, Outcome) {
	if !s.PostProcessEnabled {
		return Rewrite{}, OutcomeSkipped
	}

	provider, ok := s.ActivePostProcessProvider()
	if !ok {
		slog.Debug("post-process skipped: provider not found", "provider", s.PostProcessProviderID)
		return Rewrite{}, OutcomeSkipped
	}

	model := strings.TrimSpace(s.PostProcessModels[provider.ID])
	if model == "" {
		slog.Debug("post-process skipped: no model configured", "provider", provider.ID)
		return Rewrite{}, OutcomeSkipped
	}

	prompt, ok := selectPrompt(s, contextPrompt)
	if !ok {
		return Rewrite{}, OutcomeSkipped
	}

	full := strings.ReplaceAll(prompt, OutputVar, text)
	slog.Debug("post-processing transcript", "provider", provider.ID, "model", model, "promptLen", len(full))

	if provider.ID == config.AppleIntelligenceProviderID {
		return p.processOnDevice(ctx, full, prompt, model)
	}

	key := cache.GenerateKey(provider.ID, provider.BaseURL, model, full)
	if s.PostProcessCache {
		if rw, ok := p.cached(key, prompt); ok {
			return rw, OutcomeRewritten
		}
	}

	completer := p.newCompleter(provider, s.PostProcessAPIKeys[provider.ID], model)
	content, usage, err := completer.Complete(ctx, []llm.Message{llm.UserMessage(full)})
	if err != nil {
		slog.Error("post-process transcript", "provider", provider.ID, "model", model, "error", err)
		return Rewrite{}, OutcomeFailed
	}

	content = StripInvisible(content)
	if strings.TrimSpace(content) == "" {
		slog.Error("post-process returned no content", "provider", provider.ID, "model", model)
		return Rewrite{}, OutcomeFailed
	}

	if s.PostProcessCache {
		p.store(key, content, usage)
	}
	return Rewrite{Text: content, Prompt: prompt, Usage: usage}, OutcomeRewritten
}

// selectPrompt picks the context prompt when present, else the selected
// global prompt.
func selectPrompt(s config.Settings, contextPrompt *string) (string, bool) {
	if contextPrompt != nil && strings.TrimSpace(*contextPrompt) != "" {
		return *contextPrompt, true
	}
	if s.PostProcessSelectedPromptID == nil {
		slog.Debug("post-process skipped: no prompt selected")
		return "", false
	}
	p, ok := s.PostProcessPrompt(*s.PostProcessSelectedPromptID)
	if !ok {
		slog.Debug("post-process skipped: prompt not found", "prompt", *s.PostProcessSelectedPromptID)
		return "", false
	}
	if strings.TrimSpace(p.Prompt) == "" {
		slog.Debug("post-process skipped: prompt is empty", "prompt", p.ID)
		return "", false
	}
	return p.Prompt, true
}

func (p *PostProcessor) processOnDevice(ctx context.Context, full, prompt, model string) (Rewrite, Outcome) {
	if !p.onDevice.Available() {
		slog.Debug("post-process skipped: on-device processing unavailable")
		return Rewrite{}, OutcomeSkipped
	}
	limit, err := strconv.Atoi(strings.TrimSpace(model))
	if err != nil {
		limit = 0
	}
	out, err := p.onDevice.Process(ctx, full, limit)
	if err != nil {
		slog.Error("on-device post-process", "error", err)
		return Rewrite{}, OutcomeFailed
	}
	if strings.TrimSpace(out) == "" {
		slog.Debug("on-device post-process returned empty result")
		return Rewrite{}, OutcomeFailed
	}
	return Rewrite{Text: out, Prompt: prompt}, OutcomeRewritten
}

func (p *PostProcessor) cached(key, prompt string) (Rewrite, bool) {
	if p.cache == nil {
		return Rewrite{}, false
	}
	entry, ok := p.cache.Get(key)
	if !ok {
		return Rewrite{}, false
	}
	return Rewrite{
		Text:   entry.Text,
		Prompt: prompt,
		Usage: types.Usage{
			PromptTokens:     entry.Usage.PromptTokens,
			CompletionTokens: entry.Usage.CompletionTokens,
			TotalTokens:      entry.Usage.TotalTokens,
			CacheHit:         true,
		},
	}, true
}

func (p *PostProcessor) store(key, text string, usage types.Usage) {
	if p.cache == nil {
		return
	}
	entry := &cache.Entry{
		Text: text,
		Usage: cache.Usage{
			PromptTokens:     usage.PromptTokens,
			CompletionTokens: usage.CompletionTokens,
			TotalTokens:      usage.TotalTokens,
		},
		CreatedAt: time.Now(),
	}
	if err := p.cache.Set(key, entry, cache.DefaultTTL); err != nil {
		slog.Warn("cache post-process result", "error", err)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Pipeline
// ─────────────────────────────────────────────────────────────────────────────

// Result is the outcome of running both transform steps on a transcript.
type Result struct {
	// Final is the text to paste.
	Final string
	// Converted reports whether script conversion changed the text.
	Converted bool
	// Processed is the history "post-processed" value: the rewrite, or the
	// converted text when conversion ran but no rewrite happened.
	Processed *string
	// PromptUsed is the template behind a rewrite.
	PromptUsed *string
	Outcome    Outcome
	Usage      types.Usage
}

// Run applies script conversion and then post-processing to text.
// A failed or skipped rewrite keeps the converted text.
func (p *PostProcessor) Run(ctx context.Context, s config.Settings, text string, contextPrompt *string) Result {
	working, converted := ConvertChinese(s.SelectedLanguage, text)

	res := Result{Final: working, Converted: converted}
	rw, outcome := p.process(ctx, s, working, contextPrompt)
	res.Outcome = outcome

	switch {
	case outcome == OutcomeRewritten:
		res.Final = rw.Text
		res.Processed = &rw.Text
		res.PromptUsed = &rw.Prompt
		res.Usage = rw.Usage
	case converted:
		res.Processed = &working
	}
	return res
}
