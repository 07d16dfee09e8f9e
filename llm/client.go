// Package llm provides clients for the chat completion APIs used to rewrite transcripts.
package llm

import (
	"context"
	"net/http"
	"strings"

	"go.aimuz.me/murmur/internal/types"
)

// Message is one chat turn. Role is "system", "user" or "assistant".
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// UserMessage returns a single-turn user message.
func UserMessage(content string) Message {
	return Message{Role: "user", Content: content}
}

// Options tunes a completer. Zero values mean provider defaults.
type Options struct {
	MaxTokens   int
	Temperature float64
	// DisableThinking zeroes the Gemini thinking budget.
	DisableThinking bool
	HTTPClient      *http.Client
}

// Completer performs chat completions.
type Completer interface {
	Complete(ctx context.Context, messages []Message) (string, types.Usage, error)
}

type completerConfig struct {
	Options
	apiKey  string
	baseURL string
	model   string
}

// NewCompleter creates a Completer for the given post-processing provider.
// Anthropic and Gemini use their native APIs; every other provider is
// treated as OpenAI-compatible and reached through its base URL.
func NewCompleter(provider types.PostProcessProvider, apiKey, model string, opts Options) Completer {
	if opts.HTTPClient == nil {
		opts.HTTPClient = DefaultHTTPClient()
	}
	cfg := completerConfig{
		Options: opts,
		apiKey:  apiKey,
		baseURL: strings.TrimRight(provider.BaseURL, "/"),
		model:   model,
	}

	switch provider.ID {
	case "anthropic":
		return &claudeCompleter{cfg: cfg}
	case "gemini":
		return &geminiCompleter{cfg: cfg}
	default:
		return newOpenAICompleter(cfg)
	}
}
