package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"go.aimuz.me/murmur/internal/types"
)

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

// openaiCompleter implements Completer for OpenAI and compatible APIs
// (OpenRouter, Groq, Cerebras, local servers).
type openaiCompleter struct {
	cfg    completerConfig
	client openai.Client
}

func newOpenAICompleter(cfg completerConfig) *openaiCompleter {
	baseURL := cfg.baseURL
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	client := openai.NewClient(
		option.WithAPIKey(cfg.apiKey),
		option.WithBaseURL(baseURL+"/"),
		option.WithHTTPClient(cfg.HTTPClient),
		option.WithMaxRetries(1),
	)
	return &openaiCompleter{cfg: cfg, client: client}
}

func (c *openaiCompleter) Complete(ctx context.Context, messages []Message) (string, types.Usage, error) {
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(c.cfg.model),
		Messages: toOpenAIMessages(messages),
	}
	if c.cfg.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(c.cfg.MaxTokens))
	}
	if c.cfg.Temperature > 0 {
		params.Temperature = openai.Float(c.cfg.Temperature)
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", types.Usage{}, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", types.Usage{}, fmt.Errorf("no choices")
	}

	usage := types.Usage{
		PromptTokens:     int(resp.Usage.PromptTokens),
		CompletionTokens: int(resp.Usage.CompletionTokens),
		TotalTokens:      int(resp.Usage.TotalTokens),
	}
	return resp.Choices[0].Message.Content, usage, nil
}

func toOpenAIMessages(messages []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch strings.ToLower(m.Role) {
		case "system":
			out = append(out, openai.SystemMessage(m.Content))
		case "assistant":
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}
