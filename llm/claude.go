package llm

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.aimuz.me/murmur/internal/types"
)

const (
	defaultClaudeBaseURL = "https://api.anthropic.com/v1"
	anthropicVersion     = "2023-06-01"

	// The Messages API rejects requests without max_tokens.
	claudeMaxTokens = 1024
)

// claudeCompleter talks to the Anthropic Messages API.
type claudeCompleter struct {
	cfg completerConfig
}

type claudeRequest struct {
	Model       string          `json:"model"`
	System      string          `json:"system,omitempty"`
	Messages    []claudeMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens"`
	Temperature float64         `json:"temperature,omitempty"`
}

type claudeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type claudeResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (r *claudeResponse) apiError() error {
	if r.Error == nil {
		return nil
	}
	return fmt.Errorf("anthropic: %s: %s", r.Error.Type, r.Error.Message)
}

// newClaudeRequest lifts system messages into the top-level system field.
func newClaudeRequest(cfg completerConfig, messages []Message) claudeRequest {
	req := claudeRequest{
		Model:       cfg.model,
		MaxTokens:   cmp.Or(cfg.MaxTokens, claudeMaxTokens),
		Temperature: cfg.Temperature,
	}
	var system []string
	for _, m := range messages {
		if m.Role == "system" {
			system = append(system, m.Content)
			continue
		}
		req.Messages = append(req.Messages, claudeMessage(m))
	}
	req.System = strings.Join(system, "\n")
	return req
}

func (c *claudeCompleter) Complete(ctx context.Context, messages []Message) (string, types.Usage, error) {
	header := http.Header{}
	header.Set("x-api-key", c.cfg.apiKey)
	header.Set("anthropic-version", anthropicVersion)

	var resp claudeResponse
	endpoint := cmp.Or(c.cfg.baseURL, defaultClaudeBaseURL) + "/messages"
	if err := postJSON(ctx, c.cfg.HTTPClient, endpoint, header, newClaudeRequest(c.cfg, messages), &resp); err != nil {
		return "", types.Usage{}, err
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return "", types.Usage{}, errors.New("anthropic: empty response")
	}
	return text.String(), types.Usage{
		PromptTokens:     resp.Usage.InputTokens,
		CompletionTokens: resp.Usage.OutputTokens,
		TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
	}, nil
}
