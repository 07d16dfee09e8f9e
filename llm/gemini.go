package llm

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"go.aimuz.me/murmur/internal/types"
)

const defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// geminiCompleter talks to the generateContent endpoint.
type geminiCompleter struct {
	cfg completerConfig
}

type geminiRequest struct {
	SystemInstruction *geminiTurn       `json:"systemInstruction,omitempty"`
	Contents          []geminiTurn      `json:"contents"`
	GenerationConfig  geminiGenerateCfg `json:"generationConfig"`
}

type geminiTurn struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiText `json:"parts"`
}

type geminiText struct {
	Text string `json:"text"`
}

type geminiGenerateCfg struct {
	MaxOutputTokens int             `json:"maxOutputTokens,omitempty"`
	Temperature     float64         `json:"temperature,omitempty"`
	ThinkingConfig  *geminiThinking `json:"thinkingConfig,omitempty"`
}

// geminiThinking with a zero budget turns reasoning off on 2.5 models.
type geminiThinking struct {
	ThinkingBudget int `json:"thinkingBudget"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiTurn `json:"content"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (r *geminiResponse) apiError() error {
	if r.Error == nil {
		return nil
	}
	return fmt.Errorf("gemini: %d: %s", r.Error.Code, r.Error.Message)
}

// newGeminiRequest maps chat roles onto Gemini turns. System messages go to
// systemInstruction and the assistant role becomes "model".
func newGeminiRequest(cfg completerConfig, messages []Message) geminiRequest {
	req := geminiRequest{
		GenerationConfig: geminiGenerateCfg{
			MaxOutputTokens: cfg.MaxTokens,
			Temperature:     cfg.Temperature,
		},
	}
	if cfg.DisableThinking {
		req.GenerationConfig.ThinkingConfig = &geminiThinking{}
	}

	var system []string
	for _, m := range messages {
		switch m.Role {
		case "system":
			system = append(system, m.Content)
		case "assistant":
			req.Contents = append(req.Contents, geminiTurn{Role: "model", Parts: []geminiText{{m.Content}}})
		default:
			req.Contents = append(req.Contents, geminiTurn{Role: "user", Parts: []geminiText{{m.Content}}})
		}
	}
	if len(system) > 0 {
		req.SystemInstruction = &geminiTurn{Parts: []geminiText{{strings.Join(system, "\n")}}}
	}
	return req
}

func (c *geminiCompleter) Complete(ctx context.Context, messages []Message) (string, types.Usage, error) {
	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s",
		cmp.Or(c.cfg.baseURL, defaultGeminiBaseURL), c.cfg.model, url.QueryEscape(c.cfg.apiKey))

	var resp geminiResponse
	if err := postJSON(ctx, c.cfg.HTTPClient, endpoint, nil, newGeminiRequest(c.cfg, messages), &resp); err != nil {
		return "", types.Usage{}, err
	}
	if len(resp.Candidates) == 0 {
		return "", types.Usage{}, errors.New("gemini: no candidates")
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		text.WriteString(part.Text)
	}
	if text.Len() == 0 {
		return "", types.Usage{}, errors.New("gemini: empty response")
	}
	u := resp.UsageMetadata
	return text.String(), types.Usage{
		PromptTokens:     u.PromptTokenCount,
		CompletionTokens: u.CandidatesTokenCount,
		TotalTokens:      u.TotalTokenCount,
	}, nil
}
